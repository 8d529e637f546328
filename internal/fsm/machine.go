// Package fsm runs a pure transition function as a single-goroutine event
// loop. Effects returned by a transition are executed on their own goroutines
// and their results come back as ordinary events, so a transition never runs
// re-entrantly.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("state machine closed")
	// ErrNotStarted is returned by Send before Start.
	ErrNotStarted = errors.New("state machine not started")
)

// TransitionFunc computes the next state and the effects to run. It must not
// block or perform I/O. On error the state is left unchanged.
type TransitionFunc[S, E, F any] func(state S, event E) (S, []F, error)

// RunFunc executes one effect and returns the event reporting its outcome.
// Returning ok=false means the effect produced nothing to feed back.
type RunFunc[E, F any] func(ctx context.Context, effect F) (event E, ok bool)

// Machine owns one state value and serializes every event through a single
// goroutine.
type Machine[S, E, F any] struct {
	transition TransitionFunc[S, E, F]
	run        RunFunc[E, F]
	logger     *slog.Logger
	name       string

	events chan request[E]
	stop   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	state   S
	changed chan struct{}
	closed  bool
	started bool
	ctx     context.Context

	inflight int
	idle     *sync.Cond
}

type request[E any] struct {
	event E
	reply chan error
}

// Option configures a Machine.
type Option func(*options)

type options struct {
	logger *slog.Logger
	name   string
}

// WithLogger sets the logger used for transition tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithName labels log lines emitted by the machine.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// New creates a stopped machine in the initial state.
func New[S, E, F any](initial S, transition TransitionFunc[S, E, F], run RunFunc[E, F], opts ...Option) *Machine[S, E, F] {
	o := options{name: "fsm"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := &Machine[S, E, F]{
		transition: transition,
		run:        run,
		logger:     o.logger,
		name:       o.name,
		events:     make(chan request[E]),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		state:      initial,
		changed:    make(chan struct{}),
	}
	m.idle = sync.NewCond(&m.mu)
	return m
}

// Start launches the event loop and dispatches the entry effects of the
// initial state. Effects run on a context detached from ctx's cancellation.
func (m *Machine[S, E, F]) Start(ctx context.Context, entry ...F) {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.ctx = context.WithoutCancel(ctx)
	m.inflight += len(entry)
	m.mu.Unlock()

	go m.loop()
	m.dispatch(entry)
}

// Send delivers an event and waits until it has been processed. The returned
// error is the transition's rejection, if any.
func (m *Machine[S, E, F]) Send(ctx context.Context, event E) (S, error) {
	m.mu.Lock()
	closed, started := m.closed, m.started
	m.mu.Unlock()

	var zero S
	if closed {
		return zero, ErrClosed
	}
	if !started {
		return zero, ErrNotStarted
	}

	if err := m.deliver(ctx, event); err != nil {
		return zero, err
	}
	return m.State(), nil
}

// State returns the current state.
func (m *Machine[S, E, F]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Wait blocks until pred holds for the current state or ctx ends.
func (m *Machine[S, E, F]) Wait(ctx context.Context, pred func(S) bool) (S, error) {
	for {
		m.mu.Lock()
		state, changed := m.state, m.changed
		m.mu.Unlock()

		if pred(state) {
			return state, nil
		}

		select {
		case <-changed:
		case <-m.done:
			current := m.State()
			if pred(current) {
				return current, nil
			}
			return current, ErrClosed
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Close rejects further events, lets in-flight effects finish and deliver
// their results, then stops the loop. It is safe to call more than once.
func (m *Machine[S, E, F]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.closed = true
	started := m.started
	m.mu.Unlock()

	if !started {
		close(m.done)
		return
	}

	m.mu.Lock()
	for m.inflight > 0 {
		m.idle.Wait()
	}
	m.mu.Unlock()

	close(m.stop)
	<-m.done
}

func (m *Machine[S, E, F]) loop() {
	defer close(m.done)
	for {
		select {
		case req := <-m.events:
			req.reply <- m.step(req.event)
		case <-m.stop:
			return
		}
	}
}

func (m *Machine[S, E, F]) step(event E) error {
	m.mu.Lock()
	current := m.state
	m.mu.Unlock()

	next, effects, err := m.transition(current, event)
	if err != nil {
		m.logger.Debug("event rejected", "machine", m.name, "event", eventName(event), "error", err)
		return err
	}

	m.mu.Lock()
	m.state = next
	close(m.changed)
	m.changed = make(chan struct{})
	m.inflight += len(effects)
	m.mu.Unlock()

	m.logger.Debug("event applied", "machine", m.name, "event", eventName(event), "effects", len(effects))
	m.dispatch(effects)
	return nil
}

// dispatch runs effects already counted in inflight. An effect stays counted
// until its result event has been processed, so effects spawned by that event
// are counted before the parent is released.
func (m *Machine[S, E, F]) dispatch(effects []F) {
	for _, effect := range effects {
		go func() {
			defer m.release()
			event, ok := m.run(m.ctx, effect)
			if !ok {
				return
			}
			if err := m.deliver(context.Background(), event); err != nil && !errors.Is(err, ErrClosed) {
				m.logger.Debug("effect result rejected", "machine", m.name, "event", eventName(event), "error", err)
			}
		}()
	}
}

func (m *Machine[S, E, F]) release() {
	m.mu.Lock()
	m.inflight--
	if m.inflight == 0 {
		m.idle.Broadcast()
	}
	m.mu.Unlock()
}

func (m *Machine[S, E, F]) deliver(ctx context.Context, event E) error {
	reply := make(chan error, 1)
	select {
	case m.events <- request[E]{event: event, reply: reply}:
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-m.done:
		return ErrClosed
	}
}

func eventName(event any) string {
	return fmt.Sprintf("%T", event)
}
