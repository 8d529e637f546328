package fsm_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rpggio/prodreport/internal/fsm"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Value   int
	Pending int
}

type event struct {
	Kind  string
	Delta int
}

type effect struct {
	Delta int
	Gate  chan struct{}
}

var errNegative = errors.New("negative")

func transition(s counter, e event) (counter, []effect, error) {
	switch e.Kind {
	case "add":
		if s.Value+e.Delta < 0 {
			return s, nil, errNegative
		}
		s.Value += e.Delta
		return s, nil, nil
	case "async":
		s.Pending++
		return s, []effect{{Delta: e.Delta}}, nil
	case "done":
		s.Pending--
		s.Value += e.Delta
		return s, nil, nil
	}
	return s, nil, errors.New("unknown event")
}

func run(_ context.Context, f effect) (event, bool) {
	if f.Gate != nil {
		<-f.Gate
	}
	if f.Delta == 0 {
		return event{}, false
	}
	return event{Kind: "done", Delta: f.Delta}, true
}

func TestMachine_SendAppliesTransition(t *testing.T) {
	m := fsm.New(counter{}, transition, run)
	m.Start(context.Background())
	defer m.Close()

	state, err := m.Send(context.Background(), event{Kind: "add", Delta: 2})
	require.NoError(t, err)
	require.Equal(t, 2, state.Value)

	_, err = m.Send(context.Background(), event{Kind: "add", Delta: -5})
	require.ErrorIs(t, err, errNegative)
	require.Equal(t, 2, m.State().Value)
}

func TestMachine_EffectResultsFeedBack(t *testing.T) {
	ctx := context.Background()
	m := fsm.New(counter{}, transition, run)
	m.Start(ctx)
	defer m.Close()

	state, err := m.Send(ctx, event{Kind: "async", Delta: 5})
	require.NoError(t, err)
	require.Equal(t, 1, state.Pending)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	state, err = m.Wait(waitCtx, func(s counter) bool { return s.Pending == 0 })
	require.NoError(t, err)
	require.Equal(t, 5, state.Value)
}

func TestMachine_EntryEffects(t *testing.T) {
	ctx := context.Background()
	m := fsm.New(counter{Pending: 1}, transition, run)
	m.Start(ctx, effect{Delta: 3})
	defer m.Close()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	state, err := m.Wait(waitCtx, func(s counter) bool { return s.Value == 3 })
	require.NoError(t, err)
	require.Equal(t, 0, state.Pending)
}

func TestMachine_CloseWaitsForEffects(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	var finished atomic.Bool

	runGated := func(ctx context.Context, f effect) (event, bool) {
		ev, ok := run(ctx, f)
		finished.Store(true)
		return ev, ok
	}
	m := fsm.New(counter{Pending: 1}, transition, runGated)
	m.Start(ctx, effect{Delta: 1, Gate: gate})

	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned before the effect finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not return")
	}
	require.True(t, finished.Load())
	require.Equal(t, 1, m.State().Value)

	_, err := m.Send(ctx, event{Kind: "add", Delta: 1})
	require.ErrorIs(t, err, fsm.ErrClosed)
	m.Close()
}

func TestMachine_SendBeforeStart(t *testing.T) {
	m := fsm.New(counter{}, transition, run)
	_, err := m.Send(context.Background(), event{Kind: "add", Delta: 1})
	require.ErrorIs(t, err, fsm.ErrNotStarted)
	m.Close()
}

func TestMachine_WaitHonoursContext(t *testing.T) {
	m := fsm.New(counter{}, transition, run)
	m.Start(context.Background())
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Wait(ctx, func(s counter) bool { return s.Value == 99 })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMachine_EffectsIgnoreCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var sawCancel atomic.Bool
	runCtx := func(ctx context.Context, f effect) (event, bool) {
		time.Sleep(10 * time.Millisecond)
		sawCancel.Store(ctx.Err() != nil)
		return event{Kind: "done", Delta: f.Delta}, true
	}

	m := fsm.New(counter{Pending: 1}, transition, runCtx)
	m.Start(ctx, effect{Delta: 1})
	cancel()
	m.Close()

	require.False(t, sawCancel.Load())
	require.Equal(t, 1, m.State().Value)
}
