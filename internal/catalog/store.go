package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/rpggio/prodreport/internal/repository"
)

const alteredSuffix = "-altered"

// Altered holds the change markers for every category of a local catalog.
type Altered struct {
	Lists map[string]Markers
	Tasks map[string]Markers
}

// Store persists the local catalog and its markers in a key-value store.
// Each category lives under its own key with a paired "<key>-altered" entry.
// Writes are read-then-write without locking; concurrent writers sharing one
// store can lose updates.
type Store struct {
	kv         repository.KVStore
	categories []string
	logger     *slog.Logger
}

// NewStore creates a catalog store. When categories is empty
// DefaultCategories is used.
func NewStore(kv repository.KVStore, categories []string, logger *slog.Logger) *Store {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		kv:         kv,
		categories: slices.Clone(categories),
		logger:     logger,
	}
}

// Load returns the local catalog and its markers.
func (s *Store) Load(ctx context.Context) (Catalog, Altered, error) {
	local := New()
	altered := Altered{Lists: map[string]Markers{}, Tasks: map[string]Markers{}}

	for _, category := range s.categories {
		values, err := s.loadList(ctx, category)
		if err != nil {
			return Catalog{}, Altered{}, err
		}
		if values != nil {
			local.Lists[category] = values
		}
		markers, err := s.loadMarkers(ctx, category)
		if err != nil {
			return Catalog{}, Altered{}, err
		}
		if len(markers) > 0 {
			altered.Lists[category] = markers
		}
	}

	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return Catalog{}, Altered{}, err
	}
	if tasks != nil {
		local.Tasks = tasks
	}
	taskMarkers, err := s.loadTaskMarkers(ctx)
	if err != nil {
		return Catalog{}, Altered{}, err
	}
	altered.Tasks = taskMarkers

	return local, altered, nil
}

// Reconcile merges the server catalog with the local copy, persists the result
// as the new local copy and clears the markers it consumed. The merged catalog
// is returned even when persisting fails; if the local copy cannot be read the
// server catalog is returned with the error.
func (s *Store) Reconcile(ctx context.Context, server Catalog) (Catalog, error) {
	local, altered, err := s.Load(ctx)
	if err != nil {
		return server.Clone(), fmt.Errorf("loading local catalog: %w", err)
	}

	merged := New()
	names := slices.Clone(s.categories)
	for name := range server.Lists {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	for _, name := range names {
		_, onServer := server.Lists[name]
		_, onLocal := local.Lists[name]
		if !onServer && !onLocal {
			continue
		}
		merged.Lists[name] = Merge(server.Lists[name], local.Lists[name], altered.Lists[name])
	}
	merged.Tasks = MergeTasks(server.Tasks, local.Tasks, altered.Tasks)

	var errs []error
	for _, name := range names {
		values, ok := merged.Lists[name]
		if !ok {
			continue
		}
		if err := s.putJSON(ctx, name, values); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.ClearMarkers(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.putJSON(ctx, Tasks, merged.Tasks); err != nil {
		errs = append(errs, err)
	} else if err := s.ClearMarkers(ctx, Tasks); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return merged, fmt.Errorf("persisting merged catalog: %w", err)
	}
	s.logger.Debug("catalog reconciled", "categories", len(merged.Lists), "steps", len(merged.Tasks))
	return merged, nil
}

// AddOption appends value to a flat category and marks it new.
func (s *Store) AddOption(ctx context.Context, category, value string) error {
	value = strings.TrimSpace(value)
	if category == Tasks {
		return ErrInvalidOption
	}
	if err := CheckOption(category, value); err != nil {
		return err
	}

	values, err := s.loadList(ctx, category)
	if err != nil {
		return err
	}
	if slices.Contains(values, value) {
		return ErrDuplicateOption
	}
	markers, err := s.loadMarkers(ctx, category)
	if err != nil {
		return err
	}

	values = append(values, value)
	markers[len(values)-1] = MarkerNew
	return s.save(ctx, category, values, markers)
}

// EditOption replaces the value at index and marks the slot edited. A slot
// that is still new keeps its new marker.
func (s *Store) EditOption(ctx context.Context, category string, index int, value string) error {
	value = strings.TrimSpace(value)
	if category == Tasks {
		return ErrInvalidOption
	}
	if err := CheckOption(category, value); err != nil {
		return err
	}

	values, err := s.loadList(ctx, category)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(values) {
		return ErrOptionIndex
	}
	markers, err := s.loadMarkers(ctx, category)
	if err != nil {
		return err
	}

	values[index] = value
	if markers[index] != MarkerNew {
		markers[index] = MarkerEdited
	}
	return s.save(ctx, category, values, markers)
}

// AddTask appends a task to an SDLC step and marks it new.
func (s *Store) AddTask(ctx context.Context, step, value string) error {
	value = strings.TrimSpace(value)
	if value == "" || strings.TrimSpace(step) == "" {
		return ErrInvalidOption
	}

	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(tasks[step], value) {
		return ErrDuplicateOption
	}
	markers, err := s.loadTaskMarkers(ctx)
	if err != nil {
		return err
	}

	tasks[step] = append(tasks[step], value)
	if markers[step] == nil {
		markers[step] = Markers{}
	}
	markers[step][len(tasks[step])-1] = MarkerNew
	return s.saveTasks(ctx, tasks, markers)
}

// EditTask replaces a task of an SDLC step and marks it edited.
func (s *Store) EditTask(ctx context.Context, step string, index int, value string) error {
	value = strings.TrimSpace(value)
	if value == "" || strings.TrimSpace(step) == "" {
		return ErrInvalidOption
	}

	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(tasks[step]) {
		return ErrOptionIndex
	}
	markers, err := s.loadTaskMarkers(ctx)
	if err != nil {
		return err
	}

	tasks[step][index] = value
	if markers[step] == nil {
		markers[step] = Markers{}
	}
	if markers[step][index] != MarkerNew {
		markers[step][index] = MarkerEdited
	}
	return s.saveTasks(ctx, tasks, markers)
}

// Pending returns one delta per category carrying markers.
func (s *Store) Pending(ctx context.Context) ([]Delta, error) {
	local, altered, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	var deltas []Delta
	for _, name := range slices.Sorted(maps.Keys(altered.Lists)) {
		deltas = append(deltas, Delta{
			Category: name,
			Values:   local.Lists[name],
			Altered:  altered.Lists[name],
		})
	}
	if len(altered.Tasks) > 0 {
		deltas = append(deltas, Delta{
			Category:    Tasks,
			Tasks:       local.Tasks,
			TaskAltered: altered.Tasks,
		})
	}
	return deltas, nil
}

// Push sends every pending delta through push and clears the markers of the
// categories that went through. Failed categories keep their markers until the
// next Push or Reconcile. Reconcile folds them into the local copy and clears
// them, so an option whose push failed stays local until it is edited again.
func (s *Store) Push(ctx context.Context, push func(context.Context, Delta) error) (int, error) {
	deltas, err := s.Pending(ctx)
	if err != nil {
		return 0, err
	}

	pushed := 0
	var errs []error
	for _, d := range deltas {
		if err := push(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("pushing %s: %w", d.Category, err))
			continue
		}
		if err := s.ClearMarkers(ctx, d.Category); err != nil {
			errs = append(errs, err)
		}
		pushed++
	}
	return pushed, errors.Join(errs...)
}

// ClearMarkers removes the markers of one category.
func (s *Store) ClearMarkers(ctx context.Context, category string) error {
	err := s.kv.Delete(ctx, category+alteredSuffix)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("clearing %s markers: %w", category, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, category string, values []string, markers Markers) error {
	if err := s.putJSON(ctx, category, values); err != nil {
		return err
	}
	return s.putJSON(ctx, category+alteredSuffix, markers)
}

func (s *Store) saveTasks(ctx context.Context, tasks map[string][]string, markers map[string]Markers) error {
	if err := s.putJSON(ctx, Tasks, tasks); err != nil {
		return err
	}
	return s.putJSON(ctx, Tasks+alteredSuffix, markers)
}

func (s *Store) loadList(ctx context.Context, category string) ([]string, error) {
	var values []string
	if err := s.getJSON(ctx, category, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *Store) loadMarkers(ctx context.Context, category string) (Markers, error) {
	markers := Markers{}
	if err := s.getJSON(ctx, category+alteredSuffix, &markers); err != nil {
		return nil, err
	}
	if markers == nil {
		markers = Markers{}
	}
	return markers, nil
}

func (s *Store) loadTasks(ctx context.Context) (map[string][]string, error) {
	tasks := map[string][]string{}
	if err := s.getJSON(ctx, Tasks, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = map[string][]string{}
	}
	return tasks, nil
}

func (s *Store) loadTaskMarkers(ctx context.Context) (map[string]Markers, error) {
	markers := map[string]Markers{}
	if err := s.getJSON(ctx, Tasks+alteredSuffix, &markers); err != nil {
		return nil, err
	}
	if markers == nil {
		markers = map[string]Markers{}
	}
	for step, m := range markers {
		if len(m) == 0 {
			delete(markers, step)
		}
	}
	return markers, nil
}

// getJSON decodes the value at key into dst. A missing key leaves dst as is.
func (s *Store) getJSON(ctx context.Context, key string, dst any) error {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func (s *Store) putJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
