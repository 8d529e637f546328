package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/memstore"
	"github.com/rpggio/prodreport/internal/repository"
	"github.com/rpggio/prodreport/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStore_AddOptionMarksNew(t *testing.T) {
	ctx := context.Background()
	kv := memstore.New()
	store := catalog.NewStore(kv, nil, nil)

	require.NoError(t, store.AddOption(ctx, catalog.Platforms, " Desktop "))
	require.ErrorIs(t, store.AddOption(ctx, catalog.Platforms, "Desktop"), catalog.ErrDuplicateOption)
	require.ErrorIs(t, store.AddOption(ctx, catalog.Platforms, "  "), catalog.ErrInvalidOption)
	require.ErrorIs(t, store.AddOption(ctx, catalog.Tasks, "x"), catalog.ErrInvalidOption)

	local, altered, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Desktop"}, local.Options(catalog.Platforms))
	require.Equal(t, catalog.Markers{0: catalog.MarkerNew}, altered.Lists[catalog.Platforms])

	raw, err := kv.Get(ctx, "platforms-altered")
	require.NoError(t, err)
	require.JSONEq(t, `{"0":"new"}`, string(raw))
}

func TestStore_EditOption(t *testing.T) {
	ctx := context.Background()
	kv := memstore.New()
	require.NoError(t, kv.Set(ctx, catalog.Platforms, []byte(`["Web","iOS"]`)))
	store := catalog.NewStore(kv, nil, nil)

	require.NoError(t, store.EditOption(ctx, catalog.Platforms, 1, "iOS (native)"))
	require.ErrorIs(t, store.EditOption(ctx, catalog.Platforms, 5, "x"), catalog.ErrOptionIndex)

	require.NoError(t, store.AddOption(ctx, catalog.Platforms, "Desktop"))
	require.NoError(t, store.EditOption(ctx, catalog.Platforms, 2, "Desktop app"))

	local, altered, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Web", "iOS (native)", "Desktop app"}, local.Options(catalog.Platforms))
	require.Equal(t, catalog.Markers{1: catalog.MarkerEdited, 2: catalog.MarkerNew}, altered.Lists[catalog.Platforms])
}

func TestStore_TaskEdits(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewStore(memstore.New(), nil, nil)

	require.NoError(t, store.AddTask(ctx, "Build", "Coding"))
	require.NoError(t, store.AddTask(ctx, "Build", "Review"))
	require.ErrorIs(t, store.AddTask(ctx, "Build", "Coding"), catalog.ErrDuplicateOption)
	require.ErrorIs(t, store.EditTask(ctx, "Test", 0, "Unit"), catalog.ErrOptionIndex)
	require.NoError(t, store.EditTask(ctx, "Build", 1, "Code review"))

	local, altered, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Coding", "Code review"}, local.TaskOptions("Build"))
	require.Equal(t, catalog.Markers{0: catalog.MarkerNew, 1: catalog.MarkerNew}, altered.Tasks["Build"])
}

func TestStore_ReconcileScenario(t *testing.T) {
	ctx := context.Background()
	kv := memstore.New()
	require.NoError(t, kv.Set(ctx, catalog.Platforms, []byte(`["A","X","B"]`)))
	require.NoError(t, kv.Set(ctx, "platforms-altered", []byte(`{"1":"new"}`)))
	require.NoError(t, kv.Set(ctx, catalog.Tasks, []byte(`{"Build":["Coding","Pairing"]}`)))
	require.NoError(t, kv.Set(ctx, "sdlcTasks-altered", []byte(`{"Build":{"1":"new"}}`)))

	server := catalog.New()
	server.Lists[catalog.Platforms] = []string{"A", "B"}
	server.Lists[catalog.AITools] = []string{"Copilot"}
	server.Lists["extraCategory"] = []string{"E"}
	server.Tasks["Build"] = []string{"Coding"}
	server.Tasks["Test"] = []string{"Unit"}

	store := catalog.NewStore(kv, nil, nil)
	merged, err := store.Reconcile(ctx, server)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "X"}, merged.Options(catalog.Platforms))
	require.Equal(t, []string{"Copilot"}, merged.Options(catalog.AITools))
	require.Equal(t, []string{"E"}, merged.Options("extraCategory"))
	require.Equal(t, []string{"Coding", "Pairing"}, merged.TaskOptions("Build"))
	require.Equal(t, []string{"Unit"}, merged.TaskOptions("Test"))

	_, err = kv.Get(ctx, "platforms-altered")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = kv.Get(ctx, "sdlcTasks-altered")
	require.ErrorIs(t, err, repository.ErrNotFound)

	raw, err := kv.Get(ctx, catalog.Platforms)
	require.NoError(t, err)
	require.JSONEq(t, `["A","B","X"]`, string(raw))

	again, err := store.Reconcile(ctx, merged)
	require.NoError(t, err)
	require.Equal(t, merged, again)
}

func TestStore_PendingDeltas(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewStore(memstore.New(), nil, nil)

	deltas, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, deltas)

	require.NoError(t, store.AddOption(ctx, catalog.AITools, "Claude"))
	require.NoError(t, store.AddOption(ctx, catalog.Platforms, "Web"))
	require.NoError(t, store.AddTask(ctx, "Build", "Coding"))

	deltas, err = store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, deltas, 3)
	require.Equal(t, catalog.AITools, deltas[0].Category)
	require.Equal(t, []string{"Claude"}, deltas[0].Values)
	require.Equal(t, catalog.Platforms, deltas[1].Category)
	require.Equal(t, catalog.Tasks, deltas[2].Category)
	require.Equal(t, map[string][]string{"Build": {"Coding"}}, deltas[2].Tasks)

	require.NoError(t, store.ClearMarkers(ctx, catalog.AITools))
	require.NoError(t, store.ClearMarkers(ctx, catalog.AITools))
	deltas, err = store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, deltas, 2)
}

func TestStore_PushKeepsFailedMarkers(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewStore(memstore.New(), nil, nil)
	require.NoError(t, store.AddOption(ctx, catalog.AITools, "Claude"))
	require.NoError(t, store.AddOption(ctx, catalog.Platforms, "Web"))

	var sent []string
	pushed, err := store.Push(ctx, func(_ context.Context, d catalog.Delta) error {
		sent = append(sent, d.Category)
		if d.Category == catalog.Platforms {
			return errors.New("bad gateway")
		}
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "pushing platforms")
	require.Equal(t, 1, pushed)
	require.Equal(t, []string{catalog.AITools, catalog.Platforms}, sent)

	deltas, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	require.Equal(t, catalog.Platforms, deltas[0].Category)
}

func TestStore_ReconcileClearsMarkersOfFailedPush(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewStore(memstore.New(), nil, nil)
	require.NoError(t, store.AddOption(ctx, catalog.Platforms, "Android"))

	_, err := store.Push(ctx, func(context.Context, catalog.Delta) error {
		return errors.New("bad gateway")
	})
	require.Error(t, err)
	deltas, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, deltas, 1)

	server := catalog.New()
	server.Lists[catalog.Platforms] = []string{"Web"}
	merged, err := store.Reconcile(ctx, server)
	require.NoError(t, err)
	require.Equal(t, []string{"Web", "Android"}, merged.Options(catalog.Platforms))

	deltas, err = store.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, deltas)

	local, _, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Web", "Android"}, local.Options(catalog.Platforms))
}

func TestStore_RejectsCommaInToolNames(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewStore(memstore.New(), nil, nil)

	err := store.AddOption(ctx, catalog.AITools, "Claude, Opus")
	require.ErrorIs(t, err, catalog.ErrInvalidOption)
	require.Contains(t, err.Error(), "commas")

	require.NoError(t, store.AddOption(ctx, catalog.AITools, "Claude"))
	require.ErrorIs(t, store.EditOption(ctx, catalog.AITools, 0, "A,B"), catalog.ErrInvalidOption)

	require.NoError(t, store.AddOption(ctx, catalog.ProjectInitiatives, "Billing, phase 2"))
}

func TestStore_ReconcileLoadFailureReturnsServer(t *testing.T) {
	ctx := context.Background()
	kv := &mocks.KVStore{}
	kv.On("Get", ctx, mock.Anything).Return(nil, errors.New("disk gone"))

	server := catalog.New()
	server.Lists[catalog.Platforms] = []string{"Web"}

	store := catalog.NewStore(kv, []string{catalog.Platforms}, nil)
	merged, err := store.Reconcile(ctx, server)
	require.Error(t, err)
	require.Equal(t, server, merged)
}

func TestStore_ReconcilePersistFailureStillMerges(t *testing.T) {
	ctx := context.Background()
	kv := &mocks.KVStore{}
	kv.On("Get", ctx, mock.Anything).Return(nil, repository.ErrNotFound)
	kv.On("Set", ctx, mock.Anything, mock.Anything).Return(errors.New("read only"))

	server := catalog.New()
	server.Lists[catalog.Platforms] = []string{"Web"}

	store := catalog.NewStore(kv, []string{catalog.Platforms}, nil)
	merged, err := store.Reconcile(ctx, server)
	require.Error(t, err)
	require.Equal(t, []string{"Web"}, merged.Options(catalog.Platforms))
	kv.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
