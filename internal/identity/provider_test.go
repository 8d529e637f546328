package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rpggio/prodreport/internal/identity"
	"github.com/rpggio/prodreport/internal/memstore"
	"github.com/rpggio/prodreport/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProvider_CreatesOnceAndReuses(t *testing.T) {
	ctx := context.Background()
	kv := memstore.New()

	first, err := identity.NewProvider(kv).AuthorID(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := identity.NewProvider(kv).AuthorID(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)

	stored, err := kv.Get(ctx, identity.Key)
	require.NoError(t, err)
	require.Equal(t, first, string(stored))
}

func TestProvider_UsesExistingValue(t *testing.T) {
	ctx := context.Background()
	kv := memstore.New()
	require.NoError(t, kv.Set(ctx, identity.Key, []byte("author-42\n")))

	id, err := identity.NewProvider(kv).AuthorID(ctx)
	require.NoError(t, err)
	require.Equal(t, "author-42", id)
}

func TestProvider_CachesAfterFirstRead(t *testing.T) {
	ctx := context.Background()
	kv := &mocks.KVStore{}
	kv.On("Get", ctx, identity.Key).Return([]byte("author-7"), nil).Once()

	p := identity.NewProvider(kv)
	for range 3 {
		id, err := p.AuthorID(ctx)
		require.NoError(t, err)
		require.Equal(t, "author-7", id)
	}
	kv.AssertExpectations(t)
}

func TestProvider_StorageErrors(t *testing.T) {
	ctx := context.Background()

	kv := &mocks.KVStore{}
	kv.On("Get", ctx, identity.Key).Return(nil, errors.New("boom"))
	_, err := identity.NewProvider(kv).AuthorID(ctx)
	require.Error(t, err)

	kv = &mocks.KVStore{}
	kv.On("Get", ctx, identity.Key).Return(nil, nil)
	kv.On("Set", ctx, identity.Key, mock.Anything).Return(errors.New("read only"))
	_, err = identity.NewProvider(kv).AuthorID(ctx)
	require.Error(t, err)
}
