package repository

import (
	"context"

	"github.com/rpggio/prodreport/internal/domain/activity"
)

// KVStore is the persistent key-value store that holds local catalogs,
// their change markers and the generated author identity. Values are opaque
// JSON documents.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ActivityRepository manages activity log persistence
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.Entry) error
	List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
}
