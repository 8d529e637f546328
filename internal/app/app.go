// Package app wires configuration into the stores, backend client and session
// registry shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/client"
	"github.com/rpggio/prodreport/internal/config"
	"github.com/rpggio/prodreport/internal/domain/activity"
	"github.com/rpggio/prodreport/internal/envelope"
	"github.com/rpggio/prodreport/internal/identity"
	"github.com/rpggio/prodreport/internal/memstore"
	"github.com/rpggio/prodreport/internal/redisstore"
	"github.com/rpggio/prodreport/internal/repository"
	"github.com/rpggio/prodreport/internal/sessions"
	"github.com/rpggio/prodreport/internal/sqlite"
)

// ErrNoKey is returned when a component needs the encryption key and none is
// configured.
var ErrNoKey = errors.New("no encryption key configured; set PRODREPORT_KEY")

// App holds the wired components.
type App struct {
	KV       repository.KVStore
	Catalog  *catalog.Store
	Identity *identity.Provider
	Activity *activity.Service
	Client   *client.Client
	// Key is nil when no key is configured.
	Key      *envelope.Key
	Sessions *sessions.Manager

	closers []func() error
}

// New opens the configured stores and builds the session registry.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &App{}

	db, err := openSQLite(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	switch strings.ToLower(cfg.Store.Driver) {
	case config.StoreMemory:
		a.KV = memstore.New()
	case config.StoreRedis:
		rs, err := redisstore.New(cfg.Store.RedisURL, cfg.Store.Prefix)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		a.KV = rs
	default:
		a.KV = sqlite.NewKVRepository(db)
	}

	a.Catalog = catalog.NewStore(a.KV, nil, logger)
	a.Identity = identity.NewProvider(a.KV)
	a.Activity = activity.NewService(sqlite.NewActivityRepository(db), logger)

	a.Client, err = client.New(client.Config{
		BaseURL:       cfg.API.BaseURL,
		ReferencePath: cfg.API.ReferencePath,
		ReportsPath:   cfg.API.ReportsPath,
		RetryMax:      cfg.API.RetryMax,
		Timeout:       cfg.API.Timeout,
		Logger:        logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Key != "" {
		a.Key, err = envelope.ImportKey(cfg.Key)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Sessions = sessions.NewManager(sessions.Deps{
		Backend:  a.Client,
		Catalog:  a.Catalog,
		Identity: a.Identity,
		Activity: a.Activity,
		Key:      a.Key,
		Logger:   logger,
	})
	return a, nil
}

// RequireKey returns the configured key or ErrNoKey.
func (a *App) RequireKey() (*envelope.Key, error) {
	if a.Key == nil {
		return nil, ErrNoKey
	}
	return a.Key, nil
}

// Close releases the stores in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openSQLite opens the database that holds the activity log and, for the
// sqlite driver, the KV store. The memory driver keeps everything in memory.
func openSQLite(cfg config.StoreConfig) (*sqlite.DB, error) {
	path := cfg.Path
	if strings.EqualFold(cfg.Driver, config.StoreMemory) || path == "" {
		path = ":memory:"
	}
	if err := ensureDBDir(path); err != nil {
		return nil, fmt.Errorf("preparing database path: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
