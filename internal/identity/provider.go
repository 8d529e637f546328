// Package identity hands out the author id this client signs its reports
// with. The id is generated once and reused across sessions.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rpggio/prodreport/internal/repository"
)

// Key is the KV entry holding the generated author id.
const Key = "author-id"

// Provider implements get-or-create over a KV store.
type Provider struct {
	kv repository.KVStore

	mu     sync.Mutex
	cached string
}

// NewProvider creates a provider backed by kv.
func NewProvider(kv repository.KVStore) *Provider {
	return &Provider{kv: kv}
}

// AuthorID returns the stored author id, creating and persisting one on first
// use.
func (p *Provider) AuthorID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached, nil
	}

	data, err := p.kv.Get(ctx, Key)
	switch {
	case err == nil && strings.TrimSpace(string(data)) != "":
		p.cached = strings.TrimSpace(string(data))
		return p.cached, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return "", fmt.Errorf("reading author id: %w", err)
	}

	id := uuid.NewString()
	if err := p.kv.Set(ctx, Key, []byte(id)); err != nil {
		return "", fmt.Errorf("storing author id: %w", err)
	}
	p.cached = id
	return id, nil
}
