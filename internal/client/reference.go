package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpggio/prodreport/internal/catalog"
)

// FetchReference downloads the server-authoritative catalog.
func (c *Client) FetchReference(ctx context.Context) (catalog.Catalog, error) {
	status, body, err := c.get(ctx, c.reference, nil)
	if err != nil {
		return catalog.Catalog{}, fmt.Errorf("%w: %v", ErrReferenceFetch, err)
	}
	if !ok(status) {
		return catalog.Catalog{}, statusError(ErrReferenceFetch, status, body)
	}

	var out catalog.Catalog
	if err := json.Unmarshal(body, &out); err != nil {
		return catalog.Catalog{}, fmt.Errorf("%w: %v", ErrReferenceFetch, err)
	}
	return out, nil
}

// PushCatalog sends one category's local changes.
func (c *Client) PushCatalog(ctx context.Context, delta catalog.Delta) error {
	status, body, err := c.postJSON(ctx, c.reference, delta)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogPush, err)
	}
	if !ok(status) {
		return statusError(ErrCatalogPush, status, body)
	}
	return nil
}
