// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/ports"
	"github.com/ersonp/menu-core/internal/domain/services"
)

// InitHandler prepares a freshly configured workspace.
type InitHandler struct {
	db                ports.RelationalDB
	catalog           *services.CatalogService
	collectionManager ports.CollectionManager
	vectorSize        uint64
}

// NewInitHandler creates a new init handler. collectionManager may be nil
// when the semantic source is disabled.
func NewInitHandler(db ports.RelationalDB, catalog *services.CatalogService, collectionManager ports.CollectionManager, vectorSize uint64) *InitHandler {
	return &InitHandler{
		db:                db,
		catalog:           catalog,
		collectionManager: collectionManager,
		vectorSize:        vectorSize,
	}
}

// InitOptions controls initialization.
type InitOptions struct {
	Seed bool // Load the sample catalog
}

// InitResult contains the result of initialization.
type InitResult struct {
	Seeded  int `json:"seeded"`
	Indexed int `json:"indexed"`
}

// Handle creates the schema, optionally seeds the catalog and builds the index.
func (h *InitHandler) Handle(ctx context.Context, opts InitOptions) (*InitResult, error) {
	if err := h.db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if h.collectionManager != nil {
		if err := h.collectionManager.EnsureCollection(ctx, h.vectorSize); err != nil {
			return nil, fmt.Errorf("creating collection: %w", err)
		}
	}

	result := &InitResult{}
	if opts.Seed {
		n, err := h.catalog.Seed(ctx, entities.DefaultCatalog)
		if err != nil {
			return nil, fmt.Errorf("seeding catalog: %w", err)
		}
		result.Seeded = n
	}

	n, err := h.catalog.RebuildIndex(ctx)
	if err != nil {
		return nil, err
	}
	result.Indexed = n

	return result, nil
}
