package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/menu-core/internal/domain/services"
)

// SyncHandler rebuilds the candidate index and, when configured, the
// semantic collection from the stored catalog.
type SyncHandler struct {
	catalog  *services.CatalogService
	semantic *services.SemanticService
}

// NewSyncHandler creates a new sync handler. semantic may be nil.
func NewSyncHandler(catalog *services.CatalogService, semantic *services.SemanticService) *SyncHandler {
	return &SyncHandler{
		catalog:  catalog,
		semantic: semantic,
	}
}

// SyncResult contains the result of a sync.
type SyncResult struct {
	Indexed  int `json:"indexed"`
	Embedded int `json:"embedded"`
}

// Handle rebuilds the in-memory index, then the semantic collection.
func (h *SyncHandler) Handle(ctx context.Context) (*SyncResult, error) {
	indexed, err := h.catalog.RebuildIndex(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Indexed: indexed}
	if h.semantic == nil {
		return result, nil
	}

	entries, err := h.catalog.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("listing catalog: %w", err)
	}

	embedded, err := h.semantic.Sync(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("syncing semantic index: %w", err)
	}
	result.Embedded = embedded

	return result, nil
}
