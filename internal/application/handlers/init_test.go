package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/matching"
	"github.com/ersonp/menu-core/internal/domain/mocks"
	"github.com/ersonp/menu-core/internal/domain/services"
)

func newCatalog(t *testing.T, db *mocks.RelationalDB) (*services.CatalogService, *matching.Engine) {
	t.Helper()
	engine, err := matching.NewEngine(matching.DefaultOptions())
	require.NoError(t, err)
	return services.NewCatalogService(db, engine, nil, nil), engine
}

func TestInitHandler_Handle(t *testing.T) {
	tests := []struct {
		name        string
		opts        InitOptions
		wantSeeded  int
		wantIndexed int
	}{
		{
			name:        "empty catalog",
			opts:        InitOptions{},
			wantSeeded:  0,
			wantIndexed: 0,
		},
		{
			name:        "seeded catalog",
			opts:        InitOptions{Seed: true},
			wantSeeded:  len(entities.DefaultCatalog),
			wantIndexed: len(entities.DefaultCatalog),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := mocks.NewRelationalDB()
			catalog, engine := newCatalog(t, db)
			handler := NewInitHandler(db, catalog, nil, 0)

			result, err := handler.Handle(t.Context(), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSeeded, result.Seeded)
			assert.Equal(t, tt.wantIndexed, result.Indexed)
			assert.True(t, engine.Index.Ready())
		})
	}
}

func TestInitHandler_Handle_Collection(t *testing.T) {
	db := mocks.NewRelationalDB()
	catalog, _ := newCatalog(t, db)
	collections := &mocks.CollectionManager{}
	handler := NewInitHandler(db, catalog, collections, 1536)

	_, err := handler.Handle(t.Context(), InitOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, collections.EnsureCollectionCallCount)

	collections.EnsureErr = errors.New("connection failed")
	_, err = handler.Handle(t.Context(), InitOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating collection")
	assert.Contains(t, err.Error(), "connection failed")
}

func TestInitHandler_Handle_StoreError(t *testing.T) {
	db := mocks.NewRelationalDB()
	catalog, engine := newCatalog(t, db)
	handler := NewInitHandler(db, catalog, nil, 0)

	db.Err = errors.New("disk full")
	_, err := handler.Handle(t.Context(), InitOptions{Seed: true})
	require.Error(t, err)
	assert.False(t, engine.Index.Ready())
}
