package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/matching"
	"github.com/ersonp/menu-core/internal/domain/mocks"
)

// fixture wires every service over the in-memory store.
type fixture struct {
	db      *mocks.RelationalDB
	engine  *matching.Engine
	catalog *CatalogService
	ledger  *LedgerService
	matcher *MatchService
	menus   *MenuService
}

func newFixture(t *testing.T, names ...string) *fixture {
	return newFixtureWith(t, PromotionPolicy{}, nil, names...)
}

func newFixtureWith(t *testing.T, policy PromotionPolicy, nominator Nominator, names ...string) *fixture {
	t.Helper()

	engine, err := matching.NewEngine(matching.DefaultOptions())
	require.NoError(t, err)

	db := mocks.NewRelationalDB()
	catalog := NewCatalogService(db, engine, nil, nil)
	ledger := NewLedgerService(db, catalog, policy, nil)

	opts := []MatchServiceOption{WithPromoter(ledger)}
	if nominator != nil {
		opts = append(opts, WithNominator(nominator))
	}
	matcher := NewMatchService(db, engine, nil, opts...)

	f := &fixture{
		db:      db,
		engine:  engine,
		catalog: catalog,
		ledger:  ledger,
		matcher: matcher,
		menus:   NewMenuService(db, engine, matcher, 0, nil),
	}

	ctx := context.Background()
	for _, name := range names {
		_, err := catalog.Create(ctx, CatalogInput{Name: name})
		require.NoError(t, err)
	}
	_, err = catalog.RebuildIndex(ctx)
	require.NoError(t, err)
	return f
}

// reopen wires a second set of services over the same store with a new
// engine, the way a restart with changed matching options would.
func (f *fixture) reopen(t *testing.T, opts matching.Options) *fixture {
	t.Helper()

	engine, err := matching.NewEngine(opts)
	require.NoError(t, err)

	catalog := NewCatalogService(f.db, engine, nil, nil)
	ledger := NewLedgerService(f.db, catalog, PromotionPolicy{}, nil)
	matcher := NewMatchService(f.db, engine, nil, WithPromoter(ledger))

	_, err = catalog.RebuildIndex(context.Background())
	require.NoError(t, err)

	return &fixture{
		db:      f.db,
		engine:  engine,
		catalog: catalog,
		ledger:  ledger,
		matcher: matcher,
		menus:   NewMenuService(f.db, engine, matcher, 0, nil),
	}
}

// withStopwords returns the default options with extra stoplist tokens.
func withStopwords(tokens ...string) matching.Options {
	opts := matching.DefaultOptions()
	opts.Stoplist = append(append([]string(nil), matching.DefaultStoplist...), tokens...)
	return opts
}

// entryID returns the id of the catalog entry called name.
func (f *fixture) entryID(t *testing.T, name string) int64 {
	t.Helper()
	e, err := f.db.FindStandardMenuByName(context.Background(), name)
	require.NoError(t, err)
	require.NotNil(t, e, "no catalog entry %q", name)
	return e.ID
}

// matchCount returns the stored match count of an entry.
func (f *fixture) matchCount(t *testing.T, id int64) int64 {
	t.Helper()
	e, err := f.db.FindStandardMenu(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, e)
	return e.MatchCount
}

// addItem creates an item through MenuService and requires success.
func (f *fixture) addItem(t *testing.T, name string) *entities.MenuItem {
	t.Helper()
	item, _, err := f.menus.Create(context.Background(), entities.MenuItemInput{Name: name})
	require.NoError(t, err)
	return item
}

// requireCountsConsistent checks every entry's count against the items pointing at it.
func (f *fixture) requireCountsConsistent(t *testing.T) {
	t.Helper()
	entries, err := f.db.ListStandardMenus(context.Background(), false)
	require.NoError(t, err)
	for _, e := range entries {
		require.Equal(t, f.db.ReferenceCount(e.ID), e.MatchCount, "match count of %s", e.Name)
	}
}

type stubNominator struct {
	ids []int64
	err error
}

func (n stubNominator) Nominate(context.Context, string) ([]int64, error) {
	return n.ids, n.err
}

func int64Ptr(v int64) *int64 {
	return &v
}

func strPtr(v string) *string {
	return &v
}
