package services

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/ports"
)

func TestMenuService_Create_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input entities.MenuItemInput
	}{
		{name: "empty name", input: entities.MenuItemInput{Name: ""}},
		{name: "blank name", input: entities.MenuItemInput{Name: "   "}},
		{name: "negative price", input: entities.MenuItemInput{Name: "김치찌개", Price: int64Ptr(-1)}},
		{name: "unknown restaurant", input: entities.MenuItemInput{Name: "김치찌개", RestaurantID: int64Ptr(7)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "김치찌개")

			item, _, err := f.menus.Create(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, entities.ErrValidation))
			assert.Nil(t, item)
			assert.Empty(t, f.db.Items)
		})
	}
}

func TestMenuService_Create_DuplicateWithoutRestaurant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개")
	first := f.addItem(t, "김치찌개")

	_, _, err := f.menus.Create(ctx, entities.MenuItemInput{Name: "김치찌개"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrConflict))
	assert.Len(t, f.db.Items, 1)

	second := f.addItem(t, "김치찌개!")
	_, err = f.menus.Update(ctx, second.ID, entities.MenuItemUpdate{Name: strPtr("김치찌개")})
	assert.True(t, errors.Is(err, entities.ErrConflict))
	assert.Equal(t, int64(2), f.matchCount(t, *first.StandardMenuID))
	f.requireCountsConsistent(t)
}

func TestMenuService_Create_WithRestaurant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개")
	restaurants := NewRestaurantService(f.db)

	r, err := restaurants.Create(ctx, entities.Restaurant{Name: "  할매집 "})
	require.NoError(t, err)
	assert.Equal(t, "할매집", r.Name)
	assert.True(t, r.IsActive)

	item, res, err := f.menus.Create(ctx, entities.MenuItemInput{
		RestaurantID: &r.ID,
		Name:         "김치찌개",
		Price:        int64Ptr(9000),
	})
	require.NoError(t, err)
	assert.Equal(t, r.ID, *item.RestaurantID)
	assert.Equal(t, int64(9000), *item.Price)
	assert.Equal(t, item.ID, res.ItemID)

	menu, err := restaurants.Menu(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, menu, 1)
	assert.Equal(t, item.ID, menu[0].ID)

	_, _, err = f.menus.Create(ctx, entities.MenuItemInput{RestaurantID: &r.ID, Name: "김치찌개"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrConflict))
}

func TestMenuService_Update(t *testing.T) {
	t.Run("rename replaces an automatic match", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, "김치찌개", "짜장면")
		item := f.addItem(t, "김치찌개")

		updated, err := f.menus.Update(ctx, item.ID, entities.MenuItemUpdate{Name: strPtr("짜장면 곱빼기")})
		require.NoError(t, err)
		assert.Equal(t, "짜장면 곱빼기", updated.OriginalName)
		assert.Equal(t, "짜장면 곱빼기", updated.NormalizedName)
		require.NotNil(t, updated.StandardMenuID)
		assert.Equal(t, f.entryID(t, "짜장면"), *updated.StandardMenuID)
		assert.Equal(t, int64(0), f.matchCount(t, f.entryID(t, "김치찌개")))
		assert.Equal(t, int64(1), f.matchCount(t, f.entryID(t, "짜장면")))
		f.requireCountsConsistent(t)
	})

	t.Run("rename to an unknown dish clears the match", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, "김치찌개")
		item := f.addItem(t, "김치찌개")

		updated, err := f.menus.Update(ctx, item.ID, entities.MenuItemUpdate{Name: strPtr("아메리카노")})
		require.NoError(t, err)
		assert.Equal(t, entities.MatchNone, updated.MatchMethod)
		assert.Nil(t, updated.StandardMenuID)
		f.requireCountsConsistent(t)
	})

	t.Run("rename keeps a manual match", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, "김치찌개", "된장찌개")
		doenjang := f.entryID(t, "된장찌개")
		item := f.addItem(t, "김치찌개")
		_, err := f.matcher.ApplyManualMatch(ctx, item.ID, doenjang, "kim")
		require.NoError(t, err)

		updated, err := f.menus.Update(ctx, item.ID, entities.MenuItemUpdate{Name: strPtr("김치찌개 특")})
		require.NoError(t, err)
		assert.Equal(t, entities.MatchManual, updated.MatchMethod)
		assert.Equal(t, doenjang, *updated.StandardMenuID)
		assert.Equal(t, "김치찌개 특", updated.OriginalName)
	})

	t.Run("price edit leaves the match alone", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, "김치찌개")
		item := f.addItem(t, "김치찌개")
		commits := f.db.CommitCallCount

		updated, err := f.menus.Update(ctx, item.ID, entities.MenuItemUpdate{Price: int64Ptr(8000)})
		require.NoError(t, err)
		assert.Equal(t, int64(8000), *updated.Price)
		assert.Equal(t, item.State(), updated.State())
		assert.Equal(t, commits, f.db.CommitCallCount)
	})

	t.Run("validation", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, "김치찌개")
		item := f.addItem(t, "김치찌개")

		_, err := f.menus.Update(ctx, item.ID, entities.MenuItemUpdate{Name: strPtr(" ")})
		assert.True(t, errors.Is(err, entities.ErrValidation))
		_, err = f.menus.Update(ctx, item.ID, entities.MenuItemUpdate{Price: int64Ptr(-5)})
		assert.True(t, errors.Is(err, entities.ErrValidation))
		_, err = f.menus.Update(ctx, 999, entities.MenuItemUpdate{Price: int64Ptr(5)})
		assert.True(t, errors.Is(err, entities.ErrNotFound))
	})
}

func TestMenuService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개")
	kimchi := f.entryID(t, "김치찌개")
	item := f.addItem(t, "김치찌개")
	require.Equal(t, int64(1), f.matchCount(t, kimchi))

	require.NoError(t, f.menus.Delete(ctx, item.ID))
	assert.Equal(t, int64(0), f.matchCount(t, kimchi))

	err := f.menus.Delete(ctx, item.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	// With no references left the entry can be removed.
	require.NoError(t, f.catalog.Delete(ctx, kimchi))
}

func TestMenuService_Preview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개", "삼겹살")

	preview, err := f.menus.Preview(ctx, "［BEST］ 김치찌개 (2인분)")
	require.NoError(t, err)
	assert.Equal(t, "김치찌개", preview.NormalizedName)
	assert.Equal(t, "김치찌개", preview.Result.StandardMenuName)
	assert.True(t, preview.Result.Verified)
	assert.Empty(t, f.db.Items)
	assert.Zero(t, f.db.CommitCallCount)

	f.engine.Index.Invalidate()
	_, err = f.menus.Preview(ctx, "김치찌개")
	assert.True(t, errors.Is(err, entities.ErrIndexUnavailable))
}

func TestMenuService_BatchMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개", "짜장면")
	f.engine.Index.Invalidate()

	var ids []int64
	for _, name := range []string{"김치찌개", "아메리카노", "짜장면"} {
		item, _, err := f.menus.Create(ctx, entities.MenuItemInput{Name: name})
		require.Error(t, err)
		ids = append(ids, item.ID)
	}
	ids = append(ids, 999)
	_, err := f.catalog.RebuildIndex(ctx)
	require.NoError(t, err)

	results, err := f.menus.BatchMatch(ctx, ids, MatchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, r := range results {
		assert.Equal(t, ids[i], r.ItemID)
	}
	assert.Equal(t, "김치찌개", results[0].Result.StandardMenuName)
	assert.Equal(t, entities.MatchNone, results[1].Result.Method)
	assert.Equal(t, "짜장면", results[2].Result.StandardMenuName)
	assert.Nil(t, results[3].Result)
	assert.Contains(t, results[3].Error, "not found")
	f.requireCountsConsistent(t)
}

func TestMenuService_BatchMatch_Limit(t *testing.T) {
	f := newFixture(t, "김치찌개")
	f.menus = NewMenuService(f.db, f.engine, f.matcher, 2, nil)

	_, err := f.menus.BatchMatch(context.Background(), []int64{1, 2, 3}, MatchOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrValidation))
}

func TestMenuService_RematchUnmatched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개", "짜장면")
	f.engine.Index.Invalidate()

	for _, name := range []string{"김치찌개", "짜장면", "아메리카노", "카페라떼"} {
		_, _, err := f.menus.Create(ctx, entities.MenuItemInput{Name: name})
		require.Error(t, err)
	}

	_, err := f.menus.RematchUnmatched(ctx, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrIndexUnavailable))

	_, err = f.catalog.RebuildIndex(ctx)
	require.NoError(t, err)

	summary, err := f.menus.RematchUnmatched(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Matched)
	assert.InDelta(t, 0.5, summary.SuccessRate, 1e-9)

	// Only the two items that still have no match are visited again.
	summary, err = f.menus.RematchUnmatched(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 0, summary.Matched)
	assert.Zero(t, summary.SuccessRate)

	none := entities.MatchNone
	unmatched, err := f.menus.List(ctx, ports.MenuItemFilter{Method: &none})
	require.NoError(t, err)
	assert.Len(t, unmatched, 2)
}

func TestMenuService_List_Unverified(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개", "삼겹살")
	f.addItem(t, "김치찌개")
	medium := f.addItem(t, "한돈 삼겹살")

	items, err := f.menus.List(ctx, ports.MenuItemFilter{Unverified: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, medium.ID, items[0].ID)
}
