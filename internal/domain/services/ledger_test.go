package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/menu-core/internal/domain/entities"
)

func TestLedgerService_SuggestAliases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개", "된장찌개")
	kimchi := f.entryID(t, "김치찌개")
	doenjang := f.entryID(t, "된장찌개")

	override := func(name string, entry int64, actor string) {
		item := f.addItem(t, name)
		_, err := f.matcher.ApplyManualMatch(ctx, item.ID, entry, actor)
		require.NoError(t, err)
	}

	override("김찌", kimchi, "kim")
	override("김찌!", kimchi, "lee")
	override("김찌 (1인분)", kimchi, "kim")
	override("된찌", doenjang, "park")
	override("찌개", kimchi, "kim")
	override("찌개!", doenjang, "lee")

	tests := []struct {
		name           string
		minOccurrences int
		want           []entities.AliasSuggestion
	}{
		{
			name:           "threshold three",
			minOccurrences: 3,
			want: []entities.AliasSuggestion{
				{Alias: "김찌", StandardMenuID: kimchi, Occurrences: 3, Actors: []string{"kim", "lee"}},
			},
		},
		{
			name:           "threshold one skips disagreeing names",
			minOccurrences: 1,
			want: []entities.AliasSuggestion{
				{Alias: "김찌", StandardMenuID: kimchi, Occurrences: 3, Actors: []string{"kim", "lee"}},
				{Alias: "된찌", StandardMenuID: doenjang, Occurrences: 1, Actors: []string{"park"}},
			},
		},
		{
			name:           "zero falls back to the configured threshold",
			minOccurrences: 0,
			want: []entities.AliasSuggestion{
				{Alias: "김찌", StandardMenuID: kimchi, Occurrences: 3, Actors: []string{"kim", "lee"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ledger.SuggestAliases(ctx, tt.minOccurrences)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("accepted aliases are no longer suggested", func(t *testing.T) {
		_, err := f.catalog.AddAlias(ctx, kimchi, "김찌")
		require.NoError(t, err)

		got, err := f.ledger.SuggestAliases(ctx, 3)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestLedgerService_AutoPromotion(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWith(t, PromotionPolicy{AutoPromote: true, Threshold: 2}, nil, "김치찌개", "된장찌개")
	kimchi := f.entryID(t, "김치찌개")

	first := f.addItem(t, "김찌")
	_, err := f.matcher.ApplyManualMatch(ctx, first.ID, kimchi, "kim")
	require.NoError(t, err)

	entry, err := f.catalog.Get(ctx, kimchi)
	require.NoError(t, err)
	assert.Empty(t, entry.Aliases, "one override is below the threshold")

	second := f.addItem(t, "김찌!")
	require.Nil(t, second.StandardMenuID)
	_, err = f.matcher.ApplyManualMatch(ctx, second.ID, kimchi, "lee")
	require.NoError(t, err)

	entry, err = f.catalog.Get(ctx, kimchi)
	require.NoError(t, err)
	assert.Equal(t, []string{"김찌"}, entry.Aliases)

	// The promoted alias now resolves new items automatically.
	third := f.addItem(t, "김찌 (2인분)")
	require.NotNil(t, third.StandardMenuID)
	assert.Equal(t, kimchi, *third.StandardMenuID)
	assert.Equal(t, entities.MatchAutomatic, third.MatchMethod)
	assert.True(t, third.IsVerified)
}

func TestLedgerService_AutoPromotionOffByDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개")
	kimchi := f.entryID(t, "김치찌개")

	for i := 0; i < 5; i++ {
		item := f.addItem(t, fmt.Sprintf("김찌 (%d인분)", i+1))
		_, err := f.matcher.ApplyManualMatch(ctx, item.ID, kimchi, "kim")
		require.NoError(t, err)
	}

	entry, err := f.catalog.Get(ctx, kimchi)
	require.NoError(t, err)
	assert.Empty(t, entry.Aliases)
}

func TestLedgerService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개", "된장찌개")
	item := f.addItem(t, "김치찌개")

	_, err := f.matcher.ApplyManualMatch(ctx, item.ID, f.entryID(t, "된장찌개"), "kim")
	require.NoError(t, err)
	_, err = f.matcher.ClearMatch(ctx, item.ID, "lee")
	require.NoError(t, err)

	all, err := f.ledger.List(ctx, entities.LedgerFilter{MenuItemID: &item.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "lee", all[0].Actor, "newest first")
	assert.Nil(t, all[0].NewRef)

	limited, err := f.ledger.List(ctx, entities.LedgerFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	other := int64(999)
	none, err := f.ledger.List(ctx, entities.LedgerFilter{MenuItemID: &other})
	require.NoError(t, err)
	assert.Empty(t, none)
}
