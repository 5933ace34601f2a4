package services

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/mocks"
	"github.com/ersonp/menu-core/internal/domain/ports"
)

func TestAttemptAutomaticMatch_Bands(t *testing.T) {
	tests := []struct {
		name         string
		item         string
		wantEntry    string
		wantMethod   entities.MatchMethod
		wantVerified bool
		wantConf     float64
	}{
		{
			name:         "exact after normalization is verified",
			item:         "김치찌개 (2인분)",
			wantEntry:    "김치찌개",
			wantMethod:   entities.MatchAutomatic,
			wantVerified: true,
			wantConf:     1.0,
		},
		{
			name:         "spacing only difference is verified",
			item:         "김치 찌개",
			wantEntry:    "김치찌개",
			wantMethod:   entities.MatchAutomatic,
			wantVerified: true,
		},
		{
			name:         "medium confidence is accepted unverified",
			item:         "한돈 삼겹살",
			wantEntry:    "삼겹살",
			wantMethod:   entities.MatchAutomatic,
			wantVerified: false,
			wantConf:     0.7088,
		},
		{
			name:       "unrelated name stays unmatched",
			item:       "아메리카노",
			wantMethod: entities.MatchNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "김치찌개", "삼겹살", "짜장면")
			item := f.addItem(t, tt.item)

			assert.Equal(t, tt.wantMethod, item.MatchMethod)
			assert.Equal(t, tt.wantVerified, item.IsVerified)

			if tt.wantEntry == "" {
				assert.Nil(t, item.StandardMenuID)
				assert.Nil(t, item.MatchConfidence)
				f.requireCountsConsistent(t)
				return
			}

			id := f.entryID(t, tt.wantEntry)
			require.NotNil(t, item.StandardMenuID)
			assert.Equal(t, id, *item.StandardMenuID)
			require.NotNil(t, item.MatchConfidence)
			if tt.wantConf > 0 {
				assert.InDelta(t, tt.wantConf, *item.MatchConfidence, 1e-4)
			}
			assert.GreaterOrEqual(t, *item.MatchConfidence, 0.5)
			assert.Equal(t, int64(1), f.matchCount(t, id))
			f.requireCountsConsistent(t)
		})
	}
}

func TestAttemptAutomaticMatch_WritesHistory(t *testing.T) {
	f := newFixture(t, "김치찌개")
	item := f.addItem(t, "김치찌개")

	history, err := f.menus.History(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, f.entryID(t, "김치찌개"), history[0].StandardMenuID)
	assert.Equal(t, entities.MatchAutomatic, history[0].Method)
	assert.Equal(t, []string{"김치찌개"}, history[0].MatchedTokens)
}

func TestAttemptAutomaticMatch_SkipsVerifiedUnlessForced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개")
	item := f.addItem(t, "김치찌개")
	require.True(t, item.IsVerified)
	commits := f.db.CommitCallCount

	res, err := f.matcher.AttemptAutomaticMatch(ctx, item.ID, MatchOptions{})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "김치찌개", res.StandardMenuName)
	assert.Equal(t, commits, f.db.CommitCallCount)

	// Forcing re-scores, but an identical verdict writes nothing.
	res, err = f.matcher.AttemptAutomaticMatch(ctx, item.ID, MatchOptions{Force: true})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, commits, f.db.CommitCallCount)
	assert.Equal(t, int64(1), f.matchCount(t, f.entryID(t, "김치찌개")))
}

func TestAttemptAutomaticMatch_RederivesItemKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "치킨버거")
	burger := f.entryID(t, "치킨버거")

	item := f.addItem(t, "스파이시 치킨버거")
	require.Equal(t, "스파이시 치킨버거", item.NormalizedName)
	require.NotNil(t, item.StandardMenuID)
	require.False(t, item.IsVerified)

	g := f.reopen(t, withStopwords("스파이시"))
	res, err := g.matcher.AttemptAutomaticMatch(ctx, item.ID, MatchOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 1.0, *res.Confidence, 1e-9)
	assert.True(t, res.Verified)

	stored, err := g.menus.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "치킨버거", stored.NormalizedName)
	assert.Equal(t, "스파이시 치킨버거", stored.OriginalName)
	assert.True(t, stored.IsVerified)
	assert.Equal(t, int64(1), g.matchCount(t, burger))
	g.requireCountsConsistent(t)
}

func TestAttemptAutomaticMatch_RederivedKeyWithSameVerdict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "스파이시 치킨버거")
	item := f.addItem(t, "스파이시 치킨버거")
	require.True(t, item.IsVerified)
	history := len(f.db.History)

	g := f.reopen(t, withStopwords("스파이시"))
	_, err := g.matcher.AttemptAutomaticMatch(ctx, item.ID, MatchOptions{Force: true})
	require.NoError(t, err)

	stored, err := g.menus.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "치킨버거", stored.NormalizedName)
	assert.True(t, stored.IsVerified)
	assert.Len(t, f.db.History, history)
	g.requireCountsConsistent(t)
}

// withdrawingDB runs withdraw once, right before the first match commit.
type withdrawingDB struct {
	*mocks.RelationalDB
	once     sync.Once
	withdraw func()
}

func (d *withdrawingDB) CommitMatch(ctx context.Context, tr ports.MatchTransition) error {
	d.once.Do(d.withdraw)
	return d.RelationalDB.CommitMatch(ctx, tr)
}

func TestAttemptAutomaticMatch_EntryWithdrawnBeforeCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to the next active candidate", func(t *testing.T) {
		f := newFixture(t, "김치찌개", "김치찌개 정식")
		kimchi := f.entryID(t, "김치찌개")
		set := f.entryID(t, "김치찌개 정식")
		_, err := f.catalog.AddAlias(ctx, set, "김치찌개")
		require.NoError(t, err)

		db := &withdrawingDB{RelationalDB: f.db, withdraw: func() {
			_, err := f.catalog.SetActive(ctx, kimchi, false)
			require.NoError(t, err)
		}}
		matcher := NewMatchService(db, f.engine, nil)

		item := &entities.MenuItem{OriginalName: "김치찌개", NormalizedName: "김치찌개"}
		require.NoError(t, f.db.CreateMenuItem(ctx, item))

		res, err := matcher.AttemptAutomaticMatch(ctx, item.ID, MatchOptions{})
		require.NoError(t, err)
		require.NotNil(t, res.StandardMenuID)
		assert.Equal(t, set, *res.StandardMenuID)
		assert.True(t, res.Verified)
		assert.Equal(t, int64(0), f.matchCount(t, kimchi))
		assert.Equal(t, int64(1), f.matchCount(t, set))
		f.requireCountsConsistent(t)
	})

	t.Run("leaves the item unmatched when nothing remains", func(t *testing.T) {
		f := newFixture(t, "김치찌개")
		kimchi := f.entryID(t, "김치찌개")

		db := &withdrawingDB{RelationalDB: f.db, withdraw: func() {
			_, err := f.catalog.SetActive(ctx, kimchi, false)
			require.NoError(t, err)
		}}
		matcher := NewMatchService(db, f.engine, nil)

		item := &entities.MenuItem{OriginalName: "김치찌개", NormalizedName: "김치찌개"}
		require.NoError(t, f.db.CreateMenuItem(ctx, item))

		res, err := matcher.AttemptAutomaticMatch(ctx, item.ID, MatchOptions{})
		require.NoError(t, err)
		assert.Equal(t, entities.MatchNone, res.Method)
		assert.Nil(t, res.StandardMenuID)

		stored, err := f.menus.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.StandardMenuID)
		assert.Equal(t, int64(0), f.matchCount(t, kimchi))
		f.requireCountsConsistent(t)
	})
}

func TestAttemptAutomaticMatch_NotFound(t *testing.T) {
	f := newFixture(t, "김치찌개")

	_, err := f.matcher.AttemptAutomaticMatch(context.Background(), 42, MatchOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestAttemptAutomaticMatch_IndexUnavailableFailsClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개")
	f.engine.Index.Invalidate()

	item, res, err := f.menus.Create(ctx, entities.MenuItemInput{Name: "김치찌개"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrIndexUnavailable))

	// The item is stored but left unmatched.
	require.NotNil(t, item)
	assert.NotZero(t, item.ID)
	assert.Equal(t, entities.MatchNone, item.MatchMethod)
	assert.Nil(t, item.StandardMenuID)
	assert.Nil(t, res.StandardMenuID)
	assert.Equal(t, int64(0), f.matchCount(t, f.entryID(t, "김치찌개")))
}

func TestAttemptAutomaticMatch_ConcurrentAttemptsCountOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개", "된장찌개")
	f.engine.Index.Invalidate()

	var ids []int64
	for _, name := range []string{"김치찌개", "된장찌개", "김치 찌개"} {
		item, _, err := f.menus.Create(ctx, entities.MenuItemInput{Name: name})
		require.Error(t, err)
		ids = append(ids, item.ID)
	}
	_, err := f.catalog.RebuildIndex(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.matcher.AttemptAutomaticMatch(ctx, id, MatchOptions{})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, int64(2), f.matchCount(t, f.entryID(t, "김치찌개")))
	assert.Equal(t, int64(1), f.matchCount(t, f.entryID(t, "된장찌개")))
	assert.Len(t, f.db.History, 3)
	f.requireCountsConsistent(t)
}

func TestApplyManualMatch_OverrideWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개", "된장찌개")
	kimchi := f.entryID(t, "김치찌개")
	doenjang := f.entryID(t, "된장찌개")

	item := f.addItem(t, "김치찌개")
	require.Equal(t, kimchi, *item.StandardMenuID)

	res, err := f.matcher.ApplyManualMatch(ctx, item.ID, doenjang, "kim")
	require.NoError(t, err)
	assert.Equal(t, entities.MatchManual, res.Method)
	assert.True(t, res.Verified)
	assert.Equal(t, 1.0, *res.Confidence)
	assert.Equal(t, "된장찌개", res.StandardMenuName)

	assert.Equal(t, int64(0), f.matchCount(t, kimchi))
	assert.Equal(t, int64(1), f.matchCount(t, doenjang))

	// Automatic matching never touches a manual item, even when forced.
	auto, err := f.matcher.AttemptAutomaticMatch(ctx, item.ID, MatchOptions{Force: true})
	require.NoError(t, err)
	assert.True(t, auto.Skipped)
	assert.Equal(t, doenjang, *auto.StandardMenuID)
	assert.Equal(t, entities.MatchManual, auto.Method)

	ledger, err := f.ledger.List(ctx, entities.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, item.ID, ledger[0].MenuItemID)
	assert.Equal(t, "김치찌개", ledger[0].NormalizedName)
	assert.Equal(t, kimchi, *ledger[0].PreviousRef)
	assert.Equal(t, doenjang, *ledger[0].NewRef)
	assert.Equal(t, "kim", ledger[0].Actor)
	assert.NotEmpty(t, ledger[0].ID)
	f.requireCountsConsistent(t)
}

func TestApplyManualMatch_SameTargetIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개", "된장찌개")
	doenjang := f.entryID(t, "된장찌개")
	item := f.addItem(t, "김치찌개")

	_, err := f.matcher.ApplyManualMatch(ctx, item.ID, doenjang, "kim")
	require.NoError(t, err)
	commits := f.db.CommitCallCount

	res, err := f.matcher.ApplyManualMatch(ctx, item.ID, doenjang, "lee")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, commits, f.db.CommitCallCount)
	assert.Len(t, f.db.Ledger, 1)
	assert.Equal(t, int64(1), f.matchCount(t, doenjang))
}

func TestApplyManualMatch_ReferenceErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture) int64
	}{
		{
			name: "missing entry",
			setup: func(t *testing.T, f *fixture) int64 {
				return 999
			},
		},
		{
			name: "inactive entry",
			setup: func(t *testing.T, f *fixture) int64 {
				id := f.entryID(t, "된장찌개")
				_, err := f.catalog.SetActive(context.Background(), id, false)
				require.NoError(t, err)
				return id
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, "김치찌개", "된장찌개")
			item := f.addItem(t, "김치찌개")
			before := item.State()

			target := tt.setup(t, f)
			_, err := f.matcher.ApplyManualMatch(ctx, item.ID, target, "kim")
			require.Error(t, err)
			assert.True(t, errors.Is(err, entities.ErrReference))

			after, err := f.menus.Get(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after.State())
			assert.Empty(t, f.db.Ledger)
			f.requireCountsConsistent(t)
		})
	}
}

func TestApplyManualMatch_DefaultsActor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개", "된장찌개")
	item := f.addItem(t, "아메리카노")

	_, err := f.matcher.ApplyManualMatch(ctx, item.ID, f.entryID(t, "된장찌개"), "")
	require.NoError(t, err)
	require.Len(t, f.db.Ledger, 1)
	assert.Equal(t, "unknown", f.db.Ledger[0].Actor)
	assert.Nil(t, f.db.Ledger[0].PreviousRef)
}

func TestClearMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "김치찌개")
	kimchi := f.entryID(t, "김치찌개")
	item := f.addItem(t, "김치찌개")

	res, err := f.matcher.ClearMatch(ctx, item.ID, "kim")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, entities.MatchNone, res.Method)
	assert.Equal(t, int64(0), f.matchCount(t, kimchi))

	require.Len(t, f.db.Ledger, 1)
	assert.Equal(t, kimchi, *f.db.Ledger[0].PreviousRef)
	assert.Nil(t, f.db.Ledger[0].NewRef)

	res, err = f.matcher.ClearMatch(ctx, item.ID, "kim")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Len(t, f.db.Ledger, 1)
}

func TestResolve_SemanticNominations(t *testing.T) {
	t.Run("nominated entries join the candidates", func(t *testing.T) {
		f := newFixture(t, "치킨", "양념치킨", "짜장면")
		jjajang := f.entryID(t, "짜장면")
		f.matcher.nominator = stubNominator{ids: []int64{jjajang, 12345}}

		res, err := f.matcher.Resolve(context.Background(), "치킨")
		require.NoError(t, err)
		assert.Equal(t, 3, res.CandidatesConsidered)
		assert.Equal(t, "치킨", res.StandardMenuName)
		assert.True(t, res.Verified)
	})

	t.Run("source failure falls back to lexical candidates", func(t *testing.T) {
		f := newFixtureWith(t, PromotionPolicy{}, stubNominator{err: errors.New("qdrant down")}, "치킨", "양념치킨")

		res, err := f.matcher.Resolve(context.Background(), "치킨")
		require.NoError(t, err)
		assert.Equal(t, 2, res.CandidatesConsidered)
		assert.Equal(t, "치킨", res.StandardMenuName)
	})
}

func TestResolve_TieGoesToLowestID(t *testing.T) {
	f := newFixture(t, "치킨", "치킨!")
	res, err := f.matcher.Resolve(context.Background(), "치킨")
	require.NoError(t, err)
	assert.Equal(t, f.entryID(t, "치킨"), *res.StandardMenuID)
}
