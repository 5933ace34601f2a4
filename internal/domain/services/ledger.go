package services

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/ports"
)

// DefaultPromoteThreshold is the number of agreeing overrides that make a name an alias candidate.
const DefaultPromoteThreshold = 3

// PromotionPolicy controls automatic alias promotion.
type PromotionPolicy struct {
	AutoPromote bool
	Threshold   int
}

// LedgerService reads the override ledger and turns repeated overrides into alias suggestions.
type LedgerService struct {
	db      ports.RelationalDB
	catalog *CatalogService
	policy  PromotionPolicy
	logger  *zap.SugaredLogger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(db ports.RelationalDB, catalog *CatalogService, policy PromotionPolicy, logger *zap.SugaredLogger) *LedgerService {
	if policy.Threshold < 1 {
		policy.Threshold = DefaultPromoteThreshold
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LedgerService{
		db:      db,
		catalog: catalog,
		policy:  policy,
		logger:  logger,
	}
}

// List returns ledger entries, newest first.
func (s *LedgerService) List(ctx context.Context, filter entities.LedgerFilter) ([]entities.LedgerEntry, error) {
	return s.db.ListLedger(ctx, filter)
}

// SuggestAliases returns item names that at least minOccurrences overrides
// sent to the same active entry, and never to any other entry.
// Names already known to the entry are left out.
func (s *LedgerService) SuggestAliases(ctx context.Context, minOccurrences int) ([]entities.AliasSuggestion, error) {
	if minOccurrences < 1 {
		minOccurrences = s.policy.Threshold
	}

	ledger, err := s.db.ListLedger(ctx, entities.LedgerFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "listing ledger")
	}

	var result []entities.AliasSuggestion
	for _, t := range tallyOverrides(ledger) {
		if t.conflicting || t.count < minOccurrences {
			continue
		}
		ok, err := s.acceptable(ctx, t.name, t.entryID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		result = append(result, entities.AliasSuggestion{
			Alias:          t.name,
			StandardMenuID: t.entryID,
			Occurrences:    t.count,
			Actors:         t.sortedActors(),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Occurrences != result[j].Occurrences {
			return result[i].Occurrences > result[j].Occurrences
		}
		return result[i].Alias < result[j].Alias
	})
	return result, nil
}

// AfterOverride promotes key to an alias of entryID once enough overrides agree.
// It does nothing unless auto promotion is enabled.
func (s *LedgerService) AfterOverride(ctx context.Context, key string, entryID int64) {
	if !s.policy.AutoPromote || key == "" {
		return
	}

	suggestions, err := s.SuggestAliases(ctx, s.policy.Threshold)
	if err != nil {
		s.logger.Warnw("alias promotion check failed", "key", key, "error", err)
		return
	}

	for _, sug := range suggestions {
		if sug.Alias != key || sug.StandardMenuID != entryID {
			continue
		}
		if _, err := s.catalog.AddAlias(ctx, entryID, key); err != nil {
			s.logger.Warnw("alias promotion failed", "entry", entryID, "alias", key, "error", err)
			return
		}
		s.logger.Infow("alias promoted", "entry", entryID, "alias", key, "occurrences", sug.Occurrences)
		return
	}
}

func (s *LedgerService) acceptable(ctx context.Context, name string, entryID int64) (bool, error) {
	entry, err := s.db.FindStandardMenu(ctx, entryID)
	if err != nil {
		return false, errors.Wrapf(err, "finding standard menu %d", entryID)
	}
	return entry != nil && entry.IsActive && !entry.HasKey(name), nil
}

// overrideTally counts the overrides of one item name.
type overrideTally struct {
	name        string
	entryID     int64
	count       int
	conflicting bool
	actors      map[string]struct{}
}

func (t *overrideTally) sortedActors() []string {
	actors := make([]string, 0, len(t.actors))
	for a := range t.actors {
		actors = append(actors, a)
	}
	sort.Strings(actors)
	return actors
}

// tallyOverrides groups overrides by item name. Clears carry no target and are ignored.
func tallyOverrides(ledger []entities.LedgerEntry) []*overrideTally {
	byName := make(map[string]*overrideTally)
	var order []string

	for _, e := range ledger {
		if e.NewRef == nil || e.NormalizedName == "" {
			continue
		}
		t, ok := byName[e.NormalizedName]
		if !ok {
			t = &overrideTally{name: e.NormalizedName, entryID: *e.NewRef, actors: make(map[string]struct{})}
			byName[e.NormalizedName] = t
			order = append(order, e.NormalizedName)
		}
		if *e.NewRef != t.entryID {
			t.conflicting = true
		}
		t.count++
		t.actors[e.Actor] = struct{}{}
	}

	result := make([]*overrideTally, 0, len(order))
	for _, name := range order {
		result = append(result, byName[name])
	}
	return result
}
