package services

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/matching"
	"github.com/ersonp/menu-core/internal/domain/ports"
)

// MatchOptions controls an automatic match attempt.
type MatchOptions struct {
	Force bool // Re-score items whose automatic match is already verified
}

// Nominator proposes extra catalog entries for a normalized key.
type Nominator interface {
	Nominate(ctx context.Context, key string) ([]int64, error)
}

// AliasPromoter is notified after every manual override commits.
type AliasPromoter interface {
	AfterOverride(ctx context.Context, key string, entryID int64)
}

// MatchService resolves menu items against the catalog and owns every
// write of an item's match state.
type MatchService struct {
	db        ports.RelationalDB
	engine    *matching.Engine
	nominator Nominator
	promoter  AliasPromoter
	logger    *zap.SugaredLogger
}

// MatchServiceOption configures optional collaborators.
type MatchServiceOption func(*MatchService)

// WithNominator adds a semantic candidate source.
func WithNominator(n Nominator) MatchServiceOption {
	return func(s *MatchService) {
		s.nominator = n
	}
}

// WithPromoter adds an alias promoter invoked after manual overrides.
func WithPromoter(p AliasPromoter) MatchServiceOption {
	return func(s *MatchService) {
		s.promoter = p
	}
}

// NewMatchService creates a new MatchService.
func NewMatchService(db ports.RelationalDB, engine *matching.Engine, logger *zap.SugaredLogger, opts ...MatchServiceOption) *MatchService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &MatchService{
		db:     db,
		engine: engine,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve computes the match for a normalized key without writing anything.
func (s *MatchService) Resolve(ctx context.Context, key string) (entities.MatchResult, error) {
	var extra []int64
	if s.nominator != nil && key != "" {
		ids, err := s.nominator.Nominate(ctx, key)
		if err != nil {
			s.logger.Warnw("semantic candidate source failed", "key", key, "error", err)
		} else {
			extra = ids
		}
	}

	out, err := s.engine.Evaluate(key, extra)
	if err != nil {
		return entities.MatchResult{Method: entities.MatchNone}, err
	}
	return resultFromOutcome(key, out), nil
}

// AttemptAutomaticMatch scores an item against the catalog and commits the verdict.
// Manual items, and verified automatic items unless forced, are returned untouched.
// When the index is unavailable the item keeps its current state.
func (s *MatchService) AttemptAutomaticMatch(ctx context.Context, itemID int64, opts MatchOptions) (entities.MatchResult, error) {
	unlock := s.engine.Locks.Lock(itemID)
	defer unlock()

	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return entities.MatchResult{ItemID: itemID, Method: entities.MatchNone}, err
	}

	if item.IsManual() || (item.MatchMethod == entities.MatchAutomatic && item.IsVerified && !opts.Force) {
		s.logger.Debugw("match skipped", "item", item.ID, "method", item.MatchMethod, "verified", item.IsVerified)
		return s.currentResult(ctx, item, true), nil
	}

	key, details := s.liveKey(item)
	res, err := s.resolveAndCommit(ctx, item, key, details)
	if errors.Is(err, entities.ErrReference) {
		// The chosen entry was deactivated or deleted after scoring.
		s.logger.Infow("matched entry withdrawn, resolving again", "item", item.ID, "error", err)
		res, err = s.resolveAndCommit(ctx, item, key, details)
		if errors.Is(err, entities.ErrReference) {
			res = entities.MatchResult{ItemID: item.ID, Method: entities.MatchNone}
			err = s.commitAutomatic(ctx, item, details, &res)
		}
	}
	if err != nil {
		s.logger.Warnw("automatic match failed", "item", item.ID, "error", err)
		return s.currentResult(ctx, item, false), err
	}

	if res.StandardMenuID != nil {
		s.logger.Infow("match accepted",
			"item", item.ID,
			"entry", *res.StandardMenuID,
			"confidence", *res.Confidence,
			"verified", res.Verified,
		)
	} else {
		s.logger.Infow("no match", "item", item.ID, "key", key, "considered", res.CandidatesConsidered)
	}
	return res, nil
}

func (s *MatchService) resolveAndCommit(ctx context.Context, item *entities.MenuItem, key string, details *entities.MenuItem) (entities.MatchResult, error) {
	res, err := s.Resolve(ctx, key)
	if err != nil {
		return res, err
	}
	res.ItemID = item.ID
	return res, s.commitAutomatic(ctx, item, details, &res)
}

// commitAutomatic stores res as the item's state. An unchanged state is only
// written when details carries a refreshed key.
func (s *MatchService) commitAutomatic(ctx context.Context, item *entities.MenuItem, details *entities.MenuItem, res *entities.MatchResult) error {
	next := res.State()
	tr := ports.MatchTransition{ItemID: item.ID, Next: next, Details: details}
	if sameState(item.State(), next) {
		if details == nil {
			return nil
		}
	} else {
		tr.History = historyFor(item.ID, res)
	}

	if err := s.db.CommitMatch(ctx, tr); err != nil {
		return errors.Wrapf(err, "committing match for item %d", item.ID)
	}
	return nil
}

// liveKey derives the item's key from its raw name with the current
// normalizer. details is non-nil when the stored key is stale.
func (s *MatchService) liveKey(item *entities.MenuItem) (string, *entities.MenuItem) {
	key := s.engine.Normalizer.Normalize(item.OriginalName)
	if key == item.NormalizedName {
		return key, nil
	}
	refreshed := *item
	refreshed.NormalizedName = key
	return key, &refreshed
}

// ApplyManualMatch points an item at an active catalog entry on behalf of actor.
// The item becomes verified and immune to automatic re-matching.
func (s *MatchService) ApplyManualMatch(ctx context.Context, itemID, entryID int64, actor string) (entities.MatchResult, error) {
	res, key, changed, err := s.applyManualMatch(ctx, itemID, entryID, actorOrDefault(actor))
	if err != nil {
		return res, err
	}
	if changed && s.promoter != nil {
		s.promoter.AfterOverride(ctx, key, entryID)
	}
	return res, nil
}

func (s *MatchService) applyManualMatch(ctx context.Context, itemID, entryID int64, actor string) (entities.MatchResult, string, bool, error) {
	unlock := s.engine.Locks.Lock(itemID)
	defer unlock()

	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return entities.MatchResult{ItemID: itemID, Method: entities.MatchNone}, "", false, err
	}

	entry, err := s.db.FindStandardMenu(ctx, entryID)
	if err != nil {
		return entities.MatchResult{}, "", false, errors.Wrapf(err, "finding standard menu %d", entryID)
	}
	if entry == nil || !entry.IsActive {
		return s.currentResult(ctx, item, false), "", false,
			entities.ReferenceErrorf("standard menu %d is inactive or missing", entryID)
	}

	key, details := s.liveKey(item)
	if item.IsManual() && item.StandardMenuID != nil && *item.StandardMenuID == entryID {
		return s.currentResult(ctx, item, true), key, false, nil
	}

	confidence := 1.0
	res := entities.MatchResult{
		ItemID:           item.ID,
		StandardMenuID:   &entryID,
		StandardMenuName: entry.Name,
		Confidence:       &confidence,
		Method:           entities.MatchManual,
		Verified:         true,
		MatchedTokens:    matching.SharedTokens(key, entry.NormalizedName),
	}

	tr := ports.MatchTransition{
		ItemID:  item.ID,
		Next:    res.State(),
		Details: details,
		History: historyFor(item.ID, &res),
		Ledger: &entities.LedgerEntry{
			MenuItemID:     item.ID,
			NormalizedName: key,
			PreviousRef:    item.StandardMenuID,
			NewRef:         &entryID,
			Actor:          actor,
		},
	}
	if err := s.db.CommitMatch(ctx, tr); err != nil {
		return s.currentResult(ctx, item, false), "", false, errors.Wrapf(err, "committing override for item %d", item.ID)
	}

	s.logger.Infow("manual override",
		"item", item.ID,
		"entry", entryID,
		"previous", refString(item.StandardMenuID),
		"actor", actor,
	)
	return res, key, true, nil
}

// ClearMatch returns an item to the unmatched state on behalf of actor.
func (s *MatchService) ClearMatch(ctx context.Context, itemID int64, actor string) (entities.MatchResult, error) {
	actor = actorOrDefault(actor)

	unlock := s.engine.Locks.Lock(itemID)
	defer unlock()

	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return entities.MatchResult{ItemID: itemID, Method: entities.MatchNone}, err
	}

	res := entities.MatchResult{ItemID: item.ID, Method: entities.MatchNone}
	if !item.IsMatched() && item.MatchMethod == entities.MatchNone {
		res.Skipped = true
		return res, nil
	}

	key, details := s.liveKey(item)
	tr := ports.MatchTransition{
		ItemID:  item.ID,
		Next:    entities.Unmatched(),
		Details: details,
		Ledger: &entities.LedgerEntry{
			MenuItemID:     item.ID,
			NormalizedName: key,
			PreviousRef:    item.StandardMenuID,
			Actor:          actor,
		},
	}
	if err := s.db.CommitMatch(ctx, tr); err != nil {
		return s.currentResult(ctx, item, false), errors.Wrapf(err, "clearing match for item %d", item.ID)
	}

	s.logger.Infow("match cleared", "item", item.ID, "previous", refString(item.StandardMenuID), "actor", actor)
	return res, nil
}

func (s *MatchService) loadItem(ctx context.Context, itemID int64) (*entities.MenuItem, error) {
	item, err := s.db.FindMenuItem(ctx, itemID)
	if err != nil {
		return nil, errors.Wrapf(err, "finding menu item %d", itemID)
	}
	if item == nil {
		return nil, entities.NotFoundErrorf("menu item %d not found", itemID)
	}
	return item, nil
}

// currentResult describes the item's stored state as a MatchResult.
func (s *MatchService) currentResult(ctx context.Context, item *entities.MenuItem, skipped bool) entities.MatchResult {
	res := entities.MatchResult{
		ItemID:         item.ID,
		StandardMenuID: item.StandardMenuID,
		Confidence:     item.MatchConfidence,
		Method:         item.MatchMethod,
		Verified:       item.IsVerified,
		Skipped:        skipped,
	}
	if item.StandardMenuID != nil {
		if c, ok := s.engine.Index.Lookup(*item.StandardMenuID); ok {
			res.StandardMenuName = c.Name
		} else if entry, err := s.db.FindStandardMenu(ctx, *item.StandardMenuID); err == nil && entry != nil {
			res.StandardMenuName = entry.Name
		}
	}
	return res
}

func resultFromOutcome(key string, out matching.Outcome) entities.MatchResult {
	res := entities.MatchResult{Method: entities.MatchNone, CandidatesConsidered: out.Considered}
	if out.Best == nil || !out.Accepted {
		return res
	}

	id := out.Best.ID
	confidence := out.Best.Score
	res.StandardMenuID = &id
	res.StandardMenuName = out.Best.Name
	res.Confidence = &confidence
	res.Method = entities.MatchAutomatic
	res.Verified = out.Verified
	res.MatchedTokens = matching.SharedTokens(key, out.Best.MatchedKey)
	return res
}

func historyFor(itemID int64, res *entities.MatchResult) *entities.MatchHistory {
	if res.StandardMenuID == nil {
		return nil
	}
	h := &entities.MatchHistory{
		MenuItemID:     itemID,
		StandardMenuID: *res.StandardMenuID,
		Method:         res.Method,
		MatchedTokens:  res.MatchedTokens,
	}
	if res.Confidence != nil {
		h.Confidence = *res.Confidence
	}
	return h
}

func sameState(a, b entities.MatchState) bool {
	if a.Method != b.Method || a.Verified != b.Verified {
		return false
	}
	if !sameRef(a.StandardMenuID, b.StandardMenuID) {
		return false
	}
	if (a.Confidence == nil) != (b.Confidence == nil) {
		return false
	}
	return a.Confidence == nil || *a.Confidence == *b.Confidence
}

func sameRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func refString(ref *int64) any {
	if ref == nil {
		return "none"
	}
	return *ref
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "unknown"
	}
	return actor
}
