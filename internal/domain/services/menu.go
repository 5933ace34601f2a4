package services

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/matching"
	"github.com/ersonp/menu-core/internal/domain/ports"
)

const (
	// DefaultBatchLimit caps the item ids accepted by one batch match.
	DefaultBatchLimit = 100
	// DefaultRematchLimit caps the unmatched items visited by one rematch run.
	DefaultRematchLimit = 100

	batchConcurrency = 8
)

// BatchItemResult is the outcome for one id of a batch match.
type BatchItemResult struct {
	ItemID int64                 `json:"item_id"`
	Result *entities.MatchResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// PreviewResult is a dry-run resolution of a raw name.
type PreviewResult struct {
	Input          string               `json:"input"`
	NormalizedName string               `json:"normalized_name"`
	Result         entities.MatchResult `json:"result"`
}

// MenuService manages menu items and triggers matching around their lifecycle.
type MenuService struct {
	db         ports.RelationalDB
	engine     *matching.Engine
	matcher    *MatchService
	batchLimit int
	logger     *zap.SugaredLogger
}

// NewMenuService creates a new MenuService.
func NewMenuService(db ports.RelationalDB, engine *matching.Engine, matcher *MatchService, batchLimit int, logger *zap.SugaredLogger) *MenuService {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MenuService{
		db:         db,
		engine:     engine,
		matcher:    matcher,
		batchLimit: batchLimit,
		logger:     logger,
	}
}

// Create validates and stores a new item, then attempts an automatic match.
// When matching fails the stored item is still returned together with the error.
func (s *MenuService) Create(ctx context.Context, input entities.MenuItemInput) (*entities.MenuItem, entities.MatchResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, entities.MatchResult{}, entities.ValidationErrorf("menu item name is required")
	}
	if input.Price != nil && *input.Price < 0 {
		return nil, entities.MatchResult{}, entities.ValidationErrorf("price must not be negative, got %d", *input.Price)
	}
	if input.RestaurantID != nil {
		r, err := s.db.FindRestaurant(ctx, *input.RestaurantID)
		if err != nil {
			return nil, entities.MatchResult{}, errors.Wrap(err, "finding restaurant")
		}
		if r == nil {
			return nil, entities.MatchResult{}, entities.ValidationErrorf("restaurant %d does not exist", *input.RestaurantID)
		}
	}

	item := &entities.MenuItem{
		RestaurantID:   input.RestaurantID,
		OriginalName:   name,
		NormalizedName: s.engine.Normalizer.Normalize(name),
		Price:          input.Price,
		Description:    strings.TrimSpace(input.Description),
	}
	if err := s.db.CreateMenuItem(ctx, item); err != nil {
		return nil, entities.MatchResult{}, errors.Wrap(err, "creating menu item")
	}

	res, matchErr := s.matcher.AttemptAutomaticMatch(ctx, item.ID, MatchOptions{})

	stored, err := s.db.FindMenuItem(ctx, item.ID)
	if err != nil {
		return item, res, errors.Wrap(err, "reloading menu item")
	}
	if stored != nil {
		item = stored
	}
	return item, res, matchErr
}

// Update edits an item's raw fields. A rename re-normalizes the item and,
// unless it was matched manually, replaces its match with a fresh verdict.
func (s *MenuService) Update(ctx context.Context, id int64, update entities.MenuItemUpdate) (*entities.MenuItem, error) {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, entities.ValidationErrorf("menu item name is required")
	}
	if update.Price != nil && *update.Price < 0 {
		return nil, entities.ValidationErrorf("price must not be negative, got %d", *update.Price)
	}

	item, err := s.update(ctx, id, update)
	if item == nil {
		return nil, err
	}

	stored, findErr := s.db.FindMenuItem(ctx, id)
	if findErr != nil {
		return item, errors.Wrap(findErr, "reloading menu item")
	}
	if stored != nil {
		item = stored
	}
	return item, err
}

func (s *MenuService) update(ctx context.Context, id int64, update entities.MenuItemUpdate) (*entities.MenuItem, error) {
	unlock := s.engine.Locks.Lock(id)
	defer unlock()

	item, err := s.matcher.loadItem(ctx, id)
	if err != nil {
		return nil, err
	}

	renamed := false
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name != item.OriginalName {
			item.OriginalName = name
			key := s.engine.Normalizer.Normalize(name)
			renamed = key != item.NormalizedName
			item.NormalizedName = key
		}
	}
	if update.Price != nil {
		item.Price = update.Price
	}
	if update.Description != nil {
		item.Description = strings.TrimSpace(*update.Description)
	}

	if !renamed || item.IsManual() {
		if err := s.db.UpdateMenuItemDetails(ctx, item); err != nil {
			return nil, errors.Wrapf(err, "updating menu item %d", id)
		}
		return item, nil
	}

	// A rename replaces the verdict even when it was verified.
	res, resolveErr := s.matcher.Resolve(ctx, item.NormalizedName)
	if resolveErr != nil {
		res = entities.MatchResult{Method: entities.MatchNone}
	}
	tr := ports.MatchTransition{
		ItemID:  id,
		Next:    res.State(),
		Details: item,
		History: historyFor(id, &res),
	}
	if err := s.db.CommitMatch(ctx, tr); err != nil {
		return nil, errors.Wrapf(err, "updating menu item %d", id)
	}

	s.logger.Infow("menu item renamed", "item", id, "key", item.NormalizedName, "entry", refString(res.StandardMenuID))
	item.Apply(res.State())
	return item, resolveErr
}

// Delete removes an item and releases its match count.
func (s *MenuService) Delete(ctx context.Context, id int64) error {
	unlock := s.engine.Locks.Lock(id)
	defer unlock()

	if err := s.db.DeleteMenuItem(ctx, id); err != nil {
		return errors.Wrapf(err, "deleting menu item %d", id)
	}
	s.logger.Infow("menu item deleted", "item", id)
	return nil
}

// Get returns an item by id.
func (s *MenuService) Get(ctx context.Context, id int64) (*entities.MenuItem, error) {
	return s.matcher.loadItem(ctx, id)
}

// List returns items matching the filter.
func (s *MenuService) List(ctx context.Context, filter ports.MenuItemFilter) ([]entities.MenuItem, error) {
	return s.db.ListMenuItems(ctx, filter)
}

// History returns the accepted matches of an item, newest first.
func (s *MenuService) History(ctx context.Context, id int64) ([]entities.MatchHistory, error) {
	if _, err := s.matcher.loadItem(ctx, id); err != nil {
		return nil, err
	}
	return s.db.ListMatchHistory(ctx, id)
}

// Preview normalizes and resolves a raw name without storing anything.
func (s *MenuService) Preview(ctx context.Context, raw string) (PreviewResult, error) {
	key := s.engine.Normalizer.Normalize(raw)
	res, err := s.matcher.Resolve(ctx, key)
	return PreviewResult{Input: raw, NormalizedName: key, Result: res}, err
}

// BatchMatch runs automatic matching over ids concurrently.
// Results keep the input order; per-item failures are reported inline.
func (s *MenuService) BatchMatch(ctx context.Context, ids []int64, opts MatchOptions) ([]BatchItemResult, error) {
	if len(ids) > s.batchLimit {
		return nil, entities.ValidationErrorf("batch holds %d items, limit is %d", len(ids), s.batchLimit)
	}
	return s.matchAll(ctx, ids, opts)
}

// RematchUnmatched retries automatic matching on up to limit unmatched items.
func (s *MenuService) RematchUnmatched(ctx context.Context, limit int) (entities.RematchSummary, error) {
	if limit <= 0 {
		limit = DefaultRematchLimit
	}
	if !s.engine.Index.Ready() {
		return entities.RematchSummary{}, entities.ErrIndexUnavailable
	}

	method := entities.MatchNone
	items, err := s.db.ListMenuItems(ctx, ports.MenuItemFilter{Method: &method, Limit: limit})
	if err != nil {
		return entities.RematchSummary{}, errors.Wrap(err, "listing unmatched items")
	}

	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}

	results, err := s.matchAll(ctx, ids, MatchOptions{})
	if err != nil {
		return entities.RematchSummary{}, err
	}

	summary := entities.RematchSummary{Total: len(results)}
	failed := 0
	for _, r := range results {
		if r.Result != nil && r.Result.StandardMenuID != nil {
			summary.Matched++
		}
		if r.Error != "" {
			failed++
		}
	}
	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Matched) / float64(summary.Total)
	}

	s.logger.Infow("rematch finished", "total", summary.Total, "matched", summary.Matched, "failed", failed)
	return summary, nil
}

func (s *MenuService) matchAll(ctx context.Context, ids []int64, opts MatchOptions) ([]BatchItemResult, error) {
	results := make([]BatchItemResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			res, err := s.matcher.AttemptAutomaticMatch(gctx, id, opts)
			results[i] = BatchItemResult{ItemID: id, Result: &res}
			if err != nil {
				results[i].Error = err.Error()
				if errors.Is(err, entities.ErrNotFound) {
					results[i].Result = nil
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
