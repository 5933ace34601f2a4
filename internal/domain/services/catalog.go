package services

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/matching"
	"github.com/ersonp/menu-core/internal/domain/ports"
)

// DefaultPopularLimit is the number of entries returned by Popular when none is given.
const DefaultPopularLimit = 10

// CatalogInput holds the caller-supplied fields for a new catalog entry.
type CatalogInput struct {
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// EntryMirror receives catalog edits besides the candidate index.
type EntryMirror interface {
	UpsertEntries(ctx context.Context, entries []entities.StandardMenuEntry) error
	RemoveEntry(ctx context.Context, id int64) error
}

// CatalogService manages standard menu entries and keeps the candidate
// index in step with every catalog edit.
type CatalogService struct {
	db     ports.RelationalDB
	engine *matching.Engine
	mirror EntryMirror
	logger *zap.SugaredLogger
}

// NewCatalogService creates a new CatalogService. mirror may be nil.
func NewCatalogService(db ports.RelationalDB, engine *matching.Engine, mirror EntryMirror, logger *zap.SugaredLogger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CatalogService{
		db:     db,
		engine: engine,
		mirror: mirror,
		logger: logger,
	}
}

// Create validates and stores a new active entry.
func (s *CatalogService) Create(ctx context.Context, input CatalogInput) (*entities.StandardMenuEntry, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, entities.ValidationErrorf("standard menu name is required")
	}
	key := s.engine.Normalizer.Normalize(name)
	if key == "" {
		return nil, entities.ValidationErrorf("standard menu name '%s' has no matchable text", name)
	}

	entry := &entities.StandardMenuEntry{
		Name:           name,
		NormalizedName: key,
		Category:       strings.TrimSpace(input.Category),
		Description:    strings.TrimSpace(input.Description),
		IsActive:       true,
	}
	if err := s.db.CreateStandardMenu(ctx, entry); err != nil {
		return nil, errors.Wrap(err, "creating standard menu")
	}

	s.publish(ctx, entry)
	s.logger.Infow("standard menu created", "entry", entry.ID, "name", entry.Name, "key", entry.NormalizedName)
	return entry, nil
}

// Update edits an entry. A name change re-derives its normalized key.
func (s *CatalogService) Update(ctx context.Context, id int64, update entities.StandardMenuUpdate) (*entities.StandardMenuEntry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, entities.ValidationErrorf("standard menu name is required")
		}
		key := s.engine.Normalizer.Normalize(name)
		if key == "" {
			return nil, entities.ValidationErrorf("standard menu name '%s' has no matchable text", name)
		}
		entry.Name = name
		entry.NormalizedName = key
	}
	if update.Category != nil {
		entry.Category = strings.TrimSpace(*update.Category)
	}
	if update.Description != nil {
		entry.Description = strings.TrimSpace(*update.Description)
	}
	if update.IsActive != nil {
		entry.IsActive = *update.IsActive
	}

	if err := s.db.UpdateStandardMenu(ctx, entry); err != nil {
		return nil, errors.Wrapf(err, "updating standard menu %d", id)
	}

	entry, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, entry)
	return entry, nil
}

// SetActive activates or deactivates an entry. Inactive entries stay
// referenced by existing items but receive no new matches.
func (s *CatalogService) SetActive(ctx context.Context, id int64, active bool) (*entities.StandardMenuEntry, error) {
	return s.Update(ctx, id, entities.StandardMenuUpdate{IsActive: &active})
}

// Delete removes an entry that no menu item references.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	if err := s.db.DeleteStandardMenu(ctx, id); err != nil {
		if errors.Is(err, entities.ErrReference) {
			return errors.WithHint(err, "deactivate the entry instead of deleting it")
		}
		return errors.Wrapf(err, "deleting standard menu %d", id)
	}

	s.engine.Index.Remove(id)
	if s.mirror != nil {
		if err := s.mirror.RemoveEntry(ctx, id); err != nil {
			s.logger.Warnw("semantic index removal failed", "entry", id, "error", err)
		}
	}
	s.logger.Infow("standard menu deleted", "entry", id)
	return nil
}

// Get returns an entry by id.
func (s *CatalogService) Get(ctx context.Context, id int64) (*entities.StandardMenuEntry, error) {
	entry, err := s.db.FindStandardMenu(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "finding standard menu %d", id)
	}
	if entry == nil {
		return nil, entities.NotFoundErrorf("standard menu %d not found", id)
	}
	return entry, nil
}

// List returns catalog entries ordered by id.
func (s *CatalogService) List(ctx context.Context, activeOnly bool) ([]entities.StandardMenuEntry, error) {
	return s.db.ListStandardMenus(ctx, activeOnly)
}

// Popular returns the most matched active entries.
func (s *CatalogService) Popular(ctx context.Context, limit int) ([]entities.StandardMenuEntry, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	return s.db.PopularStandardMenus(ctx, limit)
}

// RebuildIndex re-derives every stored key with the current normalizer and
// reloads the active entries into the candidate index.
func (s *CatalogService) RebuildIndex(ctx context.Context) (int, error) {
	entries, err := s.db.ListStandardMenus(ctx, false)
	if err != nil {
		return 0, entities.IndexUnavailable(err)
	}

	active := make([]entities.StandardMenuEntry, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		if err := s.refreshKeys(ctx, entry); err != nil {
			return 0, entities.IndexUnavailable(err)
		}
		if entry.IsActive {
			active = append(active, *entry)
		}
	}

	s.engine.Index.Index(active)
	s.logger.Infow("candidate index rebuilt", "entries", len(active))
	return len(active), nil
}

// refreshKeys rewrites an entry's normalized name and aliases when the
// normalizer no longer derives the stored values. entry is updated in place.
func (s *CatalogService) refreshKeys(ctx context.Context, entry *entities.StandardMenuEntry) error {
	key := s.engine.Normalizer.Normalize(entry.Name)
	if key != entry.NormalizedName {
		if key == "" {
			s.logger.Warnw("standard menu name has no matchable text", "entry", entry.ID, "name", entry.Name)
		}
		s.logger.Infow("standard menu key re-derived", "entry", entry.ID, "from", entry.NormalizedName, "to", key)
		entry.NormalizedName = key
		if err := s.db.UpdateStandardMenu(ctx, entry); err != nil {
			return errors.Wrapf(err, "refreshing key of standard menu %d", entry.ID)
		}
	}

	aliases := make([]string, 0, len(entry.Aliases))
	for _, alias := range entry.Aliases {
		next := s.engine.Normalizer.Normalize(alias)
		if next == alias {
			aliases = append(aliases, alias)
			continue
		}

		if err := s.db.DeleteAlias(ctx, entry.ID, alias); err != nil {
			return errors.Wrapf(err, "refreshing alias of standard menu %d", entry.ID)
		}
		if next == "" || next == entry.NormalizedName || containsKey(aliases, next) {
			s.logger.Infow("alias dropped", "entry", entry.ID, "alias", alias)
			continue
		}
		if err := s.db.SaveAlias(ctx, entry.ID, next); err != nil {
			if errors.Is(err, entities.ErrConflict) {
				s.logger.Warnw("alias dropped", "entry", entry.ID, "alias", alias, "error", err)
				continue
			}
			return errors.Wrapf(err, "refreshing alias of standard menu %d", entry.ID)
		}
		s.logger.Infow("alias re-derived", "entry", entry.ID, "from", alias, "to", next)
		aliases = append(aliases, next)
	}
	entry.Aliases = aliases
	return nil
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// AddAlias accepts a raw spelling as an extra key of an entry.
func (s *CatalogService) AddAlias(ctx context.Context, id int64, alias string) (*entities.StandardMenuEntry, error) {
	key := s.engine.Normalizer.Normalize(alias)
	if key == "" {
		return nil, entities.ValidationErrorf("alias '%s' has no matchable text", alias)
	}

	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.HasKey(key) {
		return entry, nil
	}

	if err := s.db.SaveAlias(ctx, id, key); err != nil {
		return nil, errors.Wrapf(err, "saving alias for standard menu %d", id)
	}

	entry, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, entry)
	s.logger.Infow("alias added", "entry", id, "alias", key)
	return entry, nil
}

// RemoveAlias drops an alias from an entry.
func (s *CatalogService) RemoveAlias(ctx context.Context, id int64, alias string) (*entities.StandardMenuEntry, error) {
	key := s.engine.Normalizer.Normalize(alias)
	if err := s.db.DeleteAlias(ctx, id, key); err != nil {
		return nil, errors.Wrapf(err, "removing alias from standard menu %d", id)
	}

	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, entry)
	s.logger.Infow("alias removed", "entry", id, "alias", key)
	return entry, nil
}

// Seed creates every seed entry whose name is not taken yet.
func (s *CatalogService) Seed(ctx context.Context, seeds []entities.SeedStandardMenu) (int, error) {
	existing, err := s.db.ListStandardMenus(ctx, false)
	if err != nil {
		return 0, errors.Wrap(err, "listing standard menus")
	}

	taken := make(map[string]bool, len(existing))
	for i := range existing {
		taken[existing[i].Name] = true
	}

	created := 0
	for _, seed := range seeds {
		if taken[seed.Name] {
			continue
		}
		if _, err := s.Create(ctx, CatalogInput{Name: seed.Name, Category: seed.Category}); err != nil {
			return created, errors.Wrapf(err, "seeding %s", seed.Name)
		}
		taken[seed.Name] = true
		created++
	}
	return created, nil
}

// publish pushes an entry into the candidate index and the mirror.
func (s *CatalogService) publish(ctx context.Context, entry *entities.StandardMenuEntry) {
	s.engine.Index.Upsert(*entry)

	if s.mirror == nil {
		return
	}
	if !entry.IsActive {
		if err := s.mirror.RemoveEntry(ctx, entry.ID); err != nil {
			s.logger.Warnw("semantic index removal failed", "entry", entry.ID, "error", err)
		}
		return
	}
	if err := s.mirror.UpsertEntries(ctx, []entities.StandardMenuEntry{*entry}); err != nil {
		s.logger.Warnw("semantic index update failed", "entry", entry.ID, "error", err)
	}
}
