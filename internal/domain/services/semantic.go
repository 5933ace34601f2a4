package services

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/ports"
)

// DefaultSemanticLimit is the number of entries nominated per lookup.
const DefaultSemanticLimit = 5

// SemanticService mirrors catalog entries into a vector index and nominates
// entries close to a key. Nominated entries are still scored lexically.
type SemanticService struct {
	embedder    ports.Embedder
	index       ports.SemanticIndex
	collections ports.CollectionManager
	vectorSize  uint64
	limit       int
	logger      *zap.SugaredLogger
}

// NewSemanticService creates a new SemanticService.
func NewSemanticService(
	embedder ports.Embedder,
	index ports.SemanticIndex,
	collections ports.CollectionManager,
	vectorSize uint64,
	limit int,
	logger *zap.SugaredLogger,
) *SemanticService {
	if limit <= 0 {
		limit = DefaultSemanticLimit
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SemanticService{
		embedder:    embedder,
		index:       index,
		collections: collections,
		vectorSize:  vectorSize,
		limit:       limit,
		logger:      logger,
	}
}

// Nominate returns the ids of the entries nearest to key.
func (s *SemanticService) Nominate(ctx context.Context, key string) ([]int64, error) {
	embedding, err := s.embedder.Embed(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "embedding key")
	}

	hits, err := s.index.Search(ctx, embedding, s.limit)
	if err != nil {
		return nil, errors.Wrap(err, "searching semantic index")
	}

	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.StandardMenuID)
	}
	return ids, nil
}

// UpsertEntries embeds and stores entries.
func (s *SemanticService) UpsertEntries(ctx context.Context, entries []entities.StandardMenuEntry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i := range entries {
		texts[i] = entryText(&entries[i])
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return errors.Wrap(err, "embedding entries")
	}
	if len(embeddings) != len(entries) {
		return errors.Newf("embedder returned %d vectors for %d entries", len(embeddings), len(entries))
	}

	points := make([]entities.SemanticPoint, len(entries))
	for i := range entries {
		points[i] = entities.SemanticPoint{
			StandardMenuID: entries[i].ID,
			Name:           entries[i].Name,
			NormalizedName: entries[i].NormalizedName,
			Category:       entries[i].Category,
			Embedding:      embeddings[i],
		}
	}
	return s.index.UpsertEntries(ctx, points)
}

// RemoveEntry deletes one entry from the vector index.
func (s *SemanticService) RemoveEntry(ctx context.Context, id int64) error {
	return s.index.DeleteEntry(ctx, id)
}

// Sync replaces the vector index contents with the active entries.
func (s *SemanticService) Sync(ctx context.Context, entries []entities.StandardMenuEntry) (int, error) {
	if err := s.collections.EnsureCollection(ctx, s.vectorSize); err != nil {
		return 0, errors.Wrap(err, "ensuring collection")
	}
	if err := s.index.DeleteAll(ctx); err != nil {
		return 0, errors.Wrap(err, "clearing semantic index")
	}

	active := make([]entities.StandardMenuEntry, 0, len(entries))
	for i := range entries {
		if entries[i].IsActive {
			active = append(active, entries[i])
		}
	}
	if err := s.UpsertEntries(ctx, active); err != nil {
		return 0, err
	}

	s.logger.Infow("semantic index synced", "entries", len(active))
	return len(active), nil
}

// entryText is the text embedded for an entry: its keys and category.
func entryText(e *entities.StandardMenuEntry) string {
	text := strings.Join(e.Keys(), ", ")
	if e.Category != "" {
		text += " (" + e.Category + ")"
	}
	return text
}
