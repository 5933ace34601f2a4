package ports

import (
	"context"

	"github.com/ersonp/menu-core/internal/domain/entities"
)

// SemanticIndex stores catalog entry embeddings and nominates entries by
// vector similarity. It only proposes candidates; scoring stays lexical.
type SemanticIndex interface {
	// UpsertEntries stores or replaces entry embeddings.
	UpsertEntries(ctx context.Context, points []entities.SemanticPoint) error

	// Search returns the entries closest to the embedding.
	Search(ctx context.Context, embedding []float32, limit int) ([]entities.SemanticHit, error)

	// DeleteEntry removes a single entry.
	DeleteEntry(ctx context.Context, id int64) error

	// DeleteAll removes every stored entry.
	DeleteAll(ctx context.Context) error
}
