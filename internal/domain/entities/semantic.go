package entities

// SemanticPoint is a catalog entry embedding stored in the vector index.
type SemanticPoint struct {
	StandardMenuID int64
	Name           string
	NormalizedName string
	Category       string
	Embedding      []float32
}

// SemanticHit is an entry nominated by vector similarity.
type SemanticHit struct {
	StandardMenuID int64
	Score          float32
}
