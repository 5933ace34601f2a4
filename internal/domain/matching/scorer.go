package matching

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Weights scale each similarity signal. Every weight must lie in [0,1].
type Weights struct {
	Exact        float64 `yaml:"exact" json:"exact"`
	Containment  float64 `yaml:"containment" json:"containment"`
	Jaccard      float64 `yaml:"jaccard" json:"jaccard"`
	EditDistance float64 `yaml:"edit_distance" json:"edit_distance"`
}

// DefaultWeights lets a spacing-only difference clear a 0.9 threshold on its own.
func DefaultWeights() Weights {
	return Weights{
		Exact:        0.90,
		Containment:  0.60,
		Jaccard:      0.60,
		EditDistance: 0.70,
	}
}

// Validate checks that every weight is in [0,1].
func (w Weights) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"exact", w.Exact},
		{"containment", w.Containment},
		{"jaccard", w.Jaccard},
		{"edit_distance", w.EditDistance},
	}
	for _, n := range named {
		if n.value < 0 || n.value > 1 {
			return fmt.Errorf("weight %s must be within [0,1], got %v", n.name, n.value)
		}
	}
	return nil
}

// Signals are the individual similarity measures between two keys, each in [0,1].
type Signals struct {
	Exact        float64 `json:"exact"`
	Containment  float64 `json:"containment"`
	Jaccard      float64 `json:"jaccard"`
	EditDistance float64 `json:"edit_distance"`
}

// Scorer combines similarity signals into a single score.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer. Weights outside [0,1] are clamped.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: Weights{
		Exact:        clamp(w.Exact),
		Containment:  clamp(w.Containment),
		Jaccard:      clamp(w.Jaccard),
		EditDistance: clamp(w.EditDistance),
	}}
}

// Score returns the similarity of two normalized keys in [0,1].
// Equal keys score 1, and a key compared with an empty one scores 0.
// The result is symmetric and never decreases when any signal improves.
func (s *Scorer) Score(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	return s.Combine(ComputeSignals(a, b))
}

// Combine merges signals as a weighted noisy-or: 1 - Π(1 - w·s).
func (s *Scorer) Combine(sig Signals) float64 {
	miss := (1 - s.weights.Exact*clamp(sig.Exact)) *
		(1 - s.weights.Containment*clamp(sig.Containment)) *
		(1 - s.weights.Jaccard*clamp(sig.Jaccard)) *
		(1 - s.weights.EditDistance*clamp(sig.EditDistance))

	return clamp(1 - miss)
}

// ComputeSignals measures a and b along every signal.
func ComputeSignals(a, b string) Signals {
	if a == b {
		return Signals{Exact: 1, Containment: 1, Jaccard: 1, EditDistance: 1}
	}
	if a == "" || b == "" {
		return Signals{}
	}

	ca, cb := Compact(a), Compact(b)
	var sig Signals
	if ca == cb {
		sig.Exact = 1
	}
	sig.Containment = containment(ca, cb)
	sig.Jaccard = jaccard(Tokens(a), Tokens(b))
	sig.EditDistance = editSimilarity(a, b)
	return sig
}

// containment is the length ratio of the shorter key when the longer contains it.
func containment(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	short, long := a, b
	if utf8.RuneCountInString(short) > utf8.RuneCountInString(long) {
		short, long = long, short
	}
	if !strings.Contains(long, short) {
		return 0
	}
	return float64(utf8.RuneCountInString(short)) / float64(utf8.RuneCountInString(long))
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

// editSimilarity is 1 - distance/max(len(a), len(b)) over runes.
func editSimilarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(maxLen)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
