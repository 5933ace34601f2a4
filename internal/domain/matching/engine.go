package matching

import (
	"fmt"
	"strings"
)

// Options configure an Engine.
type Options struct {
	Stoplist      []string
	StripPatterns []string
	Weights       Weights
	Policy        Policy
	LockShards    int
}

// DefaultOptions returns the built-in stoplist, patterns, weights and policy.
func DefaultOptions() Options {
	return Options{
		Stoplist:      DefaultStoplist,
		StripPatterns: DefaultStripPatterns,
		Weights:       DefaultWeights(),
		Policy:        DefaultPolicy(),
		LockShards:    DefaultLockShards,
	}
}

// Engine bundles the normalizer, candidate index, scorer, policy and item locks.
type Engine struct {
	Normalizer *Normalizer
	Index      *CandidateIndex
	Scorer     *Scorer
	Policy     Policy
	Locks      *LockTable
}

// NewEngine validates opts and builds an engine with an empty, unbuilt index.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}

	normalizer, err := NewNormalizer(opts.Stoplist, opts.StripPatterns)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Normalizer: normalizer,
		Index:      NewCandidateIndex(),
		Scorer:     NewScorer(opts.Weights),
		Policy:     opts.Policy,
		Locks:      NewLockTable(opts.LockShards),
	}, nil
}

// Scored is a candidate together with its best score over all of its keys.
type Scored struct {
	Candidate
	Score      float64
	MatchedKey string
}

// Outcome is the lexical verdict for one normalized key.
type Outcome struct {
	Best       *Scored // nil when there were no candidates
	Considered int
	Accepted   bool
	Verified   bool
}

// Evaluate retrieves up to K candidates for key, adds the extra entry ids
// nominated elsewhere, scores them all and applies the policy.
// It fails only when the index is unavailable.
func (e *Engine) Evaluate(key string, extra []int64) (Outcome, error) {
	cands, err := e.Index.Candidates(key, e.Policy.CandidateLimit)
	if err != nil {
		return Outcome{}, err
	}

	if len(extra) > 0 && key != "" {
		seen := make(map[int64]struct{}, len(cands))
		for _, c := range cands {
			seen[c.ID] = struct{}{}
		}
		for _, id := range extra {
			if _, ok := seen[id]; ok {
				continue
			}
			if c, ok := e.Index.Lookup(id); ok {
				seen[id] = struct{}{}
				cands = append(cands, c)
			}
		}
	}

	out := Outcome{Considered: len(cands)}
	best, ok := Rank(e.Scorer, key, cands)
	if !ok {
		return out, nil
	}
	out.Best = &best
	out.Accepted, out.Verified = e.Policy.Classify(best.Score)
	return out, nil
}

// Rank scores each candidate against key and returns the highest score,
// breaking ties by lowest entry id.
func Rank(s *Scorer, key string, cands []Candidate) (Scored, bool) {
	var best Scored
	found := false

	for _, c := range cands {
		score, matched := bestKey(s, key, c.Keys)
		if !found || score > best.Score || (score == best.Score && c.ID < best.ID) {
			best = Scored{Candidate: c, Score: score, MatchedKey: matched}
			found = true
		}
	}
	return best, found
}

// bestKey returns the highest score over keys; the first key wins ties.
func bestKey(s *Scorer, key string, keys []string) (float64, string) {
	bestScore := -1.0
	bestKey := ""
	for _, k := range keys {
		if score := s.Score(key, k); score > bestScore {
			bestScore, bestKey = score, k
		}
	}
	if bestScore < 0 {
		return 0, ""
	}
	return bestScore, bestKey
}

// SharedTokens lists the tokens key has in common with matched, in key order.
// Keys that differ only in spacing share their compact form.
func SharedTokens(key, matched string) []string {
	other := make(map[string]struct{})
	for _, t := range Tokens(matched) {
		other[t] = struct{}{}
	}

	var shared []string
	for _, t := range Tokens(key) {
		if _, ok := other[t]; ok {
			shared = append(shared, t)
			delete(other, t)
		}
	}
	if len(shared) == 0 && key != "" && Compact(key) == Compact(matched) {
		shared = append(shared, Compact(key))
	}
	return shared
}

// String renders an outcome for logs.
func (o Outcome) String() string {
	if o.Best == nil {
		return fmt.Sprintf("no candidates (considered=%d)", o.Considered)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "best=%d score=%.3f considered=%d", o.Best.ID, o.Best.Score, o.Considered)
	if o.Accepted {
		b.WriteString(" accepted")
	}
	if o.Verified {
		b.WriteString(" verified")
	}
	return b.String()
}
