package matching

import (
	"sort"
	"sync"

	"github.com/ersonp/menu-core/internal/domain/entities"
)

// Candidate is a catalog entry returned by the prefilter.
type Candidate struct {
	ID      int64
	Name    string
	Keys    []string // Normalized name followed by aliases; never mutated
	Overlap int      // Shared grams with the lookup key
}

// indexedEntry is immutable once built; upserts replace it wholesale.
type indexedEntry struct {
	id    int64
	name  string
	keys  []string
	grams []string
}

// CandidateIndex maps token and bigram grams of normalized keys to catalog entries.
// Lookups run concurrently with upserts and removals; each edit is applied to a
// single entry under the write lock, so readers never observe a partial entry.
type CandidateIndex struct {
	mu       sync.RWMutex
	ready    bool
	entries  map[int64]*indexedEntry
	postings map[string]map[int64]struct{}
}

// NewCandidateIndex creates an index that reports ErrIndexUnavailable until Index is called.
func NewCandidateIndex() *CandidateIndex {
	return &CandidateIndex{
		entries:  make(map[int64]*indexedEntry),
		postings: make(map[string]map[int64]struct{}),
	}
}

// Index rebuilds the structure from entries. Inactive entries are skipped.
func (x *CandidateIndex) Index(entries []entities.StandardMenuEntry) {
	built := make(map[int64]*indexedEntry, len(entries))
	postings := make(map[string]map[int64]struct{})

	for i := range entries {
		if !entries[i].IsActive {
			continue
		}
		ie := newIndexedEntry(&entries[i])
		built[ie.id] = ie
		addPostings(postings, ie)
	}

	x.mu.Lock()
	x.entries = built
	x.postings = postings
	x.ready = true
	x.mu.Unlock()
}

// Upsert adds or replaces a single entry. An inactive entry is removed instead.
func (x *CandidateIndex) Upsert(entry entities.StandardMenuEntry) {
	if !entry.IsActive {
		x.Remove(entry.ID)
		return
	}
	ie := newIndexedEntry(&entry)

	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.entries[ie.id]; ok {
		removePostings(x.postings, old)
	}
	x.entries[ie.id] = ie
	addPostings(x.postings, ie)
}

// Remove drops an entry. Removing an unknown id is a no-op.
func (x *CandidateIndex) Remove(id int64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	old, ok := x.entries[id]
	if !ok {
		return
	}
	removePostings(x.postings, old)
	delete(x.entries, id)
}

// Invalidate marks the index unusable until the next Index call.
func (x *CandidateIndex) Invalidate() {
	x.mu.Lock()
	x.ready = false
	x.mu.Unlock()
}

// Ready reports whether the index has been built.
func (x *CandidateIndex) Ready() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ready
}

// Len returns the number of indexed entries.
func (x *CandidateIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Lookup returns the indexed view of a single entry.
func (x *CandidateIndex) Lookup(id int64) (Candidate, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	ie, ok := x.entries[id]
	if !ok {
		return Candidate{}, false
	}
	return Candidate{ID: ie.id, Name: ie.name, Keys: ie.keys}, true
}

// Candidates returns at most limit entries sharing grams with key, ranked by
// shared-gram count and then by lowest id. An empty catalog yields an empty slice.
func (x *CandidateIndex) Candidates(key string, limit int) ([]Candidate, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.ready {
		return nil, entities.ErrIndexUnavailable
	}

	grams := keyGrams(key)
	if len(grams) == 0 || limit <= 0 {
		return []Candidate{}, nil
	}

	overlap := make(map[int64]int)
	for _, g := range grams {
		for id := range x.postings[g] {
			overlap[id]++
		}
	}

	result := make([]Candidate, 0, len(overlap))
	for id, n := range overlap {
		ie := x.entries[id]
		result = append(result, Candidate{ID: id, Name: ie.name, Keys: ie.keys, Overlap: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Overlap != result[j].Overlap {
			return result[i].Overlap > result[j].Overlap
		}
		return result[i].ID < result[j].ID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func newIndexedEntry(e *entities.StandardMenuEntry) *indexedEntry {
	keys := e.Keys()

	seen := make(map[string]struct{})
	var grams []string
	for _, k := range keys {
		for _, g := range keyGrams(k) {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			grams = append(grams, g)
		}
	}

	return &indexedEntry{id: e.ID, name: e.Name, keys: keys, grams: grams}
}

func addPostings(postings map[string]map[int64]struct{}, ie *indexedEntry) {
	for _, g := range ie.grams {
		ids, ok := postings[g]
		if !ok {
			ids = make(map[int64]struct{})
			postings[g] = ids
		}
		ids[ie.id] = struct{}{}
	}
}

func removePostings(postings map[string]map[int64]struct{}, ie *indexedEntry) {
	for _, g := range ie.grams {
		ids := postings[g]
		delete(ids, ie.id)
		if len(ids) == 0 {
			delete(postings, g)
		}
	}
}

// keyGrams returns the distinct tokens and compact-key bigrams of key.
// Tokens are prefixed so they never collide with bigrams.
func keyGrams(key string) []string {
	compact := []rune(Compact(key))
	if len(compact) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var grams []string
	add := func(g string) {
		if _, ok := seen[g]; ok {
			return
		}
		seen[g] = struct{}{}
		grams = append(grams, g)
	}

	for _, t := range Tokens(key) {
		add("t:" + t)
	}
	if len(compact) == 1 {
		add("b:" + string(compact))
	}
	for i := 0; i+1 < len(compact); i++ {
		add("b:" + string(compact[i:i+2]))
	}
	return grams
}
