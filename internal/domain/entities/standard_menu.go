package entities

import "time"

// StandardMenuEntry is a canonical catalog row that raw menu names resolve to.
type StandardMenuEntry struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"` // Always derived from Name by the normalizer
	Category       string    `json:"category,omitempty"`
	Description    string    `json:"description,omitempty"`
	IsActive       bool      `json:"is_active"`
	MatchCount     int64     `json:"match_count"`
	Aliases        []string  `json:"aliases,omitempty"` // Normalized alternate spellings
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Keys returns every normalized key the entry can be matched by.
func (e *StandardMenuEntry) Keys() []string {
	keys := make([]string, 0, len(e.Aliases)+1)
	if e.NormalizedName != "" {
		keys = append(keys, e.NormalizedName)
	}
	for _, alias := range e.Aliases {
		if alias != "" && alias != e.NormalizedName {
			keys = append(keys, alias)
		}
	}
	return keys
}

// HasKey reports whether key is the entry's normalized name or one of its aliases.
func (e *StandardMenuEntry) HasKey(key string) bool {
	for _, k := range e.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// StandardMenuUpdate carries the editable fields of a catalog entry.
// Nil fields are left untouched.
type StandardMenuUpdate struct {
	Name        *string
	Category    *string
	Description *string
	IsActive    *bool
}
