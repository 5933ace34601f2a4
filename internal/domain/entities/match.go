package entities

import "time"

// MatchResult is the resolver's answer for a single menu item. It is not persisted.
type MatchResult struct {
	ItemID               int64       `json:"item_id,omitempty"`
	StandardMenuID       *int64      `json:"standard_menu_id"`
	StandardMenuName     string      `json:"standard_menu_name,omitempty"`
	Confidence           *float64    `json:"confidence"`
	Method               MatchMethod `json:"method"`
	Verified             bool        `json:"is_verified"`
	MatchedTokens        []string    `json:"matched_tokens,omitempty"`
	CandidatesConsidered int         `json:"candidates_considered"`
	Skipped              bool        `json:"skipped,omitempty"` // Item was left untouched (manual or settled)
}

// State converts the result into the item state it describes.
func (r *MatchResult) State() MatchState {
	return MatchState{
		StandardMenuID: r.StandardMenuID,
		Confidence:     r.Confidence,
		Method:         r.Method,
		Verified:       r.Verified,
	}
}

// MatchHistory is a persisted record of an accepted association.
type MatchHistory struct {
	ID             string      `json:"id"`
	MenuItemID     int64       `json:"menu_item_id"`
	StandardMenuID int64       `json:"standard_menu_id"`
	Confidence     float64     `json:"confidence"`
	Method         MatchMethod `json:"method"`
	MatchedTokens  []string    `json:"matched_tokens,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// RematchSummary reports the outcome of a bulk rematch run.
type RematchSummary struct {
	Total       int     `json:"total"`
	Matched     int     `json:"matched"`
	SuccessRate float64 `json:"success_rate"`
}
