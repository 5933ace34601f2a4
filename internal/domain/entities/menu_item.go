package entities

import "time"

// MatchMethod records how a menu item was associated with a catalog entry.
type MatchMethod string

const (
	MatchNone      MatchMethod = "none"
	MatchAutomatic MatchMethod = "automatic"
	MatchManual    MatchMethod = "manual"
)

// IsValid reports whether m is a known match method.
func (m MatchMethod) IsValid() bool {
	switch m {
	case MatchNone, MatchAutomatic, MatchManual:
		return true
	}
	return false
}

// MenuItem is a restaurant's raw offering together with its current match state.
type MenuItem struct {
	ID              int64       `json:"id"`
	RestaurantID    *int64      `json:"restaurant_id,omitempty"`
	OriginalName    string      `json:"original_name"`
	NormalizedName  string      `json:"normalized_name"`
	Price           *int64      `json:"price,omitempty"`
	Description     string      `json:"description,omitempty"`
	StandardMenuID  *int64      `json:"standard_menu_id"`
	MatchConfidence *float64    `json:"match_confidence"`
	MatchMethod     MatchMethod `json:"match_method"`
	IsVerified      bool        `json:"is_verified"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// IsMatched reports whether the item currently points at a catalog entry.
func (m *MenuItem) IsMatched() bool {
	return m.StandardMenuID != nil
}

// IsManual reports whether a human set the current match.
func (m *MenuItem) IsManual() bool {
	return m.MatchMethod == MatchManual
}

// MatchState is the part of a MenuItem owned by the match resolver.
type MatchState struct {
	StandardMenuID *int64
	Confidence     *float64
	Method         MatchMethod
	Verified       bool
}

// Unmatched is the state of an item with no catalog reference.
func Unmatched() MatchState {
	return MatchState{Method: MatchNone}
}

// State returns the item's current match state.
func (m *MenuItem) State() MatchState {
	return MatchState{
		StandardMenuID: m.StandardMenuID,
		Confidence:     m.MatchConfidence,
		Method:         m.MatchMethod,
		Verified:       m.IsVerified,
	}
}

// Apply copies a match state onto the item.
func (m *MenuItem) Apply(s MatchState) {
	m.StandardMenuID = s.StandardMenuID
	m.MatchConfidence = s.Confidence
	m.MatchMethod = s.Method
	m.IsVerified = s.Verified
}

// MenuItemInput holds the caller-supplied fields for creating a menu item.
type MenuItemInput struct {
	RestaurantID *int64 `json:"restaurant_id,omitempty"`
	Name         string `json:"original_name"`
	Price        *int64 `json:"price,omitempty"`
	Description  string `json:"description,omitempty"`
}

// MenuItemUpdate carries the editable raw fields of a menu item.
type MenuItemUpdate struct {
	Name        *string
	Price       *int64
	Description *string
}
