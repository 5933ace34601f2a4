package entities

import "time"

// LedgerEntry is an append-only record of a manual override.
type LedgerEntry struct {
	ID             string    `json:"id"`
	MenuItemID     int64     `json:"menu_item_id"`
	NormalizedName string    `json:"normalized_name"` // Item key at the time of the override
	PreviousRef    *int64    `json:"previous_ref"`
	NewRef         *int64    `json:"new_ref"`
	Actor          string    `json:"actor"`
	CreatedAt      time.Time `json:"created_at"`
}

// LedgerFilter narrows a ledger listing.
type LedgerFilter struct {
	MenuItemID *int64
	Limit      int
}

// AliasSuggestion proposes a raw spelling as an alias of a catalog entry.
// Suggestions are advisory until accepted.
type AliasSuggestion struct {
	Alias          string   `json:"alias"`
	StandardMenuID int64    `json:"standard_menu_id"`
	Occurrences    int      `json:"occurrences"`
	Actors         []string `json:"actors"`
}
