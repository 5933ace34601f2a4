package ports

import (
	"context"

	"github.com/ersonp/menu-core/internal/domain/entities"
)

// MenuItemFilter narrows a menu item listing.
type MenuItemFilter struct {
	RestaurantID *int64
	Method       *entities.MatchMethod
	Unverified   bool // Only automatic matches awaiting review
	Limit        int
	Offset       int
}

// MatchTransition is a single atomic change of one item's match state.
// The store reads the item's current reference inside the same transaction
// and moves match counts from it to Next.StandardMenuID.
type MatchTransition struct {
	ItemID  int64
	Next    entities.MatchState
	Details *entities.MenuItem     // Optional raw-field update applied in the same transaction
	History *entities.MatchHistory // Optional history row
	Ledger  *entities.LedgerEntry  // Optional override record
}

// RelationalDB defines the interface for relational database operations.
// Every match state change goes through CommitMatch so that the item row,
// the match counts and the audit rows never diverge.
type RelationalDB interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Standard menu operations

	// CreateStandardMenu inserts a catalog entry and sets its ID.
	CreateStandardMenu(ctx context.Context, entry *entities.StandardMenuEntry) error

	// UpdateStandardMenu writes the editable fields of a catalog entry.
	// MatchCount is never written here.
	UpdateStandardMenu(ctx context.Context, entry *entities.StandardMenuEntry) error

	// FindStandardMenu finds a catalog entry with its aliases. Returns nil if not found.
	FindStandardMenu(ctx context.Context, id int64) (*entities.StandardMenuEntry, error)

	// FindStandardMenuByName finds a catalog entry by display name. Returns nil if not found.
	FindStandardMenuByName(ctx context.Context, name string) (*entities.StandardMenuEntry, error)

	// ListStandardMenus lists catalog entries with their aliases, ordered by id.
	ListStandardMenus(ctx context.Context, activeOnly bool) ([]entities.StandardMenuEntry, error)

	// PopularStandardMenus lists active entries by match count descending.
	PopularStandardMenus(ctx context.Context, limit int) ([]entities.StandardMenuEntry, error)

	// DeleteStandardMenu removes an unreferenced catalog entry.
	// Fails with a reference error while any menu item points at it.
	DeleteStandardMenu(ctx context.Context, id int64) error

	// SaveAlias attaches a normalized alias to a catalog entry.
	SaveAlias(ctx context.Context, entryID int64, alias string) error

	// DeleteAlias detaches an alias from a catalog entry.
	DeleteAlias(ctx context.Context, entryID int64, alias string) error

	// Restaurant operations

	// CreateRestaurant inserts a restaurant and sets its ID.
	CreateRestaurant(ctx context.Context, r *entities.Restaurant) error

	// FindRestaurant finds a restaurant by ID. Returns nil if not found.
	FindRestaurant(ctx context.Context, id int64) (*entities.Restaurant, error)

	// ListRestaurants lists all restaurants ordered by id.
	ListRestaurants(ctx context.Context) ([]entities.Restaurant, error)

	// Menu item operations

	// CreateMenuItem inserts an unmatched menu item and sets its ID.
	CreateMenuItem(ctx context.Context, item *entities.MenuItem) error

	// UpdateMenuItemDetails writes the raw fields (name, key, price, description).
	UpdateMenuItemDetails(ctx context.Context, item *entities.MenuItem) error

	// FindMenuItem finds a menu item by ID. Returns nil if not found.
	FindMenuItem(ctx context.Context, id int64) (*entities.MenuItem, error)

	// ListMenuItems lists menu items ordered by id.
	ListMenuItems(ctx context.Context, filter MenuItemFilter) ([]entities.MenuItem, error)

	// DeleteMenuItem removes a menu item and releases its match count.
	DeleteMenuItem(ctx context.Context, id int64) error

	// Match state operations

	// CommitMatch applies a match transition atomically.
	CommitMatch(ctx context.Context, tr MatchTransition) error

	// ListMatchHistory lists history rows for an item, newest first.
	ListMatchHistory(ctx context.Context, itemID int64) ([]entities.MatchHistory, error)

	// ListLedger lists override records, newest first.
	ListLedger(ctx context.Context, filter entities.LedgerFilter) ([]entities.LedgerEntry, error)
}
