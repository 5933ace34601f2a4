// Package sqlite provides a SQLite implementation of the RelationalDB interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/ports"
	"github.com/ersonp/menu-core/internal/infrastructure/config"
)

// generateUUID returns a new UUID string.
func generateUUID() string {
	return uuid.New().String()
}

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.RelationalDB using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// NewRepositoryWithDB wraps an already opened database handle.
func NewRepositoryWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Standard menu catalog
	CREATE TABLE IF NOT EXISTS standard_menus (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		normalized_name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		match_count INTEGER NOT NULL DEFAULT 0 CHECK (match_count >= 0),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_standard_menus_normalized ON standard_menus(normalized_name);
	CREATE INDEX IF NOT EXISTS idx_standard_menus_popular ON standard_menus(match_count DESC);

	-- Accepted alternate spellings
	CREATE TABLE IF NOT EXISTS standard_menu_aliases (
		alias TEXT PRIMARY KEY,
		standard_menu_id INTEGER NOT NULL REFERENCES standard_menus(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_aliases_entry ON standard_menu_aliases(standard_menu_id);

	-- Restaurants owning menu items
	CREATE TABLE IF NOT EXISTS restaurants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL
	);

	-- Raw menu items and their match state
	CREATE TABLE IF NOT EXISTS menu_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		restaurant_id INTEGER REFERENCES restaurants(id),
		original_name TEXT NOT NULL,
		normalized_name TEXT NOT NULL,
		price INTEGER CHECK (price IS NULL OR price >= 0),
		description TEXT NOT NULL DEFAULT '',
		standard_menu_id INTEGER REFERENCES standard_menus(id) ON DELETE RESTRICT,
		match_confidence REAL,
		match_method TEXT NOT NULL DEFAULT 'none',
		is_verified INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(restaurant_id, original_name)
	);
	-- Items without a restaurant share one name space
	CREATE UNIQUE INDEX IF NOT EXISTS idx_menu_items_unowned_name ON menu_items(original_name) WHERE restaurant_id IS NULL;
	CREATE INDEX IF NOT EXISTS idx_menu_items_standard ON menu_items(standard_menu_id);
	CREATE INDEX IF NOT EXISTS idx_menu_items_restaurant ON menu_items(restaurant_id);
	CREATE INDEX IF NOT EXISTS idx_menu_items_method ON menu_items(match_method);

	-- Accepted associations
	CREATE TABLE IF NOT EXISTS match_history (
		id TEXT PRIMARY KEY,
		menu_item_id INTEGER NOT NULL REFERENCES menu_items(id) ON DELETE CASCADE,
		standard_menu_id INTEGER NOT NULL REFERENCES standard_menus(id) ON DELETE CASCADE,
		confidence REAL NOT NULL,
		method TEXT NOT NULL,
		matched_tokens TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_match_history_item ON match_history(menu_item_id);

	-- Override ledger (append-only, outlives the rows it mentions)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		menu_item_id INTEGER NOT NULL,
		normalized_name TEXT NOT NULL,
		previous_ref INTEGER,
		new_ref INTEGER,
		actor TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_item ON ledger_entries(menu_item_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_name ON ledger_entries(normalized_name);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Standard menu operations

const standardMenuColumns = `id, name, normalized_name, category, description, is_active, match_count, created_at, updated_at`

// CreateStandardMenu inserts a catalog entry and sets its ID.
func (r *Repository) CreateStandardMenu(ctx context.Context, entry *entities.StandardMenuEntry) error {
	now := timeNow()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	query := `
		INSERT INTO standard_menus (name, normalized_name, category, description, is_active, match_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		entry.Name,
		entry.NormalizedName,
		entry.Category,
		entry.Description,
		entry.IsActive,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entities.ConflictErrorf("standard menu '%s' already exists", entry.Name)
		}
		return fmt.Errorf("inserting standard menu: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading standard menu id: %w", err)
	}
	entry.ID = id
	entry.MatchCount = 0
	return nil
}

// UpdateStandardMenu writes the editable fields of a catalog entry.
func (r *Repository) UpdateStandardMenu(ctx context.Context, entry *entities.StandardMenuEntry) error {
	entry.UpdatedAt = timeNow()

	query := `
		UPDATE standard_menus
		SET name = ?, normalized_name = ?, category = ?, description = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		entry.Name,
		entry.NormalizedName,
		entry.Category,
		entry.Description,
		entry.IsActive,
		entry.UpdatedAt,
		entry.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entities.ConflictErrorf("standard menu '%s' already exists", entry.Name)
		}
		return fmt.Errorf("updating standard menu: %w", err)
	}
	return requireRow(res, "standard menu %d not found", entry.ID)
}

// FindStandardMenu finds a catalog entry with its aliases.
func (r *Repository) FindStandardMenu(ctx context.Context, id int64) (*entities.StandardMenuEntry, error) {
	query := `SELECT ` + standardMenuColumns + ` FROM standard_menus WHERE id = ?`
	return r.findStandardMenu(ctx, query, id)
}

// FindStandardMenuByName finds a catalog entry by display name.
func (r *Repository) FindStandardMenuByName(ctx context.Context, name string) (*entities.StandardMenuEntry, error) {
	query := `SELECT ` + standardMenuColumns + ` FROM standard_menus WHERE name = ?`
	return r.findStandardMenu(ctx, query, name)
}

func (r *Repository) findStandardMenu(ctx context.Context, query string, arg any) (*entities.StandardMenuEntry, error) {
	row := r.db.QueryRowContext(ctx, query, arg)

	entry, err := scanStandardMenu(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning standard menu: %w", err)
	}

	aliases, err := r.loadAliases(ctx, &entry.ID)
	if err != nil {
		return nil, err
	}
	entry.Aliases = aliases[entry.ID]
	return entry, nil
}

// ListStandardMenus lists catalog entries with their aliases, ordered by id.
func (r *Repository) ListStandardMenus(ctx context.Context, activeOnly bool) ([]entities.StandardMenuEntry, error) {
	query := `SELECT ` + standardMenuColumns + ` FROM standard_menus`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	return r.queryStandardMenus(ctx, query)
}

// PopularStandardMenus lists active entries by match count descending.
func (r *Repository) PopularStandardMenus(ctx context.Context, limit int) ([]entities.StandardMenuEntry, error) {
	query := `SELECT ` + standardMenuColumns + ` FROM standard_menus
		WHERE is_active = 1
		ORDER BY match_count DESC, id
		LIMIT ?`

	return r.queryStandardMenus(ctx, query, limit)
}

// queryStandardMenus runs a catalog query and attaches aliases.
// Rows are closed before aliases are read because the pool holds one connection.
func (r *Repository) queryStandardMenus(ctx context.Context, query string, args ...any) ([]entities.StandardMenuEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying standard menus: %w", err)
	}

	var result []entities.StandardMenuEntry
	for rows.Next() {
		entry, err := scanStandardMenu(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning standard menu: %w", err)
		}
		result = append(result, *entry)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating standard menus: %w", err)
	}
	rows.Close()

	if len(result) == 0 {
		return result, nil
	}

	aliases, err := r.loadAliases(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Aliases = aliases[result[i].ID]
	}
	return result, nil
}

// loadAliases returns aliases grouped by entry, optionally for one entry only.
func (r *Repository) loadAliases(ctx context.Context, entryID *int64) (map[int64][]string, error) {
	query := `SELECT standard_menu_id, alias FROM standard_menu_aliases`
	var args []any
	if entryID != nil {
		query += ` WHERE standard_menu_id = ?`
		args = append(args, *entryID)
	}
	query += ` ORDER BY created_at, alias`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying aliases: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var alias string
		if err := rows.Scan(&id, &alias); err != nil {
			return nil, fmt.Errorf("scanning alias: %w", err)
		}
		result[id] = append(result[id], alias)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating aliases: %w", err)
	}
	return result, nil
}

// DeleteStandardMenu removes an unreferenced catalog entry.
func (r *Repository) DeleteStandardMenu(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var refs int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM menu_items WHERE standard_menu_id = ?`, id).Scan(&refs)
		if err != nil {
			return fmt.Errorf("counting references: %w", err)
		}
		if refs > 0 {
			return entities.ReferenceErrorf("standard menu %d is referenced by %d menu items", id, refs)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM standard_menus WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting standard menu: %w", err)
		}
		return requireRow(res, "standard menu %d not found", id)
	})
}

// SaveAlias attaches a normalized alias to a catalog entry.
func (r *Repository) SaveAlias(ctx context.Context, entryID int64, alias string) error {
	query := `
		INSERT INTO standard_menu_aliases (alias, standard_menu_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(alias) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, alias, entryID, timeNow()); err != nil {
		return fmt.Errorf("saving alias: %w", err)
	}

	var owner int64
	err := r.db.QueryRowContext(ctx,
		`SELECT standard_menu_id FROM standard_menu_aliases WHERE alias = ?`, alias).Scan(&owner)
	if err != nil {
		return fmt.Errorf("reading alias owner: %w", err)
	}
	if owner != entryID {
		return entities.ConflictErrorf("alias '%s' already belongs to standard menu %d", alias, owner)
	}
	return nil
}

// DeleteAlias detaches an alias from a catalog entry.
func (r *Repository) DeleteAlias(ctx context.Context, entryID int64, alias string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM standard_menu_aliases WHERE standard_menu_id = ? AND alias = ?`, entryID, alias)
	if err != nil {
		return fmt.Errorf("deleting alias: %w", err)
	}
	return requireRow(res, "alias '%s' not found on standard menu %d", alias, entryID)
}

// Restaurant operations

// CreateRestaurant inserts a restaurant and sets its ID.
func (r *Repository) CreateRestaurant(ctx context.Context, rest *entities.Restaurant) error {
	if rest.CreatedAt.IsZero() {
		rest.CreatedAt = timeNow()
	}

	query := `
		INSERT INTO restaurants (name, address, phone, category, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		rest.Name,
		rest.Address,
		rest.Phone,
		rest.Category,
		rest.IsActive,
		rest.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting restaurant: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading restaurant id: %w", err)
	}
	rest.ID = id
	return nil
}

// FindRestaurant finds a restaurant by ID.
func (r *Repository) FindRestaurant(ctx context.Context, id int64) (*entities.Restaurant, error) {
	query := `
		SELECT id, name, address, phone, category, is_active, created_at
		FROM restaurants
		WHERE id = ?
	`
	var rest entities.Restaurant
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rest.ID,
		&rest.Name,
		&rest.Address,
		&rest.Phone,
		&rest.Category,
		&rest.IsActive,
		&rest.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning restaurant: %w", err)
	}
	return &rest, nil
}

// ListRestaurants lists all restaurants ordered by id.
func (r *Repository) ListRestaurants(ctx context.Context) ([]entities.Restaurant, error) {
	query := `
		SELECT id, name, address, phone, category, is_active, created_at
		FROM restaurants
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying restaurants: %w", err)
	}
	defer rows.Close()

	var result []entities.Restaurant
	for rows.Next() {
		var rest entities.Restaurant
		if err := rows.Scan(
			&rest.ID,
			&rest.Name,
			&rest.Address,
			&rest.Phone,
			&rest.Category,
			&rest.IsActive,
			&rest.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning restaurant: %w", err)
		}
		result = append(result, rest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating restaurants: %w", err)
	}
	return result, nil
}

// Menu item operations

const menuItemColumns = `id, restaurant_id, original_name, normalized_name, price, description,
	standard_menu_id, match_confidence, match_method, is_verified, created_at, updated_at`

// CreateMenuItem inserts an unmatched menu item and sets its ID.
func (r *Repository) CreateMenuItem(ctx context.Context, item *entities.MenuItem) error {
	now := timeNow()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	item.Apply(entities.Unmatched())

	query := `
		INSERT INTO menu_items (restaurant_id, original_name, normalized_name, price, description,
			match_method, is_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		nullInt(item.RestaurantID),
		item.OriginalName,
		item.NormalizedName,
		nullInt(item.Price),
		item.Description,
		string(entities.MatchNone),
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entities.ConflictErrorf("menu item '%s' already exists for this restaurant", item.OriginalName)
		}
		if isForeignKeyViolation(err) {
			return entities.ValidationErrorf("restaurant does not exist")
		}
		return fmt.Errorf("inserting menu item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading menu item id: %w", err)
	}
	item.ID = id
	return nil
}

// UpdateMenuItemDetails writes the raw fields of a menu item.
func (r *Repository) UpdateMenuItemDetails(ctx context.Context, item *entities.MenuItem) error {
	item.UpdatedAt = timeNow()
	res, err := execDetails(ctx, r.db, item)
	if err != nil {
		return err
	}
	return requireRow(res, "menu item %d not found", item.ID)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execDetails(ctx context.Context, db execer, item *entities.MenuItem) (sql.Result, error) {
	query := `
		UPDATE menu_items
		SET original_name = ?, normalized_name = ?, price = ?, description = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		item.OriginalName,
		item.NormalizedName,
		nullInt(item.Price),
		item.Description,
		item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, entities.ConflictErrorf("menu item '%s' already exists for this restaurant", item.OriginalName)
		}
		return nil, fmt.Errorf("updating menu item: %w", err)
	}
	return res, nil
}

// FindMenuItem finds a menu item by ID.
func (r *Repository) FindMenuItem(ctx context.Context, id int64) (*entities.MenuItem, error) {
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = ?`

	item, err := scanMenuItem(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning menu item: %w", err)
	}
	return item, nil
}

// ListMenuItems lists menu items ordered by id.
func (r *Repository) ListMenuItems(ctx context.Context, filter ports.MenuItemFilter) ([]entities.MenuItem, error) {
	var conds []string
	var args []any

	if filter.RestaurantID != nil {
		conds = append(conds, "restaurant_id = ?")
		args = append(args, *filter.RestaurantID)
	}
	if filter.Method != nil {
		conds = append(conds, "match_method = ?")
		args = append(args, string(*filter.Method))
	}
	if filter.Unverified {
		conds = append(conds, "match_method = ? AND is_verified = 0")
		args = append(args, string(entities.MatchAutomatic))
	}

	query := `SELECT ` + menuItemColumns + ` FROM menu_items`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying menu items: %w", err)
	}
	defer rows.Close()

	var result []entities.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning menu item: %w", err)
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating menu items: %w", err)
	}
	return result, nil
}

// DeleteMenuItem removes a menu item and releases its match count.
func (r *Repository) DeleteMenuItem(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		prev, err := currentRef(ctx, tx, id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM menu_items WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting menu item: %w", err)
		}

		if prev.Valid {
			return decrementCount(ctx, tx, prev.Int64)
		}
		return nil
	})
}

// Match state operations

// CommitMatch applies a match transition atomically.
func (r *Repository) CommitMatch(ctx context.Context, tr ports.MatchTransition) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		prev, err := currentRef(ctx, tx, tr.ItemID)
		if err != nil {
			return err
		}

		next := tr.Next.StandardMenuID
		if refChanged(prev, next) {
			if prev.Valid {
				if err := decrementCount(ctx, tx, prev.Int64); err != nil {
					return err
				}
			}
			if next != nil {
				if err := incrementCount(ctx, tx, *next); err != nil {
					return err
				}
			}
		}

		now := timeNow()
		if tr.Details != nil {
			tr.Details.UpdatedAt = now
			if _, err := execDetails(ctx, tx, tr.Details); err != nil {
				return err
			}
		}

		query := `
			UPDATE menu_items
			SET standard_menu_id = ?, match_confidence = ?, match_method = ?, is_verified = ?, updated_at = ?
			WHERE id = ?
		`
		_, err = tx.ExecContext(ctx, query,
			nullInt(next),
			nullFloat(tr.Next.Confidence),
			string(tr.Next.Method),
			tr.Next.Verified,
			now,
			tr.ItemID,
		)
		if err != nil {
			return fmt.Errorf("updating match state: %w", err)
		}

		if tr.History != nil {
			if err := insertHistory(ctx, tx, tr.History); err != nil {
				return err
			}
		}
		if tr.Ledger != nil {
			if err := insertLedger(ctx, tx, tr.Ledger); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListMatchHistory lists history rows for an item, newest first.
func (r *Repository) ListMatchHistory(ctx context.Context, itemID int64) ([]entities.MatchHistory, error) {
	query := `
		SELECT id, menu_item_id, standard_menu_id, confidence, method, matched_tokens, created_at
		FROM match_history
		WHERE menu_item_id = ?
		ORDER BY created_at DESC, rowid DESC
	`
	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("querying match history: %w", err)
	}
	defer rows.Close()

	var result []entities.MatchHistory
	for rows.Next() {
		var h entities.MatchHistory
		var method string
		var tokens sql.NullString
		if err := rows.Scan(
			&h.ID,
			&h.MenuItemID,
			&h.StandardMenuID,
			&h.Confidence,
			&method,
			&tokens,
			&h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning match history: %w", err)
		}
		h.Method = entities.MatchMethod(method)
		if tokens.Valid && tokens.String != "" {
			if err := json.Unmarshal([]byte(tokens.String), &h.MatchedTokens); err != nil {
				return nil, fmt.Errorf("unmarshaling matched tokens: %w", err)
			}
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating match history: %w", err)
	}
	return result, nil
}

// ListLedger lists override records, newest first.
func (r *Repository) ListLedger(ctx context.Context, filter entities.LedgerFilter) ([]entities.LedgerEntry, error) {
	query := `
		SELECT id, menu_item_id, normalized_name, previous_ref, new_ref, actor, created_at
		FROM ledger_entries
	`
	var args []any
	if filter.MenuItemID != nil {
		query += ` WHERE menu_item_id = ?`
		args = append(args, *filter.MenuItemID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var result []entities.LedgerEntry
	for rows.Next() {
		var e entities.LedgerEntry
		var prev, next sql.NullInt64
		if err := rows.Scan(
			&e.ID,
			&e.MenuItemID,
			&e.NormalizedName,
			&prev,
			&next,
			&e.Actor,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		e.PreviousRef = int64Ptr(prev)
		e.NewRef = int64Ptr(next)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger: %w", err)
	}
	return result, nil
}

// Helpers

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanStandardMenu(s scanner) (*entities.StandardMenuEntry, error) {
	var e entities.StandardMenuEntry
	err := s.Scan(
		&e.ID,
		&e.Name,
		&e.NormalizedName,
		&e.Category,
		&e.Description,
		&e.IsActive,
		&e.MatchCount,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanMenuItem(s scanner) (*entities.MenuItem, error) {
	var item entities.MenuItem
	var restaurantID, price, ref sql.NullInt64
	var confidence sql.NullFloat64
	var method string

	err := s.Scan(
		&item.ID,
		&restaurantID,
		&item.OriginalName,
		&item.NormalizedName,
		&price,
		&item.Description,
		&ref,
		&confidence,
		&method,
		&item.IsVerified,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.RestaurantID = int64Ptr(restaurantID)
	item.Price = int64Ptr(price)
	item.StandardMenuID = int64Ptr(ref)
	if confidence.Valid {
		c := confidence.Float64
		item.MatchConfidence = &c
	}
	item.MatchMethod = entities.MatchMethod(method)
	return &item, nil
}

func currentRef(ctx context.Context, tx *sql.Tx, itemID int64) (sql.NullInt64, error) {
	var ref sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT standard_menu_id FROM menu_items WHERE id = ?`, itemID).Scan(&ref)
	if err == sql.ErrNoRows {
		return ref, entities.NotFoundErrorf("menu item %d not found", itemID)
	}
	if err != nil {
		return ref, fmt.Errorf("reading current match: %w", err)
	}
	return ref, nil
}

// incrementCount fails with a reference error unless the entry is active.
func incrementCount(ctx context.Context, tx *sql.Tx, entryID int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE standard_menus SET match_count = match_count + 1 WHERE id = ? AND is_active = 1`, entryID)
	if err != nil {
		return fmt.Errorf("incrementing match count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return entities.ReferenceErrorf("standard menu %d is inactive or missing", entryID)
	}
	return nil
}

func decrementCount(ctx context.Context, tx *sql.Tx, entryID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE standard_menus SET match_count = match_count - 1 WHERE id = ? AND match_count > 0`, entryID)
	if err != nil {
		return fmt.Errorf("decrementing match count: %w", err)
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, h *entities.MatchHistory) error {
	if h.ID == "" {
		h.ID = generateUUID()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = timeNow()
	}

	tokens, err := json.Marshal(h.MatchedTokens)
	if err != nil {
		return fmt.Errorf("marshaling matched tokens: %w", err)
	}

	query := `
		INSERT INTO match_history (id, menu_item_id, standard_menu_id, confidence, method, matched_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		h.ID,
		h.MenuItemID,
		h.StandardMenuID,
		h.Confidence,
		string(h.Method),
		string(tokens),
		h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting match history: %w", err)
	}
	return nil
}

func insertLedger(ctx context.Context, tx *sql.Tx, e *entities.LedgerEntry) error {
	if e.ID == "" {
		e.ID = generateUUID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = timeNow()
	}

	query := `
		INSERT INTO ledger_entries (id, menu_item_id, normalized_name, previous_ref, new_ref, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		e.ID,
		e.MenuItemID,
		e.NormalizedName,
		nullInt(e.PreviousRef),
		nullInt(e.NewRef),
		e.Actor,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting ledger entry: %w", err)
	}
	return nil
}

func refChanged(prev sql.NullInt64, next *int64) bool {
	if !prev.Valid {
		return next != nil
	}
	return next == nil || *next != prev.Int64
}

func requireRow(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return entities.NotFoundErrorf(format, args...)
	}
	return nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
