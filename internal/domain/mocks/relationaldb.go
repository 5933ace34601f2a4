package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/ports"
)

// RelationalDB is an in-memory implementation of ports.RelationalDB.
// It enforces the same reference and count rules as the SQLite store.
type RelationalDB struct {
	mu sync.Mutex

	Menus       map[int64]*entities.StandardMenuEntry
	Restaurants map[int64]*entities.Restaurant
	Items       map[int64]*entities.MenuItem
	History     []entities.MatchHistory
	Ledger      []entities.LedgerEntry

	// Err is returned by every method when set.
	Err error
	// CommitErr is returned by CommitMatch only.
	CommitErr error

	// Call tracking
	CommitCallCount int

	nextMenuID       int64
	nextRestaurantID int64
	nextItemID       int64
}

// NewRelationalDB creates a new mock RelationalDB.
func NewRelationalDB() *RelationalDB {
	return &RelationalDB{
		Menus:       make(map[int64]*entities.StandardMenuEntry),
		Restaurants: make(map[int64]*entities.Restaurant),
		Items:       make(map[int64]*entities.MenuItem),
	}
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *RelationalDB) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes the database connection.
func (m *RelationalDB) Close() error {
	return nil
}

// Standard menu methods.

// CreateStandardMenu inserts a catalog entry and sets its ID.
func (m *RelationalDB) CreateStandardMenu(_ context.Context, entry *entities.StandardMenuEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, e := range m.Menus {
		if e.Name == entry.Name {
			return entities.ConflictErrorf("standard menu '%s' already exists", entry.Name)
		}
	}

	m.nextMenuID++
	entry.ID = m.nextMenuID
	entry.MatchCount = 0
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt

	stored := *entry
	stored.Aliases = nil
	m.Menus[entry.ID] = &stored
	return nil
}

// UpdateStandardMenu writes the editable fields of a catalog entry.
func (m *RelationalDB) UpdateStandardMenu(_ context.Context, entry *entities.StandardMenuEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	stored, ok := m.Menus[entry.ID]
	if !ok {
		return entities.NotFoundErrorf("standard menu %d not found", entry.ID)
	}
	for _, e := range m.Menus {
		if e.ID != entry.ID && e.Name == entry.Name {
			return entities.ConflictErrorf("standard menu '%s' already exists", entry.Name)
		}
	}

	stored.Name = entry.Name
	stored.NormalizedName = entry.NormalizedName
	stored.Category = entry.Category
	stored.Description = entry.Description
	stored.IsActive = entry.IsActive
	stored.UpdatedAt = time.Now()
	return nil
}

// FindStandardMenu finds a catalog entry with its aliases.
func (m *RelationalDB) FindStandardMenu(_ context.Context, id int64) (*entities.StandardMenuEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	e, ok := m.Menus[id]
	if !ok {
		return nil, nil
	}
	return copyMenu(e), nil
}

// FindStandardMenuByName finds a catalog entry by display name.
func (m *RelationalDB) FindStandardMenuByName(_ context.Context, name string) (*entities.StandardMenuEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	for _, e := range m.Menus {
		if e.Name == name {
			return copyMenu(e), nil
		}
	}
	return nil, nil
}

// ListStandardMenus lists catalog entries ordered by id.
func (m *RelationalDB) ListStandardMenus(_ context.Context, activeOnly bool) ([]entities.StandardMenuEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	result := make([]entities.StandardMenuEntry, 0, len(m.Menus))
	for _, e := range m.Menus {
		if activeOnly && !e.IsActive {
			continue
		}
		result = append(result, *copyMenu(e))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// PopularStandardMenus lists active entries by match count descending.
func (m *RelationalDB) PopularStandardMenus(ctx context.Context, limit int) ([]entities.StandardMenuEntry, error) {
	result, err := m.ListStandardMenus(ctx, true)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].MatchCount > result[j].MatchCount })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteStandardMenu removes an unreferenced catalog entry.
func (m *RelationalDB) DeleteStandardMenu(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	refs := 0
	for _, item := range m.Items {
		if item.StandardMenuID != nil && *item.StandardMenuID == id {
			refs++
		}
	}
	if refs > 0 {
		return entities.ReferenceErrorf("standard menu %d is referenced by %d menu items", id, refs)
	}
	if _, ok := m.Menus[id]; !ok {
		return entities.NotFoundErrorf("standard menu %d not found", id)
	}
	delete(m.Menus, id)

	history := m.History[:0]
	for _, h := range m.History {
		if h.StandardMenuID != id {
			history = append(history, h)
		}
	}
	m.History = history
	return nil
}

// SaveAlias attaches a normalized alias to a catalog entry.
func (m *RelationalDB) SaveAlias(_ context.Context, entryID int64, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, e := range m.Menus {
		for _, a := range e.Aliases {
			if a != alias {
				continue
			}
			if e.ID != entryID {
				return entities.ConflictErrorf("alias '%s' already belongs to standard menu %d", alias, e.ID)
			}
			return nil
		}
	}
	e, ok := m.Menus[entryID]
	if !ok {
		return entities.NotFoundErrorf("standard menu %d not found", entryID)
	}
	e.Aliases = append(e.Aliases, alias)
	return nil
}

// DeleteAlias detaches an alias from a catalog entry.
func (m *RelationalDB) DeleteAlias(_ context.Context, entryID int64, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	e, ok := m.Menus[entryID]
	if !ok {
		return entities.NotFoundErrorf("standard menu %d not found", entryID)
	}
	for i, a := range e.Aliases {
		if a == alias {
			e.Aliases = append(e.Aliases[:i], e.Aliases[i+1:]...)
			return nil
		}
	}
	return entities.NotFoundErrorf("alias '%s' not found on standard menu %d", alias, entryID)
}

// Restaurant methods.

// CreateRestaurant inserts a restaurant and sets its ID.
func (m *RelationalDB) CreateRestaurant(_ context.Context, r *entities.Restaurant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.nextRestaurantID++
	r.ID = m.nextRestaurantID
	r.CreatedAt = time.Now()
	stored := *r
	m.Restaurants[r.ID] = &stored
	return nil
}

// FindRestaurant finds a restaurant by ID.
func (m *RelationalDB) FindRestaurant(_ context.Context, id int64) (*entities.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	r, ok := m.Restaurants[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

// ListRestaurants lists all restaurants ordered by id.
func (m *RelationalDB) ListRestaurants(_ context.Context) ([]entities.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	result := make([]entities.Restaurant, 0, len(m.Restaurants))
	for _, r := range m.Restaurants {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Menu item methods.

// CreateMenuItem inserts an unmatched menu item and sets its ID.
func (m *RelationalDB) CreateMenuItem(_ context.Context, item *entities.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if item.RestaurantID != nil {
		if _, ok := m.Restaurants[*item.RestaurantID]; !ok {
			return entities.ValidationErrorf("restaurant does not exist")
		}
	}
	if err := m.checkItemName(item); err != nil {
		return err
	}

	m.nextItemID++
	item.ID = m.nextItemID
	item.Apply(entities.Unmatched())
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	stored := *item
	m.Items[item.ID] = &stored
	return nil
}

// UpdateMenuItemDetails writes the raw fields of a menu item.
func (m *RelationalDB) UpdateMenuItemDetails(_ context.Context, item *entities.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	return m.applyDetails(item)
}

func (m *RelationalDB) applyDetails(item *entities.MenuItem) error {
	stored, ok := m.Items[item.ID]
	if !ok {
		return entities.NotFoundErrorf("menu item %d not found", item.ID)
	}
	if err := m.checkItemName(item); err != nil {
		return err
	}
	stored.OriginalName = item.OriginalName
	stored.NormalizedName = item.NormalizedName
	stored.Price = item.Price
	stored.Description = item.Description
	stored.UpdatedAt = time.Now()
	return nil
}

// checkItemName enforces one raw name per restaurant, items without a
// restaurant sharing a single namespace.
func (m *RelationalDB) checkItemName(item *entities.MenuItem) error {
	for _, other := range m.Items {
		if other.ID == item.ID || other.OriginalName != item.OriginalName {
			continue
		}
		if sameRestaurant(other.RestaurantID, item.RestaurantID) {
			return entities.ConflictErrorf("menu item '%s' already exists for this restaurant", item.OriginalName)
		}
	}
	return nil
}

func sameRestaurant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// FindMenuItem finds a menu item by ID.
func (m *RelationalDB) FindMenuItem(_ context.Context, id int64) (*entities.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	item, ok := m.Items[id]
	if !ok {
		return nil, nil
	}
	c := *item
	return &c, nil
}

// ListMenuItems lists menu items ordered by id.
func (m *RelationalDB) ListMenuItems(_ context.Context, filter ports.MenuItemFilter) ([]entities.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	result := make([]entities.MenuItem, 0, len(m.Items))
	for _, item := range m.Items {
		if filter.RestaurantID != nil && (item.RestaurantID == nil || *item.RestaurantID != *filter.RestaurantID) {
			continue
		}
		if filter.Method != nil && item.MatchMethod != *filter.Method {
			continue
		}
		if filter.Unverified && (item.MatchMethod != entities.MatchAutomatic || item.IsVerified) {
			continue
		}
		result = append(result, *item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []entities.MenuItem{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// DeleteMenuItem removes a menu item and releases its match count.
func (m *RelationalDB) DeleteMenuItem(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	item, ok := m.Items[id]
	if !ok {
		return entities.NotFoundErrorf("menu item %d not found", id)
	}
	if item.StandardMenuID != nil {
		m.decrement(*item.StandardMenuID)
	}
	delete(m.Items, id)

	history := m.History[:0]
	for _, h := range m.History {
		if h.MenuItemID != id {
			history = append(history, h)
		}
	}
	m.History = history
	return nil
}

// Match state methods.

// CommitMatch applies a match transition atomically.
func (m *RelationalDB) CommitMatch(_ context.Context, tr ports.MatchTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CommitCallCount++
	if m.Err != nil {
		return m.Err
	}
	if m.CommitErr != nil {
		return m.CommitErr
	}

	item, ok := m.Items[tr.ItemID]
	if !ok {
		return entities.NotFoundErrorf("menu item %d not found", tr.ItemID)
	}

	prev := item.StandardMenuID
	next := tr.Next.StandardMenuID
	changed := (prev == nil) != (next == nil) || (prev != nil && *prev != *next)

	// Validate before mutating so a failure leaves nothing behind.
	if changed && next != nil {
		e, ok := m.Menus[*next]
		if !ok || !e.IsActive {
			return entities.ReferenceErrorf("standard menu %d is inactive or missing", *next)
		}
	}
	if tr.Details != nil {
		if err := m.checkItemName(tr.Details); err != nil {
			return err
		}
	}

	if changed {
		if prev != nil {
			m.decrement(*prev)
		}
		if next != nil {
			m.Menus[*next].MatchCount++
		}
	}

	if tr.Details != nil {
		if err := m.applyDetails(tr.Details); err != nil {
			return err
		}
	}

	item.Apply(copyState(tr.Next))
	item.UpdatedAt = time.Now()

	if tr.History != nil {
		h := *tr.History
		if h.ID == "" {
			h.ID = uuid.New().String()
		}
		h.CreatedAt = time.Now()
		m.History = append(m.History, h)
	}
	if tr.Ledger != nil {
		e := *tr.Ledger
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		e.CreatedAt = time.Now()
		m.Ledger = append(m.Ledger, e)
	}
	return nil
}

// ListMatchHistory lists history rows for an item, newest first.
func (m *RelationalDB) ListMatchHistory(_ context.Context, itemID int64) ([]entities.MatchHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.MatchHistory
	for i := len(m.History) - 1; i >= 0; i-- {
		if m.History[i].MenuItemID == itemID {
			result = append(result, m.History[i])
		}
	}
	return result, nil
}

// ListLedger lists override records, newest first.
func (m *RelationalDB) ListLedger(_ context.Context, filter entities.LedgerFilter) ([]entities.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.LedgerEntry
	for i := len(m.Ledger) - 1; i >= 0; i-- {
		e := m.Ledger[i]
		if filter.MenuItemID != nil && e.MenuItemID != *filter.MenuItemID {
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// ReferenceCount counts items pointing at an entry. Tests compare it with MatchCount.
func (m *RelationalDB) ReferenceCount(entryID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, item := range m.Items {
		if item.StandardMenuID != nil && *item.StandardMenuID == entryID {
			n++
		}
	}
	return n
}

func (m *RelationalDB) decrement(entryID int64) {
	if e, ok := m.Menus[entryID]; ok && e.MatchCount > 0 {
		e.MatchCount--
	}
}

func copyMenu(e *entities.StandardMenuEntry) *entities.StandardMenuEntry {
	c := *e
	c.Aliases = append([]string(nil), e.Aliases...)
	return &c
}

func copyState(s entities.MatchState) entities.MatchState {
	c := s
	if s.StandardMenuID != nil {
		id := *s.StandardMenuID
		c.StandardMenuID = &id
	}
	if s.Confidence != nil {
		conf := *s.Confidence
		c.Confidence = &conf
	}
	return c
}
