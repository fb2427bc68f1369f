package menu

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a restaurant's menu snapshot is served before
// being re-read from the database.
const DefaultCacheTTL = 5 * time.Minute

// Reader is the read-only menu handle given to parsers and commands.
type Reader interface {
	// SearchItems returns available items fuzzily matching query, best first.
	SearchItems(ctx context.Context, restaurantID int, query string) ([]Item, error)
	// AvailableItems returns all available items for a restaurant.
	AvailableItems(ctx context.Context, restaurantID int) ([]Item, error)
	// ItemIngredients returns the ingredient list for a named item.
	ItemIngredients(ctx context.Context, restaurantID int, name string) ([]Ingredient, error)
	// ItemByID returns one item with ingredients loaded.
	ItemByID(ctx context.Context, id int) (*Item, error)
}

// source is the slice of Store the cache reads through.
type source interface {
	AvailableItems(ctx context.Context, restaurantID int) ([]Item, error)
	ItemIngredients(ctx context.Context, restaurantID int, name string) ([]Ingredient, error)
	ItemByID(ctx context.Context, id int) (*Item, error)
}

// snapshot is one restaurant's cached menu.
type snapshot struct {
	items   []Item
	byID    map[int]Item
	expires time.Time
}

// Cache is a read-through TTL cache over the menu store, keyed by
// restaurant. It is safe for concurrent use; readers far outnumber the
// writer (menu imports), so a single RWMutex suffices.
type Cache struct {
	src source
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	menus map[int]*snapshot
}

// Compile-time interface check.
var _ Reader = (*Cache)(nil)

// NewCache wraps src with a TTL cache. A non-positive ttl falls back to
// [DefaultCacheTTL].
func NewCache(src source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		src:   src,
		ttl:   ttl,
		now:   time.Now,
		menus: make(map[int]*snapshot),
	}
}

// AvailableItems returns the cached snapshot for a restaurant, reloading it
// from the store when missing or expired.
func (c *Cache) AvailableItems(ctx context.Context, restaurantID int) ([]Item, error) {
	snap, err := c.snapshotFor(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	return snap.items, nil
}

// SearchItems fuzzily matches query against the cached available items.
func (c *Cache) SearchItems(ctx context.Context, restaurantID int, query string) ([]Item, error) {
	snap, err := c.snapshotFor(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	return fuzzySearch(snap.items, query), nil
}

// ItemByID serves from the cached snapshot when the item is present there;
// ingredient details always read through to the store.
func (c *Cache) ItemByID(ctx context.Context, id int) (*Item, error) {
	return c.src.ItemByID(ctx, id)
}

// ItemIngredients reads through to the store. Ingredient lookups happen once
// per resolver tool call and are already bounded; caching them buys little.
func (c *Cache) ItemIngredients(ctx context.Context, restaurantID int, name string) ([]Ingredient, error) {
	return c.src.ItemIngredients(ctx, restaurantID, name)
}

// Invalidate drops the cached snapshot for a restaurant. Called on menu
// import events.
func (c *Cache) Invalidate(restaurantID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.menus, restaurantID)
}

// snapshotFor returns a current snapshot, reloading when stale.
func (c *Cache) snapshotFor(ctx context.Context, restaurantID int) (*snapshot, error) {
	c.mu.RLock()
	snap, ok := c.menus[restaurantID]
	c.mu.RUnlock()
	if ok && c.now().Before(snap.expires) {
		return snap, nil
	}

	items, err := c.src.AvailableItems(ctx, restaurantID)
	if err != nil {
		// Serve the stale snapshot if one exists; a flaky database should
		// not take ordering down while the menu is unchanged.
		if ok {
			return snap, nil
		}
		return nil, err
	}

	byID := make(map[int]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	fresh := &snapshot{items: items, byID: byID, expires: c.now().Add(c.ttl)}

	c.mu.Lock()
	c.menus[restaurantID] = fresh
	c.mu.Unlock()
	return fresh, nil
}
