package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a menu item or ingredient does not exist.
var ErrNotFound = errors.New("menu: not found")

// Store is the PostgreSQL-backed menu store. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection, and
// runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("menu store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("menu store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool wraps an existing pool without running migrations. The
// archive and menu stores share one pool in production.
func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying connection pool. The command executor opens
// its per-turn transaction on it.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases all connections held by the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// AvailableItems returns all currently available items for a restaurant,
// without ingredient details.
func (s *Store) AvailableItems(ctx context.Context, restaurantID int) ([]Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, restaurant_id, category_id, name, price, is_available
		FROM menu_items
		WHERE restaurant_id = $1 AND is_available
		ORDER BY name`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("menu store: query available items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.RestaurantID, &it.CategoryID, &it.Name, &it.Price, &it.IsAvailable); err != nil {
			return nil, fmt.Errorf("menu store: scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("menu store: iterate items: %w", err)
	}
	return items, nil
}

// ItemByID returns one item with its ingredient list loaded. Returns
// [ErrNotFound] when no such item exists.
func (s *Store) ItemByID(ctx context.Context, id int) (*Item, error) {
	var it Item
	err := s.pool.QueryRow(ctx, `
		SELECT id, restaurant_id, category_id, name, price, is_available
		FROM menu_items WHERE id = $1`, id).
		Scan(&it.ID, &it.RestaurantID, &it.CategoryID, &it.Name, &it.Price, &it.IsAvailable)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: item id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("menu store: query item %d: %w", id, err)
	}

	ingredients, err := s.ingredientsForItem(ctx, it.ID)
	if err != nil {
		return nil, err
	}
	it.Ingredients = ingredients
	return &it, nil
}

// ItemIngredients returns the ingredient list for a named item of a
// restaurant. Returns [ErrNotFound] when the item does not exist.
func (s *Store) ItemIngredients(ctx context.Context, restaurantID int, name string) ([]Ingredient, error) {
	var itemID int
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM menu_items
		WHERE restaurant_id = $1 AND lower(name) = lower($2)`, restaurantID, name).
		Scan(&itemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("menu store: query item %q: %w", name, err)
	}
	return s.ingredientsForItem(ctx, itemID)
}

// ingredientsForItem loads the ingredient rows joined to one menu item.
func (s *Store) ingredientsForItem(ctx context.Context, itemID int) ([]Ingredient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.name, ii.required, ii.additional_cost
		FROM item_ingredients ii
		JOIN ingredients i ON i.id = ii.ingredient_id
		WHERE ii.menu_item_id = $1
		ORDER BY i.name`, itemID)
	if err != nil {
		return nil, fmt.Errorf("menu store: query ingredients for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var ingredients []Ingredient
	for rows.Next() {
		var ing Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Required, &ing.AdditionalCost); err != nil {
			return nil, fmt.Errorf("menu store: scan ingredient: %w", err)
		}
		ingredients = append(ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("menu store: iterate ingredients: %w", err)
	}
	return ingredients, nil
}

// InventoryFor returns the inventory records for the given ingredient ids,
// reading through tx so the executor sees a consistent snapshot within its
// turn transaction. Missing records are omitted.
func (s *Store) InventoryFor(ctx context.Context, tx pgx.Tx, ingredientIDs []int) (map[int]Inventory, error) {
	if len(ingredientIDs) == 0 {
		return map[int]Inventory{}, nil
	}
	rows, err := tx.Query(ctx, `
		SELECT ingredient_id, current_stock, min_stock_level
		FROM inventory
		WHERE ingredient_id = ANY($1)
		FOR UPDATE`, ingredientIDs)
	if err != nil {
		return nil, fmt.Errorf("menu store: query inventory: %w", err)
	}
	defer rows.Close()

	out := make(map[int]Inventory, len(ingredientIDs))
	for rows.Next() {
		var inv Inventory
		if err := rows.Scan(&inv.IngredientID, &inv.CurrentStock, &inv.MinStockLevel); err != nil {
			return nil, fmt.Errorf("menu store: scan inventory: %w", err)
		}
		out[inv.IngredientID] = inv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("menu store: iterate inventory: %w", err)
	}
	return out, nil
}

// DecrementStock subtracts amount from one ingredient's stock inside tx.
func (s *Store) DecrementStock(ctx context.Context, tx pgx.Tx, ingredientID int, amount float64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE inventory
		SET current_stock = current_stock - $2
		WHERE ingredient_id = $1`, ingredientID, amount)
	if err != nil {
		return fmt.Errorf("menu store: decrement stock for ingredient %d: %w", ingredientID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: inventory for ingredient %d", ErrNotFound, ingredientID)
	}
	return nil
}
