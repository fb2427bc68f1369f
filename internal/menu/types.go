// Package menu provides the menu read model: a PostgreSQL-backed store for
// menu items, ingredients, and inventory, fronted by a per-restaurant TTL
// cache with fuzzy search. Writes never go through this path; imports evict
// via [Cache.Invalidate].
package menu

// Item is one orderable menu entry. Items are immutable within a turn.
type Item struct {
	ID           int     `json:"id"`
	RestaurantID int     `json:"restaurant_id"`
	CategoryID   int     `json:"category_id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	IsAvailable  bool    `json:"is_available"`

	// Ingredients lists the item's composition with required/optional flags.
	Ingredients []Ingredient `json:"ingredients,omitempty"`
}

// Ingredient is one component of a menu item.
type Ingredient struct {
	ID   int    `json:"id"`
	Name string `json:"name"`

	// Required ingredients cannot be removed by a customization.
	Required bool `json:"required"`

	// AdditionalCost is charged when the ingredient is added as an extra.
	AdditionalCost float64 `json:"additional_cost"`
}

// Inventory is the stock record for one ingredient.
type Inventory struct {
	IngredientID  int     `json:"ingredient_id"`
	CurrentStock  float64 `json:"current_stock"`
	MinStockLevel float64 `json:"min_stock_level"`
}

// LowStock reports whether the ingredient is at or below its minimum level.
func (v Inventory) LowStock() bool {
	return v.CurrentStock <= v.MinStockLevel
}
