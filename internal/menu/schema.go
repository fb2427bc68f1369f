package menu

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlMenu = `
CREATE TABLE IF NOT EXISTS menu_items (
    id            SERIAL       PRIMARY KEY,
    restaurant_id INTEGER      NOT NULL,
    category_id   INTEGER      NOT NULL DEFAULT 0,
    name          TEXT         NOT NULL,
    price         NUMERIC(8,2) NOT NULL,
    is_available  BOOLEAN      NOT NULL DEFAULT TRUE,
    UNIQUE (restaurant_id, name)
);

CREATE INDEX IF NOT EXISTS idx_menu_items_restaurant
    ON menu_items (restaurant_id) WHERE is_available;

CREATE TABLE IF NOT EXISTS ingredients (
    id              SERIAL       PRIMARY KEY,
    restaurant_id   INTEGER      NOT NULL,
    name            TEXT         NOT NULL,
    unit_cost       NUMERIC(8,2) NOT NULL DEFAULT 0,
    UNIQUE (restaurant_id, name)
);

CREATE TABLE IF NOT EXISTS item_ingredients (
    menu_item_id    INTEGER      NOT NULL REFERENCES menu_items (id) ON DELETE CASCADE,
    ingredient_id   INTEGER      NOT NULL REFERENCES ingredients (id) ON DELETE CASCADE,
    required        BOOLEAN      NOT NULL DEFAULT FALSE,
    additional_cost NUMERIC(8,2) NOT NULL DEFAULT 0,
    PRIMARY KEY (menu_item_id, ingredient_id)
);

CREATE TABLE IF NOT EXISTS inventory (
    ingredient_id   INTEGER      PRIMARY KEY REFERENCES ingredients (id) ON DELETE CASCADE,
    current_stock   NUMERIC(10,2) NOT NULL DEFAULT 0,
    min_stock_level NUMERIC(10,2) NOT NULL DEFAULT 0
);
`

// Migrate creates the menu and inventory tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlMenu); err != nil {
		return fmt.Errorf("menu: migrate: %w", err)
	}
	return nil
}
