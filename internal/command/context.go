package command

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/ordervox/ordervox/internal/config"
	"github.com/ordervox/ordervox/internal/menu"
	"github.com/ordervox/ordervox/internal/order"
)

// InventoryStore is the slice of the menu store the CONFIRM_ORDER command
// uses to check and decrement ingredient stock inside the turn transaction.
type InventoryStore interface {
	InventoryFor(ctx context.Context, tx pgx.Tx, ingredientIDs []int) (map[int]menu.Inventory, error)
	DecrementStock(ctx context.Context, tx pgx.Tx, ingredientID int, amount float64) error
}

// Context carries everything a command may touch during one turn. Commands
// mutate Order in place; the orchestrator decides whether the mutated copy is
// written back to the session.
type Context struct {
	SessionID    string
	RestaurantID int
	// OrderID equals SessionID for the lifetime of a session.
	OrderID string

	Order   *order.State
	Service *order.Service
	Menu    menu.Reader

	// Inventory and Tx are set when inventory checking is enabled; Tx is the
	// turn's shared transaction.
	Inventory InventoryStore
	Tx        pgx.Tx

	Cfg    config.OrderingConfig
	Logger *slog.Logger
}

func (c *Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
