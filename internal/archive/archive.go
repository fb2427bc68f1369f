// Package archive persists completed orders to PostgreSQL. It is a
// write-once sink: live conversation reads never touch it.
package archive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordervox/ordervox/internal/session"
)

const ddlArchive = `
CREATE TABLE IF NOT EXISTS archived_orders (
    id            BIGSERIAL    PRIMARY KEY,
    order_id      TEXT         NOT NULL UNIQUE,
    restaurant_id INTEGER      NOT NULL,
    total         NUMERIC(8,2) NOT NULL,
    status        TEXT         NOT NULL,
    created_at    TIMESTAMPTZ  NOT NULL,
    completed_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_archived_orders_restaurant
    ON archived_orders (restaurant_id, completed_at);

CREATE TABLE IF NOT EXISTS archived_order_items (
    id                   BIGSERIAL    PRIMARY KEY,
    order_id             TEXT         NOT NULL REFERENCES archived_orders (order_id) ON DELETE CASCADE,
    line_id              INTEGER      NOT NULL,
    menu_item_id         INTEGER      NOT NULL,
    name                 TEXT         NOT NULL,
    quantity             INTEGER      NOT NULL,
    size                 TEXT         NOT NULL DEFAULT '',
    modifiers            TEXT[]       NOT NULL DEFAULT '{}',
    special_instructions TEXT         NOT NULL DEFAULT '',
    unit_price           NUMERIC(8,2) NOT NULL,
    total_price          NUMERIC(8,2) NOT NULL
);
`

// Store writes completed orders. It implements [session.Archiver].
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Compile-time interface check.
var _ session.Archiver = (*Store)(nil)

// NewStore wraps an existing pool and ensures the archive tables exist.
func NewStore(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := pool.Exec(ctx, ddlArchive); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// ArchiveOrder writes the order header and line items in one transaction.
// Re-archiving the same order id overwrites the previous rows, which makes
// retries after a partial failure safe.
func (s *Store) ArchiveOrder(ctx context.Context, sess *session.Session) error {
	if sess.Order == nil {
		return fmt.Errorf("archive: session %s has no order state", sess.ID)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("archive: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO archived_orders (order_id, restaurant_id, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO UPDATE
		SET total = EXCLUDED.total, status = EXCLUDED.status, completed_at = now()`,
		sess.OrderID, sess.RestaurantID, sess.Order.Total, string(sess.Status), sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("archive: insert order %s: %w", sess.OrderID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM archived_order_items WHERE order_id = $1`, sess.OrderID); err != nil {
		return fmt.Errorf("archive: clear items for %s: %w", sess.OrderID, err)
	}
	for _, li := range sess.Order.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO archived_order_items
				(order_id, line_id, menu_item_id, name, quantity, size, modifiers, special_instructions, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			sess.OrderID, li.ID, li.MenuItemID, li.Name, li.Quantity, li.Size,
			li.Modifiers, li.SpecialInstructions, li.UnitPrice, li.TotalPrice)
		if err != nil {
			return fmt.Errorf("archive: insert item %d for %s: %w", li.ID, sess.OrderID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("archive: commit %s: %w", sess.OrderID, err)
	}
	s.logger.Info("order archived",
		"order_id", sess.OrderID,
		"restaurant_id", sess.RestaurantID,
		"items", len(sess.Order.Items),
		"total", sess.Order.Total,
	)
	return nil
}
