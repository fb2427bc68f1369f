package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/order"
)

// confirmOrder finalizes the order. When inventory checking is enabled it
// verifies and decrements ingredient stock inside the turn transaction, so
// a rolled-back turn never loses stock.
type confirmOrder struct{}

func (confirmOrder) Intent() dialog.IntentType { return dialog.IntentConfirmOrder }

func (confirmOrder) Execute(ctx context.Context, c *Context) *order.Result {
	if c.Order.IsEmpty() {
		return order.Failure(order.CategoryBusiness, order.CodeItemNotFound,
			"There's nothing in your order to confirm yet.")
	}

	var shortages []string
	if c.Cfg.EnableInventoryChecking && c.Inventory != nil && c.Tx != nil {
		var err error
		shortages, err = decrementInventory(ctx, c)
		if err != nil {
			c.logger().Error("inventory check failed", "order_id", c.OrderID, "error", err)
			return order.SystemFailure(order.CodeDatabaseError, "Sorry, something went wrong on our end.")
		}
		if len(shortages) > 0 && !c.Cfg.AllowNegativeInventory {
			return order.Failure(order.CategoryBusiness, order.CodeInventoryShortage,
				fmt.Sprintf("Sorry, we're out of %s right now.", strings.Join(shortages, ", ")))
		}
	}

	msg := fmt.Sprintf("Great, your order is confirmed. %s Please pull forward.", c.Order.Summary())
	var res *order.Result
	if len(shortages) > 0 {
		res = order.Warning(msg + " Some ingredients are running low.")
	} else {
		res = order.Success(msg)
	}
	res.Data = map[string]any{
		"order_id":    c.OrderID,
		"order_total": c.Order.Total,
		"item_count":  c.Order.ItemCount(),
	}
	return res
}

// decrementInventory checks stock for every ingredient of every line item
// and, only when no blocking shortage exists, decrements it. It returns the
// names of ingredients whose stock went short; the caller decides whether
// shortage is fatal. A blocked confirm must leave inventory untouched so the
// committed turn transaction carries no partial decrements.
func decrementInventory(ctx context.Context, c *Context) ([]string, error) {
	// Demand per ingredient: one unit of each ingredient per item unit,
	// minus ingredients the customer removed.
	demand := make(map[int]float64)
	names := make(map[int]string)
	for _, li := range c.Order.Items {
		item, err := c.Menu.ItemByID(ctx, li.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("command: load item %d: %w", li.MenuItemID, err)
		}
		for _, ing := range item.Ingredients {
			if removedByModifier(ing.Name, li.Modifiers) {
				continue
			}
			demand[ing.ID] += float64(li.Quantity)
			names[ing.ID] = ing.Name
		}
	}
	if len(demand) == 0 {
		return nil, nil
	}

	ids := make([]int, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	stock, err := c.Inventory.InventoryFor(ctx, c.Tx, ids)
	if err != nil {
		return nil, fmt.Errorf("command: read inventory: %w", err)
	}

	var shortages []string
	for _, id := range ids {
		if inv, tracked := stock[id]; tracked && inv.CurrentStock < demand[id] {
			shortages = append(shortages, names[id])
		}
	}
	if len(shortages) > 0 && !c.Cfg.AllowNegativeInventory {
		return shortages, nil
	}

	for _, id := range ids {
		if _, tracked := stock[id]; !tracked {
			continue
		}
		if err := c.Inventory.DecrementStock(ctx, c.Tx, id, demand[id]); err != nil {
			return nil, fmt.Errorf("command: decrement ingredient %d: %w", id, err)
		}
	}
	return shortages, nil
}

// removedByModifier reports whether a "no X" style modifier drops the
// ingredient from the line.
func removedByModifier(ingredient string, modifiers []string) bool {
	ing := strings.ToLower(ingredient)
	for _, m := range modifiers {
		m = strings.ToLower(strings.TrimSpace(m))
		for _, prefix := range []string{"no ", "without ", "hold the ", "remove "} {
			if rest, ok := strings.CutPrefix(m, prefix); ok {
				rest = strings.TrimSpace(rest)
				if rest == ing || rest == ing+"s" || rest+"s" == ing {
					return true
				}
			}
		}
	}
	return false
}
