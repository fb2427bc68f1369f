package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/menu"
	"github.com/ordervox/ordervox/internal/order"
)

// Command is one executable unit of a turn. Execute never returns a Go
// error; every failure mode is encoded in the [order.Result].
type Command interface {
	Intent() dialog.IntentType
	Execute(ctx context.Context, c *Context) *order.Result
}

// New materializes a validated dict into a Command. Callers must run
// [Validator.Validate] first; New only rejects intents it has no variant
// for.
func New(d Dict) (Command, error) {
	switch d.Intent {
	case dialog.IntentAddItem:
		id, _ := d.IntSlot("menu_item_id")
		qty, _ := d.IntSlot("quantity")
		size, _ := d.StringSlot("size")
		mods, _ := d.StringsSlot("modifiers")
		special, _ := d.StringSlot("special_instructions")
		return &addItem{menuItemID: id, quantity: qty, size: size, modifiers: mods, special: special}, nil

	case dialog.IntentRemoveItem:
		id, _ := d.IntSlot("order_item_id")
		ref, _ := d.StringSlot("target_ref")
		return &removeItem{orderItemID: id, targetRef: ref}, nil

	case dialog.IntentModifyItem:
		id, _ := d.IntSlot("order_item_id")
		ref, _ := d.StringSlot("target_ref")
		mods, _ := d.StringsSlot("modifiers")
		size, _ := d.StringSlot("size")
		qty, _ := d.IntSlot("quantity")
		return &modifyItem{orderItemID: id, targetRef: ref, modifiers: mods, size: size, quantity: qty}, nil

	case dialog.IntentSetQuantity:
		id, _ := d.IntSlot("order_item_id")
		ref, _ := d.StringSlot("target_ref")
		qty, _ := d.IntSlot("quantity")
		return &setQuantity{orderItemID: id, targetRef: ref, quantity: qty}, nil

	case dialog.IntentClearOrder:
		return clearOrder{}, nil
	case dialog.IntentConfirmOrder:
		return confirmOrder{}, nil
	case dialog.IntentRepeat:
		return repeatOrder{}, nil

	case dialog.IntentQuestion:
		item, _ := d.StringSlot("item")
		return &question{item: item}, nil

	case dialog.IntentSmallTalk:
		return smallTalk{}, nil

	case dialog.IntentClarificationNeeded:
		ambiguous, _ := d.StringSlot("ambiguous_item")
		opts, _ := d.StringsSlot("suggested_options")
		q, _ := d.StringSlot("clarification_question")
		return &clarificationNeeded{ambiguous: ambiguous, options: opts, question: q}, nil

	case dialog.IntentItemUnavailable:
		requested, _ := d.StringSlot("requested_item")
		msg, _ := d.StringSlot("message")
		return &itemUnavailable{requested: requested, message: msg}, nil

	case dialog.IntentUnknown:
		return unknown{}, nil
	}
	return nil, fmt.Errorf("command: no variant for intent %q", d.Intent)
}

type addItem struct {
	menuItemID int
	quantity   int
	size       string
	modifiers  []string
	special    string
}

func (addItem) Intent() dialog.IntentType { return dialog.IntentAddItem }

func (a *addItem) Execute(ctx context.Context, c *Context) *order.Result {
	item, err := c.Menu.ItemByID(ctx, a.menuItemID)
	if err != nil {
		if errors.Is(err, menu.ErrNotFound) {
			return order.Failure(order.CategoryBusiness, order.CodeItemNotFound,
				fmt.Sprintf("I couldn't find that item on the menu (id %d).", a.menuItemID))
		}
		c.logger().Error("menu lookup failed", "menu_item_id", a.menuItemID, "error", err)
		return order.SystemFailure(order.CodeDatabaseError, "Sorry, something went wrong on our end.")
	}
	return c.Service.AddItem(c.Order, order.AddRequest{
		Item:                *item,
		Quantity:            a.quantity,
		Size:                a.size,
		Modifiers:           a.modifiers,
		SpecialInstructions: a.special,
	})
}

type removeItem struct {
	orderItemID int
	targetRef   string
}

func (removeItem) Intent() dialog.IntentType { return dialog.IntentRemoveItem }

func (r *removeItem) Execute(_ context.Context, c *Context) *order.Result {
	return c.Service.RemoveItem(c.Order, r.orderItemID, r.targetRef)
}

type modifyItem struct {
	orderItemID int
	targetRef   string
	modifiers   []string
	size        string
	quantity    int
}

func (modifyItem) Intent() dialog.IntentType { return dialog.IntentModifyItem }

func (m *modifyItem) Execute(ctx context.Context, c *Context) *order.Result {
	req := order.ModifyRequest{
		OrderItemID: m.orderItemID,
		TargetRef:   m.targetRef,
		Modifiers:   m.modifiers,
		Size:        m.size,
		Quantity:    m.quantity,
	}
	// Load the backing menu item so new modifiers validate against its
	// ingredients. A failed lookup degrades to unchecked modifiers rather
	// than failing the whole modification.
	if li := c.Service.TargetRef(c.Order, m.orderItemID, m.targetRef); li != nil && len(m.modifiers) > 0 {
		item, err := c.Menu.ItemByID(ctx, li.MenuItemID)
		if err != nil {
			c.logger().Warn("menu lookup for modify failed; skipping modifier validation",
				"menu_item_id", li.MenuItemID, "error", err)
		} else {
			req.Item = item
		}
	}
	return c.Service.ModifyItem(c.Order, req)
}

type setQuantity struct {
	orderItemID int
	targetRef   string
	quantity    int
}

func (setQuantity) Intent() dialog.IntentType { return dialog.IntentSetQuantity }

func (s *setQuantity) Execute(_ context.Context, c *Context) *order.Result {
	return c.Service.SetQuantity(c.Order, s.orderItemID, s.targetRef, s.quantity)
}

type clearOrder struct{}

func (clearOrder) Intent() dialog.IntentType { return dialog.IntentClearOrder }

func (clearOrder) Execute(_ context.Context, c *Context) *order.Result {
	return c.Service.Clear(c.Order)
}

type repeatOrder struct{}

func (repeatOrder) Intent() dialog.IntentType { return dialog.IntentRepeat }

func (repeatOrder) Execute(_ context.Context, c *Context) *order.Result {
	res := order.Success(c.Order.Summary())
	res.Data = map[string]any{"summary": c.Order.Summary()}
	return res
}

type question struct {
	// item, when set, narrows the question to one menu item.
	item string
}

func (question) Intent() dialog.IntentType { return dialog.IntentQuestion }

func (q *question) Execute(ctx context.Context, c *Context) *order.Result {
	if q.item != "" {
		matches, err := c.Menu.SearchItems(ctx, c.RestaurantID, q.item)
		if err != nil {
			c.logger().Error("menu search for question failed", "query", q.item, "error", err)
			return order.SystemFailure(order.CodeDatabaseError, "Sorry, something went wrong on our end.")
		}
		if len(matches) == 0 {
			return order.Success(fmt.Sprintf("Sorry, we don't have %s.", q.item))
		}
		m := matches[0]
		return order.Success(fmt.Sprintf("%s is $%.2f.", m.Name, m.Price))
	}

	items, err := c.Menu.AvailableItems(ctx, c.RestaurantID)
	if err != nil {
		c.logger().Error("menu listing for question failed", "error", err)
		return order.SystemFailure(order.CodeDatabaseError, "Sorry, something went wrong on our end.")
	}
	if len(items) == 0 {
		return order.Success("I'm sorry, the menu isn't available right now.")
	}
	const maxListed = 8
	names := make([]string, 0, maxListed)
	for _, it := range items {
		names = append(names, it.Name)
		if len(names) == maxListed {
			break
		}
	}
	return order.Success(fmt.Sprintf("Today we have %s.", strings.Join(names, ", ")))
}

type smallTalk struct{}

func (smallTalk) Intent() dialog.IntentType { return dialog.IntentSmallTalk }

func (smallTalk) Execute(_ context.Context, _ *Context) *order.Result {
	return order.Success("Happy to help! What can I get for you today?")
}

type clarificationNeeded struct {
	ambiguous string
	options   []string
	question  string
}

func (clarificationNeeded) Intent() dialog.IntentType { return dialog.IntentClarificationNeeded }

func (cl *clarificationNeeded) Execute(_ context.Context, _ *Context) *order.Result {
	q := cl.question
	if q == "" {
		q = fmt.Sprintf("Which %s did you want? We have %s.", cl.ambiguous, orList(cl.options))
	}
	res := order.Success(q)
	res.ResponseType = order.ResponseClarification
	res.Data = map[string]any{
		"ambiguous_item":         cl.ambiguous,
		"suggested_options":      cl.options,
		"clarification_question": q,
	}
	return res
}

type itemUnavailable struct {
	requested string
	message   string
}

func (itemUnavailable) Intent() dialog.IntentType { return dialog.IntentItemUnavailable }

func (u *itemUnavailable) Execute(_ context.Context, _ *Context) *order.Result {
	msg := u.message
	if msg == "" {
		msg = fmt.Sprintf("Sorry, we don't have %s.", u.requested)
	}
	res := order.Failure(order.CategoryBusiness, order.CodeItemUnavailable, msg)
	res.Data = map[string]any{"requested_item": u.requested}
	return res
}

type unknown struct{}

func (unknown) Intent() dialog.IntentType { return dialog.IntentUnknown }

func (unknown) Execute(_ context.Context, _ *Context) *order.Result {
	return order.Failure(order.CategoryValidation, order.CodeInvalidInputFormat,
		"I'm sorry, I didn't understand. Could you please try again?")
}

// orList joins options for speech: "Big Mac, Quarter Pounder, or McDouble".
func orList(options []string) string {
	switch len(options) {
	case 0:
		return ""
	case 1:
		return options[0]
	case 2:
		return options[0] + " or " + options[1]
	}
	return strings.Join(options[:len(options)-1], ", ") + ", or " + options[len(options)-1]
}
