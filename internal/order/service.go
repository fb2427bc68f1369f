package order

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/ordervox/ordervox/internal/config"
	"github.com/ordervox/ordervox/internal/menu"
)

// Service applies order mutations under the configured limits. Methods
// mutate the passed *State in place and report outcomes as [Result]s; the
// caller decides whether the mutated state is persisted (the executor only
// writes it back when the turn commits).
type Service struct {
	cfg       config.OrderingConfig
	validator *CustomizationValidator
	logger    *slog.Logger
}

// NewService builds a Service with the given ordering limits.
func NewService(cfg config.OrderingConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		validator: NewCustomizationValidator(cfg.EnableCustomizationValidation),
		logger:    logger,
	}
}

// AddRequest carries one resolved item to add.
type AddRequest struct {
	// Item is the resolved menu item, ingredients loaded.
	Item menu.Item

	Quantity            int
	Size                string
	Modifiers           []string
	SpecialInstructions string
}

// AddItem appends (or merges) a line item. Limit violations and
// customization failures return error results and leave the order unchanged.
func (s *Service) AddItem(st *State, req AddRequest) *Result {
	if req.Quantity < 1 {
		return Failure(CategoryValidation, CodeInvalidQuantity,
			fmt.Sprintf("Quantity %d is not valid.", req.Quantity))
	}
	if !req.Item.IsAvailable {
		return Failure(CategoryBusiness, CodeItemUnavailable,
			fmt.Sprintf("Sorry, we don't have %s.", req.Item.Name))
	}

	extraCost, failure := s.validator.Validate(req.Item, req.Modifiers)
	if failure != nil {
		return failure
	}

	// Identical lines merge so "another big mac" bumps the quantity instead
	// of opening a second line.
	merged := s.findMergeable(st, req)
	newQty := req.Quantity
	if merged != nil {
		newQty += merged.Quantity
	}
	if newQty > s.cfg.MaxQuantityPerItem {
		return Failure(CategoryBusiness, CodeQuantityExceedsLimit,
			fmt.Sprintf("You can order at most %d of a single item.", s.cfg.MaxQuantityPerItem))
	}
	if merged == nil && len(st.Items) >= s.cfg.MaxItemsPerOrder {
		return Failure(CategoryBusiness, CodeQuantityExceedsLimit,
			fmt.Sprintf("An order can have at most %d different items.", s.cfg.MaxItemsPerOrder))
	}

	unitPrice := req.Item.Price + extraCost
	addedTotal := float64(req.Quantity) * unitPrice
	if st.Total+addedTotal > s.cfg.MaxOrderTotal {
		return Failure(CategoryBusiness, CodeQuantityExceedsLimit,
			fmt.Sprintf("That would put the order over the $%.2f limit.", s.cfg.MaxOrderTotal))
	}

	if merged != nil {
		merged.Quantity = newQty
		st.LastMentionedID = merged.ID
	} else {
		li := LineItem{
			ID:                  st.NextID,
			MenuItemID:          req.Item.ID,
			Name:                req.Item.Name,
			Quantity:            req.Quantity,
			Size:                req.Size,
			Modifiers:           req.Modifiers,
			SpecialInstructions: req.SpecialInstructions,
			UnitPrice:           unitPrice,
		}
		st.NextID++
		st.Items = append(st.Items, li)
		st.LastMentionedID = li.ID
	}
	st.Recalculate()

	s.logger.Debug("line item added",
		"menu_item_id", req.Item.ID, "quantity", req.Quantity, "order_total", st.Total)
	res := Success(fmt.Sprintf("Added %d %s.", req.Quantity, req.Item.Name))
	res.Data = map[string]any{"order_total": st.Total}
	return res
}

// findMergeable returns an existing line identical to the request, or nil.
func (s *Service) findMergeable(st *State, req AddRequest) *LineItem {
	for i := range st.Items {
		li := &st.Items[i]
		if li.MenuItemID == req.Item.ID && li.Size == req.Size &&
			li.SpecialInstructions == req.SpecialInstructions &&
			slices.Equal(li.Modifiers, req.Modifiers) {
			return li
		}
	}
	return nil
}

// TargetRef locates a line item from either an explicit id or a spoken
// reference; id wins. An empty ref with id 0 falls back to the
// last-mentioned item.
func (s *Service) TargetRef(st *State, orderItemID int, targetRef string) *LineItem {
	if orderItemID > 0 {
		return st.ItemByID(orderItemID)
	}
	if targetRef != "" {
		return st.ItemByRef(targetRef)
	}
	return st.LastMentioned()
}

// RemoveItem deletes the referenced line item.
func (s *Service) RemoveItem(st *State, orderItemID int, targetRef string) *Result {
	if st.IsEmpty() {
		return Failure(CategoryBusiness, CodeItemNotFound, "There's nothing in your order yet.")
	}
	li := s.TargetRef(st, orderItemID, targetRef)
	if li == nil {
		return Failure(CategoryBusiness, CodeItemNotFound,
			fmt.Sprintf("I couldn't find %s in your order.", describeRef(orderItemID, targetRef)))
	}

	name := li.Name
	st.Items = slices.DeleteFunc(st.Items, func(x LineItem) bool { return x.ID == li.ID })
	if st.LastMentionedID == li.ID {
		st.LastMentionedID = 0
	}
	st.Recalculate()
	res := Success(fmt.Sprintf("Removed the %s.", name))
	res.Data = map[string]any{"order_total": st.Total}
	return res
}

// ModifyRequest carries one modification of an existing line item.
type ModifyRequest struct {
	OrderItemID int
	TargetRef   string

	// Item is the menu item backing the target line, ingredients loaded.
	// Required for modifier validation; when nil, modifiers pass unchecked.
	Item *menu.Item

	// Modifiers are appended to the line's modifier list.
	Modifiers []string
	// Size, when non-empty, replaces the line's size.
	Size string
	// Quantity, when > 0, replaces the line's quantity.
	Quantity int
}

// ModifyItem changes modifiers, size, or quantity of an existing line item.
func (s *Service) ModifyItem(st *State, req ModifyRequest) *Result {
	if st.IsEmpty() {
		return Failure(CategoryBusiness, CodeItemNotFound, "There's nothing in your order yet.")
	}
	li := s.TargetRef(st, req.OrderItemID, req.TargetRef)
	if li == nil {
		return Failure(CategoryBusiness, CodeItemNotFound,
			fmt.Sprintf("I couldn't find %s in your order.", describeRef(req.OrderItemID, req.TargetRef)))
	}

	newModifiers := li.Modifiers
	for _, m := range req.Modifiers {
		if !slices.Contains(newModifiers, m) {
			newModifiers = append(slices.Clone(newModifiers), m)
		}
	}

	extraCost := 0.0
	if req.Item != nil {
		var failure *Result
		extraCost, failure = s.validator.Validate(*req.Item, newModifiers)
		if failure != nil {
			return failure
		}
	}

	if req.Quantity > s.cfg.MaxQuantityPerItem {
		return Failure(CategoryBusiness, CodeQuantityExceedsLimit,
			fmt.Sprintf("You can order at most %d of a single item.", s.cfg.MaxQuantityPerItem))
	}

	// Check the total cap before touching the line so a failed modification
	// leaves the working copy untouched.
	newUnitPrice := li.UnitPrice
	if req.Item != nil {
		newUnitPrice = req.Item.Price + extraCost
	}
	newQty := li.Quantity
	if req.Quantity > 0 {
		newQty = req.Quantity
	}
	prospective := st.Total - li.TotalPrice + float64(newQty)*newUnitPrice
	if prospective > s.cfg.MaxOrderTotal {
		return Failure(CategoryBusiness, CodeQuantityExceedsLimit,
			fmt.Sprintf("That would put the order over the $%.2f limit.", s.cfg.MaxOrderTotal))
	}

	li.Modifiers = newModifiers
	if req.Size != "" {
		li.Size = req.Size
	}
	li.Quantity = newQty
	li.UnitPrice = newUnitPrice
	st.LastMentionedID = li.ID
	st.Recalculate()

	res := Success(fmt.Sprintf("Updated the %s.", li.Name))
	res.Data = map[string]any{"order_total": st.Total}
	return res
}

// SetQuantity changes the quantity of the referenced line item. Quantity
// zero removes the line.
func (s *Service) SetQuantity(st *State, orderItemID int, targetRef string, quantity int) *Result {
	if quantity < 0 {
		return Failure(CategoryValidation, CodeInvalidQuantity,
			fmt.Sprintf("Quantity %d is not valid.", quantity))
	}
	if quantity == 0 {
		return s.RemoveItem(st, orderItemID, targetRef)
	}
	if quantity > s.cfg.MaxQuantityPerItem {
		return Failure(CategoryBusiness, CodeQuantityExceedsLimit,
			fmt.Sprintf("You can order at most %d of a single item.", s.cfg.MaxQuantityPerItem))
	}
	if st.IsEmpty() {
		return Failure(CategoryBusiness, CodeItemNotFound, "There's nothing in your order yet.")
	}
	li := s.TargetRef(st, orderItemID, targetRef)
	if li == nil {
		return Failure(CategoryBusiness, CodeItemNotFound,
			fmt.Sprintf("I couldn't find %s in your order.", describeRef(orderItemID, targetRef)))
	}

	prospective := st.Total - li.TotalPrice + float64(quantity)*li.UnitPrice
	if prospective > s.cfg.MaxOrderTotal {
		return Failure(CategoryBusiness, CodeQuantityExceedsLimit,
			fmt.Sprintf("That would put the order over the $%.2f limit.", s.cfg.MaxOrderTotal))
	}

	li.Quantity = quantity
	st.LastMentionedID = li.ID
	st.Recalculate()

	res := Success(fmt.Sprintf("Changed %s to %d.", li.Name, quantity))
	res.Data = map[string]any{"order_total": st.Total}
	return res
}

// Clear empties the order. Clearing an already-empty order is a warning,
// never an error, and stays idempotent.
func (s *Service) Clear(st *State) *Result {
	if st.IsEmpty() {
		return Warning("Your order is already empty.")
	}
	st.Items = nil
	st.LastMentionedID = 0
	st.Recalculate()
	return Success("Okay, I've cleared your order.")
}

// describeRef renders whichever reference the caller supplied for error
// messages.
func describeRef(orderItemID int, targetRef string) string {
	if targetRef != "" {
		return fmt.Sprintf("%q", targetRef)
	}
	if orderItemID > 0 {
		return fmt.Sprintf("item %d", orderItemID)
	}
	return "that item"
}
