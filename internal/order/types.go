package order

import (
	"fmt"
	"strings"
)

// LineItem is one entry of an order. IDs are stable within the order so
// follow-up turns ("remove the fries") can reference earlier items.
type LineItem struct {
	ID                  int      `json:"id"`
	MenuItemID          int      `json:"menu_item_id"`
	Name                string   `json:"name"`
	Quantity            int      `json:"quantity"`
	Size                string   `json:"size,omitempty"`
	Modifiers           []string `json:"modifiers,omitempty"`
	SpecialInstructions string   `json:"special_instructions,omitempty"`
	UnitPrice           float64  `json:"unit_price"`
	TotalPrice          float64  `json:"total_price"`
}

// Describe renders the line item for spoken summaries,
// e.g. "2 Big Mac (no onions)".
func (li LineItem) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", li.Quantity, li.Name)
	if li.Size != "" {
		fmt.Fprintf(&b, " (%s)", li.Size)
	}
	if len(li.Modifiers) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(li.Modifiers, ", "))
	}
	return b.String()
}

// State is the working order carried in the session blob. All mutations go
// through [Service]; the struct itself is plain data so it round-trips
// through JSON unchanged.
type State struct {
	Items []LineItem `json:"items"`
	Total float64    `json:"total"`

	// LastMentionedID is the line item most recently added or modified,
	// used to resolve "make that two" style anaphora.
	LastMentionedID int `json:"last_mentioned_id,omitempty"`

	// NextID is the id the next line item will receive.
	NextID int `json:"next_id"`
}

// NewState returns an empty order.
func NewState() *State {
	return &State{NextID: 1}
}

// IsEmpty reports whether the order has no line items.
func (s *State) IsEmpty() bool { return len(s.Items) == 0 }

// ItemCount returns the summed quantity across all line items.
func (s *State) ItemCount() int {
	n := 0
	for _, li := range s.Items {
		n += li.Quantity
	}
	return n
}

// Recalculate refreshes every line total and the order total. Call after
// any direct mutation of Items.
func (s *State) Recalculate() {
	total := 0.0
	for i := range s.Items {
		s.Items[i].TotalPrice = float64(s.Items[i].Quantity) * s.Items[i].UnitPrice
		total += s.Items[i].TotalPrice
	}
	s.Total = round2(total)
}

// ItemByID returns the line item with the given id, or nil.
func (s *State) ItemByID(id int) *LineItem {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i]
		}
	}
	return nil
}

// LastMentioned returns the line item referenced by LastMentionedID, or the
// most recently added item when the ref is unset, or nil on an empty order.
func (s *State) LastMentioned() *LineItem {
	if li := s.ItemByID(s.LastMentionedID); li != nil {
		return li
	}
	if len(s.Items) == 0 {
		return nil
	}
	return &s.Items[len(s.Items)-1]
}

// ItemByRef resolves a spoken reference ("the fries", "big mac") to a line
// item by case-insensitive containment. Returns nil when nothing matches or
// the reference is ambiguous across different menu items.
func (s *State) ItemByRef(ref string) *LineItem {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return nil
	}
	var found *LineItem
	for i := range s.Items {
		name := strings.ToLower(s.Items[i].Name)
		if strings.Contains(name, ref) || strings.Contains(ref, name) {
			if found != nil && found.MenuItemID != s.Items[i].MenuItemID {
				return nil
			}
			if found == nil {
				found = &s.Items[i]
			}
		}
	}
	return found
}

// Summary renders the whole order for spoken repetition, e.g.
// "2 Big Mac (no onions), 1 Coca-Cola. Your total is $13.97.".
func (s *State) Summary() string {
	if s.IsEmpty() {
		return "Your order is empty."
	}
	parts := make([]string, len(s.Items))
	for i, li := range s.Items {
		parts[i] = li.Describe()
	}
	return fmt.Sprintf("%s. Your total is $%.2f.", strings.Join(parts, ", "), s.Total)
}

// round2 rounds to cents to keep JSON totals stable across recalculations.
func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
