package command

import (
	"fmt"

	"github.com/ordervox/ordervox/internal/dialog"
)

// Validator checks parser output against per-intent slot schemas before any
// command is materialized. It returns all problems found, not just the
// first, so logs show the full shape mismatch.
type Validator struct{}

// Validate returns nil when d is well-formed, otherwise the list of schema
// violations.
func (Validator) Validate(d Dict) []string {
	if d.Intent == "" {
		return []string{"missing intent"}
	}
	if !d.Intent.IsValid() {
		return []string{fmt.Sprintf("unknown intent %q", d.Intent)}
	}

	var errs []string
	switch d.Intent {
	case dialog.IntentAddItem:
		if id, ok := d.IntSlot("menu_item_id"); !ok || id <= 0 {
			errs = append(errs, "add_item requires a positive integer menu_item_id")
		}
		if qty, ok := d.IntSlot("quantity"); !ok || qty < 1 {
			errs = append(errs, "add_item requires quantity >= 1")
		}
		if _, present := d.Slots["modifiers"]; present {
			if _, ok := d.StringsSlot("modifiers"); !ok {
				errs = append(errs, "modifiers must be a list of strings")
			}
		}

	case dialog.IntentRemoveItem:
		if !hasTarget(d) {
			errs = append(errs, "remove_item requires order_item_id or target_ref")
		}

	case dialog.IntentModifyItem:
		if !hasTarget(d) {
			errs = append(errs, "modify_item requires order_item_id or target_ref")
		}
		_, hasMods := d.Slots["modifiers"]
		_, hasSize := d.StringSlot("size")
		qty, hasQty := d.IntSlot("quantity")
		if !hasMods && !hasSize && !hasQty {
			errs = append(errs, "modify_item requires at least one of modifiers, size, quantity")
		}
		if hasMods {
			if _, ok := d.StringsSlot("modifiers"); !ok {
				errs = append(errs, "modifiers must be a list of strings")
			}
		}
		if hasQty && qty < 1 {
			errs = append(errs, "modify_item quantity must be >= 1")
		}

	case dialog.IntentSetQuantity:
		if qty, ok := d.IntSlot("quantity"); !ok || qty < 0 {
			errs = append(errs, "set_quantity requires quantity >= 0")
		}

	case dialog.IntentClarificationNeeded:
		if s, ok := d.StringSlot("ambiguous_item"); !ok || s == "" {
			errs = append(errs, "clarification_needed requires ambiguous_item")
		}
		if opts, ok := d.StringsSlot("suggested_options"); !ok || len(opts) == 0 {
			errs = append(errs, "clarification_needed requires non-empty suggested_options")
		}

	case dialog.IntentItemUnavailable:
		if s, ok := d.StringSlot("requested_item"); !ok || s == "" {
			errs = append(errs, "item_unavailable requires requested_item")
		}

	case dialog.IntentClearOrder, dialog.IntentConfirmOrder, dialog.IntentRepeat,
		dialog.IntentQuestion, dialog.IntentSmallTalk, dialog.IntentUnknown:
		// No required slots.
	}
	return errs
}

// hasTarget reports whether the dict can address a line item.
func hasTarget(d Dict) bool {
	if id, ok := d.IntSlot("order_item_id"); ok && id > 0 {
		return true
	}
	if ref, ok := d.StringSlot("target_ref"); ok && ref != "" {
		return true
	}
	return false
}
