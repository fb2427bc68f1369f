package order

import (
	"fmt"
	"strings"

	"github.com/ordervox/ordervox/internal/menu"
)

// CustomizationValidator checks spoken modifiers ("no onions", "extra
// cheese") against a menu item's ingredient list. Disabled validators accept
// everything at zero extra cost.
type CustomizationValidator struct {
	enabled bool
}

// NewCustomizationValidator returns a validator; enabled follows the
// ENABLE_CUSTOMIZATION_VALIDATION config toggle.
func NewCustomizationValidator(enabled bool) *CustomizationValidator {
	return &CustomizationValidator{enabled: enabled}
}

// modifierKind classifies one parsed modifier.
type modifierKind int

const (
	modifierNeutral modifierKind = iota // free text, not ingredient-bound
	modifierRemove
	modifierAdd
)

// parseModifier splits a spoken modifier into kind and ingredient phrase.
func parseModifier(m string) (modifierKind, string) {
	lower := strings.ToLower(strings.TrimSpace(m))
	for _, p := range []string{"no ", "without ", "hold the ", "remove "} {
		if rest, ok := strings.CutPrefix(lower, p); ok {
			return modifierRemove, rest
		}
	}
	for _, p := range []string{"extra ", "add ", "more ", "double "} {
		if rest, ok := strings.CutPrefix(lower, p); ok {
			return modifierAdd, rest
		}
	}
	return modifierNeutral, lower
}

// Validate checks modifiers against item's ingredients. It returns the
// summed additional cost of the added ingredients and, on the first rule
// violation, a BUSINESS failure result. Neutral modifiers ("well done")
// pass through untouched.
func (v *CustomizationValidator) Validate(item menu.Item, modifiers []string) (float64, *Result) {
	if !v.enabled {
		return 0, nil
	}

	removed := map[string]bool{}
	added := map[string]bool{}
	extraCost := 0.0

	for _, m := range modifiers {
		kind, phrase := parseModifier(m)
		switch kind {
		case modifierRemove:
			ing := findIngredient(item.Ingredients, phrase)
			if ing == nil {
				return 0, Failure(CategoryBusiness, CodeModifierRemoveNotPresent,
					fmt.Sprintf("%s doesn't come with %s.", item.Name, phrase))
			}
			if ing.Required {
				return 0, Failure(CategoryBusiness, CodeOptionRequiredMissing,
					fmt.Sprintf("Sorry, %s can't be made without %s.", item.Name, ing.Name))
			}
			if added[ing.Name] {
				return 0, Failure(CategoryBusiness, CodeModifierConflict,
					fmt.Sprintf("You asked for both extra %s and no %s.", ing.Name, ing.Name))
			}
			removed[ing.Name] = true
		case modifierAdd:
			ing := findIngredient(item.Ingredients, phrase)
			if ing == nil {
				return 0, Failure(CategoryBusiness, CodeModifierAddNotAllowed,
					fmt.Sprintf("Sorry, we can't add %s to %s.", phrase, item.Name))
			}
			if removed[ing.Name] {
				return 0, Failure(CategoryBusiness, CodeModifierConflict,
					fmt.Sprintf("You asked for both extra %s and no %s.", ing.Name, ing.Name))
			}
			added[ing.Name] = true
			extraCost += ing.AdditionalCost
		case modifierNeutral:
			// Free-text preference; nothing to validate.
		}
	}
	return extraCost, nil
}

// findIngredient matches a spoken ingredient phrase against the ingredient
// list, tolerating plural forms ("onions" vs "onion").
func findIngredient(ingredients []menu.Ingredient, phrase string) *menu.Ingredient {
	want := singular(strings.ToLower(phrase))
	for i := range ingredients {
		if singular(strings.ToLower(ingredients[i].Name)) == want {
			return &ingredients[i]
		}
	}
	return nil
}

// singular strips a trailing plural s; enough for menu ingredient names.
func singular(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}
