package parser

import (
	"context"
	"sort"
	"strings"

	"github.com/ordervox/ordervox/internal/command"
	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/menu"
)

// ruleParser fabricates a single slot-free dict for intents that carry no
// parameters of their own.
type ruleParser struct {
	intent dialog.IntentType
}

func (p ruleParser) Parse(_ context.Context, _ Input) ([]command.Dict, error) {
	return []command.Dict{{Intent: p.intent, Confidence: 1.0}}, nil
}

// questionParser answers menu questions deterministically. It scans the
// utterance for a mentioned menu item and, when found, narrows the question
// to that item.
type questionParser struct {
	menu menu.Reader
}

func (p *questionParser) Parse(ctx context.Context, in Input) ([]command.Dict, error) {
	d := command.Dict{Intent: dialog.IntentQuestion, Confidence: 1.0}

	items, err := p.menu.AvailableItems(ctx, in.RestaurantID)
	if err != nil {
		// The QUESTION command itself reports menu outages; the parser only
		// loses the narrowing slot.
		return []command.Dict{d}, nil
	}

	// Longest name first so "Quarter Pounder with Cheese" wins over
	// "Quarter Pounder".
	sort.Slice(items, func(i, j int) bool { return len(items[i].Name) > len(items[j].Name) })
	utterance := strings.ToLower(in.Utterance)
	for _, it := range items {
		if strings.Contains(utterance, strings.ToLower(it.Name)) {
			d.Slots = map[string]any{"item": it.Name}
			break
		}
	}
	return []command.Dict{d}, nil
}
