package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ordervox/ordervox/internal/command"
	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/menu"
	"github.com/ordervox/ordervox/pkg/provider/llm"
)

// maxToolRounds bounds the resolution agent's tool loop per item.
const maxToolRounds = 6

// maxParallelResolutions bounds concurrent per-item resolution calls.
const maxParallelResolutions = 4

// ItemResolver is the two-stage ADD_ITEM parser. Stage one extracts
// candidate items from free text; stage two resolves each candidate against
// the menu with an LLM agent that can call menu tools; stage three emits one
// command per candidate: ADD_ITEM, ITEM_UNAVAILABLE, or
// CLARIFICATION_NEEDED.
type ItemResolver struct {
	provider llm.Provider
	menu     menu.Reader
	logger   *slog.Logger
}

// NewItemResolver builds the ADD_ITEM parser.
func NewItemResolver(provider llm.Provider, m menu.Reader, logger *slog.Logger) *ItemResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemResolver{provider: provider, menu: m, logger: logger}
}

// extractedItem is one candidate from the extraction stage.
type extractedItem struct {
	ItemName            string   `json:"item_name"`
	Quantity            int      `json:"quantity"`
	Size                string   `json:"size"`
	Modifiers           []string `json:"modifiers"`
	SpecialInstructions string   `json:"special_instructions"`
	Confidence          float64  `json:"confidence"`
}

// resolution is the structured answer of the resolution agent for one item.
type resolution struct {
	MenuItemID            int      `json:"menu_item_id"`
	ResolvedName          string   `json:"resolved_name"`
	IsAmbiguous           bool     `json:"is_ambiguous"`
	IsUnavailable         bool     `json:"is_unavailable"`
	Confidence            float64  `json:"confidence"`
	SuggestedOptions      []string `json:"suggested_options"`
	ClarificationQuestion string   `json:"clarification_question"`
}

const extractionPrompt = `You extract the food and drink items a drive-thru customer wants to add.

Respond with ONLY a JSON object, no prose, no code fences:
{"items": [{"item_name": "<what the customer called it>", "quantity": <count, default 1>, "size": "<size or empty>", "modifiers": [<e.g. "no onions", "extra cheese">], "special_instructions": "<or empty>", "confidence": <0.0-1.0>}]}

Rules:
- Extract what the customer SAID, not menu names; do not guess menu items.
- "two burgers and a coke" is two entries, quantities 2 and 1.
- Attach modifiers to the item they belong to ("no onions on the second one").`

const resolutionPrompt = `You resolve one requested item against a restaurant menu.

Use the tools:
- search_menu_items to find candidate menu items for a query.
- get_menu_item_details to inspect a candidate's ingredients.

When done, respond with ONLY a JSON object, no prose, no code fences:
{"menu_item_id": <id or 0>, "resolved_name": "<menu name or empty>", "is_ambiguous": <bool>, "is_unavailable": <bool>, "confidence": <0.0-1.0>, "suggested_options": [<names when ambiguous>], "clarification_question": "<question when ambiguous, else empty>"}

Rules:
- Exactly one clear match: set menu_item_id and resolved_name.
- Several plausible matches: is_ambiguous true, list suggested_options, write a short question.
- No plausible match: is_unavailable true.`

var resolverTools = []llm.ToolDefinition{
	{
		Name:        "search_menu_items",
		Description: "Search the restaurant menu for items matching a query. Returns candidates with id, name, and price.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Item name to search for."},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        "get_menu_item_details",
		Description: "Get the ingredient list of one menu item by its exact name.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string", "description": "Exact menu item name."},
			},
			"required": []string{"name"},
		},
	},
}

// Parse runs extraction, per-item resolution, and command emission.
func (p *ItemResolver) Parse(ctx context.Context, in Input) ([]command.Dict, error) {
	items, err := p.extract(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("parser: extraction found no items in %q", in.Utterance)
	}

	// Resolve candidates concurrently; results keep extraction order so the
	// spoken reply lists items the way the customer said them.
	resolutions := make([]*resolution, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelResolutions)
	for i, it := range items {
		g.Go(func() error {
			r, err := p.resolve(gctx, in.RestaurantID, it)
			if err != nil {
				return err
			}
			resolutions[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dicts := make([]command.Dict, 0, len(items))
	for i, it := range items {
		dicts = append(dicts, p.emit(it, resolutions[i]))
	}
	return dicts, nil
}

// extract is stage one: pure text understanding, no menu contact.
func (p *ItemResolver) extract(ctx context.Context, in Input) ([]extractedItem, error) {
	var b strings.Builder
	if !in.Order.IsEmpty() {
		fmt.Fprintf(&b, "Current order: %s\n", in.Order.Summary())
	}
	fmt.Fprintf(&b, "Utterance: %q", in.Utterance)

	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: extractionPrompt,
		Messages:     []llm.Message{{Role: "user", Content: b.String()}},
		Temperature:  0.0,
		MaxTokens:    1024,
	})
	if err != nil {
		return nil, fmt.Errorf("parser: item extraction: %w", err)
	}

	var wire struct {
		Items []extractedItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(resp.Content)), &wire); err != nil {
		return nil, fmt.Errorf("parser: extraction response is not valid JSON: %w", err)
	}
	for i := range wire.Items {
		if wire.Items[i].Quantity < 1 {
			wire.Items[i].Quantity = 1
		}
	}
	return wire.Items, nil
}

// resolve is stage two: a bounded tool loop for one extracted item.
func (p *ItemResolver) resolve(ctx context.Context, restaurantID int, it extractedItem) (*resolution, error) {
	messages := []llm.Message{{
		Role:    "user",
		Content: fmt.Sprintf("Resolve this requested item: %q (quantity %d, size %q, modifiers %v)", it.ItemName, it.Quantity, it.Size, it.Modifiers),
	}}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: resolutionPrompt,
			Messages:     messages,
			Tools:        resolverTools,
			Temperature:  0.0,
			MaxTokens:    1024,
		})
		if err != nil {
			return nil, fmt.Errorf("parser: menu resolution for %q: %w", it.ItemName, err)
		}

		if len(resp.ToolCalls) == 0 {
			var r resolution
			if err := json.Unmarshal([]byte(extractJSONObject(resp.Content)), &r); err != nil {
				return nil, fmt.Errorf("parser: resolution for %q is not valid JSON: %w", it.ItemName, err)
			}
			return &r, nil
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, tc := range resp.ToolCalls {
			result := p.runTool(ctx, restaurantID, tc)
			messages = append(messages, llm.Message{Role: "tool", ToolCallID: tc.ID, Content: result})
		}
	}
	return nil, fmt.Errorf("parser: resolution for %q exceeded %d tool rounds", it.ItemName, maxToolRounds)
}

// runTool executes one tool call. Tool failures are reported back to the
// model as text so it can recover or give up on its own.
func (p *ItemResolver) runTool(ctx context.Context, restaurantID int, tc llm.ToolCall) string {
	switch tc.Name {
	case "search_menu_items":
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			return fmt.Sprintf("error: bad arguments: %v", err)
		}
		items, err := p.menu.SearchItems(ctx, restaurantID, args.Query)
		if err != nil {
			p.logger.Warn("menu search tool failed", "query", args.Query, "error", err)
			return fmt.Sprintf("error: %v", err)
		}
		type hit struct {
			ID    int     `json:"id"`
			Name  string  `json:"name"`
			Price float64 `json:"price"`
		}
		hits := make([]hit, len(items))
		for i, m := range items {
			hits[i] = hit{ID: m.ID, Name: m.Name, Price: m.Price}
		}
		out, _ := json.Marshal(hits)
		return string(out)

	case "get_menu_item_details":
		var args struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			return fmt.Sprintf("error: bad arguments: %v", err)
		}
		ingredients, err := p.menu.ItemIngredients(ctx, restaurantID, args.Name)
		if err != nil {
			p.logger.Warn("menu details tool failed", "name", args.Name, "error", err)
			return fmt.Sprintf("error: %v", err)
		}
		type ing struct {
			Name           string  `json:"name"`
			Required       bool    `json:"required"`
			AdditionalCost float64 `json:"additional_cost"`
		}
		list := make([]ing, len(ingredients))
		for i, g := range ingredients {
			list[i] = ing{Name: g.Name, Required: g.Required, AdditionalCost: g.AdditionalCost}
		}
		out, _ := json.Marshal(list)
		return string(out)
	}
	return fmt.Sprintf("error: unknown tool %q", tc.Name)
}

// emit is stage three: one command per resolved item.
func (p *ItemResolver) emit(it extractedItem, r *resolution) command.Dict {
	switch {
	case r.IsAmbiguous:
		q := r.ClarificationQuestion
		if q == "" {
			q = fmt.Sprintf("Which %s did you want?", it.ItemName)
		}
		return command.Dict{
			Intent:     dialog.IntentClarificationNeeded,
			Confidence: r.Confidence,
			Slots: map[string]any{
				"ambiguous_item":         it.ItemName,
				"suggested_options":      r.SuggestedOptions,
				"clarification_question": q,
			},
		}
	case r.IsUnavailable || r.MenuItemID <= 0:
		return command.Dict{
			Intent:     dialog.IntentItemUnavailable,
			Confidence: r.Confidence,
			Slots:      map[string]any{"requested_item": it.ItemName},
		}
	}

	slots := map[string]any{
		"menu_item_id": r.MenuItemID,
		"quantity":     it.Quantity,
	}
	if it.Size != "" {
		slots["size"] = it.Size
	}
	if len(it.Modifiers) > 0 {
		slots["modifiers"] = it.Modifiers
	}
	if it.SpecialInstructions != "" {
		slots["special_instructions"] = it.SpecialInstructions
	}
	return command.Dict{Intent: dialog.IntentAddItem, Confidence: r.Confidence, Slots: slots}
}

// extractJSONObject tolerates code fences and prose around the object.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
