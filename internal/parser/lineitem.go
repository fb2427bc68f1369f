package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ordervox/ordervox/internal/command"
	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/pkg/provider/llm"
)

// lineItemParser handles REMOVE_ITEM, MODIFY_ITEM, and SET_QUANTITY. One
// LLM call maps the utterance onto existing line items; the current order
// and the last-mentioned line are rendered into the prompt so anaphora
// ("make that two", "the second one") resolves against real ids.
type lineItemParser struct {
	intent   dialog.IntentType
	provider llm.Provider
	logger   *slog.Logger
}

// wireLine is one element of the JSON array the model must return.
type wireLine struct {
	OrderItemID int      `json:"order_item_id"`
	TargetRef   string   `json:"target_ref"`
	Modifiers   []string `json:"modifiers"`
	Size        string   `json:"size"`
	Quantity    int      `json:"quantity"`
}

const lineItemPromptHeader = `You map one drive-thru utterance onto the customer's existing order.

Respond with ONLY a JSON array, no prose, no code fences. Each element:
{"order_item_id": <line id, or 0 when unsure>, "target_ref": "<the words the customer used for the item>", "modifiers": [<modifier strings>], "size": "<new size or empty>", "quantity": <new quantity, or 0 when unchanged>}

Rules:
- Prefer order_item_id when the reference is unambiguous; otherwise leave it 0 and fill target_ref.
- "that", "it", or no reference at all mean the last-mentioned line.
- Emit one element per affected line; most utterances affect exactly one.`

func (p *lineItemParser) Parse(ctx context.Context, in Input) ([]command.Dict, error) {
	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: lineItemPromptHeader,
		Messages:     []llm.Message{{Role: "user", Content: p.renderContext(in)}},
		Temperature:  0.0,
		MaxTokens:    512,
	})
	if err != nil {
		return nil, fmt.Errorf("parser: %s completion: %w", p.intent, err)
	}

	var lines []wireLine
	if err := json.Unmarshal([]byte(extractJSONArray(resp.Content)), &lines); err != nil {
		return nil, fmt.Errorf("parser: %s response is not a JSON array: %w", p.intent, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("parser: %s produced no line references", p.intent)
	}

	dicts := make([]command.Dict, 0, len(lines))
	for _, l := range lines {
		slots := map[string]any{}
		if l.OrderItemID > 0 {
			slots["order_item_id"] = l.OrderItemID
		}
		if l.TargetRef != "" {
			slots["target_ref"] = l.TargetRef
		}
		// An unresolvable reference falls back to the last-mentioned line,
		// which the order service resolves at execution time.
		if l.OrderItemID == 0 && l.TargetRef == "" {
			if last := in.Order.LastMentioned(); last != nil {
				slots["order_item_id"] = last.ID
			}
		}
		switch p.intent {
		case dialog.IntentModifyItem:
			if len(l.Modifiers) > 0 {
				slots["modifiers"] = l.Modifiers
			}
			if l.Size != "" {
				slots["size"] = l.Size
			}
			if l.Quantity > 0 {
				slots["quantity"] = l.Quantity
			}
		case dialog.IntentSetQuantity:
			slots["quantity"] = l.Quantity
		}
		dicts = append(dicts, command.Dict{Intent: p.intent, Confidence: 1.0, Slots: slots})
	}
	return dicts, nil
}

// renderContext lists the order's lines with their ids so the model can
// target them.
func (p *lineItemParser) renderContext(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Operation: %s\n", p.intent)
	b.WriteString("Current order lines:\n")
	for _, li := range in.Order.Items {
		fmt.Fprintf(&b, "  id %d: %s\n", li.ID, li.Describe())
	}
	if last := in.Order.LastMentioned(); last != nil {
		fmt.Fprintf(&b, "Last mentioned line: id %d (%s)\n", last.ID, last.Name)
	}
	fmt.Fprintf(&b, "\nUtterance: %q", in.Utterance)
	return b.String()
}

// extractJSONArray tolerates code fences and prose around the array. A bare
// object is wrapped into a one-element array.
func extractJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	if start = strings.IndexByte(s, '{'); start >= 0 {
		if end = strings.LastIndexByte(s, '}'); end > start {
			return "[" + s[start:end+1] + "]"
		}
	}
	return s
}
