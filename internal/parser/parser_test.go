package parser_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ordervox/ordervox/internal/command"
	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/menu"
	"github.com/ordervox/ordervox/internal/order"
	"github.com/ordervox/ordervox/internal/parser"
	"github.com/ordervox/ordervox/pkg/provider/llm"
	llmmock "github.com/ordervox/ordervox/pkg/provider/llm/mock"
)

// fakeMenu is a fixed in-memory menu.Reader.
type fakeMenu struct {
	items []menu.Item
}

var _ menu.Reader = (*fakeMenu)(nil)

func (f *fakeMenu) AvailableItems(context.Context, int) ([]menu.Item, error) {
	return f.items, nil
}

func (f *fakeMenu) SearchItems(_ context.Context, _ int, query string) ([]menu.Item, error) {
	var out []menu.Item
	for _, it := range f.items {
		if strings.Contains(strings.ToLower(it.Name), strings.ToLower(query)) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeMenu) ItemIngredients(_ context.Context, _ int, name string) ([]menu.Ingredient, error) {
	for _, it := range f.items {
		if strings.EqualFold(it.Name, name) {
			return it.Ingredients, nil
		}
	}
	return nil, fmt.Errorf("%w: item %q", menu.ErrNotFound, name)
}

func (f *fakeMenu) ItemByID(_ context.Context, id int) (*menu.Item, error) {
	for _, it := range f.items {
		if it.ID == id {
			return &it, nil
		}
	}
	return nil, fmt.Errorf("%w: item id %d", menu.ErrNotFound, id)
}

func burgerMenu() *fakeMenu {
	return &fakeMenu{items: []menu.Item{
		{ID: 42, RestaurantID: 1, Name: "Big Mac", Price: 5.99, IsAvailable: true,
			Ingredients: []menu.Ingredient{{ID: 1, Name: "Beef Patty", Required: true}, {ID: 2, Name: "Onions"}}},
		{ID: 43, RestaurantID: 1, Name: "Quarter Pounder", Price: 6.49, IsAvailable: true},
		{ID: 44, RestaurantID: 1, Name: "Quarter Pounder with Cheese", Price: 6.99, IsAvailable: true},
		{ID: 50, RestaurantID: 1, Name: "Coca-Cola", Price: 1.99, IsAvailable: true},
	}}
}

func orderWithBigMac() *order.State {
	st := order.NewState()
	st.Items = []order.LineItem{
		{ID: 1, MenuItemID: 42, Name: "Big Mac", Quantity: 2, UnitPrice: 5.99},
		{ID: 2, MenuItemID: 50, Name: "Coca-Cola", Quantity: 1, UnitPrice: 1.99},
	}
	st.NextID = 3
	st.LastMentionedID = 2
	st.Recalculate()
	return st
}

func TestRuleParsers(t *testing.T) {
	r := parser.NewRouter(&llmmock.Provider{}, burgerMenu(), nil)

	for _, intent := range []dialog.IntentType{
		dialog.IntentClearOrder, dialog.IntentConfirmOrder, dialog.IntentRepeat,
		dialog.IntentSmallTalk, dialog.IntentUnknown,
	} {
		dicts := r.Parse(context.Background(), parser.Input{
			Intent: intent, Utterance: "whatever", Order: order.NewState(),
		})
		if len(dicts) != 1 || dicts[0].Intent != intent {
			t.Errorf("%s: got %+v", intent, dicts)
		}
	}
}

func TestQuestionParser_NarrowsToMentionedItem(t *testing.T) {
	r := parser.NewRouter(&llmmock.Provider{}, burgerMenu(), nil)

	tests := []struct {
		utterance string
		wantItem  string
	}{
		{"how much is a big mac", "Big Mac"},
		{"do you have a quarter pounder with cheese", "Quarter Pounder with Cheese"},
		{"what do you have", ""},
	}
	for _, tt := range tests {
		dicts := r.Parse(context.Background(), parser.Input{
			Intent: dialog.IntentQuestion, Utterance: tt.utterance,
			RestaurantID: 1, Order: order.NewState(),
		})
		if len(dicts) != 1 {
			t.Fatalf("%q: got %d dicts", tt.utterance, len(dicts))
		}
		got, _ := dicts[0].StringSlot("item")
		if got != tt.wantItem {
			t.Errorf("%q: item slot got %q, want %q", tt.utterance, got, tt.wantItem)
		}
	}
}

func TestLineItemParser_RemoveByRef(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `[{"order_item_id": 2, "target_ref": "the coke"}]`,
		},
	}
	r := parser.NewRouter(provider, burgerMenu(), nil)

	dicts := r.Parse(context.Background(), parser.Input{
		Intent: dialog.IntentRemoveItem, Utterance: "take off the coke",
		RestaurantID: 1, Order: orderWithBigMac(),
	})

	if len(dicts) != 1 || dicts[0].Intent != dialog.IntentRemoveItem {
		t.Fatalf("dicts: %+v", dicts)
	}
	if id, _ := dicts[0].IntSlot("order_item_id"); id != 2 {
		t.Errorf("order_item_id: got %d, want 2", id)
	}

	// The prompt must show the order lines so the model can target them.
	body := provider.CompleteCalls[0].Req.Messages[0].Content
	for _, want := range []string{"id 1: 2 Big Mac", "id 2: 1 Coca-Cola", "take off the coke"} {
		if !strings.Contains(body, want) {
			t.Errorf("prompt missing %q:\n%s", want, body)
		}
	}
}

func TestLineItemParser_AnaphoraFallsBackToLastMentioned(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `[{"order_item_id": 0, "target_ref": "", "quantity": 3}]`,
		},
	}
	r := parser.NewRouter(provider, burgerMenu(), nil)

	dicts := r.Parse(context.Background(), parser.Input{
		Intent: dialog.IntentSetQuantity, Utterance: "make that three",
		RestaurantID: 1, Order: orderWithBigMac(),
	})

	if len(dicts) != 1 {
		t.Fatalf("dicts: %+v", dicts)
	}
	if id, _ := dicts[0].IntSlot("order_item_id"); id != 2 {
		t.Errorf("order_item_id: got %d, want last-mentioned 2", id)
	}
	if qty, _ := dicts[0].IntSlot("quantity"); qty != 3 {
		t.Errorf("quantity: got %d, want 3", qty)
	}
}

func TestRouter_ParserErrorFallsBackToUnknown(t *testing.T) {
	provider := &llmmock.Provider{CompleteErr: errors.New("transport down")}
	r := parser.NewRouter(provider, burgerMenu(), nil)

	dicts := r.Parse(context.Background(), parser.Input{
		Intent: dialog.IntentRemoveItem, Utterance: "remove the fries",
		RestaurantID: 1, Order: orderWithBigMac(),
	})

	if len(dicts) != 1 || dicts[0].Intent != dialog.IntentUnknown {
		t.Fatalf("want single UNKNOWN dict, got %+v", dicts)
	}
}

// staticParser emits a fixed dict list.
type staticParser struct {
	dicts []command.Dict
}

func (p staticParser) Parse(context.Context, parser.Input) ([]command.Dict, error) {
	return p.dicts, nil
}

func TestRouter_DropsInvalidDicts(t *testing.T) {
	r := parser.NewRouter(&llmmock.Provider{}, burgerMenu(), nil)
	r.Register(dialog.IntentAddItem, staticParser{dicts: []command.Dict{
		{Intent: dialog.IntentAddItem, Slots: map[string]any{"quantity": 1}}, // missing id
		{Intent: dialog.IntentAddItem, Slots: map[string]any{"menu_item_id": 42, "quantity": 1}},
	}})

	dicts := r.Parse(context.Background(), parser.Input{
		Intent: dialog.IntentAddItem, Utterance: "a big mac", Order: order.NewState(),
	})

	if len(dicts) != 1 {
		t.Fatalf("want the invalid dict dropped, got %+v", dicts)
	}
	if id, _ := dicts[0].IntSlot("menu_item_id"); id != 42 {
		t.Errorf("surviving dict: %+v", dicts[0])
	}
}

func TestRouter_AllInvalidFallsBackToUnknown(t *testing.T) {
	r := parser.NewRouter(&llmmock.Provider{}, burgerMenu(), nil)
	r.Register(dialog.IntentAddItem, staticParser{dicts: []command.Dict{
		{Intent: dialog.IntentAddItem}, // no slots at all
	}})

	dicts := r.Parse(context.Background(), parser.Input{
		Intent: dialog.IntentAddItem, Utterance: "a big mac", Order: order.NewState(),
	})

	if len(dicts) != 1 || dicts[0].Intent != dialog.IntentUnknown {
		t.Fatalf("want UNKNOWN fallback, got %+v", dicts)
	}
}

func TestResolver_SingleMatchWithToolLoop(t *testing.T) {
	provider := &llmmock.Provider{CompleteQueue: []*llm.CompletionResponse{
		// Stage 1: extraction.
		{Content: `{"items": [{"item_name": "big mac", "quantity": 2, "modifiers": ["no onions"], "confidence": 0.95}]}`},
		// Stage 2, round 1: the agent searches the menu.
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "search_menu_items", Arguments: `{"query": "big mac"}`}}},
		// Stage 2, round 2: final resolution.
		{Content: `{"menu_item_id": 42, "resolved_name": "Big Mac", "confidence": 0.97}`},
	}}
	r := parser.NewRouter(provider, burgerMenu(), nil)

	dicts := r.Parse(context.Background(), parser.Input{
		Intent: dialog.IntentAddItem, Utterance: "two big macs, no onions",
		RestaurantID: 1, Order: order.NewState(),
	})

	if len(dicts) != 1 || dicts[0].Intent != dialog.IntentAddItem {
		t.Fatalf("dicts: %+v", dicts)
	}
	if id, _ := dicts[0].IntSlot("menu_item_id"); id != 42 {
		t.Errorf("menu_item_id: got %d, want 42", id)
	}
	if qty, _ := dicts[0].IntSlot("quantity"); qty != 2 {
		t.Errorf("quantity: got %d, want 2", qty)
	}
	mods, _ := dicts[0].StringsSlot("modifiers")
	if len(mods) != 1 || mods[0] != "no onions" {
		t.Errorf("modifiers: %v", mods)
	}

	// The tool result must have been fed back to the agent.
	if len(provider.CompleteCalls) != 3 {
		t.Fatalf("calls: got %d, want 3", len(provider.CompleteCalls))
	}
	final := provider.CompleteCalls[2].Req.Messages
	var sawToolResult bool
	for _, m := range final {
		if m.Role == "tool" && m.ToolCallID == "call-1" && strings.Contains(m.Content, "Big Mac") {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Errorf("tool result missing from final request: %+v", final)
	}
}

func TestResolver_Ambiguous(t *testing.T) {
	provider := &llmmock.Provider{CompleteQueue: []*llm.CompletionResponse{
		{Content: `{"items": [{"item_name": "quarter pounder", "quantity": 1, "confidence": 0.9}]}`},
		{Content: `{"is_ambiguous": true, "confidence": 0.6,
			"suggested_options": ["Quarter Pounder", "Quarter Pounder with Cheese"],
			"clarification_question": "Did you want the Quarter Pounder or the Quarter Pounder with Cheese?"}`},
	}}
	r := parser.NewRouter(provider, burgerMenu(), nil)

	dicts := r.Parse(context.Background(), parser.Input{
		Intent: dialog.IntentAddItem, Utterance: "a quarter pounder",
		RestaurantID: 1, Order: order.NewState(),
	})

	if len(dicts) != 1 || dicts[0].Intent != dialog.IntentClarificationNeeded {
		t.Fatalf("dicts: %+v", dicts)
	}
	opts, _ := dicts[0].StringsSlot("suggested_options")
	if len(opts) != 2 {
		t.Errorf("suggested_options: %v", opts)
	}
	if q, _ := dicts[0].StringSlot("clarification_question"); !strings.Contains(q, "Quarter Pounder") {
		t.Errorf("clarification question: %q", q)
	}
}

func TestResolver_Unavailable(t *testing.T) {
	provider := &llmmock.Provider{CompleteQueue: []*llm.CompletionResponse{
		{Content: `{"items": [{"item_name": "lobster roll", "quantity": 1, "confidence": 0.9}]}`},
		{Content: `{"is_unavailable": true, "confidence": 0.9}`},
	}}
	r := parser.NewRouter(provider, burgerMenu(), nil)

	dicts := r.Parse(context.Background(), parser.Input{
		Intent: dialog.IntentAddItem, Utterance: "a lobster roll",
		RestaurantID: 1, Order: order.NewState(),
	})

	if len(dicts) != 1 || dicts[0].Intent != dialog.IntentItemUnavailable {
		t.Fatalf("dicts: %+v", dicts)
	}
	if item, _ := dicts[0].StringSlot("requested_item"); item != "lobster roll" {
		t.Errorf("requested_item: %q", item)
	}
}

func TestResolver_MultiItemMixed(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if strings.Contains(req.SystemPrompt, "extract the food") {
				return &llm.CompletionResponse{Content: `{"items": [
					{"item_name": "big mac", "quantity": 2, "confidence": 0.95},
					{"item_name": "lobster roll", "quantity": 1, "confidence": 0.9}]}`}, nil
			}
			body := req.Messages[0].Content
			if strings.Contains(body, "big mac") {
				return &llm.CompletionResponse{Content: `{"menu_item_id": 42, "resolved_name": "Big Mac", "confidence": 0.97}`}, nil
			}
			return &llm.CompletionResponse{Content: `{"is_unavailable": true, "confidence": 0.9}`}, nil
		},
	}
	r := parser.NewRouter(provider, burgerMenu(), nil)

	dicts := r.Parse(context.Background(), parser.Input{
		Intent: dialog.IntentAddItem, Utterance: "two big macs and a lobster roll",
		RestaurantID: 1, Order: order.NewState(),
	})

	if len(dicts) != 2 {
		t.Fatalf("dicts: %+v", dicts)
	}
	// Extraction order is preserved even though resolution runs concurrently.
	if dicts[0].Intent != dialog.IntentAddItem || dicts[1].Intent != dialog.IntentItemUnavailable {
		t.Errorf("intents: %s, %s", dicts[0].Intent, dicts[1].Intent)
	}
}

func TestResolver_ExtractionGarbageFallsBackToUnknown(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "sure, adding a burger!"},
	}
	r := parser.NewRouter(provider, burgerMenu(), nil)

	dicts := r.Parse(context.Background(), parser.Input{
		Intent: dialog.IntentAddItem, Utterance: "a burger",
		RestaurantID: 1, Order: order.NewState(),
	})

	if len(dicts) != 1 || dicts[0].Intent != dialog.IntentUnknown {
		t.Fatalf("want UNKNOWN fallback, got %+v", dicts)
	}
}
