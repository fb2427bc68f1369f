package command_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/ordervox/ordervox/internal/command"
	"github.com/ordervox/ordervox/internal/config"
	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/menu"
	"github.com/ordervox/ordervox/internal/order"
)

func testCfg() config.OrderingConfig {
	return config.OrderingConfig{
		MaxQuantityPerItem:            10,
		MaxItemsPerOrder:              50,
		MaxOrderTotal:                 200,
		EnableInventoryChecking:       false,
		EnableCustomizationValidation: true,
	}
}

// fakeMenu is an in-memory menu.Reader over a fixed item set.
type fakeMenu struct {
	items map[int]menu.Item
	// panicOn makes ItemByID panic for one id, to exercise recovery.
	panicOn int
}

var _ menu.Reader = (*fakeMenu)(nil)

func (f *fakeMenu) ItemByID(_ context.Context, id int) (*menu.Item, error) {
	if f.panicOn != 0 && id == f.panicOn {
		panic("menu backend exploded")
	}
	it, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: item id %d", menu.ErrNotFound, id)
	}
	return &it, nil
}

func (f *fakeMenu) AvailableItems(_ context.Context, _ int) ([]menu.Item, error) {
	var out []menu.Item
	for _, it := range f.items {
		if it.IsAvailable {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeMenu) SearchItems(_ context.Context, _ int, query string) ([]menu.Item, error) {
	var out []menu.Item
	for _, it := range f.items {
		if it.IsAvailable && strings.Contains(strings.ToLower(it.Name), strings.ToLower(query)) {
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

func burgerMenu() *fakeMenu {
	return &fakeMenu{items: map[int]menu.Item{
		42: {ID: 42, RestaurantID: 1, Name: "Big Mac", Price: 5.99, IsAvailable: true,
			Ingredients: []menu.Ingredient{
				{ID: 1, Name: "Beef Patty", Required: true},
				{ID: 2, Name: "Onions"},
			}},
		50: {ID: 50, RestaurantID: 1, Name: "Coca-Cola", Price: 1.99, IsAvailable: true},
	}}
}

// fakeInventory records decrements against an in-memory stock table.
type fakeInventory struct {
	stock      map[int]menu.Inventory
	decrements map[int]float64
	readErr    error
}

var _ command.InventoryStore = (*fakeInventory)(nil)

func (f *fakeInventory) InventoryFor(_ context.Context, _ pgx.Tx, ids []int) (map[int]menu.Inventory, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make(map[int]menu.Inventory)
	for _, id := range ids {
		if inv, ok := f.stock[id]; ok {
			out[id] = inv
		}
	}
	return out, nil
}

func (f *fakeInventory) DecrementStock(_ context.Context, _ pgx.Tx, id int, amount float64) error {
	if f.decrements == nil {
		f.decrements = make(map[int]float64)
	}
	f.decrements[id] += amount
	return nil
}

// fakeTx satisfies pgx.Tx through embedding; only the lifecycle methods are
// implemented.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rolledBack = true; return nil }

type fakeBeginner struct{ tx *fakeTx }

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) { return b.tx, nil }

func newExecutor(m menu.Reader, inv command.InventoryStore, pool *fakeBeginner, cfg config.OrderingConfig) *command.Executor {
	svc := order.NewService(cfg, nil)
	var tb interface {
		Begin(context.Context) (pgx.Tx, error)
	}
	if pool != nil {
		tb = pool
	}
	return command.NewExecutor(svc, m, inv, tb, cfg, nil)
}

func TestValidator(t *testing.T) {
	tests := []struct {
		name    string
		dict    command.Dict
		wantErr string // empty means valid
	}{
		{
			name:    "missing intent",
			dict:    command.Dict{},
			wantErr: "missing intent",
		},
		{
			name:    "unknown intent",
			dict:    command.Dict{Intent: "TELEPORT"},
			wantErr: "unknown intent",
		},
		{
			name: "add item valid",
			dict: command.Dict{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"menu_item_id": float64(42), "quantity": float64(2)}},
		},
		{
			name: "add item missing id",
			dict: command.Dict{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"quantity": float64(1)}},
			wantErr: "menu_item_id",
		},
		{
			name: "add item zero quantity",
			dict: command.Dict{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"menu_item_id": float64(42), "quantity": float64(0)}},
			wantErr: "quantity",
		},
		{
			name: "add item fractional quantity",
			dict: command.Dict{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"menu_item_id": float64(42), "quantity": 1.5}},
			wantErr: "quantity",
		},
		{
			name:    "remove without any target",
			dict:    command.Dict{Intent: dialog.IntentRemoveItem},
			wantErr: "order_item_id or target_ref",
		},
		{
			name: "remove by spoken ref",
			dict: command.Dict{Intent: dialog.IntentRemoveItem,
				Slots: map[string]any{"target_ref": "the fries"}},
		},
		{
			name: "modify without any change",
			dict: command.Dict{Intent: dialog.IntentModifyItem,
				Slots: map[string]any{"order_item_id": float64(1)}},
			wantErr: "at least one of",
		},
		{
			name: "modify with size",
			dict: command.Dict{Intent: dialog.IntentModifyItem,
				Slots: map[string]any{"order_item_id": float64(1), "size": "large"}},
		},
		{
			name: "set quantity negative",
			dict: command.Dict{Intent: dialog.IntentSetQuantity,
				Slots: map[string]any{"quantity": float64(-1)}},
			wantErr: "quantity",
		},
		{
			name: "set quantity zero is allowed",
			dict: command.Dict{Intent: dialog.IntentSetQuantity,
				Slots: map[string]any{"quantity": float64(0)}},
		},
		{
			name: "clarification missing options",
			dict: command.Dict{Intent: dialog.IntentClarificationNeeded,
				Slots: map[string]any{"ambiguous_item": "burger"}},
			wantErr: "suggested_options",
		},
		{
			name:    "item unavailable missing name",
			dict:    command.Dict{Intent: dialog.IntentItemUnavailable},
			wantErr: "requested_item",
		},
		{
			name: "confirm needs no slots",
			dict: command.Dict{Intent: dialog.IntentConfirmOrder},
		},
	}

	var v command.Validator
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Validate(tt.dict)
			if tt.wantErr == "" {
				if len(errs) != 0 {
					t.Fatalf("want valid, got %v", errs)
				}
				return
			}
			if len(errs) == 0 {
				t.Fatalf("want error containing %q, got none", tt.wantErr)
			}
			joined := strings.Join(errs, "; ")
			if !strings.Contains(joined, tt.wantErr) {
				t.Errorf("errors %q missing %q", joined, tt.wantErr)
			}
		})
	}
}

func TestExecute_AddItem(t *testing.T) {
	ex := newExecutor(burgerMenu(), nil, nil, testCfg())
	st := order.NewState()

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: st,
		Dicts: []command.Dict{{Intent: dialog.IntentAddItem,
			Slots: map[string]any{"menu_item_id": float64(42), "quantity": float64(2)}}},
	})

	if b.Outcome != command.OutcomeAllSuccess {
		t.Fatalf("outcome: got %s, want ALL_SUCCESS", b.Outcome)
	}
	if b.FollowUp != command.FollowUpContinue {
		t.Errorf("follow up: got %s, want CONTINUE", b.FollowUp)
	}
	if !b.OrderChanged {
		t.Error("OrderChanged must be set")
	}
	if len(st.Items) != 1 || st.Items[0].Quantity != 2 {
		t.Fatalf("order state: %+v", st.Items)
	}
	if st.Total != 11.98 {
		t.Errorf("total: got %.2f, want 11.98", st.Total)
	}
}

func TestExecute_AddItemNotOnMenu(t *testing.T) {
	ex := newExecutor(burgerMenu(), nil, nil, testCfg())
	st := order.NewState()

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: st,
		Dicts: []command.Dict{{Intent: dialog.IntentAddItem,
			Slots: map[string]any{"menu_item_id": float64(999), "quantity": float64(1)}}},
	})

	if b.Outcome != command.OutcomeAllFailed {
		t.Fatalf("outcome: got %s, want ALL_FAILED", b.Outcome)
	}
	if b.FirstErrorCode != order.CodeItemNotFound {
		t.Errorf("first error code: got %s, want ITEM_NOT_FOUND", b.FirstErrorCode)
	}
	if b.OrderChanged {
		t.Error("failed batch must not flag an order change")
	}
}

func TestExecute_MixedBatch(t *testing.T) {
	ex := newExecutor(burgerMenu(), nil, nil, testCfg())
	st := order.NewState()

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: st,
		Dicts: []command.Dict{
			{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"menu_item_id": float64(42), "quantity": float64(2)}},
			{Intent: dialog.IntentItemUnavailable,
				Slots: map[string]any{"requested_item": "lobster roll"}},
		},
	})

	if b.Outcome != command.OutcomePartialAsk {
		t.Fatalf("outcome: got %s, want PARTIAL_SUCCESS_ASK", b.Outcome)
	}
	if b.FollowUp != command.FollowUpAsk {
		t.Errorf("follow up: got %s, want ASK", b.FollowUp)
	}
	if b.FirstErrorCode != order.CodeItemUnavailable {
		t.Errorf("first error code: got %s", b.FirstErrorCode)
	}
	if !strings.Contains(b.Results[1].Message, "lobster roll") {
		t.Errorf("unavailable message: %q", b.Results[1].Message)
	}
	if !b.OrderChanged {
		t.Error("the successful add must flag an order change")
	}
}

func TestExecute_Clarification(t *testing.T) {
	ex := newExecutor(burgerMenu(), nil, nil, testCfg())
	st := order.NewState()

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: st,
		Dicts: []command.Dict{{Intent: dialog.IntentClarificationNeeded,
			Slots: map[string]any{
				"ambiguous_item":    "burger",
				"suggested_options": []any{"Big Mac", "Quarter Pounder", "McDouble"},
			}}},
	})

	if b.Outcome != command.OutcomeNeedsClarification {
		t.Fatalf("outcome: got %s, want NEEDS_CLARIFICATION", b.Outcome)
	}
	if b.FollowUp != command.FollowUpAsk {
		t.Errorf("follow up: got %s, want ASK", b.FollowUp)
	}
	res := b.Results[0]
	if res.ResponseType != order.ResponseClarification {
		t.Errorf("response type: got %q", res.ResponseType)
	}
	want := "Which burger did you want? We have Big Mac, Quarter Pounder, or McDouble."
	if res.Message != want {
		t.Errorf("question:\n got %q\nwant %q", res.Message, want)
	}
}

func TestExecute_EmptyBatch(t *testing.T) {
	ex := newExecutor(burgerMenu(), nil, nil, testCfg())

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: order.NewState(),
	})

	if b.Outcome != command.OutcomeAllFailed {
		t.Fatalf("outcome: got %s, want ALL_FAILED", b.Outcome)
	}
	if len(b.Results) != 1 || !strings.Contains(b.Results[0].Message, "No commands generated") {
		t.Errorf("results: %+v", b.Results)
	}
}

func TestExecute_InvalidDictKeepsItsSlot(t *testing.T) {
	ex := newExecutor(burgerMenu(), nil, nil, testCfg())
	st := order.NewState()

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: st,
		Dicts: []command.Dict{
			{Intent: dialog.IntentAddItem, Slots: map[string]any{"quantity": float64(1)}},
			{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"menu_item_id": float64(50), "quantity": float64(1)}},
		},
	})

	if len(b.Results) != 2 {
		t.Fatalf("results: got %d, want 2", len(b.Results))
	}
	if b.Results[0].ErrorCategory != order.CategoryValidation ||
		b.Results[0].ErrorCode != order.CodeMissingRequiredField {
		t.Errorf("invalid dict result: %+v", b.Results[0])
	}
	if !b.Results[1].Succeeded() {
		t.Errorf("valid dict must still execute: %+v", b.Results[1])
	}
	if b.Outcome != command.OutcomePartialAsk {
		t.Errorf("outcome: got %s, want PARTIAL_SUCCESS_ASK", b.Outcome)
	}
}

func TestExecute_SequenceAddThenRemove(t *testing.T) {
	ex := newExecutor(burgerMenu(), nil, nil, testCfg())
	st := order.NewState()

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: st,
		Dicts: []command.Dict{
			{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"menu_item_id": float64(42), "quantity": float64(1)}},
			{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"menu_item_id": float64(50), "quantity": float64(1)}},
			{Intent: dialog.IntentRemoveItem,
				Slots: map[string]any{"target_ref": "big mac"}},
		},
	})

	if b.Outcome != command.OutcomeAllSuccess {
		t.Fatalf("outcome: got %s, want ALL_SUCCESS: %+v", b.Outcome, b.Results)
	}
	if len(st.Items) != 1 || st.Items[0].Name != "Coca-Cola" {
		t.Errorf("order after remove: %+v", st.Items)
	}
}

func TestExecute_PanicBecomesSystemResult(t *testing.T) {
	m := burgerMenu()
	m.panicOn = 42
	tx := &fakeTx{}
	ex := newExecutor(m, nil, &fakeBeginner{tx: tx}, testCfg())
	st := order.NewState()

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: st,
		Dicts: []command.Dict{
			{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"menu_item_id": float64(42), "quantity": float64(1)}},
			{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"menu_item_id": float64(50), "quantity": float64(1)}},
		},
	})

	res := b.Results[0]
	if res.ErrorCategory != order.CategorySystem || res.ErrorCode != order.CodeInternalError {
		t.Fatalf("panicked command result: %+v", res)
	}
	if !b.Results[1].Succeeded() {
		t.Error("a panic must not abort the rest of the batch")
	}
	if b.FollowUp != command.FollowUpStop {
		t.Errorf("follow up: got %s, want STOP", b.FollowUp)
	}
	if !tx.rolledBack || tx.committed {
		t.Errorf("turn transaction must roll back after a panic: %+v", tx)
	}
}

func TestConfirm_EmptyOrder(t *testing.T) {
	ex := newExecutor(burgerMenu(), nil, nil, testCfg())

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: order.NewState(),
		Dicts: []command.Dict{{Intent: dialog.IntentConfirmOrder}},
	})

	res := b.Results[0]
	if res.ErrorCategory != order.CategoryBusiness || res.ErrorCode != order.CodeItemNotFound {
		t.Fatalf("confirm on empty order: %+v", res)
	}
}

func confirmFixture(t *testing.T, inv *fakeInventory, cfg config.OrderingConfig, modifiers []string) (*command.Batch, *fakeTx) {
	t.Helper()
	tx := &fakeTx{}
	ex := newExecutor(burgerMenu(), inv, &fakeBeginner{tx: tx}, cfg)
	st := order.NewState()

	dicts := []command.Dict{{Intent: dialog.IntentAddItem,
		Slots: map[string]any{"menu_item_id": float64(42), "quantity": float64(2)}}}
	if len(modifiers) > 0 {
		mods := make([]any, len(modifiers))
		for i, m := range modifiers {
			mods[i] = m
		}
		dicts[0].Slots["modifiers"] = mods
	}
	dicts = append(dicts, command.Dict{Intent: dialog.IntentConfirmOrder})

	return ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: st, Dicts: dicts,
	}), tx
}

func TestConfirm_DecrementsInventory(t *testing.T) {
	inv := &fakeInventory{stock: map[int]menu.Inventory{
		1: {IngredientID: 1, CurrentStock: 10, MinStockLevel: 2},
		2: {IngredientID: 2, CurrentStock: 10, MinStockLevel: 2},
	}}
	cfg := testCfg()
	cfg.EnableInventoryChecking = true

	b, tx := confirmFixture(t, inv, cfg, nil)

	if b.Outcome != command.OutcomeAllSuccess {
		t.Fatalf("outcome: got %s: %+v", b.Outcome, b.Results)
	}
	if inv.decrements[1] != 2 || inv.decrements[2] != 2 {
		t.Errorf("decrements: %+v, want 2 of each ingredient", inv.decrements)
	}
	if !tx.committed {
		t.Error("clean batch must commit the turn transaction")
	}
}

func TestConfirm_RemovedIngredientNotDecremented(t *testing.T) {
	inv := &fakeInventory{stock: map[int]menu.Inventory{
		1: {IngredientID: 1, CurrentStock: 10},
		2: {IngredientID: 2, CurrentStock: 10},
	}}
	cfg := testCfg()
	cfg.EnableInventoryChecking = true

	b, _ := confirmFixture(t, inv, cfg, []string{"no onions"})

	if b.Outcome != command.OutcomeAllSuccess {
		t.Fatalf("outcome: got %s: %+v", b.Outcome, b.Results)
	}
	if inv.decrements[1] != 2 {
		t.Errorf("beef patty decrement: got %.0f, want 2", inv.decrements[1])
	}
	if _, touched := inv.decrements[2]; touched {
		t.Error("onions were removed from the line and must not be decremented")
	}
}

func TestConfirm_Shortage(t *testing.T) {
	inv := &fakeInventory{stock: map[int]menu.Inventory{
		1: {IngredientID: 1, CurrentStock: 1},
	}}
	cfg := testCfg()
	cfg.EnableInventoryChecking = true

	b, _ := confirmFixture(t, inv, cfg, nil)

	if b.Outcome != command.OutcomePartialAsk {
		t.Fatalf("outcome: got %s: %+v", b.Outcome, b.Results)
	}
	res := b.Results[1]
	if res.ErrorCode != order.CodeInventoryShortage {
		t.Fatalf("confirm result: %+v", res)
	}
	if !strings.Contains(res.Message, "Beef Patty") {
		t.Errorf("shortage message must name the ingredient: %q", res.Message)
	}
}

func TestConfirm_PartialShortageLeavesStockUntouched(t *testing.T) {
	// Beef patties are plentiful, onions are out. The blocked confirm must
	// not deduct the patties either.
	inv := &fakeInventory{stock: map[int]menu.Inventory{
		1: {IngredientID: 1, CurrentStock: 10},
		2: {IngredientID: 2, CurrentStock: 1},
	}}
	cfg := testCfg()
	cfg.EnableInventoryChecking = true

	b, tx := confirmFixture(t, inv, cfg, nil)

	res := b.Results[1]
	if res.ErrorCode != order.CodeInventoryShortage {
		t.Fatalf("confirm result: %+v", res)
	}
	if len(inv.decrements) != 0 {
		t.Errorf("a blocked confirm must not decrement any stock: %+v", inv.decrements)
	}
	if !tx.committed {
		t.Error("a business failure with no database writes still commits the turn")
	}
}

func TestExecutor_SystemErrorRollsBack(t *testing.T) {
	inv := &fakeInventory{readErr: errors.New("connection reset")}
	tx := &fakeTx{}
	cfg := testCfg()
	cfg.EnableInventoryChecking = true
	ex := newExecutor(burgerMenu(), inv, &fakeBeginner{tx: tx}, cfg)

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: order.NewState(),
		Dicts: []command.Dict{
			{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"menu_item_id": float64(42), "quantity": float64(2)}},
			{Intent: dialog.IntentConfirmOrder},
		},
	})

	res := b.Results[1]
	if res.ErrorCategory != order.CategorySystem || res.ErrorCode != order.CodeDatabaseError {
		t.Fatalf("confirm result: %+v", res)
	}
	if !tx.rolledBack || tx.committed {
		t.Errorf("a SYSTEM failure must roll the turn transaction back: %+v", tx)
	}
	if b.FollowUp != command.FollowUpStop {
		t.Errorf("follow up: got %s, want STOP", b.FollowUp)
	}
}

func TestConfirm_ShortageAllowedWhenNegativeInventoryOn(t *testing.T) {
	inv := &fakeInventory{stock: map[int]menu.Inventory{
		1: {IngredientID: 1, CurrentStock: 1},
	}}
	cfg := testCfg()
	cfg.EnableInventoryChecking = true
	cfg.AllowNegativeInventory = true

	b, _ := confirmFixture(t, inv, cfg, nil)

	if b.Outcome != command.OutcomeAllSuccess {
		t.Fatalf("outcome: got %s: %+v", b.Outcome, b.Results)
	}
	if b.Results[1].Status != order.StatusWarning {
		t.Errorf("confirm result must be a warning: %+v", b.Results[1])
	}
	if inv.decrements[1] != 2 {
		t.Errorf("stock must still be decremented: %+v", inv.decrements)
	}
}

func TestRepeat_SpeaksSummary(t *testing.T) {
	ex := newExecutor(burgerMenu(), nil, nil, testCfg())
	st := order.NewState()

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: st,
		Dicts: []command.Dict{
			{Intent: dialog.IntentAddItem,
				Slots: map[string]any{"menu_item_id": float64(42), "quantity": float64(2)}},
			{Intent: dialog.IntentRepeat},
		},
	})

	msg := b.Results[1].Message
	if !strings.Contains(msg, "2 Big Mac") || !strings.Contains(msg, "$11.98") {
		t.Errorf("repeat message: %q", msg)
	}
}

func TestQuestion_ItemPrice(t *testing.T) {
	ex := newExecutor(burgerMenu(), nil, nil, testCfg())

	b := ex.Execute(context.Background(), command.Request{
		SessionID: "sess-1", RestaurantID: 1, Order: order.NewState(),
		Dicts: []command.Dict{{Intent: dialog.IntentQuestion,
			Slots: map[string]any{"item": "big mac"}}},
	})

	if got := b.Results[0].Message; got != "Big Mac is $5.99." {
		t.Errorf("price answer: %q", got)
	}
}

func TestAnalyze(t *testing.T) {
	success := order.Success("ok")
	business := order.Failure(order.CategoryBusiness, order.CodeItemUnavailable, "no")
	system := order.SystemFailure(order.CodeDatabaseError, "down")

	tests := []struct {
		name         string
		intents      []dialog.IntentType
		results      []*order.Result
		wantOutcome  command.Outcome
		wantFollowUp command.FollowUp
		wantFamily   dialog.IntentType
	}{
		{
			name:         "all success",
			intents:      []dialog.IntentType{dialog.IntentAddItem, dialog.IntentAddItem},
			results:      []*order.Result{success, success},
			wantOutcome:  command.OutcomeAllSuccess,
			wantFollowUp: command.FollowUpContinue,
			wantFamily:   dialog.IntentAddItem,
		},
		{
			name:         "all failed",
			intents:      []dialog.IntentType{dialog.IntentItemUnavailable},
			results:      []*order.Result{business},
			wantOutcome:  command.OutcomeAllFailed,
			wantFollowUp: command.FollowUpAsk,
			wantFamily:   dialog.IntentItemUnavailable,
		},
		{
			name:         "system error stops",
			intents:      []dialog.IntentType{dialog.IntentAddItem, dialog.IntentAddItem},
			results:      []*order.Result{success, system},
			wantOutcome:  command.OutcomePartialContinue,
			wantFollowUp: command.FollowUpStop,
			wantFamily:   dialog.IntentAddItem,
		},
		{
			name:         "business failure asks",
			intents:      []dialog.IntentType{dialog.IntentAddItem, dialog.IntentItemUnavailable},
			results:      []*order.Result{success, business},
			wantOutcome:  command.OutcomePartialAsk,
			wantFollowUp: command.FollowUpAsk,
			wantFamily:   dialog.IntentAddItem,
		},
		{
			name:    "clarification wins over success",
			intents: []dialog.IntentType{dialog.IntentAddItem, dialog.IntentClarificationNeeded},
			results: []*order.Result{success, func() *order.Result {
				r := order.Success("which one?")
				r.ResponseType = order.ResponseClarification
				return r
			}()},
			wantOutcome:  command.OutcomeNeedsClarification,
			wantFollowUp: command.FollowUpAsk,
			wantFamily:   dialog.IntentAddItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := command.Analyze(tt.intents, tt.results)
			if b.Outcome != tt.wantOutcome {
				t.Errorf("outcome: got %s, want %s", b.Outcome, tt.wantOutcome)
			}
			if b.FollowUp != tt.wantFollowUp {
				t.Errorf("follow up: got %s, want %s", b.FollowUp, tt.wantFollowUp)
			}
			if b.CommandFamily != tt.wantFamily {
				t.Errorf("family: got %s, want %s", b.CommandFamily, tt.wantFamily)
			}
		})
	}
}
