package order_test

import (
	"strings"
	"testing"

	"github.com/ordervox/ordervox/internal/config"
	"github.com/ordervox/ordervox/internal/menu"
	"github.com/ordervox/ordervox/internal/order"
)

func testConfig() config.OrderingConfig {
	return config.OrderingConfig{
		MaxQuantityPerItem:            10,
		MaxItemsPerOrder:              50,
		MaxOrderTotal:                 200,
		EnableCustomizationValidation: true,
	}
}

func bigMac() menu.Item {
	return menu.Item{
		ID: 42, RestaurantID: 1, Name: "Big Mac", Price: 5.99, IsAvailable: true,
		Ingredients: []menu.Ingredient{
			{ID: 1, Name: "Beef Patty", Required: true},
			{ID: 2, Name: "Onions", Required: false},
			{ID: 3, Name: "Cheese", Required: false, AdditionalCost: 0.50},
			{ID: 4, Name: "Pickles", Required: false},
		},
	}
}

func coke() menu.Item {
	return menu.Item{ID: 50, RestaurantID: 1, Name: "Coca-Cola", Price: 1.99, IsAvailable: true}
}

func TestAddItem(t *testing.T) {
	svc := order.NewService(testConfig(), nil)
	st := order.NewState()

	res := svc.AddItem(st, order.AddRequest{Item: bigMac(), Quantity: 2})
	if res.Status != order.StatusSuccess {
		t.Fatalf("AddItem: %+v", res)
	}
	if len(st.Items) != 1 {
		t.Fatalf("items: got %d, want 1", len(st.Items))
	}
	li := st.Items[0]
	if li.Quantity != 2 || li.MenuItemID != 42 {
		t.Errorf("line item: %+v", li)
	}
	if want := 2 * 5.99; st.Total != want {
		t.Errorf("total: got %.2f, want %.2f", st.Total, want)
	}
	if li.TotalPrice != float64(li.Quantity)*li.UnitPrice {
		t.Errorf("line total invariant violated: %.2f != %d * %.2f", li.TotalPrice, li.Quantity, li.UnitPrice)
	}
	if st.LastMentionedID != li.ID {
		t.Errorf("last mentioned: got %d, want %d", st.LastMentionedID, li.ID)
	}
}

func TestAddItem_MergesIdenticalLines(t *testing.T) {
	svc := order.NewService(testConfig(), nil)
	st := order.NewState()

	svc.AddItem(st, order.AddRequest{Item: bigMac(), Quantity: 1})
	res := svc.AddItem(st, order.AddRequest{Item: bigMac(), Quantity: 1})
	if res.Status != order.StatusSuccess {
		t.Fatalf("second add: %+v", res)
	}
	if len(st.Items) != 1 {
		t.Fatalf("identical adds should merge, got %d lines", len(st.Items))
	}
	if st.Items[0].Quantity != 2 {
		t.Errorf("merged quantity: got %d, want 2", st.Items[0].Quantity)
	}
}

func TestAddItem_QuantityBoundaries(t *testing.T) {
	svc := order.NewService(testConfig(), nil)

	// At the cap succeeds.
	st := order.NewState()
	res := svc.AddItem(st, order.AddRequest{Item: bigMac(), Quantity: 10})
	if res.Status != order.StatusSuccess {
		t.Fatalf("quantity == cap should succeed: %+v", res)
	}

	// One over the cap fails with the limit code.
	st = order.NewState()
	res = svc.AddItem(st, order.AddRequest{Item: coke(), Quantity: 11})
	if res.Status != order.StatusError || res.ErrorCode != order.CodeQuantityExceedsLimit {
		t.Fatalf("quantity == cap+1: got %+v, want QUANTITY_EXCEEDS_LIMIT", res)
	}
	if !st.IsEmpty() {
		t.Error("failed add must leave the order unchanged")
	}

	// Zero and negative are validation failures.
	res = svc.AddItem(st, order.AddRequest{Item: coke(), Quantity: 0})
	if res.ErrorCode != order.CodeInvalidQuantity {
		t.Errorf("zero quantity: got %+v", res)
	}
}

func TestAddItem_Unavailable(t *testing.T) {
	svc := order.NewService(testConfig(), nil)
	st := order.NewState()
	item := bigMac()
	item.IsAvailable = false

	res := svc.AddItem(st, order.AddRequest{Item: item, Quantity: 1})
	if res.ErrorCode != order.CodeItemUnavailable {
		t.Fatalf("got %+v, want ITEM_UNAVAILABLE", res)
	}
}

func TestAddItem_OrderTotalCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOrderTotal = 10
	svc := order.NewService(cfg, nil)
	st := order.NewState()

	svc.AddItem(st, order.AddRequest{Item: bigMac(), Quantity: 1})
	res := svc.AddItem(st, order.AddRequest{Item: coke(), Quantity: 3})
	if res.ErrorCode != order.CodeQuantityExceedsLimit {
		t.Fatalf("total cap: got %+v", res)
	}
	if len(st.Items) != 1 {
		t.Error("failed add must not append a line")
	}
}

func TestAddItem_Customizations(t *testing.T) {
	svc := order.NewService(testConfig(), nil)

	tests := []struct {
		name      string
		modifiers []string
		wantCode  order.ErrorCode // "" means success
		wantPrice float64         // unit price when successful
	}{
		{name: "valid removal", modifiers: []string{"no onions"}, wantPrice: 5.99},
		{name: "paid extra", modifiers: []string{"extra cheese"}, wantPrice: 6.49},
		{name: "neutral free text", modifiers: []string{"cut in half"}, wantPrice: 5.99},
		{name: "remove not present", modifiers: []string{"no bacon"}, wantCode: order.CodeModifierRemoveNotPresent},
		{name: "remove required", modifiers: []string{"no beef patty"}, wantCode: order.CodeOptionRequiredMissing},
		{name: "add unknown", modifiers: []string{"add caviar"}, wantCode: order.CodeModifierAddNotAllowed},
		{name: "conflict", modifiers: []string{"extra cheese", "no cheese"}, wantCode: order.CodeModifierConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := order.NewState()
			res := svc.AddItem(st, order.AddRequest{Item: bigMac(), Quantity: 1, Modifiers: tt.modifiers})
			if tt.wantCode != "" {
				if res.Status != order.StatusError || res.ErrorCode != tt.wantCode {
					t.Fatalf("got %+v, want code %s", res, tt.wantCode)
				}
				if res.ErrorCategory != order.CategoryBusiness {
					t.Errorf("category: got %s, want BUSINESS", res.ErrorCategory)
				}
				return
			}
			if res.Status != order.StatusSuccess {
				t.Fatalf("unexpected failure: %+v", res)
			}
			if st.Items[0].UnitPrice != tt.wantPrice {
				t.Errorf("unit price: got %.2f, want %.2f", st.Items[0].UnitPrice, tt.wantPrice)
			}
		})
	}
}

func TestAddItem_ValidationDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableCustomizationValidation = false
	svc := order.NewService(cfg, nil)
	st := order.NewState()

	res := svc.AddItem(st, order.AddRequest{Item: bigMac(), Quantity: 1, Modifiers: []string{"add caviar"}})
	if res.Status != order.StatusSuccess {
		t.Fatalf("disabled validation should accept anything: %+v", res)
	}
}

func TestRemoveItem(t *testing.T) {
	svc := order.NewService(testConfig(), nil)
	st := order.NewState()
	svc.AddItem(st, order.AddRequest{Item: bigMac(), Quantity: 1})
	svc.AddItem(st, order.AddRequest{Item: coke(), Quantity: 2})

	res := svc.RemoveItem(st, 0, "big mac")
	if res.Status != order.StatusSuccess {
		t.Fatalf("RemoveItem: %+v", res)
	}
	if len(st.Items) != 1 || st.Items[0].Name != "Coca-Cola" {
		t.Errorf("items after removal: %+v", st.Items)
	}
	if want := 2 * 1.99; st.Total != want {
		t.Errorf("total after removal: got %.2f, want %.2f", st.Total, want)
	}

	// Unknown reference.
	res = svc.RemoveItem(st, 0, "milkshake")
	if res.ErrorCode != order.CodeItemNotFound {
		t.Errorf("unknown ref: got %+v", res)
	}

	// Empty order.
	empty := order.NewState()
	res = svc.RemoveItem(empty, 0, "big mac")
	if res.ErrorCode != order.CodeItemNotFound {
		t.Errorf("empty order: got %+v", res)
	}
}

func TestRemoveItem_LastMentionedFallback(t *testing.T) {
	svc := order.NewService(testConfig(), nil)
	st := order.NewState()
	svc.AddItem(st, order.AddRequest{Item: bigMac(), Quantity: 1})
	svc.AddItem(st, order.AddRequest{Item: coke(), Quantity: 1})

	// "remove that" with no reference removes the last-mentioned item.
	res := svc.RemoveItem(st, 0, "")
	if res.Status != order.StatusSuccess {
		t.Fatalf("RemoveItem: %+v", res)
	}
	if len(st.Items) != 1 || st.Items[0].Name != "Big Mac" {
		t.Errorf("items: %+v", st.Items)
	}
}

func TestModifyItem(t *testing.T) {
	svc := order.NewService(testConfig(), nil)
	st := order.NewState()
	item := bigMac()
	svc.AddItem(st, order.AddRequest{Item: item, Quantity: 1})

	res := svc.ModifyItem(st, order.ModifyRequest{
		TargetRef: "big mac",
		Item:      &item,
		Modifiers: []string{"no onions"},
		Quantity:  2,
	})
	if res.Status != order.StatusSuccess {
		t.Fatalf("ModifyItem: %+v", res)
	}
	li := st.Items[0]
	if li.Quantity != 2 {
		t.Errorf("quantity: got %d, want 2", li.Quantity)
	}
	if len(li.Modifiers) != 1 || li.Modifiers[0] != "no onions" {
		t.Errorf("modifiers: %v", li.Modifiers)
	}
	if li.TotalPrice != float64(li.Quantity)*li.UnitPrice {
		t.Error("line total invariant violated after modify")
	}
}

func TestModifyItem_InvalidModifierLeavesLineUntouched(t *testing.T) {
	svc := order.NewService(testConfig(), nil)
	st := order.NewState()
	item := bigMac()
	svc.AddItem(st, order.AddRequest{Item: item, Quantity: 1})

	res := svc.ModifyItem(st, order.ModifyRequest{
		TargetRef: "big mac",
		Item:      &item,
		Modifiers: []string{"no bacon"},
	})
	if res.ErrorCode != order.CodeModifierRemoveNotPresent {
		t.Fatalf("got %+v", res)
	}
	if len(st.Items[0].Modifiers) != 0 {
		t.Errorf("failed modify leaked modifiers: %v", st.Items[0].Modifiers)
	}
}

func TestSetQuantity(t *testing.T) {
	svc := order.NewService(testConfig(), nil)
	st := order.NewState()
	svc.AddItem(st, order.AddRequest{Item: coke(), Quantity: 1})

	res := svc.SetQuantity(st, 0, "coca", 3)
	if res.Status != order.StatusSuccess {
		t.Fatalf("SetQuantity: %+v", res)
	}
	if st.Items[0].Quantity != 3 {
		t.Errorf("quantity: got %d, want 3", st.Items[0].Quantity)
	}

	// Zero removes the line.
	res = svc.SetQuantity(st, 0, "coca", 0)
	if res.Status != order.StatusSuccess {
		t.Fatalf("SetQuantity to zero: %+v", res)
	}
	if !st.IsEmpty() {
		t.Error("quantity zero should remove the line")
	}

	// Over the cap.
	svc.AddItem(st, order.AddRequest{Item: coke(), Quantity: 1})
	res = svc.SetQuantity(st, 0, "coca", 11)
	if res.ErrorCode != order.CodeQuantityExceedsLimit {
		t.Errorf("over cap: got %+v", res)
	}
	if st.Items[0].Quantity != 1 {
		t.Error("failed SetQuantity must not change the line")
	}
}

func TestClear(t *testing.T) {
	svc := order.NewService(testConfig(), nil)
	st := order.NewState()
	svc.AddItem(st, order.AddRequest{Item: bigMac(), Quantity: 1})

	res := svc.Clear(st)
	if res.Status != order.StatusSuccess {
		t.Fatalf("Clear: %+v", res)
	}
	if !st.IsEmpty() || st.Total != 0 {
		t.Errorf("order after clear: %+v", st)
	}

	// Repeated clear on an empty order is a warning, never an error.
	res = svc.Clear(st)
	if res.Status != order.StatusWarning {
		t.Fatalf("second clear: got %+v, want warning", res)
	}
	if !res.Succeeded() {
		t.Error("warning should count as success")
	}
	if !st.IsEmpty() {
		t.Error("order must stay empty")
	}
}

func TestSummary(t *testing.T) {
	svc := order.NewService(testConfig(), nil)
	st := order.NewState()

	if got := st.Summary(); got != "Your order is empty." {
		t.Errorf("empty summary: %q", got)
	}

	svc.AddItem(st, order.AddRequest{Item: bigMac(), Quantity: 2, Modifiers: []string{"no onions"}})
	svc.AddItem(st, order.AddRequest{Item: coke(), Quantity: 1})
	got := st.Summary()
	for _, want := range []string{"2 Big Mac", "no onions", "1 Coca-Cola", "$13.97"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}
}

func TestItemByRef_Ambiguous(t *testing.T) {
	st := order.NewState()
	st.Items = []order.LineItem{
		{ID: 1, MenuItemID: 10, Name: "Cheeseburger", Quantity: 1},
		{ID: 2, MenuItemID: 11, Name: "Bacon Cheeseburger", Quantity: 1},
	}
	if got := st.ItemByRef("cheeseburger"); got != nil {
		t.Errorf("ambiguous ref should return nil, got %+v", got)
	}
	if got := st.ItemByRef("bacon"); got == nil || got.ID != 2 {
		t.Errorf("unambiguous ref: got %+v", got)
	}
}
