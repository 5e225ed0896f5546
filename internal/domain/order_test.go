package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItemsSubtotalSumsPriceTimesQuantity(t *testing.T) {
	t.Parallel()

	items := []OrderItem{
		{ProductID: "1", UnitPrice: MustMoney("100.00"), Quantity: 2},
		{ProductID: "2", UnitPrice: MustMoney("9.90"), Quantity: 3},
	}
	require.True(t, ItemsSubtotal(items).Equal(MustMoney("229.70")), "got %s", ItemsSubtotal(items))

	items[1].Quantity = 1
	require.True(t, ItemsSubtotal(items).Equal(MustMoney("209.90")))
}

func TestFinalAmountAddsShippingOnce(t *testing.T) {
	t.Parallel()

	order := Order{
		ID:           "7",
		Items:        []OrderItem{{ProductID: "1", UnitPrice: MustMoney("100.00"), Quantity: 2}},
		ShippingCost: MustMoney("15.00"),
		// The stored total already includes shipping.
		TotalAmount: MustMoney("215.00"),
		HasItemData: true,
	}
	sel := &ShippingSelection{PostalCode: "01001000", Option: ShippingOption{Name: "SEDEX", Price: MustMoney("15.00")}}

	require.Equal(t, "215.00", FinalAmount(order, sel).String())
}

func TestFinalAmountFallsBackToStoredTotalWithoutItems(t *testing.T) {
	t.Parallel()

	order := Order{
		ID:           "8",
		ShippingCost: MustMoney("10.00"),
		TotalAmount:  MustMoney("110.00"),
	}
	require.Equal(t, "110.00", FinalAmount(order, nil).String())

	sel := &ShippingSelection{Option: ShippingOption{Name: "PAC", Price: MustMoney("25.00")}}
	require.Equal(t, "125.00", FinalAmount(order, sel).String())
}

func TestFinalAmountWithoutSelectionIsItemsOnly(t *testing.T) {
	t.Parallel()

	order := Order{
		Items:       []OrderItem{{UnitPrice: MustMoney("50.00"), Quantity: 1}},
		TotalAmount: MustMoney("65.00"),
		HasItemData: true,
	}
	require.Equal(t, "50.00", FinalAmount(order, nil).String())
}

func TestOrderDecodesBackendPayload(t *testing.T) {
	t.Parallel()

	payload := `{
		"orderId": 42,
		"buyerId": 3,
		"buyerEmail": "ana@example.com",
		"status": "PENDING",
		"items": [
			{"orderItemId": 1, "productId": 10, "productName": "Caneca", "quantity": 2, "priceAtTheTime": 100.00, "subtotal": 999}
		],
		"shippingCost": 15.00,
		"totalAmount": 215.00,
		"totalItems": 2
	}`
	var order Order
	require.NoError(t, json.Unmarshal([]byte(payload), &order))

	require.Equal(t, ID("42"), order.ID)
	require.Equal(t, ID("3"), order.BuyerID)
	require.Equal(t, OrderAwaitingPayment, order.Status)
	require.True(t, order.HasItemData)
	require.Len(t, order.Items, 1)
	require.Equal(t, "200.00", order.Items[0].Subtotal().String())
	require.Equal(t, 2, order.ItemCount())
}

func TestOrderWithoutItemsHasNoItemData(t *testing.T) {
	t.Parallel()

	var order Order
	require.NoError(t, json.Unmarshal([]byte(`{"id":"9","totalAmount":"30.5","items":[]}`), &order))
	require.False(t, order.HasItemData)
	require.Equal(t, "30.50", order.TotalAmount.String())
}

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	t.Parallel()

	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"user_ID": 12, "userName": "Ana"}`), &u))
	require.Equal(t, ID("12"), u.ID)
	require.Equal(t, "Ana", u.Name)

	require.NoError(t, json.Unmarshal([]byte(`{"userId": "15"}`), &u))
	require.Equal(t, ID("15"), u.ID)

	raw, err := json.Marshal(struct {
		UserID ID `json:"userId"`
	}{UserID: "15"})
	require.NoError(t, err)
	require.JSONEq(t, `{"userId":15}`, string(raw))
}

func TestCartItemDecodesCartItemID(t *testing.T) {
	t.Parallel()

	var item CartItem
	require.NoError(t, json.Unmarshal([]byte(`{"cartItem_ID": 5, "productId": 9, "quantity": 3, "price": 12.5}`), &item))
	require.Equal(t, ID("5"), item.ID)
	require.Equal(t, "37.50", item.Subtotal().String())
}

func TestTaxIDValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"123.456.789-09": true,
		"12345678909":    true,
		"1234567890":     false,
		"123456789012":   false,
		"":               false,
		"abc":            false,
	}
	for in, want := range cases {
		require.Equal(t, want, ValidTaxID(in), "tax id %q", in)
	}
}

func TestAddressMissingFields(t *testing.T) {
	t.Parallel()

	addr := Address{PostalCode: "01001-000", Street: "Praça da Sé", Number: "1", City: "São Paulo"}.Normalize()
	require.Equal(t, "01001000", addr.PostalCode)
	require.Equal(t, []string{"neighborhood", "state"}, addr.Missing())
}

func TestErrorsMatchByKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", E(KindOrderNotFound, "orders.get", "order 9 not found"))
	require.True(t, errors.Is(err, ErrOrderNotFound))
	require.False(t, errors.Is(err, ErrNetwork))
	require.Equal(t, KindOrderNotFound, KindOf(err))
	require.Equal(t, "order 9 not found", MessageOf(err))
}

func TestSettlementStatusClassification(t *testing.T) {
	t.Parallel()

	require.True(t, SettlementStatus("COMPLETED").Approved())
	require.True(t, SettlementStatus("PENDING").Successful())
	require.False(t, SettlementStatus("FAILED").Successful())
	require.False(t, SettlementStatus("rejected").Successful())
}

func TestParsePaymentMethod(t *testing.T) {
	t.Parallel()
	cases := map[string]PaymentMethod{
		"card":         MethodCard,
		" Credit_Card": MethodCard,
		"debit_card":   MethodCard,
		"PIX":          MethodPix,
	}
	for raw, want := range cases {
		got, ok := ParsePaymentMethod(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}
	_, ok := ParsePaymentMethod("boleto")
	require.False(t, ok)
}

func TestProductDecodesCanonicalShape(t *testing.T) {
	t.Parallel()
	in := Product{ID: "9", Name: "Caneca", Price: MustMoney("100"), Stock: 0, Category: &Category{ID: "3", Name: "Cozinha"}}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out Product
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, ID("9"), out.ID)
	require.Equal(t, "100.00", out.Price.String())
	require.False(t, out.InStock())
	require.Equal(t, in.Category, out.Category)
	require.Nil(t, out.Seller)
}
