package order

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func fullRequest() *PaymentRequest {
	req := validRequest()
	req.Currency = strPtr("EUR")
	req.MyiutePhone = strPtr(" +355691234567 ")
	req.Subtotal = decimalPtr("140.00")
	req.TaxAmount = decimalPtr("10.5")
	req.Birthday = strPtr("17.05.1990")
	req.Gender = strPtr("F")
	req.Merchant.UserConfirmationURL = strPtr("https://merchant.test/ok")
	req.Shipping = json.RawMessage(`{"city":"Tirana"}`)
	req.Items = json.RawMessage(`[{"id":"p1","qty":2}]`)
	return req
}

func TestToGatewayPayload(t *testing.T) {
	p := ToGatewayPayload(fullRequest(), "ord-1")

	assert.Equal(t, "ord-1", p.OrderID)
	assert.Equal(t, "+355691234567", p.MyiutePhone)
	assert.Equal(t, json.Number("150.5"), p.TotalAmount)
	assert.Equal(t, json.Number("140"), p.Subtotal)
	assert.Equal(t, json.Number(""), p.ShippingAmount)
	assert.Equal(t, "cashier-9", p.Merchant.SalesmanIdentifier)
	assert.Empty(t, p.Merchant.PosIdentifier)
	assert.Equal(t, "1234", *p.UserPin)
	assert.Equal(t, "17.05.1990", *p.Birthday)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(data, &sent))
	assert.Equal(t, 150.5, sent["totalAmount"])
	assert.Equal(t, 10.5, sent["taxAmount"])
	_, hasShipping := sent["shippingAmount"]
	assert.False(t, hasShipping)
}

func TestToOrder(t *testing.T) {
	t.Run("Full", func(t *testing.T) {
		o := ToOrder(fullRequest(), "ord-1", json.RawMessage(`{"ok":true}`))

		assert.Equal(t, "ord-1", o.OrderID)
		assert.Equal(t, StatusPending, o.Status)
		assert.Nil(t, o.CancellationReason)
		assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("150.5")))
		assert.True(t, o.Subtotal.Valid)
		assert.False(t, o.ShippingAmount.Valid)
		assert.Equal(t, "+355691234567", o.CustomerPhone)
		require.NotNil(t, o.Birthday)
		assert.Equal(t, time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC), *o.Birthday)
		assert.Equal(t, "https://merchant.test/ok", *o.UserConfirmationURL)
		assert.JSONEq(t, `{"city":"Tirana"}`, string(o.ShippingInfo))
		assert.JSONEq(t, `{"ok":true}`, string(o.GatewayResponse))
	})

	t.Run("Defaults", func(t *testing.T) {
		o := ToOrder(validRequest(), "ord-2", nil)
		assert.Equal(t, `[]`, string(o.Items))
		assert.Nil(t, o.Birthday)
	})

	t.Run("BadBirthday", func(t *testing.T) {
		req := validRequest()
		req.Birthday = strPtr("1990-05-17")
		assert.Nil(t, ToOrder(req, "ord-3", nil).Birthday)
	})
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]OrderStatus{
		"PENDING":     StatusPending,
		"confirmed":   StatusConfirmed,
		" Cancelled ": StatusCancelled,
	} {
		got, ok := ParseStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}

	_, ok := ParseStatus("IN_REVIEW")
	assert.False(t, ok)

	assert.True(t, StatusConfirmed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
}
