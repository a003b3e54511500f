package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePaymentRequest(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		req, err := DecodePaymentRequest([]byte(`{
			"totalAmount": 150.50,
			"myiutePhone": "+355691234567",
			"currency": "eur",
			"merchant": {"salesmanIdentifier": "cashier-9"},
			"items": [{"id": "p1"}]
		}`))
		require.NoError(t, err)
		assert.Equal(t, "150.5", req.TotalAmount.String())
		assert.Equal(t, "cashier-9", *req.Merchant.SalesmanIdentifier)
		assert.JSONEq(t, `[{"id":"p1"}]`, string(req.Items))
		assert.Nil(t, req.OrderID)
	})

	t.Run("NotJSON", func(t *testing.T) {
		for _, body := range []string{"", "   ", "hello", "[1,2]", `{"a":`} {
			_, err := DecodePaymentRequest([]byte(body))
			assert.EqualError(t, err, "Request body must be a valid JSON.", body)
		}
	})

	t.Run("WrongType", func(t *testing.T) {
		_, err := DecodePaymentRequest([]byte(`{
			"totalAmount": 10,
			"myiutePhone": 12345,
			"currency": "EUR",
			"merchant": {"salesmanIdentifier": "cashier-9"}
		}`))
		assert.EqualError(t, err, "Field 'myiutePhone' has an invalid value.")
	})

	t.Run("WrongTypeStillReportsMissing", func(t *testing.T) {
		_, err := DecodePaymentRequest([]byte(`{"myiutePhone": 355691234567}`))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"myiutePhone"}, verr.Invalid)
		assert.Equal(t, []string{"totalAmount", "currency", "merchant.salesmanIdentifier"}, verr.Missing)
		assert.EqualError(t, err, "Request body must include all required fields: totalAmount, currency, merchant.salesmanIdentifier; Field 'myiutePhone' has an invalid value.")
	})

	t.Run("UnparsableAmount", func(t *testing.T) {
		_, err := DecodePaymentRequest([]byte(`{
			"totalAmount": "abc",
			"myiutePhone": "+355691234567",
			"currency": "EUR",
			"merchant": {"salesmanIdentifier": "cashier-9"}
		}`))
		assert.EqualError(t, err, "Field 'totalAmount' has an invalid value.")
	})

	t.Run("SeveralInvalid", func(t *testing.T) {
		_, err := DecodePaymentRequest([]byte(`{
			"totalAmount": "abc",
			"taxAmount": true,
			"myiutePhone": "+355691234567",
			"currency": "EUR",
			"merchant": {"salesmanIdentifier": 9}
		}`))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"totalAmount", "taxAmount", "merchant.salesmanIdentifier"}, verr.Invalid)
		assert.Empty(t, verr.Missing)
		assert.EqualError(t, err, "Fields 'totalAmount', 'taxAmount', 'merchant.salesmanIdentifier' have invalid values.")
	})

	t.Run("QuotedAmountAccepted", func(t *testing.T) {
		req, err := DecodePaymentRequest([]byte(`{"totalAmount": "10.005"}`))
		require.NoError(t, err)
		assert.Equal(t, "10.005", req.TotalAmount.String())
	})
}

func TestPaymentRequest_Validate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		req := validRequest()
		require.NoError(t, req.Validate())
		assert.Equal(t, "EUR", *req.Currency)
	})

	t.Run("AllMissing", func(t *testing.T) {
		err := (&PaymentRequest{}).Validate()

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"totalAmount", "myiutePhone", "currency", "merchant.salesmanIdentifier"}, verr.Missing)
		assert.EqualError(t, err, "Request body must include all required fields: totalAmount, myiutePhone, currency, merchant.salesmanIdentifier")
	})

	t.Run("BlankCountsAsMissing", func(t *testing.T) {
		req := validRequest()
		req.MyiutePhone = strPtr("  ")
		req.Merchant.SalesmanIdentifier = strPtr("")

		var verr *ValidationError
		require.ErrorAs(t, req.Validate(), &verr)
		assert.Equal(t, []string{"myiutePhone", "merchant.salesmanIdentifier"}, verr.Missing)
	})

	t.Run("UnsupportedCurrency", func(t *testing.T) {
		req := validRequest()
		req.Currency = strPtr("USD")
		assert.EqualError(t, req.Validate(), "Invalid currency 'USD'. Supported currencies are: EUR, ALL, MDL, MKD.")
	})

	t.Run("SupportedCurrencies", func(t *testing.T) {
		for _, c := range []string{"EUR", "all", " mdl ", "MKD"} {
			req := validRequest()
			req.Currency = strPtr(c)
			assert.NoError(t, req.Validate(), c)
		}
	})

	t.Run("NonPositiveTotal", func(t *testing.T) {
		for _, v := range []string{"0", "-1"} {
			req := validRequest()
			req.TotalAmount = decimalPtr(v)
			assert.EqualError(t, req.Validate(), "Field 'totalAmount' must be a positive amount.")
		}
	})

	t.Run("NegativeOptionalAmount", func(t *testing.T) {
		req := validRequest()
		req.ShippingAmount = decimalPtr("-5")
		assert.EqualError(t, req.Validate(), "Field 'shippingAmount' must not be negative.")

		req = validRequest()
		req.TaxAmount = decimalPtr("0")
		assert.NoError(t, req.Validate())
	})
}
