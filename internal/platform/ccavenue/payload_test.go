package ccavenue

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcmtshop/cca-payments/internal/domain"
)

func sampleOrder() domain.OrderRequest {
	return domain.OrderRequest{
		MerchantID:  "M1",
		OrderID:     "O100",
		Amount:      "250.00",
		Currency:    "INR",
		RedirectURL: "https://x/ok",
		CancelURL:   "https://x/no",
		Language:    "EN",
	}
}

const samplePayload = "merchant_id=M1&order_id=O100&amount=250.00&currency=INR" +
	"&redirect_url=https%3A%2F%2Fx%2Fok&cancel_url=https%3A%2F%2Fx%2Fno&language=EN"

func TestBuildPayload_RequiredFieldsOnly(t *testing.T) {
	got, err := BuildPayload(sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, samplePayload, got)
}

func TestBuildPayload_Deterministic(t *testing.T) {
	order := sampleOrder()
	order.BillingName = "Asha Rao"
	order.DeliveryCity = "Chennai"
	order.MerchantParam1 = "77"

	first, err := BuildPayload(order)
	require.NoError(t, err)
	second, err := BuildPayload(order)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildPayload_OptionalFieldOrder(t *testing.T) {
	order := sampleOrder()
	// Set in scrambled order; output order must not depend on it.
	order.MerchantParam1 = "77"
	order.DeliveryTel = "999"
	order.BillingEmail = "a@b.in"
	order.BillingName = "Asha"

	got, err := BuildPayload(order)
	require.NoError(t, err)
	assert.Equal(t, samplePayload+
		"&billing_name=Asha&billing_email=a%40b.in&delivery_tel=999&merchant_param1=77", got)
}

func TestBuildPayload_EncodesValuesOnce(t *testing.T) {
	order := sampleOrder()
	order.BillingAddress = "12 A&B Road = Flat 3"
	order.BillingCity = "Bengaluru ಬೆಂಗಳೂರು"
	order.BillingState = "50%"

	got, err := BuildPayload(order)
	require.NoError(t, err)
	assert.Contains(t, got, "&billing_address=12%20A%26B%20Road%20%3D%20Flat%203")
	assert.Contains(t, got, "&billing_city=Bengaluru%20%E0%B2%AC%E0%B3%86%E0%B2%82%E0%B2%97%E0%B2%B3%E0%B3%82%E0%B2%B0%E0%B3%81")
	assert.Contains(t, got, "&billing_state=50%25")
	assert.NotContains(t, got, "+")
}

func TestBuildPayload_EscapesSubDelimiters(t *testing.T) {
	order := sampleOrder()
	order.BillingName = "O'Neil (Jr)! *"

	got, err := BuildPayload(order)
	require.NoError(t, err)
	assert.Contains(t, got, "&billing_name=O%27Neil%20%28Jr%29%21%20%2A")

	params, err := url.ParseQuery(got)
	require.NoError(t, err)
	assert.Equal(t, "O'Neil (Jr)! *", params.Get("billing_name"))
}

func TestBuildPayload_MissingFields(t *testing.T) {
	order := sampleOrder()
	order.MerchantID = ""
	order.Currency = "  "
	order.Language = ""

	_, err := BuildPayload(order)
	require.Error(t, err)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"merchant_id", "currency", "language"}, verr.MissingFields)
	assert.False(t, verr.InvalidAmount)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestBuildPayload_InvalidAmount(t *testing.T) {
	cases := []string{"0", "0.00", "-5", "abc", "12,50", "NaN", "Inf"}
	for _, amount := range cases {
		t.Run(amount, func(t *testing.T) {
			order := sampleOrder()
			order.Amount = amount

			_, err := BuildPayload(order)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.True(t, verr.InvalidAmount)
			assert.Empty(t, verr.MissingFields)
			assert.Equal(t, []string{"amount"}, verr.InvalidFields())
		})
	}
}

func TestBuildPayload_AmountKeptVerbatim(t *testing.T) {
	order := sampleOrder()
	order.Amount = "1.10"

	got, err := BuildPayload(order)
	require.NoError(t, err)
	assert.Contains(t, got, "&amount=1.10&")
}

func TestBuildPayload_MissingAmountIsNotAlsoInvalid(t *testing.T) {
	order := sampleOrder()
	order.Amount = ""

	_, err := BuildPayload(order)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"amount"}, verr.MissingFields)
	assert.False(t, verr.InvalidAmount)
}

func TestValidateOrder_FieldLengths(t *testing.T) {
	order := sampleOrder()
	order.OrderID = strings.Repeat("A", MaxOrderIDLength)
	require.NoError(t, ValidateOrder(order))

	order.OrderID = strings.Repeat("A", MaxOrderIDLength+1)
	order.Currency = "INRR"

	err := ValidateOrder(order)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Empty(t, verr.MissingFields)
	assert.Equal(t, []string{"order_id", "currency"}, verr.TooLong)
	assert.Equal(t, []string{"order_id", "currency"}, verr.InvalidFields())
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	order = sampleOrder()
	order.Amount = "1." + strings.Repeat("0", MaxAmountLength)
	err = ValidateOrder(order)
	require.True(t, errors.As(err, &verr))
	assert.False(t, verr.InvalidAmount)
	assert.Equal(t, []string{"amount"}, verr.InvalidFields())
}
