// Package ccavenue implements the encrypted form exchange used by the hosted
// checkout gateway: request encoding, the AES cipher contract and callback parsing.
package ccavenue

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/gcmtshop/cca-payments/internal/domain"
)

type field struct {
	name  string
	value string
}

// requiredFields returns the mandatory gateway parameters in wire order.
func requiredFields(o domain.OrderRequest) []field {
	return []field{
		{"merchant_id", o.MerchantID},
		{"order_id", o.OrderID},
		{"amount", o.Amount},
		{"currency", o.Currency},
		{"redirect_url", o.RedirectURL},
		{"cancel_url", o.CancelURL},
		{"language", o.Language},
	}
}

// optionalFields returns the optional parameters in wire order.
func optionalFields(o domain.OrderRequest) []field {
	return []field{
		{"billing_name", o.BillingName},
		{"billing_address", o.BillingAddress},
		{"billing_city", o.BillingCity},
		{"billing_state", o.BillingState},
		{"billing_zip", o.BillingZip},
		{"billing_country", o.BillingCountry},
		{"billing_tel", o.BillingTel},
		{"billing_email", o.BillingEmail},
		{"delivery_name", o.DeliveryName},
		{"delivery_address", o.DeliveryAddress},
		{"delivery_city", o.DeliveryCity},
		{"delivery_state", o.DeliveryState},
		{"delivery_zip", o.DeliveryZip},
		{"delivery_country", o.DeliveryCountry},
		{"delivery_tel", o.DeliveryTel},
		{"merchant_param1", o.MerchantParam1},
		{"merchant_param2", o.MerchantParam2},
		{"merchant_param3", o.MerchantParam3},
		{"merchant_param4", o.MerchantParam4},
		{"merchant_param5", o.MerchantParam5},
		{"promo_code", o.PromoCode},
		{"customer_identifier", o.CustomerIdentifier},
	}
}

// Gateway limits on field length, in characters.
const (
	MaxOrderIDLength  = 30
	MaxAmountLength   = 32
	MaxCurrencyLength = 3
)

// ValidateOrder checks required fields, field lengths and the amount.
// Every missing field is reported, not just the first.
func ValidateOrder(o domain.OrderRequest) error {
	verr := &domain.ValidationError{}
	for _, f := range requiredFields(o) {
		if strings.TrimSpace(f.value) == "" {
			verr.MissingFields = append(verr.MissingFields, f.name)
		}
	}
	if strings.TrimSpace(o.Amount) != "" && !validAmount(o.Amount) {
		verr.InvalidAmount = true
	}
	for _, f := range []struct {
		name  string
		value string
		max   int
	}{
		{"order_id", o.OrderID, MaxOrderIDLength},
		{"amount", o.Amount, MaxAmountLength},
		{"currency", o.Currency, MaxCurrencyLength},
	} {
		if f.name == "amount" && verr.InvalidAmount {
			continue
		}
		if utf8.RuneCountInString(f.value) > f.max {
			verr.TooLong = append(verr.TooLong, f.name)
		}
	}
	if len(verr.MissingFields) > 0 || verr.InvalidAmount || len(verr.TooLong) > 0 {
		return verr
	}
	return nil
}

func validAmount(s string) bool {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return d.IsPositive()
}

// BuildPayload renders the order as the gateway's key=value text.
// Output is byte-identical for identical input.
func BuildPayload(o domain.OrderRequest) (string, error) {
	if err := ValidateOrder(o); err != nil {
		return "", err
	}

	var b strings.Builder
	write := func(f field) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.name)
		b.WriteByte('=')
		b.WriteString(escapeComponent(f.value))
	}

	for _, f := range requiredFields(o) {
		write(f)
	}
	for _, f := range optionalFields(o) {
		if f.value == "" {
			continue
		}
		write(f)
	}
	return b.String(), nil
}

// escapeComponent leaves only A-Z a-z 0-9 - _ . ~ unescaped; space is %20.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
