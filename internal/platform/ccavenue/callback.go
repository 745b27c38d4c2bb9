package ccavenue

import (
	"net/url"
	"strings"

	"github.com/gcmtshop/cca-payments/internal/domain"
)

var requiredCallbackKeys = []string{domain.ParamOrderID, domain.ParamOrderStatus, domain.ParamCorrelationToken}

var (
	successTokens = map[string]bool{"success": true, "successful": true}
	failureTokens = map[string]bool{"failure": true, "aborted": true, "cancelled": true}
)

// ParseCallback turns a decrypted field string into a ParsedCallback.
// The first occurrence of a repeated key wins.
func ParseCallback(payload string) (*domain.ParsedCallback, error) {
	params := make(map[string]string)
	for _, pair := range strings.Split(payload, "&") {
		if pair == "" {
			continue
		}
		key, rawValue, _ := strings.Cut(pair, "=")
		if key == "" {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, &domain.MalformedCallbackError{Detail: "undecodable value for " + key}
		}
		if _, seen := params[key]; !seen {
			params[key] = value
		}
	}

	var missing []string
	for _, k := range requiredCallbackKeys {
		if strings.TrimSpace(params[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.MalformedCallbackError{MissingKeys: missing}
	}

	class, known := ClassifyStatus(params[domain.ParamOrderStatus])
	return &domain.ParsedCallback{
		OrderID:          params[domain.ParamOrderID],
		OrderStatus:      params[domain.ParamOrderStatus],
		CorrelationToken: strings.TrimSpace(params[domain.ParamCorrelationToken]),
		Class:            class,
		Unrecognized:     !known,
		Params:           params,
	}, nil
}

// ClassifyStatus maps an order_status token to SUCCESS or FAILURE.
// Unknown tokens are FAILURE; the second result is false for them.
func ClassifyStatus(status string) (domain.StatusClass, bool) {
	token := strings.ToLower(strings.TrimSpace(status))
	switch {
	case successTokens[token]:
		return domain.StatusSuccess, true
	case failureTokens[token]:
		return domain.StatusFailure, true
	default:
		return domain.StatusFailure, false
	}
}
