package ccavenue

import (
	"github.com/gcmtshop/cca-payments/internal/domain"
)

// Adapter implements domain.PaymentGateway for the hosted checkout gateway.
// The working key is injected once; nothing here reads the environment.
type Adapter struct {
	workingKey Secret
	accessCode string
}

// NewAdapter creates a new gateway adapter.
func NewAdapter(workingKey Secret, accessCode string) (*Adapter, error) {
	if !workingKey.valid() {
		return nil, domain.ErrInvalidWorkingKey
	}
	return &Adapter{
		workingKey: workingKey,
		accessCode: accessCode,
	}, nil
}

// ValidateOrder reports missing required fields and a bad amount.
func (a *Adapter) ValidateOrder(order domain.OrderRequest) error {
	return ValidateOrder(order)
}

// EncryptRequest builds the request payload and encrypts it.
func (a *Adapter) EncryptRequest(order domain.OrderRequest) (string, error) {
	payload, err := BuildPayload(order)
	if err != nil {
		return "", err
	}
	return Encrypt(payload, a.workingKey)
}

// DecodeCallback decrypts encResp and parses the resulting field string.
func (a *Adapter) DecodeCallback(encResp string) (*domain.ParsedCallback, error) {
	payload, err := Decrypt(encResp, a.workingKey)
	if err != nil {
		return nil, err
	}
	return ParseCallback(payload)
}

// AccessCode returns the merchant access code.
func (a *Adapter) AccessCode() string {
	return a.accessCode
}
