package ccavenue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcmtshop/cca-payments/internal/domain"
)

func TestNewAdapter_RejectsShortKey(t *testing.T) {
	_, err := NewAdapter(Secret("abc"), "AC1")
	assert.ErrorIs(t, err, domain.ErrInvalidWorkingKey)
}

func TestAdapter_RequestRoundTrip(t *testing.T) {
	a, err := NewAdapter(testKey, "AVXX01")
	require.NoError(t, err)
	assert.Equal(t, "AVXX01", a.AccessCode())

	env, err := a.EncryptRequest(sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, samplePayloadCipher, env)

	plain, err := Decrypt(env, testKey)
	require.NoError(t, err)
	assert.Equal(t, samplePayload, plain)
}

func TestAdapter_EncryptRequestValidates(t *testing.T) {
	a, err := NewAdapter(testKey, "AVXX01")
	require.NoError(t, err)

	_, err = a.EncryptRequest(domain.OrderRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestAdapter_DecodeCallback(t *testing.T) {
	a, err := NewAdapter(testKey, "AVXX01")
	require.NoError(t, err)

	cb, err := a.DecodeCallback(successCallbackCipher)
	require.NoError(t, err)
	assert.Equal(t, "77", cb.CorrelationToken)
	assert.Equal(t, domain.StatusSuccess, cb.Class)

	// A decryptable payload missing keys is malformed, not a decryption failure.
	env, err := Encrypt("order_id=O100", testKey)
	require.NoError(t, err)
	_, err = a.DecodeCallback(env)
	assert.ErrorIs(t, err, domain.ErrMalformedCallback)

	_, err = a.DecodeCallback("nothex")
	assert.ErrorIs(t, err, domain.ErrDecryptionFailed)
}
