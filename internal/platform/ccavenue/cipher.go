package ccavenue

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"unicode/utf8"

	"github.com/gcmtshop/cca-payments/internal/domain"
)

// WorkingKeyLength is the length of the merchant working key issued by the gateway.
const WorkingKeyLength = 32

// zeroIV is the gateway's documented IV. It is public and never randomized.
var zeroIV = make([]byte, aes.BlockSize)

// Secret is the merchant working key. It never prints.
type Secret string

func (Secret) String() string   { return "[REDACTED]" }
func (Secret) GoString() string { return "[REDACTED]" }

// MarshalText keeps the key out of JSON and text encodings.
func (Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Format covers %x, %q and the rest of the verbs String does not.
func (s Secret) Format(f fmt.State, _ rune) { _, _ = f.Write([]byte(s.String())) }

func (s Secret) valid() bool { return len(s) == WorkingKeyLength }

// deriveKey is the only key derivation in the service: the raw MD5 digest of
// the working key. Encrypt and Decrypt both call it.
func deriveKey(s Secret) []byte {
	sum := md5.Sum([]byte(s))
	return sum[:]
}

func newCipher(s Secret) (cipher.Block, error) {
	return aes.NewCipher(deriveKey(s))
}

// Encrypt seals a payload and returns it as lower-case hex.
func Encrypt(payload string, key Secret) (string, error) {
	if !key.valid() {
		return "", domain.ErrInvalidWorkingKey
	}
	block, err := newCipher(key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(payload), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(out, padded)
	return hex.EncodeToString(out), nil
}

// Decrypt opens a hex envelope produced by Encrypt or by the gateway.
// All failures are *domain.DecryptionError.
func Decrypt(envelope string, key Secret) (string, error) {
	if !key.valid() {
		return "", &domain.DecryptionError{Reason: domain.ReasonKeyLength}
	}
	raw, err := hex.DecodeString(envelope)
	if err != nil || len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", &domain.DecryptionError{Reason: domain.ReasonMalformedHex}
	}
	block, err := newCipher(key)
	if err != nil {
		return "", &domain.DecryptionError{Reason: domain.ReasonKeyLength}
	}

	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(plain, raw)

	unpadded, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok {
		return "", &domain.DecryptionError{Reason: domain.ReasonBadPadding}
	}
	if !isText(unpadded) {
		return "", &domain.DecryptionError{Reason: domain.ReasonBadPlaintext}
	}
	return string(unpadded), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// pkcs7Unpad checks the padding without branching on which byte is wrong.
func pkcs7Unpad(b []byte, blockSize int) ([]byte, bool) {
	n := len(b)
	if n == 0 || n%blockSize != 0 {
		return nil, false
	}
	pad := int(b[n-1])
	good := subtle.ConstantTimeLessOrEq(1, pad) & subtle.ConstantTimeLessOrEq(pad, blockSize)
	for i := 0; i < blockSize; i++ {
		inPad := subtle.ConstantTimeLessOrEq(i+1, pad)
		match := subtle.ConstantTimeByteEq(b[n-1-i], byte(pad))
		good &= subtle.ConstantTimeSelect(inPad, match, 1)
	}
	if good != 1 {
		return nil, false
	}
	return b[:n-pad], true
}

// isText rejects plaintext that cannot be a gateway field string.
func isText(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, c := range b {
		if c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}
