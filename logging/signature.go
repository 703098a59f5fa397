package logging

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/wardenhq/warden/iso8601"
)

// MinKeyLength is the minimum HMAC key length, matching the SHA-256 output
// size.
const MinKeyLength = 32

// ErrKeyTooShort is returned when the signing key is under MinKeyLength.
var ErrKeyTooShort = errors.New("secret key must be at least 32 bytes")

// SignatureConfig holds the audit log signing key. KeyID travels with each
// signed entry so verifiers can pick the right key after a rotation.
type SignatureConfig struct {
	KeyID     string
	SecretKey []byte
}

// Validate rejects keys too short to sign with.
func (c *SignatureConfig) Validate() error {
	if len(c.SecretKey) < MinKeyLength {
		return ErrKeyTooShort
	}
	return nil
}

// SignedEntry is an audit entry together with the HMAC that makes
// after-the-fact edits detectable.
type SignedEntry struct {
	Entry     any    `json:"entry"`
	Signature string `json:"signature"` // hex HMAC-SHA256
	KeyID     string `json:"key_id"`
	Timestamp string `json:"timestamp"` // ISO8601, when signed
}

// signingPayload is what actually gets signed. The timestamp and key id are
// covered by the signature so neither can be rewritten without detection.
type signingPayload struct {
	Entry     any    `json:"entry"`
	Timestamp string `json:"timestamp"`
	KeyID     string `json:"key_id"`
}

// ComputeSignature returns the hex HMAC-SHA256 of the entry's JSON form.
func ComputeSignature(entry any, secretKey []byte) (string, error) {
	if len(secretKey) < MinKeyLength {
		return "", ErrKeyTooShort
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, secretKey)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature reports whether signature matches the entry under the
// given key. Comparison is constant time. A malformed signature verifies as
// false, not as an error.
func VerifySignature(entry any, signature string, secretKey []byte) (bool, error) {
	expected, err := ComputeSignature(entry, secretKey)
	if err != nil {
		return false, err
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false, nil
	}
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(provided, expectedBytes) == 1, nil
}

// NewSignedEntry signs entry under config at the current time.
func NewSignedEntry(entry any, config *SignatureConfig) (*SignedEntry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	timestamp := iso8601.Format(time.Now())
	signature, err := ComputeSignature(signingPayload{
		Entry:     entry,
		Timestamp: timestamp,
		KeyID:     config.KeyID,
	}, config.SecretKey)
	if err != nil {
		return nil, err
	}

	return &SignedEntry{
		Entry:     entry,
		Signature: signature,
		KeyID:     config.KeyID,
		Timestamp: timestamp,
	}, nil
}

// Verify checks the entry's signature against secretKey.
func (s *SignedEntry) Verify(secretKey []byte) (bool, error) {
	return VerifySignature(signingPayload{
		Entry:     s.Entry,
		Timestamp: s.Timestamp,
		KeyID:     s.KeyID,
	}, s.Signature, secretKey)
}
