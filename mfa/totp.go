package mfa

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// secretBytes is the raw entropy of a generated TOTP secret (160 bits,
// the RFC 4226 recommended minimum).
const secretBytes = 20

// NewSecret generates a new Base32-encoded TOTP shared secret.
func NewSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// ProvisioningURL builds the otpauth:// URL that authenticator apps consume
// as a QR code. The label is issuer:userID per the key URI convention.
func ProvisioningURL(secret, userID string, cfg Config) string {
	cfg = cfg.withDefaults()

	q := url.Values{}
	q.Set("secret", secret)
	q.Set("issuer", cfg.Issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", fmt.Sprintf("%d", cfg.Digits))
	q.Set("period", fmt.Sprintf("%d", int(cfg.Period.Seconds())))

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + cfg.Issuer + ":" + userID,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// verifyTOTP checks code against the secret at time t, accepting the current
// time step and cfg.Skew adjacent steps in both directions for clock drift.
func verifyTOTP(secret, code string, t time.Time, cfg Config) bool {
	cfg = cfg.withDefaults()
	period := uint64(cfg.Period.Seconds())
	counter := uint64(t.Unix()) / period

	for i := -cfg.Skew; i <= cfg.Skew; i++ {
		adjusted := counter
		if i < 0 {
			// Near the epoch the counter can be smaller than the skew;
			// skip steps that would wrap below zero.
			if uint64(-i) > counter {
				continue
			}
			adjusted = counter - uint64(-i)
		} else {
			adjusted = counter + uint64(i)
		}
		expected := generateTOTP(secret, adjusted, cfg.Digits)
		if expected != "" && subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}
	return false
}

// generateTOTP generates a TOTP code using HMAC-SHA1 per RFC 6238.
// secret is the Base32-encoded shared secret.
// counter is the time counter (current unix time / period).
// digits is the number of digits in the OTP.
func generateTOTP(secret string, counter uint64, digits int) string {
	// Decode Base32 secret (handle padding)
	secret = strings.ToUpper(strings.TrimSpace(secret))
	secret = strings.TrimRight(secret, "=")
	if mod := len(secret) % 8; mod != 0 {
		secret += strings.Repeat("=", 8-mod)
	}

	key, err := base32.StdEncoding.DecodeString(secret)
	if err != nil {
		return "" // Invalid secret
	}

	// Convert counter to 8-byte big-endian
	counterBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(counterBytes, counter)

	// Compute HMAC-SHA1
	h := hmac.New(sha1.New, key)
	h.Write(counterBytes)
	hash := h.Sum(nil)

	// Dynamic truncation per RFC 4226
	offset := hash[len(hash)-1] & 0x0f
	code := binary.BigEndian.Uint32(hash[offset:offset+4]) & 0x7fffffff

	// Format with leading zeros
	divisor := uint32(1)
	for i := 0; i < digits; i++ {
		divisor *= 10
	}

	return fmt.Sprintf("%0*d", digits, code%divisor)
}

// GenerateTOTPAtTime generates a TOTP code for a specific time.
// This is exported for testing purposes.
func GenerateTOTPAtTime(secret string, t time.Time, period time.Duration, digits int) string {
	if period == 0 {
		period = DefaultPeriod
	}
	if digits == 0 {
		digits = DefaultDigits
	}
	counter := uint64(t.Unix()) / uint64(period.Seconds())
	return generateTOTP(secret, counter, digits)
}
