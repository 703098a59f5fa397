// Package validate provides centralized input validation utilities for
// Warden's API boundaries. Structural errors (bad identifiers, malformed
// strings) are rejected here synchronously, before any evaluation runs.
//
// The package includes validators for user and server identifiers, free-text
// fields like purpose, and log sanitization to prevent log injection attacks.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Validation constants for input limits.
const (
	// MaxIDLength is the maximum length for user and server identifiers.
	MaxIDLength = 128

	// MaxPurposeLength is the maximum length for the free-text purpose field.
	MaxPurposeLength = 500

	// MaxCommandLength is the maximum length for a command string submitted
	// for command-filter evaluation.
	MaxCommandLength = 4096
)

// Validation errors for input validation failures.
var (
	// ErrIDEmpty indicates an identifier is empty.
	ErrIDEmpty = errors.New("identifier cannot be empty")

	// ErrIDTooLong indicates an identifier exceeds MaxIDLength.
	ErrIDTooLong = errors.New("identifier exceeds maximum length of 128 characters")

	// ErrIDInvalidChars indicates an identifier contains invalid characters.
	ErrIDInvalidChars = errors.New("identifier contains invalid characters; allowed: alphanumeric, hyphen, underscore, dot, at sign")

	// ErrIDControlChars indicates an identifier contains control characters.
	ErrIDControlChars = errors.New("identifier contains control characters")

	// ErrIDNonASCII indicates an identifier contains non-ASCII characters.
	ErrIDNonASCII = errors.New("identifier contains non-ASCII characters")

	// ErrStringTooLong indicates a string exceeds the maximum length.
	ErrStringTooLong = errors.New("string exceeds maximum length")

	// ErrStringNullByte indicates a string contains null bytes.
	ErrStringNullByte = errors.New("string contains null byte")

	// ErrStringControlChars indicates a string contains control characters.
	ErrStringControlChars = errors.New("string contains control characters")
)

// idRegex matches valid identifier characters: alphanumeric, hyphen,
// underscore, dot, at sign. This covers usernames, email-style IDs, and
// hostname-style server IDs like "web-01.prod".
var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@-]+$`)

// ValidateID validates a user or server identifier.
// It checks:
//   - Non-empty, max 128 characters
//   - Only allows: alphanumeric, hyphen, underscore, dot, at sign
//   - No control characters
//   - No non-ASCII characters (security: prevent homoglyph attacks)
//
// Returns nil if valid, or a descriptive error.
func ValidateID(id string) error {
	if id == "" {
		return ErrIDEmpty
	}

	if len(id) > MaxIDLength {
		return ErrIDTooLong
	}

	for _, r := range id {
		// Reject non-ASCII characters (homoglyph attack prevention)
		if r > 127 {
			return ErrIDNonASCII
		}

		// Reject control characters (ASCII 0-31 and 127)
		if r < 32 || r == 127 {
			return ErrIDControlChars
		}
	}

	if !idRegex.MatchString(id) {
		return ErrIDInvalidChars
	}

	return nil
}

// ValidateSafeString validates a general string for safe use.
// It checks:
//   - No null bytes (\x00)
//   - No control characters (ASCII 0-31 except \t\n\r)
//   - Within maxLen limit
//
// Returns nil if valid, or a descriptive error.
func ValidateSafeString(s string, maxLen int) error {
	if len(s) > maxLen {
		return fmt.Errorf("%w: %d > %d", ErrStringTooLong, len(s), maxLen)
	}

	if strings.ContainsRune(s, '\x00') {
		return ErrStringNullByte
	}

	for _, r := range s {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return ErrStringControlChars
		}
	}

	return nil
}

// ValidatePurpose validates the free-text purpose field of an access request.
func ValidatePurpose(purpose string) error {
	if strings.TrimSpace(purpose) == "" {
		return errors.New("purpose cannot be empty")
	}
	return ValidateSafeString(purpose, MaxPurposeLength)
}

// SanitizeForLog sanitizes a string for safe logging.
// It replaces control characters with unicode escapes, truncates to maxLen,
// and ensures the result is safe for JSON/structured logging.
//
// Use this when logging potentially malicious input to prevent:
//   - Log injection (newline injection for log splitting)
//   - JSON injection in structured logs
//   - ANSI escape sequence injection
func SanitizeForLog(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	var result strings.Builder
	result.Grow(minInt(len(s), maxLen))

	runeCount := 0
	for _, r := range s {
		if runeCount >= maxLen {
			break
		}

		switch {
		case r < 32 || r == 127:
			// Replace control characters with unicode escapes
			escape := fmt.Sprintf("\\u%04x", r)
			if runeCount+len(escape) > maxLen {
				return result.String()
			}
			result.WriteString(escape)
			runeCount += len(escape)
		case r == '\\':
			// Escape backslashes to prevent escape sequence injection
			if runeCount+2 > maxLen {
				return result.String()
			}
			result.WriteString("\\\\")
			runeCount += 2
		case r == '"':
			// Escape quotes for JSON safety
			if runeCount+2 > maxLen {
				return result.String()
			}
			result.WriteString("\\\"")
			runeCount += 2
		case r > 127 && !unicode.IsPrint(r):
			escape := fmt.Sprintf("\\u%04x", r)
			if runeCount+len(escape) > maxLen {
				return result.String()
			}
			result.WriteString(escape)
			runeCount += len(escape)
		default:
			result.WriteRune(r)
			runeCount++
		}
	}

	return result.String()
}

// minInt returns the smaller of a or b.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
