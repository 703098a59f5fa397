package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// backupCodeAlphabet excludes visually ambiguous characters (0/O, 1/I/L)
// since users type these codes by hand.
const backupCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// generateBackupCodes produces count plaintext codes of the given length and
// the corresponding BackupCode hash entries for persistence.
func generateBackupCodes(count, length int) ([]string, []BackupCode, error) {
	plain := make([]string, count)
	hashed := make([]BackupCode, count)
	for i := 0; i < count; i++ {
		code, err := randomBackupCode(length)
		if err != nil {
			return nil, nil, err
		}
		plain[i] = code
		hashed[i] = BackupCode{Hash: hashBackupCode(code)}
	}
	return plain, hashed, nil
}

// randomBackupCode draws length characters from the backup code alphabet
// using rejection sampling to keep the distribution uniform.
func randomBackupCode(length int) (string, error) {
	out := make([]byte, 0, length)
	buf := make([]byte, 1)
	max := byte(256 - (256 % len(backupCodeAlphabet)))
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate backup code: %w", err)
		}
		if buf[0] >= max {
			continue
		}
		out = append(out, backupCodeAlphabet[int(buf[0])%len(backupCodeAlphabet)])
	}
	return string(out), nil
}

// hashBackupCode returns the lowercase hex SHA-256 of a plaintext code.
func hashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// consumeBackupCode marks the unused code matching the plaintext as used at
// the given time. Returns false when no unused code matches; already-used
// codes never match again.
func consumeBackupCode(codes []BackupCode, plaintext string, usedAt time.Time) bool {
	want := hashBackupCode(plaintext)
	for i := range codes {
		if codes[i].Used {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(codes[i].Hash), []byte(want)) == 1 {
			codes[i].Used = true
			at := usedAt
			codes[i].UsedAt = &at
			return true
		}
	}
	return false
}
