// Package totp generates RFC 6238 time-based one-time passwords:
// HMAC-SHA1 over the 30-second counter, six digits.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/vibevault/vibevault/internal/common"
)

const (
	// Step is the TOTP time step.
	Step = 30 * time.Second
	// Digits is the output code length.
	Digits = 6
)

// Token is a generated code with its remaining lifetime.
type Token struct {
	Code             string
	SecondsRemaining int64
}

// decodeSecret normalizes and decodes a base32 secret. Whitespace and
// '=' padding are tolerated and case is folded; any remaining character
// outside A–Z / 2–7 is a validation failure.
func decodeSecret(secret string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, secret)
	cleaned = strings.ToUpper(cleaned)
	cleaned = strings.TrimRight(cleaned, "=")

	if cleaned == "" {
		return nil, common.NewValidationError("totp_secret", "empty secret")
	}
	for _, r := range cleaned {
		if (r < 'A' || r > 'Z') && (r < '2' || r > '7') {
			return nil, common.NewValidationError("totp_secret", "invalid base32 character")
		}
	}

	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(cleaned)
	if err != nil {
		return nil, common.NewValidationError("totp_secret", "invalid base32 secret")
	}
	return decoded, nil
}

// Generate computes the code for the given instant.
func Generate(secret string, at time.Time) (*Token, error) {
	secretBytes, err := decodeSecret(secret)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(secretBytes)

	step := int64(Step / time.Second)
	unix := at.Unix()
	counter := uint64(unix / step)
	remaining := step - unix%step

	return &Token{
		Code:             computeCode(secretBytes, counter),
		SecondsRemaining: remaining,
	}, nil
}

// computeCode is the RFC 4226 dynamic truncation over the big-endian
// 8-byte counter.
func computeCode(secret []byte, counter uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(sha1.New, secret)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0F
	trunc := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7FFFFFFF
	code := trunc % 1_000_000
	return fmt.Sprintf("%0*d", Digits, code)
}
