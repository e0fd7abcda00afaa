package totp

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibevault/vibevault/internal/common"
)

const testSecret = "JBSWY3DPEHPK3PXP"

// rfcSecret is base32 of the ASCII key "12345678901234567890" from the
// RFC 6238 test vectors.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerate_RFCVector(t *testing.T) {
	// RFC 6238 test time 59s falls in the second step (T=1); the
	// 8-digit vector is 94287082, truncated here to six digits
	tok, err := Generate(rfcSecret, time.Unix(59, 0))
	require.NoError(t, err)
	assert.Equal(t, "287082", tok.Code)
	assert.Equal(t, int64(1), tok.SecondsRemaining)

	tok, err = Generate(rfcSecret, time.Unix(1_111_111_109, 0))
	require.NoError(t, err)
	assert.Equal(t, "081804", tok.Code)
}

func TestGenerate_KnownSecretVector(t *testing.T) {
	tok, err := Generate(testSecret, time.Unix(59, 0))
	require.NoError(t, err)
	assert.Equal(t, "996554", tok.Code)
	assert.Equal(t, int64(1), tok.SecondsRemaining)

	tok, err = Generate(testSecret, time.Unix(1_234_567_890, 0))
	require.NoError(t, err)
	assert.Equal(t, "742275", tok.Code)
}

func TestGenerate_Deterministic(t *testing.T) {
	at := time.Unix(1_234_567_890, 0)

	tok1, err := Generate(testSecret, at)
	require.NoError(t, err)
	tok2, err := Generate(testSecret, at)
	require.NoError(t, err)

	assert.Equal(t, tok1.Code, tok2.Code)
	assert.Len(t, tok1.Code, Digits)
}

func TestGenerate_SecondsRemaining(t *testing.T) {
	for _, unix := range []int64{0, 1, 29, 30, 59, 1_234_567_890} {
		tok, err := Generate(testSecret, time.Unix(unix, 0))
		require.NoError(t, err)
		elapsed := unix % 30
		assert.Equal(t, int64(30), tok.SecondsRemaining+elapsed, "unix=%d", unix)
	}
}

func TestGenerate_Base32Tolerance(t *testing.T) {
	at := time.Unix(59, 0)
	want, err := Generate(testSecret, at)
	require.NoError(t, err)

	for _, variant := range []string{
		"jbswy3dpehpk3pxp",
		"JBSWY3DPEHPK3PXP===",
		"JBSW Y3DP EHPK 3PXP",
	} {
		tok, err := Generate(variant, at)
		require.NoError(t, err, variant)
		assert.Equal(t, want.Code, tok.Code, variant)
	}
}

func TestGenerate_InvalidSecret(t *testing.T) {
	for _, secret := range []string{
		"",
		"   ",
		"JBSWY3DP1", // '1' is outside the base32 alphabet
		"not-base32!",
		"JBSWY3DP0EHPK", // '0' likewise
	} {
		_, err := Generate(secret, time.Unix(0, 0))
		var ve *common.ValidationError
		assert.True(t, errors.As(err, &ve), "want ValidationError for %q, got %v", secret, err)
	}
}

func TestGenerate_ZeroPadded(t *testing.T) {
	// scan a range of steps; every code must be exactly six digits
	for unix := int64(0); unix < 100*30; unix += 30 {
		tok, err := Generate(testSecret, time.Unix(unix, 0))
		require.NoError(t, err)
		require.Len(t, tok.Code, Digits)
	}
}
