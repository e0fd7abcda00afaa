// Package cryptox implements the cryptographic primitives of the vault:
// Argon2id password hashing and key derivation, AES-256-GCM encryption
// of entry payloads, and the P-256/HKDF pairing primitives used by sync.
//
// The Argon2id parameters below are fixed constants, not tunables:
// HashPassword writes them into the PHC string and DeriveKey uses them
// directly. Sync never moves Argon2id output between devices; entries
// travel re-encrypted under a per-sync session key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/vibevault/vibevault/internal/common"
)

// Argon2id parameters shared by password hashing and key derivation.
const (
	ArgonMemory  uint32 = 19456 // KiB
	ArgonTime    uint32 = 2
	ArgonThreads uint8  = 1
	KeyLen       uint32 = 32

	NonceLen = 12
	TagLen   = 16
)

// HashPassword hashes password over the given auth salt and returns the
// standard PHC string for storage:
//
//	$argon2id$v=19$m=19456,t=2,p=1$<b64 salt>$<b64 hash>
func HashPassword(password []byte, salt []byte) string {
	hash := argon2.IDKey(password, salt, ArgonTime, ArgonMemory, ArgonThreads, KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, ArgonMemory, ArgonTime, ArgonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

// VerifyPassword re-parses the stored PHC string, recomputes the hash
// with the embedded salt and parameters, and compares in constant time.
func VerifyPassword(password []byte, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, common.NewValidationError("password_hash", "not an argon2id PHC string")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, common.NewValidationError("password_hash", "malformed version")
	}
	if version != argon2.Version {
		return false, common.NewValidationError("password_hash", "unsupported argon2 version")
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false, common.NewValidationError("password_hash", "malformed parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, common.NewValidationError("password_hash", "malformed salt")
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, common.NewValidationError("password_hash", "malformed hash")
	}

	got := argon2.IDKey(password, salt, t, m, p, uint32(len(want)))
	defer common.WipeByteArray(got)

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// DeriveKey derives the 32-byte AES-256 data key from the master
// password and the per-user encryption salt. The salt is independent of
// the auth salt, so the stored password hash can never yield this key.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, ArgonTime, ArgonMemory, ArgonThreads, KeyLen)
}

// Encrypt seals plaintext with AES-256-GCM under a fresh random 12-byte
// nonce. The 16-byte authentication tag is appended to the ciphertext;
// the nonce is returned separately and must be stored alongside.
func Encrypt(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("cipher init: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("gcm init: %w", err)
	}

	nonce = make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("nonce: %w", err)
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt opens an AES-256-GCM ciphertext produced by Encrypt. Any tag
// mismatch fails closed with common.ErrDecrypt.
func Decrypt(key, ciphertext, nonce []byte) ([]byte, error) {
	if len(nonce) != NonceLen {
		return nil, common.ErrDecrypt
	}
	if len(ciphertext) < TagLen {
		return nil, common.ErrDecrypt
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecrypt
	}
	return plaintext, nil
}
