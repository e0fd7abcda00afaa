package cryptox

import (
	"crypto/ecdh"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/vibevault/vibevault/internal/common"
)

// SyncHKDFInfo is the HKDF sharedInfo for session-key derivation. Both
// implementations of the sync protocol must agree on it byte for byte.
const SyncHKDFInfo = "vibevault-sync-v1"

// CompressedPointLen is the SEC1 compressed encoding size for P-256.
const CompressedPointLen = 33

// PairingKey is an ephemeral P-256 keypair generated fresh for every
// pairing attempt.
type PairingKey struct {
	priv *ecdh.PrivateKey
}

// NewPairingKey generates an ephemeral P-256 keypair.
func NewPairingKey() (*PairingKey, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ecdh keygen: %w", err)
	}
	return &PairingKey{priv: priv}, nil
}

// PublicKeyBytes returns the public key in compressed SEC1 form
// (33 bytes), the encoding exchanged on the Pairing characteristic.
func (k *PairingKey) PublicKeyBytes() []byte {
	raw := k.priv.PublicKey().Bytes() // uncompressed SEC1
	x, y := elliptic.Unmarshal(elliptic.P256(), raw)
	return elliptic.MarshalCompressed(elliptic.P256(), x, y)
}

// SharedSecret runs ECDH against a peer public key given in compressed
// SEC1 form and returns the raw shared secret.
func (k *PairingKey) SharedSecret(peerCompressed []byte) ([]byte, error) {
	peer, err := parseCompressed(peerCompressed)
	if err != nil {
		return nil, err
	}
	secret, err := k.priv.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}
	return secret, nil
}

func parseCompressed(b []byte) (*ecdh.PublicKey, error) {
	if len(b) != CompressedPointLen {
		return nil, common.NewValidationError("public_key", "wrong length")
	}
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), b)
	if x == nil {
		return nil, common.NewValidationError("public_key", "not a P-256 point")
	}
	raw := elliptic.Marshal(elliptic.P256(), x, y)
	pub, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, common.NewValidationError("public_key", "not a P-256 point")
	}
	return pub, nil
}

// DeriveSessionKey expands the ECDH shared secret into the 32-byte
// symmetric session key via HKDF-SHA256 with an empty salt.
func DeriveSessionKey(sharedSecret []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, sharedSecret, nil, []byte(SyncHKDFInfo))
	key := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return key, nil
}

// PairingMAC authenticates public-key bytes with the 6-digit pairing
// code: HMAC-SHA256 keyed by the code's UTF-8 bytes.
func PairingMAC(code string, publicKey []byte) []byte {
	mac := hmac.New(sha256.New, []byte(code))
	mac.Write(publicKey)
	return mac.Sum(nil)
}

// VerifyPairingMAC recomputes the MAC and compares in constant time.
func VerifyPairingMAC(code string, publicKey, peerMAC []byte) bool {
	return hmac.Equal(PairingMAC(code, publicKey), peerMAC)
}

// GeneratePairingCode returns a random 6-digit short authentication
// string, zero-padded.
func GeneratePairingCode() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("pairing code: %w", err)
	}
	n := binary.LittleEndian.Uint32(b[:]) % 1_000_000
	return fmt.Sprintf("%06d", n), nil
}
