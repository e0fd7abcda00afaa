package syncx

import (
	"fmt"

	"github.com/vibevault/vibevault/internal/common"
	"github.com/vibevault/vibevault/internal/cryptox"
)

// pairingMACLen is the HMAC-SHA256 length appended to the central's
// public key on the Pairing characteristic.
const pairingMACLen = 32

// PairingSession holds one side's ephemeral keypair for the
// short-authentication-string dance. The peripheral additionally owns
// the displayed 6-digit code.
type PairingSession struct {
	key *cryptox.PairingKey

	// Code is the SAS. Set on the peripheral at creation; on the
	// central it is whatever the user typed.
	Code string
}

// NewPeripheralPairing creates the advertiser's session: an ephemeral
// P-256 keypair plus the code to display.
func NewPeripheralPairing() (*PairingSession, error) {
	key, err := cryptox.NewPairingKey()
	if err != nil {
		return nil, err
	}
	code, err := cryptox.GeneratePairingCode()
	if err != nil {
		return nil, err
	}
	return &PairingSession{key: key, Code: code}, nil
}

// NewCentralPairing creates the scanner's session with the user-entered
// code.
func NewCentralPairing(code string) (*PairingSession, error) {
	key, err := cryptox.NewPairingKey()
	if err != nil {
		return nil, err
	}
	return &PairingSession{key: key, Code: code}, nil
}

// PublicKeyBytes is the compressed public key this side exposes.
func (s *PairingSession) PublicKeyBytes() []byte {
	return s.key.PublicKeyBytes()
}

// CentralPayload builds what the central writes to the Pairing
// characteristic: its public key followed by HMAC(code, public key).
func (s *PairingSession) CentralPayload() []byte {
	pub := s.key.PublicKeyBytes()
	return append(pub, cryptox.PairingMAC(s.Code, pub)...)
}

// CompletePeripheral verifies the central's payload against the
// displayed code and derives the session key. A MAC mismatch means the
// codes differ (or a key was substituted) and fails with CryptoMismatch.
// Returns the session key and the peer's public key bytes.
func (s *PairingSession) CompletePeripheral(payload []byte) (sessionKey, peerPublicKey []byte, err error) {
	if len(payload) != cryptox.CompressedPointLen+pairingMACLen {
		return nil, nil, common.NewSyncError(common.SyncCryptoMismatch,
			fmt.Errorf("pairing payload must be %d bytes, got %d",
				cryptox.CompressedPointLen+pairingMACLen, len(payload)))
	}

	peerPub := payload[:cryptox.CompressedPointLen]
	mac := payload[cryptox.CompressedPointLen:]

	if !cryptox.VerifyPairingMAC(s.Code, peerPub, mac) {
		return nil, nil, common.NewSyncError(common.SyncCryptoMismatch,
			fmt.Errorf("pairing code mismatch"))
	}

	key, err := s.derive(peerPub)
	if err != nil {
		return nil, nil, err
	}
	return key, append([]byte(nil), peerPub...), nil
}

// CompleteCentral derives the session key from the peripheral's public
// key (read from the Pairing characteristic).
func (s *PairingSession) CompleteCentral(peerPublicKey []byte) ([]byte, error) {
	return s.derive(peerPublicKey)
}

func (s *PairingSession) derive(peerPub []byte) ([]byte, error) {
	shared, err := s.key.SharedSecret(peerPub)
	if err != nil {
		return nil, common.NewSyncError(common.SyncCryptoMismatch, err)
	}
	defer common.WipeByteArray(shared)

	key, err := cryptox.DeriveSessionKey(shared)
	if err != nil {
		return nil, common.NewSyncError(common.SyncCryptoMismatch, err)
	}
	return key, nil
}
