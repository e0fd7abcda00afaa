package syncx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/vibevault/vibevault/internal/common"
	"github.com/vibevault/vibevault/internal/cryptox"
)

// Envelope is the per-entry record transmitted during sync: versioned
// metadata plus session-key ciphertext of the entry payload. Layout, all
// integers little-endian:
//
//	entry_uuid (16) || profile_id (u64) || sync_version (u64) ||
//	updated_at (u16 len + bytes) || label (u16 len + bytes) ||
//	is_tombstone (u8) || nonce (12) || ct_len (u32) || ciphertext+tag
type Envelope struct {
	EntryUUID   uuid.UUID
	ProfileID   uint64
	SyncVersion uint64
	UpdatedAt   string
	Label       string
	Tombstone   bool
	Nonce       []byte
	Ciphertext  []byte
}

func framingErr(format string, args ...any) error {
	return common.NewSyncError(common.SyncFramingError, fmt.Errorf(format, args...))
}

func writeLenPrefixed(buf *bytes.Buffer, s string) error {
	if len(s) > 0xFFFF {
		return framingErr("string field too long: %d bytes", len(s))
	}
	var l [2]byte
	binary.LittleEndian.PutUint16(l[:], uint16(len(s)))
	buf.Write(l[:])
	buf.WriteString(s)
	return nil
}

func readLenPrefixed(r *bytes.Reader) (string, error) {
	var l [2]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return "", framingErr("truncated length prefix")
	}
	n := binary.LittleEndian.Uint16(l[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", framingErr("truncated string field")
	}
	return string(b), nil
}

// encode appends the envelope's wire form to buf.
func (e *Envelope) encode(buf *bytes.Buffer) error {
	if len(e.Nonce) != cryptox.NonceLen {
		return framingErr("envelope nonce must be %d bytes, got %d", cryptox.NonceLen, len(e.Nonce))
	}

	buf.Write(e.EntryUUID[:])

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], e.ProfileID)
	buf.Write(u64[:])
	binary.LittleEndian.PutUint64(u64[:], e.SyncVersion)
	buf.Write(u64[:])

	if err := writeLenPrefixed(buf, e.UpdatedAt); err != nil {
		return err
	}
	if err := writeLenPrefixed(buf, e.Label); err != nil {
		return err
	}

	if e.Tombstone {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	buf.Write(e.Nonce)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(e.Ciphertext)))
	buf.Write(u32[:])
	buf.Write(e.Ciphertext)
	return nil
}

// decodeEnvelope reads one envelope from r.
func decodeEnvelope(r *bytes.Reader) (*Envelope, error) {
	e := &Envelope{}

	if _, err := io.ReadFull(r, e.EntryUUID[:]); err != nil {
		return nil, framingErr("truncated entry uuid")
	}

	var u64 [8]byte
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return nil, framingErr("truncated profile id")
	}
	e.ProfileID = binary.LittleEndian.Uint64(u64[:])

	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return nil, framingErr("truncated sync version")
	}
	e.SyncVersion = binary.LittleEndian.Uint64(u64[:])

	var err error
	if e.UpdatedAt, err = readLenPrefixed(r); err != nil {
		return nil, err
	}
	if e.Label, err = readLenPrefixed(r); err != nil {
		return nil, err
	}

	ts, err := r.ReadByte()
	if err != nil {
		return nil, framingErr("truncated tombstone flag")
	}
	switch ts {
	case 0:
		e.Tombstone = false
	case 1:
		e.Tombstone = true
	default:
		return nil, framingErr("invalid tombstone flag 0x%02x", ts)
	}

	e.Nonce = make([]byte, cryptox.NonceLen)
	if _, err := io.ReadFull(r, e.Nonce); err != nil {
		return nil, framingErr("truncated nonce")
	}

	var u32 [4]byte
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return nil, framingErr("truncated ciphertext length")
	}
	ctLen := binary.LittleEndian.Uint32(u32[:])
	if int64(ctLen) > int64(r.Len()) {
		return nil, framingErr("ciphertext length %d exceeds remaining %d", ctLen, r.Len())
	}

	e.Ciphertext = make([]byte, ctLen)
	if _, err := io.ReadFull(r, e.Ciphertext); err != nil {
		return nil, framingErr("truncated ciphertext")
	}
	return e, nil
}

// EncodeBundle serializes a bundle: entry_count (u32 LE) followed by
// each envelope.
func EncodeBundle(envelopes []Envelope) ([]byte, error) {
	buf := &bytes.Buffer{}

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(envelopes)))
	buf.Write(u32[:])

	for i := range envelopes {
		if err := envelopes[i].encode(buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeBundle parses a bundle. The byte count must match exactly;
// trailing garbage is a framing error.
func DecodeBundle(b []byte) ([]Envelope, error) {
	r := bytes.NewReader(b)

	var u32 [4]byte
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return nil, framingErr("truncated bundle header")
	}
	count := binary.LittleEndian.Uint32(u32[:])

	envelopes := make([]Envelope, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := decodeEnvelope(r)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, *e)
	}

	if r.Len() != 0 {
		return nil, framingErr("%d trailing bytes after bundle", r.Len())
	}
	return envelopes, nil
}
