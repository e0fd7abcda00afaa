// Package syncx implements the peer-to-peer sync protocol: chunked
// framing over the DataTransfer characteristic, the envelope/bundle
// wire codec, the short-authentication-string pairing dance, the
// last-writer-wins merge, and the state machine driving both roles.
package syncx

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/vibevault/vibevault/internal/common"
)

const (
	// MaxChunkData is the largest chunk payload; header plus payload
	// fits the 501-byte ATT write.
	MaxChunkData = 493

	// chunkHeaderLen is index(u16) + total(u16) + crc32(u32).
	chunkHeaderLen = 8
)

// SyncControl opcodes carried on the SyncControl characteristic.
const (
	OpStart    byte = 0x01
	OpAck      byte = 0x02
	OpAbort    byte = 0x03
	OpComplete byte = 0x04
)

// Chunk is one frame of a logical message on the DataTransfer
// characteristic.
type Chunk struct {
	Index uint16
	Total uint16
	CRC   uint32
	Data  []byte
}

// Checksum is the frame checksum: CRC-32 with the IEEE polynomial,
// little-endian on the wire.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Encode serializes the chunk:
// [index le(2)] [total le(2)] [crc32 le(4)] [payload...].
func (c *Chunk) Encode() []byte {
	buf := make([]byte, chunkHeaderLen+len(c.Data))
	binary.LittleEndian.PutUint16(buf[0:2], c.Index)
	binary.LittleEndian.PutUint16(buf[2:4], c.Total)
	binary.LittleEndian.PutUint32(buf[4:8], c.CRC)
	copy(buf[chunkHeaderLen:], c.Data)
	return buf
}

// DecodeChunk parses and CRC-checks a frame. Any mismatch is a framing
// error that aborts the current message.
func DecodeChunk(b []byte) (*Chunk, error) {
	if len(b) < chunkHeaderLen {
		return nil, common.NewSyncError(common.SyncFramingError, fmt.Errorf("chunk too small: %d bytes", len(b)))
	}

	c := &Chunk{
		Index: binary.LittleEndian.Uint16(b[0:2]),
		Total: binary.LittleEndian.Uint16(b[2:4]),
		CRC:   binary.LittleEndian.Uint32(b[4:8]),
		Data:  append([]byte(nil), b[chunkHeaderLen:]...),
	}

	if got := Checksum(c.Data); got != c.CRC {
		return nil, common.NewSyncError(common.SyncFramingError,
			fmt.Errorf("crc mismatch on chunk %d: header %08x, computed %08x", c.Index, c.CRC, got))
	}
	if c.Total == 0 {
		return nil, common.NewSyncError(common.SyncFramingError, fmt.Errorf("chunk total is zero"))
	}
	return c, nil
}

// Split cuts data into wire chunks. Empty data still produces one
// (empty) chunk so total stays ≥ 1.
func Split(data []byte) []Chunk {
	total := (len(data) + MaxChunkData - 1) / MaxChunkData
	if total == 0 {
		total = 1
	}

	chunks := make([]Chunk, 0, total)
	for i := 0; i < total; i++ {
		lo := i * MaxChunkData
		hi := lo + MaxChunkData
		if hi > len(data) {
			hi = len(data)
		}
		payload := data[lo:hi]
		chunks = append(chunks, Chunk{
			Index: uint16(i),
			Total: uint16(total),
			CRC:   Checksum(payload),
			Data:  append([]byte(nil), payload...),
		})
	}
	return chunks
}

// Reassembler collects chunks of one message, tolerating duplicates and
// arbitrary order.
type Reassembler struct {
	total    uint16
	slots    [][]byte
	filled   []bool
	received int
}

// NewReassembler allocates the slot array for a message of total chunks.
func NewReassembler(total uint16) (*Reassembler, error) {
	if total == 0 {
		return nil, common.NewSyncError(common.SyncFramingError, fmt.Errorf("message with zero chunks"))
	}
	return &Reassembler{
		total:  total,
		slots:  make([][]byte, total),
		filled: make([]bool, total),
	}, nil
}

// Add files a chunk into its slot. Duplicates at the same index are
// idempotent; a total or index mismatch aborts the message. Returns
// true when every slot is filled.
func (r *Reassembler) Add(c *Chunk) (bool, error) {
	if c.Total != r.total {
		return false, common.NewSyncError(common.SyncFramingError,
			fmt.Errorf("chunk total mismatch: message %d, chunk %d", r.total, c.Total))
	}
	if c.Index >= r.total {
		return false, common.NewSyncError(common.SyncFramingError,
			fmt.Errorf("chunk index %d out of range (total %d)", c.Index, r.total))
	}

	if !r.filled[c.Index] {
		r.filled[c.Index] = true
		r.received++
	}
	r.slots[c.Index] = c.Data

	return r.Complete(), nil
}

// Complete reports whether every slot is filled.
func (r *Reassembler) Complete() bool { return r.received == int(r.total) }

// Progress returns (received, total).
func (r *Reassembler) Progress() (int, int) { return r.received, int(r.total) }

// Assemble concatenates the payloads in index order. Fails if any slot
// is still empty.
func (r *Reassembler) Assemble() ([]byte, error) {
	if !r.Complete() {
		return nil, common.NewSyncError(common.SyncFramingError,
			fmt.Errorf("incomplete message: %d/%d chunks", r.received, r.total))
	}

	size := 0
	for _, s := range r.slots {
		size += len(s)
	}
	out := make([]byte, 0, size)
	for _, s := range r.slots {
		out = append(out, s...)
	}
	return out, nil
}
