// Package ble implements BLE chunking, reassembly, and the BLE
// transport/controller that drive a hardware GATT interface. The
// chunk/ack framing is adapted from the
// transport.go, which splits a string
// into headered fragments and ack's each one individually; this
// generalizes that to a fixed 16-byte header addressed by a random
// message id instead of a rolling sequence number, and reassembles
// out-of-order rather than assuming sender order.
package ble

import (
	"encoding/binary"

	"github.com/google/uuid"

	"nearclip/pkg/errs"
)

// ChunkHeaderSize is the fixed header prepended to every fragment:
// message_id[8] | chunk_index[2] | total_chunks[2] | payload_len[2] |
// flags[1] | reserved[1].
const ChunkHeaderSize = 16

// AttHeaderSize is the GATT ATT protocol overhead subtracted from the
// negotiated MTU before computing the maximum chunk payload.
const AttHeaderSize = 3

// Chunk is one fragment of a chunked message, with its header fields
// already parsed out.
type Chunk struct {
	MessageID   [8]byte
	ChunkIndex  uint16
	TotalChunks uint16
	Flags       byte
	Payload     []byte
}

// MaxPayloadForMTU returns the largest chunk payload that fits in a
// single write for the given negotiated MTU.
func MaxPayloadForMTU(mtu int) int {
	max := mtu - AttHeaderSize - ChunkHeaderSize
	if max < 0 {
		return 0
	}
	return max
}

// Encode serializes the chunk's header and payload into a single
// wire-ready byte slice.
func (c *Chunk) Encode() []byte {
	buf := make([]byte, ChunkHeaderSize+len(c.Payload))
	copy(buf[0:8], c.MessageID[:])
	binary.BigEndian.PutUint16(buf[8:10], c.ChunkIndex)
	binary.BigEndian.PutUint16(buf[10:12], c.TotalChunks)
	binary.BigEndian.PutUint16(buf[12:14], uint16(len(c.Payload)))
	buf[14] = c.Flags
	buf[15] = 0
	copy(buf[ChunkHeaderSize:], c.Payload)
	return buf
}

// DecodeChunk parses a single chunk off the wire, validating the
// header invariants: total_chunks > 0, chunk_index < total_chunks,
// and payload_len no larger than the bytes following the header.
func DecodeChunk(data []byte) (*Chunk, error) {
	if len(data) < ChunkHeaderSize {
		return nil, errs.New(errs.KindBluetooth, "ble_chunk_too_short")
	}

	c := &Chunk{}
	copy(c.MessageID[:], data[0:8])
	c.ChunkIndex = binary.BigEndian.Uint16(data[8:10])
	c.TotalChunks = binary.BigEndian.Uint16(data[10:12])
	payloadLen := binary.BigEndian.Uint16(data[12:14])
	c.Flags = data[14]

	if c.TotalChunks == 0 || c.ChunkIndex >= c.TotalChunks {
		return nil, errs.New(errs.KindBluetooth, "ble_chunk_index_out_of_range")
	}

	rest := data[ChunkHeaderSize:]
	if int(payloadLen) > len(rest) {
		return nil, errs.New(errs.KindBluetooth, "ble_chunk_payload_length_mismatch")
	}

	c.Payload = make([]byte, payloadLen)
	copy(c.Payload, rest[:payloadLen])
	return c, nil
}

// Chunker splits an outgoing message into chunks sized for a
// negotiated MTU, assigning one random message id to the whole set.
type Chunker struct {
	maxPayload int
}

// NewChunker builds a chunker for the given negotiated MTU.
func NewChunker(mtu int) *Chunker {
	return &Chunker{maxPayload: MaxPayloadForMTU(mtu)}
}

// Split breaks data into ordered, fully-headered chunks. An empty
// input still produces exactly one chunk carrying zero payload
// bytes, so the receiver sees a complete (if empty) message.
func (c *Chunker) Split(data []byte) ([][]byte, error) {
	if c.maxPayload <= 0 {
		return nil, errs.New(errs.KindBluetooth, "ble_mtu_too_small")
	}

	// A fresh uuid's first 8 bytes serve as the message id: still
	// effectively random, but sourced from the same id generator the
	// rest of this module uses instead of a second crypto/rand draw.
	id := uuid.New()
	var messageID [8]byte
	copy(messageID[:], id[:8])

	total := (len(data) + c.maxPayload - 1) / c.maxPayload
	if total == 0 {
		total = 1
	}
	if total > 0xFFFF {
		return nil, errs.ErrTooLarge
	}

	out := make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		start := i * c.maxPayload
		end := start + c.maxPayload
		if end > len(data) {
			end = len(data)
		}

		chunk := &Chunk{
			MessageID:   messageID,
			ChunkIndex:  uint16(i),
			TotalChunks: uint16(total),
			Payload:     data[start:end],
		}
		out = append(out, chunk.Encode())
	}
	return out, nil
}
