package ble

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRoundTrip(t *testing.T) {
	c := &Chunk{MessageID: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, ChunkIndex: 2, TotalChunks: 5, Payload: []byte("hello")}
	encoded := c.Encode()

	decoded, err := DecodeChunk(encoded)
	require.NoError(t, err)
	assert.Equal(t, c.MessageID, decoded.MessageID)
	assert.Equal(t, c.ChunkIndex, decoded.ChunkIndex)
	assert.Equal(t, c.TotalChunks, decoded.TotalChunks)
	assert.Equal(t, c.Payload, decoded.Payload)
}

func TestDecodeChunkRejectsShortInput(t *testing.T) {
	_, err := DecodeChunk([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeChunkRejectsIndexOutOfRange(t *testing.T) {
	c := &Chunk{MessageID: [8]byte{}, ChunkIndex: 5, TotalChunks: 5, Payload: []byte("x")}
	_, err := DecodeChunk(c.Encode())
	assert.Error(t, err)
}

func TestChunkerSplitEmptyPayloadYieldsOneChunk(t *testing.T) {
	chunker := NewChunker(64)
	chunks, err := chunker.Split(nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	decoded, err := DecodeChunk(chunks[0])
	require.NoError(t, err)
	assert.Equal(t, uint16(1), decoded.TotalChunks)
	assert.Empty(t, decoded.Payload)
}

func TestChunkerMtuExactlyHeaderPlusOneYieldsSingleBytePayloads(t *testing.T) {
	mtu := AttHeaderSize + ChunkHeaderSize + 1
	chunker := NewChunker(mtu)
	data := []byte("abc")

	chunks, err := chunker.Split(data)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for _, raw := range chunks {
		decoded, err := DecodeChunk(raw)
		require.NoError(t, err)
		assert.Len(t, decoded.Payload, 1)
	}
}

func TestChunkRoundTripWithShuffleViaReassembler(t *testing.T) {
	mtu := 64
	chunker := NewChunker(mtu)

	data := make([]byte, MaxPayloadForMTU(mtu)*3+7)
	for i := range data {
		data[i] = byte(i % 251)
	}

	chunks, err := chunker.Split(data)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	rand.Shuffle(len(chunks), func(i, j int) { chunks[i], chunks[j] = chunks[j], chunks[i] })

	reassembler := NewReassembler()
	defer reassembler.Stop()

	var got []byte
	for _, raw := range chunks {
		decoded, derr := DecodeChunk(raw)
		require.NoError(t, derr)

		full, done, ferr := reassembler.Feed(decoded)
		require.NoError(t, ferr)
		if done {
			got = full
		}
	}

	assert.Equal(t, data, got)
}
