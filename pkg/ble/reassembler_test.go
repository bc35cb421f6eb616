package ble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeChunks(t *testing.T, messageID [8]byte, parts ...string) []*Chunk {
	t.Helper()
	chunks := make([]*Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = &Chunk{
			MessageID:   messageID,
			ChunkIndex:  uint16(i),
			TotalChunks: uint16(len(parts)),
			Payload:     []byte(p),
		}
	}
	return chunks
}

func TestReassemblerCompletesOnAllChunks(t *testing.T) {
	r := NewReassembler()
	defer r.Stop()

	chunks := makeChunks(t, [8]byte{1}, "foo", "bar", "baz")

	full, done, err := r.Feed(chunks[0])
	require.NoError(t, err)
	assert.False(t, done)
	assert.Nil(t, full)

	_, done, err = r.Feed(chunks[1])
	require.NoError(t, err)
	assert.False(t, done)

	full, done, err = r.Feed(chunks[2])
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "foobarbaz", string(full))
}

func TestReassemblerSingleChunkMessageCompletesImmediately(t *testing.T) {
	r := NewReassembler()
	defer r.Stop()

	chunks := makeChunks(t, [8]byte{2}, "solo")
	full, done, err := r.Feed(chunks[0])
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "solo", string(full))
}

func TestReassemblerDuplicateChunkIsIdempotent(t *testing.T) {
	r := NewReassembler()
	defer r.Stop()

	chunks := makeChunks(t, [8]byte{3}, "foo", "bar")
	_, _, err := r.Feed(chunks[0])
	require.NoError(t, err)

	// resend the same chunk (same index, same bytes)
	_, done, err := r.Feed(chunks[0])
	require.NoError(t, err)
	assert.False(t, done)

	full, done, err := r.Feed(chunks[1])
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "foobar", string(full))
}

func TestReassemblerMismatchingDuplicateDropsEntry(t *testing.T) {
	r := NewReassembler()
	defer r.Stop()

	id := [8]byte{4}
	first := &Chunk{MessageID: id, ChunkIndex: 0, TotalChunks: 2, Payload: []byte("foo")}
	corrupt := &Chunk{MessageID: id, ChunkIndex: 0, TotalChunks: 2, Payload: []byte("xyz")}

	_, _, err := r.Feed(first)
	require.NoError(t, err)

	_, _, err = r.Feed(corrupt)
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestReassemblerExpiresStaleEntries(t *testing.T) {
	r := NewReassemblerWithOptions(50*time.Millisecond, MaxConcurrentMessages)
	defer r.Stop()

	chunks := makeChunks(t, [8]byte{5}, "foo", "bar")
	_, _, err := r.Feed(chunks[0])
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, r.Len())
}

func TestReassemblerDropAllClearsInFlight(t *testing.T) {
	r := NewReassembler()
	defer r.Stop()

	chunks := makeChunks(t, [8]byte{6}, "foo", "bar")
	_, _, err := r.Feed(chunks[0])
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	r.DropAll()
	assert.Equal(t, 0, r.Len())
}
