package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesOnKindAndTitleNotCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	wrapped := Wrap(KindNetwork, "connection_closed", cause)

	assert.True(t, errors.Is(wrapped, ErrConnectionClosed))
	assert.False(t, errors.Is(wrapped, ErrDeviceNotFound))
}

func TestUnwrapExposesTheUnderlyingCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(KindCrypto, "tls_handshake_failed", cause)

	assert.Same(t, cause, errors.Unwrap(wrapped))
}

func TestWrapWithNilCauseBehavesLikeNew(t *testing.T) {
	assert.Equal(t, New(KindLocal, "not_initialized"), Wrap(KindLocal, "not_initialized", nil))
}

func TestErrorStringIncludesKindTitleAndCause(t *testing.T) {
	err := Wrap(KindTimeout, "ack_timeout", errors.New("deadline exceeded"))
	assert.Equal(t, "timeout: ack_timeout: deadline exceeded", err.Error())
}
