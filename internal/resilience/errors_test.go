package resilience

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := NewError(KindProviderUnavailable, "judicial lookup failed", errors.New("dial tcp: timeout"))
	wrapped := fmt.Errorf("stage resolve: %w", base)
	assert.Equal(t, KindProviderUnavailable, KindOf(wrapped))
}

func TestKindOf_Plain(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
}

func TestUserMessage_NeverLeaksCause(t *testing.T) {
	base := NewError(KindMalformedModelOutput, "generation failed", errors.New("raw upstream body with secrets"))
	assert.Equal(t, "generation failed", UserMessage(base))
}

func TestUserMessage_UnknownError(t *testing.T) {
	assert.Equal(t, "internal error", UserMessage(errors.New("pq: connection refused")))
}

func TestIsTransient_Patterns(t *testing.T) {
	assert.True(t, IsTransient(errors.New("read: connection reset by peer")))
	assert.True(t, IsTransient(errors.New("dial tcp: i/o timeout")))
	assert.False(t, IsTransient(errors.New("invalid query")))
	assert.False(t, IsTransient(nil))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	assert.False(t, IsTransientHTTPStatus(404))
	assert.False(t, IsTransientHTTPStatus(200))
}
