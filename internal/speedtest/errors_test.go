package speedtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestRequestErrorClassification(t *testing.T) {
	live := context.Background()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want Kind
	}{
		{"transport", live, errors.New("connection refused"), KindTransport},
		{"deadline", live, context.DeadlineExceeded, KindTimeout},
		{"net timeout", live, fmt.Errorf("get: %w", timeoutError{}), KindTimeout},
		{"caller cancelled", cancelled, errors.New("connection reset"), KindCancelled},
		{"already classified", live, newError(KindInvalidResponse, "x", nil), KindInvalidResponse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := requestError(tc.ctx, "op", tc.err)
			assert.Equal(t, tc.want, err.Kind)
			assert.True(t, IsKind(err, tc.want))
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newError(KindTransport, "upload", cause)

	assert.Equal(t, "upload: transport failure: boom", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "latency: invalid response", newError(KindInvalidResponse, "latency", nil).Error())

	wrapped := errors.Wrap(err, "failed to run speed test")
	assert.True(t, IsKind(wrapped, KindTransport))
	assert.False(t, IsKind(wrapped, KindTimeout))
}
