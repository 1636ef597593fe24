package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	ctx = WithRequestID(ctx, "req_123")
	assert.Equal(t, "req_123", RequestID(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, FromContext(ctx))

	logger := New("info", "text")
	ctx = WithLogger(ctx, logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestLAnnotatesRequestID(t *testing.T) {
	logger := New("debug", "json")
	ctx := WithLogger(WithRequestID(context.Background(), "req_9"), logger)
	assert.NotNil(t, L(ctx))
}
