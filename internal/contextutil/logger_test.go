package contextutil

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerFromContext(t *testing.T) {
	custom := slog.Default().With("component", "test")

	tests := []struct {
		name string
		ctx  context.Context
		want *slog.Logger
	}{
		{
			name: "no logger falls back to default",
			ctx:  context.Background(),
			want: slog.Default(),
		},
		{
			name: "logger stored with WithLogger",
			ctx:  WithLogger(context.Background(), custom),
			want: custom,
		},
		{
			name: "wrong type under a different key is ignored",
			ctx:  context.WithValue(context.Background(), struct{}{}, "not a logger"),
			want: slog.Default(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LoggerFromContext(tt.ctx); got != tt.want {
				t.Errorf("LoggerFromContext() = %p, want %p", got, tt.want)
			}
		})
	}
}
