package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("json by default and honours level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, slog.LevelWarn, "")

		logger.Info("hidden")
		logger.Warn("shown", "room_id", "room-a")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Fatalf("info record should be filtered at warn level: %q", out)
		}
		if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"room_id":"room-a"`) {
			t.Fatalf("expected JSON record, got %q", out)
		}
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, slog.LevelInfo, " TEXT ").Info("hello", "k", "v")

		if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
			t.Fatalf("expected text record, got %q", buf.String())
		}
	})
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no logger in empty context")
	}

	logger := slog.Default()
	ctx := ContextWithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("expected stored logger to be returned")
	}
	if ContextWithLogger(ctx, nil) != ctx {
		t.Fatalf("nil logger should leave context untouched")
	}
}
