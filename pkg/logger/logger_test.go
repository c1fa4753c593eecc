package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewTagsComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	New(base, "http").Print("tls handshake error")

	out := buf.String()
	if !strings.Contains(out, "component=http") || !strings.Contains(out, "tls handshake error") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "level=ERROR") {
		t.Fatalf("expected error level, got %q", out)
	}
}
