package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("hidden")
	l.Warn("duplicate key", zap.String("key", "X"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "duplicate key") || !strings.Contains(out, `"key": "X"`) {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestNew_DefaultLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "loud"); err == nil {
		t.Error("New() should reject an unknown level")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() without logger should return a no-op logger")
	}

	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("FromContext() did not return the stored logger")
	}
}
