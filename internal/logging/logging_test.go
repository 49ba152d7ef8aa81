package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/zulandar/workyard/internal/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(config.LogConfig{Level: "info"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	log.Info("recomputed", zap.String("person_id", "p-1"))
	log.Debug("hidden")
	_ = log.Sync()

	out := buf.String()
	if !strings.Contains(out, `"msg":"recomputed"`) {
		t.Errorf("output = %q, want JSON msg field", out)
	}
	if !strings.Contains(out, `"person_id":"p-1"`) {
		t.Errorf("output = %q, want person_id field", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at info level: %q", out)
	}
}

func TestNewWithWriter_Development(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(config.LogConfig{Level: "debug", Development: true}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	log.Debug("visible")
	_ = log.Sync()
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("output = %q, want debug line", buf.String())
	}
}

func TestNewWithWriter_BadLevel(t *testing.T) {
	if _, err := NewWithWriter(config.LogConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger")
	}
}
