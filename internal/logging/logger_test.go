package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger_UsesJSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogger(Options{Level: "debug", Writer: &buf, Component: "gitcanvas"})
	lg.Debug("boot", "k", "v")

	out := strings.TrimSpace(buf.String())
	if !strings.Contains(out, `"level":"DEBUG"`) {
		t.Fatalf("expected DEBUG level, got %s", out)
	}
	if !strings.Contains(out, `"component":"gitcanvas"`) {
		t.Fatalf("expected component field, got %s", out)
	}
}

func TestNewLogger_StampsModule(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogger(Options{Level: "info", Writer: &buf, Component: "gitcanvas", Module: "main"})
	lg.Info("boot")

	if out := buf.String(); !strings.Contains(out, `"module":"main"`) {
		t.Fatalf("expected module field, got %s", out)
	}
}

func TestForModule(t *testing.T) {
	var buf bytes.Buffer
	lg := ForModule(NewLogger(Options{Level: "info", Writer: &buf}), "store")
	lg.Info("saved")

	if out := buf.String(); !strings.Contains(out, `"module":"store"`) {
		t.Fatalf("expected module field, got %s", out)
	}
}
