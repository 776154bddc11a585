package app

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"INFO":    LogLevelInfo,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"bogus":   LogLevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelWarn)

	l.Debug("not this")
	l.Info("not this either")
	l.Warn("warned")
	l.Error("errored")

	out := buf.String()
	if strings.Contains(out, "not this") {
		t.Errorf("low-severity output leaked: %q", out)
	}
	if !strings.Contains(out, "warned") || !strings.Contains(out, "errored") {
		t.Errorf("high-severity output missing: %q", out)
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelInfo).WithComponent("rpc").WithView("view-1")

	l.Info("frame %d", 7)

	out := buf.String()
	if !strings.Contains(out, "frame 7") {
		t.Errorf("formatted message missing: %q", out)
	}
	if !strings.Contains(out, "component=rpc") {
		t.Errorf("component field missing: %q", out)
	}
	if !strings.Contains(out, "view=view-1") {
		t.Errorf("view field missing: %q", out)
	}
	if !strings.Contains(out, "glint") {
		t.Errorf("prefix missing: %q", out)
	}
}

func TestNullLoggerDiscards(t *testing.T) {
	// Must not panic with no output writer.
	NullLogger.Error("dropped")
	NullLogger.WithComponent("x").Warn("dropped")
}
