package logging

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	// Info should pass
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Error("log should contain INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("log should contain the message")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("reaper")
	logger.SetOutput(&buf)

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "[reaper]") {
		t.Errorf("expected component 'reaper' in log, got: %s", output)
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("status_change", map[string]interface{}{
		"task": "t-1",
		"from": "pending",
	})

	output := buf.String()
	if !strings.Contains(output, "task=t-1") {
		t.Errorf("expected task field in log, got: %s", output)
	}
	if !strings.Contains(output, "from=pending") {
		t.Errorf("expected from field in log, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"Error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_StatusChange(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("lifecycle")
	logger.SetOutput(&buf)

	logger.StatusChange("t-1", "pending", "in_progress", "n-9")

	output := buf.String()
	for _, want := range []string{"status_change", "task=t-1", "from=pending", "to=in_progress", "by=n-9"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in log, got: %s", want, output)
		}
	}
}

func TestLogger_PartialCommitAlwaysError(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelError)

	logger.PartialCommit("t-2", "status_change", fmt.Errorf("kv put failed"))

	output := buf.String()
	if !strings.Contains(output, "ERROR") {
		t.Errorf("partial commit must log at ERROR, got: %s", output)
	}
	if !strings.Contains(output, "partial_commit") {
		t.Errorf("expected partial_commit event, got: %s", output)
	}
	if !strings.Contains(output, "task=t-2") {
		t.Errorf("expected task id, got: %s", output)
	}
}

func TestLogger_SweepComplete(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.SweepComplete(3, 150*time.Millisecond)

	output := buf.String()
	if !strings.Contains(output, "sweep_complete") {
		t.Errorf("expected sweep_complete event, got: %s", output)
	}
	if !strings.Contains(output, "expired=3") {
		t.Errorf("expected expired count, got: %s", output)
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			logger.Info("concurrent", map[string]interface{}{"n": n})
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	lines := strings.Count(buf.String(), "\n")
	if lines != 10 {
		t.Errorf("expected 10 complete lines, got %d", lines)
	}
}
