// Package logging provides real-time log output for the lifecycle engine.
// The history ledger is THE forensic record of task mutations. This package
// provides optional console output for monitoring, derived from engine events.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger provides structured logging to stdout.
// This is for real-time monitoring only - forensic analysis uses the ledger.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	traceID   string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel maps a config string to a Level. Unknown values default to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		traceID:   l.traceID,
	}
}

// WithTraceID returns a new logger with the given trace ID.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		traceID:   traceID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Engine-derived logging methods ---
// These are called by the lifecycle engine after persisting a mutation.
// They provide real-time console output without duplicating ledger data.

// TaskCreated logs a newly created task.
func (l *Logger) TaskCreated(taskID, nodeID string) {
	l.Info("task_created", map[string]interface{}{
		"task": taskID,
		"node": nodeID,
	})
}

// StatusChange logs a status transition.
func (l *Logger) StatusChange(taskID, from, to, performedBy string) {
	l.Info("status_change", map[string]interface{}{
		"task": taskID,
		"from": from,
		"to":   to,
		"by":   performedBy,
	})
}

// AssigneeChange logs a task reassignment.
func (l *Logger) AssigneeChange(taskID, from, to string) {
	l.Info("assignee_change", map[string]interface{}{
		"task": taskID,
		"from": from,
		"to":   to,
	})
}

// TaskDeleted logs a soft-delete.
func (l *Logger) TaskDeleted(taskID string) {
	l.Info("task_deleted", map[string]interface{}{
		"task": taskID,
	})
}

// PartialCommit logs a data-consistency defect: the task row was mutated
// but the matching ledger append failed. Always logged at ERROR.
func (l *Logger) PartialCommit(taskID, action string, err error) {
	l.Error("partial_commit", map[string]interface{}{
		"task":   taskID,
		"action": action,
		"error":  err.Error(),
	})
}

// SweepStart logs the start of an expiry sweep.
func (l *Logger) SweepStart(boundary time.Time) {
	l.Debug("sweep_start", map[string]interface{}{
		"boundary": boundary.UTC().Format(time.RFC3339),
	})
}

// SweepComplete logs a finished expiry sweep.
func (l *Logger) SweepComplete(expired int, duration time.Duration) {
	l.Info("sweep_complete", map[string]interface{}{
		"expired":  expired,
		"duration": duration.String(),
	})
}

// SweepSkipped logs a sweep that could not run, e.g. when another sweep
// holds the reaper lock.
func (l *Logger) SweepSkipped(reason string) {
	l.Warn("sweep_skipped", map[string]interface{}{
		"reason": reason,
	})
}

// TaskExpired logs a single task reclaimed by the reaper.
func (l *Logger) TaskExpired(taskID, fromStatus string) {
	l.Info("task_expired", map[string]interface{}{
		"task": taskID,
		"from": fromStatus,
	})
}
