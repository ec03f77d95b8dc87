package internal

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/JPKribs/snapcontrol/utilities"
)

const maxLogs = 500

// MARK: NewLogger
func NewLogger(level string) *Logger {
	return NewLoggerWithWriter(level, os.Stdout)
}

// MARK: NewLoggerWithWriter
// Builds a JSON logger writing to w; tests pass io.Discard.
func NewLoggerWithWriter(level string, w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})

	return &Logger{
		Logger: slog.New(handler),
		logs:   make([]LogEntry, 0, maxLogs),
	}
}

// MARK: ParseLevel
// Maps a level name onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MARK: addToMemory
func (l *Logger) addToMemory(level, msg string, context map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LogEntry{
		Timestamp: utilities.CurrentTimestamp(),
		Level:     level,
		Message:   msg,
		Context:   context,
	}

	if len(l.logs) >= maxLogs {
		l.logs = l.logs[1:]
	}
	l.logs = append(l.logs, entry)

	if l.OnLog != nil {
		l.OnLog(level, msg)
	}
}

// MARK: convertArgsToContext
func convertArgsToContext(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}

	context := make(map[string]any)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if err, isErr := args[i+1].(error); isErr {
			context[key] = err.Error()
			continue
		}
		context[key] = args[i+1]
	}

	if len(context) == 0 {
		return nil
	}
	return context
}

// MARK: GetLogs
func (l *Logger) GetLogs(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level == "" {
		return append([]LogEntry(nil), l.logs...)
	}

	filtered := make([]LogEntry, 0)
	for _, entry := range l.logs {
		if strings.EqualFold(entry.Level, level) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// MARK: Debug
func (l *Logger) Debug(msg string, args ...any) {
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.addToMemory("DEBUG", msg, convertArgsToContext(args))
	l.Logger.Debug(msg, args...)
}

// MARK: Info
func (l *Logger) Info(msg string, args ...any) {
	l.addToMemory("INFO", msg, convertArgsToContext(args))
	l.Logger.Info(msg, args...)
}

// MARK: Warn
func (l *Logger) Warn(msg string, args ...any) {
	l.addToMemory("WARN", msg, convertArgsToContext(args))
	l.Logger.Warn(msg, args...)
}

// MARK: Error
func (l *Logger) Error(msg string, args ...any) {
	l.addToMemory("ERROR", msg, convertArgsToContext(args))
	l.Logger.Error(msg, args...)
}
