package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"quizflow-client/internal/domain"
)

// New builds the process logger. format "json" selects the JSON handler,
// anything else the text handler used during development.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// AttemptLog records submission attempts as structured log lines. It is the
// attempt sink when no journal database is configured.
type AttemptLog struct {
	logger *slog.Logger
}

func NewAttemptLog(logger *slog.Logger) *AttemptLog {
	return &AttemptLog{logger: logger.With("component", "attempts")}
}

func (l *AttemptLog) RecordAttempt(ctx context.Context, a domain.SubmissionAttempt) error {
	level := slog.LevelInfo
	if a.Status == domain.AttemptFailed {
		level = slog.LevelWarn
	}
	args := []any{
		"submission", a.SubmissionID,
		"quiz", a.QuizID,
		"attempt", a.Attempt,
		"status", string(a.Status),
	}
	if a.Error != "" {
		args = append(args, "error", a.Error)
	}
	l.logger.Log(ctx, level, "submission attempt", args...)
	return nil
}
