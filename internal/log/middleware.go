package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// NewContext returns a copy of ctx carrying logger
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context, falling back to slog's default
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// Middleware stores logger in each request context, enriched with the
// request id produced by extractRequestID when one is available
func Middleware(logger *Logger, extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger
			if extractRequestID != nil {
				if id := extractRequestID(r); id != "" {
					l = l.With(NewFields().WithRequestID(id).ToSlice()...)
				}
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), l)))
		})
	}
}

// StructuredLogger provides domain-specific logging helpers
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogUnitSuccess records a completed sync unit
func (sl *StructuredLogger) LogUnitSuccess(ctx context.Context, endpoint, budgetCode, classificationType, period string, year, records int) {
	fields := NewFields().
		WithSyncUnit(budgetCode, classificationType, period, year).
		WithOperation(OpSync)
	fields[FieldEndpoint] = endpoint
	fields[FieldRecords] = records

	sl.logger.InfoContext(ctx, "Sync unit completed", fields.ToSlice()...)
}

// LogUnitFailure records a failed sync unit
func (sl *StructuredLogger) LogUnitFailure(ctx context.Context, endpoint, budgetCode, classificationType, period string, year int, errorType string, err error) {
	fields := NewFields().
		WithSyncUnit(budgetCode, classificationType, period, year).
		WithOperation(OpSync).
		WithError(err)
	fields[FieldEndpoint] = endpoint
	fields[FieldErrorType] = errorType

	sl.logger.WarnContext(ctx, "Sync unit failed", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	sl.logger.ErrorContext(ctx, msg, fields.WithError(err).WithOperation(operation).ToSlice()...)
}
