package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace ID.
func GenerateTraceID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// FromContext retrieves the logger carried on a context, or the default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext returns a context carrying the given logger.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceContext stamps a fresh trace ID onto the context and returns a
// logger tagged with it.
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := Default().WithTraceID(traceID)
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// PositionContext creates a logger context for paper-position operations.
func PositionContext(accountID, symbol string, entryPrice, quantity float64) *Logger {
	return Default().WithFields(map[string]interface{}{
		"account_id":  accountID,
		"symbol":      symbol,
		"entry_price": entryPrice,
		"quantity":    quantity,
	}).WithComponent("position")
}

// ScreeningContext creates a logger context for one screener pass.
func ScreeningContext(timeframe string, symbolCount int) *Logger {
	return Default().WithFields(map[string]interface{}{
		"timeframe":    timeframe,
		"symbol_count": symbolCount,
	}).WithComponent("screener")
}

// ExchangeContext creates a logger context for exchange calls.
func ExchangeContext(endpoint, symbol string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"endpoint": endpoint,
		"symbol":   symbol,
	}).WithComponent("exchange")
}

// DatabaseContext creates a logger context for store operations.
func DatabaseContext(operation, table string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"operation": operation,
		"table":     table,
	}).WithComponent("database")
}

// HTTPMiddleware logs each HTTP request's method, path, status, and latency.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = GenerateTraceID()
		}

		l := Default().WithTraceID(traceID).WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
		}).WithComponent("http")

		ctx := NewContext(r.Context(), l)
		r = r.WithContext(ctx)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: 200}
		next.ServeHTTP(wrapped, r)

		l.WithDuration(time.Since(start)).WithField("status_code", wrapped.statusCode).Info("request completed")
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
