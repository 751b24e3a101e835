// Package logger provides a custom logging solution built on top of Uber's Zap logging library.
// It includes functionality for creating and configuring a logger instance and HTTP middleware
// to log incoming HTTP requests.
package logger

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps the zap.Logger to provide additional logging functionality.
type Logger struct {
	*zap.Logger
}

// CreateLogger creates and configures a Logger with the specified log level.
// Entries are JSON encoded with ISO8601 timestamps and tagged with the service name.
func CreateLogger(level string) (*Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]interface{}{"service": "coffee_shop"}

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{Logger: zl}, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// ForRequest returns a sugared logger carrying the request id stored in ctx, if any.
func (log *Logger) ForRequest(ctx context.Context) *zap.SugaredLogger {
	sugar := log.Sugar()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		sugar = sugar.With("request_id", reqID)
	}
	return sugar
}

// WithLogging returns HTTP middleware that records one entry per served request.
// Server errors are logged at error level, client errors at warn level.
// The Authorization header and request bodies are never logged.
func (log *Logger) WithLogging() func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			defer func() {
				fields := []zap.Field{
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("uri", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(started)),
					zap.Int("size", ww.BytesWritten()),
				}

				switch status := ww.Status(); {
				case status >= http.StatusInternalServerError:
					log.Error("request failed", fields...)
				case status >= http.StatusBadRequest:
					log.Warn("request rejected", fields...)
				default:
					log.Info("request served", fields...)
				}
			}()
			h.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
