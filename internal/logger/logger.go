// Package logger builds the zap logger and carries per-request loggers
// through the request context.
package logger

import (
	"context"
	"net/http"
	"time"

	"github.com/foodgram/apiserver/config"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// New returns a JSON production logger, or a console development logger
// when cfg.Env is "dev" or "test". Unknown levels fall back to info.
func New(cfg config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	switch cfg.Env {
	case "dev", "development", "test":
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zcfg = zap.NewProductionConfig()
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	zcfg.Level.SetLevel(level)

	return zcfg.Build()
}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or a no-op logger when none is set.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// Middleware attaches a request-scoped logger carrying the chi request id and
// writes one line per request once the handler returns.
func Middleware(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := base.With(zap.String("request_id", middleware.GetReqID(r.Context())))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			fields := &requestFields{}
			ctx := WithContext(r.Context(), reqLogger)
			ctx = context.WithValue(ctx, fieldsKey{}, fields)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logFields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if fields.userID > 0 {
				logFields = append(logFields, zap.Int("user_id", fields.userID))
			}

			switch {
			case status >= http.StatusInternalServerError:
				reqLogger.Error("http request", logFields...)
			case status >= http.StatusBadRequest:
				reqLogger.Warn("http request", logFields...)
			default:
				reqLogger.Info("http request", logFields...)
			}
		})
	}
}

type fieldsKey struct{}

type requestFields struct {
	userID int
}

// SetUserID records the authenticated user on the request log line.
func SetUserID(ctx context.Context, userID int) {
	if f, ok := ctx.Value(fieldsKey{}).(*requestFields); ok {
		f.userID = userID
	}
}
