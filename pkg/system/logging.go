// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ReqLoggerKey is the context key used to store request-scoped logger in gin context.
const ReqLoggerKey = "reqLogger"

// NewLogger builds the process logger. Production mode emits JSON; debug mode
// switches to the development encoder and debug level.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// Disable automatic stacktraces for non-fatal levels to avoid noisy traces in WARN/INFO logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return logger, nil
}

// Correlation is a trace/span id pair scoped to a single unit of work.
type Correlation struct {
	TraceID string
	SpanID  string
}

// NewCorrelation generates a fresh correlation pair.
func NewCorrelation() Correlation {
	trace := strings.ReplaceAll(uuid.NewString(), "-", "")
	span := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return Correlation{TraceID: trace, SpanID: span}
}

// Fields returns the pair as zap fields.
func (c Correlation) Fields() []zap.Field {
	return []zap.Field{zap.String("trace_id", c.TraceID), zap.String("span_id", c.SpanID)}
}

// Logger returns log annotated with the correlation pair.
func (c Correlation) Logger(log *zap.Logger) *zap.Logger {
	return log.With(c.Fields()...)
}

// RequestLogger is a gin middleware that stores a request-scoped sugared
// logger carrying a fresh request id.
func RequestLogger(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)
		c.Set(ReqLoggerKey, base.With("request_id", reqID, "path", c.FullPath()))
		c.Next()
	}
}

// GetReqLogger returns the request-scoped logger stored by RequestLogger, or
// fallback when none is present.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}
