// Package logging builds the process-wide structured logger.
package logging

import (
	"go.uber.org/zap"
)

// New builds a production ready structured logger writing JSON to stdout.
func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg.Build()
}

// WithRequest enriches the logger with the request identifier when present.
func WithRequest(logger *zap.Logger, requestID string) *zap.Logger {
	if requestID == "" {
		return logger
	}
	return logger.With(zap.String("request_id", requestID))
}
