package backend

import (
	"errors"

	"go.uber.org/zap"
)

var (
	// ErrConfigurationMissing means credentials or an endpoint are absent.
	// It is an expected condition and is never surfaced to callers.
	ErrConfigurationMissing = errors.New("backend not configured")

	// ErrBackendUnavailable covers network, auth and timeout failures of a
	// configured backend.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrMalformedResponse means the backend answered with an empty or
	// unusable payload.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// LogFallback logs a fallback transition at the level its cause deserves:
// missing configuration is debug noise, everything else is a warning.
func LogFallback(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if errors.Is(err, ErrConfigurationMissing) {
		logger.Debug(msg, fields...)
		return
	}
	logger.Warn(msg, fields...)
}
