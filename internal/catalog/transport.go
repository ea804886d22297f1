package catalog

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingTransport logs every outbound request. Metadata only, never payloads.
type LoggingTransport struct {
	Base http.RoundTripper
	Log  *zap.Logger
}

// RoundTrip delegates to Base and logs method, path, status and duration.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()
	resp, err := base.RoundTrip(req)

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("dur", time.Since(start)),
	}
	if resp != nil {
		fields = append(fields, zap.Int("status", resp.StatusCode))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	t.Log.Debug("http", fields...)
	return resp, err
}
