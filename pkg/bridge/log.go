package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RequestLog is the per-request audit record emitted after every
// proxied call, streaming or not.
type RequestLog struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	RouteID     string    `json:"route_id"`
	ProxyPath   string    `json:"proxy_path"`
	SourceModel string    `json:"source_model"`
	TargetModel string    `json:"target_model"`
	Provider    string    `json:"provider,omitempty"`

	StatusCode   int   `json:"status_code"`
	Streaming    bool  `json:"streaming,omitempty"`
	InputTokens  int   `json:"input_tokens,omitempty"`
	OutputTokens int   `json:"output_tokens,omitempty"`
	LatencyMS    int64 `json:"latency_ms"`

	Error string `json:"error,omitempty"`

	// Bodies are captured only when proxy.log_bodies is on; they may
	// contain user content.
	RequestBody  string `json:"request_body,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`
}

// LogSink receives completed request records.
type LogSink interface {
	Append(ctx context.Context, rec RequestLog)
}

// SlogSink writes request records to a structured logger. It is the
// default sink.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink creates a SlogSink; a nil logger means slog.Default.
func NewSlogSink(log *slog.Logger) *SlogSink {
	if log == nil {
		log = slog.Default()
	}
	return &SlogSink{log: log}
}

// Append logs one request record.
func (s *SlogSink) Append(ctx context.Context, rec RequestLog) {
	attrs := []any{
		"id", rec.ID,
		"route", rec.RouteID,
		"path", rec.ProxyPath,
		"source_model", rec.SourceModel,
		"target_model", rec.TargetModel,
		"status", rec.StatusCode,
		"latency_ms", rec.LatencyMS,
	}
	if rec.Streaming {
		attrs = append(attrs, "streaming", true)
	}
	if rec.InputTokens > 0 || rec.OutputTokens > 0 {
		attrs = append(attrs, "input_tokens", rec.InputTokens, "output_tokens", rec.OutputTokens)
	}
	if rec.RequestBody != "" {
		attrs = append(attrs, "request_body", rec.RequestBody)
	}
	if rec.ResponseBody != "" {
		attrs = append(attrs, "response_body", rec.ResponseBody)
	}

	if rec.Error != "" {
		attrs = append(attrs, "error", rec.Error)
		s.log.ErrorContext(ctx, "proxied request failed", attrs...)
		return
	}
	s.log.InfoContext(ctx, "proxied request", attrs...)
}

func newRecordID() string {
	return uuid.NewString()
}
