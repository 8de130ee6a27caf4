package server

import (
	"net/http"

	"github.com/switchyard-ai/switchyard/pkg/adapters"
)

// frameWriter sends translated stream frames to the client. Headers
// are committed lazily on the first frame so that failures before the
// stream opens can still answer with a plain error status.
type frameWriter interface {
	WriteFrame(frame adapters.SSEEvent) error
	Close()
}

func newFrameWriter(w http.ResponseWriter, format adapters.StreamFormat, altSSE bool) frameWriter {
	if format == adapters.StreamJSONArray && !altSSE {
		return &jsonArrayWriter{w: w}
	}
	return &sseWriter{w: w, named: format != adapters.StreamJSONArray}
}

// sseWriter emits frames as server-sent events. When named is false
// the event field is suppressed, matching dialects that stream bare
// data lines.
type sseWriter struct {
	w       http.ResponseWriter
	named   bool
	started bool
}

func (s *sseWriter) WriteFrame(f adapters.SSEEvent) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	if s.named && f.Event != "" {
		if _, err := s.w.Write([]byte("event: " + f.Event + "\n")); err != nil {
			return err
		}
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(f.Data); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	if flusher, ok := s.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (s *sseWriter) Close() {}

// jsonArrayWriter emits frames as elements of one JSON array, the
// Gemini stream shape when alt=sse is absent.
type jsonArrayWriter struct {
	w       http.ResponseWriter
	started bool
}

func (j *jsonArrayWriter) WriteFrame(f adapters.SSEEvent) error {
	if !j.started {
		j.w.Header().Set("Content-Type", "application/json")
		j.w.WriteHeader(http.StatusOK)
		if _, err := j.w.Write([]byte("[")); err != nil {
			return err
		}
		j.started = true
	} else {
		if _, err := j.w.Write([]byte(",\n")); err != nil {
			return err
		}
	}
	if _, err := j.w.Write(f.Data); err != nil {
		return err
	}
	if flusher, ok := j.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (j *jsonArrayWriter) Close() {
	if j.started {
		j.w.Write([]byte("]"))
		if flusher, ok := j.w.(http.Flusher); ok {
			flusher.Flush()
		}
	}
}
