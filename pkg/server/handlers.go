package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/switchyard-ai/switchyard/pkg/bridge"
	"github.com/switchyard-ai/switchyard/pkg/config"
	"github.com/switchyard-ai/switchyard/pkg/observability"
)

// maxBodyBytes caps ingress request bodies. Vision payloads arrive
// base64-encoded inline, so the cap is generous.
const maxBodyBytes = 32 << 20

func (s *HTTPServer) buildMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Chat ingress, one path shape per dialect family.
	mux.HandleFunc("POST /{proxy}/v1/chat/completions", s.handleChat)
	mux.HandleFunc("POST /{proxy}/v1/messages", s.handleChat)
	mux.HandleFunc("POST /{proxy}/v1beta/models/{call}", s.handleGeminiGenerate)

	// Model listings.
	mux.HandleFunc("GET /{proxy}/v1/models", s.handleModels)
	mux.HandleFunc("GET /{proxy}/v1beta/models", s.handleModels)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/schema", s.handleSchema)

	if s.cfg.Global.Observability.Metrics.IsEnabled() {
		mux.Handle("GET "+s.cfg.Global.Observability.Metrics.Path, observability.Handler())
	}

	return mux
}

func (s *HTTPServer) route(w http.ResponseWriter, r *http.Request) (*bridge.Route, bool) {
	route, ok := s.engine.Route(r.PathValue("proxy"))
	if !ok {
		writeGenericError(w, http.StatusNotFound,
			fmt.Sprintf("no route serves proxy path %q", r.PathValue("proxy")))
		return nil, false
	}
	return route, true
}

// handleChat serves the OpenAI-compatible and Anthropic chat shapes.
// Streaming is requested in the body.
func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	route, ok := s.route(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeGenericError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var probe struct {
		Stream bool `json:"stream"`
	}
	json.Unmarshal(body, &probe)

	if probe.Stream {
		s.serveStream(w, r, route, body, "")
		return
	}
	s.serveUnary(w, r, route, body, "")
}

// handleGeminiGenerate serves the Gemini generate shape, where the
// model and the unary/streaming choice ride in the URL.
func (s *HTTPServer) handleGeminiGenerate(w http.ResponseWriter, r *http.Request) {
	route, ok := s.route(w, r)
	if !ok {
		return
	}
	model, action, found := strings.Cut(r.PathValue("call"), ":")
	if !found {
		writeGenericError(w, http.StatusNotFound, "expected models/{model}:{action}")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeGenericError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	switch action {
	case "generateContent":
		s.serveUnary(w, r, route, body, model)
	case "streamGenerateContent":
		s.serveStream(w, r, route, body, model)
	default:
		writeGenericError(w, http.StatusNotFound, fmt.Sprintf("unknown action %q", action))
	}
}

func (s *HTTPServer) serveUnary(w http.ResponseWriter, r *http.Request, route *bridge.Route, body []byte, modelHint string) {
	result := s.engine.Unary(r.Context(), route, body, modelHint)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status)
	w.Write(result.Body)
}

func (s *HTTPServer) serveStream(w http.ResponseWriter, r *http.Request, route *bridge.Route, body []byte, modelHint string) {
	writer := newFrameWriter(w, route.Inbound.StreamFormat(), r.URL.Query().Get("alt") == "sse")
	result := s.engine.Stream(r.Context(), route, body, modelHint, writer)

	if !result.Started {
		// Nothing streamed; answer with the plain dialect error.
		if result.Status != 0 && result.Body != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(result.Status)
			w.Write(result.Body)
		}
		return
	}
	writer.Close()
}

// handleModels lists the models a route advertises, shaped for the
// route's dialect.
func (s *HTTPServer) handleModels(w http.ResponseWriter, r *http.Request) {
	route, ok := s.route(w, r)
	if !ok {
		return
	}
	models := s.engine.Models(route)
	w.Header().Set("Content-Type", "application/json")

	switch route.Inbound.Name() {
	case "anthropic":
		type entry struct {
			Type        string `json:"type"`
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		}
		out := struct {
			Data    []entry `json:"data"`
			HasMore bool    `json:"has_more"`
		}{Data: make([]entry, 0, len(models))}
		for _, m := range models {
			out.Data = append(out.Data, entry{Type: "model", ID: m, DisplayName: m})
		}
		json.NewEncoder(w).Encode(out)

	case "gemini":
		type entry struct {
			Name             string   `json:"name"`
			SupportedMethods []string `json:"supportedGenerationMethods"`
		}
		out := struct {
			Models []entry `json:"models"`
		}{Models: make([]entry, 0, len(models))}
		for _, m := range models {
			out.Models = append(out.Models, entry{
				Name:             "models/" + m,
				SupportedMethods: []string{"generateContent", "streamGenerateContent"},
			})
		}
		json.NewEncoder(w).Encode(out)

	default:
		type entry struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			OwnedBy string `json:"owned_by"`
		}
		out := struct {
			Object string  `json:"object"`
			Data   []entry `json:"data"`
		}{Object: "list", Data: make([]entry, 0, len(models))}
		for _, m := range models {
			out.Data = append(out.Data, entry{ID: m, Object: "model", OwnedBy: "switchyard"})
		}
		json.NewEncoder(w).Encode(out)
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"routes": len(s.engine.Routes()),
	})
}

// handleSchema serves the JSON schema of the configuration file, for
// editor completion and validation tooling.
func (s *HTTPServer) handleSchema(w http.ResponseWriter, r *http.Request) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://switchyard.dev/schemas/config.json"
	schema.Title = "Switchyard Configuration Schema"
	schema.Description = "Configuration schema for the switchyard LLM gateway"

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	json.NewEncoder(w).Encode(schema)
}

// writeGenericError answers routing-level failures that happen before
// a dialect is known.
func writeGenericError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
		},
	})
}
