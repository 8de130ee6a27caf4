package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/switchyard-ai/switchyard/pkg/adapters"
	"github.com/switchyard-ai/switchyard/pkg/httpclient"
	"github.com/switchyard-ai/switchyard/pkg/ir"
)

// FrameWriter receives translated stream frames. The HTTP layer
// implements it over the response writer with per-dialect framing.
type FrameWriter interface {
	WriteFrame(frame adapters.SSEEvent) error
}

// StreamResult reports how a streaming proxy call ended. When the
// request failed before the first frame went out, Started is false and
// Status/Body carry a plain dialect error for the caller to answer
// with instead of a stream.
type StreamResult struct {
	Started bool
	Status  int
	Body    []byte
}

// errClientGone marks a frame write that failed because the downstream
// client disconnected.
var errClientGone = errors.New("client disconnected")

type streamState struct {
	started  bool
	terminal bool
	errEvent *ir.Error
	usage    *ir.Usage
	output   strings.Builder
	writeErr error
}

// Stream proxies a streaming chat completion, translating upstream
// frames into the route's ingress dialect as they arrive.
//
// Once the first frame is written the HTTP status is committed;
// upstream failures after that point are relayed as a terminal error
// event inside the stream. An upstream that hangs up without a
// terminal frame gets a synthesized end, keeping any finish reason it
// had already sent, so the client sees a well-formed ending. A downstream disconnect stops the relay without
// fabricating a terminal frame.
func (e *Engine) Stream(ctx context.Context, route *Route, body []byte, modelHint string, w FrameWriter) StreamResult {
	start := time.Now()
	rec := RequestLog{
		ID:        newRecordID(),
		Time:      start,
		RouteID:   route.ID,
		ProxyPath: route.ProxyPath,
		Streaming: true,
	}
	if e.logBodies.Load() {
		rec.RequestBody = string(body)
	}

	plan, irErr := e.prepare(route, body, modelHint, true)
	if irErr != nil {
		return e.streamError(ctx, route, rec, start, irErr)
	}
	rec.SourceModel = plan.sourceModel
	rec.TargetModel = plan.targetModel
	rec.Provider = plan.upstream.ProviderID

	resp, irErr := e.send(ctx, plan.upstream.StreamClient, plan)
	if irErr != nil {
		return e.streamError(ctx, route, rec, start, irErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		upErr := plan.upstream.Adapter.ParseError(resp.StatusCode, respBody)
		return e.streamError(ctx, route, rec, start, upErr)
	}

	decoder := plan.upstream.Adapter.NewStreamDecoder()
	builder := route.Inbound.NewStreamBuilder("", plan.targetModel)
	st := &streamState{}

	writeFrames := func(frames []adapters.SSEEvent) error {
		for _, f := range frames {
			if err := w.WriteFrame(f); err != nil {
				st.writeErr = errClientGone
				return errClientGone
			}
			st.started = true
		}
		return nil
	}

	handleChunk := func(event string, data []byte) error {
		events, err := decoder.Decode(event, data)
		if err != nil {
			// A single garbled chunk must not kill the relay.
			e.log.Debug("skipping undecodable stream chunk",
				"route", route.ID, "provider", plan.upstream.ProviderID, "error", err)
			return nil
		}
		for _, ev := range events {
			switch ev.Type {
			case ir.EventEnd:
				st.terminal = true
				if ev.Usage != nil {
					st.usage = ev.Usage
				}
			case ir.EventError:
				st.terminal = true
				st.errEvent = ev.Err
			case ir.EventContent, ir.EventReasoning:
				st.output.WriteString(ev.Delta)
			case ir.EventToolCall:
				st.output.WriteString(ev.ToolArguments)
			}
			frames, err := builder.Build(ev)
			if err != nil {
				e.log.Warn("dropping untranslatable stream event",
					"route", route.ID, "type", string(ev.Type), "error", err)
				continue
			}
			if err := writeFrames(frames); err != nil {
				return err
			}
		}
		return nil
	}

	var readErr error
	switch plan.upstream.Adapter.StreamFormat() {
	case adapters.StreamJSONArray:
		readErr = readJSONObjects(resp.Body, func(obj []byte) error {
			return handleChunk("", obj)
		})
	default:
		scanner := httpclient.NewSSEScanner(resp.Body)
		for !st.terminal {
			frame, err := scanner.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				readErr = err
				break
			}
			if err := handleChunk(frame.Event, []byte(frame.Data)); err != nil {
				break
			}
		}
	}
	if errors.Is(readErr, errClientGone) {
		st.writeErr = errClientGone
		readErr = nil
	}

	if st.usage == nil {
		st.usage = e.estimator.Estimate(plan.req, st.output.String())
	}
	rec.InputTokens = st.usage.PromptTokens
	rec.OutputTokens = st.usage.CompletionTokens

	var errKind ir.ErrorKind
	switch {
	case st.writeErr != nil || ctx.Err() != nil:
		// Client went away; nothing more can be delivered and no
		// terminal frame is fabricated.
		rec.StatusCode = 499
		rec.Error = "client closed request"
		errKind = ir.ErrCancelled

	case st.errEvent != nil:
		// The upstream error was already relayed inside the stream;
		// the HTTP status stays 200.
		writeFrames(builder.Finalize())
		rec.StatusCode = http.StatusOK
		rec.Error = st.errEvent.Message
		errKind = st.errEvent.Kind

	case !st.terminal:
		// Upstream hung up without a terminal frame. A read failure
		// surfaces as a terminal error event; a clean EOF becomes a
		// synthesized stop.
		var ev ir.StreamEvent
		if readErr != nil {
			ev = ir.ErrorEvent(ir.NewErrorf(ir.ErrNetwork, "upstream stream interrupted: %v", readErr))
			rec.Error = ev.Err.Message
			errKind = ir.ErrNetwork
		} else {
			finish := decoder.Finish()
			if finish == "" {
				finish = ir.FinishStop
			}
			ev = ir.EndEvent(finish, st.usage)
		}
		if frames, err := builder.Build(ev); err == nil {
			writeFrames(frames)
		}
		writeFrames(builder.Finalize())
		rec.StatusCode = http.StatusOK

	default:
		writeFrames(builder.Finalize())
		rec.StatusCode = http.StatusOK
	}

	e.emit(ctx, rec, start, errKind)
	return StreamResult{Started: st.started, Status: http.StatusOK}
}

func (e *Engine) streamError(ctx context.Context, route *Route, rec RequestLog, start time.Time, irErr *ir.Error) StreamResult {
	status := irErr.Kind.HTTPStatus()
	body, err := route.Inbound.BuildError(irErr)
	if err != nil {
		body = []byte(`{"error":{"message":"internal error"}}`)
	}
	rec.StatusCode = status
	rec.Error = irErr.Message
	e.emit(ctx, rec, start, irErr.Kind)
	return StreamResult{Status: status, Body: body}
}

// readJSONObjects consumes a body of JSON objects, either wrapped in a
// top-level array or concatenated back to back, invoking handle with
// each complete object.
func readJSONObjects(r io.Reader, handle func(data []byte) error) error {
	br := bufio.NewReader(r)
	for {
		b, err := br.Peek(1)
		if err != nil {
			return nil // empty body
		}
		if b[0] == ' ' || b[0] == '\t' || b[0] == '\r' || b[0] == '\n' {
			br.Discard(1)
			continue
		}
		break
	}

	head, _ := br.Peek(1)
	dec := json.NewDecoder(br)

	if len(head) > 0 && head[0] == '[' {
		if _, err := dec.Token(); err != nil {
			return err
		}
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return err
			}
			if err := handle(raw); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := handle(raw); err != nil {
			return err
		}
	}
}
