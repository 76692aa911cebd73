// Package messaging carries request/response messages between capture contexts
// (content script, background relay, popup). Payloads are JSON-encoded at every
// boundary, so a receiver never shares memory with the sender.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Action names a message type.
type Action string

const (
	ActionGetPageData Action = "getPageData"
	ActionGetPageInfo Action = "getPageInfo"
	ActionSaveData    Action = "saveData"
)

// ErrUnhandled is returned when no handler accepts an action.
var ErrUnhandled = errors.New("no handler for action")

// Request is a message sent to another context.
type Request struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// NewRequest encodes data into a request. A nil data produces a bare action.
func NewRequest(action Action, data any) (Request, error) {
	req := Request{Action: action}
	if data == nil {
		return req, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s data: %w", action, err)
	}
	req.Data = raw
	return req, nil
}

// DecodeData decodes the request payload into v.
func (r Request) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", r.Action, err)
	}
	return nil
}

// Response is the reply to a Request.
type Response struct {
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewResponse encodes v into a response.
func NewResponse(v any) (Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Response{}, fmt.Errorf("encode response: %w", err)
	}
	return Response{Payload: raw}, nil
}

// Empty reports whether the responder sent nothing back.
func (r Response) Empty() bool {
	return len(r.Payload) == 0 || string(r.Payload) == "null"
}

// Decode decodes the payload into v. An empty response leaves v untouched.
func (r Response) Decode(v any) error {
	if r.Empty() {
		return nil
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// HandlerFunc answers one request.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// Sender delivers a request and waits for its reply.
type Sender interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Router dispatches requests to per-action handlers.
type Router struct {
	mu       sync.RWMutex
	handlers map[Action]HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: make(map[Action]HandlerFunc)}
}

// Handle registers h for action, replacing any previous handler.
func (r *Router) Handle(action Action, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
}

// Send runs the handler on its own goroutine and waits for the reply or for ctx
// to end, whichever comes first.
func (r *Router) Send(ctx context.Context, req Request) (Response, error) {
	r.mu.RLock()
	h, ok := r.handlers[req.Action]
	r.mu.RUnlock()
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", ErrUnhandled, req.Action)
	}

	type reply struct {
		resp Response
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		resp, err := h(ctx, req)
		done <- reply{resp: resp, err: err}
	}()

	select {
	case rep := <-done:
		return rep.resp, rep.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}
