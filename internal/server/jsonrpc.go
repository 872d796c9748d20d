// Package server exposes the daemon's HTTP surface: the JSON-RPC 2.0
// endpoint, the liveness probe, and the websocket event feed.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JsonRpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JsonRpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewError creates an Error with the given code and message.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func errParse() *Error {
	return NewError(CodeParseError, "parse error")
}

func errInvalidRequest(message string) *Error {
	return NewError(CodeInvalidRequest, message)
}

func errMethodNotFound(method string) *Error {
	return NewError(CodeMethodNotFound, "method not found: "+method)
}

func errInvalidParams(message string) *Error {
	return NewError(CodeInvalidParams, message)
}

func errInternal(err error) *Error {
	return NewError(CodeInternalError, err.Error())
}

// HandlerFunc is one JSON-RPC method. A non-nil *Error becomes the error
// member of the response; otherwise the returned value is marshaled as the
// result member.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, *Error)

// Registry maps method names to handlers.
type Registry struct {
	methods map[string]HandlerFunc
}

// NewRegistry creates an empty method registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]HandlerFunc)}
}

// Register binds a method name to its handler.
func (r *Registry) Register(name string, handler HandlerFunc) {
	r.methods[name] = handler
}

// Get returns the handler for a method name.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	handler, exists := r.methods[name]
	return handler, exists
}

// Methods returns the registered method names, sorted.
func (r *Registry) Methods() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RPCHandler serves JSON-RPC 2.0 over HTTP POST.
type RPCHandler struct {
	registry *Registry
	logger   Logger
}

// NewRPCHandler creates an HTTP handler dispatching into the registry.
func NewRPCHandler(registry *Registry, logger Logger) *RPCHandler {
	if logger == nil {
		logger = nopLogger{}
	}
	return &RPCHandler{registry: registry, logger: logger}
}

func (h *RPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// The id is unknowable when the envelope itself did not parse.
		writeError(w, nil, errParse())
		return
	}

	if req.Method == "" {
		writeError(w, req.ID, errInvalidRequest("missing method"))
		return
	}

	handler, exists := h.registry.Get(req.Method)
	if !exists {
		writeError(w, req.ID, errMethodNotFound(req.Method))
		return
	}

	result, rpcErr := handler(r.Context(), req.Params)
	if rpcErr != nil {
		h.logger.Debug("rpc method failed",
			"method", req.Method, "code", rpcErr.Code, "error", rpcErr.Message)
		writeError(w, req.ID, rpcErr)
		return
	}

	writeResult(w, req.ID, result)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	data, err := json.Marshal(result)
	if err != nil {
		writeError(w, id, errInternal(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Response{
		JsonRpc: "2.0",
		Result:  data,
		ID:      id,
	})
}

func writeError(w http.ResponseWriter, id interface{}, rpcErr *Error) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Response{
		JsonRpc: "2.0",
		Error:   rpcErr,
		ID:      id,
	})
}
