// Package testutil provides helpers shared by package tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RPCHandler produces the result for a JSON-RPC method.
type RPCHandler func(params json.RawMessage) (any, error)

// JSONRPCServer is an httptest server answering JSON-RPC 2.0 calls from a method table.
type JSONRPCServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]RPCHandler
	calls    map[string]int
	paths    []string
	status   int
}

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// NewJSONRPCServer starts a server that is closed when the test ends.
func NewJSONRPCServer(t *testing.T, handlers map[string]RPCHandler) *JSONRPCServer {
	t.Helper()

	s := &JSONRPCServer{
		handlers: handlers,
		calls:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	return s
}

// FailWith makes every following request answer with the given HTTP status. Zero restores normal service.
func (s *JSONRPCServer) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Calls returns how many times method was called.
func (s *JSONRPCServer) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Paths returns the request paths seen so far.
func (s *JSONRPCServer) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func (s *JSONRPCServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.paths = append(s.paths, r.URL.Path)
	status := s.status
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	handler, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch {
	case !ok:
		resp.Error = &rpcError{Code: -32601, Message: "method not found"}
	default:
		result, err := handler(req.Params)
		if err != nil {
			resp.Error = &rpcError{Code: -32000, Message: err.Error()}
		} else {
			resp.Result = result
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Static returns a handler that always yields v.
func Static(v any) RPCHandler {
	return func(json.RawMessage) (any, error) { return v, nil }
}
