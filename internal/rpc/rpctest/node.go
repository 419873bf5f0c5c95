// Package rpctest provides an in-process fake Solana JSON-RPC node for
// tests. Handlers are registered per method; unregistered methods return a
// method-not-found node error.
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Handler produces the result for one JSON-RPC method. Returning a non-nil
// *NodeError sends a JSON-RPC error object instead of a result.
type Handler func(params []interface{}) (interface{}, *NodeError)

// NodeError is the error object the fake node puts on the wire.
type NodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Node is a fake JSON-RPC endpoint backed by httptest.Server.
type Node struct {
	srv *httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
	dropOnce map[string]bool
	failing  bool
}

// NewNode starts a fake node with no methods registered.
func NewNode() *Node {
	n := &Node{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
		dropOnce: make(map[string]bool),
	}
	n.srv = httptest.NewServer(http.HandlerFunc(n.serve))
	return n
}

// URL is the node's endpoint URL.
func (n *Node) URL() string { return n.srv.URL }

// Close shuts the node down.
func (n *Node) Close() { n.srv.Close() }

// Handle registers or replaces the handler for a method.
func (n *Node) Handle(method string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

// HandleResult registers a handler that always returns a fixed result.
func (n *Node) HandleResult(method string, result interface{}) {
	n.Handle(method, func([]interface{}) (interface{}, *NodeError) {
		return result, nil
	})
}

// Calls reports how many requests a method has received.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// TotalCalls reports the number of requests across all methods.
func (n *Node) TotalCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, c := range n.calls {
		total += c
	}
	return total
}

// DropOnce makes the next request for a method lose its response: the
// handler still runs, so the node observes the request, but the connection
// is dropped before a reply reaches the client.
func (n *Node) DropOnce(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropOnce[method] = true
}

// SetFailing toggles transport-level failure: while failing, every request
// gets its connection dropped without a JSON-RPC response.
func (n *Node) SetFailing(failing bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failing = failing
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string        `json:"method"`
		Params []interface{} `json:"params"`
		ID     int           `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	failing := n.failing
	drop := n.dropOnce[req.Method]
	if drop {
		delete(n.dropOnce, req.Method)
	}
	h := n.handlers[req.Method]
	n.mu.Unlock()

	if failing || drop {
		if drop && h != nil {
			h(req.Params)
		}
		hj, ok := w.(http.Hijacker)
		if !ok {
			panic("rpctest: response writer does not support hijacking")
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
		return
	}

	resp := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      req.ID,
	}
	if h == nil {
		resp["error"] = &NodeError{Code: -32601, Message: "Method not found"}
	} else if result, nodeErr := h(req.Params); nodeErr != nil {
		resp["error"] = nodeErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
