package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

// fakeTransport is an in-process Transport double for exercising Client
// without spawning a subprocess.
type fakeTransport struct {
	connected   bool
	calls       []string
	unsupported map[string]bool
	results     map[string]json.RawMessage
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{unsupported: map[string]bool{}, results: map[string]json.RawMessage{}}
}

func (f *fakeTransport) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeTransport) Close() error                      { f.connected = false; return nil }

func (f *fakeTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	f.calls = append(f.calls, method)
	if method == "initialize" {
		return json.Marshal(InitializeResult{
			ProtocolVersion: "2024-11-05",
			ServerInfo:      ServerInfo{Name: "fake", Version: "0.1"},
		})
	}
	if f.unsupported[method] {
		return nil, &RPCError{Code: ErrCodeMethodNotFound, Message: "method not found"}
	}
	if result, ok := f.results[method]; ok {
		return result, nil
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeTransport) Notify(ctx context.Context, method string, params any) error { return nil }
func (f *fakeTransport) Events() <-chan *JSONRPCNotification                         { return make(chan *JSONRPCNotification) }
func (f *fakeTransport) Connected() bool                                             { return f.connected }

func (f *fakeTransport) callCount(method string) int {
	n := 0
	for _, m := range f.calls {
		if m == method {
			n++
		}
	}
	return n
}

func newTestClient(ft *fakeTransport) *Client {
	return &Client{
		config:    &ServerConfig{ID: "test"},
		transport: ft,
		logger:    slog.Default(),
		supported: make(map[string]bool),
	}
}

func TestClient_DiscoverCapabilities_SystemMethods(t *testing.T) {
	ft := newFakeTransport()
	ft.results["system/methods"] = json.RawMessage(`{"methods":["tools/list","tools/call"]}`)
	c := newTestClient(ft)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !c.Supports("tools/list") {
		t.Error("expected tools/list to be supported per system/methods")
	}
	if !c.Supports("resources/list") {
		t.Error("unprobed method should default to supported")
	}
}

func TestClient_DiscoverCapabilities_ProbingFallback(t *testing.T) {
	ft := newFakeTransport()
	ft.unsupported["system/methods"] = true
	ft.unsupported["prompts/render"] = true
	c := newTestClient(ft)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if c.Supports("prompts/render") {
		t.Error("expected prompts/render to be probed as unsupported")
	}
	if !c.Supports("tools/list") {
		t.Error("expected tools/list to be probed as supported")
	}
}

func TestClient_UnsupportedMethodSkipsWireCall(t *testing.T) {
	ft := newFakeTransport()
	c := newTestClient(ft)
	c.supported["resources/list"] = false

	_, err := c.call(context.Background(), "resources/list", nil)
	if err == nil {
		t.Fatal("expected error for unsupported method")
	}
	if ft.callCount("resources/list") != 0 {
		t.Errorf("expected no wire call for unsupported method, got %d", ft.callCount("resources/list"))
	}
}

func TestClient_SupportedMethodMakesWireCall(t *testing.T) {
	ft := newFakeTransport()
	ft.results["tools/list"] = json.RawMessage(`{"tools":[]}`)
	c := newTestClient(ft)

	if _, err := c.call(context.Background(), "tools/list", nil); err != nil {
		t.Fatalf("call() error = %v", err)
	}
	if ft.callCount("tools/list") != 1 {
		t.Errorf("expected exactly one wire call, got %d", ft.callCount("tools/list"))
	}
}
