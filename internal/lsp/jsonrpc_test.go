package lsp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"
)

func TestReadMessage(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"test","params":{}}`
	tests := []struct {
		name    string
		input   string
		method  string
		wantErr bool
	}{
		{
			name:   "plain",
			input:  fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body),
			method: "test",
		},
		{
			name:   "content type and lowercase header",
			input:  fmt.Sprintf("content-length: %d\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n%s", len(body), body),
			method: "test",
		},
		{
			name:    "missing length",
			input:   "Content-Type: x\r\n\r\n" + body,
			wantErr: true,
		},
		{
			name:    "bad length",
			input:   "Content-Length: abc\r\n\r\n" + body,
			wantErr: true,
		},
		{
			name:    "short body",
			input:   "Content-Length: 500\r\n\r\n" + body,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := NewConn(&mockConn{Reader: strings.NewReader(tt.input), Writer: io.Discard}, nil)
			req, err := conn.readMessage()
			if tt.wantErr {
				if err == nil {
					t.Fatal("readMessage() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("readMessage() error = %v", err)
			}
			if req.Method != tt.method {
				t.Errorf("Method = %q, want %q", req.Method, tt.method)
			}
			if req.ID == nil {
				t.Error("ID should not be nil")
			}
		})
	}
}

func TestDispatchWritesResult(t *testing.T) {
	var buf bytes.Buffer
	conn := NewConn(&mockConn{Reader: bytes.NewReader(nil), Writer: &buf}, HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		return map[string]string{"status": "ok"}, nil
	}))

	conn.dispatch(context.Background(), &Request{JSONRPC: "2.0", ID: rawID(1), Method: "status"})

	output := buf.String()
	if !strings.HasPrefix(output, "Content-Length: ") {
		t.Errorf("output should start with a Content-Length header: %q", output)
	}
	if !strings.Contains(output, `"result":{"status":"ok"}`) {
		t.Errorf("output should contain the result: %q", output)
	}
}

func TestResponseError(t *testing.T) {
	err := &ResponseError{
		Code:    CodeMethodNotFound,
		Message: "method not found",
	}

	if err.Error() != "jsonrpc error -32601: method not found" {
		t.Errorf("Error() = %q, want %q", err.Error(), "jsonrpc error -32601: method not found")
	}
}

func TestHandlerFunc(t *testing.T) {
	called := false
	h := HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		called = true
		return "ok", nil
	})

	result, err := h.Handle(context.Background(), &Request{Method: "test"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "ok" {
		t.Errorf("result = %v, want %q", result, "ok")
	}
}

type mockConn struct {
	io.Reader
	io.Writer
}

func (m *mockConn) Close() error {
	return nil
}

func frame(body string) string {
	return "Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
}

func TestRunOrdersNotificationsAndSkipsResponses(t *testing.T) {
	input := frame(`{"jsonrpc":"2.0","method":"first"}`) +
		frame(`{"jsonrpc":"2.0","id":7,"result":null}`) +
		frame(`{"jsonrpc":"2.0","method":"second"}`)

	var methods []string
	conn := NewConn(&mockConn{
		Reader: strings.NewReader(input),
		Writer: io.Discard,
	}, HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		methods = append(methods, req.Method)
		return nil, nil
	}))

	if err := conn.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.Join(methods, ",") != "first,second" {
		t.Errorf("handled %v, want [first second]", methods)
	}
}

func TestCallAndNotify(t *testing.T) {
	var buf bytes.Buffer
	conn := NewConn(&mockConn{Reader: bytes.NewReader(nil), Writer: &buf}, nil)

	if err := conn.Call(context.Background(), "window/workDoneProgress/create", map[string]string{"token": "t"}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if err := conn.Notify(context.Background(), "$/progress", map[string]string{"token": "t"}); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"id":1,"method":"window/workDoneProgress/create"`) {
		t.Errorf("Call output missing request id:\n%s", out)
	}
	if strings.Count(out, "Content-Length:") != 2 {
		t.Errorf("expected two framed messages:\n%s", out)
	}
}

func TestDispatchUsesResponseError(t *testing.T) {
	var buf bytes.Buffer
	conn := NewConn(&mockConn{Reader: bytes.NewReader(nil), Writer: &buf}, HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
		return nil, fmt.Errorf("wrapped: %w", ErrMethodNotFound)
	}))

	conn.dispatch(context.Background(), &Request{JSONRPC: "2.0", ID: rawID(3), Method: "nope"})
	if !strings.Contains(buf.String(), `"code":-32601`) {
		t.Errorf("response = %s, want method-not-found code", buf.String())
	}
}
