// Package lsp implements a Language Server Protocol server for Robot Framework.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Request is a JSON-RPC request or notification. Responses from the client
// decode into it too, with an empty Method.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"` // nil for notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC error.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific error codes
	CodeRequestCancelled = -32800
	CodeContentModified  = -32801
	CodeRequestFailed    = -32803
)

// Conn handles JSON-RPC communication over an io.ReadWriteCloser.
type Conn struct {
	rwc     io.ReadWriteCloser
	reader  *bufio.Reader
	writeMu sync.Mutex

	handler Handler
	nextID  atomic.Int64
}

// Handler processes incoming requests.
type Handler interface {
	Handle(ctx context.Context, req *Request) (result any, err error)
}

// HandlerFunc is an adapter to use functions as Handler.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}

// NewConn creates a new JSON-RPC connection.
func NewConn(rwc io.ReadWriteCloser, handler Handler) *Conn {
	return &Conn{
		rwc:     rwc,
		reader:  bufio.NewReader(rwc),
		handler: handler,
	}
}

// Run reads and handles messages until EOF or error.
func (c *Conn) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := c.readMessage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading message: %w", err)
		}

		switch {
		case msg.Method == "":
			// A response to one of our requests; results are not used.
		case msg.ID == nil:
			// Notifications mutate document state and must stay ordered.
			c.dispatch(ctx, msg)
		default:
			go c.dispatch(ctx, msg)
		}
	}
}

// readMessage reads one framed message. Header names are matched without
// regard to case; headers other than Content-Length are ignored.
func (c *Conn) readMessage() (*Request, error) {
	length := -1
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", value)
		}
		length = n
	}
	if length <= 0 {
		return nil, errors.New("missing Content-Length header")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	var msg Request
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	return &msg, nil
}

// dispatch runs the handler and, for requests, writes the response.
func (c *Conn) dispatch(ctx context.Context, req *Request) {
	result, err := c.handler.Handle(ctx, req)
	if req.ID == nil {
		return
	}

	resp := Response{JSONRPC: "2.0", ID: req.ID, Result: result}
	if err != nil {
		resp.Result = nil
		var rpcErr *ResponseError
		if !errors.As(err, &rpcErr) {
			rpcErr = &ResponseError{Code: CodeInternalError, Message: err.Error()}
		}
		resp.Error = rpcErr
	}

	body, err := json.Marshal(resp)
	if err == nil {
		err = c.write(body)
	}
	if err != nil {
		log.Printf("jsonrpc: %s: %v", req.Method, err)
	}
}

func (c *Conn) write(body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	frame := make([]byte, 0, len(body)+32)
	frame = fmt.Appendf(frame, "Content-Length: %d\r\n\r\n", len(body))
	frame = append(frame, body...)
	if _, err := c.rwc.Write(frame); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// Notify sends a notification to the client (no response expected).
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	return c.send(Request{JSONRPC: "2.0", Method: method}, params)
}

// Call sends a request to the client. The response is read and dropped
// by Run, so Call suits requests whose result the server does not need.
func (c *Conn) Call(ctx context.Context, method string, params any) error {
	id := json.RawMessage(strconv.FormatInt(c.nextID.Add(1), 10))
	return c.send(Request{JSONRPC: "2.0", ID: &id, Method: method}, params)
}

func (c *Conn) send(req Request, params any) error {
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling params: %w", err)
		}
		req.Params = data
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", req.Method, err)
	}
	return c.write(body)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.rwc.Close()
}

// ErrMethodNotFound is returned when a method is not implemented.
var ErrMethodNotFound = &ResponseError{
	Code:    CodeMethodNotFound,
	Message: "method not found",
}
