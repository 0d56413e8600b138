// client.go wraps go-ethereum's JSON-RPC client for talking to Filecoin
// nodes. A single client type covers both supported transports: DialOptions
// picks HTTP or websocket from the URL scheme. Call failures are folded into
// a closed error-kind taxonomy so callers never have to sniff error strings.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// DefaultCallTimeout bounds a single RPC call unless the request overrides it.
const DefaultCallTimeout = 60 * time.Second

// Request is one JSON-RPC call to replay against both nodes. Params are
// marshalled positionally. A zero Timeout means DefaultCallTimeout.
type Request struct {
	Method  string
	Params  []interface{}
	Timeout time.Duration
}

// NewRequest builds a request with the default timeout.
func NewRequest(method string, params ...interface{}) Request {
	return Request{Method: method, Params: params}
}

// WithTimeout returns a copy of the request with a per-call timeout override.
func (r Request) WithTimeout(d time.Duration) Request {
	r.Timeout = d
	return r
}

// ErrKind is the closed classification signal exposed by CallError.
type ErrKind int

const (
	// KindInternal covers any failure without a more specific signal.
	KindInternal ErrKind = iota
	// KindMethodNotFound means the node does not serve the method.
	KindMethodNotFound
	// KindInvalidRequest means the node rejected the request itself
	// (malformed, invalid params, oversized).
	KindInvalidRequest
	// KindTimeout means the call exceeded its deadline.
	KindTimeout
)

// JSON-RPC 2.0 error codes relevant to classification.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// CallError is a classified RPC failure.
type CallError struct {
	Kind    ErrKind
	Code    int
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("rpc call failed (code %d): %s", e.Code, e.Message)
}

// Same reports whether two call errors are indistinguishable. Two nodes
// failing identically on the same request are treated as agreeing.
func (e *CallError) Same(o *CallError) bool {
	if o == nil {
		return false
	}
	return e.Kind == o.Kind && e.Code == o.Code && e.Message == o.Message
}

// Client issues JSON-RPC calls against one node endpoint. It is safe for
// concurrent use; the underlying go-ethereum client multiplexes requests.
type Client struct {
	inner          *gethrpc.Client
	defaultTimeout time.Duration
}

// Dial connects to the endpoint. For websocket endpoints the connection is
// established here and kept open for the whole run.
func Dial(ctx context.Context, e *Endpoint, defaultTimeout time.Duration) (*Client, error) {
	url, err := e.DialURL()
	if err != nil {
		return nil, err
	}
	var opts []gethrpc.ClientOption
	if e.Token != "" {
		opts = append(opts, gethrpc.WithHeader("Authorization", "Bearer "+e.Token))
	}
	inner, err := gethrpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultCallTimeout
	}
	return &Client{inner: inner, defaultTimeout: defaultTimeout}, nil
}

// Call performs one JSON-RPC call and returns the raw result. All failures
// come back as *CallError.
func (c *Client) Call(ctx context.Context, req Request) (json.RawMessage, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result json.RawMessage
	if err := c.inner.CallContext(ctx, &result, req.Method, req.Params...); err != nil {
		return nil, classify(err)
	}
	return result, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() {
	c.inner.Close()
}

// classify maps a transport or server error onto the closed kind taxonomy.
// Structured signals are preferred: the context deadline for timeouts and
// JSON-RPC error codes for the rest. The "timed out" message match is a
// deliberately narrow fallback for reference nodes that report call timeouts
// as code-0 server errors.
func classify(err error) *CallError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Kind: KindTimeout, Message: err.Error()}
	}
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		ce := &CallError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		switch ce.Code {
		case codeMethodNotFound:
			ce.Kind = KindMethodNotFound
		case codeParseError, codeInvalidRequest, codeInvalidParams:
			ce.Kind = KindInvalidRequest
		case 0:
			if strings.Contains(ce.Message, "timed out") {
				ce.Kind = KindTimeout
			}
		}
		return ce
	}
	return &CallError{Kind: KindInternal, Message: err.Error()}
}
