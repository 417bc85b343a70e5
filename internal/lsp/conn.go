// ABOUTME: LSP base protocol transport: Content-Length framed JSON-RPC 2.0 messages.
// ABOUTME: Reads are single-consumer; writes are serialized so handlers and loggers can share it.
package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// JSON-RPC error codes used by the server.
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeServerNotInitialized = -32002
)

const headerContentLength = "content-length"

// ErrMissingContentLength is returned for a frame header block without a length.
var ErrMissingContentLength = errors.New("missing Content-Length header")

// Conn is one side of an LSP stream.
type Conn struct {
	r  *bufio.Reader
	mu sync.Mutex
	w  io.Writer
}

// NewConn creates a Conn reading frames from r and writing frames to w.
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{r: bufio.NewReader(r), w: w}
}

// Read returns the next message. It returns io.EOF when the stream ends
// cleanly between frames. A frame whose body is not a JSON-RPC message
// yields a *DecodeError and leaves the stream positioned at the next frame.
func (c *Conn) Read() (jsonrpc.Message, error) {
	body, err := readFrame(c.r)
	if err != nil {
		return nil, err
	}
	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return msg, nil
}

// Write encodes and sends msg as one frame.
func (c *Conn) Write(msg jsonrpc.Message) error {
	body, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return c.writeFrame(body)
}

// Reply sends a successful response to req.
func (c *Conn) Reply(req *jsonrpc.Request, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return c.Write(&jsonrpc.Response{ID: req.ID, Result: raw})
}

// ReplyError sends an error response. A nil req replies with a null id,
// as for a frame that could not be parsed.
func (c *Conn) ReplyError(req *jsonrpc.Request, code int64, message string) error {
	resp := errorResponse{
		JSONRPC: "2.0",
		Error:   responseError{Code: code, Message: message},
	}
	if req != nil {
		resp.ID = req.ID.Raw()
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal error response: %w", err)
	}
	return c.writeFrame(body)
}

// Notify sends a notification to the peer.
func (c *Conn) Notify(method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal %s params: %w", method, err)
	}
	return c.Write(&jsonrpc.Request{Method: method, Params: raw})
}

func (c *Conn) writeFrame(body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := c.w.Write(body); err != nil {
		return fmt.Errorf("failed to write frame body: %w", err)
	}
	return nil
}

// DecodeError wraps a frame body that is not valid JSON-RPC.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "failed to decode message: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type responseError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Error   responseError `json:"error"`
}

// readFrame reads one header block and its body.
func readFrame(r *bufio.Reader) ([]byte, error) {
	length := -1
	sawHeader := false
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && !sawHeader && line == "" {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read frame header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if !sawHeader {
				continue
			}
			break
		}
		sawHeader = true

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed frame header %q", line)
		}
		if strings.ToLower(strings.TrimSpace(name)) != headerContentLength {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", value)
		}
		length = n
	}

	if length < 0 {
		return nil, ErrMissingContentLength
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}
	return body, nil
}
