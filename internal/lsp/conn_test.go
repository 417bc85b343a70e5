// ABOUTME: Tests for Content-Length framing.
// ABOUTME: Covers header parsing, malformed frames, and encode/decode round trips.
package lsp

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrameHeaders(t *testing.T) {
	input := "content-length: 2\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n{}" +
		"Content-Length: 4\r\n\r\nnull"
	r := bufio.NewReader(strings.NewReader(input))

	body, err := readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))

	body, err = readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "null", string(body))

	_, err = readFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameErrors(t *testing.T) {
	tests := map[string]string{
		"missing length": "Content-Type: x\r\n\r\n{}",
		"bad length":     "Content-Length: abc\r\n\r\n{}",
		"malformed":      "nonsense\r\n\r\n",
		"short body":     "Content-Length: 10\r\n\r\n{}",
		"cut header":     "Content-Length: 2",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := readFrame(bufio.NewReader(strings.NewReader(input)))
			require.Error(t, err)
		})
	}
	_, err := readFrame(bufio.NewReader(strings.NewReader("Content-Type: x\r\n\r\n")))
	assert.ErrorIs(t, err, ErrMissingContentLength)
}

func TestConnRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := NewConn(nil, &buf)
	require.NoError(t, writer.Notify("window/logMessage", logMessageParams{Type: MessageTypeInfo, Message: "hi"}))

	reader := NewConn(&buf, io.Discard)
	msg, err := reader.Read()
	require.NoError(t, err)
	req, ok := msg.(*jsonrpc.Request)
	require.True(t, ok)
	assert.False(t, req.IsCall())
	assert.Equal(t, "window/logMessage", req.Method)
	assert.JSONEq(t, `{"type":3,"message":"hi"}`, string(req.Params))
}

func TestConnReadDecodeError(t *testing.T) {
	conn := NewConn(strings.NewReader("Content-Length: 5\r\n\r\nhello"), io.Discard)
	_, err := conn.Read()
	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}
