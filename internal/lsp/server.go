// ABOUTME: Language server that turns textDocument/didChange notifications into XP.
// ABOUTME: Implements the initialize/shutdown/exit lifecycle and nothing else of LSP.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/2389-research/codestats-ls/internal/languages"
	"github.com/2389-research/codestats-ls/internal/version"
)

// TextDocumentSyncIncremental asks the client to send only changed ranges.
const TextDocumentSyncIncremental = 2

// Recorder accumulates XP for a language.
type Recorder interface {
	Record(language string, amount uint32)
}

// Server handles one editor session.
type Server struct {
	conn         *Conn
	recorder     Recorder
	logger       *slog.Logger
	onClientInfo func(name, clientVersion string)

	initialized  bool
	shuttingDown bool
}

// Option configures a Server.
type Option func(*Server)

// WithClientInfo registers a callback invoked with the editor's name and
// version from the initialize request.
func WithClientInfo(fn func(name, clientVersion string)) Option {
	return func(s *Server) {
		s.onClientInfo = fn
	}
}

// NewServer creates a Server that records XP through recorder.
func NewServer(conn *Conn, recorder Recorder, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		conn:     conn,
		recorder: recorder,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type readResult struct {
	msg jsonrpc.Message
	err error
}

// Serve handles messages until the client sends exit, the stream ends,
// or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	messages := make(chan readResult)
	go func() {
		for {
			msg, err := s.conn.Read()
			select {
			case messages <- readResult{msg: msg, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				var decodeErr *DecodeError
				if !errors.As(err, &decodeErr) {
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-messages:
			if res.err != nil {
				var decodeErr *DecodeError
				if errors.As(res.err, &decodeErr) {
					s.logger.Warn("Received malformed message", "error", res.err)
					if err := s.conn.ReplyError(nil, CodeParseError, res.err.Error()); err != nil {
						return err
					}
					continue
				}
				if errors.Is(res.err, io.EOF) {
					s.logger.Debug("client closed the connection")
					return nil
				}
				return fmt.Errorf("failed to read message: %w", res.err)
			}

			done, err := s.handle(ctx, res.msg)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// handle dispatches one message. It reports true once the session is over.
func (s *Server) handle(ctx context.Context, msg jsonrpc.Message) (bool, error) {
	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		// Responses to requests this server never sends.
		return false, nil
	}
	if req.IsCall() {
		return false, s.handleCall(ctx, req)
	}
	return s.handleNotification(ctx, req), nil
}

func (s *Server) handleCall(ctx context.Context, req *jsonrpc.Request) error {
	switch {
	case req.Method == "initialize":
		return s.initialize(req)
	case !s.initialized:
		return s.conn.ReplyError(req, CodeServerNotInitialized, "server not initialized")
	case req.Method == "shutdown":
		s.shuttingDown = true
		return s.conn.Write(&jsonrpc.Response{ID: req.ID, Result: json.RawMessage("null")})
	case s.shuttingDown:
		return s.conn.ReplyError(req, CodeInvalidRequest, "server is shutting down")
	default:
		return s.conn.ReplyError(req, CodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) handleNotification(ctx context.Context, req *jsonrpc.Request) bool {
	switch req.Method {
	case "initialized":
		s.logger.Info("Code::Stats language server initialized")
	case "textDocument/didChange":
		s.didChange(req)
	case "exit":
		if !s.shuttingDown {
			s.logger.Warn("exit received without shutdown")
		}
		return true
	default:
		s.logger.Debug("ignoring notification", "method", req.Method)
	}
	return false
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type initializeParams struct {
	ClientInfo *clientInfo `json:"clientInfo,omitempty"`
}

type serverCapabilities struct {
	TextDocumentSync int `json:"textDocumentSync"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
	ServerInfo   clientInfo         `json:"serverInfo"`
}

func (s *Server) initialize(req *jsonrpc.Request) error {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.conn.ReplyError(req, CodeInvalidParams, "invalid initialize params: "+err.Error())
		}
	}
	if params.ClientInfo != nil && params.ClientInfo.Name != "" {
		s.logger.Debug("editor identified", "name", params.ClientInfo.Name, "version", params.ClientInfo.Version)
		if s.onClientInfo != nil {
			s.onClientInfo(params.ClientInfo.Name, params.ClientInfo.Version)
		}
	}
	s.initialized = true

	return s.conn.Reply(req, initializeResult{
		Capabilities: serverCapabilities{TextDocumentSync: TextDocumentSyncIncremental},
		ServerInfo:   clientInfo{Name: version.Name, Version: version.Version},
	})
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type didChangeParams struct {
	TextDocument   textDocumentIdentifier `json:"textDocument"`
	ContentChanges []json.RawMessage      `json:"contentChanges"`
}

func (s *Server) didChange(req *jsonrpc.Request) {
	var params didChangeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.logger.Warn("Invalid didChange params", "error", err)
		return
	}

	language, ok := languages.ForDocument(params.TextDocument.URI)
	if !ok {
		s.logger.Warn("No language for file: " + languages.DocumentPath(params.TextDocument.URI))
		return
	}
	s.recorder.Record(language, uint32(len(params.ContentChanges)))
}
