package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"formedit/engine/internal/errinfo"
	"formedit/engine/internal/logging"
)

const (
	jsonRPCVersion = "2.0"
	rpcErrorCode   = -32000
	maxMessageSize = 10 * 1024 * 1024
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	APIVer  string          `json:"api_version,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler func(ctx context.Context, params json.RawMessage) (any, *Error)

// InfoHandler is the engine-side handler shape; failures carry an ErrorInfo
// that is sent as the error data.
type InfoHandler func(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)

type Error struct {
	Message string
	Data    any
}

// Server reads newline-delimited JSON-RPC requests and answers each one
// from its own goroutine. Writes are serialized.
type Server struct {
	apiVersion string
	reader     *bufio.Reader
	writer     *bufio.Writer
	mu         sync.Mutex
	handlers   map[string]Handler
	inflight   sync.WaitGroup
	logger     *slog.Logger
}

func NewServer(apiVersion string, r io.Reader, w io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		apiVersion: apiVersion,
		reader:     bufio.NewReader(r),
		writer:     bufio.NewWriter(w),
		handlers:   make(map[string]Handler),
		logger:     logger.With("component", "rpc"),
	}
}

func (s *Server) Register(method string, handler Handler) {
	s.handlers[method] = handler
}

// RegisterInfo registers an engine handler. The error message is the
// detail when present, otherwise the error code.
func (s *Server) RegisterInfo(method string, fn InfoHandler) {
	s.Register(method, func(ctx context.Context, params json.RawMessage) (any, *Error) {
		result, info := fn(ctx, params)
		if info == nil {
			return result, nil
		}
		msg := info.ErrorCode
		if info.Detail != "" {
			msg = info.Detail
		}
		return nil, &Error{Message: msg, Data: info}
	})
}

// Methods lists registered method names in order.
func (s *Server) Methods() []string {
	out := make([]string, 0, len(s.handlers))
	for method := range s.handlers {
		out = append(out, method)
	}
	sort.Strings(out)
	return out
}

// Serve runs until the reader is exhausted. Requests still being handled
// at end of input are answered before Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	defer s.inflight.Wait()
	for {
		line, err := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			s.dispatch(ctx, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.logger.Error("rpc.read_failed", "error", err.Error())
			return err
		}
	}
}

func (s *Server) dispatch(ctx context.Context, line []byte) {
	if len(line) > maxMessageSize {
		s.logger.Warn("rpc.message_too_large", "bytes", len(line))
		s.sendError(nil, "message too large", nil)
		return
	}
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warn("rpc.invalid_json", "error", err.Error())
		s.sendError(nil, "invalid json", nil)
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		s.logger.Warn("rpc.invalid_version", "version", req.JSONRPC)
		s.sendError(req.ID, "invalid jsonrpc version", nil)
		return
	}
	if req.APIVer != "" && req.APIVer != s.apiVersion {
		s.logger.Warn("rpc.incompatible_version", "requested", req.APIVer, "expected", s.apiVersion)
		s.sendError(req.ID, "incompatible api_version", map[string]string{"expected": s.apiVersion})
		return
	}
	handler, ok := s.handlers[req.Method]
	if !ok {
		s.logger.Warn("rpc.method_not_found", "method", req.Method)
		s.sendError(req.ID, fmt.Sprintf("method not found: %s", req.Method), nil)
		return
	}
	s.logger.Debug("rpc.request", "method", req.Method, "id", string(req.ID), "params", logging.CompactJSON(req.Params))
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.handleRequest(ctx, req, handler)
	}()
}

func (s *Server) handleRequest(ctx context.Context, req Request, handler Handler) {
	result, err := s.call(ctx, req, handler)
	if req.ID == nil {
		return
	}
	if err != nil {
		s.logger.Error("rpc.response_error", "method", req.Method, "id", string(req.ID), "error", logging.CompactAny(err.Data))
		s.sendError(req.ID, err.Message, err.Data)
		return
	}
	s.logger.Debug("rpc.response", "method", req.Method, "id", string(req.ID), "result", logging.CompactAny(result))
	s.send(Response{JSONRPC: jsonRPCVersion, ID: req.ID, Result: result})
}

func (s *Server) call(ctx context.Context, req Request, handler Handler) (result any, rpcErr *Error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("rpc.handler_panic", "method", req.Method, "panic", fmt.Sprint(r))
			result, rpcErr = nil, &Error{Message: "internal error"}
		}
	}()
	return handler(ctx, req.Params)
}

func (s *Server) Notify(method string, params any) {
	s.logger.Debug("rpc.notify", "method", method, "params", logging.CompactAny(params))
	s.send(Notification{JSONRPC: jsonRPCVersion, Method: method, Params: params})
}

func (s *Server) sendError(id json.RawMessage, message string, data any) {
	s.send(Response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &ErrorPayload{Code: rpcErrorCode, Message: message, Data: data},
	})
}

func (s *Server) send(payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("rpc.marshal_failed", "error", err.Error())
		return
	}
	_, _ = s.writer.Write(append(data, '\n'))
	_ = s.writer.Flush()
}
