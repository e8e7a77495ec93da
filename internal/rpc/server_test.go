package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"formedit/engine/internal/errinfo"
)

func serveLines(t *testing.T, server *Server, output *bytes.Buffer) []Response {
	t.Helper()
	if err := server.Serve(context.Background()); err != nil {
		t.Fatalf("serve: %v", err)
	}
	var out []Response
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		out = append(out, resp)
	}
	return out
}

func TestServerHandlesRequest(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"Ping\",\"api_version\":\"1\"}\n"
	var output bytes.Buffer
	server := NewServer("1", strings.NewReader(input), &output, nil)
	server.Register("Ping", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return map[string]any{"pong": true}, nil
	})

	responses := serveLines(t, server, &output)
	if len(responses) != 1 {
		t.Fatalf("expected one response, got %d", len(responses))
	}
	if responses[0].Error != nil {
		t.Fatalf("unexpected error: %v", responses[0].Error)
	}
	result := responses[0].Result.(map[string]any)
	if result["pong"] != true {
		t.Fatalf("expected pong true")
	}
}

func TestServerReportsErrorInfo(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"id\":7,\"method\":\"SessionGet\"}"
	var output bytes.Buffer
	server := NewServer("1", strings.NewReader(input), &output, nil)
	server.RegisterInfo("SessionGet", func(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
		return nil, errinfo.SessionNotFound("abc")
	})

	responses := serveLines(t, server, &output)
	if len(responses) != 1 || responses[0].Error == nil {
		t.Fatalf("expected an error response, got %+v", responses)
	}
	if responses[0].Error.Message != errinfo.CodeSessionNotFound {
		t.Fatalf("expected code as message, got %q", responses[0].Error.Message)
	}
	data := responses[0].Error.Data.(map[string]any)
	if data["error_code"] != errinfo.CodeSessionNotFound || data["session_id"] != "abc" {
		t.Fatalf("unexpected error data %v", data)
	}
}

func TestServerRejectsBadRequests(t *testing.T) {
	input := strings.Join([]string{
		"not json",
		"{\"jsonrpc\":\"1.0\",\"id\":1,\"method\":\"Ping\"}",
		"{\"jsonrpc\":\"2.0\",\"id\":2,\"method\":\"Ping\",\"api_version\":\"9\"}",
		"{\"jsonrpc\":\"2.0\",\"id\":3,\"method\":\"Missing\"}",
		"",
	}, "\n")
	var output bytes.Buffer
	server := NewServer("1", strings.NewReader(input), &output, nil)
	server.Register("Ping", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return "pong", nil
	})

	responses := serveLines(t, server, &output)
	if len(responses) != 4 {
		t.Fatalf("expected four error responses, got %d", len(responses))
	}
	want := []string{"invalid json", "invalid jsonrpc version", "incompatible api_version", "method not found: Missing"}
	for i, resp := range responses {
		if resp.Error == nil || resp.Error.Message != want[i] {
			t.Fatalf("response %d: expected %q, got %+v", i, want[i], resp.Error)
		}
	}
}

func TestServerRecoversHandlerPanic(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"Boom\"}\n"
	var output bytes.Buffer
	server := NewServer("1", strings.NewReader(input), &output, nil)
	server.Register("Boom", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		panic("boom")
	})

	responses := serveLines(t, server, &output)
	if len(responses) != 1 || responses[0].Error == nil || responses[0].Error.Message != "internal error" {
		t.Fatalf("expected internal error, got %+v", responses)
	}
	if got := server.Methods(); len(got) != 1 || got[0] != "Boom" {
		t.Fatalf("unexpected methods %v", got)
	}
}
