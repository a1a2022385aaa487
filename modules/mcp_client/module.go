// Package mcp_client invokes remote tools over the Model Context Protocol.
//
// The server is reached over SSE. Sessions are shared per URL, so the
// invoker and the capability provider of one app use the same connection.
//
//	modules:
//	  mcp:
//	    url: http://tools.internal:8080/sse
//	    tool: run_command
//	    connect_retries: 3
//	    header.Authorization: Bearer ...
package mcp_client

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func (m *Module) session(ctx context.Context, s registry.Settings) (*Session, error) {
	url, err := s.Required("url")
	if err != nil {
		return nil, err
	}
	retries, err := s.Int("connect_retries", 3)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[url]; ok && !sess.closed.Load() {
		return sess, nil
	}

	c, err := client.NewSSEMCPClient(url, transport.WithHeaders(s.Prefixed("header.")))
	if err != nil {
		return nil, err
	}
	sess, err := Connect(ctx, c, s.String("tool", DefaultTool), retries)
	if err != nil {
		return nil, err
	}
	if m.sessions == nil {
		m.sessions = make(map[string]*Session)
	}
	m.sessions[url] = sess
	return sess, nil
}

// Register registers the invoker and capability provider.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInvoker("mcp", func(ctx context.Context, s registry.Settings) (tools.Invoker, error) {
		return m.session(ctx, s)
	})
	r.RegisterProvider("mcp", func(ctx context.Context, s registry.Settings) (tools.Provider, error) {
		return m.session(ctx, s)
	})
}
