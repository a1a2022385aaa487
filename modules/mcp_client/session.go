package mcp_client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sethvargo/go-retry"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// DefaultTool is called when an execution agent names no tool of its own.
const DefaultTool = "run_command"

var ErrToolNotBound = errors.New("tool is not bound to the agent")

// Session is an initialised MCP client. It is safe for sequential use and
// may back both the invoker and the capability provider of a run.
type Session struct {
	client      *client.Client
	defaultTool string

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// Connect starts c and performs the MCP handshake. Starting the transport is
// retried up to retries times with exponential backoff.
func Connect(ctx context.Context, c *client.Client, defaultTool string, retries int) (*Session, error) {
	logger := ctxlog.FromContext(ctx)
	if defaultTool == "" {
		defaultTool = DefaultTool
	}

	backoff := retry.WithMaxRetries(uint64(max(retries, 0)), retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.Start(ctx); err != nil {
			logger.Warn("MCP transport start failed, retrying.", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "runbookgo", Version: "1"}
	info, err := c.Initialize(ctx, req)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("MCP initialize failed: %w", err)
	}
	logger.Info("Connected to MCP server.", "server", info.ServerInfo.Name, "version", info.ServerInfo.Version)
	return &Session{client: c, defaultTool: defaultTool}, nil
}

// Capabilities lists the tools the server exposes.
func (s *Session) Capabilities(ctx context.Context) (tools.Set, error) {
	res, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return tools.Set{}, fmt.Errorf("MCP list tools: %w", err)
	}
	names := make([]string, 0, len(res.Tools))
	for _, t := range res.Tools {
		names = append(names, t.Name)
	}
	return tools.NewSet(names...), nil
}

// Invoke calls the agent's tool with the command and the target node.
func (s *Session) Invoke(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	logger := ctxlog.FromContext(ctx).With("agent", inv.Agent, "target", inv.Target)

	name := inv.Tool
	if name == "" {
		name = s.defaultTool
	}
	if !slices.Contains(inv.Tools, name) {
		return tools.Result{Status: tools.StatusError, Output: fmt.Sprintf("%s: %q", ErrToolNotBound, name)}, nil
	}

	args := map[string]any{
		"command": inv.Command,
		"node":    inv.Target,
	}
	if inv.Timeout > 0 {
		args["timeout_seconds"] = int(inv.Timeout.Seconds())
	}

	logger.Debug("Calling MCP tool.", "tool", name)
	res, err := s.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return tools.Result{Status: tools.StatusTimeout, Output: err.Error()}, nil
		}
		return tools.Result{}, fmt.Errorf("MCP call %s: %w", name, err)
	}

	out := tools.Result{Status: tools.StatusOK, Output: text(res)}
	if res.IsError {
		out.Status = tools.StatusError
	}
	return out, nil
}

// Close closes the underlying client once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func text(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
