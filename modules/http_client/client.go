// Package http_client invokes tools through a JSON HTTP gateway.
//
// The gateway answers two endpoints:
//
//	POST /invoke  {"agent","command","node","tool","timeout_seconds","tools"}
//	              -> {"status": "OK"|"ERROR"|"TIMEOUT", "output": "..."}
//	GET  /tools   -> {"tools": ["run_command", ...]}
package http_client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

type invokeRequest struct {
	Agent          string   `json:"agent"`
	Command        string   `json:"command"`
	Node           string   `json:"node"`
	Tool           string   `json:"tool,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	Tools          []string `json:"tools"`
}

type invokeResponse struct {
	Status string `json:"status"`
	Output string `json:"output"`
}

type toolsResponse struct {
	Tools []string `json:"tools"`
}

// Client talks to a tool gateway.
type Client struct {
	http *resty.Client
}

// NewClient creates a Client for the gateway at baseURL.
func NewClient(baseURL string, timeout time.Duration, headers map[string]string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeaders(headers).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	return &Client{http: c}
}

// Invoke implements tools.Invoker.
func (c *Client) Invoke(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	logger := ctxlog.FromContext(ctx).With("agent", inv.Agent, "target", inv.Target)

	var out invokeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(invokeRequest{
			Agent:          inv.Agent,
			Command:        inv.Command,
			Node:           inv.Target,
			Tool:           inv.Tool,
			TimeoutSeconds: int(inv.Timeout.Seconds()),
			Tools:          inv.Tools,
		}).
		SetResult(&out).
		Post("/invoke")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return tools.Result{Status: tools.StatusTimeout, Output: err.Error()}, nil
		}
		return tools.Result{}, fmt.Errorf("tool gateway request failed: %w", err)
	}
	if resp.IsError() {
		return tools.Result{}, fmt.Errorf("tool gateway returned %s: %s", resp.Status(), resp.String())
	}

	status := tools.Status(out.Status)
	switch status {
	case tools.StatusOK, tools.StatusError, tools.StatusTimeout:
	default:
		return tools.Result{}, fmt.Errorf("tool gateway returned unknown status %q", out.Status)
	}
	logger.Debug("Tool gateway answered.", "status", status, "duration", resp.Time())
	return tools.Result{Status: status, Output: out.Output}, nil
}

// Capabilities implements tools.Provider.
func (c *Client) Capabilities(ctx context.Context) (tools.Set, error) {
	var out toolsResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/tools")
	if err != nil {
		return tools.Set{}, fmt.Errorf("tool gateway request failed: %w", err)
	}
	if resp.IsError() {
		return tools.Set{}, fmt.Errorf("tool gateway returned %s", resp.Status())
	}
	return tools.NewSet(out.Tools...), nil
}
