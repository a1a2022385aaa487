// Package socketio_client invokes tools over a socket.io connection.
//
// Each invocation is emitted as an "invoke" event carrying a request id. The
// server answers with a "result" event echoing the id:
//
//	-> invoke {"id","agent","command","node","tool","timeout_seconds"}
//	<- result {"id","status","output"}
package socketio_client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/tools"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const (
	eventInvoke = "invoke"
	eventResult = "result"
)

type reply struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output string `json:"output"`
}

// Client is a connected socket.io tool channel.
type Client struct {
	io *socket.Socket

	mu      sync.Mutex
	pending map[string]chan reply

	closeOnce sync.Once
}

// Dial connects to the socket.io server at rawURL and waits for the
// connection to be acknowledged.
func Dial(ctx context.Context, rawURL, namespace string, insecureSkipVerify bool, connectTimeout time.Duration) (*Client, error) {
	logger := ctxlog.FromContext(ctx).With("module", "socketio", "url", rawURL)
	logger.Info("Connecting to tool channel...")

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if insecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	c := &Client{io: io, pending: make(map[string]chan reply)}
	connected := make(chan error, 1)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to tool channel.", "sid", io.Id())
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})
	io.On(types.EventName(eventResult), func(data ...any) {
		c.dispatch(ctx, data...)
	})

	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return c, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(connectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", connectTimeout)
	}
}

// Invoke implements tools.Invoker.
func (c *Client) Invoke(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	if !c.io.Connected() {
		return tools.Result{}, errors.New("socket.io client is not connected")
	}

	id := uuid.NewString()
	ch := c.expect(id)
	defer c.forget(id)

	c.io.Emit(eventInvoke, map[string]any{
		"id":              id,
		"agent":           inv.Agent,
		"command":         inv.Command,
		"node":            inv.Target,
		"tool":            inv.Tool,
		"timeout_seconds": int(inv.Timeout.Seconds()),
	})

	select {
	case r := <-ch:
		return toResult(r)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return tools.Result{Status: tools.StatusTimeout, Output: "no result before the deadline"}, nil
		}
		return tools.Result{}, ctx.Err()
	}
}

// Close disconnects once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.io != nil {
			c.io.Disconnect()
		}
	})
	return nil
}

func (c *Client) expect(id string) chan reply {
	ch := make(chan reply, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// dispatch routes a result event to the invocation waiting for it. Late
// results for abandoned invocations are dropped.
func (c *Client) dispatch(ctx context.Context, data ...any) {
	logger := ctxlog.FromContext(ctx)
	r, err := decodeReply(data)
	if err != nil {
		logger.Warn("Dropping malformed result event.", "error", err)
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[r.ID]
	c.mu.Unlock()
	if !ok {
		logger.Debug("Dropping result for unknown request.", "id", r.ID)
		return
	}
	select {
	case ch <- r:
	default:
	}
}

func decodeReply(data []any) (reply, error) {
	if len(data) == 0 {
		return reply{}, errors.New("result event has no payload")
	}
	raw, err := json.Marshal(data[0])
	if err != nil {
		return reply{}, err
	}
	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return reply{}, fmt.Errorf("decode result: %w", err)
	}
	if r.ID == "" {
		return reply{}, errors.New("result event has no id")
	}
	return r, nil
}

func toResult(r reply) (tools.Result, error) {
	status := tools.Status(r.Status)
	switch status {
	case tools.StatusOK, tools.StatusError, tools.StatusTimeout:
		return tools.Result{Status: status, Output: r.Output}, nil
	}
	return tools.Result{}, fmt.Errorf("tool channel returned unknown status %q", r.Status)
}
