package http_client

import (
	"context"
	"time"

	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func newClient(s registry.Settings) (*Client, error) {
	url, err := s.Required("url")
	if err != nil {
		return nil, err
	}
	timeout, err := s.Duration("timeout", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	return NewClient(url, timeout, s.Prefixed("header.")), nil
}

// Register registers the invoker and capability provider.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInvoker("http", func(_ context.Context, s registry.Settings) (tools.Invoker, error) {
		return newClient(s)
	})
	r.RegisterProvider("http", func(_ context.Context, s registry.Settings) (tools.Provider, error) {
		return newClient(s)
	})
}
