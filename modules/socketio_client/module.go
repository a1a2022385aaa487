package socketio_client

import (
	"context"
	"time"

	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the socket.io invoker.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInvoker("socketio", func(ctx context.Context, s registry.Settings) (tools.Invoker, error) {
		url, err := s.Required("url")
		if err != nil {
			return nil, err
		}
		insecure, err := s.Bool("insecure_skip_verify", false)
		if err != nil {
			return nil, err
		}
		timeout, err := s.Duration("connect_timeout", 15*time.Second)
		if err != nil {
			return nil, err
		}
		return Dial(ctx, url, s.String("namespace", "/"), insecure, timeout)
	})
}
