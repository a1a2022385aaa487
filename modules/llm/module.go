package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/specialistvlad/runbookgo/internal/oracle"
	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// NewModel creates the chat model described by s.
func NewModel(s registry.Settings) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(s.String("model", "gpt-4o")),
	}
	token := s.String("token", os.Getenv(s.String("token_env", "OPENAI_API_KEY")))
	if token != "" {
		opts = append(opts, openai.WithToken(token))
	}
	if baseURL := s.String("base_url", ""); baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	switch provider := s.String("provider", "openai"); provider {
	case "openai":
	case "azure":
		opts = append(opts,
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithAPIVersion(s.String("api_version", "2024-06-01")),
		)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
	return openai.New(opts...)
}

// Register registers the llm oracle.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterOracle("llm", func(_ context.Context, s registry.Settings) (oracle.Oracle, error) {
		retries, err := s.Int("retries", 2)
		if err != nil {
			return nil, err
		}
		timeout, err := s.Duration("timeout", 30*time.Second)
		if err != nil {
			return nil, err
		}
		model, err := NewModel(s)
		if err != nil {
			return nil, fmt.Errorf("create chat model: %w", err)
		}
		return NewOracle(model, retries, timeout), nil
	})
}
