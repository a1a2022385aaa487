// Package llm answers decisions with a chat model through langchaingo.
//
//	modules:
//	  llm:
//	    provider: azure            # or openai
//	    model: gpt-4o              # the deployment name for azure
//	    base_url: https://example.openai.azure.com
//	    api_version: 2024-06-01
//	    token_env: AZURE_OPENAI_API_KEY
//	    retries: 2
//	    timeout: 30s
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/oracle"
	"github.com/tmc/langchaingo/llms"
)

const systemPrompt = `You evaluate one condition of an operations runbook against evidence collected from a single infrastructure node.
Reply with exactly one word: TRUE if the condition holds, FALSE if it does not. Do not add punctuation or explanation.`

var ErrNoChoices = errors.New("model returned no choices")

// Oracle asks a chat model for TRUE or FALSE. The reply is returned as the
// model produced it; the engine decides whether it is a valid token.
type Oracle struct {
	model   llms.Model
	retries uint64
	timeout time.Duration
	backoff time.Duration
}

// NewOracle creates an Oracle. Failed calls are retried retries times.
func NewOracle(model llms.Model, retries int, timeout time.Duration) *Oracle {
	return &Oracle{
		model:   model,
		retries: uint64(max(retries, 0)),
		timeout: timeout,
		backoff: 500 * time.Millisecond,
	}
}

// Decide implements oracle.Oracle.
func (o *Oracle) Decide(ctx context.Context, q oracle.Query) (string, error) {
	logger := ctxlog.FromContext(ctx).With("agent", q.Agent, "target", q.Target)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, render(q)),
	}

	var token string
	backoff := retry.WithMaxRetries(o.retries, retry.NewExponential(o.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx := ctx
		if o.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}
		resp, err := o.model.GenerateContent(callCtx, messages, llms.WithTemperature(0), llms.WithMaxTokens(8))
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Warn("Model call failed, retrying.", "error", err)
			return retry.RetryableError(err)
		}
		if len(resp.Choices) == 0 {
			return retry.RetryableError(ErrNoChoices)
		}
		token = resp.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm decision: %w", err)
	}
	logger.Debug("Model answered.", "token", token)
	return token, nil
}

// render builds the human message. Evidence is listed in agent order.
func render(q oracle.Query) string {
	var b strings.Builder
	if q.Prompt != "" {
		b.WriteString(q.Prompt)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Node: %s\nCondition: %s\n", q.Target, q.Condition)
	if len(q.Evidence) == 0 {
		b.WriteString("Evidence: none\n")
		return b.String()
	}
	names := make([]string, 0, len(q.Evidence))
	for name := range q.Evidence {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteString("Evidence:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "--- %s ---\n%s\n", name, strings.TrimRight(q.Evidence[name], "\n"))
	}
	return b.String()
}
