package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestWith_AttachesAttributes(t *testing.T) {
	// --- Arrange ---
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	// --- Act ---
	ctx = With(ctx, "target", "web1")
	FromContext(ctx).Info("processing")

	// --- Assert ---
	out := buf.String()
	require.Contains(t, out, "msg=processing")
	assert.Contains(t, out, "target=web1")
}
