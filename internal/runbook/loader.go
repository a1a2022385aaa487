package runbook

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specialistvlad/runbookgo/internal/ctxlog"
)

// ErrUnsupportedFormat is returned when no loader is registered for a file.
var ErrUnsupportedFormat = errors.New("unsupported runbook format")

// Loader parses a runbook file into an operation tree. vars supplies values
// for runbook variables and overrides their defaults.
type Loader interface {
	Load(ctx context.Context, path string, vars map[string]string) (*Runbook, error)
}

// ExtensionLoader dispatches to a Loader by file extension (".hcl", ".yaml").
type ExtensionLoader map[string]Loader

// Load implements Loader.
func (l ExtensionLoader) Load(ctx context.Context, path string, vars map[string]string) (*Runbook, error) {
	logger := ctxlog.FromContext(ctx)

	ext := strings.ToLower(filepath.Ext(path))
	inner, ok := l[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnsupportedFormat, ext, strings.Join(l.Extensions(), ", "))
	}
	logger.Debug("Selected runbook loader.", "path", path, "extension", ext)
	return inner.Load(ctx, path, vars)
}

// Extensions lists the registered extensions in sorted order.
func (l ExtensionLoader) Extensions() []string {
	exts := make([]string, 0, len(l))
	for ext := range l {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
