package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/runbook"
)

var ErrRunbookShape = errors.New("invalid runbook structure")

// Loader is the HCL implementation of runbook.Loader.
type Loader struct{}

// NewLoader creates a new HCL runbook loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the runbook at path.
func (l *Loader) Load(ctx context.Context, path string, vars map[string]string) (*runbook.Runbook, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read runbook %s: %w", path, err)
	}
	return l.Parse(ctx, src, path, vars)
}

// Parse parses runbook source. filename is used in diagnostics only.
func (l *Loader) Parse(ctx context.Context, src []byte, filename string, vars map[string]string) (*runbook.Runbook, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "file", filename)

	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	var variables, runbooks hcl.Blocks
	for _, b := range content.Blocks {
		switch b.Type {
		case "variable":
			variables = append(variables, b)
		case "runbook":
			runbooks = append(runbooks, b)
		}
	}
	if len(runbooks) != 1 {
		return nil, fmt.Errorf("%w: %s must contain exactly one runbook block, found %d", ErrRunbookShape, filename, len(runbooks))
	}

	evalCtx, err := evalContext(ctx, variables, vars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	d := &decoder{eval: evalCtx}
	rb, err := d.runbook(runbooks[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	rb.Source = filename

	var ops int
	runbook.Walk(rb.Root, func(*runbook.Operation, int) bool { ops++; return true })
	logger.Debug("HCL loading complete.", "runbook", rb.Name, "operations", ops, "variables", len(variables))
	return rb, nil
}

type decoder struct {
	eval *hcl.EvalContext
}

func (d *decoder) runbook(block *hcl.Block) (*runbook.Runbook, error) {
	content, diags := block.Body.Content(runbookSchema)
	if diags.HasErrors() {
		return nil, diags
	}
	rb := &runbook.Runbook{Name: block.Labels[0]}
	if err := d.str(content.Attributes["description"], &rb.Description); err != nil {
		return nil, err
	}
	if err := d.str(content.Attributes["version"], &rb.Version); err != nil {
		return nil, err
	}

	ops, err := d.sequence(content.Blocks)
	if err != nil {
		return nil, err
	}
	if len(ops) != 1 {
		return nil, fmt.Errorf("%w: %s: runbook %q must contain exactly one top-level operation, found %d", ErrRunbookShape, block.DefRange, rb.Name, len(ops))
	}
	rb.Root = ops[0]
	return rb, nil
}

func (d *decoder) sequence(blocks hcl.Blocks) ([]*runbook.Operation, error) {
	ops := make([]*runbook.Operation, 0, len(blocks))
	for _, b := range blocks {
		op, err := d.operation(b)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (d *decoder) operation(block *hcl.Block) (*runbook.Operation, error) {
	kind, ok := blockKinds[block.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s: unexpected block %q", ErrRunbookShape, block.DefRange, block.Type)
	}
	content, diags := block.Body.Content(operationSchemas[kind])
	if diags.HasErrors() {
		return nil, diags
	}

	op := &runbook.Operation{Kind: kind}
	attrs := content.Attributes
	for name, dst := range map[string]*string{
		"name":        &op.Name,
		"description": &op.Description,
		"condition":   &op.Condition,
		"expression":  &op.Expression,
		"command":     &op.Command,
		"tool":        &op.Tool,
	} {
		if err := d.str(attrs[name], dst); err != nil {
			return nil, err
		}
	}
	if attr, ok := attrs["targets"]; ok {
		if diags := gohcl.DecodeExpression(attr.Expr, d.eval, &op.Targets); diags.HasErrors() {
			return nil, diags
		}
	}
	if attr, ok := attrs["timeout"]; ok {
		var raw string
		if err := d.str(attr, &raw); err != nil {
			return nil, err
		}
		timeout, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: invalid timeout %q: %w", attr.Range, raw, err)
		}
		op.Timeout = timeout
	}

	var seenThen, seenElse bool
	for _, b := range content.Blocks {
		switch b.Type {
		case blockThen, blockElse:
			seen := &seenThen
			if b.Type == blockElse {
				seen = &seenElse
			}
			if *seen {
				return nil, fmt.Errorf("%w: %s: duplicate %q block", ErrRunbookShape, b.DefRange, b.Type)
			}
			*seen = true

			branch, diags := b.Body.Content(branchSchema)
			if diags.HasErrors() {
				return nil, diags
			}
			ops, err := d.sequence(branch.Blocks)
			if err != nil {
				return nil, err
			}
			if b.Type == blockThen {
				op.Then = ops
			} else {
				op.Else = ops
			}
		default:
			child, err := d.operation(b)
			if err != nil {
				return nil, err
			}
			op.Children = append(op.Children, child)
		}
	}
	return op, nil
}

func (d *decoder) str(attr *hcl.Attribute, dst *string) error {
	if attr == nil {
		return nil
	}
	if diags := gohcl.DecodeExpression(attr.Expr, d.eval, dst); diags.HasErrors() {
		return diags
	}
	return nil
}
