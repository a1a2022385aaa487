package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

var (
	ErrUndeclaredVariable = errors.New("undeclared variable")
	ErrUnsetVariable      = errors.New("variable has no value")
)

// functions available to runbook expressions.
var functions = map[string]function.Function{
	"upper":     stdlib.UpperFunc,
	"lower":     stdlib.LowerFunc,
	"trimspace": stdlib.TrimSpaceFunc,
	"join":      stdlib.JoinFunc,
	"split":     stdlib.SplitFunc,
	"format":    stdlib.FormatFunc,
	"concat":    stdlib.ConcatFunc,
}

// evalContext resolves every variable block against overrides and returns
// the context attribute expressions are evaluated in.
func evalContext(ctx context.Context, blocks hcl.Blocks, overrides map[string]string) (*hcl.EvalContext, error) {
	logger := ctxlog.FromContext(ctx)
	values := make(map[string]cty.Value, len(blocks))

	for _, block := range blocks {
		name := block.Labels[0]
		if _, dup := values[name]; dup {
			return nil, fmt.Errorf("%s: variable %q declared twice", block.DefRange, name)
		}
		val, err := resolveVariable(block, overrides)
		if err != nil {
			return nil, err
		}
		values[name] = val
		logger.Debug("Resolved runbook variable.", "name", name, "type", val.Type().FriendlyName())
	}

	var undeclared []string
	for name := range overrides {
		if _, ok := values[name]; !ok {
			undeclared = append(undeclared, name)
		}
	}
	if len(undeclared) > 0 {
		sort.Strings(undeclared)
		return nil, fmt.Errorf("%w: %s", ErrUndeclaredVariable, strings.Join(undeclared, ", "))
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(values)},
		Functions: functions,
	}, nil
}

func resolveVariable(block *hcl.Block, overrides map[string]string) (cty.Value, error) {
	name := block.Labels[0]
	content, diags := block.Body.Content(variableSchema)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("variable %q: %w", name, diags)
	}

	ty := cty.DynamicPseudoType
	if attr, ok := content.Attributes["type"]; ok {
		var diags hcl.Diagnostics
		ty, diags = typeexpr.TypeConstraint(attr.Expr)
		if diags.HasErrors() {
			return cty.NilVal, fmt.Errorf("variable %q: %w", name, diags)
		}
	}

	if raw, ok := overrides[name]; ok {
		return overrideValue(name, raw, ty)
	}

	attr, ok := content.Attributes["default"]
	if !ok {
		return cty.NilVal, fmt.Errorf("%w: %q has no default and was not set", ErrUnsetVariable, name)
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("variable %q default: %w", name, diags)
	}
	if ty.Equals(cty.DynamicPseudoType) {
		return val, nil
	}
	converted, err := convert.Convert(val, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("variable %q default: %w", name, err)
	}
	return converted, nil
}

// overrideValue converts a command line value to the variable's type. List
// typed variables take a comma separated value.
func overrideValue(name, raw string, ty cty.Type) (cty.Value, error) {
	if ty.IsListType() || ty.IsSetType() || ty.IsTupleType() {
		var items []cty.Value
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, cty.StringVal(part))
			}
		}
		val := cty.ListValEmpty(cty.String)
		if len(items) > 0 {
			val = cty.ListVal(items)
		}
		converted, err := convert.Convert(val, ty)
		if err != nil {
			return cty.NilVal, fmt.Errorf("variable %q: %w", name, err)
		}
		return converted, nil
	}

	val := cty.StringVal(raw)
	if ty.Equals(cty.DynamicPseudoType) {
		return val, nil
	}
	converted, err := convert.Convert(val, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("variable %q: %w", name, err)
	}
	return converted, nil
}
