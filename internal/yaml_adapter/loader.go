// Package yaml_adapter loads runbooks in the YAML operation format.
//
// Every operation is a mapping with a single key naming its kind:
//
//	name: nginx-404
//	runbook:
//	  multi-node-op:
//	    description: "Loop over each impacted node: [node1, node2]"
//	    ops:
//	      - if-else-op:
//	          ops:
//	            - decision-op:
//	                condition: Check for 404 error in nginx logs
//	                ops:
//	                  - exec-stmt: grep -q '404' /var/log/nginx/current
//	          then:
//	            - rpa-op:
//	                ops:
//	                  - exec-stmt: systemctl restart nginx
//
// A multi-node-op without targets takes them from the bracketed list in its
// description. String values may reference variables as ${var.name}; they are
// expanded after decoding, so a value never changes the operation tree.
package yaml_adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/runbook"
)

var (
	ErrRunbookShape      = errors.New("invalid runbook structure")
	ErrUndefinedVariable = errors.New("undefined variable")
)

var kindTags = map[string]runbook.Kind{
	"multi-node-op": runbook.KindMultiNode,
	"if-else-op":    runbook.KindIfElse,
	"decision-op":   runbook.KindDecision,
	"rpa-op":        runbook.KindRpa,
	"exec-stmt":     runbook.KindExecStmt,
}

type document struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Version     string  `yaml:"version"`
	Runbook     *opNode `yaml:"runbook"`
}

type opBody struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Targets     []string `yaml:"targets"`
	Condition   string   `yaml:"condition"`
	Expression  string   `yaml:"expression"`
	Command     string   `yaml:"command"`
	Tool        string   `yaml:"tool"`
	Timeout     string   `yaml:"timeout"`
	Ops         []opNode `yaml:"ops"`
	Then        []opNode `yaml:"then"`
	Else        []opNode `yaml:"else"`
}

// opNode is one tagged operation. An exec-stmt may be written as a bare
// command string.
type opNode struct {
	tag  string
	body opBody
}

func (n *opNode) UnmarshalYAML(unmarshal func(any) error) error {
	var tagged map[string]any
	if err := unmarshal(&tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		keys := make([]string, 0, len(tagged))
		for k := range tagged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("%w: an operation must have exactly one kind key, found [%s]", ErrRunbookShape, strings.Join(keys, ", "))
	}
	for tag, value := range tagged {
		n.tag = tag
		switch v := value.(type) {
		case nil:
		case string:
			n.body = opBody{Command: v}
		default:
			var wrapped map[string]opBody
			if err := unmarshal(&wrapped); err != nil {
				return fmt.Errorf("%s: %w", tag, err)
			}
			n.body = wrapped[tag]
		}
	}
	return nil
}

// Loader is the YAML implementation of runbook.Loader.
type Loader struct{}

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

// Parse parses runbook source. filename is used in messages only.
func (l *Loader) Parse(ctx context.Context, src []byte, filename string, vars map[string]string) (*runbook.Runbook, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "file", filename)

	var doc document
	if err := yaml.UnmarshalWithOptions(src, &doc, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", filename, err)
	}
	if doc.Runbook == nil {
		return nil, fmt.Errorf("%w: %s has no runbook operation", ErrRunbookShape, filename)
	}

	x := &expander{vars: vars}
	root, err := x.convert(doc.Runbook)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	rb := &runbook.Runbook{
		Name:        x.expand(doc.Name),
		Description: x.expand(doc.Description),
		Version:     x.expand(doc.Version),
		Source:      filename,
		Root:        root,
	}
	if err := x.err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	logger.Debug("YAML loading complete.", "runbook", rb.Name)
	return rb, nil
}

func (x *expander) convert(n *opNode) (*runbook.Operation, error) {
	kind, ok := kindTags[n.tag]
	if !ok {
		// Left for the compiler to reject with its own error.
		kind = runbook.Kind(n.tag)
	}
	b := n.body
	op := &runbook.Operation{
		Kind:        kind,
		Name:        x.expand(b.Name),
		Description: x.expand(b.Description),
		Targets:     x.expandAll(b.Targets),
		Condition:   x.expand(b.Condition),
		Expression:  x.expand(b.Expression),
		Command:     x.expand(b.Command),
		Tool:        x.expand(b.Tool),
	}
	if kind == runbook.KindMultiNode && len(op.Targets) == 0 {
		op.Targets = targetsFromText(op.Description)
	}
	if timeout := x.expand(b.Timeout); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid timeout %q: %w", n.tag, timeout, err)
		}
		op.Timeout = d
	}

	var err error
	if op.Children, err = x.convertAll(b.Ops); err != nil {
		return nil, err
	}
	if op.Then, err = x.convertAll(b.Then); err != nil {
		return nil, err
	}
	if op.Else, err = x.convertAll(b.Else); err != nil {
		return nil, err
	}
	return op, nil
}

func (x *expander) convertAll(nodes []opNode) ([]*runbook.Operation, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	ops := make([]*runbook.Operation, 0, len(nodes))
	for i := range nodes {
		op, err := x.convert(&nodes[i])
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

var bracketList = regexp.MustCompile(`\[([^\[\]]*)\]`)

// targetsFromText extracts "[a, b]" from free text such as
// "Loop over each impacted node: [node1, node2]".
func targetsFromText(text string) []string {
	m := bracketList.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var targets []string
	for _, part := range strings.Split(m[1], ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part != "" {
			targets = append(targets, part)
		}
	}
	return targets
}

var varRef = regexp.MustCompile(`\$\{var\.([A-Za-z_][A-Za-z0-9_-]*)\}`)

// expander replaces ${var.name} references in decoded string values and
// remembers every name it could not resolve.
type expander struct {
	vars    map[string]string
	missing []string
}

func (x *expander) expand(s string) string {
	if !strings.Contains(s, "${var.") {
		return s
	}
	return varRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := varRef.FindStringSubmatch(ref)[1]
		v, ok := x.vars[name]
		if !ok {
			if !slices.Contains(x.missing, name) {
				x.missing = append(x.missing, name)
			}
			return ref
		}
		return v
	})
}

func (x *expander) expandAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = x.expand(v)
	}
	return out
}

func (x *expander) err() error {
	if len(x.missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUndefinedVariable, strings.Join(x.missing, ", "))
}
