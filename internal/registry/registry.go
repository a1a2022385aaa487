package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/specialistvlad/runbookgo/internal/executor"
	"github.com/specialistvlad/runbookgo/internal/oracle"
	"github.com/specialistvlad/runbookgo/internal/report"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// ErrUnknownModule is returned when no factory is registered under a name.
var ErrUnknownModule = errors.New("unknown module")

// Module is the interface that all modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Kind names a collaborator slot.
type Kind string

const (
	KindInvoker  Kind = "invoker"
	KindProvider Kind = "capabilities"
	KindOracle   Kind = "oracle"
	KindSink     Kind = "sink"
	KindObserver Kind = "observer"
)

type (
	InvokerFactory  func(ctx context.Context, s Settings) (tools.Invoker, error)
	ProviderFactory func(ctx context.Context, s Settings) (tools.Provider, error)
	OracleFactory   func(ctx context.Context, s Settings) (oracle.Oracle, error)
	SinkFactory     func(ctx context.Context, s Settings) (report.Sink, error)
	ObserverFactory func(ctx context.Context, s Settings) (executor.Observer, error)
)

// Registry holds the factories registered for a single application instance.
type Registry struct {
	invokers  map[string]InvokerFactory
	providers map[string]ProviderFactory
	oracles   map[string]OracleFactory
	sinks     map[string]SinkFactory
	observers map[string]ObserverFactory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		invokers:  make(map[string]InvokerFactory),
		providers: make(map[string]ProviderFactory),
		oracles:   make(map[string]OracleFactory),
		sinks:     make(map[string]SinkFactory),
		observers: make(map[string]ObserverFactory),
	}
}

func register[F any](kind Kind, m map[string]F, name string, f F) {
	if _, exists := m[name]; exists {
		panic(fmt.Sprintf("%s '%s' already registered", kind, name))
	}
	slog.Debug("Registering module factory.", "kind", kind, "name", name)
	m[name] = f
}

func (r *Registry) RegisterInvoker(name string, f InvokerFactory) {
	register(KindInvoker, r.invokers, name, f)
}

func (r *Registry) RegisterProvider(name string, f ProviderFactory) {
	register(KindProvider, r.providers, name, f)
}

func (r *Registry) RegisterOracle(name string, f OracleFactory) {
	register(KindOracle, r.oracles, name, f)
}

func (r *Registry) RegisterSink(name string, f SinkFactory) {
	register(KindSink, r.sinks, name, f)
}

func (r *Registry) RegisterObserver(name string, f ObserverFactory) {
	register(KindObserver, r.observers, name, f)
}

func build[T any, F ~func(context.Context, Settings) (T, error)](ctx context.Context, kind Kind, m map[string]F, name string, s Settings) (T, error) {
	var zero T
	f, ok := m[name]
	if !ok {
		return zero, fmt.Errorf("%w: %s %q (available: %s)", ErrUnknownModule, kind, name, strings.Join(sortedKeys(m), ", "))
	}
	v, err := f(ctx, s)
	if err != nil {
		return zero, fmt.Errorf("%s %q: %w", kind, name, err)
	}
	return v, nil
}

func (r *Registry) Invoker(ctx context.Context, name string, s Settings) (tools.Invoker, error) {
	return build(ctx, KindInvoker, r.invokers, name, s)
}

func (r *Registry) Provider(ctx context.Context, name string, s Settings) (tools.Provider, error) {
	return build(ctx, KindProvider, r.providers, name, s)
}

func (r *Registry) Oracle(ctx context.Context, name string, s Settings) (oracle.Oracle, error) {
	return build(ctx, KindOracle, r.oracles, name, s)
}

func (r *Registry) Sink(ctx context.Context, name string, s Settings) (report.Sink, error) {
	return build(ctx, KindSink, r.sinks, name, s)
}

func (r *Registry) Observer(ctx context.Context, name string, s Settings) (executor.Observer, error) {
	return build(ctx, KindObserver, r.observers, name, s)
}

// Names lists the factories registered for kind, sorted.
func (r *Registry) Names(kind Kind) []string {
	switch kind {
	case KindInvoker:
		return sortedKeys(r.invokers)
	case KindProvider:
		return sortedKeys(r.providers)
	case KindOracle:
		return sortedKeys(r.oracles)
	case KindSink:
		return sortedKeys(r.sinks)
	case KindObserver:
		return sortedKeys(r.observers)
	}
	return nil
}

// Validate checks that every selection names a registered factory. Empty
// names are skipped; optional slots are left empty when unused.
func (r *Registry) Validate(selections map[Kind]string) error {
	var errs []error
	for _, kind := range []Kind{KindInvoker, KindProvider, KindOracle, KindSink, KindObserver} {
		name := selections[kind]
		if name == "" || slices.Contains(r.Names(kind), name) {
			continue
		}
		errs = append(errs, fmt.Errorf("%w: %s %q (available: %s)", ErrUnknownModule, kind, name, strings.Join(r.Names(kind), ", ")))
	}
	return errors.Join(errs...)
}

func sortedKeys[F any](m map[string]F) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
