package multiquery

import (
	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/connectors"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/inspect"
	"github.com/rulego/dlquery/logger"
)

// Option configures mutators built by factories.
type Option func(*SplitterMultiQueryMutator)

// WithMaxIterations overrides the iteration budget of every splitter.
func WithMaxIterations(n int) Option {
	return func(m *SplitterMultiQueryMutator) {
		m.MaxIterations = n
	}
}

// WithLogger sets the mutator logger.
func WithLogger(l logger.Logger) Option {
	return func(m *SplitterMultiQueryMutator) {
		m.Logger = l
	}
}

// Factory builds the mutator for one kind of backend.
type Factory interface {
	Kind() connectors.FactoryKind
	NewMutator(env *inspect.Environment, opts ...Option) *SplitterMultiQueryMutator
}

// DefaultFactory evaluates window functions in memory.
type DefaultFactory struct{}

func (DefaultFactory) Kind() connectors.FactoryKind { return connectors.FactoryCompeng }

func (DefaultFactory) NewMutator(env *inspect.Environment, opts ...Option) *SplitterMultiQueryMutator {
	return newMutator(env, []Splitter{
		QueryForkSplitter{},
		WindowFunctionSplitter{WindowLevel: compilation.LevelCompeng},
		LevelPropagator{},
		GroupByNormalizer{},
	}, opts)
}

// NativeWindowFactory leaves window functions to databases supporting them.
type NativeWindowFactory struct{}

func (NativeWindowFactory) Kind() connectors.FactoryKind { return connectors.FactoryNativeWindow }

func (NativeWindowFactory) NewMutator(env *inspect.Environment, opts ...Option) *SplitterMultiQueryMutator {
	return newMutator(env, []Splitter{
		QueryForkSplitter{},
		WindowFunctionSplitter{WindowLevel: compilation.LevelSourceDB},
		GroupByNormalizer{},
	}, opts)
}

func newMutator(env *inspect.Environment, splitters []Splitter, opts []Option) *SplitterMultiQueryMutator {
	m := &SplitterMultiQueryMutator{Env: env, Splitters: splitters, MaxIterations: DefaultMaxIterations}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var factories = map[connectors.FactoryKind]Factory{
	connectors.FactoryCompeng:      DefaultFactory{},
	connectors.FactoryNativeWindow: NativeWindowFactory{},
}

// FactoryFor returns the factory registered for kind.
func FactoryFor(kind connectors.FactoryKind) (Factory, error) {
	f, ok := factories[kind]
	if !ok {
		return nil, exc.ErrUnknownMutatorFactory.New(string(kind))
	}
	return f, nil
}
