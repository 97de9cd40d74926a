package strategy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/logger"
)

const CodeDuplicateStrategy = "DUPLICATE_STRATEGY"

// Deps are handed to every constructor when the registry is built.
type Deps struct {
	Config      Config
	Performance PerformanceSource
	// Model is optional. Without it the embedding strategy scores locally.
	Model  ModelClient
	Logger logger.Logger
}

func (d Deps) logger() logger.Logger {
	if d.Logger == nil {
		return logger.Nop()
	}
	return d.Logger
}

// Constructor builds one strategy.
type Constructor func(deps Deps) (Strategy, error)

type registration struct {
	name        string
	kind        Kind
	constructor Constructor
}

// RegistryBuilder collects constructors. New strategies are added here without touching the
// selector.
type RegistryBuilder struct {
	registrations []registration
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{}
}

// DefaultRegistryBuilder registers the six built-in strategies under their kind names.
func DefaultRegistryBuilder() *RegistryBuilder {
	return NewRegistryBuilder().
		Register(string(KindCollaborative), KindCollaborative, NewCollaborative).
		Register(string(KindContentBased), KindContentBased, NewContentBased).
		Register(string(KindHybrid), KindHybrid, NewHybrid).
		Register(string(KindPopularity), KindPopularity, NewPopularity).
		Register(string(KindBandit), KindBandit, NewBandit).
		Register(string(KindEmbedding), KindEmbedding, NewEmbedding)
}

func (b *RegistryBuilder) Register(name string, kind Kind, c Constructor) *RegistryBuilder {
	b.registrations = append(b.registrations, registration{name: name, kind: kind, constructor: c})
	return b
}

// Build constructs and validates every registered strategy. Names are case-insensitive and
// must be unique.
func (b *RegistryBuilder) Build(deps Deps) (*Registry, error) {
	r := &Registry{byName: make(map[string]Strategy, len(b.registrations))}

	for _, reg := range b.registrations {
		key := normalize(reg.name)
		if _, dup := r.byName[key]; dup {
			return nil, errx.New(fmt.Sprintf("strategy %q is registered twice", reg.name),
				errx.WithCode(CodeDuplicateStrategy),
			)
		}

		s, err := reg.constructor(deps)
		if err != nil {
			return nil, errx.Wrap(err, errx.WithDetails(errx.D{"strategy": reg.name}))
		}
		if s.Kind() != reg.kind {
			return nil, errx.New(fmt.Sprintf("strategy %q reports kind %q, registered as %q", reg.name, s.Kind(), reg.kind),
				errx.WithCode(CodeInvalidConfig),
			)
		}
		err = s.Validate()
		if err != nil {
			return nil, errx.Wrap(err, errx.WithDetails(errx.D{"strategy": reg.name}))
		}

		r.byName[key] = s
		r.order = append(r.order, key)
	}

	return r, nil
}

// Registry is the immutable set of strategies available to the selector.
type Registry struct {
	byName map[string]Strategy
	order  []string
}

// Get finds a strategy by name, ignoring case and surrounding spaces.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.byName[normalize(name)]
	return s, ok
}

// MustGet panics when name is not registered. Intended for start-up wiring.
func (r *Registry) MustGet(name string) Strategy {
	s, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("strategy: %q is not registered", name))
	}
	return s
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out)
	return out
}

// All returns strategies in registration order.
func (r *Registry) All() []Strategy {
	out := make([]Strategy, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

func (r *Registry) ByKind(kind Kind) []Strategy {
	var out []Strategy
	for _, s := range r.All() {
		if s.Kind() == kind {
			out = append(out, s)
		}
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
