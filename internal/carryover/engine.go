// Package carryover moves persistent indicator state across unit boundaries.
// FinishUnit captures the state a unit leaves behind; StartUnit reapplies that
// state to the next unit, classifies every persistent record, and tags it for
// the render step.
package carryover

import (
	"fmt"
	"sort"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/manifest"
	"github.com/kingrea/carryover/internal/memento"
	"github.com/kingrea/carryover/internal/score"
	"github.com/kingrea/carryover/internal/tag"
)

// Logger receives one line per engine decision.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Engine runs the start-of-unit and end-of-unit passes for one build.
type Engine struct {
	manifest *manifest.Manifest
	build    tag.Build
	defaults []indicator.Indicator
	excluded map[string]bool
	logger   Logger
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithLogger routes engine decisions to logger.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBuild selects the build kind used for color emission and activation.
func WithBuild(build tag.Build) Option {
	return func(e *Engine) {
		e.build = build
	}
}

// WithManifest supplies the symbol table for manifest-indirected channels.
func WithManifest(m *manifest.Manifest) Option {
	return func(e *Engine) {
		if m != nil {
			e.manifest = m
		}
	}
}

// WithDefaults sets indicators attached with status default where a context
// of the indicator's scope has no value after reapplication.
func WithDefaults(defaults ...indicator.Indicator) Option {
	return func(e *Engine) {
		e.defaults = append(e.defaults, defaults...)
	}
}

// WithExcluded names contexts that never receive reapplied state.
func WithExcluded(names ...string) Option {
	return func(e *Engine) {
		for _, name := range names {
			e.excluded[name] = true
		}
	}
}

// New builds an engine. The default build is proofing with an empty manifest.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		manifest: manifest.New(),
		build:    tag.BuildProofing,
		excluded: map[string]bool{},
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if !e.build.Valid() {
		return nil, fmt.Errorf("carryover: unknown build %q", e.build)
	}
	for _, d := range e.defaults {
		if d == nil || !d.Channel().Persistent() {
			return nil, fmt.Errorf("carryover: default %s is not a persistent indicator", indicator.Describe(d))
		}
	}
	sort.SliceStable(e.defaults, func(i, j int) bool {
		return indicator.PersistenceKey(e.defaults[i]) < indicator.PersistenceKey(e.defaults[j])
	})
	return e, nil
}

// Build is the build kind the engine emits for.
func (e *Engine) Build() tag.Build { return e.build }

// Result lists the records each start-of-unit pass treated.
type Result struct {
	Reapplied []*score.Attachment
	Defaults  []*score.Attachment
	Swept     []*score.Attachment
	Fixed     []*score.Attachment
}

// StartUnit reapplies the previous unit's state, applies defaults, sweeps
// untreated records, runs the negative-offset fix-up and sets activation.
// Every failure is raised before the unit is modified.
func (e *Engine) StartUnit(unit *score.Unit, state memento.PersistedState) (Result, error) {
	if unit == nil {
		return Result{}, fmt.Errorf("carryover: unit is required")
	}
	reapplied, err := e.Reapply(unit, state)
	if err != nil {
		return Result{}, err
	}
	result := Result{Reapplied: reapplied}
	if result.Defaults, err = e.ApplyDefaults(unit); err != nil {
		return Result{}, err
	}
	if result.Swept, err = e.Sweep(unit); err != nil {
		return Result{}, err
	}
	if result.Fixed, err = e.FixNegativeOffsets(unit); err != nil {
		return Result{}, err
	}
	deactivated := unit.Activate(e.build)
	e.logger.Printf("unit %s: %d reapplied, %d defaults, %d swept, %d fixed, %d deactivated for %s",
		unit.Name, len(result.Reapplied), len(result.Defaults), len(result.Swept), len(result.Fixed), deactivated, e.build)
	return result, nil
}

// FinishUnit captures the state the unit leaves behind.
func (e *Engine) FinishUnit(unit *score.Unit) (memento.PersistedState, error) {
	if unit == nil {
		return nil, fmt.Errorf("carryover: unit is required")
	}
	state, err := memento.Capture(unit, e.manifest)
	if err != nil {
		return nil, fmt.Errorf("carryover: capture %s: %w", unit.Name, err)
	}
	e.logger.Printf("unit %s: captured %d mementos in %d contexts", unit.Name, state.Len(), len(state))
	return state, nil
}
