// Package memento captures the effective persistent state at the end of a unit
// as serializable mementos and reconstructs concrete indicators from them at
// the start of the next unit.
package memento

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/score"
)

// ErrAmbiguousReconstruction is matched by every reconstruction failure that
// is not a manifest miss.
var ErrAmbiguousReconstruction = indicator.ErrAmbiguous

// ErrOverlappingAssignment is returned when two mementos claim the same
// context and persistence key.
var ErrOverlappingAssignment = errors.New("memento: overlapping persisted assignment")

// Memento is the snapshot of one persistent value in one context. Exactly one
// of ManifestKey and Value is set.
type Memento struct {
	Context         string            `yaml:"context" json:"context"`
	Channel         indicator.Channel `yaml:"channel" json:"channel"`
	Kind            indicator.Kind    `yaml:"kind" json:"kind"`
	ManifestKey     string            `yaml:"manifest_key,omitempty" json:"manifest_key,omitempty"`
	Value           indicator.Fields  `yaml:"value,omitempty" json:"value,omitempty"`
	SyntheticOffset *score.Offset     `yaml:"synthetic_offset,omitempty" json:"synthetic_offset,omitempty"`
}

// Key is the persistence key the memento claims within its context.
func (m Memento) Key() string {
	if m.Channel == indicator.ChannelOverride {
		return string(indicator.ChannelOverride) + ":" + m.Value["grob"] + "." + m.Value["property"]
	}
	return string(m.Channel)
}

func (m Memento) String() string {
	payload := m.ManifestKey
	if payload == "" {
		kind := m.Kind
		if ind, err := indicator.Decode(kind, m.Value); err == nil {
			payload = indicator.Describe(ind)
		} else {
			payload = string(kind)
		}
	}
	if m.SyntheticOffset != nil {
		return fmt.Sprintf("%s/%s=%s@%s", m.Context, m.Channel, payload, m.SyntheticOffset)
	}
	return fmt.Sprintf("%s/%s=%s", m.Context, m.Channel, payload)
}

// PersistedState maps context names to their mementos. A context with no
// mementos never appears.
type PersistedState map[string][]Memento

// Names returns the context names in sorted order.
func (s PersistedState) Names() []string {
	names := maps.Keys(s)
	slices.Sort(names)
	return names
}

// Len counts mementos across all contexts.
func (s PersistedState) Len() int {
	total := 0
	for _, list := range s {
		total += len(list)
	}
	return total
}

// OverlapError carries both mementos that claim one context and key.
type OverlapError struct {
	Context string
	Key     string
	First   Memento
	Second  Memento
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("memento: %s claims %s twice: %s and %s", e.Context, e.Key, e.First, e.Second)
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingAssignment }

// Validate checks the persisted-state invariants: no empty context lists,
// context names agree with their map keys, channels are persistent, each
// memento carries exactly one payload, and no two mementos overlap.
func (s PersistedState) Validate() error {
	for _, name := range s.Names() {
		list := s[name]
		if len(list) == 0 {
			return fmt.Errorf("memento: context %s has no mementos", name)
		}
		seen := map[string]Memento{}
		for _, m := range list {
			if m.Context != name {
				return fmt.Errorf("memento: memento for %s filed under %s", m.Context, name)
			}
			if !m.Channel.Persistent() {
				return fmt.Errorf("memento: %s: channel %q is not persistent", name, m.Channel)
			}
			if (m.ManifestKey == "") == (len(m.Value) == 0) && !emptyValueKind(m.Kind) {
				return &AmbiguousError{Context: name, Channel: m.Channel, Kind: m.Kind, Err: &indicator.DecodeError{Kind: m.Kind, Reason: "memento needs exactly one of manifest_key and value"}}
			}
			if first, dup := seen[m.Key()]; dup {
				return &OverlapError{Context: name, Key: m.Key(), First: first, Second: m}
			}
			seen[m.Key()] = m
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s PersistedState) Clone() PersistedState {
	if s == nil {
		return nil
	}
	out := make(PersistedState, len(s))
	for name, list := range s {
		copied := make([]Memento, len(list))
		for i, m := range list {
			copied[i] = m.clone()
		}
		out[name] = copied
	}
	return out
}

func (m Memento) clone() Memento {
	c := m
	if len(m.Value) > 0 {
		c.Value = make(indicator.Fields, len(m.Value))
		for k, v := range m.Value {
			c.Value[k] = v
		}
	}
	if m.SyntheticOffset != nil {
		o := *m.SyntheticOffset
		c.SyntheticOffset = &o
	}
	return c
}

// emptyValueKind reports kinds whose inline encoding has no arguments.
func emptyValueKind(kind indicator.Kind) bool {
	switch kind {
	case indicator.KindAccelerando, indicator.KindRitardando:
		return true
	}
	return false
}

// AmbiguousError reports a memento that cannot be decoded to a known type.
type AmbiguousError struct {
	Context string
	Channel indicator.Channel
	Kind    indicator.Kind
	Err     error
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("memento: cannot reconstruct %s/%s (%s): %v", e.Context, e.Channel, e.Kind, e.Err)
}

func (e *AmbiguousError) Unwrap() error {
	if e.Err == nil {
		return ErrAmbiguousReconstruction
	}
	return e.Err
}
