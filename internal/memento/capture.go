package memento

import (
	"errors"
	"sort"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/manifest"
	"github.com/kingrea/carryover/internal/resolver"
	"github.com/kingrea/carryover/internal/score"
)

// Capture records, for every context of the unit, the last value of each
// persistence key it governs. The document root is never captured. A capture
// that fails leaves no partial state behind.
func Capture(unit *score.Unit, m *manifest.Manifest) (PersistedState, error) {
	snap := resolver.Build(unit)
	state := PersistedState{}
	for _, ctx := range unit.Contexts() {
		if ctx.IsRoot() {
			continue
		}
		latest := lastValues(snap.Governed(ctx))
		keys := make([]string, 0, len(latest))
		for key := range latest {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var list []Memento
		for _, key := range keys {
			memento, err := encode(ctx.Name, latest[key], m)
			if err != nil {
				return nil, err
			}
			list = append(list, memento)
		}
		if len(list) > 0 {
			state[ctx.Name] = list
		}
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return state, nil
}

// lastValues walks records in timeline order and keeps, per persistence key,
// the value still in effect at the end. Resets clear the key. A span stop
// falls back to the last value that was not a span start. Records on anchors
// other than the final leaf of their context are not carried.
func lastValues(records []*score.Attachment) map[string]*score.Attachment {
	latest := map[string]*score.Attachment{}
	settled := map[string]*score.Attachment{}
	for _, record := range records {
		if record.Leaf.IsAnchor() && !record.Leaf.IsFinal() {
			continue
		}
		key := indicator.PersistenceKey(record.Indicator)
		switch {
		case indicator.IsReset(record.Indicator):
			delete(latest, key)
			delete(settled, key)
		case indicator.IsSpanStop(record.Indicator):
			if prior, ok := settled[key]; ok {
				latest[key] = prior
			} else {
				delete(latest, key)
			}
		default:
			latest[key] = record
			if _, start := record.Indicator.(indicator.StartHairpin); !start {
				settled[key] = record
			}
		}
	}
	return latest
}

func encode(context string, record *score.Attachment, m *manifest.Manifest) (Memento, error) {
	ind := record.Indicator
	memento := Memento{
		Context:         context,
		Channel:         ind.Channel(),
		Kind:            ind.Kind(),
		SyntheticOffset: carriedOffset(record),
	}
	if manifest.Indirected(ind) {
		key, err := m.KeyFor(ind)
		if err != nil {
			return Memento{}, withContext(err, context)
		}
		memento.ManifestKey = key
		return memento, nil
	}
	_, memento.Value = indicator.Encode(ind)
	return memento, nil
}

// carriedOffset is the record's position relative to the end of its context
// when it sits on the final anchor and precedes that end. Every other record
// starts the next unit at its first leaf.
func carriedOffset(record *score.Attachment) *score.Offset {
	leaf := record.Leaf
	if !leaf.IsAnchor() || !leaf.IsFinal() {
		return nil
	}
	relative := record.Position().Sub(leaf.Start)
	if relative.Sign() >= 0 {
		return nil
	}
	return &relative
}

// Reconstruct turns a memento back into a concrete indicator. Manifest keys
// resolve through m; inline values decode through the indicator codec.
func Reconstruct(mem Memento, m *manifest.Manifest) (indicator.Indicator, error) {
	ambiguous := func(reason string) error {
		return &AmbiguousError{
			Context: mem.Context,
			Channel: mem.Channel,
			Kind:    mem.Kind,
			Err:     &indicator.DecodeError{Kind: mem.Kind, Reason: reason},
		}
	}
	if mem.Kind == "" {
		return nil, ambiguous("memento has no type tag")
	}
	var (
		ind indicator.Indicator
		err error
	)
	switch {
	case mem.ManifestKey != "" && len(mem.Value) > 0:
		return nil, ambiguous("memento carries both a manifest key and a value")
	case mem.ManifestKey != "":
		if _, ok := manifest.SectionFor(mem.Kind); !ok {
			return nil, ambiguous("type tag has no manifest section")
		}
		ind, err = m.Lookup(mem.Kind, mem.ManifestKey)
		if err != nil {
			return nil, withContext(err, mem.Context)
		}
	default:
		ind, err = indicator.Decode(mem.Kind, mem.Value)
		if err != nil {
			return nil, &AmbiguousError{Context: mem.Context, Channel: mem.Channel, Kind: mem.Kind, Err: err}
		}
		if manifest.Indirected(ind) {
			return nil, ambiguous("manifest-indirected value persisted inline")
		}
	}
	if ind.Channel() != mem.Channel {
		return nil, ambiguous("type tag belongs to channel " + string(ind.Channel()))
	}
	return ind, nil
}

func withContext(err error, context string) error {
	var miss *manifest.LookupMissError
	if errors.As(err, &miss) && miss.Context == "" {
		miss.Context = context
	}
	return err
}
