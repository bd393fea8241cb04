package resolver

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/score"
)

// ErrKeyedChannel is returned by Effective for a channel whose values are keyed
// per grob property rather than per channel. Query those with EffectiveFor.
var ErrKeyedChannel = errors.New("resolver: channel is keyed per grob property")

type indexKey struct {
	governor *score.Context
	key      string
}

type entry struct {
	record   *score.Attachment
	position score.Offset
}

// Snapshot is a read-only index of a unit's effective persistent records. It
// is built once and never observes records attached afterwards, so callers can
// classify against it while collecting insertions for a later pass.
type Snapshot struct {
	index map[indexKey][]entry
}

// Build indexes every active persistent record of the unit.
func Build(unit *score.Unit) *Snapshot {
	s := &Snapshot{index: map[indexKey][]entry{}}
	unit.Walk(func(record *score.Attachment) {
		if record.Deactivated || !record.Persistent() {
			return
		}
		k := indexKey{governor: record.Governor, key: indicator.PersistenceKey(record.Indicator)}
		s.index[k] = append(s.index[k], entry{record: record, position: record.Position()})
	})
	for k, entries := range s.index {
		sort.SliceStable(entries, func(i, j int) bool { return before(entries[i], entries[j]) })
		s.index[k] = entries
	}
	return s
}

// Effective returns the value in force for the channel at the leaf, or nil
// when the channel has no value yet in this unit. Span stops and resets are
// never returned: after a stop the last value that was not a span start is in
// force again, after a reset nothing is. The override channel is rejected with
// ErrKeyedChannel.
func (s *Snapshot) Effective(leaf *score.Leaf, ch indicator.Channel) (*score.Attachment, error) {
	if ch == indicator.ChannelOverride {
		return nil, fmt.Errorf("%w: use EffectiveFor", ErrKeyedChannel)
	}
	traits, ok := indicator.TraitsFor(ch)
	if !ok {
		return nil, fmt.Errorf("resolver: %q is not a persistent channel", ch)
	}
	if leaf == nil {
		return nil, fmt.Errorf("resolver: leaf is required")
	}
	governor := leaf.Context.Governing(traits.Scope)
	return s.inForce(indexKey{governor: governor, key: string(ch)}, leaf.Start, true), nil
}

// EffectiveFor returns the value in force at the leaf for the persistence key
// and scope of ind.
func (s *Snapshot) EffectiveFor(leaf *score.Leaf, ind indicator.Indicator) *score.Attachment {
	if leaf == nil || ind == nil || !ind.Channel().Persistent() {
		return nil
	}
	if ind.Channel() != indicator.ChannelOverride {
		record, err := s.Effective(leaf, ind.Channel())
		if err != nil {
			return nil
		}
		return record
	}
	governor := leaf.Context.Governing(indicator.ScopeOf(ind))
	return s.inForce(indexKey{governor: governor, key: indicator.PersistenceKey(ind)}, leaf.Start, true)
}

// Preceding returns the value of the same key in force strictly before the
// given record's position.
func (s *Snapshot) Preceding(record *score.Attachment) *score.Attachment {
	if record == nil || !record.Persistent() {
		return nil
	}
	k := indexKey{governor: record.Governor, key: indicator.PersistenceKey(record.Indicator)}
	return s.inForce(k, record.Position(), false)
}

// At returns the records of ind's key in governor positioned exactly at
// position, in attach order.
func (s *Snapshot) At(governor *score.Context, ind indicator.Indicator, position score.Offset) []*score.Attachment {
	k := indexKey{governor: governor, key: indicator.PersistenceKey(ind)}
	var out []*score.Attachment
	for _, e := range s.index[k] {
		if e.position.Cmp(position) == 0 {
			out = append(out, e.record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Governed returns every indexed record whose governing context is ctx,
// ordered by position.
func (s *Snapshot) Governed(ctx *score.Context) []*score.Attachment {
	var entries []entry
	for k, list := range s.index {
		if k.governor == ctx {
			entries = append(entries, list...)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return before(entries[i], entries[j]) })
	out := make([]*score.Attachment, len(entries))
	for i, e := range entries {
		out[i] = e.record
	}
	return out
}

// inForce replays the key's records up to at: a reset clears the value and a
// span stop falls back to the last value that was not a span start.
func (s *Snapshot) inForce(k indexKey, at score.Offset, inclusive bool) *score.Attachment {
	var current, settled *score.Attachment
	for _, e := range s.index[k] {
		cmp := e.position.Cmp(at)
		if cmp > 0 || (cmp == 0 && !inclusive) {
			break
		}
		switch {
		case indicator.IsReset(e.record.Indicator):
			current, settled = nil, nil
		case indicator.IsSpanStop(e.record.Indicator):
			current = settled
		default:
			current = e.record
			if _, start := e.record.Indicator.(indicator.StartHairpin); !start {
				settled = e.record
			}
		}
	}
	return current
}

// before orders records by position. At equal positions a tempo trend sorts
// after a plain mark so the trend wins, otherwise attach order decides.
func before(a, b entry) bool {
	if cmp := a.position.Cmp(b.position); cmp != 0 {
		return cmp < 0
	}
	aTrend, bTrend := indicator.IsTrend(a.record.Indicator), indicator.IsTrend(b.record.Indicator)
	if aTrend != bTrend {
		return bTrend
	}
	return a.record.ID < b.record.ID
}
