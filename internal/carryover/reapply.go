package carryover

import (
	"fmt"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/memento"
	"github.com/kingrea/carryover/internal/resolver"
	"github.com/kingrea/carryover/internal/score"
	"github.com/kingrea/carryover/internal/tag"
)

// reapplication is one pending decision: annotate existing, or inject ind on
// leaf when existing is nil.
type reapplication struct {
	memento  memento.Memento
	ind      indicator.Indicator
	leaf     *score.Leaf
	existing *score.Attachment
	status   tag.Status
}

// Reapply injects the previous unit's state at the first leaf of every
// matching context and classifies what it finds there. All mementos are
// reconstructed and classified against a snapshot before the unit changes, so
// a failure leaves the unit untouched.
func (e *Engine) Reapply(unit *score.Unit, state memento.PersistedState) ([]*score.Attachment, error) {
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("carryover: reapply %s: %w", unit.Name, err)
	}
	pending, err := e.plan(unit, state, resolver.Build(unit))
	if err != nil {
		return nil, fmt.Errorf("carryover: reapply %s: %w", unit.Name, err)
	}
	treated := make([]*score.Attachment, 0, len(pending))
	for _, p := range pending {
		record := p.existing
		if record == nil {
			var opts []score.AttachOption
			if p.memento.SyntheticOffset != nil {
				opts = append(opts, score.WithSyntheticOffset(p.leaf.Start.Add(*p.memento.SyntheticOffset)))
			}
			record, err = unit.Inject(p.leaf, p.ind, opts...)
			if err != nil {
				return nil, fmt.Errorf("carryover: reapply %s: %w", unit.Name, err)
			}
			record.Reapplied = true
		}
		if err := e.emit(unit, record, p.status); err != nil {
			return nil, fmt.Errorf("carryover: reapply %s: %w", unit.Name, err)
		}
		treated = append(treated, record)
	}
	return treated, nil
}

func (e *Engine) plan(unit *score.Unit, state memento.PersistedState, snap *resolver.Snapshot) ([]reapplication, error) {
	var pending []reapplication
	processed := map[string]bool{}
	for _, ctx := range unit.Contexts() {
		if ctx.IsRoot() || e.excluded[ctx.Name] || processed[ctx.Name] {
			continue
		}
		processed[ctx.Name] = true
		mementos, ok := state[ctx.Name]
		if !ok {
			continue
		}
		first := ctx.FirstLeaf()
		if first == nil {
			e.logger.Printf("skip %s: context has no leaves", ctx.Name)
			continue
		}
		for _, mem := range mementos {
			ind, err := memento.Reconstruct(mem, e.manifest)
			if err != nil {
				return nil, err
			}
			p, ok := classify(snap, first, mem, ind)
			if !ok {
				e.logger.Printf("skip %s in %s: already treated or reset", indicator.Describe(ind), ctx.Name)
				continue
			}
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// classify compares a reconstructed value with the records already present at
// the first leaf. It reports false when this state was treated by an earlier
// reapplication or an authored reset clears the channel there.
func classify(snap *resolver.Snapshot, first *score.Leaf, mem memento.Memento, ind indicator.Indicator) (reapplication, bool) {
	governor := first.Context.Governing(indicator.ScopeOf(ind))
	p := reapplication{memento: mem, ind: ind, leaf: first}
	at := snap.At(governor, ind, first.Start)
	for _, record := range at {
		if indicator.IsReset(record.Indicator) {
			return p, false
		}
	}
	existing := prevailing(at)
	if existing == nil && mem.SyntheticOffset != nil {
		at := first.Start.Add(*mem.SyntheticOffset)
		for _, prior := range snap.At(governor, ind, at) {
			if prior.Reapplied && indicator.Equal(prior.Indicator, ind) {
				return p, false
			}
		}
	}
	traits, _ := indicator.TraitsFor(ind.Channel())
	switch {
	case existing == nil:
		p.status = tag.StatusReapplied
	case existing.Status != tag.StatusNone:
		return p, false
	case !indicator.Equal(existing.Indicator, ind):
		p.existing, p.status = existing, tag.StatusExplicit
	case traits.AlwaysRestate:
		p.existing, p.status = existing, tag.StatusReapplied
	default:
		p.existing, p.status = existing, tag.StatusRedundant
	}
	return p, true
}

// prevailing picks the record compared against among records sharing a
// position: an active tempo trend beats a plain mark, a plain dynamic beats a
// hairpin start, otherwise the latest attached wins. Span stops never prevail.
func prevailing(records []*score.Attachment) *score.Attachment {
	var winner *score.Attachment
	for _, record := range records {
		if indicator.IsSpanStop(record.Indicator) {
			continue
		}
		if winner == nil || rank(record) > rank(winner) || (rank(record) == rank(winner) && record.ID > winner.ID) {
			winner = record
		}
	}
	return winner
}

func rank(record *score.Attachment) int {
	switch record.Indicator.(type) {
	case indicator.Accelerando, indicator.Ritardando:
		return 2
	case indicator.StartHairpin:
		return 0
	}
	return 1
}
