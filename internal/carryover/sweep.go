package carryover

import (
	"fmt"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/resolver"
	"github.com/kingrea/carryover/internal/score"
	"github.com/kingrea/carryover/internal/tag"
)

// ApplyDefaults attaches each configured default, with status default, to the
// first leaf of every context of the default's scope that has no value for it
// yet. Voice-scope defaults go to contexts that own leaves.
func (e *Engine) ApplyDefaults(unit *score.Unit) ([]*score.Attachment, error) {
	if len(e.defaults) == 0 {
		return nil, nil
	}
	snap := resolver.Build(unit)
	type pendingDefault struct {
		leaf *score.Leaf
		ind  indicator.Indicator
	}
	var pending []pendingDefault
	for _, ctx := range unit.Contexts() {
		if ctx.IsRoot() || e.excluded[ctx.Name] {
			continue
		}
		first := ctx.FirstLeaf()
		if first == nil {
			continue
		}
		for _, d := range e.defaults {
			if !scoped(ctx, indicator.ScopeOf(d)) {
				continue
			}
			if first.Context.Governing(indicator.ScopeOf(d)) != ctx {
				continue
			}
			if snap.EffectiveFor(first, d) != nil {
				continue
			}
			pending = append(pending, pendingDefault{leaf: first, ind: d})
		}
	}
	var treated []*score.Attachment
	for _, p := range pending {
		record, err := unit.Inject(p.leaf, p.ind)
		if err != nil {
			return nil, fmt.Errorf("carryover: default for %s: %w", p.leaf.Context.Name, err)
		}
		if err := e.emit(unit, record, tag.StatusDefault); err != nil {
			return nil, fmt.Errorf("carryover: default for %s: %w", p.leaf.Context.Name, err)
		}
		treated = append(treated, record)
	}
	return treated, nil
}

func scoped(ctx *score.Context, scope indicator.Scope) bool {
	if scope == indicator.ScopeVoice {
		return len(ctx.Leaves()) > 0
	}
	return ctx.Kind == string(scope)
}

// Sweep classifies every active persistent record that has no status yet
// against the value in force strictly before it: equal is redundant, anything
// else is explicit. Span stops and resets carry no value and stay unclassified.
func (e *Engine) Sweep(unit *score.Unit) ([]*score.Attachment, error) {
	snap := resolver.Build(unit)
	type decision struct {
		record *score.Attachment
		status tag.Status
	}
	var decisions []decision
	for _, record := range unit.Records() {
		if record.Deactivated || !record.Persistent() || record.Status != tag.StatusNone {
			continue
		}
		if indicator.IsSpanStop(record.Indicator) || indicator.IsReset(record.Indicator) {
			continue
		}
		status := tag.StatusExplicit
		if prior := snap.Preceding(record); prior != nil && indicator.Equal(prior.Indicator, record.Indicator) {
			status = tag.StatusRedundant
		}
		decisions = append(decisions, decision{record: record, status: status})
	}
	treated := make([]*score.Attachment, 0, len(decisions))
	for _, d := range decisions {
		if err := e.emit(unit, d.record, d.status); err != nil {
			return nil, fmt.Errorf("carryover: sweep %s: %w", unit.Name, err)
		}
		treated = append(treated, d.record)
	}
	return treated, nil
}

// FixNegativeOffsets reclassifies a reapplied record placed before the first
// real leaf as explicit when an explicit record of the same key and governor
// sits at the same position. Its tags and companions are re-emitted.
func (e *Engine) FixNegativeOffsets(unit *score.Unit) ([]*score.Attachment, error) {
	snap := resolver.Build(unit)
	var fixes []*score.Attachment
	for _, record := range unit.Records() {
		if record.Status != tag.StatusReapplied || record.SyntheticOffset == nil || record.SyntheticOffset.Sign() >= 0 {
			continue
		}
		for _, other := range snap.At(record.Governor, record.Indicator, record.Position()) {
			if other != record && other.Status == tag.StatusExplicit {
				fixes = append(fixes, record)
				break
			}
		}
	}
	for _, record := range fixes {
		if err := e.emit(unit, record, tag.StatusExplicit); err != nil {
			return nil, fmt.Errorf("carryover: fix %s: %w", unit.Name, err)
		}
	}
	return fixes, nil
}
