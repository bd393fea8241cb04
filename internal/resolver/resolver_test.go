package resolver

import (
	"errors"
	"testing"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/score"
)

type fixture struct {
	unit  *score.Unit
	staff *score.Context
	upper *score.Context
	lower *score.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	unit := score.NewUnit("01", "")
	sc := unit.MustAddContext(nil, "Score", "Score")
	staff := unit.MustAddContext(sc, "Piano_Staff", "Staff")
	upper := unit.MustAddContext(staff, "Upper_Voice", "Voice")
	lower := unit.MustAddContext(staff, "Lower_Voice", "Voice")
	for i := 0; i < 4; i++ {
		upper.AppendLeaf(score.MustOffset("1/4"))
		lower.AppendLeaf(score.MustOffset("1/4"))
	}
	return fixture{unit: unit, staff: staff, upper: upper, lower: lower}
}

func effective(t *testing.T, snap *Snapshot, leaf *score.Leaf, ch indicator.Channel) *score.Attachment {
	t.Helper()
	record, err := snap.Effective(leaf, ch)
	if err != nil {
		t.Fatalf("effective %s: %v", ch, err)
	}
	return record
}

func TestEffectiveFindsNearestPrecedingRecord(t *testing.T) {
	f := newFixture(t)
	up := f.upper.Leaves()
	low := f.lower.Leaves()
	alto := f.unit.MustAttach(up[0], indicator.Clef{Name: "alto"})
	bass := f.unit.MustAttach(low[2], indicator.Clef{Name: "bass"})
	f.unit.MustAttach(up[1], indicator.Clef{Name: "treble"}, score.Deactivated())
	mf := f.unit.MustAttach(up[1], indicator.Dynamic{Name: "mf"})

	snap := Build(f.unit)
	if got := effective(t, snap, up[1], indicator.ChannelClef); got != alto {
		t.Fatalf("deactivated clef must be ignored, got %v", got)
	}
	// Staff scope: the lower voice's clef governs the upper voice too.
	if got := effective(t, snap, up[3], indicator.ChannelClef); got != bass {
		t.Fatalf("expected staff-scoped bass clef, got %v", got)
	}
	if got := effective(t, snap, up[2], indicator.ChannelClef); got != bass {
		t.Fatalf("lookup is inclusive of the leaf's own position, got %v", got)
	}
	// Voice scope: dynamics stay in their voice.
	if got := effective(t, snap, up[3], indicator.ChannelDynamic); got != mf {
		t.Fatalf("expected mf in upper voice, got %v", got)
	}
	if got := effective(t, snap, low[3], indicator.ChannelDynamic); got != nil {
		t.Fatalf("lower voice has no dynamic, got %v", got)
	}
	if got := effective(t, snap, up[0], indicator.ChannelDynamic); got != nil {
		t.Fatalf("nothing precedes the first leaf, got %v", got)
	}
	if _, err := snap.Effective(up[0], indicator.ChannelNone); err == nil {
		t.Fatalf("transient channel has no effective value")
	}
}

func TestSnapshotIgnoresLaterInjections(t *testing.T) {
	f := newFixture(t)
	leaf := f.upper.Leaves()[0]
	snap := Build(f.unit)
	if _, err := f.unit.Inject(leaf, indicator.Clef{Name: "alto"}); err != nil {
		t.Fatal(err)
	}
	if got := effective(t, snap, leaf, indicator.ChannelClef); got != nil {
		t.Fatalf("snapshot must not observe records attached after Build, got %v", got)
	}
	if got := effective(t, Build(f.unit), leaf, indicator.ChannelClef); got == nil {
		t.Fatalf("fresh snapshot should see the injection")
	}
}

func TestPrecedingIsStrict(t *testing.T) {
	f := newFixture(t)
	up := f.upper.Leaves()
	first := f.unit.MustAttach(up[0], indicator.Dynamic{Name: "p"})
	second := f.unit.MustAttach(up[2], indicator.Dynamic{Name: "p"})
	hairpin := f.unit.MustAttach(up[2], indicator.StartHairpin{Shape: "<"})
	snap := Build(f.unit)
	if got := snap.Preceding(second); got != first {
		t.Fatalf("expected first p, got %v", got)
	}
	if got := snap.Preceding(first); got != nil {
		t.Fatalf("nothing precedes the first record, got %v", got)
	}
	if got := snap.Preceding(hairpin); got != first {
		t.Fatalf("records at the same position do not precede each other, got %v", got)
	}
}

func TestTrendWinsOverMarkAtSamePosition(t *testing.T) {
	f := newFixture(t)
	leaf := f.upper.Leaves()[1]
	accel := f.unit.MustAttach(leaf, indicator.Accelerando{})
	mark := f.unit.MustAttach(leaf, indicator.MetronomeMark{Reference: "1/4", Units: 60})
	snap := Build(f.unit)
	if got := effective(t, snap, f.lower.Leaves()[3], indicator.ChannelTempo); got != accel {
		t.Fatalf("trend should override mark at the same position, got %v", got)
	}
	at := snap.At(mark.Governor, mark.Indicator, leaf.Start)
	if len(at) != 2 || at[0] != accel || at[1] != mark {
		t.Fatalf("At should return both records in attach order, got %v", at)
	}
	if mark.Governor.Name != "Score" {
		t.Fatalf("tempo is score-scoped, governor %s", mark.Governor.Name)
	}
}

func TestOverridesResolvePerProperty(t *testing.T) {
	f := newFixture(t)
	up := f.upper.Leaves()
	beam := f.unit.MustAttach(up[0], indicator.Override{Grob: "Beam", Property: "positions", Value: "1"})
	stem := f.unit.MustAttach(up[1], indicator.Override{Grob: "Stem", Property: "direction", Value: "#up"})
	snap := Build(f.unit)
	if got := snap.EffectiveFor(up[3], indicator.Override{Grob: "Beam", Property: "positions"}); got != beam {
		t.Fatalf("expected beam override, got %v", got)
	}
	if got := snap.EffectiveFor(up[3], indicator.Override{Grob: "Stem", Property: "direction"}); got != stem {
		t.Fatalf("expected stem override, got %v", got)
	}
	if got := snap.EffectiveFor(up[3], indicator.Tie{}); got != nil {
		t.Fatalf("transient indicators resolve to nothing")
	}
}

func TestEffectiveRejectsOverrideChannel(t *testing.T) {
	f := newFixture(t)
	up := f.upper.Leaves()
	beam := f.unit.MustAttach(up[0], indicator.Override{Grob: "Beam", Property: "positions", Value: "1"})
	snap := Build(f.unit)
	got, err := snap.Effective(up[1], indicator.ChannelOverride)
	if !errors.Is(err, ErrKeyedChannel) || got != nil {
		t.Fatalf("expected ErrKeyedChannel, got %v, %v", got, err)
	}
	if got := snap.EffectiveFor(up[1], beam.Indicator); got != beam {
		t.Fatalf("EffectiveFor should still resolve the override, got %v", got)
	}
	if _, err := snap.Effective(nil, indicator.ChannelClef); err == nil {
		t.Fatalf("nil leaf must be rejected")
	}
}

func TestSpanStopFallsBackToSettledValue(t *testing.T) {
	f := newFixture(t)
	up := f.upper.Leaves()
	mf := f.unit.MustAttach(up[0], indicator.Dynamic{Name: "mf"})
	hairpin := f.unit.MustAttach(up[1], indicator.StartHairpin{Shape: "<"})
	stop := f.unit.MustAttach(up[2], indicator.StopHairpin{})
	again := f.unit.MustAttach(up[3], indicator.Dynamic{Name: "mf"})
	snap := Build(f.unit)
	if got := effective(t, snap, up[1], indicator.ChannelDynamic); got != hairpin {
		t.Fatalf("open hairpin is in force, got %v", got)
	}
	if got := effective(t, snap, up[2], indicator.ChannelDynamic); got != mf {
		t.Fatalf("stop should leave mf in force, got %v", got)
	}
	if got := snap.Preceding(again); got != mf {
		t.Fatalf("preceding must skip the stop, got %v", got)
	}
	if got := snap.EffectiveFor(up[2], stop.Indicator); got != mf {
		t.Fatalf("EffectiveFor must not return the stop, got %v", got)
	}
}

func TestStopWithoutSettledValueLeavesNothing(t *testing.T) {
	f := newFixture(t)
	up := f.upper.Leaves()
	f.unit.MustAttach(up[0], indicator.StartHairpin{Shape: ">"})
	f.unit.MustAttach(up[1], indicator.StopHairpin{})
	snap := Build(f.unit)
	if got := effective(t, snap, up[3], indicator.ChannelDynamic); got != nil {
		t.Fatalf("nothing settled before the stop, got %v", got)
	}
}

func TestResetClearsValue(t *testing.T) {
	f := newFixture(t)
	up := f.upper.Leaves()
	up8 := f.unit.MustAttach(up[0], indicator.Ottava{N: 1})
	reset := f.unit.MustAttach(up[2], indicator.Ottava{N: 0})
	snap := Build(f.unit)
	if got := effective(t, snap, up[1], indicator.ChannelOctaveShift); got != up8 {
		t.Fatalf("expected ottava in force, got %v", got)
	}
	if got := effective(t, snap, up[3], indicator.ChannelOctaveShift); got != nil {
		t.Fatalf("reset must clear the ottava, got %v", got)
	}
	if got := snap.Preceding(reset); got != up8 {
		t.Fatalf("the reset is preceded by the ottava, got %v", got)
	}
	if got := Build(f.unit).Governed(f.staff); len(got) != 2 {
		t.Fatalf("governed keeps stops and resets for capture, got %v", got)
	}
}

func TestGovernedOrdersByPosition(t *testing.T) {
	f := newFixture(t)
	up := f.upper.Leaves()
	low := f.lower.Leaves()
	late := f.unit.MustAttach(up[3], indicator.Clef{Name: "treble"})
	early := f.unit.MustAttach(low[0], indicator.Clef{Name: "bass"})
	lines := f.unit.MustAttach(up[1], indicator.StaffLines{Count: 1})
	f.unit.MustAttach(up[2], indicator.Dynamic{Name: "f"})
	got := Build(f.unit).Governed(f.staff)
	if len(got) != 3 || got[0] != early || got[1] != lines || got[2] != late {
		t.Fatalf("unexpected governed records %v", got)
	}
}
