package score

import (
	"errors"
	"testing"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/tag"
)

func buildStaff(t *testing.T) (*Unit, *Context, *Context) {
	t.Helper()
	unit := NewUnit("01", "")
	score := unit.MustAddContext(nil, "Score", "Score")
	staff := unit.MustAddContext(score, "Violin_Staff", "Staff")
	voice := unit.MustAddContext(staff, "Violin_Voice", "Voice")
	for i := 0; i < 3; i++ {
		voice.AppendLeaf(MustOffset("1/4"))
	}
	return unit, staff, voice
}

func TestUnitTreeBasics(t *testing.T) {
	unit, staff, voice := buildStaff(t)
	if unit.Root.Name != "Document" || !unit.Root.IsRoot() {
		t.Fatalf("expected implicit Document root, got %s", unit.Root.Name)
	}
	if _, err := unit.AddContext(nil, "Violin_Voice", "Voice"); err == nil {
		t.Fatalf("expected duplicate context name error")
	}
	if _, err := unit.AddContext(nil, " ", "Voice"); err == nil {
		t.Fatalf("expected error for empty context name")
	}
	other := NewUnit("02", "")
	if _, err := unit.AddContext(other.Root, "Stray", "Voice"); err == nil {
		t.Fatalf("expected error for foreign parent")
	}
	names := []string{}
	for _, ctx := range unit.Contexts() {
		names = append(names, ctx.Name)
	}
	want := []string{"Document", "Score", "Violin_Staff", "Violin_Voice"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("contexts not sorted by name: %v", names)
		}
	}
	leaves := voice.Leaves()
	if leaves[2].Start.String() != "1/2" || unit.Duration().String() != "3/4" {
		t.Fatalf("leaf starts wrong: %s, duration %s", leaves[2].Start, unit.Duration())
	}
	if staff.FirstLeaf() != leaves[0] {
		t.Fatalf("staff first leaf should be the voice's first leaf")
	}
	if voice.Governing(indicator.ScopeStaff) != staff {
		t.Fatalf("voice should be governed by its staff for staff scope")
	}
	if voice.Governing(indicator.ScopeVoice) != voice {
		t.Fatalf("voice scope governs itself")
	}
	lone := unit.MustAddContext(nil, "Loose_Voice", "Voice")
	if lone.Governing(indicator.ScopeStaff) != lone {
		t.Fatalf("context without a staff ancestor governs itself")
	}
}

func TestFirstLeafPrefersRealLeaves(t *testing.T) {
	unit := NewUnit("01", "")
	staff := unit.MustAddContext(nil, "Staff", "Staff")
	skips := unit.MustAddContext(staff, "Skips", "Voice")
	skips.AppendLeaf(Offset{})
	music := unit.MustAddContext(staff, "Music", "Voice")
	music.AppendLeaf(MustOffset("1/2"))
	first := staff.FirstLeaf()
	if first.Context != music {
		t.Fatalf("expected real leaf from Music, got %s", first.Context.Name)
	}
	empty := unit.MustAddContext(nil, "Empty", "Staff")
	if empty.FirstLeaf() != nil {
		t.Fatalf("context without leaves has no first leaf")
	}
	if !skips.Leaves()[0].IsAnchor() || !skips.Leaves()[0].IsFinal() {
		t.Fatalf("zero-duration final leaf should be a final anchor")
	}
}

func TestAttachRejectsDuplicatePersistentIndicator(t *testing.T) {
	unit, staff, voice := buildStaff(t)
	leaf := voice.Leaves()[0]
	first := unit.MustAttach(leaf, indicator.Clef{Name: "alto"})
	if first.Governor != staff {
		t.Fatalf("clef should be governed by the staff, got %s", first.Governor.Name)
	}

	_, err := unit.Attach(leaf, indicator.Clef{Name: "treble"})
	if !errors.Is(err, ErrDuplicateIndicator) {
		t.Fatalf("expected ErrDuplicateIndicator, got %v", err)
	}
	var dup *DuplicateIndicatorError
	if !errors.As(err, &dup) || dup.Existing != first || dup.Context != "Violin_Staff" || dup.Channel != indicator.ChannelClef {
		t.Fatalf("duplicate error lacks detail: %+v", dup)
	}

	// A mark and a trend, or a dynamic and a hairpin, may share a leaf.
	unit.MustAttach(leaf, indicator.MetronomeMark{Reference: "1/4", Units: 60})
	unit.MustAttach(leaf, indicator.Accelerando{})
	unit.MustAttach(leaf, indicator.Dynamic{Name: "p"})
	unit.MustAttach(leaf, indicator.StartHairpin{Shape: "<"})
	// Overrides of different properties do not collide.
	unit.MustAttach(leaf, indicator.Override{Grob: "Beam", Property: "positions", Value: "1"})
	unit.MustAttach(leaf, indicator.Override{Grob: "Stem", Property: "direction", Value: "#up"})
	if _, err := unit.Attach(leaf, indicator.Override{Grob: "Beam", Property: "positions", Value: "2"}); !errors.Is(err, ErrDuplicateIndicator) {
		t.Fatalf("expected duplicate override error, got %v", err)
	}
	// Deactivated records and transient indicators never collide.
	unit.MustAttach(leaf, indicator.Clef{Name: "bass"}, Deactivated())
	unit.MustAttach(leaf, indicator.Tie{})
	unit.MustAttach(leaf, indicator.Tie{})
	// Inject bypasses the check.
	if _, err := unit.Inject(leaf, indicator.Clef{Name: "alto"}); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	// Same clef on a later leaf is fine.
	unit.MustAttach(voice.Leaves()[1], indicator.Clef{Name: "alto"})
}

func TestAttachmentTagsAndCompanions(t *testing.T) {
	unit, _, voice := buildStaff(t)
	leaf := voice.Leaves()[1]
	record := unit.MustAttach(leaf, indicator.Clef{Name: "bass"}, WithTags("B", "A", "B"), WithSyntheticOffset(MustOffset("-1/8")))
	if len(record.Tags) != 2 || record.Tags[0] != "A" {
		t.Fatalf("tags not sorted and unique: %v", record.Tags)
	}
	record.RemoveTag("A")
	if record.HasTag("A") || !record.HasTag("B") {
		t.Fatalf("RemoveTag wrong: %v", record.Tags)
	}
	if record.Position().String() != "-1/8" {
		t.Fatalf("synthetic offset should define position, got %s", record.Position())
	}
	color, err := unit.Inject(leaf, indicator.Color{Grob: "Clef", Value: "blue"}, OwnedBy(record))
	if err != nil {
		t.Fatal(err)
	}
	if got := unit.Companions(record); len(got) != 1 || got[0] != color {
		t.Fatalf("expected one companion, got %v", got)
	}
	unit.Detach(color)
	if len(unit.Companions(record)) != 0 || color.Leaf != nil {
		t.Fatalf("Detach left the companion linked")
	}
	if _, err := unit.Attach(nil, indicator.Clef{Name: "bass"}); err == nil {
		t.Fatalf("expected error for nil leaf")
	}
	if _, err := unit.Attach(leaf, nil); err == nil {
		t.Fatalf("expected error for nil indicator")
	}
}

func TestActivateFollowsBuild(t *testing.T) {
	unit, _, voice := buildStaff(t)
	leaf := voice.Leaves()[0]
	status := unit.MustAttach(leaf, indicator.Clef{Name: "alto"}, WithStatus(tag.StatusReapplied), WithTags(tag.MustFor(tag.StatusReapplied, indicator.ChannelClef, tag.VariantStatus)))
	color, _ := unit.Inject(leaf, indicator.Color{Grob: "Clef", Value: "green4"}, OwnedBy(status), WithTags(tag.MustFor(tag.StatusReapplied, indicator.ChannelClef, tag.VariantColor)))
	alert, _ := unit.Inject(leaf, indicator.Alert{Text: "(violin)"}, OwnedBy(status), WithTags(tag.MustFor(tag.StatusReapplied, indicator.ChannelInstrument, tag.VariantAlert)))
	authored := unit.MustAttach(leaf, indicator.Dynamic{Name: "p"}, Deactivated())

	if n := unit.Activate(tag.BuildProofing); n != 0 {
		t.Fatalf("proofing should deactivate nothing, got %d", n)
	}
	if n := unit.Activate(tag.BuildScore); n != 1 || !color.Deactivated || status.Deactivated || alert.Deactivated {
		t.Fatalf("score build should deactivate only the color, got %d", n)
	}
	if n := unit.Activate(tag.BuildParts); n != 2 || !alert.Deactivated {
		t.Fatalf("parts build should deactivate color and alert, got %d", n)
	}
	if !authored.Deactivated {
		t.Fatalf("records without namespace tags keep their flag")
	}
}

func TestActivateKeepsAuthoredFlags(t *testing.T) {
	unit, _, voice := buildStaff(t)
	leaves := voice.Leaves()
	explicit := tag.MustFor(tag.StatusExplicit, indicator.ChannelClef, tag.VariantStatus)
	off := unit.MustAttach(leaves[1], indicator.Clef{Name: "bass"}, Deactivated(), WithTags(explicit))
	on := unit.MustAttach(leaves[0], indicator.Clef{Name: "alto"}, WithTags(tag.MustFor(tag.StatusExplicit, indicator.ChannelClef, tag.VariantColor)))

	for _, build := range []tag.Build{tag.BuildProofing, tag.BuildScore, tag.BuildParts} {
		if n := unit.Activate(build); n != 0 {
			t.Fatalf("%s: authored records are not counted, got %d", build, n)
		}
		if !off.Deactivated {
			t.Fatalf("%s: an authored deactivated record must stay deactivated", build)
		}
		if on.Deactivated {
			t.Fatalf("%s: an authored active record must stay active", build)
		}
	}
	if !off.HasTag(explicit) || len(on.Tags) != 1 {
		t.Fatalf("authored tags must survive parts builds, got %v and %v", off.Tags, on.Tags)
	}
}

func TestActivateStripsDebugTagsForParts(t *testing.T) {
	unit, _, voice := buildStaff(t)
	leaf := voice.Leaves()[0]
	statusTag := tag.MustFor(tag.StatusReapplied, indicator.ChannelClef, tag.VariantStatus)
	clef := unit.MustAttach(leaf, indicator.Clef{Name: "alto"}, WithStatus(tag.StatusReapplied), WithTags(statusTag, "SPACER"))
	redraw, _ := unit.Inject(leaf, indicator.Redraw{Of: clef.Indicator, Color: "OliveDrab"}, OwnedBy(clef), WithTags(tag.MustFor(tag.StatusReapplied, indicator.ChannelClef, tag.VariantRedrawColor)))

	if n := unit.Activate(tag.BuildParts); n != 1 || !redraw.Deactivated {
		t.Fatalf("redraw color is proofing-only, got %d", n)
	}
	if len(redraw.Tags) != 0 {
		t.Fatalf("debug tags should be stripped for parts, got %v", redraw.Tags)
	}
	if len(clef.Tags) != 2 || !clef.HasTag(statusTag) || !clef.HasTag("SPACER") {
		t.Fatalf("status and foreign tags survive, got %v", clef.Tags)
	}
	if n := unit.Activate(tag.BuildParts); n != 1 || !redraw.Deactivated {
		t.Fatalf("a second parts pass keeps the stripped companion off, got %d", n)
	}
}
