// Package indicator defines the closed set of musical indicators that can be
// attached to leaves, the registry of persistent channels they belong to, and
// the per-channel equality rules used when classifying carried-over state.
package indicator

// Kind is the reconstructable type tag of an indicator.
type Kind string

const (
	KindClef                Kind = "Clef"
	KindDynamic             Kind = "Dynamic"
	KindStartHairpin        Kind = "StartHairpin"
	KindStopHairpin         Kind = "StopHairpin"
	KindInstrument          Kind = "Instrument"
	KindShortInstrumentName Kind = "ShortInstrumentName"
	KindMetronomeMark       Kind = "MetronomeMark"
	KindAccelerando         Kind = "Accelerando"
	KindRitardando          Kind = "Ritardando"
	KindOttava              Kind = "Ottava"
	KindStaffLines          Kind = "StaffLines"
	KindBarExtent           Kind = "BarExtent"
	KindTimeSignature       Kind = "TimeSignature"
	KindOverride            Kind = "PersistentOverride"
	KindTie                 Kind = "Tie"
	KindRepeatTie           Kind = "RepeatTie"
	KindColor               Kind = "Color"
	KindAlert               Kind = "Alert"
	KindRedraw              Kind = "Redraw"
)

// Indicator is a value bound to a leaf. The set of implementations is closed
// to this package.
type Indicator interface {
	Kind() Kind
	Channel() Channel
	indicator()
}

// Clef sets the staff clef.
type Clef struct {
	Name string
}

// Dynamic is a dynamic marking. Forced dynamics are never equal to anything,
// including an identical forced dynamic.
type Dynamic struct {
	Name    string
	Command string
	Forced  bool
}

// StartHairpin opens a crescendo or diminuendo.
type StartHairpin struct {
	Shape string
}

// StopHairpin closes a hairpin without setting a new dynamic.
type StopHairpin struct{}

// Instrument is resolved through the manifest.
type Instrument struct {
	Name  string
	Range string
}

// ShortInstrumentName is the abbreviated staff label.
type ShortInstrumentName struct {
	Markup string
}

// MetronomeMark is a plain tempo mark.
type MetronomeMark struct {
	Reference string
	Units     int
	Text      string
}

// Accelerando is an active tempo trend.
type Accelerando struct{}

// Ritardando is an active tempo trend.
type Ritardando struct{}

// Ottava shifts notation by N octaves. Ottava{N: 0} resets the shift.
type Ottava struct {
	N int
}

// StaffLines sets the number of staff lines.
type StaffLines struct {
	Count int
}

// BarExtent sets the vertical extent of bar lines in staff-line units.
type BarExtent struct {
	Count int
}

// TimeSignature is always restated when carried into a new unit.
type TimeSignature struct {
	Numerator   int
	Denominator int
}

// Override is an arbitrary named grob property override.
type Override struct {
	Context  string
	Grob     string
	Property string
	Value    string
}

// Tie and RepeatTie are transient; they never cross a unit boundary.
type Tie struct{}

type RepeatTie struct{}

// Color paints a grob. Emitted only for proofing builds.
type Color struct {
	Grob  string
	Value string
}

// Alert is a textual cue printed where a latent indicator takes effect.
type Alert struct {
	Text string
}

// Redraw re-prints an indicator after a line break.
type Redraw struct {
	Of    Indicator
	Color string
}

func (Clef) Kind() Kind                { return KindClef }
func (Dynamic) Kind() Kind             { return KindDynamic }
func (StartHairpin) Kind() Kind        { return KindStartHairpin }
func (StopHairpin) Kind() Kind         { return KindStopHairpin }
func (Instrument) Kind() Kind          { return KindInstrument }
func (ShortInstrumentName) Kind() Kind { return KindShortInstrumentName }
func (MetronomeMark) Kind() Kind       { return KindMetronomeMark }
func (Accelerando) Kind() Kind         { return KindAccelerando }
func (Ritardando) Kind() Kind          { return KindRitardando }
func (Ottava) Kind() Kind              { return KindOttava }
func (StaffLines) Kind() Kind          { return KindStaffLines }
func (BarExtent) Kind() Kind           { return KindBarExtent }
func (TimeSignature) Kind() Kind       { return KindTimeSignature }
func (Override) Kind() Kind            { return KindOverride }
func (Tie) Kind() Kind                 { return KindTie }
func (RepeatTie) Kind() Kind           { return KindRepeatTie }
func (Color) Kind() Kind               { return KindColor }
func (Alert) Kind() Kind               { return KindAlert }
func (Redraw) Kind() Kind              { return KindRedraw }

func (Clef) Channel() Channel                { return ChannelClef }
func (Dynamic) Channel() Channel             { return ChannelDynamic }
func (StartHairpin) Channel() Channel        { return ChannelDynamic }
func (StopHairpin) Channel() Channel         { return ChannelDynamic }
func (Instrument) Channel() Channel          { return ChannelInstrument }
func (ShortInstrumentName) Channel() Channel { return ChannelShortInstrumentName }
func (MetronomeMark) Channel() Channel       { return ChannelTempo }
func (Accelerando) Channel() Channel         { return ChannelTempo }
func (Ritardando) Channel() Channel          { return ChannelTempo }
func (Ottava) Channel() Channel              { return ChannelOctaveShift }
func (StaffLines) Channel() Channel          { return ChannelStaffLines }
func (BarExtent) Channel() Channel           { return ChannelBarExtent }
func (TimeSignature) Channel() Channel       { return ChannelTimeSignature }
func (Override) Channel() Channel            { return ChannelOverride }
func (Tie) Channel() Channel                 { return ChannelNone }
func (RepeatTie) Channel() Channel           { return ChannelNone }
func (Color) Channel() Channel               { return ChannelNone }
func (Alert) Channel() Channel               { return ChannelNone }
func (Redraw) Channel() Channel              { return ChannelNone }

func (Clef) indicator()                {}
func (Dynamic) indicator()             {}
func (StartHairpin) indicator()        {}
func (StopHairpin) indicator()         {}
func (Instrument) indicator()          {}
func (ShortInstrumentName) indicator() {}
func (MetronomeMark) indicator()       {}
func (Accelerando) indicator()         {}
func (Ritardando) indicator()          {}
func (Ottava) indicator()              {}
func (StaffLines) indicator()          {}
func (BarExtent) indicator()           {}
func (TimeSignature) indicator()       {}
func (Override) indicator()            {}
func (Tie) indicator()                 {}
func (RepeatTie) indicator()           {}
func (Color) indicator()               {}
func (Alert) indicator()               {}
func (Redraw) indicator()              {}

// IsTrend reports whether the indicator is an active tempo trend.
func IsTrend(ind Indicator) bool {
	switch ind.(type) {
	case Accelerando, Ritardando:
		return true
	}
	return false
}

// IsSpanStop reports whether the indicator only terminates a spanning
// indicator and carries no value of its own.
func IsSpanStop(ind Indicator) bool {
	_, ok := ind.(StopHairpin)
	return ok
}

// IsTie reports whether the indicator is a tie or repeat tie.
func IsTie(ind Indicator) bool {
	switch ind.(type) {
	case Tie, RepeatTie:
		return true
	}
	return false
}

// IsReset reports whether the indicator is a zero-effect reset.
func IsReset(ind Indicator) bool {
	o, ok := ind.(Ottava)
	return ok && o.N == 0
}

// Equal applies the channel-specific equality rule.
func Equal(a, b Indicator) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Dynamic:
		y := b.(Dynamic)
		if x.Forced || y.Forced {
			return false
		}
		return x.Name == y.Name && x.Command == y.Command
	case Redraw:
		y := b.(Redraw)
		return x.Color == y.Color && Equal(x.Of, y.Of)
	default:
		return a == b
	}
}
