package indicator

import (
	"sort"
)

// Channel names one persistent attribute kind. Every persistent indicator
// belongs to exactly one channel; transient indicators report ChannelNone.
type Channel string

const (
	ChannelNone                Channel = ""
	ChannelClef                Channel = "clef"
	ChannelDynamic             Channel = "dynamic"
	ChannelInstrument          Channel = "instrument"
	ChannelShortInstrumentName Channel = "short-instrument-name"
	ChannelTempo               Channel = "tempo"
	ChannelOctaveShift         Channel = "octave-shift"
	ChannelStaffLines          Channel = "staff-lines"
	ChannelBarExtent           Channel = "bar-extent"
	ChannelTimeSignature       Channel = "time-signature"
	ChannelOverride            Channel = "override"
)

// Scope names the context kind that governs a channel. ScopeVoice means the
// leaf's own context governs the value.
type Scope string

const (
	ScopeVoice Scope = ""
	ScopeStaff Scope = "Staff"
	ScopeScore Scope = "Score"
)

// Traits is the static description of a channel.
type Traits struct {
	Channel Channel
	// Name is the upper-case identifier used in the tag namespace.
	Name  string
	Scope Scope
	// Latent channels need a second, delayed redraw attachment.
	Latent bool
	// Alert channels also get an alert attachment naming the new value.
	Alert bool
	// Manifest channels persist a manifest key instead of an inline value.
	Manifest bool
	// AlwaysRestate channels are reapplied even when an equal value is present.
	AlwaysRestate bool
}

var registry = map[Channel]Traits{
	ChannelClef: {
		Channel: ChannelClef,
		Name:    "CLEF",
		Scope:   ScopeStaff,
		Latent:  true,
	},
	ChannelDynamic: {
		Channel: ChannelDynamic,
		Name:    "DYNAMIC",
		Scope:   ScopeVoice,
	},
	ChannelInstrument: {
		Channel:  ChannelInstrument,
		Name:     "INSTRUMENT",
		Scope:    ScopeStaff,
		Alert:    true,
		Manifest: true,
	},
	ChannelShortInstrumentName: {
		Channel:  ChannelShortInstrumentName,
		Name:     "SHORT_INSTRUMENT_NAME",
		Scope:    ScopeStaff,
		Latent:   true,
		Manifest: true,
	},
	ChannelTempo: {
		Channel:  ChannelTempo,
		Name:     "METRONOME_MARK",
		Scope:    ScopeScore,
		Manifest: true,
	},
	ChannelOctaveShift: {
		Channel: ChannelOctaveShift,
		Name:    "OTTAVA",
		Scope:   ScopeStaff,
	},
	ChannelStaffLines: {
		Channel: ChannelStaffLines,
		Name:    "STAFF_LINES",
		Scope:   ScopeStaff,
	},
	ChannelBarExtent: {
		Channel: ChannelBarExtent,
		Name:    "BAR_EXTENT",
		Scope:   ScopeStaff,
	},
	ChannelTimeSignature: {
		Channel:       ChannelTimeSignature,
		Name:          "TIME_SIGNATURE",
		Scope:         ScopeScore,
		AlwaysRestate: true,
	},
	ChannelOverride: {
		Channel: ChannelOverride,
		Name:    "PERSISTENT_OVERRIDE",
		Scope:   ScopeVoice,
	},
}

var orderedChannels = func() []Channel {
	out := make([]Channel, 0, len(registry))
	for ch := range registry {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}()

// TraitsFor returns the registry entry for a channel.
func TraitsFor(ch Channel) (Traits, bool) {
	traits, ok := registry[ch]
	return traits, ok
}

// Channels lists every persistent channel in sorted order.
func Channels() []Channel {
	return append([]Channel{}, orderedChannels...)
}

// Persistent reports whether the channel carries state across leaves.
func (c Channel) Persistent() bool {
	_, ok := registry[c]
	return ok
}

// ScopeOf returns the governing scope for an indicator. Overrides may name
// their own context kind; every other indicator uses its channel's scope.
func ScopeOf(ind Indicator) Scope {
	if ind == nil {
		return ScopeVoice
	}
	if o, ok := ind.(Override); ok && o.Context != "" {
		return Scope(o.Context)
	}
	traits, ok := registry[ind.Channel()]
	if !ok {
		return ScopeVoice
	}
	return traits.Scope
}

// PersistenceKey groups indicators that supersede each other. Within one
// governing context at most one value per key is in effect at any point.
func PersistenceKey(ind Indicator) string {
	if ind == nil {
		return ""
	}
	if o, ok := ind.(Override); ok {
		return string(ChannelOverride) + ":" + o.Grob + "." + o.Property
	}
	return string(ind.Channel())
}

// AttachKey groups indicators that may not be attached twice to one leaf.
// Tempo marks may share a leaf with a trend and dynamics with a hairpin.
func AttachKey(ind Indicator) string {
	if ind == nil {
		return ""
	}
	if o, ok := ind.(Override); ok {
		return PersistenceKey(o)
	}
	return string(ind.Kind())
}
