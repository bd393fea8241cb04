package tag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/carryover/internal/indicator"
)

func TestForBuildsNamespacedIdentifiers(t *testing.T) {
	cases := []struct {
		status  Status
		channel indicator.Channel
		variant Variant
		want    ID
	}{
		{StatusReapplied, indicator.ChannelClef, VariantStatus, "REAPPLIED_CLEF"},
		{StatusExplicit, indicator.ChannelClef, VariantColor, "EXPLICIT_CLEF_COLOR"},
		{StatusRedundant, indicator.ChannelClef, VariantRedrawColor, "REDUNDANT_CLEF_REDRAW_COLOR"},
		{StatusDefault, indicator.ChannelInstrument, VariantAlert, "DEFAULT_INSTRUMENT_ALERT"},
		{StatusReapplied, indicator.ChannelTempo, VariantStatus, "REAPPLIED_METRONOME_MARK"},
		{StatusExplicit, indicator.ChannelShortInstrumentName, VariantRedrawColor, "EXPLICIT_SHORT_INSTRUMENT_NAME_REDRAW_COLOR"},
		{StatusRedundant, indicator.ChannelOverride, VariantColor, "REDUNDANT_PERSISTENT_OVERRIDE_COLOR"},
	}
	for _, tc := range cases {
		id, err := For(tc.status, tc.channel, tc.variant)
		require.NoError(t, err)
		require.Equal(t, tc.want, id)

		parsed, ok := Parse(id)
		require.True(t, ok, string(id))
		require.Equal(t, Parsed{Status: tc.status, Channel: tc.channel, Variant: tc.variant}, parsed)
	}
}

func TestForRejectsInvalidInput(t *testing.T) {
	_, err := For(StatusNone, indicator.ChannelClef, VariantStatus)
	require.Error(t, err)
	_, err = For(StatusExplicit, indicator.ChannelNone, VariantStatus)
	require.Error(t, err)
	_, err = For(StatusExplicit, indicator.ChannelClef, Variant(99))
	require.Error(t, err)
	require.Panics(t, func() { MustFor("bogus", indicator.ChannelClef, VariantStatus) })
}

func TestParseIgnoresForeignTags(t *testing.T) {
	for _, id := range []ID{"", "SPACER", "EXPLICIT", "LATE_CLEF", "EXPLICIT_GLISSANDO", "-PARTS"} {
		_, ok := Parse(id)
		require.False(t, ok, string(id))
	}
}

func TestColorsArePureFunctionsOfStatus(t *testing.T) {
	require.Equal(t, "DarkViolet", Color(StatusDefault))
	require.Equal(t, "blue", Color(StatusExplicit))
	require.Equal(t, "green4", Color(StatusReapplied))
	require.Equal(t, "DeepPink1", Color(StatusRedundant))
	require.Equal(t, "violet", RedrawColor(StatusDefault))
	require.Equal(t, "DeepSkyBlue2", RedrawColor(StatusExplicit))
	require.Equal(t, "OliveDrab", RedrawColor(StatusReapplied))
	require.Equal(t, "DeepPink4", RedrawColor(StatusRedundant))
	seen := map[string]bool{}
	for _, status := range []Status{StatusDefault, StatusExplicit, StatusReapplied, StatusRedundant} {
		require.False(t, seen[Color(status)])
		seen[Color(status)] = true
		require.False(t, seen[RedrawColor(status)])
		seen[RedrawColor(status)] = true
	}
}

func TestActivationByBuild(t *testing.T) {
	status := MustFor(StatusReapplied, indicator.ChannelInstrument, VariantStatus)
	color := MustFor(StatusReapplied, indicator.ChannelInstrument, VariantColor)
	redraw := MustFor(StatusReapplied, indicator.ChannelClef, VariantRedrawColor)
	alert := MustFor(StatusReapplied, indicator.ChannelInstrument, VariantAlert)

	require.True(t, Active(status, BuildParts))
	require.True(t, Active(color, BuildProofing))
	require.False(t, Active(color, BuildScore))
	require.False(t, Active(redraw, BuildParts))
	require.True(t, Active(alert, BuildScore))
	require.False(t, Active(alert, BuildParts))
	require.True(t, Active("SPACER", BuildParts))

	require.True(t, Debug(color))
	require.True(t, Debug(redraw))
	require.False(t, Debug(alert))

	stripped := StripForParts([]ID{status, redraw, "SPACER", color, alert})
	require.Equal(t, []ID{status, alert, "SPACER"}, stripped)
}
