// Package tag maps indicator status to the tag identifiers and colors consumed
// by the render step, and decides which tagged attachments are active for a
// given build kind.
package tag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/carryover/internal/indicator"
)

// Status explains why a persistent indicator is present.
type Status string

const (
	StatusNone      Status = ""
	StatusDefault   Status = "default"
	StatusExplicit  Status = "explicit"
	StatusReapplied Status = "reapplied"
	StatusRedundant Status = "redundant"
)

// Valid reports whether the status is one of the four assigned values.
func (s Status) Valid() bool {
	switch s {
	case StatusDefault, StatusExplicit, StatusReapplied, StatusRedundant:
		return true
	}
	return false
}

// Variant selects which attachment a tag identifies.
type Variant int

const (
	// VariantStatus tags the indicator record itself.
	VariantStatus Variant = iota
	VariantColor
	VariantRedrawColor
	VariantAlert
)

var variantSuffix = map[Variant]string{
	VariantStatus:      "",
	VariantColor:       "_COLOR",
	VariantRedrawColor: "_REDRAW_COLOR",
	VariantAlert:       "_ALERT",
}

// ID is a tag identifier of the form {STATUS}_{CHANNEL}[_VARIANT].
type ID string

// For builds the tag identifier for a status, channel and variant.
func For(status Status, channel indicator.Channel, variant Variant) (ID, error) {
	if !status.Valid() {
		return "", fmt.Errorf("tag: invalid status %q", status)
	}
	traits, ok := indicator.TraitsFor(channel)
	if !ok {
		return "", fmt.Errorf("tag: channel %q is not persistent", channel)
	}
	suffix, ok := variantSuffix[variant]
	if !ok {
		return "", fmt.Errorf("tag: unknown variant %d", variant)
	}
	return ID(strings.ToUpper(string(status)) + "_" + traits.Name + suffix), nil
}

// MustFor is For for callers that have already validated their inputs.
func MustFor(status Status, channel indicator.Channel, variant Variant) ID {
	id, err := For(status, channel, variant)
	if err != nil {
		panic(err)
	}
	return id
}

// Parsed is the decomposition of a status tag.
type Parsed struct {
	Status  Status
	Channel indicator.Channel
	Variant Variant
}

// Parse decomposes a tag produced by For. Tags outside the namespace report
// false.
func Parse(id ID) (Parsed, bool) {
	s := string(id)
	variant := VariantStatus
	for _, v := range []Variant{VariantRedrawColor, VariantColor, VariantAlert} {
		if strings.HasSuffix(s, variantSuffix[v]) {
			variant = v
			s = strings.TrimSuffix(s, variantSuffix[v])
			break
		}
	}
	head, rest, found := strings.Cut(s, "_")
	if !found {
		return Parsed{}, false
	}
	status := Status(strings.ToLower(head))
	if !status.Valid() {
		return Parsed{}, false
	}
	for _, ch := range indicator.Channels() {
		traits, _ := indicator.TraitsFor(ch)
		if traits.Name == rest {
			return Parsed{Status: status, Channel: ch, Variant: variant}, true
		}
	}
	return Parsed{}, false
}

var statusColors = map[Status]string{
	StatusDefault:   "DarkViolet",
	StatusExplicit:  "blue",
	StatusReapplied: "green4",
	StatusRedundant: "DeepPink1",
}

var redrawColors = map[Status]string{
	StatusDefault:   "violet",
	StatusExplicit:  "DeepSkyBlue2",
	StatusReapplied: "OliveDrab",
	StatusRedundant: "DeepPink4",
}

// Color returns the proofing color for a status.
func Color(status Status) string {
	return statusColors[status]
}

// RedrawColor returns the color used for the delayed redraw of a status.
func RedrawColor(status Status) string {
	return redrawColors[status]
}

// Build identifies what the render step is producing.
type Build string

const (
	BuildProofing Build = "proofing"
	BuildScore    Build = "score"
	BuildParts    Build = "parts"
)

// Valid reports whether the build kind is known.
func (b Build) Valid() bool {
	switch b {
	case BuildProofing, BuildScore, BuildParts:
		return true
	}
	return false
}

// Debug reports whether a tag only matters for proofing output.
func Debug(id ID) bool {
	parsed, ok := Parse(id)
	if !ok {
		return false
	}
	return parsed.Variant == VariantColor || parsed.Variant == VariantRedrawColor
}

// Active reports whether an attachment carrying the tag renders in the build.
// Tags outside the namespace are always active.
func Active(id ID, build Build) bool {
	parsed, ok := Parse(id)
	if !ok {
		return true
	}
	switch parsed.Variant {
	case VariantColor, VariantRedrawColor:
		return build == BuildProofing
	case VariantAlert:
		return build != BuildParts
	default:
		return true
	}
}

// StripForParts drops debug-only tags and returns the rest sorted.
func StripForParts(ids []ID) []ID {
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if Debug(id) {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
