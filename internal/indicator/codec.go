package indicator

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrAmbiguous indicates an inline value could not be decoded into exactly one
// known indicator type.
var ErrAmbiguous = errors.New("indicator: ambiguous reconstruction")

// DecodeError describes why an inline value could not be decoded.
type DecodeError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("indicator: decode %s.%s: %s", e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("indicator: decode %s: %s", e.Kind, e.Reason)
}

func (e *DecodeError) Unwrap() error { return ErrAmbiguous }

// Fields carries an indicator's constructor arguments by name.
type Fields map[string]string

// Encode returns the indicator's type tag and constructor arguments. Empty
// string arguments are omitted.
func Encode(ind Indicator) (Kind, Fields) {
	f := Fields{}
	switch v := ind.(type) {
	case Clef:
		f.set("name", v.Name)
	case Dynamic:
		f.set("name", v.Name)
		f.set("command", v.Command)
		if v.Forced {
			f.set("forced", "true")
		}
	case StartHairpin:
		f.set("shape", v.Shape)
	case Instrument:
		f.set("name", v.Name)
		f.set("range", v.Range)
	case ShortInstrumentName:
		f.set("markup", v.Markup)
	case MetronomeMark:
		f.set("reference", v.Reference)
		f.set("units", strconv.Itoa(v.Units))
		f.set("text", v.Text)
	case Ottava:
		f.set("n", strconv.Itoa(v.N))
	case StaffLines:
		f.set("count", strconv.Itoa(v.Count))
	case BarExtent:
		f.set("count", strconv.Itoa(v.Count))
	case TimeSignature:
		f.set("numerator", strconv.Itoa(v.Numerator))
		f.set("denominator", strconv.Itoa(v.Denominator))
	case Override:
		f.set("context", v.Context)
		f.set("grob", v.Grob)
		f.set("property", v.Property)
		f.set("value", v.Value)
	case Color:
		f.set("grob", v.Grob)
		f.set("value", v.Value)
	case Alert:
		f.set("text", v.Text)
	}
	if len(f) == 0 {
		f = nil
	}
	return ind.Kind(), f
}

// Decode rebuilds an indicator from its type tag and constructor arguments.
// Unknown tags, unknown fields, and malformed values fail with ErrAmbiguous.
func Decode(kind Kind, fields Fields) (Indicator, error) {
	d := decoder{kind: kind, fields: fields}
	var ind Indicator
	switch kind {
	case KindClef:
		ind = Clef{Name: d.required("name")}
	case KindDynamic:
		ind = Dynamic{Name: d.required("name"), Command: d.optional("command"), Forced: d.boolean("forced")}
	case KindStartHairpin:
		ind = StartHairpin{Shape: d.required("shape")}
	case KindStopHairpin:
		ind = StopHairpin{}
	case KindInstrument:
		ind = Instrument{Name: d.required("name"), Range: d.optional("range")}
	case KindShortInstrumentName:
		ind = ShortInstrumentName{Markup: d.required("markup")}
	case KindMetronomeMark:
		ind = MetronomeMark{Reference: d.required("reference"), Units: d.integer("units", true), Text: d.optional("text")}
	case KindAccelerando:
		ind = Accelerando{}
	case KindRitardando:
		ind = Ritardando{}
	case KindOttava:
		ind = Ottava{N: d.integer("n", false)}
	case KindStaffLines:
		ind = StaffLines{Count: d.integer("count", true)}
	case KindBarExtent:
		ind = BarExtent{Count: d.integer("count", true)}
	case KindTimeSignature:
		ind = TimeSignature{Numerator: d.integer("numerator", true), Denominator: d.integer("denominator", true)}
	case KindOverride:
		ind = Override{
			Context:  d.optional("context"),
			Grob:     d.required("grob"),
			Property: d.required("property"),
			Value:    d.required("value"),
		}
	case KindTie:
		ind = Tie{}
	case KindRepeatTie:
		ind = RepeatTie{}
	case KindColor:
		ind = Color{Grob: d.required("grob"), Value: d.required("value")}
	case KindAlert:
		ind = Alert{Text: d.required("text")}
	default:
		return nil, &DecodeError{Kind: kind, Reason: "unknown indicator type"}
	}
	if d.err != nil {
		return nil, d.err
	}
	if err := d.checkUnused(); err != nil {
		return nil, err
	}
	return ind, nil
}

// Describe renders an indicator as Kind(field=value, ...) for diagnostics.
func Describe(ind Indicator) string {
	if ind == nil {
		return "<none>"
	}
	if r, ok := ind.(Redraw); ok {
		return fmt.Sprintf("Redraw(%s, color=%s)", Describe(r.Of), r.Color)
	}
	kind, fields := Encode(ind)
	if len(fields) == 0 {
		return string(kind) + "()"
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = key + "=" + fields[key]
	}
	return fmt.Sprintf("%s(%s)", kind, strings.Join(parts, ", "))
}

func (f Fields) set(key, value string) {
	if value == "" {
		return
	}
	f[key] = value
}

type decoder struct {
	kind   Kind
	fields Fields
	used   map[string]struct{}
	err    error
}

func (d *decoder) take(key string) (string, bool) {
	if d.used == nil {
		d.used = map[string]struct{}{}
	}
	d.used[key] = struct{}{}
	value, ok := d.fields[key]
	return strings.TrimSpace(value), ok && strings.TrimSpace(value) != ""
}

func (d *decoder) fail(field, reason string) {
	if d.err == nil {
		d.err = &DecodeError{Kind: d.kind, Field: field, Reason: reason}
	}
}

func (d *decoder) required(key string) string {
	value, ok := d.take(key)
	if !ok {
		d.fail(key, "missing value")
	}
	return value
}

func (d *decoder) optional(key string) string {
	value, _ := d.take(key)
	return value
}

func (d *decoder) integer(key string, required bool) int {
	value, ok := d.take(key)
	if !ok {
		if required {
			d.fail(key, "missing value")
		}
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		d.fail(key, fmt.Sprintf("not an integer: %q", value))
		return 0
	}
	return n
}

func (d *decoder) boolean(key string) bool {
	value, ok := d.take(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		d.fail(key, fmt.Sprintf("not a boolean: %q", value))
		return false
	}
	return b
}

func (d *decoder) checkUnused() error {
	var extra []string
	for key := range d.fields {
		if _, ok := d.used[key]; !ok {
			extra = append(extra, key)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return &DecodeError{Kind: d.kind, Field: extra[0], Reason: "unexpected field"}
}
