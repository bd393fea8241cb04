package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/carryover/internal/indicator"
)

const manifestYAML = `
abjad.Instrument:
  Violin: {name: violin, range: "[G3, A7]"}
  Viola: {name: viola}
  Fiddle: {name: violin, range: "[G3, A7]"}
abjad.MetronomeMark:
  Adagio: {reference: 1/4, units: "60", text: Adagio}
abjad.ShortInstrumentName:
  Vn: {markup: Vn.}
`

func TestParseAndLookup(t *testing.T) {
	m, err := Parse([]byte(manifestYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Instruments) != 3 || len(m.MetronomeMarks) != 1 || len(m.ShortInstrumentNames) != 1 {
		t.Fatalf("unexpected sizes %+v", m)
	}
	got, err := m.Lookup(indicator.KindMetronomeMark, "Adagio")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != (indicator.MetronomeMark{Reference: "1/4", Units: 60, Text: "Adagio"}) {
		t.Fatalf("unexpected mark %v", got)
	}
	key, err := m.KeyFor(indicator.Instrument{Name: "violin", Range: "[G3, A7]"})
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	if key != "Fiddle" {
		t.Fatalf("equal values resolve to the lexically first key, got %s", key)
	}
}

func TestLookupMiss(t *testing.T) {
	m, err := Parse([]byte(manifestYAML))
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Lookup(indicator.KindInstrument, "Cello")
	if !errors.Is(err, ErrLookupMiss) {
		t.Fatalf("expected ErrLookupMiss, got %v", err)
	}
	var miss *LookupMissError
	if !errors.As(err, &miss) || miss.Section != SectionInstrument || miss.Key != "Cello" {
		t.Fatalf("miss lacks detail: %+v", miss)
	}
	_, err = m.KeyFor(indicator.ShortInstrumentName{Markup: "Vc."})
	if !errors.As(err, &miss) || miss.Value == nil {
		t.Fatalf("reverse miss should carry the value, got %v", err)
	}
	if _, err := m.Lookup(indicator.KindClef, "Treble"); err == nil || errors.Is(err, ErrLookupMiss) {
		t.Fatalf("clefs are not manifest-indirected, got %v", err)
	}
	var nilManifest *Manifest
	if _, err := nilManifest.Lookup(indicator.KindInstrument, "Violin"); !errors.Is(err, ErrLookupMiss) {
		t.Fatalf("nil manifest should miss, got %v", err)
	}
}

func TestIndirected(t *testing.T) {
	cases := []struct {
		ind  indicator.Indicator
		want bool
	}{
		{indicator.Instrument{Name: "violin"}, true},
		{indicator.ShortInstrumentName{Markup: "Vn."}, true},
		{indicator.MetronomeMark{Reference: "1/4", Units: 60}, true},
		{indicator.Accelerando{}, false},
		{indicator.Ritardando{}, false},
		{indicator.Clef{Name: "alto"}, false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := Indirected(tc.ind); got != tc.want {
			t.Fatalf("Indirected(%s) = %v", indicator.Describe(tc.ind), got)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown section": "abjad.Clef:\n  Treble: {name: treble}\n",
		"bad value":       "abjad.MetronomeMark:\n  Fast: {reference: 1/4, units: quick}\n",
		"extra field":     "abjad.Instrument:\n  Violin: {name: violin, tuning: gdae}\n",
		"not a mapping":   "- a\n- b\n",
	} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadFile(t *testing.T) {
	m, err := LoadFile("")
	if err != nil || len(m.Instruments) != 0 {
		t.Fatalf("empty path should yield an empty manifest, got %v", err)
	}
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte(manifestYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err = LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, ok := m.ShortInstrumentNames["Vn"]; !ok {
		t.Fatalf("expected Vn entry")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
