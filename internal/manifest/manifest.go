// Package manifest holds the per-build symbol tables that map symbolic keys to
// canonical instrument, tempo and short-instrument-name values. Manifests are
// read-only once loaded.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/carryover/internal/indicator"
)

// Section names as they appear in manifest documents.
const (
	SectionInstrument          = "abjad.Instrument"
	SectionMetronomeMark       = "abjad.MetronomeMark"
	SectionShortInstrumentName = "abjad.ShortInstrumentName"
)

// ErrLookupMiss is returned when a value or key is absent from the manifest.
var ErrLookupMiss = errors.New("manifest: lookup miss")

// LookupMissError describes a failed manifest lookup.
type LookupMissError struct {
	Section string
	Context string
	// Key is set for key lookups, Value for reverse lookups.
	Key   string
	Value indicator.Indicator
}

func (e *LookupMissError) Error() string {
	where := ""
	if e.Context != "" {
		where = " (context " + e.Context + ")"
	}
	if e.Value != nil {
		return fmt.Sprintf("manifest: %s has no key for %s%s", e.Section, indicator.Describe(e.Value), where)
	}
	return fmt.Sprintf("manifest: %s has no entry %q%s", e.Section, e.Key, where)
}

func (e *LookupMissError) Unwrap() error { return ErrLookupMiss }

// Manifest is the symbol table for the three manifest-indirected channels.
type Manifest struct {
	Instruments          map[string]indicator.Instrument
	MetronomeMarks       map[string]indicator.MetronomeMark
	ShortInstrumentNames map[string]indicator.ShortInstrumentName
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{
		Instruments:          map[string]indicator.Instrument{},
		MetronomeMarks:       map[string]indicator.MetronomeMark{},
		ShortInstrumentNames: map[string]indicator.ShortInstrumentName{},
	}
}

// Indirected reports whether ind is persisted by manifest key. Tempo trends
// belong to a manifest channel but are the one value kind persisted inline.
func Indirected(ind indicator.Indicator) bool {
	if ind == nil {
		return false
	}
	traits, ok := indicator.TraitsFor(ind.Channel())
	if !ok || !traits.Manifest {
		return false
	}
	return !indicator.IsTrend(ind)
}

// SectionFor returns the manifest section that stores values of kind.
func SectionFor(kind indicator.Kind) (string, bool) {
	switch kind {
	case indicator.KindInstrument:
		return SectionInstrument, true
	case indicator.KindMetronomeMark:
		return SectionMetronomeMark, true
	case indicator.KindShortInstrumentName:
		return SectionShortInstrumentName, true
	}
	return "", false
}

// KeyFor finds the key whose canonical value equals ind. When several keys
// map to equal values the lexically first wins.
func (m *Manifest) KeyFor(ind indicator.Indicator) (string, error) {
	section, ok := SectionFor(ind.Kind())
	if !ok {
		return "", fmt.Errorf("manifest: %s is not manifest-indirected", ind.Kind())
	}
	if m != nil {
		for _, key := range m.keys(section) {
			value, _ := m.value(section, key)
			if indicator.Equal(value, ind) {
				return key, nil
			}
		}
	}
	return "", &LookupMissError{Section: section, Value: ind}
}

// Lookup returns the canonical value stored under key for kind.
func (m *Manifest) Lookup(kind indicator.Kind, key string) (indicator.Indicator, error) {
	section, ok := SectionFor(kind)
	if !ok {
		return nil, fmt.Errorf("manifest: %s is not manifest-indirected", kind)
	}
	if m != nil {
		if value, found := m.value(section, key); found {
			return value, nil
		}
	}
	return nil, &LookupMissError{Section: section, Key: key}
}

func (m *Manifest) keys(section string) []string {
	var keys []string
	switch section {
	case SectionInstrument:
		for key := range m.Instruments {
			keys = append(keys, key)
		}
	case SectionMetronomeMark:
		for key := range m.MetronomeMarks {
			keys = append(keys, key)
		}
	case SectionShortInstrumentName:
		for key := range m.ShortInstrumentNames {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *Manifest) value(section, key string) (indicator.Indicator, bool) {
	switch section {
	case SectionInstrument:
		v, ok := m.Instruments[key]
		return v, ok
	case SectionMetronomeMark:
		v, ok := m.MetronomeMarks[key]
		return v, ok
	case SectionShortInstrumentName:
		v, ok := m.ShortInstrumentNames[key]
		return v, ok
	}
	return nil, false
}

// Parse decodes a manifest document:
//
//	abjad.Instrument:
//	  Violin: {name: violin, range: "[G3, A7]"}
//	abjad.MetronomeMark:
//	  Adagio: {reference: 1/4, units: "60", text: Adagio}
//	abjad.ShortInstrumentName:
//	  Vn: {markup: Vn.}
func Parse(data []byte) (*Manifest, error) {
	m := New()
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	var raw map[string]map[string]indicator.Fields
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	for section, entries := range raw {
		kind, err := kindForSection(section)
		if err != nil {
			return nil, err
		}
		for key, fields := range entries {
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, fmt.Errorf("manifest: %s has an empty key", section)
			}
			value, err := indicator.Decode(kind, fields)
			if err != nil {
				return nil, fmt.Errorf("manifest: %s[%s]: %w", section, key, err)
			}
			switch v := value.(type) {
			case indicator.Instrument:
				m.Instruments[key] = v
			case indicator.MetronomeMark:
				m.MetronomeMarks[key] = v
			case indicator.ShortInstrumentName:
				m.ShortInstrumentNames[key] = v
			}
		}
	}
	return m, nil
}

// LoadFile reads a manifest document from disk. An empty path yields an empty
// manifest.
func LoadFile(path string) (*Manifest, error) {
	if strings.TrimSpace(path) == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return m, nil
}

func kindForSection(section string) (indicator.Kind, error) {
	switch section {
	case SectionInstrument:
		return indicator.KindInstrument, nil
	case SectionMetronomeMark:
		return indicator.KindMetronomeMark, nil
	case SectionShortInstrumentName:
		return indicator.KindShortInstrumentName, nil
	}
	return "", fmt.Errorf("manifest: unknown section %q", section)
}
