package score

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/carryover/internal/indicator"
)

const unitYAML = `
name: "02"
contexts:
  - name: Score
    kind: Score
    contexts:
      - name: Violin_Staff
        kind: Staff
        contexts:
          - name: Violin_Voice
            kind: Voice
            leaves:
              - duration: 1/4
                attach:
                  - kind: Clef
                    args: {name: treble}
                  - kind: Dynamic
                    args: {name: mf}
                    tags: [EXPLICIT_DYNAMIC]
              - duration: 1/4
              - duration: "0"
                attach:
                  - kind: Clef
                    args: {name: bass}
                    synthetic_offset: -1/8
                    deactivated: true
`

func TestParseUnitYAML(t *testing.T) {
	unit, err := ParseUnitYAML([]byte(unitYAML), "Root")
	if err != nil {
		t.Fatalf("ParseUnitYAML: %v", err)
	}
	if unit.Name != "02" || unit.Root.Name != "Root" {
		t.Fatalf("unexpected unit %s root %s", unit.Name, unit.Root.Name)
	}
	voice, ok := unit.Context("Violin_Voice")
	if !ok {
		t.Fatalf("Violin_Voice missing")
	}
	leaves := voice.Leaves()
	if len(leaves) != 3 || !leaves[2].IsAnchor() || leaves[2].Start.String() != "1/2" {
		t.Fatalf("unexpected leaves %+v", leaves)
	}
	first := leaves[0].Records
	if len(first) != 2 || first[0].Indicator != (indicator.Clef{Name: "treble"}) || !first[1].HasTag("EXPLICIT_DYNAMIC") {
		t.Fatalf("unexpected first-leaf records %v", first)
	}
	anchored := leaves[2].Records[0]
	if !anchored.Deactivated || anchored.Position().String() != "-1/8" {
		t.Fatalf("unexpected anchored record %v", anchored)
	}
}

func TestParseUnitYAMLErrors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no name":        "contexts: []",
		"bad duration":   "name: x\ncontexts:\n  - name: A\n    kind: Voice\n    leaves:\n      - duration: abc\n",
		"negative":       "name: x\ncontexts:\n  - name: A\n    kind: Voice\n    leaves:\n      - duration: -1/4\n",
		"duplicate name": "name: x\ncontexts:\n  - name: A\n    kind: Voice\n  - name: A\n    kind: Voice\n",
		"unknown kind":   "name: x\ncontexts:\n  - name: A\n    kind: Voice\n    leaves:\n      - duration: 1/4\n        attach:\n          - kind: Glissando\n",
	}
	for name, doc := range cases {
		if _, err := ParseUnitYAML([]byte(doc), ""); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseUnitYAMLRaisesDuplicates(t *testing.T) {
	doc := strings.TrimSpace(`
name: x
contexts:
  - name: Staff
    kind: Staff
    contexts:
      - name: Upper
        kind: Voice
        leaves:
          - duration: 1/4
            attach:
              - kind: Clef
                args: {name: treble}
      - name: Lower
        kind: Voice
        leaves:
          - duration: 1/4
            attach:
              - kind: Clef
                args: {name: bass}
`)
	_, err := ParseUnitYAML([]byte(doc), "")
	if !errors.Is(err, ErrDuplicateIndicator) {
		t.Fatalf("expected duplicate clef across voices of one staff, got %v", err)
	}
}

func TestLoadUnitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "02.yaml")
	if err := os.WriteFile(path, []byte(unitYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	unit, err := LoadUnitFile(path, "")
	if err != nil {
		t.Fatalf("LoadUnitFile: %v", err)
	}
	if unit.Root.Name != "Document" {
		t.Fatalf("expected default root name, got %s", unit.Root.Name)
	}
	if _, err := LoadUnitFile(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
