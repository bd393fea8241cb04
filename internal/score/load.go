package score

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/tag"
)

// unitDocument is the YAML shape of a unit tree:
//
//	name: "02"
//	contexts:
//	  - name: Violin_Staff
//	    kind: Staff
//	    contexts:
//	      - name: Violin_Voice
//	        kind: Voice
//	        leaves:
//	          - duration: 1/4
//	            attach:
//	              - kind: Clef
//	                args: {name: treble}
type unitDocument struct {
	Name     string            `yaml:"name"`
	Root     string            `yaml:"root,omitempty"`
	Contexts []contextDocument `yaml:"contexts"`
}

type contextDocument struct {
	Name     string            `yaml:"name"`
	Kind     string            `yaml:"kind"`
	Contexts []contextDocument `yaml:"contexts,omitempty"`
	Leaves   []leafDocument    `yaml:"leaves,omitempty"`
}

type leafDocument struct {
	Duration string           `yaml:"duration"`
	Attach   []attachDocument `yaml:"attach,omitempty"`
}

type attachDocument struct {
	Kind            string            `yaml:"kind"`
	Args            map[string]string `yaml:"args,omitempty"`
	Tags            []string          `yaml:"tags,omitempty"`
	Deactivated     bool              `yaml:"deactivated,omitempty"`
	SyntheticOffset string            `yaml:"synthetic_offset,omitempty"`
}

// ParseUnitYAML builds a unit from a YAML document. Attachments go through
// Attach, so duplicate persistent indicators are rejected.
func ParseUnitYAML(data []byte, rootName string) (*Unit, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("score: unit document is empty")
	}
	var doc unitDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("score: decode unit: %w", err)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, fmt.Errorf("score: unit name is required")
	}
	if doc.Root != "" {
		rootName = doc.Root
	}
	unit := NewUnit(strings.TrimSpace(doc.Name), rootName)
	for i := range doc.Contexts {
		if err := unit.build(unit.Root, doc.Contexts[i]); err != nil {
			return nil, fmt.Errorf("score: unit %s: %w", unit.Name, err)
		}
	}
	return unit, nil
}

// LoadUnitFile reads a unit document from disk.
func LoadUnitFile(path, rootName string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("score: read %s: %w", path, err)
	}
	unit, err := ParseUnitYAML(data, rootName)
	if err != nil {
		return nil, fmt.Errorf("score: %s: %w", path, err)
	}
	return unit, nil
}

func (u *Unit) build(parent *Context, doc contextDocument) error {
	ctx, err := u.AddContext(parent, doc.Name, doc.Kind)
	if err != nil {
		return err
	}
	for idx, leafDoc := range doc.Leaves {
		duration, err := ParseOffset(leafDoc.Duration)
		if err != nil {
			return fmt.Errorf("context %s leaf[%d]: %w", ctx.Name, idx, err)
		}
		if duration.Sign() < 0 {
			return fmt.Errorf("context %s leaf[%d]: negative duration %s", ctx.Name, idx, duration)
		}
		leaf := ctx.AppendLeaf(duration)
		for j, attachDoc := range leafDoc.Attach {
			if err := u.attachDocument(leaf, attachDoc); err != nil {
				return fmt.Errorf("context %s leaf[%d] attach[%d]: %w", ctx.Name, idx, j, err)
			}
		}
	}
	for _, child := range doc.Contexts {
		if err := u.build(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func (u *Unit) attachDocument(leaf *Leaf, doc attachDocument) error {
	ind, err := indicator.Decode(indicator.Kind(strings.TrimSpace(doc.Kind)), indicator.Fields(doc.Args))
	if err != nil {
		return err
	}
	var opts []AttachOption
	for _, t := range doc.Tags {
		opts = append(opts, WithTags(tag.ID(strings.TrimSpace(t))))
	}
	if doc.Deactivated {
		opts = append(opts, Deactivated())
	}
	if doc.SyntheticOffset != "" {
		offset, err := ParseOffset(doc.SyntheticOffset)
		if err != nil {
			return err
		}
		opts = append(opts, WithSyntheticOffset(offset))
	}
	_, err = u.Attach(leaf, ind, opts...)
	return err
}
