package score

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Offset is an exact rational position or duration, measured in whole notes.
// The zero value is 0 and every constructor returns 0 as the zero value, so
// offsets in lowest terms compare with ==.
type Offset struct {
	num int64
	den int64
}

// NewOffset returns num/den in lowest terms. A zero denominator panics.
func NewOffset(num, den int64) Offset {
	if den == 0 {
		panic("score: zero denominator")
	}
	if num == 0 {
		return Offset{}
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs(num), den)
	return Offset{num: num / g, den: den / g}
}

// ParseOffset accepts "n/d", "n" or "-n/d".
func ParseOffset(value string) (Offset, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Offset{}, fmt.Errorf("score: empty offset")
	}
	numText, denText, hasDen := strings.Cut(trimmed, "/")
	num, err := strconv.ParseInt(strings.TrimSpace(numText), 10, 64)
	if err != nil {
		return Offset{}, fmt.Errorf("score: parse offset %q: %w", value, err)
	}
	den := int64(1)
	if hasDen {
		den, err = strconv.ParseInt(strings.TrimSpace(denText), 10, 64)
		if err != nil {
			return Offset{}, fmt.Errorf("score: parse offset %q: %w", value, err)
		}
		if den == 0 {
			return Offset{}, fmt.Errorf("score: parse offset %q: zero denominator", value)
		}
	}
	return NewOffset(num, den), nil
}

// MustOffset is ParseOffset for literals.
func MustOffset(value string) Offset {
	o, err := ParseOffset(value)
	if err != nil {
		panic(err)
	}
	return o
}

func (o Offset) norm() Offset {
	if o.den == 0 {
		return Offset{num: 0, den: 1}
	}
	return o
}

// Add returns o + p.
func (o Offset) Add(p Offset) Offset {
	a, b := o.norm(), p.norm()
	return NewOffset(a.num*b.den+b.num*a.den, a.den*b.den)
}

// Sub returns o - p.
func (o Offset) Sub(p Offset) Offset {
	b := p.norm()
	return o.Add(Offset{num: -b.num, den: b.den})
}

// Cmp returns -1, 0 or 1.
func (o Offset) Cmp(p Offset) int {
	a, b := o.norm(), p.norm()
	left, right := a.num*b.den, b.num*a.den
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

// Less reports o < p.
func (o Offset) Less(p Offset) bool { return o.Cmp(p) < 0 }

// Sign returns -1, 0 or 1.
func (o Offset) Sign() int { return o.Cmp(Offset{}) }

// IsZero reports whether the offset is 0.
func (o Offset) IsZero() bool { return o.norm().num == 0 }

func (o Offset) String() string {
	n := o.norm()
	if n.den == 1 {
		return strconv.FormatInt(n.num, 10)
	}
	return fmt.Sprintf("%d/%d", n.num, n.den)
}

// MarshalYAML encodes the offset as "n/d".
func (o Offset) MarshalYAML() (any, error) {
	return o.String(), nil
}

// UnmarshalYAML decodes "n/d" or an integer scalar.
func (o *Offset) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := ParseOffset(text)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
