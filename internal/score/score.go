// Package score models one unit's tree: nested named contexts holding ordered
// leaves, and the attachment records bound to those leaves. The tree is built
// by external collaborators (or loaded from a unit document) and then read and
// annotated by the carry-over engine.
package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/tag"
)

// RootKind is the kind of the implicit document root context.
const RootKind = "Root"

// Unit is one independently built section of the document.
type Unit struct {
	Name     string
	Root     *Context
	contexts map[string]*Context
	nextID   int
}

// Context is a named, ordered channel of leaves. Contexts nest.
type Context struct {
	Name     string
	Kind     string
	Parent   *Context
	Children []*Context
	leaves   []*Leaf
	unit     *Unit
}

// Leaf is the smallest timeline unit. Zero-duration leaves are virtual
// anchors positioned after the real material.
type Leaf struct {
	Context  *Context
	Index    int
	Start    Offset
	Duration Offset
	Records  []*Attachment
}

// Attachment binds an indicator to a leaf.
type Attachment struct {
	ID        int
	Indicator indicator.Indicator
	Tags      []tag.ID
	// Deactivated records are present but neither rendered nor effective.
	Deactivated     bool
	SyntheticOffset *Offset
	Status          tag.Status
	// Reapplied marks records injected at a unit boundary.
	Reapplied bool
	// Owner is the record a color, alert or redraw companion annotates.
	Owner *Attachment
	Leaf  *Leaf
	// Governor is the context whose timeline the indicator affects.
	Governor *Context
}

// NewUnit creates an empty unit whose document root carries rootName.
func NewUnit(name, rootName string) *Unit {
	if strings.TrimSpace(rootName) == "" {
		rootName = "Document"
	}
	u := &Unit{Name: name, contexts: map[string]*Context{}}
	u.Root = &Context{Name: rootName, Kind: RootKind, unit: u}
	u.contexts[rootName] = u.Root
	return u
}

// AddContext creates a named child context. Names are unique per unit.
func (u *Unit) AddContext(parent *Context, name, kind string) (*Context, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("score: context name is required")
	}
	if parent == nil {
		parent = u.Root
	}
	if parent.unit != u {
		return nil, fmt.Errorf("score: parent %s belongs to another unit", parent.Name)
	}
	if _, exists := u.contexts[name]; exists {
		return nil, fmt.Errorf("score: duplicate context name %s", name)
	}
	ctx := &Context{Name: name, Kind: strings.TrimSpace(kind), Parent: parent, unit: u}
	parent.Children = append(parent.Children, ctx)
	u.contexts[name] = ctx
	return ctx, nil
}

// MustAddContext panics if AddContext fails.
func (u *Unit) MustAddContext(parent *Context, name, kind string) *Context {
	ctx, err := u.AddContext(parent, name, kind)
	if err != nil {
		panic(err)
	}
	return ctx
}

// Context looks up a context by name.
func (u *Unit) Context(name string) (*Context, bool) {
	ctx, ok := u.contexts[name]
	return ctx, ok
}

// Contexts returns every context, root included, sorted by name.
func (u *Unit) Contexts() []*Context {
	out := make([]*Context, 0, len(u.contexts))
	for _, ctx := range u.contexts {
		out = append(out, ctx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Duration is the end of the latest leaf in the unit.
func (u *Unit) Duration() Offset {
	var end Offset
	for _, leaf := range u.Root.AllLeaves() {
		if stop := leaf.Start.Add(leaf.Duration); end.Less(stop) {
			end = stop
		}
	}
	return end
}

// Walk visits every attachment record in traversal order.
func (u *Unit) Walk(fn func(*Attachment)) {
	for _, leaf := range u.Root.AllLeaves() {
		for _, record := range append([]*Attachment{}, leaf.Records...) {
			fn(record)
		}
	}
}

// Records returns every attachment record in traversal order.
func (u *Unit) Records() []*Attachment {
	var out []*Attachment
	u.Walk(func(a *Attachment) { out = append(out, a) })
	return out
}

// IsRoot reports whether the context is the document root.
func (c *Context) IsRoot() bool {
	return c != nil && c.Parent == nil && c.Kind == RootKind
}

// AppendLeaf adds a leaf after the context's last leaf.
func (c *Context) AppendLeaf(duration Offset) *Leaf {
	start := Offset{}
	if n := len(c.leaves); n > 0 {
		last := c.leaves[n-1]
		start = last.Start.Add(last.Duration)
	}
	leaf := &Leaf{Context: c, Index: len(c.leaves), Start: start, Duration: duration}
	c.leaves = append(c.leaves, leaf)
	return leaf
}

// Leaves returns the context's own leaves.
func (c *Context) Leaves() []*Leaf {
	return append([]*Leaf{}, c.leaves...)
}

// AllLeaves returns the leaves of the context and its descendants, depth
// first, own leaves before children.
func (c *Context) AllLeaves() []*Leaf {
	var out []*Leaf
	var visit func(*Context)
	visit = func(ctx *Context) {
		out = append(out, ctx.leaves...)
		for _, child := range ctx.Children {
			visit(child)
		}
	}
	visit(c)
	return out
}

// FirstLeaf returns the earliest real leaf in the context's subtree, falling
// back to the earliest anchor when no real leaf exists. Ties keep traversal
// order.
func (c *Context) FirstLeaf() *Leaf {
	var first, anchor *Leaf
	for _, leaf := range c.AllLeaves() {
		if leaf.IsAnchor() {
			if anchor == nil || leaf.Start.Less(anchor.Start) {
				anchor = leaf
			}
			continue
		}
		if first == nil || leaf.Start.Less(first.Start) {
			first = leaf
		}
	}
	if first != nil {
		return first
	}
	return anchor
}

// Governing returns the nearest context of the given kind at or above c. When
// no such context exists, or the scope is the voice scope, c itself governs.
func (c *Context) Governing(scope indicator.Scope) *Context {
	if scope == indicator.ScopeVoice {
		return c
	}
	for ctx := c; ctx != nil; ctx = ctx.Parent {
		if ctx.Kind == string(scope) {
			return ctx
		}
	}
	return c
}

// IsAnchor reports whether the leaf is a zero-duration virtual anchor.
func (l *Leaf) IsAnchor() bool {
	return l.Duration.IsZero()
}

// IsFinal reports whether the leaf is its context's last leaf.
func (l *Leaf) IsFinal() bool {
	return l.Index == len(l.Context.leaves)-1
}

// Position is the record's logical timeline position: its synthetic offset
// when present, otherwise its leaf's start.
func (a *Attachment) Position() Offset {
	if a.SyntheticOffset != nil {
		return *a.SyntheticOffset
	}
	return a.Leaf.Start
}

// Channel is the indicator's channel.
func (a *Attachment) Channel() indicator.Channel {
	return a.Indicator.Channel()
}

// Persistent reports whether the record carries a persistent indicator.
func (a *Attachment) Persistent() bool {
	return a.Indicator != nil && a.Indicator.Channel().Persistent()
}

// HasTag reports whether the record carries the tag.
func (a *Attachment) HasTag(id tag.ID) bool {
	for _, existing := range a.Tags {
		if existing == id {
			return true
		}
	}
	return false
}

// AddTag adds a tag, keeping the set sorted and unique.
func (a *Attachment) AddTag(id tag.ID) {
	if id == "" || a.HasTag(id) {
		return
	}
	a.Tags = append(a.Tags, id)
	sort.Slice(a.Tags, func(i, j int) bool { return a.Tags[i] < a.Tags[j] })
}

// RemoveTag drops a tag if present.
func (a *Attachment) RemoveTag(id tag.ID) {
	out := a.Tags[:0]
	for _, existing := range a.Tags {
		if existing != id {
			out = append(out, existing)
		}
	}
	a.Tags = out
}

func (a *Attachment) String() string {
	where := "?"
	if a.Leaf != nil {
		where = fmt.Sprintf("%s[%d]@%s", a.Leaf.Context.Name, a.Leaf.Index, a.Position())
	}
	return fmt.Sprintf("%s at %s", indicator.Describe(a.Indicator), where)
}
