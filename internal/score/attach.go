package score

import (
	"errors"
	"fmt"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/tag"
)

// ErrDuplicateIndicator is returned when a persistent indicator is attached
// where an equivalent one is already in effect at the same position.
var ErrDuplicateIndicator = errors.New("score: duplicate persistent indicator")

// DuplicateIndicatorError carries both competing records.
type DuplicateIndicatorError struct {
	Context  string
	Channel  indicator.Channel
	Existing *Attachment
	Incoming indicator.Indicator
}

func (e *DuplicateIndicatorError) Error() string {
	return fmt.Sprintf("score: duplicate %s indicator in %s: %s already present, cannot attach %s",
		e.Channel, e.Context, e.Existing, indicator.Describe(e.Incoming))
}

func (e *DuplicateIndicatorError) Unwrap() error { return ErrDuplicateIndicator }

// AttachOption customizes a new attachment record.
type AttachOption func(*Attachment)

// WithTags adds tags to the record.
func WithTags(ids ...tag.ID) AttachOption {
	return func(a *Attachment) {
		for _, id := range ids {
			a.AddTag(id)
		}
	}
}

// WithSyntheticOffset positions the record at a virtual offset.
func WithSyntheticOffset(offset Offset) AttachOption {
	return func(a *Attachment) {
		o := offset
		a.SyntheticOffset = &o
	}
}

// Deactivated marks the record as present but not rendered.
func Deactivated() AttachOption {
	return func(a *Attachment) {
		a.Deactivated = true
	}
}

// WithStatus assigns a status at creation.
func WithStatus(status tag.Status) AttachOption {
	return func(a *Attachment) {
		a.Status = status
	}
}

// OwnedBy links a companion record to the record it annotates.
func OwnedBy(owner *Attachment) AttachOption {
	return func(a *Attachment) {
		a.Owner = owner
	}
}

// Attach binds an indicator to a leaf during ordinary authoring. Attaching a
// persistent indicator where one with the same attach key is already active
// in the same governing context at the same position fails with
// ErrDuplicateIndicator.
func (u *Unit) Attach(leaf *Leaf, ind indicator.Indicator, opts ...AttachOption) (*Attachment, error) {
	record, err := u.newRecord(leaf, ind, opts)
	if err != nil {
		return nil, err
	}
	if record.Persistent() && !record.Deactivated {
		if existing := u.findDuplicate(record); existing != nil {
			return nil, &DuplicateIndicatorError{
				Context:  record.Governor.Name,
				Channel:  record.Channel(),
				Existing: existing,
				Incoming: ind,
			}
		}
	}
	u.link(record)
	return record, nil
}

// MustAttach panics if Attach fails.
func (u *Unit) MustAttach(leaf *Leaf, ind indicator.Indicator, opts ...AttachOption) *Attachment {
	record, err := u.Attach(leaf, ind, opts...)
	if err != nil {
		panic(err)
	}
	return record
}

// Inject binds an indicator without the duplicate check. Only the carry-over
// engine injects records; it has already classified any coinciding value.
func (u *Unit) Inject(leaf *Leaf, ind indicator.Indicator, opts ...AttachOption) (*Attachment, error) {
	record, err := u.newRecord(leaf, ind, opts)
	if err != nil {
		return nil, err
	}
	u.link(record)
	return record, nil
}

// Detach removes a record from its leaf.
func (u *Unit) Detach(record *Attachment) {
	if record == nil || record.Leaf == nil {
		return
	}
	leaf := record.Leaf
	out := leaf.Records[:0]
	for _, existing := range leaf.Records {
		if existing != record {
			out = append(out, existing)
		}
	}
	leaf.Records = out
	record.Leaf = nil
}

// Companions returns the records that annotate owner.
func (u *Unit) Companions(owner *Attachment) []*Attachment {
	var out []*Attachment
	u.Walk(func(a *Attachment) {
		if a.Owner == owner {
			out = append(out, a)
		}
	})
	return out
}

func (u *Unit) newRecord(leaf *Leaf, ind indicator.Indicator, opts []AttachOption) (*Attachment, error) {
	if leaf == nil || leaf.Context == nil || leaf.Context.unit != u {
		return nil, fmt.Errorf("score: leaf does not belong to unit %s", u.Name)
	}
	if ind == nil {
		return nil, fmt.Errorf("score: indicator is required")
	}
	record := &Attachment{Indicator: ind, Leaf: leaf}
	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}
	record.Governor = leaf.Context.Governing(indicator.ScopeOf(ind))
	return record, nil
}

func (u *Unit) link(record *Attachment) {
	u.nextID++
	record.ID = u.nextID
	record.Leaf.Records = append(record.Leaf.Records, record)
}

func (u *Unit) findDuplicate(record *Attachment) *Attachment {
	key := indicator.AttachKey(record.Indicator)
	position := record.Position()
	for _, leaf := range record.Governor.AllLeaves() {
		for _, existing := range leaf.Records {
			if existing.Deactivated || !existing.Persistent() || existing.Governor != record.Governor {
				continue
			}
			if indicator.AttachKey(existing.Indicator) != key {
				continue
			}
			if existing.Position().Cmp(position) == 0 {
				return existing
			}
		}
	}
	return nil
}
