package carryover

import (
	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/score"
	"github.com/kingrea/carryover/internal/tag"
)

var grobs = map[indicator.Channel]string{
	indicator.ChannelClef:                "Clef",
	indicator.ChannelDynamic:             "DynamicText",
	indicator.ChannelInstrument:          "InstrumentName",
	indicator.ChannelShortInstrumentName: "InstrumentName",
	indicator.ChannelTempo:               "MetronomeMark",
	indicator.ChannelOctaveShift:         "OttavaBracket",
	indicator.ChannelStaffLines:          "StaffSymbol",
	indicator.ChannelBarExtent:           "BarLine",
	indicator.ChannelTimeSignature:       "TimeSignature",
}

func grobFor(ind indicator.Indicator) string {
	if o, ok := ind.(indicator.Override); ok {
		return o.Grob
	}
	return grobs[ind.Channel()]
}

// emit assigns status to record and attaches its companions: a color in
// proofing builds, a delayed redraw for latent channels, and an alert for
// alert channels. Earlier status tags and companions are replaced.
func (e *Engine) emit(unit *score.Unit, record *score.Attachment, status tag.Status) error {
	channel := record.Channel()
	traits, _ := indicator.TraitsFor(channel)
	statusTag, err := tag.For(status, channel, tag.VariantStatus)
	if err != nil {
		return err
	}

	if record.Status != tag.StatusNone {
		if old, err := tag.For(record.Status, channel, tag.VariantStatus); err == nil {
			record.RemoveTag(old)
		}
		for _, companion := range unit.Companions(record) {
			unit.Detach(companion)
		}
	}
	record.Status = status
	record.AddTag(statusTag)

	companion := func(ind indicator.Indicator, variant tag.Variant) error {
		id, err := tag.For(status, channel, variant)
		if err != nil {
			return err
		}
		opts := []score.AttachOption{score.OwnedBy(record), score.WithTags(id)}
		if record.SyntheticOffset != nil {
			opts = append(opts, score.WithSyntheticOffset(*record.SyntheticOffset))
		}
		_, err = unit.Inject(record.Leaf, ind, opts...)
		return err
	}

	if e.build == tag.BuildProofing {
		if err := companion(indicator.Color{Grob: grobFor(record.Indicator), Value: tag.Color(status)}, tag.VariantColor); err != nil {
			return err
		}
	}
	if traits.Latent {
		if err := companion(indicator.Redraw{Of: record.Indicator, Color: tag.RedrawColor(status)}, tag.VariantRedrawColor); err != nil {
			return err
		}
	}
	if traits.Alert {
		if err := companion(indicator.Alert{Text: alertText(record.Indicator)}, tag.VariantAlert); err != nil {
			return err
		}
	}
	e.logger.Printf("%s %s in %s", status, record, record.Governor.Name)
	return nil
}

func alertText(ind indicator.Indicator) string {
	if inst, ok := ind.(indicator.Instrument); ok && inst.Name != "" {
		return "(" + inst.Name + ")"
	}
	return indicator.Describe(ind)
}
