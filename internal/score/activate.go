package score

import "github.com/kingrea/carryover/internal/tag"

// Activate sets the deactivated flag of every record the carry-over engine
// emitted (records with a status, and their companions): such a record renders
// only when all of its namespace tags are active for the build. Authored
// records keep their flag whatever tags they carry. Parts builds also strip
// debug-only tags. It returns the number of emitted records left deactivated.
func (u *Unit) Activate(build tag.Build) int {
	deactivated := 0
	u.Walk(func(record *Attachment) {
		if record.Status == tag.StatusNone && record.Owner == nil {
			return
		}
		tagged, active := false, true
		for _, id := range record.Tags {
			if _, ok := tag.Parse(id); !ok {
				continue
			}
			tagged = true
			if !tag.Active(id, build) {
				active = false
			}
		}
		if build == tag.BuildParts {
			record.Tags = tag.StripForParts(record.Tags)
		}
		if !tagged {
			if record.Deactivated {
				deactivated++
			}
			return
		}
		record.Deactivated = !active
		if !active {
			deactivated++
		}
	})
	return deactivated
}
