// Package band converts IELTS Listening and Reading raw scores to band
// scores and collapses per-criterion scores into an overall band.
//
// Everything here is pure: no state, no I/O, safe for concurrent use.
package band

import (
	"fmt"
	"math"
)

// SectionItems is the item count of a full Listening or Reading section.
const SectionItems = 40

// ConvertRawToBand maps a count of correct answers on a 40-item section to
// a band using the skill's published table. It is total over raw: scores
// below the lowest threshold get the table floor and scores past 40 keep
// the top band. Only an unknown skill is an error.
func ConvertRawToBand(raw int, skill Skill) (float64, error) {
	t, ok := tables[skill]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSkill, skill)
	}
	return t.band(raw), nil
}

// ConvertScaled converts raw correct answers out of total items. The raw
// score is projected onto the 40-item scale before the table lookup, so a
// 20-item practice set with 15 correct reads as 30/40.
func ConvertScaled(raw, total int, skill Skill) (float64, error) {
	if total <= 0 {
		return 0, fmt.Errorf("%w: total questions must be positive, got %d", ErrInvalidInput, total)
	}
	if raw < 0 || raw > total {
		return 0, fmt.Errorf("%w: raw score %d outside 0..%d", ErrInvalidInput, raw, total)
	}
	equiv := raw
	if total != SectionItems {
		equiv = int(math.Floor(float64(raw)*SectionItems/float64(total) + 0.5))
	}
	return ConvertRawToBand(equiv, skill)
}

// CalculateOverallBand returns the mean of scores rounded to the nearest
// half band. Ties round up: a mean of 6.25 gives 6.5 and 6.75 gives 7.0.
func CalculateOverallBand(scores []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, fmt.Errorf("%w: no scores to average", ErrInvalidInput)
	}
	sum := 0.0
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return 0, fmt.Errorf("%w: score %d is not a finite number", ErrInvalidInput, i)
		}
		sum += s
	}
	return RoundHalf(sum / float64(len(scores))), nil
}

// RoundHalf rounds v to the nearest multiple of 0.5, ties upward.
func RoundHalf(v float64) float64 {
	return math.Floor(v*2+0.5) / 2
}
