package band

import (
	"fmt"
	"sort"
	"strings"
)

// Skill tags a raw-score conversion table.
type Skill string

const (
	Listening      Skill = "listening"
	Reading        Skill = "reading"         // Academic Reading
	ReadingGeneral Skill = "reading_general" // General Training Reading
)

// Threshold is one row of a conversion table: a raw score at or above Min
// earns Band.
type Threshold struct {
	Min  int     `json:"min"`
	Band float64 `json:"band"`
}

// Table is an ordered conversion table plus the band returned when the raw
// score is below every threshold.
type Table struct {
	Skill      Skill       `json:"skill"`
	Thresholds []Threshold `json:"thresholds"` // descending by Min
	Floor      float64     `json:"floor"`
}

var tables = map[Skill]Table{
	Listening: {
		Skill: Listening,
		Thresholds: []Threshold{
			{39, 9.0}, {37, 8.5}, {35, 8.0}, {32, 7.5}, {30, 7.0}, {26, 6.5},
			{23, 6.0}, {18, 5.5}, {16, 5.0}, {13, 4.5}, {10, 4.0},
		},
		Floor: 3.5,
	},
	Reading: {
		Skill: Reading,
		Thresholds: []Threshold{
			{39, 9.0}, {37, 8.5}, {35, 8.0}, {33, 7.5}, {30, 7.0}, {27, 6.5},
			{23, 6.0}, {19, 5.5}, {15, 5.0}, {13, 4.5}, {10, 4.0},
		},
		Floor: 3.5,
	},
	ReadingGeneral: {
		Skill: ReadingGeneral,
		Thresholds: []Threshold{
			{40, 9.0}, {39, 8.5}, {37, 8.0}, {36, 7.5}, {34, 7.0}, {32, 6.5},
			{30, 6.0}, {27, 5.5}, {23, 5.0}, {19, 4.5}, {15, 4.0},
		},
		Floor: 3.5,
	},
}

// ParseSkill maps a request tag onto a Skill with a registered table.
func ParseSkill(s string) (Skill, error) {
	sk := Skill(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tables[sk]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidSkill, s)
	}
	return sk, nil
}

// Lookup returns the table registered for skill.
func Lookup(skill Skill) (Table, bool) {
	t, ok := tables[skill]
	return t, ok
}

// Tables returns copies of every registered table, ordered by skill name.
func Tables() []Table {
	out := make([]Table, 0, len(tables))
	for _, t := range tables {
		cp := t
		cp.Thresholds = append([]Threshold(nil), t.Thresholds...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Skill < out[j].Skill })
	return out
}

// band scans thresholds from the highest down; the first match wins.
func (t Table) band(raw int) float64 {
	for _, th := range t.Thresholds {
		if raw >= th.Min {
			return th.Band
		}
	}
	return t.Floor
}
