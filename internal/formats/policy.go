// Package formats describes the IELTS test formats: which sections exist,
// how long they run, how many items they carry and how they are scored.
package formats

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/ielts-practice/internal/band"
)

type Format string

const (
	Academic        Format = "academic"
	GeneralTraining Format = "general_training"
)

// Skill is one of the four tested skills.
type Skill string

const (
	Listening Skill = "listening"
	Reading   Skill = "reading"
	Writing   Skill = "writing"
	Speaking  Skill = "speaking"
)

var (
	ErrUnknownFormat = errors.New("unknown test format")
	ErrUnknownSkill  = errors.New("unknown skill")
)

// Objective reports whether the skill is scored by answer key (and so by a
// raw-to-band table) rather than by criteria.
func (s Skill) Objective() bool { return s == Listening || s == Reading }

type Section struct {
	Skill        Skill      `json:"skill"`
	Title        string     `json:"title"`
	TimeLimitSec int        `json:"time_limit_sec"`
	Items        int        `json:"items,omitempty"` // objective sections only
	Parts        int        `json:"parts"`
	Table        band.Skill `json:"band_table,omitempty"`
	Rubrics      []string   `json:"rubrics,omitempty"`
}

// ParseFormat accepts "academic", "general_training" or "general".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "academic":
		return Academic, nil
	case "general_training", "general", "gt":
		return GeneralTraining, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ParseSkill accepts any of the four skill names.
func ParseSkill(s string) (Skill, error) {
	sk := Skill(strings.ToLower(strings.TrimSpace(s)))
	switch sk {
	case Listening, Reading, Writing, Speaking:
		return sk, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSkill, s)
}

// Sections returns the four sections of f in test order.
func Sections(f Format) ([]Section, error) {
	reading := band.Reading
	if f == GeneralTraining {
		reading = band.ReadingGeneral
	} else if f != Academic {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	return []Section{
		{Skill: Listening, Title: "Listening", TimeLimitSec: 30 * 60, Items: band.SectionItems, Parts: 4, Table: band.Listening},
		{Skill: Reading, Title: "Reading", TimeLimitSec: 60 * 60, Items: band.SectionItems, Parts: 3, Table: reading},
		{Skill: Writing, Title: "Writing", TimeLimitSec: 60 * 60, Parts: 2, Rubrics: []string{"writing_task1", "writing_task2"}},
		{Skill: Speaking, Title: "Speaking", TimeLimitSec: 14 * 60, Parts: 3, Rubrics: []string{"speaking"}},
	}, nil
}

// SectionFor returns the section of f that tests skill.
func SectionFor(f Format, skill Skill) (Section, error) {
	secs, err := Sections(f)
	if err != nil {
		return Section{}, err
	}
	for _, s := range secs {
		if s.Skill == skill {
			return s, nil
		}
	}
	return Section{}, fmt.Errorf("%w: %q", ErrUnknownSkill, skill)
}

// ValidateSections runs basic consistency checks on a section list.
func ValidateSections(secs []Section) error {
	if len(secs) == 0 {
		return errors.New("at least one section is required")
	}
	seen := map[Skill]bool{}
	for _, s := range secs {
		if s.Skill == "" {
			return errors.New("section.skill is required")
		}
		if seen[s.Skill] {
			return fmt.Errorf("duplicate section skill: %s", s.Skill)
		}
		seen[s.Skill] = true
		if s.TimeLimitSec < 0 {
			return fmt.Errorf("negative time_limit_sec in %s", s.Skill)
		}
		if s.Skill.Objective() {
			if _, ok := band.Lookup(s.Table); !ok {
				return fmt.Errorf("section %s has no band table", s.Skill)
			}
			if s.Items <= 0 {
				return fmt.Errorf("section %s needs a positive item count", s.Skill)
			}
		}
	}
	return nil
}
