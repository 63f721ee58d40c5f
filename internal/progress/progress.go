// Package progress derives a learner's practice record from their scored
// attempts and activity log. Nothing here is stored; every read recomputes.
package progress

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/mind-engage/ielts-practice/internal/band"
	"github.com/mind-engage/ielts-practice/internal/exam"
	"github.com/mind-engage/ielts-practice/internal/formats"
	syncx "github.com/mind-engage/ielts-practice/internal/sync"
)

// XP awarded per scored attempt: a base amount plus XPPerHalfBand for each
// half band above BonusFrom.
const (
	XPPerAttempt  = 10
	XPPerHalfBand = 5
	BonusFrom     = 5.0
	XPPerLevel    = 100
)

// Badge keys.
const (
	BadgeFirstAttempt = "first_attempt"
	BadgeBand7        = "band_7"
	BadgeStreak7      = "streak_7"
	BadgeAllSkills    = "all_skills"
)

var badgeNames = map[string]string{
	BadgeFirstAttempt: "First attempt",
	BadgeBand7:        "Band 7 reached",
	BadgeStreak7:      "Seven-day streak",
	BadgeAllSkills:    "All four skills",
}

type SkillProgress struct {
	Skill    formats.Skill `json:"skill"`
	Attempts int           `json:"attempts"`
	Latest   float64       `json:"latest_band"`
	Best     float64       `json:"best_band"`
	LastAt   int64         `json:"last_at,omitempty"`
}

type Badge struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	EarnedAt int64  `json:"earned_at"`
}

type Progress struct {
	UserID   string          `json:"user_id"`
	Attempts int             `json:"attempts"`
	Skills   []SkillProgress `json:"skills"`

	// EstimatedOverall is the rounded mean of the latest band in each of
	// the four skills; nil until every skill has a scored attempt.
	EstimatedOverall *float64 `json:"estimated_overall,omitempty"`

	XP            int     `json:"xp"`
	Level         int     `json:"level"`
	NextLevelXP   int     `json:"next_level_xp"`
	CurrentStreak int     `json:"current_streak"`
	LongestStreak int     `json:"longest_streak"`
	Badges        []Badge `json:"badges"`
}

// AttemptLister is the slice of exam.Store progress reads.
type AttemptLister interface {
	ListAttempts(ctx context.Context, opts exam.AttemptListOpts) ([]exam.Attempt, error)
}

// EventLister is the slice of the event log progress reads.
type EventLister interface {
	ListByUser(ctx context.Context, userID, typ string) ([]syncx.Event, error)
}

type Tracker struct {
	attempts AttemptLister
	events   EventLister
	now      func() time.Time
	loc      *time.Location
}

type Option func(*Tracker)

// WithEvents counts any logged activity, not only scored attempts, as a
// streak day.
func WithEvents(e EventLister) Option { return func(t *Tracker) { t.events = e } }

func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

// WithLocation sets where calendar days start. Defaults to UTC.
func WithLocation(loc *time.Location) Option { return func(t *Tracker) { t.loc = loc } }

func NewTracker(attempts AttemptLister, opts ...Option) *Tracker {
	t := &Tracker{attempts: attempts, now: time.Now, loc: time.UTC}
	for _, o := range opts {
		o(t)
	}
	return t
}

// maxHistory bounds how many submitted attempts one read pages through.
const maxHistory = 5000

func (t *Tracker) For(ctx context.Context, userID string) (Progress, error) {
	var all []exam.Attempt
	for off := 0; off < maxHistory; {
		page, err := t.attempts.ListAttempts(ctx, exam.AttemptListOpts{
			UserID: userID, Status: exam.StatusSubmitted, Limit: 200, Offset: off,
		})
		if err != nil {
			return Progress{}, err
		}
		all = append(all, page...)
		if len(page) < 200 {
			break
		}
		off += len(page)
	}

	var activity []int64
	if t.events != nil {
		evs, err := t.events.ListByUser(ctx, userID, "")
		if err != nil {
			return Progress{}, err
		}
		for _, e := range evs {
			activity = append(activity, e.CreatedAt)
		}
	}
	return Compute(userID, all, activity, t.now(), t.loc), nil
}

// Compute builds progress from submitted attempts plus extra activity
// timestamps (unix seconds). Attempts not yet submitted are ignored.
func Compute(userID string, attempts []exam.Attempt, activity []int64, now time.Time, loc *time.Location) Progress {
	if loc == nil {
		loc = time.UTC
	}
	done := make([]exam.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Status == exam.StatusSubmitted {
			done = append(done, a)
		}
	}
	sort.SliceStable(done, func(i, j int) bool { return done[i].SubmittedAt < done[j].SubmittedAt })

	p := Progress{UserID: userID, Attempts: len(done), Badges: []Badge{}}
	bySkill := map[formats.Skill]*SkillProgress{}
	for _, a := range done {
		p.award(BadgeFirstAttempt, a.SubmittedAt)
		sp := bySkill[a.Skill]
		if sp == nil {
			sp = &SkillProgress{Skill: a.Skill}
			bySkill[a.Skill] = sp
			if len(bySkill) == len(skillOrder) {
				p.award(BadgeAllSkills, a.SubmittedAt)
			}
		}
		sp.Attempts++
		sp.Latest = a.Band
		sp.Best = math.Max(sp.Best, a.Band)
		sp.LastAt = a.SubmittedAt

		p.XP += attemptXP(a.Band)
		if a.Band >= 7 {
			p.award(BadgeBand7, a.SubmittedAt)
		}
	}

	latest := make([]float64, 0, len(skillOrder))
	for _, s := range skillOrder {
		if sp, ok := bySkill[s]; ok {
			p.Skills = append(p.Skills, *sp)
			latest = append(latest, sp.Latest)
		} else {
			p.Skills = append(p.Skills, SkillProgress{Skill: s})
		}
	}
	if len(latest) == len(skillOrder) {
		if o, err := band.CalculateOverallBand(latest); err == nil {
			p.EstimatedOverall = &o
		}
	}

	p.Level = p.XP/XPPerLevel + 1
	p.NextLevelXP = p.Level * XPPerLevel

	stamps := make([]int64, 0, len(done)+len(activity))
	for _, a := range done {
		stamps = append(stamps, a.SubmittedAt)
	}
	stamps = append(stamps, activity...)
	var streak7At int64
	p.CurrentStreak, p.LongestStreak, streak7At = streaks(stamps, now, loc)
	if streak7At != 0 {
		p.award(BadgeStreak7, streak7At)
	}
	sort.SliceStable(p.Badges, func(i, j int) bool { return p.Badges[i].EarnedAt < p.Badges[j].EarnedAt })
	return p
}

var skillOrder = []formats.Skill{formats.Listening, formats.Reading, formats.Writing, formats.Speaking}

func attemptXP(b float64) int {
	xp := XPPerAttempt
	if b > BonusFrom {
		xp += int(math.Floor((b-BonusFrom)*2)) * XPPerHalfBand
	}
	return xp
}

func (p *Progress) has(key string) bool {
	for _, b := range p.Badges {
		if b.Key == key {
			return true
		}
	}
	return false
}

// award records a badge the first time it is earned.
func (p *Progress) award(key string, at int64) {
	if p.has(key) {
		return
	}
	p.Badges = append(p.Badges, Badge{Key: key, Name: badgeNames[key], EarnedAt: at})
}

// streaks counts consecutive active calendar days. The current streak
// stays alive until a full day is missed. It also reports when a run
// first reached seven days.
func streaks(stamps []int64, now time.Time, loc *time.Location) (current, longest int, sevenAt int64) {
	if len(stamps) == 0 {
		return 0, 0, 0
	}
	days := map[int]int64{} // day number -> first activity that day
	for _, ts := range stamps {
		if ts <= 0 {
			continue
		}
		d := dayNumber(time.Unix(ts, 0), loc)
		if first, ok := days[d]; !ok || ts < first {
			days[d] = ts
		}
	}
	if len(days) == 0 {
		return 0, 0, 0
	}
	ordered := make([]int, 0, len(days))
	for d := range days {
		ordered = append(ordered, d)
	}
	sort.Ints(ordered)

	run := 0
	for i, d := range ordered {
		if i > 0 && d == ordered[i-1]+1 {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
		if run == 7 && sevenAt == 0 {
			sevenAt = days[d]
		}
	}

	today := dayNumber(now, loc)
	last := ordered[len(ordered)-1]
	if last == today || last == today-1 {
		current = run
	}
	return current, longest, sevenAt
}

// dayNumber counts calendar days in loc since the Unix epoch.
func dayNumber(t time.Time, loc *time.Location) int {
	y, m, d := t.In(loc).Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
