package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Question types understood by the checker.
const (
	TypeMCQSingle = "mcq_single"
	TypeMCQMulti  = "mcq_multi"
	TypeTFNG      = "tfng"
	TypeGapFill   = "gap_fill"
	TypeMatching  = "matching"
)

var ErrUnknownType = errors.New("unknown question type")

// Known reports whether the built-in checker can score questions of type t.
func Known(t string) bool {
	switch t {
	case TypeMCQSingle, TypeMCQMulti, TypeTFNG, TypeGapFill, TypeMatching:
		return true
	}
	return false
}

// Q is the view of a question needed for checking.
type Q struct {
	ID        string
	Type      string
	AnswerKey []string
}

// Marks is how many raw-score points q contributes. "Choose TWO" items
// count once per distinct expected letter, everything else counts once.
func (q Q) Marks() int {
	if q.Type == TypeMCQMulti {
		if n := len(toSet(upperAll(q.AnswerKey))); n > 0 {
			return n
		}
	}
	return 1
}

// Result is the outcome of checking one question.
type Result struct {
	QuestionID string   `json:"question_id"`
	Awarded    int      `json:"awarded"`
	Marks      int      `json:"marks"`
	Feedback   []string `json:"feedback,omitempty"`
}

// Sheet is a fully checked answer set. Raw is the number of correct
// answers out of Total.
type Sheet struct {
	Raw     int      `json:"raw"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
}

// Strategy checks a single response.
type Strategy interface {
	Check(ctx context.Context, q Q, response any) (Result, error)
}

// Checker routes by question type to the matching Strategy.
type Checker struct {
	strategies map[string]Strategy
}

type Option func(*config)

type config struct {
	SpellingHintDistance int // 0 disables "close spelling" feedback
}

func WithSpellingHints(n int) Option { return func(c *config) { c.SpellingHintDistance = n } }

// NewChecker installs the built-in strategies.
func NewChecker(opts ...Option) *Checker {
	cfg := &config{SpellingHintDistance: 1}
	for _, o := range opts {
		o(cfg)
	}
	return &Checker{
		strategies: map[string]Strategy{
			TypeMCQSingle: letterStrategy{},
			TypeMatching:  letterStrategy{},
			TypeMCQMulti:  multiStrategy{},
			TypeTFNG:      tfngStrategy{},
			TypeGapFill:   gapFillStrategy{hintDistance: cfg.SpellingHintDistance},
		},
	}
}

// Check grades every question against responses (keyed by question ID).
// Missing responses score zero; a response of the wrong shape is an error.
func (c *Checker) Check(ctx context.Context, qs []Q, responses map[string]any) (Sheet, error) {
	sheet := Sheet{Results: make([]Result, 0, len(qs))}
	for _, q := range qs {
		s, ok := c.strategies[q.Type]
		if !ok {
			return Sheet{}, fmt.Errorf("%w: %q (question %s)", ErrUnknownType, q.Type, q.ID)
		}
		sheet.Total += q.Marks()
		resp, has := responses[q.ID]
		if !has || resp == nil {
			sheet.Results = append(sheet.Results, Result{QuestionID: q.ID, Marks: q.Marks(), Feedback: []string{"no answer"}})
			continue
		}
		res, err := s.Check(ctx, q, resp)
		if err != nil {
			return Sheet{}, fmt.Errorf("question %s: %w", q.ID, err)
		}
		res.QuestionID = q.ID
		res.Marks = q.Marks()
		sheet.Raw += res.Awarded
		sheet.Results = append(sheet.Results, res)
	}
	return sheet, nil
}

// --- Strategies ---

type letterStrategy struct{}

func (letterStrategy) Check(_ context.Context, q Q, response any) (Result, error) {
	resp, ok := response.(string)
	if !ok {
		return Result{}, errors.New("response must be string")
	}
	got := strings.ToUpper(strings.TrimSpace(resp))
	for _, k := range q.AnswerKey {
		if got == strings.ToUpper(strings.TrimSpace(k)) {
			return Result{Awarded: 1}, nil
		}
	}
	return Result{}, nil
}

type multiStrategy struct{}

// Selecting more options than the key asks for voids the question.
func (multiStrategy) Check(_ context.Context, q Q, response any) (Result, error) {
	sel, ok := toStringSlice(response)
	if !ok {
		return Result{}, errors.New("response must be []string")
	}
	resp := toSet(upperAll(sel))
	key := toSet(upperAll(q.AnswerKey))
	if len(resp) > len(key) {
		return Result{Feedback: []string{fmt.Sprintf("chose %d options, expected %d", len(resp), len(key))}}, nil
	}
	hits := 0
	for k := range key {
		if _, ok := resp[k]; ok {
			hits++
		}
	}
	return Result{Awarded: hits}, nil
}

type tfngStrategy struct{}

func (tfngStrategy) Check(_ context.Context, q Q, response any) (Result, error) {
	resp, ok := response.(string)
	if !ok {
		return Result{}, errors.New("response must be string")
	}
	got := canonicalTFNG(resp)
	for _, k := range q.AnswerKey {
		if got != "" && got == canonicalTFNG(k) {
			return Result{Awarded: 1}, nil
		}
	}
	return Result{}, nil
}

// canonicalTFNG folds TRUE/T/YES/Y, FALSE/F/NO/N and NOT GIVEN/NG spellings.
func canonicalTFNG(s string) string {
	switch normalize(s) {
	case "true", "t", "yes", "y":
		return "yes"
	case "false", "f", "no", "n":
		return "no"
	case "not given", "ng", "notgiven":
		return "not given"
	}
	return ""
}

type gapFillStrategy struct{ hintDistance int }

// Spelling must be exact; a near miss only earns feedback.
func (s gapFillStrategy) Check(_ context.Context, q Q, response any) (Result, error) {
	resp, ok := response.(string)
	if !ok {
		return Result{}, errors.New("response must be string")
	}
	normResp := normalize(resp)
	if normResp == "" {
		return Result{Feedback: []string{"no answer"}}, nil
	}
	near := false
	for _, k := range q.AnswerKey {
		if numericEqual(k, resp) {
			return Result{Awarded: 1}, nil
		}
		nk := normalize(k)
		if nk == normResp {
			return Result{Awarded: 1}, nil
		}
		if s.hintDistance > 0 && levenshtein(nk, normResp) <= s.hintDistance {
			near = true
		}
	}
	if near {
		return Result{Feedback: []string{"close: check spelling"}}, nil
	}
	return Result{}, nil
}

// helpers

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}
