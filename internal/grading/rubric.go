package grading

import (
	"errors"
	"fmt"

	"github.com/mind-engage/ielts-practice/internal/band"
)

// Rubric is the set of criteria an examiner scores a performance on.
type Rubric struct {
	Name     string      `json:"name"`
	Criteria []Criterion `json:"criteria"`
}

type Criterion struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

var ErrMissingCriterion = errors.New("missing criterion score")

var (
	WritingTask1 = Rubric{Name: "writing_task1", Criteria: []Criterion{
		{Key: "task_achievement", Name: "Task Achievement"},
		{Key: "coherence_cohesion", Name: "Coherence and Cohesion"},
		{Key: "lexical_resource", Name: "Lexical Resource"},
		{Key: "grammatical_range", Name: "Grammatical Range and Accuracy"},
	}}
	WritingTask2 = Rubric{Name: "writing_task2", Criteria: []Criterion{
		{Key: "task_response", Name: "Task Response"},
		{Key: "coherence_cohesion", Name: "Coherence and Cohesion"},
		{Key: "lexical_resource", Name: "Lexical Resource"},
		{Key: "grammatical_range", Name: "Grammatical Range and Accuracy"},
	}}
	Speaking = Rubric{Name: "speaking", Criteria: []Criterion{
		{Key: "fluency_coherence", Name: "Fluency and Coherence"},
		{Key: "lexical_resource", Name: "Lexical Resource"},
		{Key: "grammatical_range", Name: "Grammatical Range and Accuracy"},
		{Key: "pronunciation", Name: "Pronunciation"},
	}}
)

// CriterionScore is one scored criterion.
type CriterionScore struct {
	Key   string  `json:"key"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ScoreCriteria clamps each awarded criterion to the band scale (0..9) and
// returns the criteria in rubric order with the overall band. Every rubric
// criterion must be present; extra keys are ignored.
func ScoreCriteria(r Rubric, awarded map[string]float64) ([]CriterionScore, float64, error) {
	out := make([]CriterionScore, 0, len(r.Criteria))
	scores := make([]float64, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		v, ok := awarded[c.Key]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrMissingCriterion, c.Key)
		}
		v = max(0, min(9, v))
		out = append(out, CriterionScore{Key: c.Key, Name: c.Name, Score: v})
		scores = append(scores, v)
	}
	overall, err := band.CalculateOverallBand(scores)
	if err != nil {
		return nil, 0, err
	}
	return out, overall, nil
}

// RubricByName resolves a task type to its rubric.
func RubricByName(name string) (Rubric, bool) {
	switch name {
	case WritingTask1.Name:
		return WritingTask1, true
	case WritingTask2.Name:
		return WritingTask2, true
	case Speaking.Name:
		return Speaking, true
	}
	return Rubric{}, false
}
