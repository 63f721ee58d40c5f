package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mind-engage/ielts-practice/internal/exam"
	"github.com/mind-engage/ielts-practice/internal/formats"
	"github.com/mind-engage/ielts-practice/internal/grading"
)

var (
	_ exam.Generator      = (*Client)(nil)
	_ exam.CriteriaScorer = (*Client)(nil)
)

const systemPrompt = `You are an experienced IELTS examiner and materials writer.
Always answer with a single JSON object and nothing else.`

type taskDraft struct {
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Prompt    string          `json:"prompt"`
	Questions []exam.Question `json:"questions"`
}

// GenerateTask drafts one practice task. Drafts that would not pass
// exam.ValidateTask are retried.
func (c *Client) GenerateTask(ctx context.Context, req exam.GenerateRequest) (exam.Task, error) {
	if req.Format == "" {
		req.Format = formats.Academic
	}
	prompt, err := taskPrompt(req)
	if err != nil {
		return exam.Task{}, err
	}
	var task exam.Task
	err = c.complete(ctx, "generate_task", systemPrompt, prompt, func(raw []byte) error {
		var d taskDraft
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		t := exam.Task{
			Skill:     req.Skill,
			Format:    req.Format,
			TaskType:  req.TaskType,
			Title:     strings.TrimSpace(d.Title),
			Content:   d.Content,
			Prompt:    d.Prompt,
			Questions: d.Questions,
		}
		for i := range t.Questions {
			if t.Questions[i].ID == "" {
				t.Questions[i].ID = fmt.Sprintf("q%d", i+1)
			}
		}
		if err := exam.ValidateTask(t); err != nil {
			return err
		}
		task = t
		return nil
	})
	return task, err
}

func taskPrompt(req exam.GenerateRequest) (string, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = "any everyday or academic topic"
	}
	format := "Academic"
	if req.Format == formats.GeneralTraining {
		format = "General Training"
	}

	switch req.Skill {
	case formats.Listening, formats.Reading:
		source := "a reading passage of 600-800 words"
		if req.Skill == formats.Listening {
			source = "a listening script (a conversation or monologue) of 500-700 words"
		}
		return fmt.Sprintf(`Write an IELTS %s %s practice section on: %s.
Provide %s in "content", then 10 questions about it.
Use question types: "mcq_single" (options A-D, key is the letter), "tfng" (key is TRUE, FALSE or NOT GIVEN),
"gap_fill" (key lists every accepted answer, at most three words).
Every question needs an "answer_key".

Respond with ONLY this JSON:
{"title": "...", "content": "...", "questions": [{"id": "q1", "type": "mcq_single", "prompt": "...", "options": ["A ...", "B ...", "C ...", "D ..."], "answer_key": ["A"]}]}`,
			format, req.Skill, topic, source), nil
	case formats.Writing:
		kind := "Task 2 essay question (opinion, discussion or problem/solution)"
		if req.TaskType == grading.WritingTask1.Name {
			kind = "Task 1 question describing a chart, table, process or map; describe the visual data in words in \"content\""
			if req.Format == formats.GeneralTraining {
				kind = "Task 1 letter question with three bullet points"
			}
		}
		return fmt.Sprintf(`Write an IELTS %s Writing %s on: %s.

Respond with ONLY this JSON:
{"title": "...", "content": "...", "prompt": "the full task instructions"}`, format, kind, topic), nil
	case formats.Speaking:
		return fmt.Sprintf(`Write an IELTS Speaking Part 2 cue card with Part 3 follow-up questions on: %s.

Respond with ONLY this JSON:
{"title": "...", "prompt": "cue card and follow-up questions"}`, topic), nil
	}
	return "", fmt.Errorf("%w: %q", formats.ErrUnknownSkill, req.Skill)
}

type criteriaReply struct {
	Scores   map[string]float64 `json:"scores"`
	Feedback []string           `json:"feedback"`
}

// ScoreCriteria asks the model for a 0-9 score per rubric criterion. The
// reply must score every criterion; any overall band the model adds is
// ignored.
func (c *Client) ScoreCriteria(ctx context.Context, r grading.Rubric, prompt, text string) (map[string]float64, []string, error) {
	var out criteriaReply
	err := c.complete(ctx, "score_"+r.Name, systemPrompt, criteriaPrompt(r, prompt, text), func(raw []byte) error {
		var rep criteriaReply
		if err := json.Unmarshal(raw, &rep); err != nil {
			return err
		}
		for _, cr := range r.Criteria {
			v, ok := rep.Scores[cr.Key]
			if !ok {
				return fmt.Errorf("%w: %s", grading.ErrMissingCriterion, cr.Key)
			}
			if v < 0 || v > 9 {
				return fmt.Errorf("%s score %v outside 0-9", cr.Key, v)
			}
		}
		out = rep
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out.Scores, out.Feedback, nil
}

func criteriaPrompt(r grading.Rubric, prompt, text string) string {
	var crit, keys strings.Builder
	for i, cr := range r.Criteria {
		fmt.Fprintf(&crit, "- %s (key %q)\n", cr.Name, cr.Key)
		if i > 0 {
			keys.WriteString(", ")
		}
		fmt.Fprintf(&keys, "%q: 6.5", cr.Key)
	}
	what := "essay"
	if r.Name == grading.Speaking.Name {
		what = "speaking transcript"
	}
	return fmt.Sprintf(`Score this IELTS %s against the public band descriptors.
Give each criterion a band from 0 to 9 in steps of 0.5:
%s
TASK:
%s

CANDIDATE'S %s:
%s

Add two to four short, specific feedback points.

Respond with ONLY this JSON:
{"scores": {%s}, "feedback": ["..."]}`,
		what, crit.String(), prompt, strings.ToUpper(what), text, keys.String())
}
