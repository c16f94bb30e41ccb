package grading

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/edulearn/quiz-service/internal/models"
)

// Result is the canonical form of one graded answer. SelectedOptionID and
// AnswerText mirror what gets persisted onto the attempt_answers row.
type Result struct {
	SelectedOptionID *uint
	AnswerText       *string
	IsCorrect        bool
	IsPending        bool
}

// Normalize maps a raw, loosely-typed answer payload to a graded result for
// one question. Pure: no side effects, no I/O.
//
// Raw values arrive as decoded JSON: mcq single-select is an integer index
// into the question's options sorted by order_index, multi-select an array of
// such indices, true_false a boolean, short_desc free text. Missing answers
// are passed as nil.
func Normalize(question *models.Question, raw any) Result {
	if question.IsManuallyGraded() {
		return Result{AnswerText: coerceText(raw), IsPending: true}
	}

	switch question.Type {
	case models.QuestionMCQ:
		if question.MultipleCorrect {
			return normalizeMultiSelect(question, raw)
		}
		return normalizeSingleSelect(question, raw)
	case models.QuestionTrueFalse:
		return normalizeTrueFalse(question, raw)
	default:
		// Unrecognized type: the enum is closed upstream, so this is a
		// defensive fallback for corrupt rows, not a contract.
		return Result{AnswerText: coerceText(raw)}
	}
}

func normalizeSingleSelect(question *models.Question, raw any) Result {
	index, ok := toIndex(raw)
	if !ok {
		return Result{}
	}

	options := question.SortedOptions()
	if index < 0 || index >= len(options) {
		// Out of range: keep the raw index on record as a singleton array.
		text := fmt.Sprintf("[%d]", index)
		return Result{AnswerText: &text}
	}

	option := options[index]
	return Result{SelectedOptionID: &option.ID, IsCorrect: option.IsCorrect}
}

func normalizeMultiSelect(question *models.Question, raw any) Result {
	indices := toIndexSlice(raw)
	options := question.SortedOptions()

	// Resolve indices to option ids, dropping out-of-range and duplicate
	// selections.
	selected := make(map[uint]bool)
	var resolved []uint
	for _, index := range indices {
		if index < 0 || index >= len(options) {
			continue
		}
		id := options[index].ID
		if !selected[id] {
			selected[id] = true
			resolved = append(resolved, id)
		}
	}

	var text *string
	if len(resolved) > 0 {
		encoded, err := json.Marshal(resolved)
		if err == nil {
			s := string(encoded)
			text = &s
		}
	}

	if len(resolved) == 0 {
		// An empty selection is incorrect, never pending.
		return Result{}
	}

	// Correct iff the resolved id set equals the correct id set exactly:
	// no missing correct options, no extra incorrect ones.
	correctCount := 0
	for _, option := range options {
		if option.IsCorrect {
			correctCount++
			if !selected[option.ID] {
				return Result{AnswerText: text}
			}
		}
	}
	if len(resolved) != correctCount {
		return Result{AnswerText: text}
	}

	return Result{AnswerText: text, IsCorrect: true}
}

func normalizeTrueFalse(question *models.Question, raw any) Result {
	value, ok := toBool(raw)
	if !ok {
		// null or missing answer: incorrect, never pending.
		return Result{}
	}

	text := strconv.FormatBool(value)
	correct := question.CorrectBoolean != nil && value == *question.CorrectBoolean
	return Result{AnswerText: &text, IsCorrect: correct}
}

// toIndex coerces a decoded JSON value to an option index. JSON numbers
// decode as float64; integers sent as strings are accepted too.
func toIndex(raw any) (int, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func toIndexSlice(raw any) []int {
	var indices []int
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range v {
			if index, ok := toIndex(item); ok {
				indices = append(indices, index)
			}
		}
	case []int:
		indices = append(indices, v...)
	default:
		if index, ok := toIndex(raw); ok {
			indices = append(indices, index)
		}
	}
	return indices
}

func toBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// coerceText renders a raw value as persistable text, or nil when nothing
// was supplied.
func coerceText(raw any) *string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return &v
	default:
		s := fmt.Sprint(v)
		return &s
	}
}
