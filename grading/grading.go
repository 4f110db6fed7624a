// Package grading decides whether a learner's answer matches a question's key.
//
// Grading is all or nothing: a multiple-choice answer must pick the keyed
// option and a short answer must have every expected field within its
// absolute tolerance.
package grading

import (
	"fmt"
	"time"
)

// ExpectedAnswer is one gradable numeric sub-answer of a question.
type ExpectedAnswer struct {
	Field        string  `json:"field"`
	Value        float64 `json:"value"`
	ToleranceAbs float64 `json:"toleranceAbs"`
	Unit         string  `json:"unit"`
}

// AnswerKey is what a question accepts: a single option index, an ordered
// set of expected fields, or both.
type AnswerKey struct {
	QuestionID         string           `json:"questionId"`
	CorrectOptionIndex *int             `json:"correctOptionIndex,omitempty"`
	Expected           []ExpectedAnswer `json:"expected,omitempty"`
}

// Submission is a learner's raw answer.
type Submission struct {
	QuestionID          string             `json:"questionId"`
	SelectedOptionIndex *int               `json:"selectedOptionIndex,omitempty"`
	Values              map[string]float64 `json:"values,omitempty"`
	Elapsed             time.Duration      `json:"elapsed"`
}

// OptionResult is the multiple-choice part of a verdict.
type OptionResult struct {
	IsCorrect bool `json:"isCorrect"`
	Expected  int  `json:"expected"`
	Actual    *int `json:"actual"`
}

// FieldResult is the verdict for one expected field. Actual is nil when the
// submission left the field out.
type FieldResult struct {
	IsCorrect    bool     `json:"isCorrect"`
	Expected     float64  `json:"expected"`
	Actual       *float64 `json:"actual"`
	ToleranceAbs float64  `json:"toleranceAbs"`
	Unit         string   `json:"unit,omitempty"`
}

// Verdict is the outcome of grading one submission.
type Verdict struct {
	QuestionID string                 `json:"questionId"`
	IsCorrect  bool                   `json:"isCorrect"`
	Option     *OptionResult          `json:"option,omitempty"`
	PerField   map[string]FieldResult `json:"perField,omitempty"`
	// Fields holds PerField's keys in key order.
	Fields  []string      `json:"fields,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// MalformedKeyError is returned for a key that defines no answer at all.
type MalformedKeyError struct {
	QuestionID string
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("grading: answer key for question %q defines no answer", e.QuestionID)
}

// Validate reports whether the key can grade anything.
func (k AnswerKey) Validate() error {
	if k.CorrectOptionIndex == nil && len(k.Expected) == 0 {
		return &MalformedKeyError{QuestionID: k.QuestionID}
	}
	return nil
}

// Grade checks sub against key. Neither argument is modified.
func Grade(key AnswerKey, sub Submission) (Verdict, error) {
	if err := key.Validate(); err != nil {
		return Verdict{}, err
	}
	v := Verdict{
		QuestionID: key.QuestionID,
		IsCorrect:  true,
		Elapsed:    sub.Elapsed,
	}

	if key.CorrectOptionIndex != nil {
		want := *key.CorrectOptionIndex
		res := OptionResult{Expected: want}
		if sub.SelectedOptionIndex != nil {
			got := *sub.SelectedOptionIndex
			res.Actual = &got
			res.IsCorrect = got == want
		}
		v.Option = &res
		v.IsCorrect = res.IsCorrect
	}

	if len(key.Expected) > 0 {
		v.PerField = make(map[string]FieldResult, len(key.Expected))
		v.Fields = make([]string, 0, len(key.Expected))
		for _, exp := range key.Expected {
			res := FieldResult{
				Expected:     exp.Value,
				ToleranceAbs: exp.ToleranceAbs,
				Unit:         exp.Unit,
			}
			if got, ok := sub.Values[exp.Field]; ok {
				res.Actual = &got
				res.IsCorrect = WithinTolerance(got, exp.Value, exp.ToleranceAbs)
			}
			if _, dup := v.PerField[exp.Field]; !dup {
				v.Fields = append(v.Fields, exp.Field)
			}
			v.PerField[exp.Field] = res
			v.IsCorrect = v.IsCorrect && res.IsCorrect
		}
	}
	return v, nil
}

// WithinTolerance reports whether actual lies in [expected-tol, expected+tol],
// with the bounds computed in float64. A submitted expected+tol equals the
// upper bound and passes; the next representable value above it fails. NaN
// never passes.
func WithinTolerance(actual, expected, tol float64) bool {
	return actual >= expected-tol && actual <= expected+tol
}
