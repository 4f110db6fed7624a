package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"vmxio.com/atpl-trainer/grading"
	"vmxio.com/atpl-trainer/navcomputer"
	"vmxio.com/atpl-trainer/scoring"
)

// ==== File input structures ====

type QFieldInput struct {
	Field        string   `json:"field" yaml:"field" validate:"required,max=32"`
	Label        string   `json:"label" yaml:"label"`
	Value        *float64 `json:"value" yaml:"value"` // derived from windTriangle when omitted
	ToleranceAbs float64  `json:"toleranceAbs" yaml:"toleranceAbs" validate:"gte=0"`
	Unit         string   `json:"unit" yaml:"unit" validate:"max=8"`
}

type QInput struct {
	ID                 string             `json:"id" yaml:"id" validate:"required,max=64"`
	QuestionText       string             `json:"questionText" yaml:"questionText" validate:"required"`
	Category           string             `json:"category" yaml:"category" validate:"required,max=64"`
	MarkValue          int                `json:"markValue" yaml:"markValue" validate:"min=1,max=5"`
	Kind               string             `json:"kind" yaml:"kind" validate:"omitempty,oneof=choice numeric"`
	Explanation        string             `json:"explanation" yaml:"explanation"`
	Options            []string           `json:"options" yaml:"options" validate:"omitempty,min=2,dive,required"`
	CorrectOptionIndex *int               `json:"correctOptionIndex" yaml:"correctOptionIndex"`
	WindTriangle       *navcomputer.Input `json:"windTriangle" yaml:"windTriangle"`
	Fields             []QFieldInput      `json:"fields" yaml:"fields" validate:"omitempty,dive"`
}

type questionFile struct {
	Questions []QInput `json:"questions" yaml:"questions"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ==== Seeder ====

// SeedFromFile loads a question bank from a .json or .yaml/.yml file.
func SeedFromFile(db *gorm.DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	arr, err := parseQuestionBank(raw, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return seedQuestions(db, arr)
}

// Accept either: [ ... ] or { "questions": [ ... ] }
func parseQuestionBank(raw []byte, ext string) ([]QInput, error) {
	var wrapper questionFile
	var arr []QInput
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Questions) > 0 {
			return wrapper.Questions, nil
		}
		if err := yaml.Unmarshal(raw, &arr); err != nil {
			return nil, errors.Wrap(err, "yaml parse")
		}
	default:
		if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Questions) > 0 {
			return wrapper.Questions, nil
		}
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, errors.Wrap(err, "json parse")
		}
	}
	return arr, nil
}

func seedQuestions(db *gorm.DB, arr []QInput) error {
	seen := map[string]bool{}
	dups := []string{}
	for _, q := range arr {
		if seen[q.ID] {
			dups = append(dups, q.ID)
		}
		seen[q.ID] = true
	}
	if len(dups) > 0 {
		return errors.Errorf("duplicate question IDs: %v", dups)
	}

	questions := make([]Question, 0, len(arr))
	for _, in := range arr {
		q, err := buildQuestion(in)
		if err != nil {
			return errors.Wrapf(err, "question %s", in.ID)
		}
		questions = append(questions, q)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, q := range questions {
			opts, fields := q.Options, q.Fields
			q.Options, q.Fields = nil, nil
			if err := tx.Create(&q).Error; err != nil {
				return err
			}
			for i := range opts {
				opts[i].QuestionID = q.ID
				if err := tx.Create(&opts[i]).Error; err != nil {
					return err
				}
			}
			for i := range fields {
				fields[i].QuestionID = q.ID
				if err := tx.Create(&fields[i]).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// buildQuestion validates one input record and turns it into a Question with
// its options or expected fields. Numeric questions that carry a wind
// triangle get their expected values from the solver; values written in the
// file must agree with it within their tolerance.
func buildQuestion(in QInput) (Question, error) {
	if in.MarkValue == 0 {
		in.MarkValue = int(scoring.MinMark)
	}
	if in.Kind == "" {
		in.Kind = KindNumeric
		if len(in.Options) > 0 {
			in.Kind = KindChoice
		}
	}
	if err := validate.Struct(in); err != nil {
		return Question{}, err
	}

	q := Question{
		ID:          strings.TrimSpace(in.ID),
		Text:        in.QuestionText,
		Kind:        in.Kind,
		Category:    strings.TrimSpace(in.Category),
		MarkValue:   in.MarkValue,
		Explanation: in.Explanation,
		Version:     1,
	}

	switch in.Kind {
	case KindChoice:
		if in.CorrectOptionIndex == nil {
			return Question{}, errors.New("choice question without correctOptionIndex")
		}
		if idx := *in.CorrectOptionIndex; idx < 0 || idx >= len(in.Options) {
			return Question{}, errors.Errorf("correctOptionIndex %d out of range for %d options", idx, len(in.Options))
		}
		for i, text := range in.Options {
			q.Options = append(q.Options, Option{
				Position:  i,
				Text:      text,
				IsCorrect: i == *in.CorrectOptionIndex,
			})
		}
	case KindNumeric:
		fields, err := buildFields(in)
		if err != nil {
			return Question{}, err
		}
		q.Fields = fields
	}
	return q, nil
}

func buildFields(in QInput) ([]AnswerField, error) {
	if len(in.Fields) == 0 {
		return nil, errors.New("numeric question without fields")
	}
	var solved *navcomputer.Result
	if in.WindTriangle != nil {
		res, err := navcomputer.Solve(*in.WindTriangle)
		if err != nil {
			return nil, errors.Wrap(err, "windTriangle")
		}
		solved = &res
	}

	out := make([]AnswerField, 0, len(in.Fields))
	for i, f := range in.Fields {
		af := AnswerField{
			Position:     i,
			Field:        f.Field,
			Label:        f.Label,
			ToleranceAbs: f.ToleranceAbs,
			Unit:         f.Unit,
		}
		var derived *float64
		if solved != nil {
			if v, ok := solved.Field(f.Field); ok {
				derived = &v
				if af.Unit == "" {
					af.Unit = navcomputer.Unit(f.Field)
				}
			}
		}
		switch {
		case f.Value != nil && derived != nil:
			if !grading.WithinTolerance(*f.Value, *derived, f.ToleranceAbs) {
				return nil, errors.Errorf("field %s: authored value %v disagrees with the flight computer (%.1f ± %v)",
					f.Field, *f.Value, *derived, f.ToleranceAbs)
			}
			af.Value = *derived
		case f.Value != nil:
			af.Value = *f.Value
		case derived != nil:
			af.Value = *derived
		default:
			return nil, errors.Errorf("field %s has no value and cannot be derived", f.Field)
		}
		out = append(out, af)
	}
	return out, nil
}
