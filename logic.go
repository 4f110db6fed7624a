package main

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"vmxio.com/atpl-trainer/grading"
	"vmxio.com/atpl-trainer/scoring"
)

var errExamEmpty = errors.New("exam has no questions")

func drawQuestions(allIDs []string, count int, seed *int64) []string {
	var r *rand.Rand
	if seed != nil {
		r = rand.New(rand.NewSource(*seed))
	} else {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	out := append([]string(nil), allIDs...)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if count > len(out) {
		count = len(out)
	}
	return out[:count]
}

// answerKeyFor builds the grading key of a question with its options and
// fields loaded.
func answerKeyFor(q Question) grading.AnswerKey {
	key := grading.AnswerKey{QuestionID: q.ID}
	for _, o := range q.Options {
		if o.IsCorrect {
			idx := o.Position
			key.CorrectOptionIndex = &idx
			break
		}
	}
	for _, f := range q.Fields {
		key.Expected = append(key.Expected, grading.ExpectedAnswer{
			Field:        f.Field,
			Value:        f.Value,
			ToleranceAbs: f.ToleranceAbs,
			Unit:         f.Unit,
		})
	}
	return key
}

func loadQuestion(db *gorm.DB, qid string) (Question, error) {
	var q Question
	err := db.Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		Preload("Fields", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		First(&q, "id = ?", qid).Error
	return q, err
}

func loadQuestions(db *gorm.DB, ids []string) (map[string]Question, error) {
	var qs []Question
	err := db.Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		Preload("Fields", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		Where("id IN ?", ids).Find(&qs).Error
	if err != nil {
		return nil, errors.Wrap(err, "load questions")
	}
	index := make(map[string]Question, len(qs))
	for _, q := range qs {
		index[q.ID] = q
	}
	return index, nil
}

// submissionFromAnswer rebuilds the grading input from a stored answer.
func submissionFromAnswer(a Answer) grading.Submission {
	sub := grading.Submission{
		QuestionID:          a.QuestionID,
		SelectedOptionIndex: a.SelectedOption,
		Elapsed:             time.Duration(a.ElapsedMs) * time.Millisecond,
	}
	if a.ValuesRaw != "" {
		_ = json.Unmarshal([]byte(a.ValuesRaw), &sub.Values)
	}
	return sub
}

func jsonValues(v map[string]float64) string {
	if v == nil {
		return "{}"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// ExamResult is everything FinishExam and GetMyExam report about an exam.
type ExamResult struct {
	Score      scoring.Score                           `json:"score"`
	Categories map[string]scoring.CategoryStats        `json:"categories"`
	Marks      map[scoring.MarkValue]scoring.MarkStats `json:"marks"`
	Items      []ReviewRow                             `json:"items"`
}

type ReviewRow struct {
	Position     int               `json:"position"`
	QuestionID   string            `json:"questionId"`
	QuestionText string            `json:"questionText"`
	Category     string            `json:"category"`
	MarkValue    int               `json:"markValue"`
	Answered     bool              `json:"answered"`
	Verdict      *grading.Verdict  `json:"verdict,omitempty"`
	Key          grading.AnswerKey `json:"key"`
	Explanation  string            `json:"explanation,omitempty"`
}

// computeExamResult regrades the latest answer to every exam question and
// aggregates from scratch. Unanswered questions still count toward the
// maximum score.
func computeExamResult(db *gorm.DB, examID string) (ExamResult, error) {
	var eqs []ExamQuestion
	if err := db.Where("exam_id = ?", examID).Order("position").Find(&eqs).Error; err != nil {
		return ExamResult{}, errors.Wrap(err, "load exam questions")
	}
	if len(eqs) == 0 {
		return ExamResult{}, errExamEmpty
	}

	var answers []Answer
	if err := db.Where("exam_id = ?", examID).
		Order("answered_at ASC, id ASC").
		Find(&answers).Error; err != nil {
		return ExamResult{}, errors.Wrap(err, "load answers")
	}
	// Latest answer per question wins
	latest := map[string]Answer{}
	for _, a := range answers {
		latest[a.QuestionID] = a
	}

	ids := make([]string, 0, len(eqs))
	for _, eq := range eqs {
		ids = append(ids, eq.QuestionID)
	}
	questions, err := loadQuestions(db, ids)
	if err != nil {
		return ExamResult{}, err
	}

	entries := make([]scoring.Entry, 0, len(eqs))
	items := make([]ReviewRow, 0, len(eqs))
	for _, eq := range eqs {
		q, ok := questions[eq.QuestionID]
		if !ok {
			// its mark is unknown, so the maximum score would be wrong
			return ExamResult{}, errors.Errorf("exam %s: question %s is missing from the bank", examID, eq.QuestionID)
		}
		key := answerKeyFor(q)
		entry := scoring.Entry{QuestionID: q.ID, Category: q.Category, Mark: scoring.MarkValue(q.MarkValue)}
		row := ReviewRow{
			Position:     eq.Position,
			QuestionID:   q.ID,
			QuestionText: q.Text,
			Category:     q.Category,
			MarkValue:    q.MarkValue,
			Key:          key,
			Explanation:  q.Explanation,
		}
		if a, answered := latest[q.ID]; answered {
			v, err := grading.Grade(key, submissionFromAnswer(a))
			if err != nil {
				return ExamResult{}, errors.Wrapf(err, "grade question %s", q.ID)
			}
			entry.Verdict = &v
			row.Answered = true
			row.Verdict = &v
		}
		entries = append(entries, entry)
		items = append(items, row)
	}

	cats, err := KnownCategories(db)
	if err != nil {
		return ExamResult{}, err
	}
	return ExamResult{
		Score:      scoring.OverallScore(entries),
		Categories: scoring.CategoryBreakdown(cats, entries),
		Marks:      scoring.MarkBreakdown(entries),
		Items:      items,
	}, nil
}

// finishExam stores the score of an exam and marks it finished at now.
func finishExam(db *gorm.DB, exam *Exam, now time.Time) (ExamResult, error) {
	res, err := computeExamResult(db, exam.ID)
	if err != nil {
		return ExamResult{}, err
	}
	exam.FinishedAt = &now
	exam.TotalScore = &res.Score.TotalScore
	exam.MaxScore = &res.Score.MaxScore
	exam.ScorePercent = &res.Score.Percentage
	if err := db.Save(exam).Error; err != nil {
		return ExamResult{}, errors.Wrap(err, "save exam")
	}
	return res, nil
}

func passedPtr(score *float64) *bool {
	if score == nil {
		return nil // exam not finished yet
	}
	v := scoring.Passed(*score)
	return &v
}
