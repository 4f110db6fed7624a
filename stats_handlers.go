package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"vmxio.com/atpl-trainer/grading"
	"vmxio.com/atpl-trainer/scoring"
)

type StatsResponse struct {
	TotalExams      int64                            `json:"totalExams"`
	CompletedExams  int64                            `json:"completedExams"`
	AverageScore    *float64                         `json:"averageScore,omitempty"`
	PassedExams     int64                            `json:"passedExams"`
	FailedExams     int64                            `json:"failedExams"`
	PassRate        *float64                         `json:"passRate,omitempty"`
	TotalAnswers    int64                            `json:"totalAnswers"`
	CorrectAnswers  int64                            `json:"correctAnswers"`
	AccuracyOverall float64                          `json:"accuracyOverall"`
	AnswersLast30d  int64                            `json:"answersLast30d"`
	CorrectLast30d  int64                            `json:"correctLast30d"`
	Categories      map[string]scoring.CategoryStats `json:"categories"`
	Weakest         []scoring.CategoryRank           `json:"weakest"`
}

// answeredRow is the latest answer to one exam question, joined with the
// question's category and mark.
type answeredRow struct {
	ExamID     string
	QuestionID string
	Category   string
	MarkValue  int
	IsCorrect  bool
	ElapsedMs  int64
	AnsweredAt time.Time
}

// learnerEntries loads the latest answer per (exam, question) of a learner.
func learnerEntries(db *gorm.DB, uid uint) ([]answeredRow, error) {
	var rows []answeredRow
	err := db.Table("answers a").
		Select("a.exam_id, a.question_id, q.category, q.mark_value, a.is_correct, a.elapsed_ms, a.answered_at").
		Joins("JOIN exams e ON e.id = a.exam_id").
		Joins("JOIN questions q ON q.id = a.question_id").
		Where("e.user_id = ?", uid).
		Order("a.answered_at ASC, a.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "load learner answers")
	}
	type k struct{ exam, question string }
	latest := make(map[k]int, len(rows))
	out := make([]answeredRow, 0, len(rows))
	for _, r := range rows {
		key := k{r.ExamID, r.QuestionID}
		if i, ok := latest[key]; ok {
			out[i] = r
			continue
		}
		latest[key] = len(out)
		out = append(out, r)
	}
	return out, nil
}

func Stats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}

		var resp StatsResponse

		if err := db.Model(&Exam{}).Where("user_id = ?", uid).Count(&resp.TotalExams).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		var finished []Exam
		if err := db.Where("user_id = ? AND finished_at IS NOT NULL AND score_percent IS NOT NULL", uid).
			Find(&finished).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		resp.CompletedExams = int64(len(finished))
		if len(finished) > 0 {
			sum := 0.0
			for _, e := range finished {
				sum += *e.ScorePercent
				if scoring.Passed(*e.ScorePercent) {
					resp.PassedExams++
				} else {
					resp.FailedExams++
				}
			}
			avg := sum / float64(len(finished))
			pr := float64(resp.PassedExams) * 100.0 / float64(len(finished))
			resp.AverageScore = &avg
			resp.PassRate = &pr
		}

		rows, err := learnerEntries(db, uid)
		if err != nil {
			respondError(c, err)
			return
		}
		cats, err := KnownCategories(db)
		if err != nil {
			respondError(c, err)
			return
		}

		since := time.Now().Add(-30 * 24 * time.Hour)
		entries := make([]scoring.Entry, 0, len(rows))
		for _, r := range rows {
			entries = append(entries, scoring.Entry{
				QuestionID: r.QuestionID,
				Category:   r.Category,
				Mark:       scoring.MarkValue(r.MarkValue),
				Verdict: &grading.Verdict{
					QuestionID: r.QuestionID,
					IsCorrect:  r.IsCorrect,
					Elapsed:    time.Duration(r.ElapsedMs) * time.Millisecond,
				},
			})
			resp.TotalAnswers++
			if r.IsCorrect {
				resp.CorrectAnswers++
			}
			if !r.AnsweredAt.Before(since) {
				resp.AnswersLast30d++
				if r.IsCorrect {
					resp.CorrectLast30d++
				}
			}
		}
		if resp.TotalAnswers > 0 {
			resp.AccuracyOverall = float64(resp.CorrectAnswers) * 100.0 / float64(resp.TotalAnswers)
		}
		resp.Categories = scoring.CategoryBreakdown(cats, entries)
		resp.Weakest = scoring.WeakestCategories(resp.Categories)

		c.JSON(http.StatusOK, resp)
	}
}
