package main

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"vmxio.com/atpl-trainer/grading"
	"vmxio.com/atpl-trainer/navcomputer"
)

/*** DTOs shared across handlers ***/

type QuestionDTO struct {
	ID           string      `json:"id"`
	QuestionText string      `json:"questionText"`
	Kind         string      `json:"kind"`
	Category     string      `json:"category"`
	MarkValue    int         `json:"markValue"`
	Options      []OptionDTO `json:"options,omitempty"`
	Fields       []FieldDTO  `json:"fields,omitempty"`
}

type OptionDTO struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// FieldDTO names an answer box; the expected value stays server side.
type FieldDTO struct {
	Field string `json:"field"`
	Label string `json:"label,omitempty"`
	Unit  string `json:"unit,omitempty"`
}

func toQuestionDTO(q Question) QuestionDTO {
	out := QuestionDTO{
		ID:           q.ID,
		QuestionText: q.Text,
		Kind:         q.Kind,
		Category:     q.Category,
		MarkValue:    q.MarkValue,
	}
	for _, o := range q.Options {
		out.Options = append(out.Options, OptionDTO{Index: o.Position, Text: o.Text})
	}
	for _, f := range q.Fields {
		out.Fields = append(out.Fields, FieldDTO{Field: f.Field, Label: f.Label, Unit: f.Unit})
	}
	return out
}

// respondError maps core and persistence errors onto the API's status codes.
func respondError(c *gin.Context, err error) {
	var malformed *grading.MalformedKeyError
	var invalid *navcomputer.InvalidInputError
	switch {
	case errors.As(err, &malformed):
		c.JSON(http.StatusConflict, gin.H{"error": "cannot grade this question", "questionId": malformed.QuestionID})
	case errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": invalid.Error(), "field": invalid.Field})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errExamEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
	}
}

func currentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get("userDBID")
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// ownExam loads an exam of the current learner. It writes the error response
// and returns false when the exam is missing or belongs to someone else.
func ownExam(c *gin.Context, db *gorm.DB, examID string) (Exam, bool) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
		return Exam{}, false
	}
	var exam Exam
	if err := db.First(&exam, "id = ?", examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
		}
		return Exam{}, false
	}
	if exam.UserID == nil || *exam.UserID != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return Exam{}, false
	}
	return exam, true
}

/*** Learning mode ***/

type LearnAnswerReq struct {
	QuestionID          string             `json:"questionId" binding:"required"`
	SelectedOptionIndex *int               `json:"selectedOptionIndex"`
	Values              map[string]float64 `json:"values"`
	ElapsedMs           int64              `json:"elapsedMs" binding:"gte=0"`
}

// ListQuestions returns the question bank without answers.
// Query params: ?category=Flight%20Computer
func ListQuestions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tx := db.Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
			Preload("Fields", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
			Order("id")
		if cat := strings.TrimSpace(c.Query("category")); cat != "" {
			tx = tx.Where("category = ?", cat)
		}
		var qs []Question
		if err := tx.Find(&qs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		out := make([]QuestionDTO, 0, len(qs))
		for _, q := range qs {
			out = append(out, toQuestionDTO(q))
		}
		c.JSON(http.StatusOK, out)
	}
}

func ListCategories(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := KnownCategories(db)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": cats})
	}
}

// LearnAnswer grades one answer and reveals the key.
func LearnAnswer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LearnAnswerReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}

		q, err := loadQuestion(db, req.QuestionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
				return
			}
			respondError(c, err)
			return
		}

		key := answerKeyFor(q)
		verdict, err := grading.Grade(key, grading.Submission{
			QuestionID:          q.ID,
			SelectedOptionIndex: req.SelectedOptionIndex,
			Values:              req.Values,
			Elapsed:             time.Duration(req.ElapsedMs) * time.Millisecond,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"isCorrect":   verdict.IsCorrect,
			"verdict":     verdict,
			"key":         key,
			"explanation": q.Explanation,
		})
	}
}

/*** Exam mode ***/

type StartExamReq struct {
	Count       int    `json:"count"`       // default EXAM_QUESTION_COUNT
	DurationSec int    `json:"durationSec"` // default EXAM_DURATION
	Seed        *int64 `json:"seed"`        // optional for reproducibility
	Category    string `json:"category"`    // optional; empty = whole bank
}

func StartExam(db *gorm.DB, cfg *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartExamReq
		// an empty body starts a default exam
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		if req.Count <= 0 {
			req.Count = cfg.ExamQuestionCount
		}
		if req.DurationSec <= 0 {
			req.DurationSec = int(cfg.ExamDuration / time.Second)
		}
		req.Category = strings.TrimSpace(req.Category)

		pool := db.Model(&Question{})
		if req.Category != "" {
			pool = pool.Where("category = ?", req.Category)
		}
		var ids []string
		if err := pool.Order("id").Pluck("id", &ids).Error; err != nil || len(ids) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no questions"})
			return
		}
		drawn := drawQuestions(ids, req.Count, req.Seed)

		var userID *uint
		if id, ok := currentUserID(c); ok {
			userID = &id
		}

		exam := Exam{
			ID:              uuid.New().String(),
			StartedAt:       time.Now(),
			DurationSeconds: req.DurationSec,
			Seed:            req.Seed,
			UserID:          userID,
		}
		if req.Category != "" {
			exam.Category = &req.Category
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&exam).Error; err != nil {
				return err
			}
			for i, qid := range drawn {
				eq := ExamQuestion{ExamID: exam.ID, QuestionID: qid, Position: i + 1}
				if err := tx.Create(&eq).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}

		// fetch questions & keep drawn order
		index, err := loadQuestions(db, drawn)
		if err != nil {
			respondError(c, err)
			return
		}
		out := make([]QuestionDTO, 0, len(drawn))
		for _, id := range drawn {
			out = append(out, toQuestionDTO(index[id]))
		}

		c.JSON(http.StatusOK, gin.H{
			"examId":      exam.ID,
			"durationSec": exam.DurationSeconds,
			"deadline":    exam.Deadline(),
			"questions":   out,
		})
	}
}

type ExamAnswerReq struct {
	SelectedOptionIndex *int               `json:"selectedOptionIndex"`
	Values              map[string]float64 `json:"values"`
	ElapsedMs           int64              `json:"elapsedMs" binding:"gte=0"`
}

func ExamAnswer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		examID := c.Param("id")
		qid := c.Query("questionId")
		if examID == "" || qid == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing examId/questionId"})
			return
		}
		exam, ok := ownExam(c, db, examID)
		if !ok {
			return
		}
		if exam.FinishedAt != nil || time.Now().After(exam.Deadline()) {
			c.JSON(http.StatusConflict, gin.H{"error": "exam finished"})
			return
		}
		var n int64
		if err := db.Model(&ExamQuestion{}).Where("exam_id = ? AND question_id = ?", examID, qid).Count(&n).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "question not in exam"})
			return
		}

		var req ExamAnswerReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		q, err := loadQuestion(db, qid)
		if err != nil {
			respondError(c, err)
			return
		}
		verdict, err := grading.Grade(answerKeyFor(q), grading.Submission{
			QuestionID:          qid,
			SelectedOptionIndex: req.SelectedOptionIndex,
			Values:              req.Values,
			Elapsed:             time.Duration(req.ElapsedMs) * time.Millisecond,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		ans := Answer{
			ExamID:         examID,
			QuestionID:     qid,
			SelectedOption: req.SelectedOptionIndex,
			ValuesRaw:      jsonValues(req.Values),
			ElapsedMs:      req.ElapsedMs,
			IsCorrect:      verdict.IsCorrect,
			AnsweredAt:     time.Now(),
		}
		if err := db.Create(&ans).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		// Do NOT reveal correctness during exam
		c.JSON(http.StatusOK, gin.H{"saved": true})
	}
}

func examResultPayload(exam Exam, res ExamResult) gin.H {
	return gin.H{
		"examId":       exam.ID,
		"category":     exam.Category,
		"startedAt":    exam.StartedAt,
		"finishedAt":   exam.FinishedAt,
		"durationSec":  exam.DurationSeconds,
		"scorePercent": res.Score.Percentage,
		"totalScore":   res.Score.TotalScore,
		"maxScore":     res.Score.MaxScore,
		"passed":       res.Score.Passed,
		"categories":   res.Categories,
		"marks":        res.Marks,
		"items":        res.Items,
	}
}

func FinishExam(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		examID := c.Param("id")
		exam, ok := ownExam(c, db, examID)
		if !ok {
			return
		}

		var res ExamResult
		var err error
		if exam.FinishedAt != nil {
			res, err = computeExamResult(db, examID)
		} else {
			// a late finish is stamped at the deadline, like the expiry job
			finishedAt := time.Now()
			if deadline := exam.Deadline(); finishedAt.After(deadline) {
				finishedAt = deadline
			}
			res, err = finishExam(db, &exam, finishedAt)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, examResultPayload(exam, res))
	}
}

// ===== Exam history: list & detail (read-only) =====

type ExamSummaryDTO struct {
	ID            string     `json:"id"`
	Category      *string    `json:"category,omitempty"`
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
	DurationSec   int        `json:"durationSec"`
	ScorePercent  *float64   `json:"scorePercent,omitempty"`
	TotalScore    *int       `json:"totalScore,omitempty"`
	MaxScore      *int       `json:"maxScore,omitempty"`
	QuestionCount int        `json:"questionCount"`
	Passed        *bool      `json:"passed,omitempty"`
}

// ListMyExams returns user exams with pagination.
// Query params: ?limit=20&offset=0  (limit default 20, max 100)
func ListMyExams(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}

		limit := 20
		offset := 0
		if l := c.Query("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil && n > 0 {
				if n > 100 {
					n = 100
				}
				limit = n
			}
		}
		if o := c.Query("offset"); o != "" {
			if n, err := strconv.Atoi(o); err == nil && n >= 0 {
				offset = n
			}
		}

		var total int64
		if err := db.Model(&Exam{}).Where("user_id = ?", uid).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}

		var exams []Exam
		if err := db.Where("user_id = ?", uid).
			Order("started_at DESC").
			Limit(limit).Offset(offset).
			Find(&exams).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}

		ids := make([]string, 0, len(exams))
		for _, e := range exams {
			ids = append(ids, e.ID)
		}
		counts := map[string]int{}
		if len(ids) > 0 {
			type Row struct {
				ExamID string
				C      int
			}
			var rows []Row
			if err := db.Table("exam_questions").
				Select("exam_id as exam_id, COUNT(*) as c").
				Where("exam_id IN ?", ids).
				Group("exam_id").
				Scan(&rows).Error; err == nil {
				for _, r := range rows {
					counts[r.ExamID] = r.C
				}
			}
		}

		items := make([]ExamSummaryDTO, 0, len(exams))
		for _, e := range exams {
			items = append(items, ExamSummaryDTO{
				ID:            e.ID,
				Category:      e.Category,
				StartedAt:     e.StartedAt,
				FinishedAt:    e.FinishedAt,
				DurationSec:   e.DurationSeconds,
				ScorePercent:  e.ScorePercent,
				TotalScore:    e.TotalScore,
				MaxScore:      e.MaxScore,
				QuestionCount: counts[e.ID],
				Passed:        passedPtr(e.ScorePercent),
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
			"items":  items,
		})
	}
}

func GetMyExam(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		examID := c.Param("id")
		exam, ok := ownExam(c, db, examID)
		if !ok {
			return
		}

		res, err := computeExamResult(db, examID)
		if err != nil {
			respondError(c, err)
			return
		}
		if exam.FinishedAt == nil {
			// still running: no key, no score
			answered := 0
			for _, it := range res.Items {
				if it.Answered {
					answered++
				}
			}
			c.JSON(http.StatusOK, gin.H{
				"examId":        exam.ID,
				"category":      exam.Category,
				"startedAt":     exam.StartedAt,
				"deadline":      exam.Deadline(),
				"durationSec":   exam.DurationSeconds,
				"questionCount": len(res.Items),
				"answered":      answered,
			})
			return
		}
		c.JSON(http.StatusOK, examResultPayload(exam, res))
	}
}
