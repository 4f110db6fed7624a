package main

import (
	"time"
)

// --- Learner ---

type User struct {
	ID        uint   `gorm:"primaryKey"`
	PublicID  string `gorm:"uniqueIndex;size:36;not null"` // UUID carried in the cookie
	CreatedAt time.Time
	UpdatedAt time.Time
}

// --- Question bank ---

const (
	KindChoice  = "choice"
	KindNumeric = "numeric"
)

type Question struct {
	ID          string        `gorm:"primaryKey;size:64" json:"id"`
	Text        string        `gorm:"not null" json:"questionText"`
	Kind        string        `gorm:"not null;size:16" json:"kind"` // "choice" | "numeric"
	Category    string        `gorm:"index;not null;size:64" json:"category"`
	MarkValue   int           `gorm:"not null;default:1" json:"markValue"` // 1..5
	Explanation string        `json:"explanation,omitempty"`
	Version     int           `gorm:"not null;default:1" json:"version"`
	Options     []Option      `json:"options"`
	Fields      []AnswerField `json:"fields"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Option struct {
	ID         uint   `gorm:"primaryKey"`
	QuestionID string `gorm:"index;not null"`
	Position   int    `gorm:"not null"` // 0-based option index
	Text       string `gorm:"not null"`
	IsCorrect  bool   `gorm:"not null"`
}

// AnswerField is one expected numeric answer of a numeric question.
type AnswerField struct {
	ID           uint    `gorm:"primaryKey"`
	QuestionID   string  `gorm:"index;not null"`
	Position     int     `gorm:"not null"`
	Field        string  `gorm:"size:32;not null"`
	Label        string  `gorm:"size:64"`
	Value        float64 `gorm:"not null"`
	ToleranceAbs float64 `gorm:"not null"`
	Unit         string  `gorm:"size:8"`
}

// --- Trial exam ---

type Exam struct {
	ID              string  `gorm:"primaryKey;size:36" json:"id"`
	UserID          *uint   `gorm:"index" json:"-"`
	Category        *string `gorm:"size:64" json:"category,omitempty"` // nil = all categories
	StartedAt       time.Time
	FinishedAt      *time.Time
	DurationSeconds int `gorm:"not null"`
	TotalScore      *int
	MaxScore        *int
	ScorePercent    *float64
	Seed            *int64
	Questions       []ExamQuestion
	Answers         []Answer
}

// Deadline is when the exam stops accepting answers.
func (e Exam) Deadline() time.Time {
	return e.StartedAt.Add(time.Duration(e.DurationSeconds) * time.Second)
}

type ExamQuestion struct {
	ID         uint   `gorm:"primaryKey"`
	ExamID     string `gorm:"index;not null"`
	QuestionID string `gorm:"not null"`
	Position   int    `gorm:"not null"` // 1..N
}

type Answer struct {
	ID             uint      `gorm:"primaryKey"`
	ExamID         string    `gorm:"index;not null"`
	QuestionID     string    `gorm:"not null"`
	SelectedOption *int      // choice questions
	ValuesRaw      string    `gorm:"not null;default:'{}'"` // JSON: {"groundSpeed":273}
	ElapsedMs      int64     `gorm:"not null;default:0"`
	IsCorrect      bool      `gorm:"not null"`
	AnsweredAt     time.Time `gorm:"not null"`
}
