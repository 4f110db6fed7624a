// Package scoring folds graded answers into per-category and per-mark
// breakdowns and an overall exam score. Every function recomputes its
// result from the full entry list.
package scoring

import (
	"sort"
	"time"

	"vmxio.com/atpl-trainer/grading"
)

// PassThresholdPercent is the regulatory pass mark of an ATPL theory exam.
const PassThresholdPercent = 70.0

// MarkValue is the point weight of a question.
type MarkValue int

const (
	MinMark MarkValue = 1
	MaxMark MarkValue = 5
)

func (m MarkValue) Valid() bool { return m >= MinMark && m <= MaxMark }

// Entry pairs an exam question with its verdict. A nil Verdict means the
// question was not attempted.
type Entry struct {
	QuestionID string
	Category   string
	Mark       MarkValue
	Verdict    *grading.Verdict
}

func (e Entry) attempted() bool { return e.Verdict != nil }

func (e Entry) correct() bool { return e.Verdict != nil && e.Verdict.IsCorrect }

type CategoryStats struct {
	Attempted int           `json:"attempted"`
	Correct   int           `json:"correct"`
	Accuracy  float64       `json:"accuracy"` // percent
	TotalTime time.Duration `json:"totalTime"`
}

type MarkStats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
	Marks   int `json:"marks"`
}

type Score struct {
	TotalScore int     `json:"totalScore"`
	MaxScore   int     `json:"maxScore"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
}

// CategoryBreakdown counts attempts and correct answers per category. Every
// category in known is present even without attempts, as are categories that
// only appear in entries. Accuracy is 0 for a category with no attempts.
func CategoryBreakdown(known []string, entries []Entry) map[string]CategoryStats {
	out := make(map[string]CategoryStats, len(known))
	for _, c := range known {
		out[c] = CategoryStats{}
	}
	for _, e := range entries {
		s := out[e.Category]
		if e.attempted() {
			s.Attempted++
			s.TotalTime += e.Verdict.Elapsed
			if e.Verdict.IsCorrect {
				s.Correct++
			}
		}
		out[e.Category] = s
	}
	for c, s := range out {
		s.Accuracy = percent(s.Correct, s.Attempted)
		out[c] = s
	}
	return out
}

// MarkBreakdown buckets questions by mark value. Marks 1..5 are always
// present; a correct answer earns its full mark value, anything else zero.
func MarkBreakdown(entries []Entry) map[MarkValue]MarkStats {
	out := make(map[MarkValue]MarkStats, int(MaxMark))
	for m := MinMark; m <= MaxMark; m++ {
		out[m] = MarkStats{}
	}
	for _, e := range entries {
		s := out[e.Mark]
		s.Total++
		if e.correct() {
			s.Correct++
			s.Marks += int(e.Mark)
		}
		out[e.Mark] = s
	}
	return out
}

// OverallScore sums earned marks over the maximum of every question in the
// exam, attempted or not. An empty exam scores 0% and fails.
func OverallScore(entries []Entry) Score {
	var s Score
	for _, e := range entries {
		s.MaxScore += int(e.Mark)
		if e.correct() {
			s.TotalScore += int(e.Mark)
		}
	}
	s.Percentage = percent(s.TotalScore, s.MaxScore)
	s.Passed = Passed(s.Percentage)
	return s
}

// Passed applies the pass threshold; the boundary itself passes.
func Passed(percentage float64) bool {
	return percentage >= PassThresholdPercent
}

// CategoryRank is one row of a weakest-first listing.
type CategoryRank struct {
	Category string `json:"category"`
	CategoryStats
}

// WeakestCategories orders a breakdown weakest first: lowest accuracy, then
// more attempts, then category name.
func WeakestCategories(breakdown map[string]CategoryStats) []CategoryRank {
	out := make([]CategoryRank, 0, len(breakdown))
	for c, s := range breakdown {
		out = append(out, CategoryRank{Category: c, CategoryStats: s})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Accuracy != b.Accuracy {
			return a.Accuracy < b.Accuracy
		}
		if a.Attempted != b.Attempted {
			return a.Attempted > b.Attempted
		}
		return a.Category < b.Category
	})
	return out
}

func percent(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(d)
}
