package main

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"vmxio.com/atpl-trainer/grading"
	"vmxio.com/atpl-trainer/navcomputer"
)

// SolveWindTriangle runs the flight computer on one input.
// POST /api/v1/navcomputer/solve
func SolveWindTriangle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in navcomputer.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		res, err := navcomputer.Solve(in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"input": in.Normalized(), "result": res})
	}
}

// practiceKey derives the answer key of a practice row from the solver, so the
// table can never disagree with the flight computer.
func practiceKey(in navcomputer.Input, fields []string, tol float64) (grading.AnswerKey, navcomputer.Result, error) {
	res, err := navcomputer.Solve(in)
	if err != nil {
		return grading.AnswerKey{}, navcomputer.Result{}, err
	}
	if len(fields) == 0 {
		fields = navcomputer.FieldNames
	}
	key := grading.AnswerKey{QuestionID: "practice"}
	for _, f := range fields {
		v, ok := res.Field(f)
		if !ok {
			return grading.AnswerKey{}, navcomputer.Result{}, errors.Errorf("unknown field %q", f)
		}
		key.Expected = append(key.Expected, grading.ExpectedAnswer{
			Field:        f,
			Value:        v,
			ToleranceAbs: tol,
			Unit:         navcomputer.Unit(f),
		})
	}
	return key, res, nil
}

type PracticeRow struct {
	Row    int                 `json:"row"`
	Input  navcomputer.Input   `json:"input"`
	Result *navcomputer.Result `json:"result,omitempty"`
}

// generatePracticeRows draws whiz-wheel style problems: TAS in 5 kt steps,
// track in 5° steps, wind in 10°/5 kt steps.
func generatePracticeRows(count int, seed int64) []PracticeRow {
	r := rand.New(rand.NewSource(seed))
	rows := make([]PracticeRow, 0, count)
	for i := 0; i < count; i++ {
		rows = append(rows, PracticeRow{
			Row: i + 1,
			Input: navcomputer.Input{
				TrueAirspeedKt:        float64(100 + 5*r.Intn(81)), // 100..500
				FlightPlannedTrackDeg: float64(5 * r.Intn(72)),
				WindDirectionDeg:      float64(10 * r.Intn(36)),
				WindSpeedKt:           float64(5 * r.Intn(25)), // 0..120
			},
		})
	}
	return rows
}

// PracticeWind returns a practice table.
// GET /api/v1/practice/wind?count=10&seed=42&reveal=true
func PracticeWind() gin.HandlerFunc {
	return func(c *gin.Context) {
		count := 10
		if s := c.Query("count"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				if n > 50 {
					n = 50
				}
				count = n
			}
		}
		seed := time.Now().UnixNano()
		if s := c.Query("seed"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "bad seed"})
				return
			}
			seed = n
		}
		reveal := c.Query("reveal") == "true"

		rows := generatePracticeRows(count, seed)
		if reveal {
			for i := range rows {
				res, err := navcomputer.Solve(rows[i].Input)
				if err != nil {
					respondError(c, err)
					return
				}
				rows[i].Result = &res
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"seed":   seed,
			"fields": navcomputer.FieldNames,
			"rows":   rows,
		})
	}
}

type PracticeCheckReq struct {
	Input     navcomputer.Input  `json:"input"`
	Fields    []string           `json:"fields"` // default: every result field
	Values    map[string]float64 `json:"values"`
	ElapsedMs int64              `json:"elapsedMs" binding:"gte=0"`
}

// CheckPracticeWind grades one practice row with the configured tolerance.
// POST /api/v1/practice/wind/check
func CheckPracticeWind(cfg *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PracticeCheckReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		key, res, err := practiceKey(req.Input, req.Fields, cfg.PracticeTolerance)
		if err != nil {
			var invalid *navcomputer.InvalidInputError
			if !errors.As(err, &invalid) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			respondError(c, err)
			return
		}
		verdict, err := grading.Grade(key, grading.Submission{
			QuestionID: key.QuestionID,
			Values:     req.Values,
			Elapsed:    time.Duration(req.ElapsedMs) * time.Millisecond,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"isCorrect": verdict.IsCorrect,
			"verdict":   verdict,
			"result":    res,
			"tolerance": cfg.PracticeTolerance,
		})
	}
}
