package main

import (
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// StartExpiryScheduler finalizes exams whose time ran out on the given cron
// schedule. The caller stops the returned cron on shutdown.
func StartExpiryScheduler(db *gorm.DB, schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		n, err := expireExams(db, time.Now())
		if err != nil {
			log.Printf("[exam-expiry] %v", err)
			return
		}
		if n > 0 {
			log.Printf("[exam-expiry] finalized %d exam(s)", n)
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "schedule %q", schedule)
	}
	c.Start()
	log.Printf("[exam-expiry] scheduler started (%s)", schedule)
	return c, nil
}

// expireExams finishes every open exam past its deadline and returns how many
// it finished. Empty exams are closed without a score.
func expireExams(db *gorm.DB, now time.Time) (int, error) {
	var open []Exam
	if err := db.Where("finished_at IS NULL").Find(&open).Error; err != nil {
		return 0, errors.Wrap(err, "load open exams")
	}
	n := 0
	for i := range open {
		exam := &open[i]
		if now.Before(exam.Deadline()) {
			continue
		}
		if _, err := finishExam(db, exam, exam.Deadline()); err != nil {
			if !errors.Is(err, errExamEmpty) {
				log.Printf("[exam-expiry] exam %s: %v", exam.ID, err)
				continue
			}
			deadline := exam.Deadline()
			exam.FinishedAt = &deadline
			if err := db.Save(exam).Error; err != nil {
				log.Printf("[exam-expiry] exam %s: %v", exam.ID, err)
				continue
			}
		}
		n++
	}
	return n, nil
}
