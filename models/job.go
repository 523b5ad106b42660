package models

import (
	"fmt"
	"time"
)

// ScrapeJob statuses. Running is the initial state; Completed and Failed are
// terminal and may be entered exactly once.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// ScrapeJob tracks one batch persistence run for monitoring and debugging.
type ScrapeJob struct {
	ID           int64
	JobType      string // e.g. "accommodations", "flights"
	Source       string
	Status       string
	ItemsScraped int
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// NewScrapeJob starts a job in the running state.
func NewScrapeJob(jobType, source string) *ScrapeJob {
	return &ScrapeJob{
		JobType:   jobType,
		Source:    source,
		Status:    JobRunning,
		StartedAt: time.Now(),
	}
}

// Complete marks the job as successfully finished. It is an error to
// complete a job that already reached a terminal state.
func (j *ScrapeJob) Complete(itemsScraped int) error {
	if j.Status != JobRunning {
		return fmt.Errorf("scrape job %q already terminal (%s)", j.JobType, j.Status)
	}
	now := time.Now()
	j.Status = JobCompleted
	j.ItemsScraped = itemsScraped
	j.CompletedAt = &now
	return nil
}

// Fail marks the job as failed with the given message. It is an error to
// fail a job that already reached a terminal state.
func (j *ScrapeJob) Fail(message string) error {
	if j.Status != JobRunning {
		return fmt.Errorf("scrape job %q already terminal (%s)", j.JobType, j.Status)
	}
	now := time.Now()
	j.Status = JobFailed
	j.ErrorMessage = message
	j.CompletedAt = &now
	return nil
}

// Duration returns how long the job ran, or zero if it is still running.
func (j *ScrapeJob) Duration() time.Duration {
	if j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}
