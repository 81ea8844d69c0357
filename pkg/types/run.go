// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus is the final status of a digest run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// StageOutcome is the result of one pipeline stage for one paper.
type StageOutcome string

const (
	OutcomeNone         StageOutcome = ""
	OutcomeOK           StageOutcome = "ok"
	OutcomeFailed       StageOutcome = "failed"
	OutcomeSkipped      StageOutcome = "skipped"
	OutcomeSkipLowScore StageOutcome = "skip-low-score"
	OutcomeInProgress   StageOutcome = "in-progress"
)

// PaperOutcome records what a run did with one new paper.
type PaperOutcome struct {
	PaperID    string       `json:"paper_id" yaml:"paper_id"`
	Scored     StageOutcome `json:"scored" yaml:"scored"`
	Summarized StageOutcome `json:"summarized,omitempty" yaml:"summarized,omitempty"`
	Err        string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunResult aggregates one orchestrator invocation. It is never persisted.
type RunResult struct {
	ID         string    `json:"id" yaml:"id"`
	Status     RunStatus `json:"status" yaml:"status"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`

	Fetched         int `json:"fetched" yaml:"fetched"`
	New             int `json:"new" yaml:"new"`
	Scored          int `json:"scored" yaml:"scored"`
	ScoreFailed     int `json:"score_failed" yaml:"score_failed"`
	Summarized      int `json:"summarized" yaml:"summarized"`
	SummarizeFailed int `json:"summarize_failed" yaml:"summarize_failed"`
	Notified        int `json:"notified" yaml:"notified"`

	Outcomes []PaperOutcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
	Err      string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// Outcome returns the recorded outcome for id.
func (r RunResult) Outcome(id string) (PaperOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.PaperID == id {
			return o, true
		}
	}
	return PaperOutcome{}, false
}

// HasFailures reports whether any paper failed a stage.
func (r RunResult) HasFailures() bool {
	return r.ScoreFailed > 0 || r.SummarizeFailed > 0
}

// RescoreResult aggregates a re-score-by-date request.
type RescoreResult struct {
	Date       string         `json:"date" yaml:"date"`
	Rescored   int            `json:"rescored" yaml:"rescored"`
	Failed     int            `json:"failed" yaml:"failed"`
	InProgress int            `json:"in_progress" yaml:"in_progress"`
	Skipped    int            `json:"skipped" yaml:"skipped"`
	Outcomes   []PaperOutcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}
