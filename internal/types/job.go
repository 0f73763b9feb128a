package types

import "time"

// JobStatus represents the acquisition state of a job
type JobStatus string

const (
	JobAcquiring JobStatus = "acquiring"
	JobRunning   JobStatus = "running"
	JobFailed    JobStatus = "failed"
	JobTimedOut  JobStatus = "timed_out"
	JobAborted   JobStatus = "aborted"
	JobFinished  JobStatus = "finished"
)

// Requirement is one labelled resource a job needs, exported under VariablePrefix
type Requirement struct {
	Label          string `json:"label"`
	VariablePrefix string `json:"variablePrefix"`
}

// Grant is a requirement that has been satisfied by a node
type Grant struct {
	Label          string `json:"label"`
	VariablePrefix string `json:"variablePrefix"`
	Node           Node   `json:"node"`
}

// Job is a build job holding or waiting for resources
type Job struct {
	JobID        string            `json:"jobId"`
	Requirements []Requirement     `json:"requirements"`
	Timeout      time.Duration     `json:"timeout"`
	Status       JobStatus         `json:"status"`
	Description  string            `json:"description,omitempty"`
	Grants       []Grant           `json:"grants,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	StartedAt    *time.Time        `json:"startedAt,omitempty"`
	FinishedAt   *time.Time        `json:"finishedAt,omitempty"`
}

// IsTerminal reports whether the job no longer holds or waits for resources
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobFailed, JobTimedOut, JobAborted, JobFinished:
		return true
	}
	return false
}
