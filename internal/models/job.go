package models

import (
	"time"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

func (s JobStatus) String() string {
	return string(s)
}

type PipelineKind string

const (
	MathPipeline        PipelineKind = "math"
	HandwritingPipeline PipelineKind = "handwriting"
)

func (p PipelineKind) String() string {
	return string(p)
}

type ExtractionJob struct {
	SchemaVersion int          `json:"schema_version"`
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Student       string       `json:"student"`
	Subject       string       `json:"subject"`
	Pipeline      PipelineKind `json:"pipeline"`
	Status        JobStatus    `json:"status"`
	Progress      int          `json:"progress"`
	PagesTotal    int          `json:"pages_total"`
	PagesDone     int          `json:"pages_done"`
	FailedPages   []int        `json:"failed_pages,omitempty"`
	Error         string       `json:"error,omitempty"`
	UploadPath    string       `json:"upload_path"`
	UploadSHA256  string       `json:"upload_sha256"`
	Attempts      int          `json:"attempts"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
}

func (j *ExtractionJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Fragment is one typed piece of a recognized math page.
type Fragment struct {
	Type  string `json:"type"` // text, formula
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"` // base64 PNG crop for formula fragments
}

const (
	FragmentText    = "text"
	FragmentFormula = "formula"
)
