package store

import (
	"github.com/gwlsn/mediaconv/internal/jobs"
)

// Store defines the persistence interface for conversion history.
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveJob persists a job. If the job already exists (by ID), it is updated.
	SaveJob(job *jobs.Job) error

	// GetJob retrieves a job by ID. Returns nil if not found.
	GetJob(id string) (*jobs.Job, error)

	// ListJobs returns the most recent jobs first. limit <= 0 means no limit.
	ListJobs(limit int) ([]*jobs.Job, error)

	// GetJobsByStatus returns all jobs with the given status, newest first.
	GetJobsByStatus(status jobs.Status) ([]*jobs.Job, error)

	// DeleteJob removes a job by ID. Returns nil if the job doesn't exist.
	DeleteJob(id string) error

	// MarkInterrupted fails every job still recorded as running. Used on
	// startup after a crash. Returns the number of jobs updated.
	MarkInterrupted(reason string) (int, error)

	// Stats returns history statistics.
	Stats() (Stats, error)

	// Close closes the store and releases resources.
	Close() error
}

// Stats holds history statistics.
type Stats struct {
	Running     int   `json:"running"`
	Complete    int   `json:"complete"`
	Failed      int   `json:"failed"`
	Cancelled   int   `json:"cancelled"`
	Total       int   `json:"total"`
	OutputBytes int64 `json:"output_bytes"` // Sum of completed output sizes
}

var _ Store = (*SQLiteStore)(nil)
var _ jobs.Recorder = (*SQLiteStore)(nil)
