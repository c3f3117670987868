package jobs

import (
	"time"

	"github.com/gwlsn/mediaconv/internal/formats"
)

// Status represents the current state of a job
type Status string

const (
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Request is one conversion request. JSON names follow the front-end's
// field names.
type Request struct {
	InputPath       string       `json:"inputPath"`
	OutputPath      string       `json:"outputPath"`
	Format          string       `json:"format"`
	Kind            formats.Kind `json:"-"` // set by the entry point
	VideoCodec      string       `json:"videoCodec,omitempty"`
	AudioCodec      string       `json:"audioCodec,omitempty"`
	FrameRate       float64      `json:"frameRate,omitempty"`
	CustomFrameRate bool         `json:"customFrameRate,omitempty"`
}

// Result is the synchronous outcome of Convert. It always agrees with the
// job's terminal event.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	JobID   string `json:"job_id"`
}

// Job is the history record of one conversion
type Job struct {
	ID          string       `json:"id"`
	Kind        formats.Kind `json:"kind"`
	InputPath   string       `json:"input_path"`
	OutputPath  string       `json:"output_path"`
	Format      string       `json:"format"`
	Container   string       `json:"container,omitempty"`
	AudioCodec  string       `json:"audio_codec,omitempty"`
	VideoCodec  string       `json:"video_codec,omitempty"`
	Status      Status       `json:"status"`
	Error       string       `json:"error,omitempty"`
	OutputSize  int64        `json:"output_size,omitempty"` // Populated after completion
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt time.Time    `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == StatusComplete || j.Status == StatusFailed || j.Status == StatusCancelled
}

// Copy returns a copy of the job
func (j *Job) Copy() *Job {
	c := *j
	return &c
}

// Recorder persists job history. Implementations must be safe for
// concurrent use.
type Recorder interface {
	SaveJob(job *Job) error
}
