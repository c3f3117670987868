// Package events delivers conversion progress from job controllers to the
// interface layer.
package events

// Status tags an Event.
type Status string

const (
	StatusStart    Status = "start"
	StatusProgress Status = "progress"
	StatusEnd      Status = "end"
	StatusError    Status = "error"
)

// Event is one progress notification for a job. Every job produces exactly
// one start (unless validation fails), any number of progress events, and
// exactly one end or error.
type Event struct {
	JobID   string `json:"job_id"`
	Status  Status `json:"status"`
	Percent int    `json:"percent"`
	Time    string `json:"time"`
	Speed   string `json:"speed"`
	ETA     string `json:"eta"`
	Error   string `json:"error,omitempty"`
}

// Terminal reports whether e ends its job's sequence.
func (e Event) Terminal() bool {
	return e.Status == StatusEnd || e.Status == StatusError
}
