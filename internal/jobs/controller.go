package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/gwlsn/mediaconv/internal/events"
	"github.com/gwlsn/mediaconv/internal/ffmpeg"
	"github.com/gwlsn/mediaconv/internal/formats"
	"github.com/gwlsn/mediaconv/internal/logger"
	"github.com/gwlsn/mediaconv/internal/progress"
)

// Engine runs one transcode. onTelemetry may be called from another
// goroutine until Run returns.
type Engine interface {
	Run(ctx context.Context, inv ffmpeg.Invocation, onTelemetry func(progress.Snapshot)) error
}

// Controller validates conversion requests, drives the engine and emits
// each job's event sequence on the shared channel.
type Controller struct {
	engine   Engine
	ch       *events.Channel
	labels   progress.Labels
	interval time.Duration
	timeout  time.Duration
	recorder Recorder
	now      func() time.Time

	mu      sync.Mutex
	running map[string]*jobState
	closed  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLabels sets the strings used in events and error messages.
func WithLabels(l progress.Labels) Option {
	return func(c *Controller) { c.labels = l }
}

// WithProgressInterval sets the throttle window between progress events.
func WithProgressInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithTimeout bounds every job. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithRecorder stores job history. Recorder failures are logged only.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller that emits on ch.
func NewController(engine Engine, ch *events.Channel, opts ...Option) *Controller {
	c := &Controller{
		engine:   engine,
		ch:       ch,
		labels:   progress.Chinese,
		interval: progress.DefaultInterval,
		now:      time.Now,
		running:  make(map[string]*jobState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// jobState is the per-job context: identity, timing and the terminal flag.
// It lives from validation until Convert returns.
type jobState struct {
	id      string
	start   time.Time
	timeout time.Duration
	gate    *progress.Gate
	cancel  context.CancelCauseFunc

	mu         sync.Mutex
	terminated bool
}

// Convert runs one conversion to completion and returns its outcome. Events
// for the job are sent on the controller's channel: start, zero or more
// progress, then exactly one end or error. Requests that fail validation
// only produce the error event.
func (c *Controller) Convert(ctx context.Context, req Request) Result {
	id := uuid.NewString()
	job := &Job{
		ID:         id,
		Kind:       req.Kind,
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Format:     req.Format,
		Status:     StatusRunning,
		CreatedAt:  c.now(),
	}

	if err := c.validate(req); err != nil {
		logger.Warn("Conversion rejected", "job_id", id, "error", err)
		c.ch.Send(c.errorEvent(id, err.Error()))
		c.finish(job, StatusFailed, err.Error())
		return Result{Success: false, Error: err.Error(), JobID: id}
	}

	target := formats.ResolveFor(req.Kind, req.Format, formats.Overrides{
		VideoCodec: req.VideoCodec,
		AudioCodec: req.AudioCodec,
	})
	job.Container = target.Container
	job.AudioCodec = target.AudioCodec
	job.VideoCodec = target.VideoCodec

	inv := ffmpeg.Invocation{
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Target:     target,
	}
	if req.Kind == formats.KindVideo && req.CustomFrameRate && req.FrameRate > 0 {
		inv.FrameRate = req.FrameRate
	}

	timeout := c.Timeout()
	jobCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		jobCtx, cancelTimeout = context.WithTimeoutCause(jobCtx, timeout, ErrTimeout)
		defer cancelTimeout()
	}

	state := &jobState{
		id:      id,
		start:   c.now(),
		timeout: timeout,
		gate:    progress.NewGate(c.interval),
		cancel:  cancel,
	}
	if !c.register(state) {
		msg := c.labels.ShuttingDown
		logger.Warn("Conversion rejected", "job_id", id, "error", ErrClosed)
		c.ch.Send(c.errorEvent(id, msg))
		c.finish(job, StatusCancelled, msg)
		return Result{Success: false, Error: msg, JobID: id}
	}
	defer c.unregister(id)

	logger.Info("Job started",
		"job_id", id,
		"input", req.InputPath,
		"output", req.OutputPath,
		"format", req.Format,
		"container", target.Container,
		"audio_codec", target.AudioCodec,
		"video_codec", target.VideoCodec)
	c.record(job)
	c.emit(state, c.startEvent(id))

	err := c.engine.Run(jobCtx, inv, func(s progress.Snapshot) {
		c.handleTelemetry(state, s)
	})

	if err != nil {
		msg, status := c.failure(jobCtx, state, err)
		logger.Error("Job failed", "job_id", id, "error", msg)
		c.emit(state, c.errorEvent(id, msg))
		c.finish(job, status, msg)
		return Result{Success: false, Error: msg, JobID: id}
	}

	if info, statErr := os.Stat(req.OutputPath); statErr == nil {
		job.OutputSize = info.Size()
	}
	logger.Info("Job complete",
		"job_id", id,
		"elapsed", c.now().Sub(state.start).Round(time.Millisecond),
		"output_size", humanize.Bytes(uint64(job.OutputSize)))
	c.emit(state, c.endEvent(id))
	c.finish(job, StatusComplete, "")
	return Result{Success: true, JobID: id}
}

// Cancel stops a running job. Its sequence ends with an error event.
func (c *Controller) Cancel(id string) error {
	c.mu.Lock()
	state, ok := c.running[id]
	c.mu.Unlock()
	if !ok {
		return jobNotFoundError(id)
	}
	logger.Info("Cancelling job", "job_id", id)
	state.cancel(ErrCancelled)
	return nil
}

// Close cancels every running job and rejects later requests. It returns
// the number of jobs cancelled.
func (c *Controller) Close() int {
	c.mu.Lock()
	c.closed = true
	states := make([]*jobState, 0, len(c.running))
	for _, state := range c.running {
		states = append(states, state)
	}
	c.mu.Unlock()

	for _, state := range states {
		logger.Info("Cancelling job", "job_id", state.id)
		state.cancel(ErrCancelled)
	}
	return len(states)
}

// Timeout returns the deadline applied to new jobs.
func (c *Controller) Timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

// SetTimeout changes the deadline for jobs started afterwards. Running jobs
// keep theirs.
func (c *Controller) SetTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Running returns the IDs of in-flight jobs, sorted.
func (c *Controller) Running() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.running))
	for id := range c.running {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// validate checks the request against the filesystem. It creates the
// output directory if it is missing.
func (c *Controller) validate(req Request) error {
	if req.InputPath == "" || req.OutputPath == "" {
		return &ValidationError{Msg: c.labels.EmptyPaths}
	}
	if _, err := os.Stat(req.InputPath); err != nil {
		return &ValidationError{
			Path: req.InputPath,
			Msg:  fmt.Sprintf(c.labels.InputMissing, req.InputPath),
		}
	}
	dir := filepath.Dir(req.OutputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &ValidationError{
			Path: dir,
			Msg:  fmt.Sprintf(c.labels.OutputDir, dir),
		}
	}
	return nil
}

// handleTelemetry forwards a snapshot as a progress event if the job is
// still open and the throttle gate admits it.
func (c *Controller) handleTelemetry(state *jobState, s progress.Snapshot) {
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.terminated {
		return
	}
	now := c.now()
	if !state.gate.Admit(now) {
		return
	}
	rec := progress.Normalize(s, state.start, now, c.labels)
	c.ch.Send(events.Event{
		JobID:   state.id,
		Status:  events.StatusProgress,
		Percent: rec.Percent,
		Time:    rec.Time,
		Speed:   rec.Speed,
		ETA:     rec.ETA,
	})
}

// emit sends e unless the job already ended. A terminal e closes the job.
func (c *Controller) emit(state *jobState, e events.Event) {
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.terminated {
		return
	}
	if e.Terminal() {
		state.terminated = true
	}
	c.ch.Send(e)
}

// failure maps an engine error to the user-facing message and final status.
func (c *Controller) failure(ctx context.Context, state *jobState, err error) (string, Status) {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, ErrTimeout):
		return fmt.Sprintf(c.labels.TimedOut, state.timeout), StatusFailed
	case errors.Is(cause, ErrCancelled), errors.Is(cause, context.Canceled):
		return c.labels.Cancelled, StatusCancelled
	}
	return err.Error(), StatusFailed
}

func (c *Controller) startEvent(id string) events.Event {
	return events.Event{
		JobID:  id,
		Status: events.StatusStart,
		Time:   c.labels.ZeroTime,
		Speed:  c.labels.ZeroSpeed,
		ETA:    c.labels.Computing,
	}
}

func (c *Controller) endEvent(id string) events.Event {
	return events.Event{
		JobID:   id,
		Status:  events.StatusEnd,
		Percent: 100,
		Time:    c.labels.Done,
		Speed:   c.labels.Done,
		ETA:     c.labels.Done,
	}
}

func (c *Controller) errorEvent(id, msg string) events.Event {
	return events.Event{
		JobID:  id,
		Status: events.StatusError,
		Time:   c.labels.Failed,
		Speed:  c.labels.Failed,
		ETA:    c.labels.Failed,
		Error:  msg,
	}
}

// register reports false once the controller is closed.
func (c *Controller) register(state *jobState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.running[state.id] = state
	return true
}

func (c *Controller) unregister(id string) {
	c.mu.Lock()
	delete(c.running, id)
	c.mu.Unlock()
}

func (c *Controller) finish(job *Job, status Status, msg string) {
	job.Status = status
	job.Error = msg
	job.CompletedAt = c.now()
	c.record(job)
}

func (c *Controller) record(job *Job) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.SaveJob(job.Copy()); err != nil {
		logger.Warn("Failed to record job", "job_id", job.ID, "error", err)
	}
}
