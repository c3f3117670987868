package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gwlsn/mediaconv/internal/events"
	"github.com/gwlsn/mediaconv/internal/ffmpeg"
	"github.com/gwlsn/mediaconv/internal/formats"
	"github.com/gwlsn/mediaconv/internal/progress"
)

// fakeEngine runs a scripted body instead of ffmpeg.
type fakeEngine struct {
	mu    sync.Mutex
	calls []ffmpeg.Invocation
	run   func(ctx context.Context, onTelemetry func(progress.Snapshot)) error
}

func (f *fakeEngine) Run(ctx context.Context, inv ffmpeg.Invocation, onTelemetry func(progress.Snapshot)) error {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()
	if f.run == nil {
		return nil
	}
	return f.run(ctx, onTelemetry)
}

func (f *fakeEngine) invocations() []ffmpeg.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ffmpeg.Invocation(nil), f.calls...)
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) OnEvent(e events.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) all() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Event(nil), l.events...)
}

func (l *eventLog) statuses() []events.Status {
	var out []events.Status
	for _, e := range l.all() {
		out = append(out, e.Status)
	}
	return out
}

type memRecorder struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func (r *memRecorder) SaveJob(job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs == nil {
		r.jobs = make(map[string]*Job)
	}
	r.jobs[job.ID] = job
	return nil
}

func newTestController(t *testing.T, engine Engine, opts ...Option) (*Controller, *eventLog) {
	t.Helper()
	ch := events.NewChannel()
	log := &eventLog{}
	ch.Attach(log)
	return NewController(engine, ch, opts...), log
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func pct(v float64) *float64 { return &v }

func checkSequence(t *testing.T, evs []events.Event, wantTerminal events.Status) {
	t.Helper()
	if len(evs) < 2 {
		t.Fatalf("got %d events, want at least start and terminal", len(evs))
	}
	if evs[0].Status != events.StatusStart {
		t.Errorf("first event = %s, want start", evs[0].Status)
	}
	last := evs[len(evs)-1]
	if last.Status != wantTerminal {
		t.Errorf("last event = %s, want %s", last.Status, wantTerminal)
	}
	for i, e := range evs[1 : len(evs)-1] {
		if e.Status != events.StatusProgress {
			t.Errorf("event %d = %s, want progress", i+1, e.Status)
		}
	}
	id := evs[0].JobID
	for _, e := range evs {
		if e.JobID != id {
			t.Errorf("event %s carries job %q, want %q", e.Status, e.JobID, id)
		}
	}
}

func TestConvertValidation(t *testing.T) {
	existing := writeInput(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		req     Request
		wantMsg string
	}{
		{
			name:    "empty input",
			req:     Request{OutputPath: "out.ogg", Format: "ogg"},
			wantMsg: "输入路径或输出路径为空",
		},
		{
			name:    "empty output",
			req:     Request{InputPath: existing, Format: "ogg"},
			wantMsg: "输入路径或输出路径为空",
		},
		{
			name:    "missing input",
			req:     Request{InputPath: "/nonexistent/in.wav", OutputPath: "out.ogg", Format: "ogg"},
			wantMsg: "输入文件不存在: /nonexistent/in.wav",
		},
		{
			name: "uncreatable output dir",
			req: Request{
				InputPath:  existing,
				OutputPath: filepath.Join(blocker, "sub", "out.ogg"),
				Format:     "ogg",
			},
			wantMsg: "无法创建输出目录: " + filepath.Join(blocker, "sub"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{}
			c, log := newTestController(t, engine)

			res := c.Convert(context.Background(), tt.req)
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", res.Error, tt.wantMsg)
			}
			if len(engine.invocations()) != 0 {
				t.Error("engine must not run for invalid requests")
			}

			evs := log.all()
			if len(evs) != 1 || evs[0].Status != events.StatusError {
				t.Fatalf("events = %v, want a single error", log.statuses())
			}
			if evs[0].Error != tt.wantMsg || evs[0].JobID != res.JobID {
				t.Errorf("error event = %+v", evs[0])
			}
		})
	}
}

func TestConvertCreatesOutputDirectory(t *testing.T) {
	c, _ := newTestController(t, &fakeEngine{})
	out := filepath.Join(t.TempDir(), "a", "b", "out.ogg")

	res := c.Convert(context.Background(), Request{InputPath: writeInput(t), OutputPath: out, Format: "ogg"})
	if !res.Success {
		t.Fatalf("Convert failed: %s", res.Error)
	}
	if info, err := os.Stat(filepath.Dir(out)); err != nil || !info.IsDir() {
		t.Errorf("output directory not created: %v", err)
	}
}

func TestValidationErrorIs(t *testing.T) {
	err := error(&ValidationError{Msg: "x"})
	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationError should match ErrValidation")
	}
}

func TestConvertSuccessSequence(t *testing.T) {
	engine := &fakeEngine{run: func(ctx context.Context, on func(progress.Snapshot)) error {
		for _, p := range []float64{10, 40, 80} {
			on(progress.Snapshot{Percent: pct(p), Timemark: "00:00:01.00"})
		}
		return nil
	}}

	// Each clock read advances a full second, so the gate admits everything.
	var mu sync.Mutex
	clock := time.Unix(1_700_000_000, 0)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	recorder := &memRecorder{}
	c, log := newTestController(t, engine, WithClock(now), WithRecorder(recorder))
	res := c.Convert(context.Background(), Request{
		InputPath:  writeInput(t),
		OutputPath: filepath.Join(t.TempDir(), "out.m4a"),
		Format:     "m4a",
		Kind:       formats.KindAudio,
	})
	if !res.Success || res.Error != "" || res.JobID == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	evs := log.all()
	checkSequence(t, evs, events.StatusEnd)
	if len(evs) != 5 {
		t.Errorf("got %d events, want start + 3 progress + end", len(evs))
	}

	start := evs[0]
	if start.Percent != 0 || start.Time != "00:00:00" || start.Speed != "0 Mbps" || start.ETA != "计算中..." {
		t.Errorf("start event = %+v", start)
	}
	end := evs[len(evs)-1]
	if end.Percent != 100 || end.Time != "完成" || end.Speed != "完成" || end.ETA != "完成" {
		t.Errorf("end event = %+v", end)
	}
	if end.JobID != res.JobID {
		t.Errorf("end event job %q, result job %q", end.JobID, res.JobID)
	}
	for i := 2; i < len(evs)-1; i++ {
		if evs[i].Percent < evs[i-1].Percent {
			t.Errorf("percent decreased at event %d", i)
		}
	}

	inv := engine.invocations()[0]
	if inv.Target.Container != "mp4" || inv.Target.AudioCodec != "aac" {
		t.Errorf("invocation target = %+v", inv.Target)
	}

	job := recorder.jobs[res.JobID]
	if job == nil || job.Status != StatusComplete || job.Container != "mp4" {
		t.Errorf("recorded job = %+v", job)
	}
}

func TestConvertThrottlesTelemetry(t *testing.T) {
	engine := &fakeEngine{run: func(ctx context.Context, on func(progress.Snapshot)) error {
		for i := 1; i <= 50; i++ {
			on(progress.Snapshot{Percent: pct(float64(i))})
		}
		return nil
	}}

	// A frozen clock: only the first snapshot can pass the gate.
	frozen := time.Unix(1_700_000_000, 0)
	c, log := newTestController(t, engine, WithClock(func() time.Time { return frozen }))
	res := c.Convert(context.Background(), Request{
		InputPath:  writeInput(t),
		OutputPath: filepath.Join(t.TempDir(), "out.ogg"),
		Format:     "ogg",
	})
	if !res.Success {
		t.Fatalf("Convert failed: %s", res.Error)
	}

	evs := log.all()
	checkSequence(t, evs, events.StatusEnd)
	if len(evs) != 3 {
		t.Fatalf("got %d events, want start + 1 progress + end", len(evs))
	}
	if evs[1].Percent != 1 {
		t.Errorf("admitted progress percent = %d, want the first snapshot's 1", evs[1].Percent)
	}
}

func TestConvertEngineFailure(t *testing.T) {
	engine := &fakeEngine{run: func(ctx context.Context, on func(progress.Snapshot)) error {
		on(progress.Snapshot{Percent: pct(5)})
		return &ffmpeg.TranscodeError{Err: errors.New("ffmpeg exited with code 1: Invalid data found"), ExitCode: 1}
	}}
	recorder := &memRecorder{}
	c, log := newTestController(t, engine, WithRecorder(recorder))

	res := c.Convert(context.Background(), Request{
		InputPath:  writeInput(t),
		OutputPath: filepath.Join(t.TempDir(), "out.ogg"),
		Format:     "ogg",
	})
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "Invalid data found") {
		t.Errorf("error = %q, want engine message", res.Error)
	}

	evs := log.all()
	checkSequence(t, evs, events.StatusError)
	last := evs[len(evs)-1]
	if last.Error != res.Error || last.Time != "错误" || last.Percent != 0 {
		t.Errorf("error event = %+v", last)
	}
	if job := recorder.jobs[res.JobID]; job == nil || job.Status != StatusFailed {
		t.Errorf("recorded job = %+v", job)
	}
}

func TestConvertDropsLateTelemetry(t *testing.T) {
	var late func(progress.Snapshot)
	engine := &fakeEngine{run: func(ctx context.Context, on func(progress.Snapshot)) error {
		late = on
		return nil
	}}
	c, log := newTestController(t, engine, WithProgressInterval(0))

	res := c.Convert(context.Background(), Request{
		InputPath:  writeInput(t),
		OutputPath: filepath.Join(t.TempDir(), "out.ogg"),
		Format:     "ogg",
	})
	if !res.Success {
		t.Fatalf("Convert failed: %s", res.Error)
	}

	late(progress.Snapshot{Percent: pct(99)})

	evs := log.all()
	if len(evs) != 2 {
		t.Fatalf("events = %v, late telemetry must be dropped", log.statuses())
	}
	checkSequence(t, evs, events.StatusEnd)
}

// blockingEngine waits for cancellation like a stuck ffmpeg would.
func blockingEngine(started chan<- struct{}) *fakeEngine {
	return &fakeEngine{run: func(ctx context.Context, on func(progress.Snapshot)) error {
		close(started)
		<-ctx.Done()
		return &ffmpeg.TranscodeError{Err: ctx.Err(), ExitCode: -1}
	}}
}

func TestConvertTimeout(t *testing.T) {
	started := make(chan struct{})
	c, log := newTestController(t, blockingEngine(started), WithTimeout(50*time.Millisecond))

	res := c.Convert(context.Background(), Request{
		InputPath:  writeInput(t),
		OutputPath: filepath.Join(t.TempDir(), "out.ogg"),
		Format:     "ogg",
	})
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if res.Error != "转换超时 (50ms)" {
		t.Errorf("error = %q", res.Error)
	}
	checkSequence(t, log.all(), events.StatusError)
}

func TestCancel(t *testing.T) {
	started := make(chan struct{})
	recorder := &memRecorder{}
	c, log := newTestController(t, blockingEngine(started), WithRecorder(recorder))

	done := make(chan Result, 1)
	go func() {
		done <- c.Convert(context.Background(), Request{
			InputPath:  writeInput(t),
			OutputPath: filepath.Join(t.TempDir(), "out.ogg"),
			Format:     "ogg",
		})
	}()

	<-started
	running := c.Running()
	if len(running) != 1 {
		t.Fatalf("Running() = %v, want one job", running)
	}
	if err := c.Cancel(running[0]); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	select {
	case res := <-done:
		if res.Success || res.Error != "转换已取消" {
			t.Errorf("result = %+v", res)
		}
		if job := recorder.jobs[res.JobID]; job == nil || job.Status != StatusCancelled {
			t.Errorf("recorded job = %+v", job)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Convert did not return after Cancel")
	}

	checkSequence(t, log.all(), events.StatusError)
	if len(c.Running()) != 0 {
		t.Error("job still listed as running")
	}
	if err := c.Cancel("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Cancel(missing) = %v, want ErrJobNotFound", err)
	}
}

func TestConvertVideoOverridesAndFrameRate(t *testing.T) {
	engine := &fakeEngine{}
	c, _ := newTestController(t, engine)
	input := writeInput(t)
	dir := t.TempDir()

	c.Convert(context.Background(), Request{
		InputPath:  input,
		OutputPath: filepath.Join(dir, "a.mp4"),
		Format:     "mp4",
		Kind:       formats.KindVideo,
		FrameRate:  60,
	})
	c.Convert(context.Background(), Request{
		InputPath:       input,
		OutputPath:      filepath.Join(dir, "b.webm"),
		Format:          "webm",
		Kind:            formats.KindVideo,
		VideoCodec:      "libvpx-vp9",
		FrameRate:       30,
		CustomFrameRate: true,
	})

	calls := engine.invocations()
	if len(calls) != 2 {
		t.Fatalf("got %d invocations", len(calls))
	}
	if calls[0].FrameRate != 0 || calls[0].Target != (formats.Target{Container: "mp4"}) {
		t.Errorf("first invocation = %+v", calls[0])
	}
	if calls[1].FrameRate != 30 || calls[1].Target.VideoCodec != "libvpx-vp9" || calls[1].Target.AudioCodec != "" {
		t.Errorf("second invocation = %+v", calls[1])
	}
}

func TestConcurrentJobsKeepSequences(t *testing.T) {
	engine := &fakeEngine{run: func(ctx context.Context, on func(progress.Snapshot)) error {
		for i := 0; i < 20; i++ {
			on(progress.Snapshot{Percent: pct(float64(i * 5))})
		}
		return nil
	}}
	c, log := newTestController(t, engine, WithProgressInterval(0))
	input := writeInput(t)
	dir := t.TempDir()

	const n = 6
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Convert(context.Background(), Request{
				InputPath:  input,
				OutputPath: filepath.Join(dir, "out", string(rune('a'+i))+".ogg"),
				Format:     "ogg",
			})
		}(i)
	}
	wg.Wait()

	perJob := map[string][]events.Event{}
	for _, e := range log.all() {
		perJob[e.JobID] = append(perJob[e.JobID], e)
	}
	if len(perJob) != n {
		t.Fatalf("saw %d jobs, want %d", len(perJob), n)
	}
	for _, evs := range perJob {
		checkSequence(t, evs, events.StatusEnd)
	}
}

func TestSetTimeout(t *testing.T) {
	c := NewController(&fakeEngine{}, events.NewChannel(), WithTimeout(time.Minute))
	if c.Timeout() != time.Minute {
		t.Fatalf("Timeout() = %v", c.Timeout())
	}
	c.SetTimeout(-time.Second)
	if c.Timeout() != 0 {
		t.Errorf("negative timeout should disable the deadline, got %v", c.Timeout())
	}
}

func TestCloseCancelsRunningAndRejectsNew(t *testing.T) {
	started := make(chan struct{})
	recorder := &memRecorder{}
	engine := blockingEngine(started)
	c, log := newTestController(t, engine, WithRecorder(recorder))

	done := make(chan Result, 1)
	go func() {
		done <- c.Convert(context.Background(), Request{
			InputPath:  writeInput(t),
			OutputPath: filepath.Join(t.TempDir(), "out.ogg"),
			Format:     "ogg",
		})
	}()
	<-started

	if n := c.Close(); n != 1 {
		t.Errorf("Close() cancelled %d jobs, want 1", n)
	}
	select {
	case res := <-done:
		if res.Success || res.Error != "转换已取消" {
			t.Errorf("running job result = %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Convert did not return after Close")
	}
	checkSequence(t, log.all(), events.StatusError)

	before := len(log.all())
	res := c.Convert(context.Background(), Request{
		InputPath:  writeInput(t),
		OutputPath: filepath.Join(t.TempDir(), "late.ogg"),
		Format:     "ogg",
	})
	if res.Success || res.Error != "服务正在关闭" {
		t.Errorf("late request result = %+v", res)
	}
	late := log.all()[before:]
	if len(late) != 1 || late[0].Status != events.StatusError || late[0].JobID != res.JobID {
		t.Errorf("late request events = %+v, want a single error", late)
	}
	if got := len(engine.invocations()); got != 1 {
		t.Errorf("engine ran %d times, want 1", got)
	}
	if job := recorder.jobs[res.JobID]; job == nil || job.Status != StatusCancelled {
		t.Errorf("late job record = %+v", job)
	}
	if c.Close() != 0 {
		t.Error("second Close cancelled jobs")
	}
}
