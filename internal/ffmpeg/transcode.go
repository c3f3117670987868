package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gwlsn/mediaconv/internal/formats"
	"github.com/gwlsn/mediaconv/internal/logger"
	"github.com/gwlsn/mediaconv/internal/progress"
)

// stderrTailLines is how many trailing stderr lines end up in error messages.
const stderrTailLines = 3

// Invocation describes one ffmpeg run.
type Invocation struct {
	InputPath  string
	OutputPath string
	Target     formats.Target
	FrameRate  float64 // 0 = keep source rate
}

// TranscodeError represents an ffmpeg failure with the captured stderr.
type TranscodeError struct {
	Err      error
	Stderr   string // Full stderr output
	ExitCode int    // -1 when the process did not exit normally
}

func (e *TranscodeError) Error() string {
	return e.Err.Error()
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// Transcoder runs ffmpeg and reports its progress.
type Transcoder struct {
	ffmpegPath string
	prober     *Prober
}

// NewTranscoder creates a Transcoder. prober may be nil, in which case
// snapshots carry no percentage.
func NewTranscoder(ffmpegPath string, prober *Prober) *Transcoder {
	return &Transcoder{ffmpegPath: ffmpegPath, prober: prober}
}

// Path returns the ffmpeg binary this transcoder invokes.
func (t *Transcoder) Path() string {
	return t.ffmpegPath
}

// BuildArgs returns the ffmpeg arguments for inv. Codec and frame-rate flags
// are only present when set.
func BuildArgs(inv Invocation) []string {
	args := []string{"-hide_banner", "-y", "-i", inv.InputPath}
	if inv.Target.VideoCodec != "" {
		args = append(args, "-c:v", inv.Target.VideoCodec)
	}
	if inv.Target.AudioCodec != "" {
		args = append(args, "-c:a", inv.Target.AudioCodec)
	}
	if inv.FrameRate > 0 {
		args = append(args, "-r", strconv.FormatFloat(inv.FrameRate, 'f', -1, 64))
	}
	args = append(args,
		"-progress", "pipe:1", // key=value progress blocks on stdout
		"-nostats",
	)
	if inv.Target.Container != "" {
		args = append(args, "-f", inv.Target.Container)
	}
	return append(args, inv.OutputPath)
}

// Run executes inv, calling onTelemetry for every progress block ffmpeg
// writes. onTelemetry runs on a reader goroutine and may still be running
// when ctx is cancelled; it is never called after Run returns.
func (t *Transcoder) Run(ctx context.Context, inv Invocation, onTelemetry func(progress.Snapshot)) error {
	var duration time.Duration
	if t.prober != nil {
		d, err := t.prober.Duration(ctx, inv.InputPath)
		if err != nil {
			logger.Debug("Duration probe failed, progress percent unavailable",
				"input", inv.InputPath, "error", err)
		}
		duration = d
	}

	args := BuildArgs(inv)
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	configureProcess(cmd)
	cmd.WaitDelay = 5 * time.Second

	logger.Debug("FFmpeg command", "args", strings.Join(args, " "))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return &TranscodeError{
			Err:      fmt.Errorf("failed to start ffmpeg: %w", err),
			ExitCode: -1,
		}
	}

	var stderr strings.Builder
	var g errgroup.Group
	g.Go(func() error {
		err := ParseProgress(stdout, duration, onTelemetry)
		// Keep draining so ffmpeg never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&stderr, stderrPipe)
		return err
	})

	// Readers finish when ffmpeg closes its pipes; Wait must come after.
	readErr := g.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil {
		os.Remove(inv.OutputPath)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return &TranscodeError{Err: ctxErr, Stderr: stderr.String(), ExitCode: -1}
		}

		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		tail := lastLines(stderr.String(), stderrTailLines)
		logger.Error("FFmpeg failed", "error", waitErr, "stderr", tail)

		msg := fmt.Sprintf("ffmpeg exited with code %d", code)
		if tail != "" {
			msg += ": " + tail
		}
		return &TranscodeError{
			Err:      errors.New(msg),
			Stderr:   stderr.String(),
			ExitCode: code,
		}
	}
	if readErr != nil {
		logger.Warn("FFmpeg output read failed", "error", readErr)
	}
	return nil
}

// ParseProgress reads ffmpeg "-progress" output from r and calls fn once per
// block (each block ends with a progress=continue|end line). duration is the
// input length used for the percentage; zero leaves Percent unset.
func ParseProgress(r io.Reader, duration time.Duration, fn func(progress.Snapshot)) error {
	scanner := bufio.NewScanner(r)
	var current progress.Snapshot

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key, value := line[:idx], line[idx+1:]

		switch key {
		case "out_time_us", "out_time_ms":
			// out_time_ms is microseconds too, despite the name.
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			elapsed := time.Duration(us) * time.Microsecond
			current.Timemark = FormatTimemark(elapsed)
			if duration > 0 {
				pct := float64(elapsed) / float64(duration) * 100
				if pct > 100 {
					pct = 100
				}
				current.Percent = &pct
			}
		case "out_time":
			if current.Timemark == "" && value != "N/A" && !strings.HasPrefix(value, "-") {
				current.Timemark = value
			}
		case "bitrate":
			// Format: "1234.5kbits/s" or "N/A"
			value = strings.TrimSuffix(strings.TrimSpace(value), "kbits/s")
			if kbps, err := strconv.ParseFloat(value, 64); err == nil {
				current.CurrentKbps = &kbps
			}
		case "progress":
			if fn != nil {
				fn(current)
			}
			current = progress.Snapshot{}
		}
	}
	return scanner.Err()
}

// FormatTimemark renders d as HH:MM:SS.cc.
func FormatTimemark(d time.Duration) string {
	cs := d.Milliseconds() / 10
	h := cs / 360000
	m := cs / 6000 % 60
	s := cs / 100 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%02d", h, m, s, cs%100)
}

func lastLines(s string, n int) string {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(s), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
