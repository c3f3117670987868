package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/gwlsn/mediaconv/internal/events"
)

const clearLine = "\r\033[K"

// progressPrinter renders job events for a terminal. On a TTY progress
// rewrites a single line; otherwise every event gets its own line.
type progressPrinter struct {
	w   io.Writer
	tty bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, tty: isTerminal(w)}
}

func (p *progressPrinter) OnEvent(e events.Event) {
	switch e.Status {
	case events.StatusStart:
		fmt.Fprintf(p.w, "Job %s started\n", e.JobID)
	case events.StatusProgress:
		line := fmt.Sprintf("%3d%%  time %s  speed %s  eta %s", e.Percent, e.Time, e.Speed, e.ETA)
		if p.tty {
			fmt.Fprint(p.w, clearLine+line)
		} else {
			fmt.Fprintln(p.w, line)
		}
	case events.StatusEnd:
		p.finishLine()
		fmt.Fprintf(p.w, "100%%  %s\n", e.Time)
	case events.StatusError:
		p.finishLine()
		fmt.Fprintf(p.w, "error: %s\n", e.Error)
	}
}

func (p *progressPrinter) finishLine() {
	if p.tty {
		fmt.Fprint(p.w, clearLine)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
