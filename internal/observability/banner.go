package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

var spinnerFrames = []string{"◜", "◝", "◞", "◟"}

func termWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TermWriter serializes log output and the dashboard status line on one
// terminal. A log write first clears a drawn status line; the dashboard
// redraws it on its next tick.
type TermWriter struct {
	mu     sync.Mutex
	w      io.Writer
	status bool
}

func NewTermWriter(w io.Writer) *TermWriter {
	return &TermWriter{w: w}
}

func (t *TermWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status {
		if _, err := io.WriteString(t.w, "\r\033[K"); err != nil {
			return 0, err
		}
		t.status = false
	}
	return t.w.Write(p)
}

func (t *TermWriter) Sync() error {
	if f, ok := t.w.(*os.File); ok {
		return f.Sync()
	}
	return nil
}

// drawStatus replaces the status line with line, or clears it when line
// is empty.
func (t *TermWriter) drawStatus(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "\r\033[K%s", line)
	t.status = line != ""
}

const banner = `
   __________  __________  ____  ____________
  / ____/ __ \/ ____/ __ \/ __ \/ ____/ ____/
 / / __/ / / / /_  / / / / /_/ / / __/ __/
/ /_/ / /_/ / __/ / /_/ / _, _/ /_/ / /___
\____/_____/_/    \____/_/ |_|\____/_____/

      >> PROMPT TO GODOT COMMAND PLANS <<
`

// PrintBanner writes the centered banner to f.
func PrintBanner(f *os.File) {
	width := termWidth(f)
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Fprintf(f, "%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

// StatusLine renders one dashboard line for the snapshot. frame selects
// the spinner glyph.
func StatusLine(s StatusSnapshot, frame int) string {
	color := colorNeonCyan
	spin := " "
	switch s.Phase {
	case PhaseIdle:
		color = colorReset
	case PhaseCorrecting:
		color = colorNeonMag
		spin = spinnerFrames[frame%len(spinnerFrames)]
	default:
		spin = spinnerFrames[frame%len(spinnerFrames)]
	}

	task := s.Task
	if task == "" {
		task = "Waiting..."
	}
	if r := []rune(task); len(r) > 40 {
		task = string(r[:37]) + "..."
	}

	attempt := ""
	if s.Attempt > 0 {
		attempt = fmt.Sprintf(" attempt %d", s.Attempt)
	}

	return fmt.Sprintf("%s%s %-12s%s%s %s| %s%s",
		color, spin, s.Phase, colorReset, attempt,
		colorPurple, task, colorReset)
}

// RunDashboard redraws the status line on w every interval until done is
// closed. Logs written through w never share a line with the status.
func RunDashboard(w *TermWriter, s *Status, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	frame := 0
	for {
		select {
		case <-done:
			w.drawStatus("")
			return
		case <-ticker.C:
			w.drawStatus(StatusLine(s.Snapshot(), frame))
			frame++
		}
	}
}
