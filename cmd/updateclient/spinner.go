package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const defaultSpinnerDelay = 300 * time.Millisecond

type progressEvent struct {
	downloaded int64
	total      int64
}

// downloadSpinner renders download progress on a single terminal line. It
// stays hidden until delay has passed so fast downloads print nothing.
type downloadSpinner struct {
	writer        io.Writer
	label         string
	delay         time.Duration
	frameInterval time.Duration
	frames        []string
	style         lipgloss.Style

	events chan progressEvent
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	mu       sync.Mutex
	frameIdx int
}

func newDownloadSpinner(w io.Writer, label string, delay time.Duration) *downloadSpinner {
	return newCustomDownloadSpinner(w, label, delay, spinner.Line.FPS)
}

func newCustomDownloadSpinner(w io.Writer, label string, delay, frameInterval time.Duration) *downloadSpinner {
	if w == nil {
		w = io.Discard
	}
	sp := &downloadSpinner{
		writer:        w,
		label:         label,
		delay:         delay,
		frameInterval: frameInterval,
		frames:        spinner.Line.Frames,
		style:         lipgloss.NewRenderer(w).NewStyle().Foreground(lipgloss.Color("6")),
		events:        make(chan progressEvent, 8),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go sp.loop()
	return sp
}

// terminalWriter returns w when it is a terminal and io.Discard otherwise.
func terminalWriter(w io.Writer) io.Writer {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return f
	}
	return io.Discard
}

// Progress records download progress. It matches installer.ProgressFunc.
func (s *downloadSpinner) Progress(downloaded, total int64) {
	if s == nil {
		return
	}
	select {
	case <-s.stopCh:
		return
	default:
	}
	select {
	case s.events <- progressEvent{downloaded: downloaded, total: total}:
	default:
	}
}

func (s *downloadSpinner) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

func (s *downloadSpinner) loop() {
	defer close(s.doneCh)

	var delayCh <-chan time.Time
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		delayCh = timer.C
	}

	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	var current progressEvent
	visible := s.delay == 0

	for {
		select {
		case <-s.stopCh:
			if visible {
				s.clearLine()
			}
			return
		case ev := <-s.events:
			current = ev
			if visible {
				s.render(current)
			}
		case <-ticker.C:
			if visible {
				s.render(current)
			}
		case <-delayCh:
			delayCh = nil
			visible = true
			s.render(current)
		}
	}
}

func (s *downloadSpinner) render(ev progressEvent) {
	frame := s.style.Render(s.nextFrame())
	_, _ = fmt.Fprintf(s.writer, "\r\033[2K%s %s", frame, formatProgress(s.label, ev.downloaded, ev.total))
}

func (s *downloadSpinner) clearLine() {
	_, _ = fmt.Fprint(s.writer, "\r\033[2K")
}

func (s *downloadSpinner) nextFrame() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.frames[s.frameIdx%len(s.frames)]
	s.frameIdx++
	return frame
}

func formatProgress(label string, downloaded, total int64) string {
	switch {
	case downloaded <= 0:
		return label + "..."
	case total > 0:
		pct := downloaded * 100 / total
		if pct > 100 {
			pct = 100
		}
		return fmt.Sprintf("%s... %d%% (%s of %s)", label, pct, formatBytes(downloaded), formatBytes(total))
	default:
		return fmt.Sprintf("%s... %s", label, formatBytes(downloaded))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
