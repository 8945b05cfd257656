package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY reports whether w is a file descriptor attached to a terminal.
// Buffers and pipes report false.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// Progress counts work items such as snapshot removals.
// Example: [==========>         ] 5/10 Pruning tank/home
//
// On a terminal the line is redrawn in place. Elsewhere a single line is
// written when the work is finished.
type Progress struct {
	mu          sync.Mutex
	w           io.Writer
	tty         bool
	total       int
	done        int
	width       int
	description string
}

// NewProgress returns a progress counter for total items written to w.
func NewProgress(w io.Writer, total int, description string) *Progress {
	return &Progress{
		w:           w,
		tty:         writerIsTTY(w),
		total:       total,
		width:       30,
		description: description,
	}
}

// Add marks n more items done.
func (p *Progress) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = min(p.done+n, p.total)
	if p.tty {
		fmt.Fprintf(p.w, "\r%s", p.line())
	}
}

// Increment marks one item done.
func (p *Progress) Increment() {
	p.Add(1)
}

// Finish writes the final state and ends the line. Finishing early reports
// how many items were actually processed.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tty {
		fmt.Fprintf(p.w, "\r%s\n", p.line())
		return
	}
	fmt.Fprintln(p.w, p.line())
}

// line renders the bar. Must be called with the lock held.
func (p *Progress) line() string {
	filled := 0
	if p.total > 0 {
		filled = p.done * p.width / p.total
	}

	var bar strings.Builder
	bar.WriteByte('[')
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled-1:
			bar.WriteByte('=')
		case i == filled-1:
			bar.WriteByte('>')
		default:
			bar.WriteByte(' ')
		}
	}
	bar.WriteByte(']')

	return fmt.Sprintf("%s %d/%d %s", bar.String(), p.done, p.total, p.description)
}

// Spinner shows that a long-running command, such as a zfs send, is
// still in progress.
// Example: |  Sending tank@2024-03-01_1200 (12s elapsed)
type Spinner struct {
	mu      sync.Mutex
	w       io.Writer
	tty     bool
	message string
	frames  []string
	started time.Time
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// NewSpinner returns a spinner writing to w. It does nothing until Start.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:       w,
		tty:     writerIsTTY(w),
		message: message,
		frames:  []string{"|", "/", "-", "\\"},
	}
}

// Start begins the animation. On a non-terminal writer the message is
// printed once instead.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.started = time.Now()

	if !s.tty {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}

	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.loop()
}

func (s *Spinner) loop() {
	defer close(s.stopped)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			elapsed := int(time.Since(s.started).Seconds())
			fmt.Fprintf(s.w, "\r%s  %s (%ds elapsed)", s.frames[i%len(s.frames)], s.message, elapsed)
			s.mu.Unlock()
		}
	}
}

// Stop ends the animation and clears the line. It is safe to call more
// than once.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done, stopped := s.done, s.stopped
	s.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	<-stopped

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message)+24))
}

// StopWithMessage stops the spinner and prints msg on its own line.
func (s *Spinner) StopWithMessage(msg string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, msg)
}
