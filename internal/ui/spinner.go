// Package ui renders terminal feedback for long-running CLI steps.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a status line on an interactive terminal. On anything
// else it prints the message once.
type Spinner struct {
	out         io.Writer
	interactive bool
	interval    time.Duration

	mu      sync.Mutex
	message string
	active  bool
	done    chan struct{}
	stopped chan struct{}
}

// NewSpinner creates a spinner writing to stderr.
func NewSpinner(message string) *Spinner {
	return NewSpinnerTo(os.Stderr, isTerminal(os.Stderr) && os.Getenv("NO_COLOR") == "", message)
}

// NewSpinnerTo creates a spinner writing to out. Only interactive spinners
// animate.
func NewSpinnerTo(out io.Writer, interactive bool, message string) *Spinner {
	return &Spinner{
		out:         out,
		interactive: interactive,
		interval:    100 * time.Millisecond,
		message:     message,
	}
}

// Start begins spinning. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true

	if !s.interactive {
		fmt.Fprintf(s.out, "%s...\n", s.message)
		return
	}

	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.spin(s.done, s.stopped)
}

func (s *Spinner) spin(done, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; ; i = (i + 1) % len(frames) {
		select {
		case <-done:
			fmt.Fprint(s.out, "\r\033[K")
			return
		case <-ticker.C:
			s.mu.Lock()
			fmt.Fprintf(s.out, "\r%s %s", frames[i], s.message)
			s.mu.Unlock()
		}
	}
}

// Stop stops the spinner and prints finalMessage, if any, on its line.
func (s *Spinner) Stop(finalMessage string) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	done, stopped := s.done, s.stopped
	s.mu.Unlock()

	if done != nil {
		close(done)
		<-stopped
	}
	if finalMessage != "" {
		fmt.Fprintf(s.out, "%s\n", finalMessage)
	}
}

// Update changes the message while the spinner runs.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Run shows a spinner while fn runs and reports its outcome.
func Run(s *Spinner, fn func() error) error {
	s.Start()
	err := fn()
	if err != nil {
		s.Stop(fmt.Sprintf("✗ %s", s.message))
	} else {
		s.Stop(fmt.Sprintf("✓ %s", s.message))
	}
	return err
}

func isTerminal(f *os.File) bool {
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
