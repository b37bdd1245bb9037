package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Spinner shows an animated line while a long operation such as a refresh
// poll runs. It only animates on a terminal.
type Spinner struct {
	out     io.Writer
	frames  []string
	current int
	message string
	started time.Time
	stop    chan struct{}
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewSpinner creates a spinner writing to stdout
func NewSpinner(message string) *Spinner {
	return &Spinner{
		out:     os.Stdout,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the animation
func (s *Spinner) Start() {
	s.started = time.Now()
	if !supportsColor {
		fmt.Fprintf(s.out, "%s...\n", s.message)
		close(s.done)
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.out, "\r%s %s %s",
					ColorProgress(s.frames[s.current]),
					s.message,
					ColorDim(formatDuration(time.Since(s.started))),
				)
				s.current = (s.current + 1) % len(s.frames)
				s.mu.Unlock()
			}
		}
	}()
}

// Stop ends the animation and prints the final status. Calling it twice
// is a no-op.
func (s *Spinner) Stop(success bool, message string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stop)
	<-s.done

	if supportsColor {
		fmt.Fprint(s.out, "\r\033[K")
	}
	elapsed := ColorDim("(" + formatDuration(time.Since(s.started)) + ")")
	if success {
		fmt.Fprintf(s.out, "%s %s %s\n", ColorSuccess("✓"), message, elapsed)
	} else {
		fmt.Fprintf(s.out, "%s %s %s\n", ColorError("✗"), message, elapsed)
	}
}

// UpdateMessage updates the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}

// truncate shortens s to max runes with a leading ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return "..." + string(r[len(r)-max+3:])
}
