package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/muesli/termenv"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 100 * time.Millisecond

// Spinner animates a progress indicator on a terminal. Callers should
// only start one when the effective mode is text; on a pipe the frames
// would end up as literal output.
type Spinner struct {
	out    *termenv.Output
	styles *Styles
	text   string

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a spinner bound to the renderer's output.
func (r *Renderer) NewSpinner(text string) *Spinner {
	return &Spinner{
		out:    termenv.NewOutput(r.out),
		styles: r.styles,
		text:   text,
	}
}

// Start begins the animation. Starting a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.spin()
}

func (s *Spinner) spin() {
	defer close(s.done)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-s.stop:
			_, _ = s.out.WriteString("\r")
			s.out.ClearLineRight()
			return
		case <-ticker.C:
			_, _ = s.out.WriteString("\r")
			s.out.ClearLineRight()
			glyph := s.styles.Info.Render(spinnerFrames[frame%len(spinnerFrames)])
			fmt.Fprintf(s.out, "%s %s", glyph, s.text)
			frame++
		}
	}
}

func (s *Spinner) halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	<-s.done
}

// Stop clears the spinner without printing a result line.
func (s *Spinner) Stop() {
	s.halt()
}

// Success stops the spinner and prints a confirmation line.
func (s *Spinner) Success(msg string) {
	s.halt()
	fmt.Fprintln(s.out, s.styles.Success.Render("✓ "+msg))
}

// Fail stops the spinner and prints a failure line.
func (s *Spinner) Fail(msg string) {
	s.halt()
	fmt.Fprintln(s.out, s.styles.Error.Render("✗ "+msg))
}
