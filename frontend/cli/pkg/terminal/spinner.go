package terminal

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const (
	spinnerInterval = 120 * time.Millisecond
	// Model calls that take longer than this show how long they have been
	// running.
	showElapsedAfter = 3 * time.Second
)

// Spinner animates a message on a terminal while an agent call runs. Other
// writers only get the final line.
type Spinner struct {
	writer  io.Writer
	message string
	animate bool
	started time.Time

	stop chan struct{}
	done chan struct{}
}

func NewSpinner(writer io.Writer, message string) *Spinner {
	return &Spinner{
		writer:  writer,
		message: message,
		animate: isTerminal(writer),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start may be called once.
func (s *Spinner) Start() {
	if s.stop != nil {
		return
	}
	s.started = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	if !s.animate {
		close(s.done)
		return
	}
	go s.run()
}

// Stop clears the animation and prints line, if any.
func (s *Spinner) Stop(line string) {
	if s.stop == nil {
		return
	}
	select {
	case <-s.stop:
		return
	default:
		close(s.stop)
	}
	<-s.done

	if s.animate {
		fmt.Fprint(s.writer, "\r\033[K")
	}
	if line != "" {
		fmt.Fprintln(s.writer, line)
	}
}

func (s *Spinner) run() {
	defer close(s.done)

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for frame := 0; ; frame = (frame + 1) % len(spinnerFrames) {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			fmt.Fprintf(s.writer, "\r\033[K%s %s", spinnerFrames[frame], s.status())
		}
	}
}

func (s *Spinner) status() string {
	elapsed := time.Since(s.started)
	if elapsed < showElapsedAfter {
		return s.message
	}
	return fmt.Sprintf("%s (%ds)", s.message, int(elapsed.Seconds()))
}

type SpinnerOptions struct {
	SuccessMsg string
	ErrorMsg   string
}

type SpinnerOption func(*SpinnerOptions)

func WithSuccessMsg(msg string) SpinnerOption {
	return func(o *SpinnerOptions) {
		o.SuccessMsg = msg
	}
}

func WithErrorMsg(msg string) SpinnerOption {
	return func(o *SpinnerOptions) {
		o.ErrorMsg = msg
	}
}

// SpinnerFunc runs fn behind a spinner and finishes with a success or an
// error line.
func SpinnerFunc[T any](writer io.Writer, message string, fn func() (T, error), options ...SpinnerOption) (T, error) {
	opts := &SpinnerOptions{SuccessMsg: message, ErrorMsg: message}
	for _, option := range options {
		option(opts)
	}

	spinner := NewSpinner(writer, message)
	spinner.Start()

	result, err := fn()
	if err != nil {
		spinner.Stop(ErrorSymbol + " " + opts.ErrorMsg)
		return result, err
	}

	spinner.Stop(SuccessSymbol + " " + opts.SuccessMsg)
	return result, nil
}
