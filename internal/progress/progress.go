// Package progress reports the progress of long-running service operations:
// a spinner on interactive terminals, plain status lines otherwise.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter receives progress for a single operation.
type Reporter interface {
	Start(description string)
	SetDescription(desc string)
	Finish(message string)
	Error(err error)
}

// New returns a spinner when f is a terminal and a line reporter otherwise.
func New(f *os.File) Reporter {
	if term.IsTerminal(int(f.Fd())) {
		enableANSI(f)
		return NewCLIProgress(f)
	}
	return NewLineProgress(f)
}

// CLIProgress renders an indeterminate spinner with a changing description.
type CLIProgress struct {
	w   io.Writer
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a spinner writing to w.
func NewCLIProgress(w io.Writer) *CLIProgress {
	return &CLIProgress{w: w}
}

// Start shows the spinner.
func (p *CLIProgress) Start(description string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// SetDescription updates the spinner text and advances it one frame.
func (p *CLIProgress) SetDescription(desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Describe(desc)
		_ = p.bar.Add(1)
	}
}

// Finish clears the spinner and prints message, if any.
func (p *CLIProgress) Finish(message string) {
	p.stop()
	if message != "" {
		fmt.Fprintln(p.w, message)
	}
}

// Error clears the spinner. The caller reports the error itself.
func (p *CLIProgress) Error(err error) {
	p.stop()
}

func (p *CLIProgress) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

// LineProgress prints each distinct description on its own line, for logs and
// redirected output.
type LineProgress struct {
	w    io.Writer
	mu   sync.Mutex
	last string
}

// NewLineProgress creates a line reporter writing to w.
func NewLineProgress(w io.Writer) *LineProgress {
	return &LineProgress{w: w}
}

// Start prints the first description.
func (p *LineProgress) Start(description string) {
	p.SetDescription(description)
}

// SetDescription prints desc unless it repeats the previous line.
func (p *LineProgress) SetDescription(desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if desc == "" || desc == p.last {
		return
	}
	p.last = desc
	fmt.Fprintln(p.w, desc)
}

// Finish prints message, if any.
func (p *LineProgress) Finish(message string) {
	if message != "" {
		fmt.Fprintln(p.w, message)
	}
}

// Error does nothing; the caller reports the error.
func (p *LineProgress) Error(err error) {}

// NoOpProgress is a reporter that does nothing, used for machine-readable output.
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

// Start does nothing.
func (p *NoOpProgress) Start(description string) {}

// SetDescription does nothing.
func (p *NoOpProgress) SetDescription(desc string) {}

// Finish does nothing.
func (p *NoOpProgress) Finish(message string) {}

// Error does nothing.
func (p *NoOpProgress) Error(err error) {}
