// Package poller waits for a detached privileged script to finish by sampling
// the log file it writes.
package poller

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"

	"github.com/JBibu/backupone/internal/constants"
	"github.com/JBibu/backupone/internal/logging"
)

// NoLogMessage is reported in place of log content when no log was ever written.
const NoLogMessage = "No log file found"

// Outcome classifies how polling ended.
type Outcome int

const (
	// OutcomeTimeout means the attempt budget ran out with neither marker seen.
	// It is ambiguous, not a failure: the script may still be running or may
	// never have started.
	OutcomeTimeout Outcome = iota
	OutcomeSuccess
	OutcomeError
	// OutcomeCancelled means the caller stopped waiting. The privileged
	// process is not affected.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeError:
		return "error"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "timeout"
	}
}

// Result is the last observation made by Await.
type Result struct {
	Outcome  Outcome
	Attempts int
	Log      string
	LogFound bool
}

// Details returns the log content, or NoLogMessage when there was none.
func (r Result) Details() string {
	if !r.LogFound {
		return NoLogMessage
	}
	return r.Log
}

// HasErrorLine reports whether the log contains a line starting with the error marker.
func (r Result) HasErrorLine() bool {
	return r.LogFound && containsErrorLine(r.Log)
}

// Poller samples a log on a fixed interval.
type Poller struct {
	// Interval between samples. Default 1s.
	Interval time.Duration

	// Attempts is the number of interval samples before giving up. Default 10.
	Attempts int

	// Clock drives the interval. Default real time.
	Clock clock.Clock

	// Watch adds an extra sample whenever the log file changes. These samples
	// do not consume attempts.
	Watch bool

	// OnAttempt is called before each interval sample.
	OnAttempt func(attempt, max int)

	Logger *logging.Logger
}

// New returns a poller with the default interval and attempt budget.
func New(logger *logging.Logger) *Poller {
	return &Poller{
		Interval: constants.PollInterval,
		Attempts: constants.PollAttempts,
		Clock:    clock.New(),
		Watch:    true,
		Logger:   logger,
	}
}

// Await samples logPath until it contains marker or an error line, the attempt
// budget is exhausted, or ctx is done.
func (p *Poller) Await(ctx context.Context, logPath, marker string) Result {
	interval, budget := p.Interval, p.Attempts
	if interval <= 0 {
		interval = constants.PollInterval
	}
	if budget <= 0 {
		budget = constants.PollAttempts
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := p.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	var wake <-chan struct{}
	if p.Watch {
		w, err := watchFile(logPath, log)
		if err != nil {
			log.Debug().Err(err).Str("path", logPath).Msg("Log watch unavailable, polling only")
		} else {
			defer w.stop()
			wake = w.wake
		}
	}

	ticker := clk.Ticker(interval)
	defer ticker.Stop()
	return p.wait(ctx, ticker.C, wake, budget, logPath, marker, log)
}

// wait counts one attempt per tick. Wake-ups sample the log between ticks
// without moving the tick schedule.
func (p *Poller) wait(ctx context.Context, ticks <-chan time.Time, wake <-chan struct{}, budget int, logPath, marker string, log *logging.Logger) Result {
	res := Result{}
	sample := func() bool {
		res.Log, res.LogFound = ReadLog(logPath)
		if !res.LogFound {
			return false
		}
		if strings.Contains(res.Log, marker) {
			res.Outcome = OutcomeSuccess
			return true
		}
		if containsErrorLine(res.Log) {
			res.Outcome = OutcomeError
			return true
		}
		return false
	}

	for {
		select {
		case <-ctx.Done():
			sample()
			res.Outcome = OutcomeCancelled
			return res

		case <-wake:
			if sample() {
				log.Debug().Str("outcome", res.Outcome.String()).Int("attempts", res.Attempts).Msg("Log changed")
				return res
			}

		case <-ticks:
			res.Attempts++
			if p.OnAttempt != nil {
				p.OnAttempt(res.Attempts, budget)
			}
			if sample() {
				return res
			}
			log.Debug().Int("attempt", res.Attempts).Int("max", budget).Bool("log_found", res.LogFound).Msg("Waiting for script")
			if res.Attempts >= budget {
				res.Outcome = OutcomeTimeout
				return res
			}
		}
	}
}

// ReadLog returns the content of the log at path and whether it could be read.
func ReadLog(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func containsErrorLine(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), constants.ErrorMarker) {
			return true
		}
	}
	return false
}

// fileWatch forwards changes to a single file as coalesced wakeups.
type fileWatch struct {
	watcher *fsnotify.Watcher
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

func watchFile(path string, log *logging.Logger) (*fileWatch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	fw := &fileWatch{
		watcher: w,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	filename := filepath.Base(path)

	fw.wg.Add(1)
	go func() {
		defer fw.wg.Done()
		for {
			select {
			case <-fw.done:
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filename {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case fw.wake <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Debug().Err(err).Str("path", path).Msg("Log watch error")
			}
		}
	}()

	return fw, nil
}

func (fw *fileWatch) stop() {
	close(fw.done)
	fw.watcher.Close()
	fw.wg.Wait()
}
