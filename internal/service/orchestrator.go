package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/JBibu/backupone/internal/constants"
	"github.com/JBibu/backupone/internal/elevation"
	"github.com/JBibu/backupone/internal/logging"
	"github.com/JBibu/backupone/internal/poller"
	"github.com/JBibu/backupone/internal/script"
)

// State is a step of a single lifecycle invocation.
type State int

const (
	StateIdle State = iota
	StateScriptWritten
	StateElevating
	StatePolling
	StateVerifying
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScriptWritten:
		return "script_written"
	case StateElevating:
		return "elevating"
	case StatePolling:
		return "polling"
	case StateVerifying:
		return "verifying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports a state transition. Attempt and MaxAttempts are set while polling.
type Event struct {
	Op          script.Operation
	State       State
	Attempt     int
	MaxAttempts int
	Err         error
}

// Observer receives transitions synchronously on the invoking goroutine.
type Observer func(Event)

// Options configures an Orchestrator.
type Options struct {
	Querier  StatusQuerier
	Launcher elevation.Launcher
	Builder  script.Builder
	Poller   *poller.Poller
	Logger   *logging.Logger

	// BinaryCandidates are tried in order under <resourceDir>/binaries.
	BinaryCandidates []string

	// SettleAttempts bounds the re-queries made while the service sits in a
	// pending state during verification. Default 5.
	SettleAttempts int

	Observer Observer
}

// Orchestrator drives the elevate, poll and verify sequence for each operation.
// It holds no lock; callers serialize invocations.
type Orchestrator struct {
	querier    StatusQuerier
	launcher   elevation.Launcher
	builder    script.Builder
	poller     *poller.Poller
	logger     *logging.Logger
	candidates []string
	settle     int
	observer   Observer
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := opts.Poller
	if p == nil {
		p = poller.New(logger)
	}
	candidates := opts.BinaryCandidates
	if len(candidates) == 0 {
		candidates = constants.ServiceBinaryCandidates
	}
	settle := opts.SettleAttempts
	if settle <= 0 {
		settle = 5
	}
	return &Orchestrator{
		querier:    opts.Querier,
		launcher:   opts.Launcher,
		builder:    opts.Builder,
		poller:     p,
		logger:     logger,
		candidates: candidates,
		settle:     settle,
		observer:   opts.Observer,
	}
}

// WithObserver returns a copy of o reporting transitions to obs.
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	cp := *o
	cp.observer = obs
	return &cp
}

// Supported implements Manager.
func (o *Orchestrator) Supported() bool {
	return true
}

// Status implements Manager. Query failures are logged and reported as not installed.
func (o *Orchestrator) Status(ctx context.Context) ServiceStatus {
	st, err := o.query(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Str("service", o.builder.ServiceName).Msg("Service status query failed")
		return NotInstalled()
	}
	return st
}

// query returns the normalized status or the querier's error. Decisions
// about running or judging an operation go through here, never Status.
func (o *Orchestrator) query(ctx context.Context) (ServiceStatus, error) {
	st, err := o.querier.QueryStatus(ctx)
	if err != nil {
		return ServiceStatus{}, err
	}
	return st.Normalize(), nil
}

// current is the up-front query of a mutating operation.
func (o *Orchestrator) current(ctx context.Context, op script.Operation) (ServiceStatus, error) {
	st, err := o.query(ctx)
	if err != nil {
		o.logger.Error().Err(err).Str("operation", op.String()).Msg("Service status query failed")
		return st, &OperationError{
			Op:      op,
			Kind:    KindStatusUnavailable,
			Message: fmt.Sprintf("%s Could not query %s: %v", failureHeadline(op), o.builder.ServiceName, err),
			Err:     err,
		}
	}
	return st, nil
}

// Install registers the service executable found under resourceDir and starts it.
func (o *Orchestrator) Install(ctx context.Context, resourceDir string) error {
	current, err := o.current(ctx, script.Install)
	if err != nil {
		return err
	}
	if current.Installed {
		o.logger.Info().Str("service", o.builder.ServiceName).Msg("Service already installed")
		return nil
	}

	binary, err := script.LocateBinary(resourceDir, constants.BinariesDirName, o.candidates)
	if err != nil {
		return &OperationError{Op: script.Install, Kind: KindPrecondition, Message: err.Error(), Err: err}
	}
	o.logger.Info().Str("binary", binary).Msg("Installing service")

	return o.run(ctx, script.Install, script.Params{BinaryPath: binary})
}

// Uninstall stops and deletes the service. The sequence runs even when the
// service is already absent; verification accepts that state.
func (o *Orchestrator) Uninstall(ctx context.Context) error {
	current, err := o.current(ctx, script.Uninstall)
	if err != nil {
		return err
	}
	if !current.Installed {
		o.logger.Info().Str("service", o.builder.ServiceName).Msg("Service not installed, running uninstall anyway")
	}
	return o.run(ctx, script.Uninstall, script.Params{})
}

// Start starts an installed service.
func (o *Orchestrator) Start(ctx context.Context) error {
	current, err := o.current(ctx, script.Start)
	if err != nil {
		return err
	}
	if !current.Installed {
		return &OperationError{
			Op:      script.Start,
			Kind:    KindPrecondition,
			Message: fmt.Sprintf("Failed to start service. %s is not installed", o.builder.ServiceName),
		}
	}
	if current.Running {
		o.logger.Info().Str("service", o.builder.ServiceName).Msg("Service already running")
		return nil
	}
	return o.run(ctx, script.Start, script.Params{})
}

// Stop stops a running service.
func (o *Orchestrator) Stop(ctx context.Context) error {
	current, err := o.current(ctx, script.Stop)
	if err != nil {
		return err
	}
	if !current.Running {
		o.logger.Info().Str("service", o.builder.ServiceName).Msg("Service not running")
		return nil
	}
	return o.run(ctx, script.Stop, script.Params{})
}

func (o *Orchestrator) run(ctx context.Context, op script.Operation, params script.Params) error {
	log := o.logger.With().Str("operation", op.String()).Logger()
	o.emit(Event{Op: op, State: StateIdle})

	plan, err := o.builder.Build(op, params)
	if err != nil {
		return o.fail(&OperationError{Op: op, Kind: KindPrecondition, Message: err.Error(), Err: err})
	}

	art, err := script.Prepare(plan)
	if err != nil {
		return o.fail(&OperationError{
			Op:      op,
			Kind:    KindPrecondition,
			Message: fmt.Sprintf("Failed to write %s script: %v", op.ScriptName(), err),
			Err:     err,
		})
	}
	log.Debug().Str("script", art.ScriptPath).Str("log", art.LogPath).Msg("Script written")
	o.emit(Event{Op: op, State: StateScriptWritten})

	o.emit(Event{Op: op, State: StateElevating})
	req := elevation.ScriptRequest(art.ScriptPath, filepath.Dir(art.ScriptPath))
	if err := o.launcher.Launch(ctx, req); err != nil {
		if ctx.Err() != nil {
			return o.fail(o.cancelled(op, art, ctx.Err()))
		}
		reason := "Elevated launch failed: " + err.Error()
		if errors.Is(err, elevation.ErrDeclined) {
			reason = "Administrator approval was declined"
		}
		return o.fail(&OperationError{
			Op:      op,
			Kind:    KindElevationDeclined,
			Message: failureHeadline(op) + " " + reason,
			LogPath: art.LogPath,
			Err:     err,
		})
	}
	log.Info().Str("script", filepath.Base(art.ScriptPath)).Msg("Script initiated, waiting for completion")

	o.emit(Event{Op: op, State: StatePolling})
	p := *o.poller
	p.OnAttempt = func(attempt, budget int) {
		o.emit(Event{Op: op, State: StatePolling, Attempt: attempt, MaxAttempts: budget})
	}
	res := p.Await(ctx, art.LogPath, plan.SuccessMarker)
	if res.Outcome == poller.OutcomeCancelled {
		return o.fail(o.cancelled(op, art, ctx.Err()))
	}
	log.Debug().Str("outcome", res.Outcome.String()).Int("attempts", res.Attempts).Msg("Polling finished")

	o.emit(Event{Op: op, State: StateVerifying})
	after, err := o.verify(ctx, op)
	if err != nil {
		if ctx.Err() != nil {
			return o.fail(o.cancelled(op, art, ctx.Err()))
		}
		log.Error().Err(err).Str("log", art.LogPath).Msg("Could not verify service state")
		opErr := detailsError(op, KindStatusUnavailable, res.Details(), art.LogPath)
		opErr.Message = fmt.Sprintf("%s Could not verify service state: %v. Details:\n%s", failureHeadline(op), err, res.Details())
		opErr.Err = err
		return o.fail(opErr)
	}

	if postconditionMet(op, after) {
		if res.HasErrorLine() {
			log.Warn().Str("log", art.LogPath).Msg("Script reported an error but the service reached the expected state")
		} else if res.Outcome == poller.OutcomeTimeout {
			log.Warn().Str("log", art.LogPath).Msg("Script did not report completion but the service reached the expected state")
		}
		log.Info().Str("status", after.String()).Msg("Operation verified")
		o.emit(Event{Op: op, State: StateSucceeded})
		return nil
	}

	kind := KindVerificationMismatch
	if res.Outcome == poller.OutcomeError || res.HasErrorLine() {
		kind = KindStepFailed
	}
	opErr := detailsError(op, kind, res.Details(), art.LogPath)
	log.Error().
		Str("kind", kind.String()).
		Str("outcome", res.Outcome.String()).
		Str("status", after.String()).
		Str("log", art.LogPath).
		Msg("Operation failed verification")
	return o.fail(opErr)
}

// verify queries the service, waiting briefly while it sits in a pending state.
// A failed query is returned as an error, never as a status.
func (o *Orchestrator) verify(ctx context.Context, op script.Operation) (ServiceStatus, error) {
	clk := o.poller.Clock
	if clk == nil {
		clk = clock.New()
	}
	interval := o.poller.Interval
	if interval <= 0 {
		interval = constants.PollInterval
	}

	st, err := o.query(ctx)
	for i := 0; err == nil && i < o.settle && !postconditionMet(op, st) && pending(st.State); i++ {
		o.logger.Debug().Str("state", st.State.String()).Msg("Service in pending state, re-querying")
		if err := sleep(ctx, clk, interval); err != nil {
			return st, err
		}
		st, err = o.query(ctx)
	}
	return st, err
}

func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	timer := clk.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func pending(s Status) bool {
	switch s {
	case StatusStartPending, StatusStopPending, StatusContinuePending, StatusPausePending:
		return true
	}
	return false
}

func postconditionMet(op script.Operation, st ServiceStatus) bool {
	switch op {
	case script.Install:
		return st.Installed
	case script.Uninstall:
		return !st.Installed
	case script.Start:
		return st.Running
	case script.Stop:
		return !st.Running
	default:
		return false
	}
}

func (o *Orchestrator) cancelled(op script.Operation, art script.Artifact, cause error) *OperationError {
	return &OperationError{
		Op:      op,
		Kind:    KindCancelled,
		Message: failureHeadline(op) + " Stopped waiting for completion; the elevated script may still be running. Log: " + art.LogPath,
		LogPath: art.LogPath,
		Err:     cause,
	}
}

func (o *Orchestrator) fail(err *OperationError) error {
	o.emit(Event{Op: err.Op, State: StateFailed, Err: err})
	return err
}

func (o *Orchestrator) emit(ev Event) {
	if o.observer != nil {
		o.observer(ev)
	}
}
