package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
)

var (
	ErrStopped        = errors.New("scheduler stopped")
	ErrAlreadyRunning = errors.New("scheduler already running")
)

// State of a Scheduler. Idle only exists before the first Run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Cycle is one full evaluation at the latest block.
type Cycle interface {
	RunCycle(ctx context.Context) (*arbitrage.CycleResult, error)
}

// Reporter receives the outcome of every cycle, success or failure.
type Reporter interface {
	Report(seq uint64, res *arbitrage.CycleResult, err error, elapsed time.Duration)
}

// Scheduler runs cycles back to back with a fixed pause between the end of
// one cycle and the start of the next. A slow cycle pushes every later
// cycle back; the drift is logged, not corrected.
type Scheduler struct {
	cycle    Cycle
	reporter Reporter
	interval time.Duration
	log      *zap.Logger

	state atomic.Int32
	seq   atomic.Uint64
}

func NewScheduler(cycle Cycle, interval time.Duration, reporter Reporter, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cycle:    cycle,
		reporter: reporter,
		interval: interval,
		log:      log,
	}
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

// Cycles is the number of cycles started so far.
func (s *Scheduler) Cycles() uint64 { return s.seq.Load() }

// Run blocks until ctx is cancelled. The first cycle starts immediately.
// Cancellation is only observed between cycles: a cycle in flight runs to
// completion on a context that ignores ctx's cancellation. Once Run returns
// the scheduler is stopped for good.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		if s.State() == StateStopped {
			return ErrStopped
		}
		return ErrAlreadyRunning
	}
	defer s.state.Store(int32(StateStopped))

	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
	cycleCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			s.stopped()
			return nil
		}

		elapsed := s.runOnce(cycleCtx)
		if elapsed > s.interval {
			s.log.Warn("cycle overran poll interval, schedule drifts",
				zap.Uint64("cycle", s.seq.Load()),
				zap.Duration("elapsed", elapsed),
				zap.Duration("interval", s.interval),
			)
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.stopped()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Scheduler) stopped() {
	s.log.Info("scheduler stopped", zap.Uint64("cycles", s.seq.Load()))
}

func (s *Scheduler) runOnce(ctx context.Context) time.Duration {
	seq := s.seq.Add(1)
	start := time.Now()
	res, err := guard(func() (*arbitrage.CycleResult, error) {
		return s.cycle.RunCycle(ctx)
	})
	elapsed := time.Since(start)
	report(s.reporter, s.log, seq, res, err, elapsed)
	return elapsed
}

var errNoResult = errors.New("cycle returned neither a result nor an error")

// guard turns a panic inside fn into a cycle error so one bad cycle cannot
// take the loop down. A nil result without an error is a failure too.
func guard(fn func() (*arbitrage.CycleResult, error)) (res *arbitrage.CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &arbitrage.CycleError{Step: arbitrage.StepPanic, Err: fmt.Errorf("%v", r)}
		}
	}()
	res, err = fn()
	if err == nil && (res == nil || res.Decision == nil) {
		return nil, &arbitrage.CycleError{Step: arbitrage.StepUnknown, Err: errNoResult}
	}
	return res, err
}

// report hands the outcome to the reporter. A panicking reporter is logged
// and swallowed.
func report(rep Reporter, log *zap.Logger, seq uint64, res *arbitrage.CycleResult, err error, elapsed time.Duration) {
	defer func() {
		if r := recover(); r != nil && log != nil {
			log.Error("reporter panicked", zap.Uint64("cycle", seq), zap.Any("panic", r))
		}
	}()
	rep.Report(seq, res, err, elapsed)
}
