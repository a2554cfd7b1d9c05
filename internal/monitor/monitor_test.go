package monitor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
)

func result(block *big.Int, opportunity bool) *arbitrage.CycleResult {
	one := big.NewInt(1)
	return &arbitrage.CycleResult{
		Block:   block,
		PoolA:   arbitrage.Pool{Name: "uniswap"},
		PoolB:   arbitrage.Pool{Name: "sushiswap"},
		PriceA:  one,
		PriceB:  one,
		GasCost: one,
		Decision: &arbitrage.Decision{
			OpportunityExists:  opportunity,
			PriceDifference:    one,
			ThresholdAbs:       one,
			GasCost:            one,
			ReferenceThreshold: one,
		},
	}
}

// scriptedCycle plays back fn for each call and cancels after stopAfter calls.
type scriptedCycle struct {
	mu        sync.Mutex
	calls     int
	stopAfter int
	cancel    context.CancelFunc
	fn        func(call int, ctx context.Context) (*arbitrage.CycleResult, error)
}

func (c *scriptedCycle) RunCycle(ctx context.Context) (*arbitrage.CycleResult, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	if c.stopAfter > 0 && call >= c.stopAfter {
		c.cancel()
	}
	c.mu.Unlock()
	return c.fn(call, ctx)
}

func (c *scriptedCycle) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) Report(_ uint64, _ *arbitrage.CycleResult, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func TestScheduler_FailedCycleDoesNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poolBErr := &arbitrage.CycleError{
		Step: arbitrage.StepReadPoolB,
		Err:  &arbitrage.ContractCallError{Method: "slot0", Err: errors.New("execution reverted")},
	}
	cycle := &scriptedCycle{
		stopAfter: 3,
		cancel:    cancel,
		fn: func(call int, _ context.Context) (*arbitrage.CycleResult, error) {
			if call == 1 {
				return nil, poolBErr
			}
			return result(nil, false), nil
		},
	}
	rep := &recordingReporter{}

	s := NewScheduler(cycle, time.Millisecond, rep, zap.NewNop())
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, 3, cycle.count())
	require.Len(t, rep.errs, 3)
	assert.Equal(t, arbitrage.StepReadPoolB, arbitrage.StepOf(rep.errs[0]))
	assert.NoError(t, rep.errs[1])
	assert.NoError(t, rep.errs[2])
	assert.Equal(t, StateStopped, s.State())
}

func TestScheduler_RecoversPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycle := &scriptedCycle{
		stopAfter: 2,
		cancel:    cancel,
		fn: func(call int, _ context.Context) (*arbitrage.CycleResult, error) {
			if call == 1 {
				panic("nil map")
			}
			return result(nil, true), nil
		},
	}
	rep := &recordingReporter{}

	require.NoError(t, NewScheduler(cycle, time.Millisecond, rep, nil).Run(ctx))
	require.Len(t, rep.errs, 2)
	assert.Equal(t, arbitrage.StepPanic, arbitrage.StepOf(rep.errs[0]))
	assert.NoError(t, rep.errs[1])
}

func TestScheduler_InFlightCycleCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sawCancel bool
	cycle := &scriptedCycle{
		stopAfter: 1,
		cancel:    cancel,
		fn: func(_ int, ctx context.Context) (*arbitrage.CycleResult, error) {
			// the stop request arrived before this call returned
			sawCancel = ctx.Err() != nil
			return result(nil, false), nil
		},
	}
	rep := &recordingReporter{}

	require.NoError(t, NewScheduler(cycle, time.Hour, rep, nil).Run(ctx))
	assert.False(t, sawCancel)
	assert.Equal(t, 1, cycle.count())
	require.Len(t, rep.errs, 1)
	assert.NoError(t, rep.errs[0])
}

func TestScheduler_StopDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cycle := &scriptedCycle{
		fn: func(int, context.Context) (*arbitrage.CycleResult, error) { return result(nil, false), nil },
	}
	s := NewScheduler(cycle, time.Hour, &recordingReporter{}, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return cycle.count() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop while waiting for the next tick")
	}
	assert.Equal(t, 1, cycle.count())
}

func TestScheduler_NoRestart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cycle := &scriptedCycle{
		fn: func(int, context.Context) (*arbitrage.CycleResult, error) { return result(nil, false), nil },
	}
	s := NewScheduler(cycle, time.Millisecond, &recordingReporter{}, nil)
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 0, cycle.count())
	assert.Equal(t, StateStopped, s.State())

	assert.ErrorIs(t, s.Run(context.Background()), ErrStopped)
	assert.Equal(t, 0, cycle.count())
}

func TestScheduler_SecondRunRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycle := &scriptedCycle{
		fn: func(int, context.Context) (*arbitrage.CycleResult, error) { return result(nil, false), nil },
	}
	s := NewScheduler(cycle, time.Hour, &recordingReporter{}, nil)
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.State() == StateRunning }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Run(ctx), ErrAlreadyRunning)
}

func TestScheduler_LogsDrift(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycle := &scriptedCycle{
		stopAfter: 1,
		cancel:    cancel,
		fn: func(int, context.Context) (*arbitrage.CycleResult, error) {
			time.Sleep(5 * time.Millisecond)
			return result(nil, false), nil
		},
	}
	require.NoError(t, NewScheduler(cycle, time.Millisecond, &recordingReporter{}, zap.New(core)).Run(ctx))
	assert.Equal(t, 1, logs.FilterMessage("cycle overran poll interval, schedule drifts").Len())
}

func TestLogReporter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rep := NewLogReporter(zap.New(core))

	rep.Report(1, result(nil, true), nil, time.Millisecond)
	rep.Report(2, result(big.NewInt(100), false), nil, time.Millisecond)
	rep.Report(3, nil, &arbitrage.CycleError{Step: arbitrage.StepEstimateGas, Err: errors.New("EOF")}, time.Millisecond)

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "arbitrage opportunity detected", entries[0].Message)
	assert.Equal(t, true, entries[0].ContextMap()["opportunity"])
	assert.Equal(t, "latest", entries[0].ContextMap()["block"])

	assert.Equal(t, "no significant arbitrage opportunity", entries[1].Message)
	assert.Equal(t, "100", entries[1].ContextMap()["block"])

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "estimate_gas", entries[2].ContextMap()["step"])
	assert.Equal(t, uint64(3), entries[2].ContextMap()["cycle"])
}

type fakeEvaluator struct {
	fail map[uint64]bool
	opp  map[uint64]bool
	seen []uint64
}

func (f *fakeEvaluator) EvaluateAt(_ context.Context, block *big.Int) (*arbitrage.CycleResult, error) {
	b := block.Uint64()
	f.seen = append(f.seen, b)
	if f.fail[b] {
		return nil, &arbitrage.CycleError{Step: arbitrage.StepReadPoolA, Err: errors.New("missing trie node")}
	}
	return result(block, f.opp[b]), nil
}

func TestSweep(t *testing.T) {
	ev := &fakeEvaluator{
		fail: map[uint64]bool{20: true},
		opp:  map[uint64]bool{30: true},
	}
	rep := &recordingReporter{}

	sum, err := Sweep(context.Background(), ev, []uint64{10, 20, 30}, rep)
	require.NoError(t, err)
	assert.Equal(t, SweepSummary{Evaluated: 2, Failed: 1, Opportunities: 1}, sum)
	assert.Equal(t, []uint64{10, 20, 30}, ev.seen)
	assert.Len(t, rep.errs, 3)
}

func TestSweep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := &fakeEvaluator{}
	sum, err := Sweep(ctx, ev, []uint64{1, 2}, &recordingReporter{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, SweepSummary{}, sum)
	assert.Empty(t, ev.seen)
}

func TestBlockRange(t *testing.T) {
	assert.Equal(t, []uint64{1, 4, 7, 10}, BlockRange(1, 10, 3))
	assert.Equal(t, []uint64{5}, BlockRange(5, 5, 1))
	assert.Equal(t, []uint64{0}, BlockRange(0, 5, 10))
	assert.Nil(t, BlockRange(10, 1, 1))
	assert.Nil(t, BlockRange(1, 10, 0))
}

// timedCycle sleeps for work on each call and records when it started and
// finished.
type timedCycle struct {
	mu     sync.Mutex
	work   time.Duration
	starts []time.Time
	ends   []time.Time
	stopAt int
	cancel context.CancelFunc
	failOn map[int]error
}

func (c *timedCycle) RunCycle(context.Context) (*arbitrage.CycleResult, error) {
	c.mu.Lock()
	c.starts = append(c.starts, time.Now())
	call := len(c.starts)
	c.mu.Unlock()

	time.Sleep(c.work)

	c.mu.Lock()
	c.ends = append(c.ends, time.Now())
	if call >= c.stopAt {
		c.cancel()
	}
	c.mu.Unlock()

	if err := c.failOn[call]; err != nil {
		return nil, err
	}
	return result(nil, false), nil
}

func TestScheduler_IntervalMeasuredFromCycleEnd(t *testing.T) {
	const interval = 50 * time.Millisecond

	tests := []struct {
		name   string
		failOn map[int]error
	}{
		{name: "healthy cycles"},
		{
			name: "first cycle fails on pool b",
			failOn: map[int]error{1: &arbitrage.CycleError{
				Step: arbitrage.StepReadPoolB,
				Err:  &arbitrage.ContractCallError{Method: "slot0", Err: errors.New("execution reverted")},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cycle := &timedCycle{work: 30 * time.Millisecond, stopAt: 3, cancel: cancel, failOn: tt.failOn}
			rep := &recordingReporter{}
			require.NoError(t, NewScheduler(cycle, interval, rep, nil).Run(ctx))

			require.Len(t, cycle.starts, 3)
			require.Len(t, rep.errs, 3)
			for i := 1; i < len(cycle.starts); i++ {
				gap := cycle.starts[i].Sub(cycle.ends[i-1])
				assert.GreaterOrEqual(t, gap, interval, "cycle %d started %s after cycle %d ended", i+1, gap, i)
			}
			if tt.failOn != nil {
				assert.Equal(t, arbitrage.StepReadPoolB, arbitrage.StepOf(rep.errs[0]))
				assert.NoError(t, rep.errs[1])
			}
		})
	}
}

func TestScheduler_EmptyResultIsACycleFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycle := &scriptedCycle{
		stopAfter: 2,
		cancel:    cancel,
		fn: func(int, context.Context) (*arbitrage.CycleResult, error) { return nil, nil },
	}
	log := zap.New(core)
	s := NewScheduler(cycle, time.Millisecond, NewLogReporter(log), log)

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 2, cycle.count())
	assert.Equal(t, 2, logs.FilterMessage("cycle failed").Len())
}

type panickyReporter struct{ calls int }

func (p *panickyReporter) Report(uint64, *arbitrage.CycleResult, error, time.Duration) {
	p.calls++
	panic("reporter bug")
}

func TestScheduler_ReporterPanicDoesNotStopLoop(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycle := &scriptedCycle{
		stopAfter: 2,
		cancel:    cancel,
		fn: func(int, context.Context) (*arbitrage.CycleResult, error) { return result(nil, false), nil },
	}
	rep := &panickyReporter{}

	require.NoError(t, NewScheduler(cycle, time.Millisecond, rep, zap.New(core)).Run(ctx))
	assert.Equal(t, 2, rep.calls)
	assert.Equal(t, 2, logs.FilterMessage("reporter panicked").Len())
}

func TestLogReporter_WarnsOnceWhenGasDwarfsPrice(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rep := NewLogReporter(zap.New(core))

	res := result(nil, false)
	// roughly WETH/USDC: ~3e9 normalized price against 2e12 wei of gas
	res.PriceA = big.NewInt(3_000_000_000)
	res.GasCost = big.NewInt(2_000_000_000_000)

	rep.Report(1, res, nil, time.Millisecond)
	rep.Report(2, res, nil, time.Millisecond)

	assert.Equal(t, 1, logs.FilterMessage("gas cost exceeds reference price, opportunities are unreachable at this scale").Len())
}

type emptyEvaluator struct{}

func (emptyEvaluator) EvaluateAt(context.Context, *big.Int) (*arbitrage.CycleResult, error) {
	return nil, nil
}

func TestSweep_EmptyResultCountsAsFailed(t *testing.T) {
	rep := &recordingReporter{}
	sum, err := Sweep(context.Background(), emptyEvaluator{}, []uint64{1, 2}, rep)
	require.NoError(t, err)
	assert.Equal(t, SweepSummary{Failed: 2}, sum)
	require.Len(t, rep.errs, 2)
	assert.Equal(t, arbitrage.StepUnknown, arbitrage.StepOf(rep.errs[0]))
}
