package decision

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/openrescue/gridrescue/sim/engine"
)

// ErrRequestInFlight is returned when a decision request is already
// outstanding. Only one request may be in flight at a time.
var ErrRequestInFlight = errors.New("decision request already in flight")

const (
	// maxAttempts bounds oracle calls per decision request.
	maxAttempts = 3
	// initialBackoff is the wait before the first retry; it doubles per
	// attempt (2s, 4s), keeping the worst case within the retry budget.
	initialBackoff = 2 * time.Second
)

// Result pairs a resolved decision with the mission epoch that issued the
// request, so a reset mission can discard stale resolutions.
type Result struct {
	Decision engine.Decision
	Epoch    uint64
}

// Orchestrator mediates between the scheduler and the external oracle.
// It enforces the single-flight guard, the throttle retry policy, and the
// deterministic fallback that guarantees forward progress regardless of
// oracle health.
type Orchestrator struct {
	oracle  Oracle
	logger  *zap.Logger
	backoff time.Duration

	inFlight atomic.Bool
}

// NewOrchestrator creates a decision orchestrator around an oracle.
func NewOrchestrator(oracle Oracle, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		oracle:  oracle,
		logger:  logger.Named("decision"),
		backoff: initialBackoff,
	}
}

// InFlight reports whether a request is currently outstanding.
func (o *Orchestrator) InFlight() bool {
	return o.inFlight.Load()
}

// Request launches an asynchronous decision request and returns a channel
// that will receive exactly one Result. It returns ErrRequestInFlight if a
// previous request has not resolved yet.
func (o *Orchestrator) Request(ctx context.Context, req Request, epoch uint64) (<-chan Result, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrRequestInFlight
	}

	ch := make(chan Result, 1)
	go func() {
		defer o.inFlight.Store(false)
		ch <- Result{Decision: o.resolve(ctx, req), Epoch: epoch}
	}()
	return ch, nil
}

// Resolve performs a synchronous decision request, bypassing the in-flight
// guard. It never fails: oracle faults degrade to the fallback decision.
func (o *Orchestrator) Resolve(ctx context.Context, req Request) engine.Decision {
	return o.resolve(ctx, req)
}

func (o *Orchestrator) resolve(ctx context.Context, req Request) engine.Decision {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.backoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = o.backoff * 4

	attempt := 0
	var out engine.Decision

	operation := func() error {
		attempt++
		d, err := o.oracle.Decide(ctx, req)
		if err == nil {
			out = d
			return nil
		}
		if errors.Is(err, ErrThrottled) {
			o.logger.Warn("oracle throttled, backing off",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		// Non-throttle faults are not retried.
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx))
	if err == nil {
		return out
	}

	o.logger.Warn("oracle unavailable, using fallback decision",
		zap.Int("attempts", attempt),
		zap.Error(err),
	)
	return Fallback(err)
}

// Fallback is the deterministic decision used when the oracle cannot answer:
// explore at low priority, with the fault recorded in the reasoning.
func Fallback(cause error) engine.Decision {
	reasoning := "oracle unavailable, defaulting to exploration"
	if cause != nil {
		reasoning = fmt.Sprintf("oracle fault (%v), defaulting to exploration", cause)
	}
	return engine.Decision{
		Reasoning: reasoning,
		Action:    engine.ActionExplore,
		Priority:  engine.PriorityLow,
	}
}
