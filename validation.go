package formz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Validator checks a value synchronously. A nil return means no error.
type Validator[T any] func(v T) error

// AsyncValidator checks a value asynchronously, typically against a remote
// service. It runs in its own goroutine; the returned error is the validation
// result (nil = valid). A validator that panics is treated as producing no
// error for that pass.
type AsyncValidator[T any] func(ctx context.Context, v T) error

// Options carries the ambient configuration shared by fields and groups.
type Options struct {
	// Name identifies the node in signals and metrics. Default: a random UUID.
	Name string

	// Context is the parent context of async validation passes. Cancelling it
	// discards every pass still in flight. Default: context.Background().
	Context context.Context

	// Clock drives validation timeouts. Default: clockz.RealClock.
	Clock clockz.Clock

	// ValidationTimeout bounds each async pass. At the deadline the pass
	// commits ErrValidationTimeout and its context is cancelled; whatever the
	// validator returns afterwards is dropped. Default: no timeout.
	ValidationTimeout time.Duration

	// Metrics receives async validation callbacks. Default: no-op.
	Metrics MetricsProvider

	// ErrorHistorySize sets how many published errors the node retains for
	// ErrorHistory. Default: 0 (disabled).
	ErrorHistorySize int
}

// env is the resolved form of Options.
type env struct {
	name    string
	ctx     context.Context
	clock   clockz.Clock
	timeout time.Duration
	metrics MetricsProvider
	history *errorRing
}

func (o Options) env() env {
	e := env{
		name:    o.Name,
		ctx:     o.Context,
		clock:   o.Clock,
		timeout: o.ValidationTimeout,
		metrics: o.Metrics,
		history: newErrorRing(o.ErrorHistorySize),
	}
	if e.name == "" {
		e.name = uuid.NewString()
	}
	if e.ctx == nil {
		e.ctx = context.Background()
	}
	if e.clock == nil {
		e.clock = clockz.RealClock
	}
	if e.metrics == nil {
		e.metrics = NoOpMetricsProvider{}
	}
	return e
}

// outcome describes how an async pass ended.
type outcome int

const (
	outcomeDone outcome = iota
	outcomeTimedOut
	outcomePanicked
	outcomeCanceled
)

// pass is one in-flight async validation, tagged with the value it was issued
// for. Stale passes are detected by comparing that value with the node's
// value when the pass resolves; there is no request counter, so an edit that
// returns to an earlier value lets the earlier pass commit.
type pass[V, E any] struct {
	value   V
	result  E
	started time.Time
}

func (e env) started() time.Time {
	capitan.Emit(e.ctx, ValidationStarted, KeyNode.Field(e.name))
	e.metrics.OnValidationStarted(e.name)
	return e.clock.Now()
}

// runPass runs fn for value with the node's timeout and panic recovery.
// onTimeout is returned as the result when the timeout elapses. fn runs in
// its own goroutine so that a validator ignoring ctx cannot hold the pass past
// its deadline or past cancellation of the parent context.
func runPass[V, E any](e env, value V, fn func(context.Context, V) E, onTimeout E) (E, outcome) {
	ctx := e.ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = e.clock.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	done := make(chan invoked[E], 1)
	go func() {
		result, err := invoke(ctx, value, fn)
		done <- invoked[E]{result: result, err: err}
	}()

	var res invoked[E]
	select {
	case res = <-done:
	case <-ctx.Done():
	}

	switch {
	case e.ctx.Err() != nil:
		return res.result, outcomeCanceled
	case e.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded):
		capitan.Emit(e.ctx, ValidationTimedOut,
			KeyNode.Field(e.name),
			KeyTimeout.Field(e.timeout),
		)
		return onTimeout, outcomeTimedOut
	case res.err != nil:
		capitan.Emit(e.ctx, ValidatorPanicked,
			KeyNode.Field(e.name),
			KeyError.Field(res.err.Error()),
		)
		e.metrics.OnValidatorPanic(e.name)
		var zero E
		return zero, outcomePanicked
	}
	return res.result, outcomeDone
}

// invoked is what a validator goroutine hands back to its pass.
type invoked[E any] struct {
	result E
	err    error
}

func invoke[V, E any](ctx context.Context, value V, fn func(context.Context, V) E) (result E, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("async validator panic: %v", r)
		}
	}()
	return fn(ctx, value), nil
}

// resolved reports the end of a pass through signals and metrics.
func (e env) resolved(committed bool, phase Phase, started time.Time) {
	if !committed {
		capitan.Emit(e.ctx, ValidationDiscarded, KeyNode.Field(e.name))
		e.metrics.OnValidationDiscarded(e.name)
		return
	}
	capitan.Emit(e.ctx, ValidationCommitted,
		KeyNode.Field(e.name),
		KeyPhase.Field(phase.String()),
	)
	e.metrics.OnValidationCommitted(e.name, phase, e.clock.Since(started))
}
