package formz

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on async validation events.
type MetricsProvider interface {
	// OnValidationStarted is called when a node issues an async pass.
	OnValidationStarted(node string)

	// OnValidationCommitted is called when an async pass result is applied.
	// Duration is the time the validator took to resolve.
	OnValidationCommitted(node string, phase Phase, duration time.Duration)

	// OnValidationDiscarded is called when a stale async result is dropped.
	OnValidationDiscarded(node string)

	// OnValidatorPanic is called when an async validator panics.
	OnValidatorPanic(node string)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnValidationStarted(_ string)                             {}
func (NoOpMetricsProvider) OnValidationCommitted(_ string, _ Phase, _ time.Duration) {}
func (NoOpMetricsProvider) OnValidationDiscarded(_ string)                           {}
func (NoOpMetricsProvider) OnValidatorPanic(_ string)                                {}
