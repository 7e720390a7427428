package formz

import "github.com/zoobzio/capitan"

// Async validation signals.
var (
	// ValidationStarted is emitted when a node issues an async validation pass.
	ValidationStarted = capitan.NewSignal(
		"formz.validation.started",
		"Async validation pass issued",
	)

	// ValidationCommitted is emitted when an async pass resolves for the
	// node's current value and its result is applied.
	ValidationCommitted = capitan.NewSignal(
		"formz.validation.committed",
		"Async validation result applied",
	)

	// ValidationDiscarded is emitted when an async pass resolves after a
	// newer edit superseded the value it was issued for.
	ValidationDiscarded = capitan.NewSignal(
		"formz.validation.discarded",
		"Stale async validation result discarded",
	)

	// ValidationTimedOut is emitted when an async pass exceeds the
	// configured validation timeout.
	ValidationTimedOut = capitan.NewSignal(
		"formz.validation.timed_out",
		"Async validation timed out",
	)

	// ValidatorPanicked is emitted when an async validator panics. The pass
	// is treated as producing no error.
	ValidatorPanicked = capitan.NewSignal(
		"formz.validation.panicked",
		"Async validator panicked",
	)
)

// Group structure signals.
var (
	// GroupReset is emitted after a group resets all of its members.
	GroupReset = capitan.NewSignal(
		"formz.group.reset",
		"Group reset to baseline",
	)

	// GroupMemberAdded is emitted when a member is attached to a group.
	GroupMemberAdded = capitan.NewSignal(
		"formz.group.member.added",
		"Group member attached",
	)

	// GroupMemberRemoved is emitted when a member is detached from a group.
	GroupMemberRemoved = capitan.NewSignal(
		"formz.group.member.removed",
		"Group member detached",
	)
)

// Baseline signals.
var (
	// BaselineLoaded is emitted when a baseline payload is applied.
	BaselineLoaded = capitan.NewSignal(
		"formz.baseline.loaded",
		"Baseline applied",
	)

	// BaselineLoadFailed is emitted when a baseline payload cannot be applied.
	BaselineLoadFailed = capitan.NewSignal(
		"formz.baseline.failed",
		"Baseline could not be applied",
	)

	// BaselineRejected is emitted when a watcher holds back a payload that
	// does not decode.
	BaselineRejected = capitan.NewSignal(
		"formz.baseline.rejected",
		"Baseline payload rejected before loading",
	)
)
