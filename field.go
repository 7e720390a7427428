package formz

import "context"

// FieldState is the immutable snapshot published by a Field.
//
// Value is always FromInput(InputValue), except after SetValue, which
// re-derives InputValue from Value instead.
type FieldState[T, I any] struct {
	InitialValue T
	InputValue   I
	Required     bool

	Value      T
	Changed    bool
	Empty      bool
	Complete   bool
	Validating bool
	Valid      bool
	Err        error
	Focused    bool
	Touched    bool
	Disabled   bool
	Skip       bool
}

// Status returns the type-erased view of the snapshot.
func (s FieldState[T, I]) Status() Status {
	return Status{
		Value:      s.Value,
		Err:        s.Err,
		Changed:    s.Changed,
		Empty:      s.Empty,
		Complete:   s.Complete,
		Validating: s.Validating,
		Valid:      s.Valid,
		Focused:    s.Focused,
		Touched:    s.Touched,
		Disabled:   s.Disabled,
		Skip:       s.Skip,
	}
}

// sameState compares snapshots for publication. Values go through IsEqual;
// raw input has no configured comparison and uses sameValue.
func (f *Field[T, I]) sameState(a, b FieldState[T, I]) bool {
	return a.Required == b.Required &&
		a.Changed == b.Changed &&
		a.Empty == b.Empty &&
		a.Complete == b.Complete &&
		a.Validating == b.Validating &&
		a.Valid == b.Valid &&
		a.Focused == b.Focused &&
		a.Touched == b.Touched &&
		a.Disabled == b.Disabled &&
		a.Skip == b.Skip &&
		sameErr(a.Err, b.Err) &&
		f.isEqual(a.Value, b.Value) &&
		f.isEqual(a.InitialValue, b.InitialValue) &&
		sameValue(a.InputValue, b.InputValue)
}

// FieldConfig configures a Field. ToInput and FromInput are required.
type FieldConfig[T, I any] struct {
	// InitialValue is the baseline for Changed and Reset.
	InitialValue T

	// InputValue pre-sets the raw input. Default: ToInput(InitialValue).
	InputValue *I

	Required bool

	// RequiredError is the error of a required field with an empty value.
	// Default: ErrRequired.
	RequiredError error

	Focused  bool
	Touched  bool
	Disabled bool
	Skip     bool

	// ToInput renders a value as raw input.
	ToInput func(T) I

	// FormatInput normalizes raw input on every edit. Default: identity.
	FormatInput func(I) I

	// FromInput parses raw input into a value. It must be pure.
	FromInput func(I) T

	Validate      Validator[T]
	ValidateAsync AsyncValidator[T]

	// IsEqual decides whether an edit changes the value. Default: DefaultIsEqual.
	IsEqual EqualFunc[T]

	// IsEmpty decides emptiness for required checks. Default: DefaultIsEmpty.
	IsEmpty EmptyFunc[T]

	// OnChangeState is subscribed before the initial state is computed, so it
	// receives the construction snapshot too.
	OnChangeState Handler[FieldState[T, I]]

	Options
}

type editKind int

const (
	// editInit is the construction pass: every derived flag is computed.
	editInit editKind = iota
	// editUser is any post-construction mutation; input changes mark touched.
	editUser
	// editBaseline moves the field to its baseline without marking touched.
	editBaseline
)

// Field is a single-value state machine holding a raw input representation
// and the value parsed from it, with synchronous and asynchronous validation.
type Field[T, I any] struct {
	env
	state *Observable[FieldState[T, I]]

	toInput       func(T) I
	formatInput   func(I) I
	fromInput     func(I) T
	validate      Validator[T]
	validateAsync AsyncValidator[T]
	isEqual       EqualFunc[T]
	isEmpty       EmptyFunc[T]
	requiredErr   error

	// pending is the in-flight async pass, guarded by the state lock.
	pending *pass[T, error]
}

// NewField creates a Field and computes its initial state. It panics if
// ToInput or FromInput is missing.
func NewField[T, I any](cfg FieldConfig[T, I]) *Field[T, I] {
	if cfg.ToInput == nil || cfg.FromInput == nil {
		panic("formz: NewField requires ToInput and FromInput")
	}

	f := &Field[T, I]{
		env:           cfg.Options.env(),
		toInput:       cfg.ToInput,
		formatInput:   cfg.FormatInput,
		fromInput:     cfg.FromInput,
		validate:      cfg.Validate,
		validateAsync: cfg.ValidateAsync,
		isEqual:       cfg.IsEqual,
		isEmpty:       cfg.IsEmpty,
		requiredErr:   cfg.RequiredError,
	}
	if f.formatInput == nil {
		f.formatInput = func(in I) I { return in }
	}
	if f.isEqual == nil {
		f.isEqual = DefaultIsEqual[T]
	}
	if f.isEmpty == nil {
		f.isEmpty = DefaultIsEmpty[T]
	}
	if f.requiredErr == nil {
		f.requiredErr = ErrRequired
	}

	f.state = NewObservable(FieldState[T, I]{}, f.sameState)
	if cfg.OnChangeState != nil {
		f.state.Subscribe(cfg.OnChangeState)
	}

	input := cfg.InputValue
	if input == nil {
		raw := cfg.ToInput(cfg.InitialValue)
		input = &raw
	}
	changed := f.apply(editInit, func(s *FieldState[T, I]) {
		s.InitialValue = cfg.InitialValue
		s.InputValue = *input
		s.Required = cfg.Required
		s.Focused = cfg.Focused
		s.Touched = cfg.Touched
		s.Disabled = cfg.Disabled
		s.Skip = cfg.Skip
	})
	if !changed {
		f.state.Emit()
	}
	return f
}

// Name returns the field's name.
func (f *Field[T, I]) Name() string {
	return f.name
}

// State returns the current snapshot.
func (f *Field[T, I]) State() FieldState[T, I] {
	return f.state.State()
}

// Status returns the current snapshot without its concrete types.
func (f *Field[T, I]) Status() Status {
	return f.state.State().Status()
}

// Value returns the current sanitized value.
func (f *Field[T, I]) Value() T {
	return f.state.State().Value
}

// Subscribe registers fn to receive every published snapshot.
func (f *Field[T, I]) Subscribe(fn Handler[FieldState[T, I]]) Subscription {
	return f.state.Subscribe(fn)
}

// Watch registers fn to run after every published change.
func (f *Field[T, I]) Watch(fn func()) Subscription {
	return f.state.Subscribe(func(FieldState[T, I]) { fn() })
}

// Unsubscribe removes a handler registered with Subscribe or Watch.
func (f *Field[T, I]) Unsubscribe(sub Subscription) bool {
	return f.state.Unsubscribe(sub)
}

// ErrorHistory returns the most recent published errors, oldest first, or
// nil when Options.ErrorHistorySize is zero.
func (f *Field[T, I]) ErrorHistory() []error {
	return f.history.all()
}

// SetInputValue stores a raw edit and re-derives the value from it. Once the
// field is constructed, an edit that changes the formatted input marks the
// field touched.
func (f *Field[T, I]) SetInputValue(raw I) bool {
	return f.apply(editUser, func(s *FieldState[T, I]) {
		s.InputValue = raw
	})
}

// SetValue sets the value directly and re-derives the input from it. Values
// equal to the current one under IsEqual are ignored.
func (f *Field[T, I]) SetValue(v T) bool {
	return f.apply(editUser, func(s *FieldState[T, I]) {
		if !f.isEqual(s.Value, v) {
			s.Value = v
		}
	})
}

// Focus marks the field focused. It never changes Touched.
func (f *Field[T, I]) Focus() bool {
	return f.Update(func(s *FieldState[T, I]) { s.Focused = true })
}

// Unfocus clears the focused flag.
func (f *Field[T, I]) Unfocus() bool {
	return f.Update(func(s *FieldState[T, I]) { s.Focused = false })
}

// SetRequired toggles the required flag and re-runs validation.
func (f *Field[T, I]) SetRequired(required bool) bool {
	return f.Update(func(s *FieldState[T, I]) { s.Required = required })
}

// SetDisabled toggles the disabled flag.
func (f *Field[T, I]) SetDisabled(disabled bool) bool {
	return f.Update(func(s *FieldState[T, I]) { s.Disabled = disabled })
}

// SetSkip toggles whether the field is excluded from its parent's
// aggregation and from its own required and validation checks.
func (f *Field[T, I]) SetSkip(skip bool) bool {
	return f.Update(func(s *FieldState[T, I]) { s.Skip = skip })
}

// SetTouched sets the touched flag explicitly.
func (f *Field[T, I]) SetTouched(touched bool) bool {
	return f.Update(func(s *FieldState[T, I]) { s.Touched = touched })
}

// SetInitialValue replaces the baseline and recomputes Changed.
func (f *Field[T, I]) SetInitialValue(v T) bool {
	return f.Update(func(s *FieldState[T, I]) { s.InitialValue = v })
}

// Seed replaces the baseline and moves the value to it without marking the
// field touched. It is how persisted initial values are applied.
func (f *Field[T, I]) Seed(v T) bool {
	return f.apply(editBaseline, func(s *FieldState[T, I]) {
		s.InitialValue = v
		s.Value = v
		s.Touched = false
	})
}

// Update edits a copy of the current snapshot and runs the recomputation
// pass over it. Derived flags set by fn are recomputed where the pass owns
// them.
func (f *Field[T, I]) Update(fn func(*FieldState[T, I])) bool {
	return f.apply(editUser, fn)
}

// Reset restores the value to the baseline and clears Touched. Reaching the
// baseline through reset is not a user edit.
func (f *Field[T, I]) Reset() bool {
	return f.apply(editBaseline, func(s *FieldState[T, I]) {
		s.Value = s.InitialValue
		s.Touched = false
	})
}

// apply runs one mutation through the recomputation pass and publishes the
// result. An async pass issued by the mutation starts after subscribers have
// seen the validating snapshot.
func (f *Field[T, I]) apply(kind editKind, fn func(*FieldState[T, I])) bool {
	var issued *pass[T, error]
	changed := f.state.Transition(func(prev FieldState[T, I]) FieldState[T, I] {
		proposed := prev
		fn(&proposed)

		next, revalidated := f.derive(prev, proposed, kind)
		if revalidated && next.Validating {
			if f.pending == nil || !f.isEqual(f.pending.value, next.Value) {
				issued = &pass[T, error]{value: next.Value}
				f.pending = issued
			}
		}
		if !sameErr(prev.Err, next.Err) {
			f.history.record(next.Err)
		}
		return next
	})
	if issued != nil {
		f.run(issued)
	}
	return changed
}

// derive recomputes the derived flags of next given the previous snapshot.
// It reports whether validation ran, which is when a new async pass may be
// needed.
func (f *Field[T, I]) derive(prev, next FieldState[T, I], kind editKind) (FieldState[T, I], bool) {
	first := kind == editInit

	inputChanged := first || !sameValue(next.InputValue, prev.InputValue)
	if inputChanged {
		next.InputValue = f.formatInput(next.InputValue)
		next.Value = f.fromInput(next.InputValue)
	}

	valueChanged := first || !f.isEqual(next.Value, prev.Value)
	if valueChanged {
		if !inputChanged {
			next.InputValue = f.formatInput(f.toInput(next.Value))
		}
		next.Empty = f.isEmpty(next.Value)
		next.Complete = !next.Empty
	}

	if kind == editUser && !sameValue(next.InputValue, prev.InputValue) {
		next.Touched = true
	}

	if valueChanged || !f.isEqual(next.InitialValue, prev.InitialValue) {
		next.Changed = !f.isEqual(next.Value, next.InitialValue)
	}

	revalidate := valueChanged || next.Required != prev.Required || next.Skip != prev.Skip
	if revalidate {
		next.Err = f.syncError(next)
	}

	if revalidate || !sameErr(next.Err, prev.Err) {
		async := f.validateAsync != nil && !next.Skip
		next.Valid = next.Err == nil && !async
		next.Validating = next.Err == nil && async
	}
	return next, revalidate
}

func (f *Field[T, I]) syncError(s FieldState[T, I]) error {
	switch {
	case s.Skip:
		return nil
	case s.Empty && s.Required:
		return f.requiredErr
	case f.validate != nil:
		return f.validate(s.Value)
	}
	return nil
}

func (f *Field[T, I]) run(p *pass[T, error]) {
	p.started = f.env.started()
	go func() {
		result, out := runPass[T, error](f.env, p.value,
			(func(context.Context, T) error)(f.validateAsync), ErrValidationTimeout)
		f.commit(p, result, out)
	}()
}

// commit applies the result of p if the field still holds the value p was
// issued for and is still waiting on a pass; otherwise the result is dropped
// without publishing.
func (f *Field[T, I]) commit(p *pass[T, error], result error, out outcome) {
	committed := false
	var phase Phase
	f.state.Transition(func(prev FieldState[T, I]) FieldState[T, I] {
		if f.pending == p {
			f.pending = nil
		}
		if out == outcomeCanceled || !prev.Validating || !f.isEqual(prev.Value, p.value) {
			return prev
		}
		committed = true
		next := prev
		next.Validating = false
		next.Valid = result == nil
		next.Err = result
		f.history.record(result)
		phase = next.Status().Phase()
		return next
	})
	f.env.resolved(committed, phase, p.started)
}
