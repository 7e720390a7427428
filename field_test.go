package formz_test

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/formz"
	"github.com/zoobzio/formz/formztest"
)

func identity(s string) string { return s }

func textConfig() formz.FieldConfig[string, string] {
	return formz.FieldConfig[string, string]{
		ToInput:     identity,
		FormatInput: strings.TrimSpace,
		FromInput:   identity,
	}
}

func numberConfig() formz.FieldConfig[float64, string] {
	return formz.FieldConfig[float64, string]{
		InitialValue: math.NaN(),
		ToInput: func(v float64) string {
			if math.IsNaN(v) {
				return ""
			}
			return strconv.FormatFloat(v, 'f', -1, 64)
		},
		FromInput: func(in string) float64 {
			v, err := strconv.ParseFloat(in, 64)
			if err != nil {
				return math.NaN()
			}
			return v
		},
	}
}

// discardCounter counts async results dropped as stale.
type discardCounter struct {
	formz.NoOpMetricsProvider
	discarded atomic.Int32
	panics    atomic.Int32
}

func (d *discardCounter) OnValidationDiscarded(string) { d.discarded.Add(1) }
func (d *discardCounter) OnValidatorPanic(string)      { d.panics.Add(1) }

func TestField_ConstructionPublishesInitialState(t *testing.T) {
	rec := formztest.NewRecorder[formz.FieldState[string, string]]()
	cfg := textConfig()
	cfg.Required = true
	cfg.OnChangeState = rec.Handle

	f := formz.NewField(cfg)

	if rec.Len() != 1 {
		t.Fatalf("expected 1 construction snapshot, got %d", rec.Len())
	}
	s := f.State()
	if !errors.Is(s.Err, formz.ErrRequired) {
		t.Errorf("expected ErrRequired, got %v", s.Err)
	}
	if !s.Empty || s.Complete || s.Valid || s.Touched || s.Changed {
		t.Errorf("unexpected initial flags %+v", s)
	}
}

func TestField_ConstructionWithoutChangeStillEmits(t *testing.T) {
	rec := formztest.NewRecorder[formz.FieldState[bool, bool]]()
	formz.NewField(formz.FieldConfig[bool, bool]{
		ToInput:       func(v bool) bool { return v },
		FromInput:     func(v bool) bool { return v },
		OnChangeState: rec.Handle,
	})

	if rec.Len() != 1 {
		t.Fatalf("expected the construction snapshot to be delivered, got %d", rec.Len())
	}
}

func TestField_NewFieldPanicsWithoutConverters(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	formz.NewField(formz.FieldConfig[string, string]{ToInput: identity})
}

func TestField_SetInputValueFormatsAndTouches(t *testing.T) {
	f := formz.NewField(textConfig())

	if !f.SetInputValue("  ada  ") {
		t.Fatal("expected change")
	}

	s := f.State()
	if s.InputValue != "ada" || s.Value != "ada" {
		t.Errorf("expected formatted input and value 'ada', got %q / %q", s.InputValue, s.Value)
	}
	if !s.Touched || !s.Changed || s.Empty || !s.Complete || !s.Valid {
		t.Errorf("unexpected flags %+v", s)
	}
}

func TestField_InputAndValueStayConsistent(t *testing.T) {
	f := formz.NewField(numberConfig())

	f.SetInputValue("42")
	if v := f.Value(); v != 42 {
		t.Errorf("expected 42, got %v", v)
	}

	f.SetValue(7.5)
	if s := f.State(); s.InputValue != "7.5" {
		t.Errorf("expected input re-derived as '7.5', got %q", s.InputValue)
	}

	f.SetInputValue("abc")
	if s := f.State(); !math.IsNaN(s.Value) || !s.Empty {
		t.Errorf("expected NaN and empty for unparsable input, got %+v", s)
	}
}

func TestField_SetValueIsIdempotent(t *testing.T) {
	rec := formztest.NewRecorder[formz.FieldState[string, string]]()
	cfg := textConfig()
	cfg.OnChangeState = rec.Handle
	f := formz.NewField(cfg)

	f.SetValue("ada")
	n := rec.Len()

	if f.SetValue("ada") {
		t.Error("expected repeated SetValue to report no change")
	}
	if rec.Len() != n {
		t.Errorf("expected no notification, got %d new", rec.Len()-n)
	}
}

func TestField_RepeatedNaNDoesNotRepublish(t *testing.T) {
	f := formz.NewField(numberConfig())
	calls := 0
	f.Watch(func() { calls++ })

	f.SetInputValue("x")
	f.SetInputValue("x")
	f.SetValue(math.NaN())

	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
}

func TestField_FocusDoesNotTouch(t *testing.T) {
	f := formz.NewField(textConfig())

	f.Focus()
	if s := f.State(); !s.Focused || s.Touched {
		t.Errorf("expected focused and untouched, got %+v", s)
	}

	f.Unfocus()
	if s := f.State(); s.Focused || s.Touched {
		t.Errorf("expected unfocused and untouched, got %+v", s)
	}
}

func TestField_RequiredToggle(t *testing.T) {
	f := formz.NewField(textConfig())
	if f.State().Err != nil {
		t.Fatal("expected no error while optional")
	}

	f.SetRequired(true)
	if s := f.State(); s.Err != formz.ErrRequired || s.Valid {
		t.Errorf("expected required error, got %+v", s)
	}

	f.SetRequired(false)
	if s := f.State(); s.Err != nil || !s.Valid {
		t.Errorf("expected required error cleared, got %+v", s)
	}
}

func TestField_CustomRequiredError(t *testing.T) {
	errName := errors.New("name is required")
	cfg := textConfig()
	cfg.Required = true
	cfg.RequiredError = errName

	f := formz.NewField(cfg)

	if f.State().Err != errName {
		t.Errorf("expected custom error, got %v", f.State().Err)
	}
}

func TestField_SyncValidator(t *testing.T) {
	cfg := textConfig()
	cfg.Validate = formz.Tag[string]("min=3")
	f := formz.NewField(cfg)

	f.SetInputValue("al")
	if s := f.State(); s.Err == nil || s.Valid {
		t.Errorf("expected validation error, got %+v", s)
	}

	f.SetInputValue("ada")
	if s := f.State(); s.Err != nil || !s.Valid {
		t.Errorf("expected valid field, got %+v", s)
	}
}

func TestField_SkipBypassesValidation(t *testing.T) {
	cfg := textConfig()
	cfg.Required = true
	f := formz.NewField(cfg)

	f.SetSkip(true)
	if s := f.State(); s.Err != nil || !s.Valid || !s.Skip {
		t.Errorf("expected skipped field to be valid, got %+v", s)
	}

	f.SetSkip(false)
	if f.State().Err != formz.ErrRequired {
		t.Errorf("expected required error after unskip, got %v", f.State().Err)
	}
}

func TestField_ResetRestoresBaseline(t *testing.T) {
	cfg := textConfig()
	cfg.InitialValue = "ada"
	f := formz.NewField(cfg)

	f.SetInputValue("grace")
	f.Focus()
	if !f.Reset() {
		t.Fatal("expected reset to change state")
	}

	s := f.State()
	if s.Value != "ada" || s.InputValue != "ada" {
		t.Errorf("expected baseline value, got %q", s.Value)
	}
	if s.Touched || s.Changed {
		t.Errorf("expected untouched and unchanged after reset, got %+v", s)
	}
	if !s.Focused {
		t.Error("expected focus to survive reset")
	}
}

func TestField_SeedMovesBaseline(t *testing.T) {
	f := formz.NewField(textConfig())
	f.SetInputValue("draft")

	f.Seed("saved")

	s := f.State()
	if s.InitialValue != "saved" || s.Value != "saved" {
		t.Errorf("expected seeded value, got %+v", s)
	}
	if s.Touched || s.Changed {
		t.Errorf("expected seed not to touch or change, got %+v", s)
	}
}

func TestField_SetInitialValueRecomputesChanged(t *testing.T) {
	f := formz.NewField(textConfig())
	f.SetInputValue("ada")

	f.SetInitialValue("ada")
	if f.State().Changed {
		t.Error("expected unchanged once baseline matches value")
	}
}

func TestField_UpdateRecomputesDerivedFlags(t *testing.T) {
	f := formz.NewField(textConfig())

	f.Update(func(s *formz.FieldState[string, string]) {
		s.InputValue = "ada"
		s.Valid = false
	})

	if s := f.State(); !s.Valid || s.Value != "ada" {
		t.Errorf("expected derived flags recomputed, got %+v", s)
	}
}

func TestField_SubscribeReceivesSnapshots(t *testing.T) {
	f := formz.NewField(textConfig())
	rec := formztest.NewRecorder[formz.FieldState[string, string]]()
	sub := f.Subscribe(rec.Handle)

	f.SetInputValue("a")
	f.SetInputValue("ab")
	f.Unsubscribe(sub)
	f.SetInputValue("abc")

	var values []string
	for _, s := range rec.States() {
		values = append(values, s.Value)
	}
	if diff := cmp.Diff([]string{"a", "ab"}, values); diff != "" {
		t.Errorf("unexpected snapshots (-want +got):\n%s", diff)
	}
}

func TestField_ErrorHistory(t *testing.T) {
	cfg := textConfig()
	cfg.Required = true
	cfg.Validate = formz.Tag[string]("min=3")
	cfg.Options = formz.Options{ErrorHistorySize: 4}
	f := formz.NewField(cfg)

	f.SetInputValue("a")
	f.SetInputValue("abc")

	history := f.ErrorHistory()
	if len(history) != 2 {
		t.Fatalf("expected 2 errors, got %v", history)
	}
	if history[0] != formz.ErrRequired {
		t.Errorf("expected required first, got %v", history[0])
	}
}

func TestField_AsyncValidation(t *testing.T) {
	cfg := textConfig()
	cfg.ValidateAsync = func(_ context.Context, v string) error {
		if v == "taken" {
			return errors.New("already taken")
		}
		return nil
	}
	f := formz.NewField(cfg)

	formztest.Eventually(t, time.Second, func() bool { return f.State().Valid }, "initial pass")

	f.SetInputValue("taken")
	formztest.Eventually(t, time.Second, func() bool {
		s := f.State()
		return !s.Validating && s.Err != nil
	}, "rejection")

	if s := f.State(); s.Valid || s.Err.Error() != "already taken" {
		t.Errorf("unexpected state %+v", s)
	}
}

func TestField_AsyncNotRunWhileSyncFails(t *testing.T) {
	var calls atomic.Int32
	cfg := textConfig()
	cfg.Required = true
	cfg.ValidateAsync = func(context.Context, string) error {
		calls.Add(1)
		return nil
	}
	f := formz.NewField(cfg)

	if s := f.State(); s.Validating || s.Err != formz.ErrRequired {
		t.Errorf("expected sync error and no pass, got %+v", s)
	}
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("expected no async call, got %d", calls.Load())
	}
}

func gatedField(t *testing.T, metrics formz.MetricsProvider) (*formz.Field[string, string], map[string]chan error) {
	t.Helper()
	gates := map[string]chan error{
		"a":  make(chan error),
		"ab": make(chan error),
	}
	cfg := textConfig()
	cfg.ValidateAsync = func(_ context.Context, v string) error {
		gate, ok := gates[v]
		if !ok {
			return nil
		}
		return <-gate
	}
	cfg.Options = formz.Options{Metrics: metrics}
	f := formz.NewField(cfg)
	formztest.Eventually(t, time.Second, func() bool { return f.State().Valid }, "initial pass")
	return f, gates
}

func TestField_StaleResultResolvingLastIsDiscarded(t *testing.T) {
	metrics := &discardCounter{}
	f, gates := gatedField(t, metrics)

	f.SetInputValue("a")
	f.SetInputValue("ab")
	if !f.State().Validating {
		t.Fatal("expected validating")
	}

	gates["ab"] <- nil
	formztest.Eventually(t, time.Second, func() bool { return f.State().Valid }, "newer pass commits")

	gates["a"] <- errors.New("stale")
	formztest.Eventually(t, time.Second, func() bool { return metrics.discarded.Load() == 1 }, "stale pass discarded")

	if s := f.State(); !s.Valid || s.Err != nil || s.Value != "ab" {
		t.Errorf("expected stale result ignored, got %+v", s)
	}
}

func TestField_StaleResultResolvingFirstIsDiscarded(t *testing.T) {
	metrics := &discardCounter{}
	f, gates := gatedField(t, metrics)

	f.SetInputValue("a")
	f.SetInputValue("ab")

	gates["a"] <- nil
	formztest.Eventually(t, time.Second, func() bool { return metrics.discarded.Load() == 1 }, "stale pass discarded")
	if s := f.State(); !s.Validating || s.Valid {
		t.Errorf("expected still validating, got %+v", s)
	}

	gates["ab"] <- errors.New("already taken")
	formztest.Eventually(t, time.Second, func() bool { return !f.State().Validating }, "newer pass commits")

	if s := f.State(); s.Valid || s.Err == nil || s.Err.Error() != "already taken" {
		t.Errorf("expected newer rejection committed, got %+v", s)
	}
}

func TestField_AsyncTimeout(t *testing.T) {
	clock := clockz.NewFakeClock()
	started := make(chan struct{}, 1)

	cfg := textConfig()
	cfg.InitialValue = "ada"
	cfg.ValidateAsync = func(ctx context.Context, _ string) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}
	cfg.Options = formz.Options{Clock: clock, ValidationTimeout: 100 * time.Millisecond}
	f := formz.NewField(cfg)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("validator did not start")
	}

	clock.Advance(150 * time.Millisecond)
	clock.BlockUntilReady()

	formztest.Eventually(t, time.Second, func() bool { return !f.State().Validating }, "timeout commits")
	if s := f.State(); !errors.Is(s.Err, formz.ErrValidationTimeout) || s.Valid {
		t.Errorf("expected timeout error, got %+v", s)
	}
}

func TestField_AsyncPanicCountsAsNoError(t *testing.T) {
	metrics := &discardCounter{}
	cfg := textConfig()
	cfg.InitialValue = "ada"
	cfg.ValidateAsync = func(context.Context, string) error {
		panic("remote exploded")
	}
	cfg.Options = formz.Options{Metrics: metrics}
	f := formz.NewField(cfg)

	formztest.Eventually(t, time.Second, func() bool { return f.State().Valid }, "panic resolves")
	if metrics.panics.Load() != 1 {
		t.Errorf("expected 1 panic reported, got %d", metrics.panics.Load())
	}
	if f.State().Err != nil {
		t.Errorf("expected no error, got %v", f.State().Err)
	}
}

func TestField_CancelledContextDiscardsPass(t *testing.T) {
	metrics := &discardCounter{}
	ctx, cancel := context.WithCancel(context.Background())

	cfg := textConfig()
	cfg.InitialValue = "ada"
	cfg.ValidateAsync = func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return errors.New("aborted")
	}
	cfg.Options = formz.Options{Context: ctx, Metrics: metrics}
	f := formz.NewField(cfg)

	cancel()
	formztest.Eventually(t, time.Second, func() bool { return metrics.discarded.Load() == 1 }, "pass discarded")

	if s := f.State(); !s.Validating || s.Err != nil {
		t.Errorf("expected pass left unresolved, got %+v", s)
	}
}

func TestField_TimeoutDoesNotWaitForValidator(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	cfg := textConfig()
	cfg.InitialValue = "ada"
	cfg.ValidateAsync = func(context.Context, string) error {
		<-release
		return nil
	}
	cfg.Options = formz.Options{ValidationTimeout: 20 * time.Millisecond}
	f := formz.NewField(cfg)

	formztest.Eventually(t, time.Second, func() bool { return !f.State().Validating }, "deadline commits")
	if s := f.State(); !errors.Is(s.Err, formz.ErrValidationTimeout) || s.Valid {
		t.Errorf("expected timeout committed at the deadline, got %+v", s)
	}
}

func TestField_LateResultAfterTimeoutIsDropped(t *testing.T) {
	release := make(chan struct{})
	returned := make(chan struct{})

	cfg := textConfig()
	cfg.InitialValue = "ada"
	cfg.ValidateAsync = func(context.Context, string) error {
		<-release
		close(returned)
		return nil
	}
	cfg.Options = formz.Options{ValidationTimeout: 20 * time.Millisecond}
	f := formz.NewField(cfg)

	formztest.Eventually(t, time.Second, func() bool { return !f.State().Validating }, "deadline commits")
	close(release)
	<-returned
	time.Sleep(20 * time.Millisecond)

	if s := f.State(); !errors.Is(s.Err, formz.ErrValidationTimeout) || s.Valid {
		t.Errorf("expected late nil result ignored, got %+v", s)
	}
}

// boxed holds an interface, so == on it panics when V carries a slice.
type boxed struct {
	V any
}

func boxedConfig(initial boxed) formz.FieldConfig[boxed, boxed] {
	return formz.FieldConfig[boxed, boxed]{
		InitialValue: initial,
		ToInput:      func(b boxed) boxed { return b },
		FromInput:    func(b boxed) boxed { return b },
		IsEqual:      formz.DeepEqual[boxed](),
	}
}

func TestField_InterfaceHoldingSliceDoesNotPanic(t *testing.T) {
	f := formz.NewField(boxedConfig(boxed{V: []int{1}}))

	if f.State().Changed {
		t.Error("expected fresh field unchanged")
	}
	if f.SetValue(boxed{V: []int{1}}) {
		t.Error("expected deep-equal value to be ignored")
	}
	if !f.SetInputValue(boxed{V: []int{1, 2}}) {
		t.Fatal("expected new slice to publish")
	}
	if s := f.State(); !s.Changed || !s.Touched {
		t.Errorf("expected changed and touched, got %+v", s)
	}
	if !f.Reset() {
		t.Fatal("expected reset to publish")
	}
	if f.State().Changed {
		t.Error("expected reset to restore baseline")
	}
}

func TestField_DefaultEqualWithInterfaceHoldingSlice(t *testing.T) {
	cfg := boxedConfig(boxed{V: []int{1}})
	cfg.IsEqual = nil
	f := formz.NewField(cfg)

	if f.SetInputValue(boxed{V: []int{1}}) {
		t.Error("expected equal slice content not to republish")
	}
	if !f.SetInputValue(boxed{V: []int{2}}) {
		t.Error("expected different slice content to publish")
	}
}
