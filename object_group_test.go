package formz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/zoobzio/formz"
	"github.com/zoobzio/formz/formztest"
)

func signupGroup(t *testing.T) (*formz.ObjectGroup, *formz.Field[string, string], *formz.Field[float64, string]) {
	t.Helper()
	name := formz.NewField(textConfig())
	age := limitedNumber(0)
	g := formz.NewObjectGroup(formz.ObjectGroupConfig{
		Fields: map[string]formz.Node{"name": name, "age": age},
		Options: formz.Options{
			Name: "signup",
		},
	})
	return g, name, age
}

func TestObjectGroup_AggregatesByName(t *testing.T) {
	g, name, age := signupGroup(t)

	name.SetInputValue("ada")
	age.SetInputValue("140")

	s := g.State()
	want := map[string]any{"name": "ada", "age": 140.0}
	if diff := cmp.Diff(want, s.Value); diff != "" {
		t.Errorf("unexpected value (-want +got):\n%s", diff)
	}
	if len(s.Err) != 1 || s.Err["age"] != errBig {
		t.Errorf("expected age error only, got %v", s.Err)
	}
	if s.Err.Error() != "age: big" {
		t.Errorf("unexpected message %q", s.Err.Error())
	}
	if s.Valid || !s.Touched || !s.Changed {
		t.Errorf("unexpected flags %+v", s)
	}
	if g.Name() != "signup" {
		t.Errorf("expected name 'signup', got %q", g.Name())
	}
}

func TestObjectGroup_NamesInKeyOrderThenInsertion(t *testing.T) {
	g, _, _ := signupGroup(t)
	g.SubField("email", formz.NewField(textConfig()))

	if diff := cmp.Diff([]string{"age", "name", "email"}, g.Names()); diff != "" {
		t.Errorf("unexpected names (-want +got):\n%s", diff)
	}
}

func TestObjectGroup_OwnErrorsOverrideMemberKeys(t *testing.T) {
	errAdult := errors.New("must be an adult")
	age := limitedNumber(0)
	g := formz.NewObjectGroup(formz.ObjectGroupConfig{
		Fields: map[string]formz.Node{"age": age},
		Validate: func(values map[string]any) map[string]error {
			if v, _ := values["age"].(float64); v < 18 {
				return map[string]error{"age": errAdult, formz.GroupKey: nil}
			}
			return nil
		},
	})

	age.SetInputValue("140")
	s := g.State()
	if s.Err["age"] != errBig {
		t.Errorf("expected member error, got %v", s.Err)
	}

	age.SetInputValue("12")
	s = g.State()
	if s.Err["age"] != errAdult || len(s.Err) != 1 {
		t.Errorf("expected own error to win, got %v", s.Err)
	}
}

func TestObjectGroup_MapRules(t *testing.T) {
	g := formz.NewObjectGroup(formz.ObjectGroupConfig{
		Fields: map[string]formz.Node{
			"email": formz.NewField(textConfig()),
		},
		Validate: formz.MapRules(map[string]any{"email": "required,email"}),
	})

	email, _ := g.Field("email")
	email.(*formz.Field[string, string]).SetInputValue("nope")
	if g.State().Err["email"] == nil {
		t.Fatal("expected rule error for email")
	}

	email.(*formz.Field[string, string]).SetInputValue("ada@example.com")
	if s := g.State(); s.Err != nil || !s.Valid {
		t.Errorf("expected valid group, got %+v", s)
	}
}

func TestObjectGroup_ResetPublishesOnce(t *testing.T) {
	g, name, age := signupGroup(t)
	name.SetInputValue("ada")
	age.SetInputValue("3")

	calls := 0
	g.Watch(func() { calls++ })

	g.Reset()

	if calls != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", calls)
	}
	if s := g.State(); s.Changed || s.Touched {
		t.Errorf("expected baseline state, got %+v", s)
	}
}

func TestObjectGroup_SubFieldReplacesNode(t *testing.T) {
	g, name, _ := signupGroup(t)

	replacement := formz.NewField(textConfig())
	replacement.SetInputValue("grace")
	g.SubField("name", replacement)

	if v := g.State().Value["name"]; v != "grace" {
		t.Errorf("expected replacement value, got %v", v)
	}

	name.SetInputValue("ignored")
	if v := g.State().Value["name"]; v != "grace" {
		t.Errorf("expected old node detached, got %v", v)
	}
	if node, _ := g.Field("name"); node != formz.Node(replacement) {
		t.Error("expected Field to return the replacement")
	}
}

func TestObjectGroup_UnsubFieldAndRemove(t *testing.T) {
	g, name, age := signupGroup(t)

	if !g.UnsubField("name") {
		t.Fatal("expected detach")
	}
	name.SetInputValue("ada")
	if v := g.State().Value["name"]; v != "" {
		t.Errorf("expected stale value while detached, got %v", v)
	}
	g.SubField("name", name)
	if v := g.State().Value["name"]; v != "ada" {
		t.Errorf("expected refresh on resubscribe, got %v", v)
	}

	if !g.Remove("age") {
		t.Fatal("expected removal")
	}
	age.SetInputValue("7")
	if _, ok := g.State().Value["age"]; ok {
		t.Error("expected removed member left out")
	}
	if _, ok := g.Field("age"); ok {
		t.Error("expected Field to miss removed member")
	}
	if g.UnsubField("age") {
		t.Error("expected detach of unknown member to report false")
	}
}

func TestObjectGroup_OwnAsyncTimeoutUsesGroupKey(t *testing.T) {
	g := formz.NewObjectGroup(formz.ObjectGroupConfig{
		Fields: map[string]formz.Node{"name": formz.NewField(textConfig())},
		ValidateAsync: func(ctx context.Context, _ map[string]any) map[string]error {
			<-ctx.Done()
			return nil
		},
		Options: formz.Options{ValidationTimeout: 20 * time.Millisecond},
	})

	formztest.Eventually(t, time.Second, func() bool { return !g.State().Validating }, "timeout")
	if err := g.State().Err[formz.GroupKey]; !errors.Is(err, formz.ErrValidationTimeout) {
		t.Errorf("expected timeout under group key, got %v", g.State().Err)
	}
}

func TestObjectGroup_InsideArrayGroup(t *testing.T) {
	g, name, _ := signupGroup(t)
	list := formz.NewArrayGroup(formz.ArrayGroupConfig{Fields: []formz.Node{g}})

	name.SetInputValue("ada")

	want := []any{map[string]any{"name": "ada", "age": 0.0}}
	if diff := cmp.Diff(want, list.State().Value); diff != "" {
		t.Errorf("unexpected value (-want +got):\n%s", diff)
	}
}
