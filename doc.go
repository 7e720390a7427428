/*
Package formz provides reactive form state: fields that hold a raw input and
the value parsed from it, and groups that aggregate fields (or other groups)
into one observable state.

Every node publishes immutable snapshots. A change that leaves the snapshot
equal to the previous one notifies nobody, so subscribers only ever see real
transitions.

# Fields

A Field converts between a raw input type I and a value type T:

	name := formz.NewField(formz.FieldConfig[string, string]{
	    Required:    true,
	    ToInput:     func(v string) string { return v },
	    FormatInput: strings.TrimSpace,
	    FromInput:   func(in string) string { return in },
	    Validate:    formz.Tag[string]("min=3"),
	})

	name.SetInputValue("  ada  ")
	name.State().Value   // "ada"
	name.State().Touched // true

Asynchronous validators run in their own goroutine. The field is Validating
until the pass resolves; a pass resolving after a newer edit is discarded:

	email := formz.NewField(formz.FieldConfig[string, string]{
	    ToInput:   identity,
	    FromInput: identity,
	    ValidateAsync: func(ctx context.Context, v string) error {
	        return users.CheckAvailable(ctx, v)
	    },
	    Options: formz.Options{ValidationTimeout: 2 * time.Second},
	})

# Groups

ArrayGroup and ObjectGroup fold member states into one snapshot: the value is
the list or map of member values, the error collects member errors, and the
flags combine with || (changed, validating, focused, touched) or && (empty,
complete, valid, disabled). Skipped members are left out of the value and
errors.

	signup := formz.NewObjectGroup(formz.ObjectGroupConfig{
	    Fields:   map[string]formz.Node{"name": name, "email": email},
	    Validate: formz.MapRules(map[string]any{"name": "required"}),
	})

Reset on a group resets every member and publishes a single snapshot.

# Baselines

Fields and groups implement Loader, so persisted initial values can be seeded
from JSON or YAML and kept in sync with a watched source:

	err := formz.Sync(ctx, formz.NewFileWatcher("signup.yaml"), signup, formz.YAMLCodec{})

# Observability

Async validation, group membership and baseline loads emit capitan signals
(see signals.go). A MetricsProvider passed through Options receives
validation callbacks.
*/
package formz
