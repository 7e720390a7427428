package formz

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrRequired is the default error of a required node whose value is empty.
	ErrRequired = errors.New("required")

	// ErrValidationTimeout is committed when an async validator does not
	// finish within the configured validation timeout.
	ErrValidationTimeout = errors.New("validation timed out")
)

// GroupKey is the ErrorMap key of errors that belong to an ObjectGroup as a
// whole rather than to one member.
const GroupKey = "_"

// ErrorList collects member and own errors of an ArrayGroup in member order.
type ErrorList []error

func (l ErrorList) Error() string {
	msgs := make([]string, 0, len(l))
	for _, err := range l {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (l ErrorList) Unwrap() []error {
	return l
}

// orNil returns nil for an empty list so it never reaches an error interface
// as a non-nil empty value.
func (l ErrorList) orNil() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// ErrorMap collects member and own errors of an ObjectGroup by member name.
type ErrorMap map[string]error

func (m ErrorMap) Error() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := m[k]; err != nil {
			msgs = append(msgs, k+": "+err.Error())
		}
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As, ordered by
// member name.
func (m ErrorMap) Unwrap() []error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]error, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func (m ErrorMap) orNil() error {
	if len(m) == 0 {
		return nil
	}
	return m
}
