package formz

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// StripHTML removes every tag from free-text input and unescapes the
// remaining entities, so "<b>Ada</b> &amp; co" becomes "Ada & co".
func StripHTML(in string) string {
	return html.UnescapeString(strict.Sanitize(in))
}

// Formats chains input formatters left to right. Use it as a FieldConfig
// FormatInput.
func Formats[I any](fns ...func(I) I) func(I) I {
	return func(in I) I {
		for _, fn := range fns {
			in = fn(in)
		}
		return in
	}
}

// CollapseSpace trims the input and folds inner runs of whitespace to a
// single space.
func CollapseSpace(in string) string {
	return strings.Join(strings.Fields(in), " ")
}
