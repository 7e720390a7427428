package formz

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// tags is the shared validator instance behind Tag and MapRules.
var tags = validator.New()

// Tag returns a Validator that checks a value against a go-playground
// validator tag such as "min=3,max=32" or "email". The returned error is the
// validator.ValidationErrors produced for the value.
func Tag[T any](tag string) Validator[T] {
	return func(v T) error {
		return tags.Var(v, tag)
	}
}

// MapRules returns an ObjectGroup validator that checks the aggregated value
// against per-member validator tags, e.g. {"age": "gte=18"}. Members without
// a rule are not checked.
func MapRules(rules map[string]any) func(map[string]any) map[string]error {
	return func(values map[string]any) map[string]error {
		failed := tags.ValidateMap(values, rules)
		if len(failed) == 0 {
			return nil
		}
		out := make(map[string]error, len(failed))
		for name, res := range failed {
			switch v := res.(type) {
			case error:
				out[name] = v
			case map[string]any:
				out[name] = fmt.Errorf("%s: %d nested rule(s) failed", name, len(v))
			}
		}
		return out
	}
}

// All combines validators, returning the first error.
func All[T any](validators ...Validator[T]) Validator[T] {
	return func(v T) error {
		for _, fn := range validators {
			if fn == nil {
				continue
			}
			if err := fn(v); err != nil {
				return err
			}
		}
		return nil
	}
}
