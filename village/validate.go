package village

import (
	stderrors "errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
)

// ValidationResult carries every violated rule of a record, keyed by field path
// such as "maps.0.stone".
type ValidationResult struct {
	Fields errors.ValidationErrors
}

// Valid reports whether no rule was violated.
func (r ValidationResult) Valid() bool {
	return len(r.Fields) == 0
}

// Err returns the violations as a validation error, or nil.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return errors.NewValidation("village record failed validation", r.Fields...)
}

// Violates reports whether the rule at path was violated.
func (r ValidationResult) Violates(path string) bool {
	for _, f := range r.Fields {
		if f.Field == path {
			return true
		}
	}
	return false
}

var (
	errNotMapping = stderrors.New("must be a mapping")
	errNotList    = stderrors.New("must be a list")
	errForbidden  = stderrors.New("legacy field must not be present")
)

func isMapping(value any) error {
	if m, ok := value.(map[string]any); ok && m != nil {
		return nil
	}
	return errNotMapping
}

func isList(value any) error {
	if _, ok := value.([]any); ok {
		return nil
	}
	if _, ok := value.([]map[string]any); ok {
		return nil
	}
	return errNotList
}

func forbidden(any) error {
	return errForbidden
}

var mapEntryRules = validation.Map(
	validation.Key("oil"),
	validation.Key("steel"),
	validation.Key("items", validation.By(isMapping)),
	validation.Key("stone", validation.By(forbidden)).Optional(),
	validation.Key("food", validation.By(forbidden)).Optional(),
).AllowExtraKeys()

func mapEntry(value any) error {
	m, ok := value.(map[string]any)
	if !ok || m == nil {
		return errNotMapping
	}
	return mapEntryRules.Validate(m)
}

var recordRules = validation.Map(
	validation.Key("playerInfo", validation.By(isMapping)),
	validation.Key("maps", validation.By(isList), validation.Each(validation.By(mapEntry))),
	validation.Key("privateState", validation.By(isMapping)),
).AllowExtraKeys()

// Validate checks rec against the village shape rules. It never panics.
func Validate(rec Record) ValidationResult {
	if rec == nil {
		return ValidationResult{Fields: errors.ValidationErrors{{Field: "record", Message: "record is empty"}}}
	}

	err := recordRules.Validate(map[string]any(rec))
	if err == nil {
		return ValidationResult{}
	}

	var fields errors.ValidationErrors
	flatten("", err, &fields)
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return ValidationResult{Fields: fields}
}

// IsValid reports whether rec satisfies every village shape rule.
func IsValid(rec Record) bool {
	return Validate(rec).Valid()
}

func flatten(prefix string, err error, out *errors.ValidationErrors) {
	var nested validation.Errors
	if stderrors.As(err, &nested) {
		for key, child := range nested {
			flatten(joinPath(prefix, key), child, out)
		}
		return
	}

	field := prefix
	if field == "" {
		field = "record"
	}
	*out = append(*out, errors.FieldError{Field: field, Message: strings.TrimSpace(err.Error())})
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
