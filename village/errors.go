package village

import (
	"github.com/goliatone/go-errors"
)

// Text codes attached to store errors.
const (
	CodeNotFound              = "VILLAGE_NOT_FOUND"
	CodeInvalidRecord         = "INVALID_RECORD"
	CodeSerialization         = "SERIALIZATION_ERROR"
	CodeBackendUnavailable    = "BACKEND_UNAVAILABLE"
	CodePartialBindingFailure = "PARTIAL_BINDING"
)

func newError(message string, category errors.Category, code string, source error, meta map[string]any) *errors.Error {
	err := errors.New(message, category).WithTextCode(code)
	err.Source = source
	if len(meta) > 0 {
		err = err.WithMetadata(meta)
	}
	return err
}

// NotFound reports an id that is absent from the cache and every backend.
func NotFound(id string) *errors.Error {
	return newError("village not found", errors.CategoryNotFound, CodeNotFound, nil, map[string]any{"id": id})
}

// InvalidRecord reports a record that failed validation or could not be shaped
// into a village.
func InvalidRecord(id string, source error) *errors.Error {
	return newError("invalid village record", errors.CategoryValidation, CodeInvalidRecord, source, map[string]any{"id": id})
}

// SerializationError reports encoded text that could not be decoded.
func SerializationError(id string, source error) *errors.Error {
	return newError("village record could not be decoded", errors.CategoryBadInput, CodeSerialization, source, map[string]any{"id": id})
}

// BackendUnavailable reports a backend that could not be reached or refused the operation.
func BackendUnavailable(backend string, source error) *errors.Error {
	return newError("backend unavailable", errors.CategoryExternal, CodeBackendUnavailable, source, map[string]any{"backend": backend})
}

// PartialBindingFailure reports a village that was created but could not be
// bound to its identity.
func PartialBindingFailure(subject, villageID string, source error) *errors.Error {
	return newError("village created but identity binding failed", errors.CategoryConflict, CodePartialBindingFailure, source, map[string]any{
		"subject":    subject,
		"village_id": villageID,
	})
}

// HasCode reports whether the outermost store error in err carries code.
func HasCode(err error, code string) bool {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.TextCode == code
	}
	return false
}

// IsNotFound reports whether err is a not found error.
func IsNotFound(err error) bool { return errors.IsNotFound(err) }

// IsInvalidRecord reports whether err carries CodeInvalidRecord.
func IsInvalidRecord(err error) bool { return HasCode(err, CodeInvalidRecord) }

// IsSerializationError reports whether err carries CodeSerialization.
func IsSerializationError(err error) bool { return HasCode(err, CodeSerialization) }

// IsBackendUnavailable reports whether err carries CodeBackendUnavailable.
func IsBackendUnavailable(err error) bool { return HasCode(err, CodeBackendUnavailable) }

// IsPartialBindingFailure reports whether err carries CodePartialBindingFailure.
func IsPartialBindingFailure(err error) bool { return HasCode(err, CodePartialBindingFailure) }
