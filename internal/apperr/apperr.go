// Package apperr defines the error kinds shared by the access rules, the
// board service and the HTTP layer.
package apperr

import "errors"

// Kind classifies a failure so the transport can pick a status code.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindPermission      Kind = "permission"
	KindNotFound        Kind = "not_found"
	KindUnauthenticated Kind = "unauthenticated"
	KindConflict        Kind = "conflict"
)

// NonField is the field name used for errors that are not tied to one input.
const NonField = "non_field_errors"

// Error is a domain failure with an optional field attribution.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind and field.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Field == "" || e.Field == t.Field)
}

func Validation(field, message string) *Error {
	if field == "" {
		field = NonField
	}
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Permission(message string) *Error {
	return &Error{Kind: KindPermission, Message: message}
}

// PermissionField is a permission failure attributed to the field that
// triggered it.
func PermissionField(field, message string) *Error {
	return &Error{Kind: KindPermission, Field: field, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

func Conflict(field, message string) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: message}
}

// Wrap attaches a cause to a new error of the given kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none. A *ValidationErrors counts as KindValidation.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var v *ValidationErrors
	if errors.As(err, &v) {
		return KindValidation
	}
	return ""
}

// Fields collects field-scoped messages for validation responses.
type Fields map[string][]string

func (f Fields) Add(field, message string) {
	if field == "" {
		field = NonField
	}
	f[field] = append(f[field], message)
}

// Check records err under its field. A nil err is a no-op; errors that are
// not *Error land in NonField.
func (f Fields) Check(err error) {
	if err == nil {
		return
	}
	var e *Error
	if errors.As(err, &e) {
		f.Add(e.Field, e.Message)
		return
	}
	f.Add(NonField, err.Error())
}

// ValidationErrors carries several field failures at once, as produced by
// input decoding before any rule runs.
type ValidationErrors struct {
	Fields Fields
}

func (v *ValidationErrors) Error() string {
	for field, msgs := range v.Fields {
		if len(msgs) > 0 {
			return field + ": " + msgs[0]
		}
	}
	return "invalid input"
}

// Collect returns nil when no fields were recorded.
func Collect(f Fields) error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationErrors{Fields: f}
}
