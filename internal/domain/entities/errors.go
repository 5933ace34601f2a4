package entities

import "github.com/cockroachdb/errors"

// Error kinds. Test with errors.Is; the constructors below mark a
// descriptive error with one of these without changing its message.
var (
	ErrValidation       = errors.New("validation failed")
	ErrReference        = errors.New("referenced entry inactive or missing")
	ErrIndexUnavailable = errors.New("candidate index unavailable")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
)

// ValidationErrorf reports input rejected before it reaches the matcher.
func ValidationErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// ReferenceErrorf reports a manual match to a missing or inactive entry,
// or a delete of an entry that is still referenced.
func ReferenceErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrReference)
}

// NotFoundErrorf reports a lookup by id that found nothing.
func NotFoundErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// ConflictErrorf reports a uniqueness violation.
func ConflictErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConflict)
}

// IndexUnavailable wraps an infrastructure failure of the candidate source.
func IndexUnavailable(cause error) error {
	if cause == nil {
		return ErrIndexUnavailable
	}
	return errors.Mark(errors.Wrap(cause, "candidate index unavailable"), ErrIndexUnavailable)
}
