package domain

import "errors"

// Error taxonomy. Callers inspect these with errors.Is; concrete failures
// wrap them with fmt.Errorf("...: %w").
var (
	// ErrDecode means the bytes are not a decodable image.
	ErrDecode = errors.New("image decode failed")
	// ErrFetch means the image bytes could not be retrieved in time.
	ErrFetch = errors.New("image fetch failed")
	// ErrAlreadyRegistered means the image is already registered in the scope.
	ErrAlreadyRegistered = errors.New("image already registered in scope")
	// ErrNotFound means the sequence number or scope registration does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable means the rule store could not be consulted.
	ErrStoreUnavailable = errors.New("rule store unavailable")
	// ErrInvalidInput means a request was malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// ErrorKey maps an error to the stable key used for localized messages and
// API error codes.
func ErrorKey(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyRegistered):
		return "already-has"
	case errors.Is(err, ErrNotFound):
		return "non-exist"
	case errors.Is(err, ErrDecode):
		return "bad-image"
	case errors.Is(err, ErrFetch):
		return "fetch-failed"
	case errors.Is(err, ErrStoreUnavailable):
		return "store-unavailable"
	case errors.Is(err, ErrInvalidInput):
		return "invalid-input"
	default:
		return "internal-error"
	}
}
