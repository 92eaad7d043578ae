package spamcheck

import "errors"

// error kinds reported by the classifier and the score caches.
// the kind is joined into the error chain next to the underlying cause,
// so callers can check it with errors.Is and still unwrap the original error.
var (
	ErrIO                   = errors.New("i/o error")
	ErrSerialization        = errors.New("serialization error")
	ErrInvalidDatasetFormat = errors.New("dataset file is in invalid format")
)
