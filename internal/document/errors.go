package document

import "errors"

var (
	// ErrMalformed is returned when a snapshot does not have the minimal
	// shape of either schema generation.
	ErrMalformed = errors.New("malformed media kit document")
)
