package element

import "errors"

// Domain errors for the element package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, element.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when an element id does not exist.
	ErrNotFound = errors.New("element: not found")

	// ErrNoDecoder is returned when an element's class has no
	// registered decoder. Such elements yield no published state.
	ErrNoDecoder = errors.New("element: no decoder for class")

	// ErrInvalidElement is returned when an element fails validation.
	ErrInvalidElement = errors.New("element: invalid")
)
