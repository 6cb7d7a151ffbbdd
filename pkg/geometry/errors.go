package geometry

import "fmt"

// EncodingError is returned when a mesh cannot be rendered as a surface.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return "cannot encode geometry: " + e.Reason
}

// DecodeError is returned when geometry text cannot be parsed.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode geometry at offset %d: %s", e.Offset, e.Reason)
}
