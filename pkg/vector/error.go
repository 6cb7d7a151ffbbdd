package vector

import "errors"

var (
	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrDisabled is returned by the factory when no index is configured.
	ErrDisabled = errors.New("centroid index disabled")
)
