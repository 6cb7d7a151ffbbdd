package eventstream

import "errors"

// ErrNilScanEvent indicates a nil scan event payload was provided to a publisher.
var ErrNilScanEvent = errors.New("nil scan event")
