package domain

import (
	"errors"
	"fmt"
)

// ErrCourseNotFound is returned when course name resolution runs against an
// empty catalog. An irrelevant best match is not a failure; only the absence
// of any catalog entry is.
var ErrCourseNotFound = errors.New("course not found")

// ErrUnknownCapability is returned when the registry is asked to dispatch a
// name that was never registered. This indicates a configuration defect.
var ErrUnknownCapability = errors.New("unknown capability")

// ParseError reports a malformed course document. Ingestion of that document
// is aborted; other documents in a batch continue.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse error: %s", e.Reason)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Reason)
}
