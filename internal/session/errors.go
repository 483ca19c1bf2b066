package session

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoActiveView is returned when content has to be requested from a
// view but none is attached to the document.
var ErrNoActiveView = errors.New("no active view")

// IOError reports that the backing resource of a document could not be
// read or written.
type IOError struct {
	Op  string
	URI string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URI, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ProtocolError reports that a content request to a view failed.
type ProtocolError struct {
	Op  string
	URI string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URI, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
