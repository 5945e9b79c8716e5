// Defines the error taxonomy shared by the page storage layer.

package wiki

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a page does not exist at head, does not exist
// at the requested revision, or the revision is not present in local history.
//
// It is a soft failure: callers typically render a "create page" form.
var ErrNotFound = errors.New("page not found")

// ValidationError reports an invalid value object field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MalformedCommitIDError is returned when a revision identifier is not a
// syntactically valid object name for the underlying history.
type MalformedCommitIDError struct {
	ID  CommitID
	Err error
}

func (e *MalformedCommitIDError) Error() string {
	return fmt.Sprintf("malformed commit id %q", string(e.ID))
}

func (e *MalformedCommitIDError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is the soft not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
