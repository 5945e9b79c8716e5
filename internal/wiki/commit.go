// Revision related value objects.

package wiki

import (
	"strings"
	"time"
)

// CommitID is an opaque, version control native revision identifier.
//
// Only emptiness is checked here. Syntax is validated lazily when the id is
// resolved against history, yielding *MalformedCommitIDError.
type CommitID string

// NewCommitID returns a CommitID after trimming whitespace.
func NewCommitID(s string) (CommitID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ValidationError{Field: "commit id", Reason: "must not be empty"}
	}
	return CommitID(s), nil
}

func (c CommitID) String() string {
	return string(c)
}

// Short returns the abbreviated form used in logs and listings.
func (c CommitID) Short() string {
	if len(c) > 7 {
		return string(c[:7])
	}
	return string(c)
}

// Author identifies who made a change.
type Author struct {
	DisplayName string
	Email       string
}

// NewAuthor validates and returns an Author.
func NewAuthor(displayName, email string) (Author, error) {
	a := Author{DisplayName: strings.TrimSpace(displayName), Email: strings.TrimSpace(email)}
	if err := a.Validate(); err != nil {
		return Author{}, err
	}
	return a, nil
}

// Validate checks that both fields are set.
func (a Author) Validate() error {
	if a.DisplayName == "" {
		return &ValidationError{Field: "author name", Reason: "must not be empty"}
	}
	if a.Email == "" {
		return &ValidationError{Field: "author email", Reason: "must not be empty"}
	}
	if !strings.Contains(a.Email, "@") {
		return &ValidationError{Field: "author email", Reason: "must contain @"}
	}
	return nil
}

func (a Author) String() string {
	return a.DisplayName + " <" + a.Email + ">"
}

// PendingCommit is the author and message of a revision that has not been
// created yet. It has no ID; the storage engine assigns one on save.
type PendingCommit struct {
	Author  Author
	Message string
}

// NewPendingCommit validates and returns a PendingCommit.
func NewPendingCommit(author Author, message string) (PendingCommit, error) {
	c := PendingCommit{Author: author, Message: strings.TrimSpace(message)}
	if err := c.Validate(); err != nil {
		return PendingCommit{}, err
	}
	return c, nil
}

// Validate checks the author and that the message is not empty.
func (c PendingCommit) Validate() error {
	if err := c.Author.Validate(); err != nil {
		return err
	}
	if c.Message == "" {
		return &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	return nil
}

// Commit is a revision persisted in history.
type Commit struct {
	ID      CommitID
	Author  Author
	Message string
	Date    time.Time
}
