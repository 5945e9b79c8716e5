// Package wiki defines the immutable value objects of the wiki page store.
//
// Every type in this package is a plain value: it is validated at
// construction and compared by value. Behavior lives in the storage packages.
package wiki

import "strings"

// ID identifies a wiki: the repository backing it and the branch it tracks.
//
// Two IDs with different branches are distinct synchronization domains even
// when they reference the same repository.
type ID struct {
	Repository string
	Branch     string
}

// NewID validates and returns an ID.
func NewID(repository, branch string) (ID, error) {
	id := ID{Repository: repository, Branch: branch}
	if err := id.Validate(); err != nil {
		return ID{}, err
	}
	return id, nil
}

// Validate checks that both parts are usable as on-disk and git names.
func (id ID) Validate() error {
	switch r := id.Repository; {
	case r == "":
		return &ValidationError{Field: "repository", Reason: "must not be empty"}
	case r == "." || r == "..":
		return &ValidationError{Field: "repository", Reason: "must not be a relative directory"}
	case strings.ContainsAny(r, "/\\\x00"):
		return &ValidationError{Field: "repository", Reason: "must be a single path element"}
	}
	switch b := id.Branch; {
	case b == "":
		return &ValidationError{Field: "branch", Reason: "must not be empty"}
	case strings.HasPrefix(b, "-") || strings.HasPrefix(b, "/") || strings.HasSuffix(b, "/"):
		return &ValidationError{Field: "branch", Reason: "invalid ref name"}
	case strings.Contains(b, "..") || strings.Contains(b, "//"):
		return &ValidationError{Field: "branch", Reason: "invalid ref name"}
	case strings.ContainsAny(b, " ~^:?*[\\\x00"):
		return &ValidationError{Field: "branch", Reason: "invalid ref name"}
	}
	return nil
}

// IsZero returns true if the ID is unset.
func (id ID) IsZero() bool {
	return id.Repository == "" && id.Branch == ""
}

func (id ID) String() string {
	return id.Repository + "@" + id.Branch
}
