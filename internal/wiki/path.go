// Maps logical page paths to physical file paths and back.

package wiki

import (
	"path"
	"strings"
)

// Extension is appended to a logical page path to form its physical file.
const Extension = ".md"

// Path is the normalized, slash separated logical location of a page inside
// a wiki. It never escapes the wiki root.
type Path string

// NewPath normalizes p and rejects anything that could escape the wiki root.
func NewPath(p string) (Path, error) {
	if strings.ContainsAny(p, "\\\x00") {
		return "", &ValidationError{Field: "path", Reason: "contains forbidden characters"}
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return "", &ValidationError{Field: "path", Reason: "must not be empty"}
	}
	for seg := range strings.SplitSeq(p, "/") {
		switch seg {
		case "":
			return "", &ValidationError{Field: "path", Reason: "contains an empty segment"}
		case ".", "..":
			return "", &ValidationError{Field: "path", Reason: "must not contain relative segments"}
		}
		// Case-insensitive filesystems alias .GIT to the repository metadata.
		if strings.EqualFold(seg, ".git") {
			return "", &ValidationError{Field: "path", Reason: "must not reference repository metadata"}
		}
	}
	return Path(p), nil
}

// MustPath is like NewPath but panics on invalid input. For tests and
// constants.
func MustPath(p string) Path {
	v, err := NewPath(p)
	if err != nil {
		panic(err)
	}
	return v
}

// PathFromFilepath is the reverse of Path.Filepath.
func PathFromFilepath(file string) (Path, error) {
	name, ok := strings.CutSuffix(file, Extension)
	if !ok {
		return "", &ValidationError{Field: "path", Reason: "not a page file: " + file}
	}
	return NewPath(name)
}

// Validate fails unless p is what NewPath returns for it. It catches paths
// built by conversion instead of NewPath.
func (p Path) Validate() error {
	v, err := NewPath(string(p))
	if err != nil {
		return err
	}
	if v != p {
		return &ValidationError{Field: "path", Reason: "not normalized"}
	}
	return nil
}

// Filepath returns the physical file path, relative to the working copy root.
func (p Path) Filepath() string {
	return string(p) + Extension
}

// Dir returns the parent logical directory, or "" at the root.
func (p Path) Dir() string {
	d := path.Dir(string(p))
	if d == "." {
		return ""
	}
	return d
}

// Name returns the last path element.
func (p Path) Name() string {
	return path.Base(string(p))
}

// IsZero returns true if the path is unset.
func (p Path) IsZero() bool {
	return p == ""
}

func (p Path) String() string {
	return string(p)
}
