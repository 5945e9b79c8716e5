// Page and Draft values.

package wiki

// Content is the raw textual body of a page.
type Content string

// Page is a page as found in storage or as produced by a successful save. It
// always carries the commit that last touched Path, or the commit it was
// requested at.
type Page struct {
	WikiID ID
	Path   Path
	// OldPath is only set on the page returned by a move: it is the location
	// immediately preceding Path.
	OldPath Path
	Content Content
	Commit  Commit
}

// IsMoved returns true if the page was produced by a move.
func (p *Page) IsMoved() bool {
	return !p.OldPath.IsZero()
}

// Edit returns a draft replacing the page content.
func (p *Page) Edit(content Content, commit PendingCommit) *Draft {
	return &Draft{
		WikiID:  p.WikiID,
		Path:    p.Path,
		Content: content,
		Commit:  commit,
	}
}

// Move returns a draft relocating the page to target, keeping its content.
func (p *Page) Move(target Path, commit PendingCommit) *Draft {
	return &Draft{
		WikiID:  p.WikiID,
		Path:    target,
		OldPath: p.Path,
		Content: p.Content,
		Commit:  commit,
	}
}

// Draft is a page submitted for saving, together with the intended commit.
//
// When OldPath is set the save is a move from OldPath to Path, otherwise it
// creates or edits Path.
type Draft struct {
	WikiID  ID
	Path    Path
	OldPath Path
	Content Content
	Commit  PendingCommit
}

// NewDraft returns a create-or-edit draft.
func NewDraft(id ID, path Path, content Content, commit PendingCommit) *Draft {
	return &Draft{WikiID: id, Path: path, Content: content, Commit: commit}
}

// IsMove returns true if saving the draft moves a page.
func (d *Draft) IsMove() bool {
	return !d.OldPath.IsZero()
}

// Validate checks every field of the draft.
func (d *Draft) Validate() error {
	if err := d.WikiID.Validate(); err != nil {
		return err
	}
	if err := d.Path.Validate(); err != nil {
		return err
	}
	if !d.IsMove() {
		return d.Commit.Validate()
	}
	if err := d.OldPath.Validate(); err != nil {
		return err
	}
	if d.OldPath == d.Path {
		return &ValidationError{Field: "path", Reason: "move target equals source"}
	}
	return d.Commit.Validate()
}
