// Package pages stores wiki pages as files in git working copies. Every
// mutation is recorded as one commit.
package pages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/maruel/smeagol/internal/storage/git"
	"github.com/maruel/smeagol/internal/storage/pull"
	"github.com/maruel/smeagol/internal/wiki"
)

// Store implements page lookups and mutations on top of git working copies.
//
// Operations on one wiki are serialized by the working copy handle. Operations
// on different wikis run concurrently.
type Store struct {
	repos    *git.Manager
	strategy pull.Strategy
}

// New returns a Store refreshing working copies according to strategy.
func New(repos *git.Manager, strategy pull.Strategy) *Store {
	if strategy == nil {
		strategy = pull.Always{}
	}
	return &Store{repos: repos, strategy: strategy}
}

// FindCurrent returns the page at path on the tracked branch head.
//
// Returns wiki.ErrNotFound if the file is absent or has no history.
func (s *Store) FindCurrent(ctx context.Context, id wiki.ID, path wiki.Path) (*wiki.Page, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	h, err := s.open(ctx, id, true)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	file := path.Filepath()
	fi, err := h.FS().Stat(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, wiki.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", file, err)
	}
	if fi.IsDir() {
		return nil, wiki.ErrNotFound
	}
	c, err := h.LastCommit(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to get history of %s: %w", file, err)
	}
	if c == nil {
		slog.DebugContext(ctx, "pages: file has no history", "wiki", id, "path", path)
		return nil, wiki.ErrNotFound
	}
	b, err := h.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return &wiki.Page{
		WikiID:  id,
		Path:    path,
		Content: wiki.Content(b),
		Commit:  toCommit(c),
	}, nil
}

// FindAtRevision returns the page at path as of commit.
//
// Returns *wiki.MalformedCommitIDError if commit is not a valid object name
// and wiki.ErrNotFound if the commit is not in local history or the page did
// not exist at that commit.
func (s *Store) FindAtRevision(ctx context.Context, id wiki.ID, path wiki.Path, commit wiki.CommitID) (*wiki.Page, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	h, err := s.open(ctx, id, true)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return atRevision(ctx, h, id, path, commit)
}

// Save creates, edits or moves a page and records the change in one commit.
//
// A move renames d.OldPath to d.Path. Saving content identical to the current
// file records nothing and returns the page with the last commit touching it.
func (s *Store) Save(ctx context.Context, d *wiki.Draft) (*wiki.Page, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	h, err := s.open(ctx, d.WikiID, true)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	if d.IsMove() {
		return move(ctx, h, d)
	}
	return write(ctx, h, d)
}

// Delete removes the page file and records the removal in one commit.
func (s *Store) Delete(ctx context.Context, p *wiki.Page, commit wiki.PendingCommit) error {
	if err := p.Path.Validate(); err != nil {
		return err
	}
	if err := commit.Validate(); err != nil {
		return err
	}
	h, err := s.open(ctx, p.WikiID, true)
	if err != nil {
		return err
	}
	defer h.Close()

	file := p.Path.Filepath()
	if err := checkNoSymlink(h.FS(), file); err != nil {
		return err
	}
	if err := h.FS().Remove(file); err != nil {
		return fmt.Errorf("failed to delete %s: %w", file, err)
	}
	c, err := h.Commit(ctx, toAuthor(commit.Author), commit.Message, file)
	if err != nil {
		return fmt.Errorf("failed to commit deletion of %s: %w", file, err)
	}
	if c != nil {
		slog.DebugContext(ctx, "pages: deleted", "wiki", p.WikiID, "path", p.Path, "commit", wiki.CommitID(c.Hash).Short())
	}
	return nil
}

// Exists returns true if the page file is present in the working copy.
//
// The working copy is not refreshed, so the answer may be stale.
func (s *Store) Exists(ctx context.Context, id wiki.ID, path wiki.Path) (bool, error) {
	if err := path.Validate(); err != nil {
		return false, err
	}
	h, err := s.open(ctx, id, false)
	if err != nil {
		return false, err
	}
	defer h.Close()

	fi, err := h.FS().Stat(path.Filepath())
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path.Filepath(), err)
	}
	return !fi.IsDir(), nil
}

// History returns up to n commits touching the page, newest first. n <= 0
// means the maximum of 1000.
//
// Returns wiki.ErrNotFound if the page has no history.
func (s *Store) History(ctx context.Context, id wiki.ID, path wiki.Path, n int) ([]wiki.Commit, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	h, err := s.open(ctx, id, true)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	commits, err := h.GetHistory(ctx, path.Filepath(), n)
	if err != nil {
		return nil, fmt.Errorf("failed to get history of %s: %w", path.Filepath(), err)
	}
	if len(commits) == 0 {
		return nil, wiki.ErrNotFound
	}
	out := make([]wiki.Commit, len(commits))
	for i, c := range commits {
		out[i] = toCommit(c)
	}
	return out, nil
}

// Diff returns a line diff of the page between two commits.
//
// Errors are the same as FindAtRevision for either commit.
func (s *Store) Diff(ctx context.Context, id wiki.ID, path wiki.Path, from, to wiki.CommitID) (string, error) {
	if err := path.Validate(); err != nil {
		return "", err
	}
	h, err := s.open(ctx, id, true)
	if err != nil {
		return "", err
	}
	defer h.Close()

	a, err := atRevision(ctx, h, id, path, from)
	if err != nil {
		return "", err
	}
	b, err := atRevision(ctx, h, id, path, to)
	if err != nil {
		return "", err
	}
	return lineDiff(path, a, b), nil
}

// open returns a handle onto the working copy of id, refreshed when refresh
// is set and the strategy allows it. The caller must close it.
func (s *Store) open(ctx context.Context, id wiki.ID, refresh bool) (*git.Handle, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	h, err := s.repos.Open(ctx, id.Repository, id.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to open wiki %s: %w", id, err)
	}
	if refresh && s.strategy.ShouldPull(id) {
		if err := h.Refresh(ctx); err != nil {
			_ = h.Close()
			return nil, err
		}
	}
	return h, nil
}

func atRevision(ctx context.Context, h *git.Handle, id wiki.ID, path wiki.Path, commit wiki.CommitID) (*wiki.Page, error) {
	c, err := h.ResolveCommit(ctx, commit.String())
	switch {
	case errors.Is(err, git.ErrMalformedHash):
		return nil, &wiki.MalformedCommitIDError{ID: commit, Err: err}
	case errors.Is(err, git.ErrCommitNotFound):
		slog.DebugContext(ctx, "pages: revision not in local history", "wiki", id, "commit", commit)
		return nil, wiki.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to resolve %s: %w", commit, err)
	}

	file := path.Filepath()
	b, err := h.GetFileAtCommit(ctx, c.Hash, file)
	if errors.Is(err, fs.ErrNotExist) {
		slog.DebugContext(ctx, "pages: page absent at revision", "wiki", id, "path", path, "commit", commit.Short())
		return nil, wiki.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s at %s: %w", file, commit.Short(), err)
	}
	return &wiki.Page{
		WikiID:  id,
		Path:    path,
		Content: wiki.Content(b),
		Commit:  toCommit(c),
	}, nil
}

func write(ctx context.Context, h *git.Handle, d *wiki.Draft) (*wiki.Page, error) {
	file := d.Path.Filepath()
	if err := checkNoSymlink(h.FS(), file); err != nil {
		return nil, err
	}
	if dir := d.Path.Dir(); dir != "" {
		if err := h.FS().MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := util.WriteFile(h.FS(), file, []byte(d.Content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", file, err)
	}
	c, err := h.Commit(ctx, toAuthor(d.Commit.Author), d.Commit.Message, file)
	if err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", file, err)
	}
	if c == nil {
		// Same content as head.
		if c, err = h.LastCommit(ctx, file); err != nil {
			return nil, fmt.Errorf("failed to get history of %s: %w", file, err)
		}
		if c == nil {
			return nil, fmt.Errorf("no revision recorded for %s", file)
		}
		slog.DebugContext(ctx, "pages: unchanged", "wiki", d.WikiID, "path", d.Path)
	} else {
		slog.DebugContext(ctx, "pages: saved", "wiki", d.WikiID, "path", d.Path, "commit", wiki.CommitID(c.Hash).Short())
	}
	return &wiki.Page{
		WikiID:  d.WikiID,
		Path:    d.Path,
		Content: d.Content,
		Commit:  toCommit(c),
	}, nil
}

func move(ctx context.Context, h *git.Handle, d *wiki.Draft) (*wiki.Page, error) {
	src := d.OldPath.Filepath()
	dst := d.Path.Filepath()
	// The returned page is named after the files actually committed.
	to, err := wiki.PathFromFilepath(dst)
	if err != nil {
		return nil, err
	}
	from, err := wiki.PathFromFilepath(src)
	if err != nil {
		return nil, err
	}
	for _, f := range []string{src, dst} {
		if err := checkNoSymlink(h.FS(), f); err != nil {
			return nil, err
		}
	}
	if _, err := h.FS().Stat(src); err != nil {
		return nil, fmt.Errorf("failed to move %s: %w", src, err)
	}
	if _, err := h.FS().Stat(dst); err == nil {
		return nil, fmt.Errorf("failed to move %s to %s: %w", src, dst, fs.ErrExist)
	}
	if dir := d.Path.Dir(); dir != "" {
		if err := h.FS().MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := h.FS().Rename(src, dst); err != nil {
		return nil, fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	b, err := h.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dst, err)
	}
	c, err := h.Commit(ctx, toAuthor(d.Commit.Author), d.Commit.Message, src, dst)
	if err != nil {
		return nil, fmt.Errorf("failed to commit move of %s: %w", src, err)
	}
	if c == nil {
		return nil, fmt.Errorf("no revision recorded for move of %s", src)
	}
	slog.DebugContext(ctx, "pages: moved", "wiki", d.WikiID, "from", from, "to", to, "commit", wiki.CommitID(c.Hash).Short())
	return &wiki.Page{
		WikiID:  d.WikiID,
		Path:    to,
		OldPath: from,
		Content: wiki.Content(b),
		Commit:  toCommit(c),
	}, nil
}

// checkNoSymlink fails if file or one of its parent directories is a symbolic
// link. Missing trailing elements are fine.
func checkNoSymlink(fsys billy.Filesystem, file string) error {
	cur := ""
	for seg := range strings.SplitSeq(file, "/") {
		if cur != "" {
			cur += "/"
		}
		cur += seg
		fi, err := fsys.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", cur, err)
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return &wiki.ValidationError{Field: "path", Reason: cur + " is a symbolic link"}
		}
	}
	return nil
}

func toAuthor(a wiki.Author) git.Author {
	return git.Author{Name: a.DisplayName, Email: a.Email}
}

func toCommit(c *git.Commit) wiki.Commit {
	return wiki.Commit{
		ID:      wiki.CommitID(c.Hash),
		Author:  wiki.Author{DisplayName: c.Author, Email: c.AuthorEmail},
		Message: c.FullMessage(),
		Date:    c.AuthorDate,
	}
}
