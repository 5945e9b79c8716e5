// Implements Repository using go-git (pure Go, no git binary dependency).

package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GoGitRepo implements Repository using go-git (pure Go).
type GoGitRepo struct {
	dir          string
	defaultName  string
	defaultEmail string
	repo         *gogit.Repository
	fs           billy.Filesystem
}

func newGoGitRepo(ctx context.Context, dir, branch, remote, defaultName, defaultEmail string) (*GoGitRepo, error) {
	repo, err := gogit.PlainOpen(dir)
	switch {
	case err == nil:
	case remote != "":
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
			return nil, fmt.Errorf("failed to create repo directory: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
		defer cancel()
		repo, err = gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
			URL:           remote,
			ReferenceName: plumbing.NewBranchReferenceName(branch),
			SingleBranch:  true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to clone %s: %w", remote, err)
		}
	default:
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
			return nil, fmt.Errorf("failed to create repo directory: %w", err)
		}
		// Not a repo yet, initialize on the tracked branch.
		repo, err = gogit.PlainInitWithOptions(dir, &gogit.PlainInitOptions{
			InitOptions: gogit.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
	}

	// Set user.name and user.email in the repo config.
	cfg, err := repo.Config()
	if err != nil {
		return nil, fmt.Errorf("failed to read git config: %w", err)
	}
	if cfg.User.Name == "" || cfg.User.Email == "" {
		cfg.User.Name = defaultName
		cfg.User.Email = defaultEmail
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}

	return &GoGitRepo{
		dir:          dir,
		defaultName:  defaultName,
		defaultEmail: defaultEmail,
		repo:         repo,
		fs:           osfs.New(dir, osfs.WithBoundOS()),
	}, nil
}

// Dir returns the working copy root directory.
func (r *GoGitRepo) Dir() string {
	return r.dir
}

// FS returns a read-write filesystem rooted at the working copy.
func (r *GoGitRepo) FS() billy.Filesystem {
	return r.fs
}

// Commit stages files and records them in one commit.
func (r *GoGitRepo) Commit(ctx context.Context, author Author, msg string, files []string) (*Commit, error) {
	if len(files) == 0 {
		return nil, nil
	}

	w, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	// Add records a deletion when the file is gone from the worktree.
	wanted := make(map[string]bool, len(files))
	for _, f := range files {
		f = filepath.ToSlash(f)
		wanted[f] = true
		if _, err := w.Add(f); err != nil {
			return nil, fmt.Errorf("failed to stage %s: %w", f, err)
		}
	}

	status, err := w.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree status: %w", err)
	}
	changed := false
	var stray []string
	for f, s := range status {
		if s.Staging == gogit.Unmodified || s.Staging == gogit.Untracked {
			continue
		}
		if wanted[f] {
			changed = true
		} else {
			stray = append(stray, f)
		}
	}
	if !changed {
		return nil, nil
	}
	// go-git commits the whole index; unstage what the caller did not name.
	if len(stray) != 0 {
		slog.WarnContext(ctx, "git: unstaging unrelated changes", "dir", r.dir, "files", stray)
		if err := w.Restore(&gogit.RestoreOptions{Staged: true, Files: stray}); err != nil {
			return nil, fmt.Errorf("failed to unstage %v: %w", stray, err)
		}
	}

	name := author.Name
	email := author.Email
	if name == "" {
		name = r.defaultName
	}
	if email == "" {
		email = r.defaultEmail
	}

	now := time.Now()
	h, err := w.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  name,
			Email: email,
			When:  now,
		},
		Committer: &object.Signature{
			Name:  r.defaultName,
			Email: r.defaultEmail,
			When:  now,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	c, err := r.repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("failed to read back commit: %w", err)
	}
	return toCommit(c), nil
}

// GetHistory returns commit history for a specific path, limited to n commits.
func (r *GoGitRepo) GetHistory(_ context.Context, path string, n int) ([]*Commit, error) {
	if n <= 0 || n > maxHistory {
		n = maxHistory
	}

	opts := &gogit.LogOptions{}
	if path != "" && path != "." {
		p := filepath.ToSlash(path)
		opts.FileName = &p
	}

	iter, err := r.repo.Log(opts)
	if err != nil {
		return nil, nil // no commits yet is not an error
	}
	defer iter.Close()

	var commits []*Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		commits = append(commits, toCommit(c))
	}
	return commits, nil
}

// ResolveCommit returns the commit named by hash.
func (r *GoGitRepo) ResolveCommit(_ context.Context, hash string) (*Commit, error) {
	if !ValidHash(hash) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedHash, hash)
	}
	if len(hash) != 2*len(plumbing.ZeroHash) {
		// Well-formed for another object format.
		return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, hash)
	}
	c, err := r.repo.CommitObject(plumbing.NewHash(hash))
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return toCommit(c), nil
}

// GetFileAtCommit retrieves the content of a file at a specific commit.
func (r *GoGitRepo) GetFileAtCommit(_ context.Context, hash, filePath string) ([]byte, error) {
	h := plumbing.NewHash(hash)
	if hash == "HEAD" {
		ref, err := r.repo.Head()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
		}
		h = ref.Hash()
	}

	c, err := r.repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	f, err := c.File(filepath.ToSlash(filePath))
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, &fs.PathError{Op: "open", Path: filePath, Err: fs.ErrNotExist}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file at commit: %w", err)
	}

	reader, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}

// SetRemote adds or updates a remote in the repository.
func (r *GoGitRepo) SetRemote(_ context.Context, name, url string) error {
	if url == "" {
		err := r.repo.DeleteRemote(name)
		if errors.Is(err, gogit.ErrRemoteNotFound) {
			return nil
		}
		return err
	}

	// Check if remote already exists.
	if rem, err := r.repo.Remote(name); err == nil {
		if urls := rem.Config().URLs; len(urls) == 1 && urls[0] == url {
			return nil
		}
		// Exists, delete and re-create (go-git has no set-url).
		if err := r.repo.DeleteRemote(name); err != nil {
			return fmt.Errorf("failed to update remote: %w", err)
		}
	}

	_, err := r.repo.CreateRemote(&config.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	return err
}

// Push pushes changes to a remote repository.
func (r *GoGitRepo) Push(ctx context.Context, remoteName, branch string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
	defer cancel()

	if branch == "" {
		ref, err := r.repo.Head()
		if err == nil {
			branch = ref.Name().Short()
		} else {
			branch = "master"
		}
	}

	remote, err := r.repo.Remote(remoteName)
	if err != nil {
		return fmt.Errorf("failed to get remote: %w", err)
	}

	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err = remote.PushContext(ctx, &gogit.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{refSpec},
	})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// Pull fetches and fast-forwards from a remote.
func (r *GoGitRepo) Pull(ctx context.Context, remoteName, branch string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
	defer cancel()

	w, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	err = w.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    remoteName,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func toCommit(c *object.Commit) *Commit {
	// Split message into subject and body.
	subject, body, _ := strings.Cut(c.Message, "\n")
	return &Commit{
		Hash:           c.Hash.String(),
		Message:        strings.TrimSpace(subject),
		Body:           strings.TrimSpace(body),
		Author:         c.Author.Name,
		AuthorEmail:    c.Author.Email,
		AuthorDate:     c.Author.When,
		Committer:      c.Committer.Name,
		CommitterEmail: c.Committer.Email,
		CommitDate:     c.Committer.When,
	}
}
