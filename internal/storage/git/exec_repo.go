// Implements Repository using os/exec git commands.

package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// logFormat uses a record separator (%x1e) between commits since body can
// contain newlines.
const logFormat = "%H%x00%an%x00%ae%x00%ai%x00%cn%x00%ce%x00%ci%x00%s%x00%b%x1e"

// ExecRepo implements Repository using os/exec git commands.
type ExecRepo struct {
	dir          string
	defaultName  string
	defaultEmail string
	fs           billy.Filesystem
}

func newExecRepo(ctx context.Context, dir, branch, remote, defaultName, defaultEmail string) (*ExecRepo, error) {
	r := &ExecRepo{
		dir:          dir,
		defaultName:  defaultName,
		defaultEmail: defaultEmail,
		fs:           osfs.New(dir, osfs.WithBoundOS()),
	}
	if err := r.init(ctx, branch, remote); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ExecRepo) init(ctx context.Context, branch, remote string) error {
	gitDir := filepath.Join(r.dir, ".git")
	if _, err := os.Stat(gitDir); !os.IsNotExist(err) {
		return nil
	}
	if remote != "" {
		if err := os.MkdirAll(filepath.Dir(r.dir), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
			return fmt.Errorf("failed to create repo directory: %w", err)
		}
		if err := r.clone(ctx, branch, remote); err != nil {
			return err
		}
	} else {
		if err := os.MkdirAll(r.dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
			return fmt.Errorf("failed to create repo directory: %w", err)
		}
		if err := r.gitRun(ctx, "init"); err != nil {
			return fmt.Errorf("failed to initialize git repo: %w", err)
		}
		if err := r.gitRun(ctx, "symbolic-ref", "HEAD", "refs/heads/"+branch); err != nil {
			return fmt.Errorf("failed to set initial branch: %w", err)
		}
	}
	if err := r.gitRun(ctx, "config", "user.email", r.defaultEmail); err != nil {
		return fmt.Errorf("failed to configure git user.email: %w", err)
	}
	if err := r.gitRun(ctx, "config", "user.name", r.defaultName); err != nil {
		return fmt.Errorf("failed to configure git user.name: %w", err)
	}
	return nil
}

func (r *ExecRepo) clone(ctx context.Context, branch, remote string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
	defer cancel()
	cmd := r.gitCmd(ctx, "clone", "--branch", branch, "--single-branch", "--", remote, r.dir)
	cmd.Dir = filepath.Dir(r.dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to clone %s: %w\nOutput: %s", remote, err, string(out))
	}
	return nil
}

// Dir returns the working copy root directory.
func (r *ExecRepo) Dir() string {
	return r.dir
}

// FS returns a read-write filesystem rooted at the working copy.
func (r *ExecRepo) FS() billy.Filesystem {
	return r.fs
}

// Commit stages files and records them in one commit.
func (r *ExecRepo) Commit(ctx context.Context, author Author, message string, files []string) (*Commit, error) {
	if len(files) == 0 {
		return nil, nil
	}

	// -A stages deletions too.
	args := append([]string{"add", "-A", "--"}, files...)
	if out, err := r.gitCombinedOutput(ctx, args...); err != nil {
		return nil, fmt.Errorf("failed to stage files: %w\nOutput: %s", err, string(out))
	}

	// Exit code 1 means there are staged differences.
	args = append([]string{"diff", "--cached", "--quiet", "--"}, files...)
	err := r.gitRun(ctx, args...)
	if err == nil {
		return nil, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		return nil, fmt.Errorf("failed to check staged changes: %w", err)
	}

	name := author.Name
	email := author.Email
	if name == "" {
		name = r.defaultName
	}
	if email == "" {
		email = r.defaultEmail
	}

	authorStr := fmt.Sprintf("%s <%s>", name, email)
	args = append([]string{"commit", "-m", message, "--author", authorStr, "--"}, files...)
	if out, err := r.gitCombinedOutput(ctx, args...); err != nil {
		return nil, fmt.Errorf("failed to commit: %w\nOutput: %s", err, string(out))
	}

	commits, err := r.log(ctx, "-n1", "HEAD")
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, errors.New("failed to read back commit")
	}
	return commits[0], nil
}

// GetHistory returns commit history for a specific path, limited to n commits.
// n is capped at 1000. If n <= 0, defaults to 1000.
func (r *ExecRepo) GetHistory(ctx context.Context, path string, n int) ([]*Commit, error) {
	if n <= 0 || n > maxHistory {
		n = maxHistory
	}
	args := []string{fmt.Sprintf("-n%d", n)}
	if path != "" && path != "." {
		args = append(args, "--", path)
	}
	commits, err := r.log(ctx, args...)
	if err != nil {
		return nil, nil //nolint:nilerr // git log returns error for paths with no history, which is not an error condition
	}
	return commits, nil
}

// ResolveCommit returns the commit named by hash.
func (r *ExecRepo) ResolveCommit(ctx context.Context, hash string) (*Commit, error) {
	if !ValidHash(hash) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedHash, hash)
	}
	out, err := r.gitOutput(ctx, "cat-file", "-t", hash)
	if err != nil || strings.TrimSpace(string(out)) != "commit" {
		return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, hash)
	}
	commits, err := r.log(ctx, "-n1", hash)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, hash)
	}
	return commits[0], nil
}

// GetFileAtCommit retrieves the content of a file at a specific commit.
func (r *ExecRepo) GetFileAtCommit(ctx context.Context, hash, filePath string) ([]byte, error) {
	out, err := r.gitOutput(ctx, "rev-parse", "--verify", "--quiet", hash+":"+filePath)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: filePath, Err: fs.ErrNotExist}
	}
	obj := strings.TrimSpace(string(out))
	out, err = r.gitOutput(ctx, "cat-file", "-t", obj)
	if err != nil || strings.TrimSpace(string(out)) != "blob" {
		return nil, &fs.PathError{Op: "open", Path: filePath, Err: fs.ErrNotExist}
	}
	out, err = r.gitOutput(ctx, "cat-file", "blob", obj)
	if err != nil {
		return nil, fmt.Errorf("failed to get file at commit: %w", err)
	}
	return out, nil
}

// SetRemote adds or updates a remote in the repository.
// If url is empty, the remote is removed.
func (r *ExecRepo) SetRemote(ctx context.Context, name, url string) error {
	// Check if remote already exists
	out, err := r.gitCombinedOutput(ctx, "remote")
	exists := false
	if err == nil {
		for rem := range strings.SplitSeq(string(out), "\n") {
			if strings.TrimSpace(rem) == name {
				exists = true
				break
			}
		}
	}

	if url == "" {
		if exists {
			return r.gitRun(ctx, "remote", "remove", name)
		}
		return nil
	}

	if exists {
		return r.gitRun(ctx, "remote", "set-url", name, url)
	}
	return r.gitRun(ctx, "remote", "add", name, url)
}

// Push pushes changes to a remote repository.
func (r *ExecRepo) Push(ctx context.Context, remoteName, branch string) error {
	if branch == "" {
		branch = "master"
		// Check if current branch is different
		out, err := r.gitCombinedOutput(ctx, "rev-parse", "--abbrev-ref", "HEAD")
		if err == nil {
			branch = strings.TrimSpace(string(out))
		}
	}

	if out, err := r.gitCombinedOutput(ctx, "push", remoteName, branch); err != nil {
		return fmt.Errorf("%w\nOutput: %s", err, string(out))
	}
	return nil
}

// Pull fetches and fast-forwards from a remote.
func (r *ExecRepo) Pull(ctx context.Context, remoteName, branch string) (bool, error) {
	before, _ := r.gitOutput(ctx, "rev-parse", "HEAD")
	if out, err := r.gitCombinedOutput(ctx, "pull", "--ff-only", remoteName, branch); err != nil {
		return false, fmt.Errorf("%w\nOutput: %s", err, string(out))
	}
	after, err := r.gitOutput(ctx, "rev-parse", "HEAD")
	if err != nil {
		return false, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return !bytes.Equal(before, after), nil
}

// log runs git log with logFormat and parses the records.
func (r *ExecRepo) log(ctx context.Context, args ...string) ([]*Commit, error) {
	args = append([]string{"log", "--pretty=format:" + logFormat}, args...)
	out, err := r.gitOutput(ctx, args...)
	if err != nil {
		return nil, err
	}

	var commits []*Commit
	for record := range strings.SplitSeq(string(out), "\x1e") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}

		parts := strings.Split(record, "\x00")
		if len(parts) < 9 {
			continue
		}

		authorDate, _ := time.Parse("2006-01-02 15:04:05 -0700", parts[3])
		commitDate, _ := time.Parse("2006-01-02 15:04:05 -0700", parts[6])

		commits = append(commits, &Commit{
			Hash:           parts[0],
			Author:         parts[1],
			AuthorEmail:    parts[2],
			AuthorDate:     authorDate,
			Committer:      parts[4],
			CommitterEmail: parts[5],
			CommitDate:     commitDate,
			Message:        parts[7],
			Body:           strings.TrimSpace(parts[8]),
		})
	}
	return commits, nil
}

// gitCmd creates an exec.Cmd for git with standard environment settings.
func (r *ExecRepo) gitCmd(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_GLOBAL=/dev/null",
		"GIT_CONFIG_SYSTEM=/dev/null",
		"GIT_TERMINAL_PROMPT=0",
		// Page names may contain *, ? and [.
		"GIT_LITERAL_PATHSPECS=1",
	)
	return cmd
}

// gitRun executes a git command using a detached context with timeout.
//
// The command is NOT tied to the caller's cancellation, so a working copy is
// never left half-updated.
func (r *ExecRepo) gitRun(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
	defer cancel()
	return r.gitCmd(ctx, args...).Run()
}

// gitOutput executes a git command and returns its stdout.
func (r *ExecRepo) gitOutput(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
	defer cancel()
	return r.gitCmd(ctx, args...).Output()
}

// gitCombinedOutput executes a git command and returns combined stdout/stderr.
func (r *ExecRepo) gitCombinedOutput(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
	defer cancel()
	return r.gitCmd(ctx, args...).CombinedOutput()
}
