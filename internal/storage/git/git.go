// Defines the Repository interface, Manager, Handle and shared types for git operations.

package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
)

var (
	// ErrMalformedHash is returned when a revision identifier is not a full
	// hexadecimal object name.
	ErrMalformedHash = errors.New("malformed object name")
	// ErrCommitNotFound is returned when a well-formed revision identifier is
	// not present in local history.
	ErrCommitNotFound = errors.New("commit not found")
)

// DefaultRemote is the remote name used for upstream synchronization.
const DefaultRemote = "origin"

// maxHistory caps GetHistory.
const maxHistory = 1000

// InjectTokenInURL injects an authentication token into a git remote URL.
// Supports GitHub (x-access-token) and GitLab (oauth2) URL patterns.
func InjectTokenInURL(remoteURL, token, remoteType string) string {
	if token == "" {
		return remoteURL
	}
	switch {
	case strings.Contains(remoteURL, "github.com") || remoteType == "github":
		return strings.Replace(remoteURL, "https://github.com", fmt.Sprintf("https://x-access-token:%s@github.com", token), 1)
	case strings.Contains(remoteURL, "gitlab.com") || remoteType == "gitlab":
		return strings.Replace(remoteURL, "https://gitlab.com", fmt.Sprintf("https://oauth2:%s@gitlab.com", token), 1)
	default:
		return remoteURL
	}
}

// ValidHash returns true if s is a full SHA-1 or SHA-256 object name.
func ValidHash(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// Repository is the interface for git operations on a single working copy.
//
// Implementations are not safe for concurrent use; the Manager serializes
// access through Handle.
type Repository interface {
	// Dir returns the working copy root directory.
	Dir() string
	// FS returns a read-write filesystem rooted at the working copy.
	FS() billy.Filesystem
	// Commit stages files (additions, modifications and deletions) and
	// records them in one commit. Returns nil if nothing changed.
	Commit(ctx context.Context, author Author, msg string, files []string) (*Commit, error)
	// GetHistory returns commit history for a specific path, limited to n commits.
	// n is capped at 1000. If n <= 0, defaults to 1000.
	GetHistory(ctx context.Context, path string, n int) ([]*Commit, error)
	// ResolveCommit returns the commit named by hash.
	// Returns ErrMalformedHash or ErrCommitNotFound.
	ResolveCommit(ctx context.Context, hash string) (*Commit, error)
	// GetFileAtCommit retrieves the content of a file at a specific commit.
	// Returns an error wrapping fs.ErrNotExist if the file is absent there.
	GetFileAtCommit(ctx context.Context, hash, filePath string) ([]byte, error)
	// SetRemote adds or updates a remote in the repository.
	// If url is empty, the remote is removed.
	SetRemote(ctx context.Context, name, url string) error
	// Push pushes changes to a remote repository.
	Push(ctx context.Context, remoteName, branch string) error
	// Pull fetches and fast-forwards from a remote. Returns true if HEAD moved.
	Pull(ctx context.Context, remoteName, branch string) (changed bool, err error)
}

// Backend selects which git implementation to use.
type Backend int

const (
	// BackendExec uses the git CLI via os/exec (default).
	BackendExec Backend = iota
	// BackendGoGit uses go-git (pure Go, no git binary needed).
	BackendGoGit
)

// ParseBackend converts a configuration string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "", "exec":
		return BackendExec, nil
	case "gogit", "go-git":
		return BackendGoGit, nil
	default:
		return 0, fmt.Errorf("unknown git backend %q", s)
	}
}

func (b Backend) String() string {
	if b == BackendGoGit {
		return "gogit"
	}
	return "exec"
}

// Manager creates and caches one working copy per (repository, branch) and
// hands out exclusive, scoped Handles onto them.
type Manager struct {
	rootDir      string
	defaultName  string
	defaultEmail string
	backend      Backend
	autoPush     bool

	mu      sync.RWMutex
	remotes map[string]string // repository -> url

	copies sync.Map // dir -> *workingCopy
}

type workingCopy struct {
	mu     sync.Mutex
	repo   Repository
	remote string
}

// NewManager creates a new git repository manager using the exec backend.
func NewManager(rootDir, defaultName, defaultEmail string) *Manager {
	return NewManagerWithBackend(rootDir, defaultName, defaultEmail, BackendExec)
}

// NewManagerWithBackend creates a new git repository manager with the given backend.
func NewManagerWithBackend(rootDir, defaultName, defaultEmail string, backend Backend) *Manager {
	if defaultName == "" {
		defaultName = "smeagol"
	}
	if defaultEmail == "" {
		defaultEmail = "smeagol@localhost"
	}
	return &Manager{
		rootDir:      rootDir,
		defaultName:  defaultName,
		defaultEmail: defaultEmail,
		backend:      backend,
		remotes:      map[string]string{},
	}
}

// SetRemote configures the upstream URL of a repository. Working copies
// created afterwards are cloned from it and refreshed from it. An empty URL
// removes the upstream.
func (m *Manager) SetRemote(repository, remoteURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if remoteURL == "" {
		delete(m.remotes, repository)
		return
	}
	m.remotes[repository] = remoteURL
}

// SetAutoPush enables pushing to the upstream after every commit.
func (m *Manager) SetAutoPush(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoPush = v
}

// dir returns the working copy directory of a repository branch.
func (m *Manager) dir(repository, branch string) string {
	return filepath.Join(m.rootDir, repository, url.PathEscape(branch))
}

// Open returns an exclusive handle onto the working copy of repository at
// branch, creating it on first use. The caller must Close the handle.
func (m *Manager) Open(ctx context.Context, repository, branch string) (*Handle, error) {
	dir := m.dir(repository, branch)
	v, _ := m.copies.LoadOrStore(dir, &workingCopy{})
	wc := v.(*workingCopy)

	m.mu.RLock()
	remote := m.remotes[repository]
	autoPush := m.autoPush
	m.mu.RUnlock()

	wc.mu.Lock()
	if wc.repo == nil {
		r, err := m.newRepo(ctx, dir, branch, remote)
		if err != nil {
			wc.mu.Unlock()
			return nil, err
		}
		wc.repo = r
		wc.remote = remote
	} else if wc.remote != remote {
		if err := wc.repo.SetRemote(ctx, DefaultRemote, remote); err != nil {
			wc.mu.Unlock()
			return nil, fmt.Errorf("failed to configure remote: %w", err)
		}
		wc.remote = remote
	}
	return &Handle{
		repo:     wc.repo,
		branch:   branch,
		remote:   remote,
		autoPush: autoPush,
		release:  wc.mu.Unlock,
	}, nil
}

func (m *Manager) newRepo(ctx context.Context, dir, branch, remote string) (Repository, error) {
	start := time.Now()
	var r Repository
	var err error
	switch m.backend {
	case BackendGoGit:
		r, err = newGoGitRepo(ctx, dir, branch, remote, m.defaultName, m.defaultEmail)
	default:
		r, err = newExecRepo(ctx, dir, branch, remote, m.defaultName, m.defaultEmail)
	}
	if err != nil {
		return nil, err
	}
	if remote != "" {
		if err := r.SetRemote(ctx, DefaultRemote, remote); err != nil {
			return nil, fmt.Errorf("failed to configure remote: %w", err)
		}
	}
	slog.DebugContext(ctx, "git: working copy ready", "dir", dir, "branch", branch, "backend", m.backend, "dur", time.Since(start).Round(time.Millisecond))
	return r, nil
}

// Handle is an exclusive, scoped view of one working copy. It must be closed
// on every exit path and never retained across operations.
type Handle struct {
	repo     Repository
	branch   string
	remote   string
	autoPush bool
	release  func()
	once     sync.Once
}

// Close releases the working copy. It is safe to call more than once.
func (h *Handle) Close() error {
	h.once.Do(h.release)
	return nil
}

// Branch returns the branch the working copy tracks.
func (h *Handle) Branch() string {
	return h.branch
}

// HasRemote returns true if the working copy has an upstream.
func (h *Handle) HasRemote() bool {
	return h.remote != ""
}

// Refresh fast-forwards the working copy from its upstream. It is a no-op
// without upstream.
func (h *Handle) Refresh(ctx context.Context) error {
	if h.remote == "" {
		return nil
	}
	start := time.Now()
	changed, err := h.repo.Pull(ctx, DefaultRemote, h.branch)
	if err != nil {
		return fmt.Errorf("failed to refresh %s: %w", h.branch, err)
	}
	slog.DebugContext(ctx, "git: refreshed", "dir", h.repo.Dir(), "changed", changed, "dur", time.Since(start).Round(time.Millisecond))
	return nil
}

// FS returns the working copy filesystem.
func (h *Handle) FS() billy.Filesystem {
	return h.repo.FS()
}

// ReadFile returns the content of a file in the working copy.
func (h *Handle) ReadFile(name string) ([]byte, error) {
	f, err := h.repo.FS().Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// LastCommit returns the most recent commit touching path, or nil if the
// path has no history.
func (h *Handle) LastCommit(ctx context.Context, path string) (*Commit, error) {
	commits, err := h.repo.GetHistory(ctx, path, 1)
	if err != nil || len(commits) == 0 {
		return nil, err
	}
	return commits[0], nil
}

// GetHistory returns the commits touching path, newest first.
func (h *Handle) GetHistory(ctx context.Context, path string, n int) ([]*Commit, error) {
	return h.repo.GetHistory(ctx, path, n)
}

// Commit records files in one commit and pushes it upstream when auto-push
// is enabled. Returns nil if nothing changed.
func (h *Handle) Commit(ctx context.Context, author Author, msg string, files ...string) (*Commit, error) {
	c, err := h.repo.Commit(ctx, author, msg, files)
	if err != nil || c == nil {
		return c, err
	}
	if h.autoPush && h.remote != "" {
		if err := h.repo.Push(ctx, DefaultRemote, h.branch); err != nil {
			return c, fmt.Errorf("failed to push %s: %w", c.Hash, err)
		}
	}
	return c, nil
}

// ResolveCommit returns the commit named by hash.
func (h *Handle) ResolveCommit(ctx context.Context, hash string) (*Commit, error) {
	return h.repo.ResolveCommit(ctx, hash)
}

// GetFileAtCommit retrieves the content of a file at a specific commit.
func (h *Handle) GetFileAtCommit(ctx context.Context, hash, filePath string) ([]byte, error) {
	return h.repo.GetFileAtCommit(ctx, hash, filePath)
}

// Author identifies who made a change for git commits.
type Author struct {
	Name  string
	Email string
}

// Commit represents a commit in git history.
type Commit struct {
	Hash           string    `json:"hash"`
	Message        string    `json:"message"` // Subject line.
	Body           string    `json:"body"`    // Commit body (may be empty).
	Author         string    `json:"author"`
	AuthorEmail    string    `json:"author_email"`
	AuthorDate     time.Time `json:"author_date"`
	Committer      string    `json:"committer"`
	CommitterEmail string    `json:"committer_email"`
	CommitDate     time.Time `json:"commit_date"`
}

// FullMessage returns the subject and body joined like git shows them.
func (c *Commit) FullMessage() string {
	if c.Body == "" {
		return c.Message
	}
	return c.Message + "\n\n" + c.Body
}
