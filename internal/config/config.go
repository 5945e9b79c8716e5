// Package config loads the smeagol YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maruel/smeagol/internal/storage/git"
	"github.com/maruel/smeagol/internal/wiki"
)

// Filename is the configuration file name inside the data directory.
const Filename = "smeagol.yaml"

// Config is the smeagol configuration. A missing file means Default().
type Config struct {
	// DataDir holds one directory per repository, one working copy per branch.
	DataDir string `yaml:"data_dir"`
	// Backend is "exec" (git CLI) or "gogit" (pure Go).
	Backend string `yaml:"backend"`
	// Committer is recorded as git committer; authors come from each change.
	Committer Committer `yaml:"committer"`
	// PullInterval is the minimum time between two refreshes of a wiki. 0
	// refreshes before every operation.
	PullInterval time.Duration `yaml:"pull_interval"`
	// AutoPush pushes every commit to the wiki remote.
	AutoPush bool `yaml:"auto_push"`
	// Wikis lists repositories that have an upstream.
	Wikis []Wiki `yaml:"wikis,omitempty"`
}

// Committer is the identity used for git committer fields.
type Committer struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Wiki configures the upstream of one repository.
type Wiki struct {
	Repository string `yaml:"repository"`
	Remote     string `yaml:"remote"`
	// Token is injected in https remotes; RemoteType forces "github" or
	// "gitlab" when the host does not tell.
	Token      string `yaml:"token,omitempty"`
	RemoteType string `yaml:"remote_type,omitempty"`
}

// RemoteURL returns the remote with credentials injected.
func (w *Wiki) RemoteURL() string {
	return git.InjectTokenInURL(w.Remote, w.Token, w.RemoteType)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Backend: git.BackendExec.String(),
		Committer: Committer{
			Name:  "smeagol",
			Email: "smeagol@localhost",
		},
		PullInterval: 30 * time.Second,
	}
}

// DefaultPath returns the configuration file path for dataDir.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, Filename)
}

// Load reads the configuration at path, applying it over Default(). A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator supplied
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if _, err := git.ParseBackend(c.Backend); err != nil {
		return err
	}
	if c.PullInterval < 0 {
		return errors.New("pull_interval must be non-negative")
	}
	if c.Committer.Email != "" && !strings.Contains(c.Committer.Email, "@") {
		return fmt.Errorf("committer.email %q must contain @", c.Committer.Email)
	}
	seen := map[string]bool{}
	for i := range c.Wikis {
		w := &c.Wikis[i]
		if err := (wiki.ID{Repository: w.Repository, Branch: "master"}).Validate(); err != nil {
			return fmt.Errorf("wikis[%d]: %w", i, err)
		}
		if w.Remote == "" {
			return fmt.Errorf("wikis[%d]: remote is required", i)
		}
		if seen[w.Repository] {
			return fmt.Errorf("wikis[%d]: duplicate repository %q", i, w.Repository)
		}
		seen[w.Repository] = true
	}
	return nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("create config directory: %w", err)
	}
	// Tokens may be present.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// GitBackend returns the parsed Backend.
func (c *Config) GitBackend() git.Backend {
	b, _ := git.ParseBackend(c.Backend)
	return b
}

// NewManager returns a git manager configured for every wiki.
func (c *Config) NewManager() *git.Manager {
	m := git.NewManagerWithBackend(c.DataDir, c.Committer.Name, c.Committer.Email, c.GitBackend())
	m.SetAutoPush(c.AutoPush)
	for i := range c.Wikis {
		m.SetRemote(c.Wikis[i].Repository, c.Wikis[i].RemoteURL())
	}
	return m
}
