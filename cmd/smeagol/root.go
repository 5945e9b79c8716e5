package main

import (
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/spf13/cobra"

	"github.com/maruel/smeagol/internal/config"
	"github.com/maruel/smeagol/internal/storage/pages"
	"github.com/maruel/smeagol/internal/storage/pull"
	"github.com/maruel/smeagol/internal/wiki"
)

// app holds what every page command needs once flags are parsed.
type app struct {
	level *slog.LevelVar
	cfg   *config.Config
	store *pages.Store
}

// NewRootCmd returns the smeagol command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{level: &slog.LevelVar{}}
	root := &cobra.Command{
		Use:   "smeagol",
		Short: "Git-backed wiki page storage",
		Long: `Stores wiki pages as markdown files in git working copies and records every
create, edit, move and delete as a commit.`,
		Version:           version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "Configuration file (default <data-dir>/"+config.Filename+")")
	pf.String("data-dir", "", "Data directory, overrides data_dir from the configuration")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringP("wiki", "w", "default", "Wiki repository")
	pf.StringP("branch", "b", "master", "Wiki branch")

	root.AddCommand(
		NewShowCmd(a),
		NewSaveCmd(a),
		NewMoveCmd(a),
		NewDeleteCmd(a),
		NewExistsCmd(a),
		NewHistoryCmd(a),
		NewDiffCmd(a),
		NewVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	logLevel, _ := flags.GetString("log-level")
	switch logLevel {
	case "debug":
		a.level.Set(slog.LevelDebug)
	case "info":
		a.level.Set(slog.LevelInfo)
	case "warn":
		a.level.Set(slog.LevelWarn)
	case "error":
		a.level.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", logLevel)
	}
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), a.level))

	dataDir, _ := flags.GetString("data-dir")
	path, _ := flags.GetString("config")
	if path == "" {
		d := dataDir
		if d == "" {
			d = config.Default().DataDir
		}
		path = config.DefaultPath(d)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.store = pages.New(cfg.NewManager(), pull.New(cfg.PullInterval))
	slog.DebugContext(cmd.Context(), "smeagol: configured", "config", path, "data_dir", cfg.DataDir, "backend", cfg.Backend, "pull_interval", cfg.PullInterval)
	return nil
}

// wikiID returns the wiki selected by --wiki and --branch.
func (a *app) wikiID(cmd *cobra.Command) (wiki.ID, error) {
	repository, _ := cmd.Flags().GetString("wiki")
	branch, _ := cmd.Flags().GetString("branch")
	return wiki.NewID(repository, branch)
}

// pendingCommit builds the commit from --author and --message, falling back
// to the configured committer and msg.
func (a *app) pendingCommit(cmd *cobra.Command, msg string) (wiki.PendingCommit, error) {
	author := wiki.Author{DisplayName: a.cfg.Committer.Name, Email: a.cfg.Committer.Email}
	if s, _ := cmd.Flags().GetString("author"); s != "" {
		addr, err := mail.ParseAddress(s)
		if err != nil {
			return wiki.PendingCommit{}, fmt.Errorf("invalid --author %q: %w", s, err)
		}
		author.DisplayName = addr.Name
		author.Email = addr.Address
		if author.DisplayName == "" {
			author.DisplayName = addr.Address
		}
	}
	if m, _ := cmd.Flags().GetString("message"); m != "" {
		msg = m
	}
	author, err := wiki.NewAuthor(author.DisplayName, author.Email)
	if err != nil {
		return wiki.PendingCommit{}, err
	}
	return wiki.NewPendingCommit(author, msg)
}

func addCommitFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("message", "m", "", "Commit message")
	cmd.Flags().String("author", "", `Commit author as "Name <email>" (default: configured committer)`)
}
