package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/maruel/smeagol/internal/wiki"
)

// NewHistoryCmd lists the commits touching a page.
func NewHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history <path>",
		Aliases: []string{"log"},
		Short:   "List the revisions of a page",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.wikiID(cmd)
			if err != nil {
				return err
			}
			path, err := wiki.NewPath(args[0])
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("limit")
			commits, err := a.store.History(cmd.Context(), id, path, n)
			if err != nil {
				return fmt.Errorf("history %s: %w", path, err)
			}
			w := cmd.OutOrStdout()
			for i := range commits {
				c := &commits[i]
				if _, err := fmt.Fprintf(w, "%s %s %s: %s\n", c.ID.Short(), c.Date.Format(time.DateTime), c.Author.DisplayName, firstLine(c.Message)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 0, "Maximum number of revisions (0 for all)")
	return cmd
}

// NewDiffCmd prints the line diff of a page between two revisions.
func NewDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <path> <from> <to>",
		Short: "Compare two revisions of a page",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.wikiID(cmd)
			if err != nil {
				return err
			}
			path, err := wiki.NewPath(args[0])
			if err != nil {
				return err
			}
			from, err := wiki.NewCommitID(args[1])
			if err != nil {
				return err
			}
			to, err := wiki.NewCommitID(args[2])
			if err != nil {
				return err
			}
			d, err := a.store.Diff(cmd.Context(), id, path, from, to)
			if err != nil {
				return fmt.Errorf("diff %s: %w", path, err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), d)
			return err
		},
	}
}

// NewVersionCmd prints build information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		// No configuration needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printCommit(w io.Writer, c *wiki.Commit) {
	_, _ = fmt.Fprintf(w, "commit %s\n", c.ID)
	_, _ = fmt.Fprintf(w, "Author: %s\n", c.Author)
	_, _ = fmt.Fprintf(w, "Date:   %s\n", c.Date.Format(time.RFC1123Z))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
