package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maruel/smeagol/internal/wiki"
)

// NewShowCmd prints a page at head or at a revision.
func NewShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Print a page",
		Long:  `Print the content of a page at the branch head, or as of --revision.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.wikiID(cmd)
			if err != nil {
				return err
			}
			path, err := wiki.NewPath(args[0])
			if err != nil {
				return err
			}
			var page *wiki.Page
			if rev, _ := cmd.Flags().GetString("revision"); rev != "" {
				commit, err := wiki.NewCommitID(rev)
				if err != nil {
					return err
				}
				page, err = a.store.FindAtRevision(cmd.Context(), id, path, commit)
				if err != nil {
					return fmt.Errorf("show %s@%s: %w", path, rev, err)
				}
			} else if page, err = a.store.FindCurrent(cmd.Context(), id, path); wiki.IsNotFound(err) {
				return fmt.Errorf("show %s: %w (create it with \"smeagol save %s\")", path, err, path)
			} else if err != nil {
				return fmt.Errorf("show %s: %w", path, err)
			}
			w := cmd.OutOrStdout()
			if meta, _ := cmd.Flags().GetBool("commit"); meta {
				printCommit(w, &page.Commit)
				_, _ = fmt.Fprintln(w)
			}
			_, err = fmt.Fprint(w, page.Content)
			return err
		},
	}
	cmd.Flags().StringP("revision", "r", "", "Full commit id to read the page at")
	cmd.Flags().Bool("commit", false, "Print the commit before the content")
	return cmd
}
