package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maruel/smeagol/internal/wiki"
)

// NewDeleteCmd removes a page.
func NewDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <path>",
		Aliases: []string{"rm"},
		Short:   "Delete a page",
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
			page, err := a.store.FindCurrent(cmd.Context(), id, path)
			if err != nil {
				return fmt.Errorf("delete %s: %w", path, err)
			}
			commit, err := a.pendingCommit(cmd, "Delete "+path.String())
			if err != nil {
				return err
			}
			if err := a.store.Delete(cmd.Context(), page, commit); err != nil {
				return fmt.Errorf("delete %s: %w", path, err)
			}
			return nil
		},
	}
	addCommitFlags(cmd)
	return cmd
}

// NewExistsCmd reports whether a page is present in the working copy.
func NewExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <path>",
		Short: "Check whether a page exists",
		Long:  `Print true or false. The working copy is not refreshed from its upstream.`,
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
			ok, err := a.store.Exists(cmd.Context(), id, path)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ok)
			return err
		},
	}
}
