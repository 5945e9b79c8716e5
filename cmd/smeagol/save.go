package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/maruel/smeagol/internal/wiki"
)

// NewSaveCmd creates or edits a page from --file or stdin.
func NewSaveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <path>",
		Short: "Create or edit a page",
		Long:  `Write the page content read from --file, or stdin, and commit it.`,
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
			content, err := readContent(cmd)
			if err != nil {
				return err
			}
			commit, err := a.pendingCommit(cmd, "Update "+path.String())
			if err != nil {
				return err
			}
			page, err := a.store.Save(cmd.Context(), wiki.NewDraft(id, path, wiki.Content(content), commit))
			if err != nil {
				return fmt.Errorf("save %s: %w", path, err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), page.Commit.ID)
			return err
		},
	}
	cmd.Flags().StringP("file", "f", "", "Read content from this file instead of stdin")
	addCommitFlags(cmd)
	return cmd
}

// NewMoveCmd renames a page.
func NewMoveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move a page",
		Long:  `Rename a page, recording the removal and the addition in one commit.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.wikiID(cmd)
			if err != nil {
				return err
			}
			from, err := wiki.NewPath(args[0])
			if err != nil {
				return err
			}
			to, err := wiki.NewPath(args[1])
			if err != nil {
				return err
			}
			page, err := a.store.FindCurrent(cmd.Context(), id, from)
			if err != nil {
				return fmt.Errorf("move %s: %w", from, err)
			}
			commit, err := a.pendingCommit(cmd, "Move "+from.String()+" to "+to.String())
			if err != nil {
				return err
			}
			moved, err := a.store.Save(cmd.Context(), page.Move(to, commit))
			if err != nil {
				return fmt.Errorf("move %s: %w", from, err)
			}
			if !moved.IsMoved() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), moved.Commit.ID)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s\n", moved.Commit.ID, moved.OldPath, moved.Path)
			return err
		},
	}
	addCommitFlags(cmd)
	return cmd
}

func readContent(cmd *cobra.Command) ([]byte, error) {
	if file, _ := cmd.Flags().GetString("file"); file != "" && file != "-" {
		b, err := os.ReadFile(file) //nolint:gosec // G304: path is operator supplied
		if err != nil {
			return nil, fmt.Errorf("read content: %w", err)
		}
		return b, nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return b, nil
}
