package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/tiertrain/internal/model"
)

var (
	importRole string
	clearRole  string
)

func newContentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Manage your own exploration and focus images",
	}

	importCmd := &cobra.Command{
		Use:   "import FILES...",
		Short: "Copy images in and replace the list for a role",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runContentImportCmd,
	}
	importCmd.Flags().StringVar(&importRole, "role", string(model.RoleExploration), "exploration or focus")

	list := &cobra.Command{
		Use:   "list",
		Short: "List imported images per role",
		Args:  cobra.NoArgs,
		RunE:  runContentListCmd,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget a role's list, or remove all imported content",
		Args:  cobra.NoArgs,
		RunE:  runContentClearCmd,
	}
	clearCmd.Flags().StringVar(&clearRole, "role", "", "exploration or focus (default: everything)")

	cmd.AddCommand(importCmd, list, clearCmd)
	return cmd
}

func runContentImportCmd(cmd *cobra.Command, args []string) error {
	role, err := model.ParseRole(importRole)
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		n, err := a.library.Import(role, args)
		if err != nil {
			return err
		}
		if n < len(args) {
			logErrf("Skipped %d file(s); see the log for details.\n", len(args)-n)
		}
		if n == 0 {
			return fmt.Errorf("no files imported; %s list left unchanged", role)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d %s image(s).\n", n, role)
		return err
	})
}

func runContentListCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		exploration, focus := a.library.Lists()
		out := cmd.OutOrStdout()
		for _, section := range []struct {
			role  model.ContentRole
			paths []string
		}{
			{model.RoleExploration, exploration},
			{model.RoleFocus, focus},
		} {
			if _, err := fmt.Fprintf(out, "%s (%d)\n", section.role, len(section.paths)); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			for _, p := range section.paths {
				if _, err := fmt.Fprintf(out, "  %s\n", p); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
			}
		}
		return nil
	})
}

func runContentClearCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		if clearRole == "" {
			if err := a.library.ClearAll(); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Cleared all user content.")
			return err
		}
		role, err := model.ParseRole(clearRole)
		if err != nil {
			return err
		}
		if err := a.library.Clear(role); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s list.\n", role)
		return err
	})
}
