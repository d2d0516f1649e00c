package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semdex/semdex/internal/app"
	"github.com/semdex/semdex/pkg/types"
)

func newDirsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dirs",
		Short: "Manage allowed and excluded directories",
	}
	cmd.AddCommand(newDirsShowCmd(), newDirsAllowCmd(), newDirsExcludeCmd())
	return cmd
}

func newDirsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the persisted directory settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				settings, err := a.Store.GetDirectorySettings(ctx)
				if err != nil {
					return err
				}
				printDirs("allowed", settings.AllowedDirectories)
				printDirs("excluded", settings.ExcludedDirectories)
				return nil
			})
		},
	}
}

func newDirsAllowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "allow <dir>...",
		Short: "Replace the allow-list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateDirs(cmd.Context(), func(s *types.DirectorySettings) {
				s.AllowedDirectories = args
			})
		},
	}
}

func newDirsExcludeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exclude <dir>...",
		Short: "Replace the exclude-list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateDirs(cmd.Context(), func(s *types.DirectorySettings) {
				s.ExcludedDirectories = args
			})
		},
	}
}

func updateDirs(ctx context.Context, mutate func(*types.DirectorySettings)) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		settings, err := a.Store.GetDirectorySettings(ctx)
		if err != nil {
			return err
		}
		mutate(settings)
		if err := a.SetDirectorySettings(ctx, settings); err != nil {
			return err
		}
		printDirs("allowed", settings.AllowedDirectories)
		printDirs("excluded", settings.ExcludedDirectories)
		return nil
	})
}

func printDirs(label string, dirs []string) {
	fmt.Printf("%s:\n", label)
	if len(dirs) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, dir := range dirs {
		fmt.Printf("  %s\n", dir)
	}
}
