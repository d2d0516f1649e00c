package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/semdex/semdex/internal/app"
	"github.com/semdex/semdex/pkg/types"
)

const timeRound = 10 * time.Millisecond

func newIndexCmd() *cobra.Command {
	var (
		recursive bool
		force     bool
		fileTypes []string
	)

	cmd := &cobra.Command{
		Use:   "index <path>...",
		Short: "Index files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				defer a.InvalidateSearch()
				for _, path := range args {
					info, err := os.Stat(path)
					if err != nil {
						return types.Validationf("cannot access %s: %v", path, err)
					}
					if info.IsDir() {
						if err := indexDirectory(ctx, a, path, recursive, fileTypes, force); err != nil {
							return err
						}
						continue
					}
					if err := indexFile(ctx, a, path, force); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "descend into subdirectories")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "reprocess files even when unchanged")
	cmd.Flags().StringSliceVarP(&fileTypes, "type", "t", nil, "only index these file types (e.g. go,md)")
	return cmd
}

func indexFile(ctx context.Context, a *app.App, path string, force bool) error {
	res, err := a.Indexer.ProcessFile(ctx, path, force)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s (%d chunks, %d embeddings)\n", res.Path, res.Action, res.Chunks, res.EmbeddingsGenerated)
	return nil
}

func indexDirectory(ctx context.Context, a *app.App, dir string, recursive bool, fileTypes []string, force bool) error {
	res, err := a.Indexer.ProcessDirectory(ctx, dir, recursive, fileTypes, force)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d files (%d processed, %d skipped, %d failed), %d chunks, %d embeddings in %s (%.1f files/s)\n",
		dir, res.TotalFiles, res.Processed, res.Skipped, res.Failed,
		res.TotalChunks, res.TotalEmbeddings, res.Duration.Round(timeRound), res.FilesPerSecond)
	for _, f := range res.FailedFiles {
		fmt.Printf("  failed: %s: %s\n", f.Path, f.Error)
	}
	if !res.Success {
		return types.Processingf(nil, "%d of %d files failed", res.Failed, res.TotalFiles)
	}
	return nil
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>...",
		Short: "Remove files from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				defer a.InvalidateSearch()
				for _, path := range args {
					if err := a.Indexer.RemoveFile(ctx, path); err != nil {
						return err
					}
					fmt.Printf("%s: removed\n", path)
				}
				return nil
			})
		},
	}
}
