package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/semdex/semdex/internal/app"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				stats, err := a.Store.Stats(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("files:      %d (%d active)\n", stats.TotalFiles, stats.ActiveFiles)
				fmt.Printf("chunks:     %d\n", stats.TotalChunks)
				fmt.Printf("embeddings: %d\n", stats.TotalEmbeddings)
				fmt.Printf("index size: %.2f MB\n", stats.IndexSizeMB)

				if len(stats.FileTypes) > 0 {
					types := make([]string, 0, len(stats.FileTypes))
					for ft := range stats.FileTypes {
						types = append(types, ft)
					}
					sort.Strings(types)
					fmt.Println("file types:")
					for _, ft := range types {
						fmt.Printf("  %-10s %d\n", ft, stats.FileTypes[ft])
					}
				}
				return nil
			})
		},
	}
}
