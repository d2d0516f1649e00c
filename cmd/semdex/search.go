package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semdex/semdex/internal/app"
	"github.com/semdex/semdex/internal/search"
	"github.com/semdex/semdex/pkg/types"
)

// snippetLen bounds content shown per hit; the index keeps full chunks.
const snippetLen = 500

func newSearchCmd() *cobra.Command {
	var (
		mode          string
		topK          int
		threshold     float64
		metric        string
		fileTypes     []string
		vectorWeight  float64
		keywordWeight float64
		noRerank      bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if topK <= 0 {
					topK = a.Config.Search.DefaultTopK
				}
				opts := search.Options{
					TopK:      topK,
					Threshold: threshold,
					FileTypes: fileTypes,
					Metric:    metric,
				}

				var (
					hits []types.SearchHit
					err  error
				)
				switch mode {
				case "vector":
					hits, err = a.Engine.Search(ctx, query, opts)
				case "keyword":
					hits, err = a.Engine.KeywordSearch(ctx, query, opts)
				case "hybrid":
					hits, err = a.Engine.HybridSearch(ctx, query, search.HybridOptions{
						Options:       opts,
						VectorWeight:  vectorWeight,
						KeywordWeight: keywordWeight,
						Rerank:        !noRerank,
					})
				default:
					return types.Validationf("unknown search mode %q (vector|keyword|hybrid)", mode)
				}
				if err != nil {
					return err
				}

				printHits(hits)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "hybrid", "search mode: vector, keyword, or hybrid")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "maximum results to return")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum similarity score")
	cmd.Flags().StringVar(&metric, "metric", "", "similarity metric: cosine or euclidean")
	cmd.Flags().StringSliceVarP(&fileTypes, "type", "t", nil, "restrict to these file types")
	cmd.Flags().Float64Var(&vectorWeight, "vector-weight", 0, "hybrid weight for the vector arm")
	cmd.Flags().Float64Var(&keywordWeight, "keyword-weight", 0, "hybrid weight for the keyword arm")
	cmd.Flags().BoolVar(&noRerank, "no-rerank", false, "skip the rerank pass in hybrid mode")
	return cmd
}

func printHits(hits []types.SearchHit) {
	if len(hits) == 0 {
		fmt.Println("no results")
		return
	}
	for i, hit := range hits {
		fmt.Printf("%2d. [%.3f] %s #%d (%s)\n", i+1, hit.Score, hit.FilePath, hit.ChunkIndex, hit.MatchType)
		fmt.Printf("    %s\n", snippet(hit.Content))
	}
}

func snippet(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) > snippetLen {
		return string(runes[:snippetLen]) + "..."
	}
	return content
}
