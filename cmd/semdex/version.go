package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/semdex/semdex/internal/store"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("semdex %s (%s/%s, sqlite driver: %s)\n",
				Version, runtime.GOOS, runtime.GOARCH, store.BuildMode)
		},
	}
}
