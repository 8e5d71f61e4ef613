package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/texloader/texloader/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:     "texloader",
	Short:   "Fetch, cache, and decode textures",
	Long:    "texloader resolves texture identifiers through a local cache, downloading and decoding them on a miss.",
	Version: fmt.Sprintf("gitVersion=%s, gitCommit=%s", version.GitVersion, version.GitCommit),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newFetchCommand())
}
