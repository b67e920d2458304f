// Command labelctl inspects label taxonomies, imports element catalogs and
// exports saved labels.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "labelctl",
	Short: "Maintenance tool for the ML labeling server",
	Long:  "labelctl works on the same database, blob store and taxonomy as the labeling server.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("LABELER_CONFIG"), "path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
