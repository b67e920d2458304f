package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/mllabeler/internal/config"
	"github.com/matthewbaird/mllabeler/internal/taxonomy"
	"github.com/matthewbaird/mllabeler/internal/types"
)

var taxonomyFile string

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Validate and print the label tree",
	Long:  "Load the CUE taxonomy (or the built-in one), check that it forms a tree and print it.",
	Args:  cobra.NoArgs,
	RunE:  runTaxonomy,
}

func init() {
	taxonomyCmd.Flags().StringVar(&taxonomyFile, "file", "", "CUE taxonomy file; overrides the config")
	rootCmd.AddCommand(taxonomyCmd)
}

func runTaxonomy(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if taxonomyFile != "" {
		cfg.TaxonomyFile = taxonomyFile
	}
	defs, err := cfg.Taxonomy()
	if err != nil {
		return err
	}
	labels, err := taxonomy.Build(defs.Definitions)
	if err != nil {
		return err
	}
	tree, err := labels.Tree()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d labels, unlabeled value %s\n", labels.Len(), defs.UnlabeledValue)
	printTree(out, tree)
	return nil
}

func printTree(w io.Writer, entries []types.TreeEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", e.Level), strings.TrimPrefix(e.Name, taxonomy.Prefix))
		printTree(w, e.Children)
	}
}
