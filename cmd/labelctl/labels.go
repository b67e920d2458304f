package main

import (
	"encoding/csv"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/mllabeler/internal/config"
	"github.com/matthewbaird/mllabeler/internal/labelsource"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the saved user labels as CSV",
	Long:  "Read the user labels of every catalog element from the blob store and print id,label rows.",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	catalog, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer catalog.DB().Close()

	ctx := cmd.Context()
	blobs, err := cfg.BlobStore(ctx, catalog.DB())
	if err != nil {
		return err
	}
	defs, err := cfg.Taxonomy()
	if err != nil {
		return err
	}
	records, err := catalog.QueryElements(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ElementID
	}
	labels, err := labelsource.NewBlobSource(blobs, cfg.Blob.Source, defs).UserLabels(ctx, ids)
	if err != nil {
		return err
	}

	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write([]string{"element_id", "label"}); err != nil {
		return err
	}
	for _, id := range ids {
		if err := w.Write([]string{id, labels[id]}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}
