package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/mllabeler/internal/config"
	"github.com/matthewbaird/mllabeler/internal/elements"
)

var importCmd = &cobra.Command{
	Use:   "import [dataset]",
	Short: "Import an element catalog into the database",
	Long:  "Upsert models, categories, classes and elements from a YAML or JSON dataset file.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func readDataset(path string) (elements.Dataset, error) {
	var ds elements.Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return ds, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &ds)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &ds)
	default:
		return ds, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
	if err != nil {
		return ds, fmt.Errorf("parsing %s: %w", path, err)
	}
	return ds, nil
}

func openCatalog(cfg config.Config) (*elements.SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return elements.NewSQLiteStore(db), nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ds, err := readDataset(args[0])
	if err != nil {
		return err
	}
	catalog, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer catalog.DB().Close()

	ctx := cmd.Context()
	if err := catalog.CreateTables(ctx); err != nil {
		return err
	}
	if err := catalog.Import(ctx, ds); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d models, %d categories, %d classes, %d elements\n",
		len(ds.Models), len(ds.Categories), len(ds.Classes), len(ds.Elements))
	return nil
}
