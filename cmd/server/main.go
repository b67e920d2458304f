package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/mllabeler/internal/config"
	"github.com/matthewbaird/mllabeler/internal/elements"
	"github.com/matthewbaird/mllabeler/internal/labeling"
	"github.com/matthewbaird/mllabeler/internal/labelsource"
	"github.com/matthewbaird/mllabeler/internal/overlay"
	"github.com/matthewbaird/mllabeler/internal/server"
	"github.com/matthewbaird/mllabeler/internal/similar"
	"github.com/matthewbaird/mllabeler/internal/store"
	"github.com/matthewbaird/mllabeler/internal/wire"
	"github.com/matthewbaird/mllabeler/internal/workflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("LABELER_CONFIG"))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	catalog := elements.NewSQLiteStore(db)
	if err := catalog.CreateTables(ctx); err != nil {
		log.Fatalf("creating catalog: %v", err)
	}

	blobs, err := cfg.BlobStore(ctx, db)
	if err != nil {
		log.Fatalf("opening blob store: %v", err)
	}
	defs, err := cfg.Taxonomy()
	if err != nil {
		log.Fatalf("loading taxonomy: %v", err)
	}
	labels := labelsource.NewBlobSource(blobs, cfg.Blob.Source, defs)

	tracker := overlay.NewTracker()
	hub := wire.NewHub(tracker)

	engine := labeling.New(catalog, labels, hub, hub, labeling.Options{HistoryCap: cfg.HistoryCap})
	engine.Subscribe("log", store.LogListener[*workflow.State, workflow.Action]())
	engine.Subscribe("overlay", overlay.NewListener(engine.Selectors(), tracker, hub))
	finder := similar.NewService(catalog, engine, cfg.Finder)

	engine.Start(ctx)
	defer engine.Stop()
	finder.Start(ctx)
	defer finder.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, server.Config{
			Port:   cfg.Port,
			Engine: engine,
			Finder: finder,
			Hub:    hub,
		})
	})
	g.Go(func() error {
		if err := engine.InitializeData(gctx); err != nil {
			return err
		}
		aux, err := engine.AuxDataMap()
		if err != nil {
			return err
		}
		return finder.SetAuxData(aux)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
