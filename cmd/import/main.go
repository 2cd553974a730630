package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/timmy/wanderlust/internal/app"
	"github.com/timmy/wanderlust/internal/config"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/repository"
	"github.com/timmy/wanderlust/internal/service"
	"github.com/timmy/wanderlust/internal/source/csvcatalog"
	"github.com/timmy/wanderlust/internal/storage"
)

func main() {
	appLogger := app.NewLogger("wanderlust-import")
	defer logger.Sync()

	// Parse command line flags
	file := flag.String("file", "", "Path to a local catalog CSV")
	fromS3 := flag.Bool("s3", false, "Import a catalog snapshot from object storage")
	key := flag.String("key", "", "Snapshot key to import with -s3 (default: latest)")
	upload := flag.Bool("upload", false, "Archive the -file CSV to object storage before importing")
	limit := flag.Int("limit", 0, "Maximum number of rows to import (0 = all)")
	skipEmbeddings := flag.Bool("skip-embeddings", false, "Store destinations without computing embeddings")
	embedMissing := flag.Bool("embed-missing", false, "Embed stored destinations that have no vector instead of importing")
	workers := flag.Int("workers", 4, "Number of import workers")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	destinations := repository.NewDestinationRepository(db)

	embedding, err := app.Embedding(cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize embedding provider")
	}
	qdrantRepo, err := app.Qdrant(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize Qdrant")
	}
	var vectors service.VectorWriter
	if qdrantRepo != nil {
		defer qdrantRepo.Close()
		vectors = qdrantRepo
	}
	if *skipEmbeddings {
		embedding = nil
	}

	importer := service.NewCatalogImporter(destinations, vectors, embedding, appLogger, &service.ImportConfig{
		Workers: *workers,
	})

	if *embedMissing {
		stats, err := importer.EmbedMissing(ctx, *limit)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to embed destinations")
		}
		appLogger.WithFields(logger.Fields{
			"total":    stats.TotalItems,
			"embedded": stats.EmbeddedItems,
			"failed":   stats.FailedItems,
		}).Info("Embedding completed")
		return
	}

	var open csvcatalog.OpenFunc
	sourceID := *file
	switch {
	case *fromS3 || *upload:
		if !cfg.Storage.Enabled {
			appLogger.Fatal("Object storage is not enabled in config")
		}
		objectStorage, err := app.ObjectStorage(ctx, &cfg.Storage)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		archive := storage.NewCatalogArchive(objectStorage, "catalog")

		snapshot := *key
		if *upload {
			if *file == "" {
				appLogger.Fatal("-upload requires -file")
			}
			data, err := os.ReadFile(*file)
			if err != nil {
				appLogger.WithError(err).Fatal("Failed to read catalog file")
			}
			snapshot, err = archive.Put(ctx, data)
			if err != nil {
				appLogger.WithError(err).Fatal("Failed to archive catalog")
			}
			appLogger.WithField("key", snapshot).Info("Catalog archived")
		}

		sourceID = "s3"
		open = func(ctx context.Context) (io.ReadCloser, error) {
			rc, resolved, err := archive.Open(ctx, snapshot)
			if err != nil {
				return nil, err
			}
			appLogger.WithField("key", resolved).Info("Reading catalog snapshot")
			return rc, nil
		}
	case *file != "":
		path := filepath.Clean(*file)
		open = func(context.Context) (io.ReadCloser, error) {
			return os.Open(path)
		}
	default:
		appLogger.Fatal("Either -file or -s3 is required")
	}

	appLogger.WithFields(logger.Fields{
		"source":          sourceID,
		"limit":           *limit,
		"skip_embeddings": *skipEmbeddings,
	}).Info("Starting catalog import")

	src := csvcatalog.NewAdapter(sourceID, open)
	stats, err := importer.ImportFromSource(ctx, src, *limit, &service.ImportOptions{
		SkipEmbeddings: *skipEmbeddings,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to import catalog")
	}

	for _, rowErr := range src.Skipped() {
		appLogger.WithError(rowErr.Err).WithField("line", rowErr.Line).Warn("Row rejected")
	}
	appLogger.WithFields(logger.Fields{
		"total":       stats.TotalItems,
		"processed":   stats.ProcessedItems,
		"embedded":    stats.EmbeddedItems,
		"failed":      stats.FailedItems,
		"rejected":    stats.RejectedRows,
		"duration_ms": stats.EndTime.Sub(stats.StartTime).Milliseconds(),
	}).Info("Import completed")
}
