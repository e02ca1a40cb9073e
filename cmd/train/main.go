package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/artifact"
	"github.com/atlasrisk/tariffwatch/internal/config"
	"github.com/atlasrisk/tariffwatch/internal/database"
	"github.com/atlasrisk/tariffwatch/internal/database/repositories"
	"github.com/atlasrisk/tariffwatch/internal/modules/ingest"
	"github.com/atlasrisk/tariffwatch/internal/pipeline"
	"github.com/atlasrisk/tariffwatch/internal/scheduler"
	"github.com/atlasrisk/tariffwatch/pkg/logger"
)

func main() {
	var (
		actionsPath = flag.String("actions", "", "import policy actions CSV before training")
		tradePath   = flag.String("trade", "", "import bilateral trade CSV before training")
		gscpiPath   = flag.String("gscpi", "", "import supply chain index CSV before training")
		unratePath  = flag.String("unrate", "", "import unemployment CSV before training")
		importOnly  = flag.Bool("import-only", false, "import data and exit without training")
		watch       = flag.Bool("watch", false, "train now, then retrain on the configured schedule")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Level: "info", Pretty: true})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Msg("Starting tariffwatch trainer")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	actions := repositories.NewActionRepository(db.Conn(), log)
	series := repositories.NewSeriesRepository(db.Conn(), log)

	// Optional imports
	loader := ingest.NewLoader(actions, series, log)
	importOne(log, *actionsPath, loader.ImportActions)
	importOne(log, *tradePath, loader.ImportTrade)
	importOne(log, *gscpiPath, loader.ImportSupplyChain)
	importOne(log, *unratePath, loader.ImportUnemployment)
	if *importOnly {
		log.Info().Msg("Import complete")
		return
	}

	ctx := context.Background()
	store := artifact.NewStore(cfg.ArtifactsDir, log)

	var backup *artifact.Backup
	if cfg.S3Bucket != "" {
		backup, err = artifact.NewBackup(ctx, cfg.S3Bucket, cfg.S3Prefix, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 backup")
		}
	}

	pipe := pipeline.New(actions, series, store, backup, cfg, log)

	if !*watch {
		if _, err := pipe.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("Training failed")
		}
		return
	}

	// Watch mode: train immediately, then on the cron schedule
	sched := scheduler.New(log)
	job := scheduler.NewRetrainJob(pipe, log)

	if err := sched.RunNow(job); err != nil {
		log.Error().Err(err).Msg("Initial training failed")
	}
	if err := sched.AddJob(cfg.RetrainSchedule, job); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule retrain job")
	}
	sched.Start()
	defer sched.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")
}

func importOne(log zerolog.Logger, path string, fn func(string) (int, error)) {
	if path == "" {
		return
	}
	if _, err := fn(path); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Import failed")
	}
}
