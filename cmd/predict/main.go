package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/atlasrisk/tariffwatch/internal/artifact"
	"github.com/atlasrisk/tariffwatch/internal/config"
	"github.com/atlasrisk/tariffwatch/internal/modules/inference"
	"github.com/atlasrisk/tariffwatch/pkg/logger"
)

func main() {
	var (
		country = flag.String("country", "", "country to score (required)")
		sector  = flag.String("sector", "", "sector to score; empty or General scores the country alone")
		scaled  = flag.Bool("scaled", false, "score the sector scaled by the country multiplier instead of blending")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Level: "info", Pretty: true})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	if *country == "" {
		log.Fatal().Msg("-country is required")
	}

	store := artifact.NewStore(cfg.ArtifactsDir, log)
	bundle, err := store.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load artifact bundle, train first")
	}

	engine, err := inference.NewEngine(bundle, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create inference engine")
	}

	var result any
	switch {
	case *scaled:
		if *sector == "" {
			log.Fatal().Msg("-scaled requires -sector")
		}
		result, err = engine.PredictSectorScaled(*country, *sector)
		if err != nil {
			log.Fatal().Err(err).Msg("Prediction failed")
		}
	case *sector != "":
		result = engine.PredictBlended(*country, *sector)
	default:
		result = engine.PredictCountry(*country)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode result")
	}
}
