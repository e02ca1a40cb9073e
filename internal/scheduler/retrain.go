package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/pipeline"
)

// retrainTimeout bounds a single training cycle in watch mode
const retrainTimeout = 30 * time.Minute

// RetrainJob reruns the full training pipeline on a schedule
type RetrainJob struct {
	pipeline *pipeline.Pipeline
	log      zerolog.Logger
}

// NewRetrainJob creates the retrain job
func NewRetrainJob(p *pipeline.Pipeline, log zerolog.Logger) *RetrainJob {
	return &RetrainJob{
		pipeline: p,
		log:      log.With().Str("job", "retrain").Logger(),
	}
}

// Name returns the job name
func (j *RetrainJob) Name() string {
	return "retrain"
}

// Run executes one training cycle
func (j *RetrainJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), retrainTimeout)
	defer cancel()

	bundle, err := j.pipeline.Run(ctx)
	if err != nil {
		return err
	}
	j.log.Info().
		Time("created_at", bundle.CreatedAt).
		Str("country_mode", string(bundle.Country.Mode)).
		Msg("Scheduled retrain finished")
	return nil
}
