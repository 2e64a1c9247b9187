// Command screener is the Lambda that consumes AI pre-screening jobs from SQS,
// scores each project and records the verdict in PostgreSQL.
package main

import (
	"context"
	"fmt"
	"os"

	"wildlife-governance/config"
	"wildlife-governance/internal/adapter/scoring"
	pgStorage "wildlife-governance/internal/adapter/storage/postgres"
	"wildlife-governance/internal/service"
	"wildlife-governance/pkg/logger"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file (useful for local testing).
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("screener", cfg.Log.Level, cfg.Log.Pretty)

	if cfg.Storage.Driver != "postgres" {
		log.Fatal().Str("driver", cfg.Storage.Driver).Msg("screener requires postgres storage")
	}
	if cfg.Screening.ScorerURL == "" {
		log.Fatal().Msg("screening.scorer_url is not set")
	}

	// Connections are opened once per container and reused across invocations.
	pool, err := pgStorage.NewPool(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	store := pgStorage.NewGovernanceStore(pool)
	clock := service.SystemClock{}
	bus := service.NewEventBus(store.Events, log)
	policy := service.GovernancePolicy{
		VotingPeriod:              cfg.Governance.VotingPeriod,
		ValidationThreshold:       cfg.Governance.ValidationThreshold,
		AutoValidateAfter:         cfg.Governance.AutoValidateAfter,
		ParticipationThresholdBps: cfg.Governance.ParticipationThresholdBps,
	}
	// No dispatcher: recording a verdict must not queue the project again.
	recorder := service.NewRegistryService(store, nil, bus, clock, policy, log)
	scorer := scoring.NewClient(cfg.Screening.ScorerURL, cfg.Screening.ScorerToken, cfg.Screening.Timeout)

	h := &Handler{
		worker: service.NewScreeningWorker(scorer, recorder, clock, logger.Component(log, "screening")),
		log:    log,
	}
	lambda.Start(h.HandleRequest)
}
