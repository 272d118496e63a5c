package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	infraBQ "github.com/dvloznov/bank-recon/internal/infra/bigquery"
	"github.com/dvloznov/bank-recon/internal/jobs"
	"github.com/dvloznov/bank-recon/internal/jobs/inmemory"
	"github.com/dvloznov/bank-recon/internal/logger"
	"github.com/dvloznov/bank-recon/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	log := logger.New()

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	log.Info().Msg("Starting worker service")

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	repo, err := infraBQ.NewBigQueryRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer repo.Close()

	deps := pipeline.NewDeps(repo)

	// Create job handler that processes reconciliation jobs
	handler := func(ctx context.Context, job jobs.Job) error {
		reconJob, ok := job.(*jobs.ReconcileJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", reconJob.JobID).
			Str("cashbook_uri", reconJob.CashbookURI).
			Str("bank_uri", reconJob.BankURI).
			Msg("Processing reconciliation job")

		// Execute the pipeline
		state, err := pipeline.Run(ctx, deps, reconJob.CashbookURI, reconJob.BankURI, reconJob.ReportBucket)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", reconJob.JobID).
				Msg("Pipeline execution failed")
			return err
		}
		reconJob.RunID = state.RunID

		log.Info().
			Str("job_id", reconJob.JobID).
			Str("run_id", state.RunID).
			Int("matched", state.Summary.MatchedCount).
			Msg("Pipeline execution completed successfully")

		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Cancel context to stop workers
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
