package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/bank-recon/internal/api/handlers"
	"github.com/dvloznov/bank-recon/internal/api/middleware"
	infraBQ "github.com/dvloznov/bank-recon/internal/infra/bigquery"
	"github.com/dvloznov/bank-recon/internal/jobs"
	"github.com/dvloznov/bank-recon/internal/jobs/inmemory"
	"github.com/dvloznov/bank-recon/internal/logger"
	"github.com/dvloznov/bank-recon/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present; real env vars win
	_ = godotenv.Load()

	// Parse command-line flags
	var (
		port         = flag.String("port", "8080", "HTTP server port")
		bucket       = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket name for ledger uploads (or set GCS_BUCKET env)")
		reportBucket = flag.String("report-bucket", os.Getenv("RECON_REPORT_BUCKET"), "GCS bucket for rendered report CSVs (or set RECON_REPORT_BUCKET env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - ledger uploads will be disabled")
	}

	// Initialize repositories
	ctx := context.Background()

	runRepo, err := infraBQ.NewBigQueryRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer runRepo.Close()

	deps := pipeline.NewDeps(runRepo)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	// Create job handler for processing reconciliation jobs
	jobHandler := func(ctx context.Context, job jobs.Job) error {
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

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	reconsHandler := handlers.NewReconciliationsHandler(runRepo, jobQueue, *reportBucket, log)
	ledgersHandler := handlers.NewLedgersHandler(*bucket, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Reconciliation endpoints
	mux.HandleFunc("/api/reconciliations", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			reconsHandler.EnqueueRun(w, r)
		case http.MethodGet:
			reconsHandler.ListRuns(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Ledger endpoints
	mux.HandleFunc("/api/ledgers/upload-url", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ledgersHandler.CreateUploadURL(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/ledgers/upload/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			// Extract ledger ID from path
			ledgerID := strings.TrimPrefix(r.URL.Path, "/api/ledgers/upload/")
			if ledgerID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Ledger ID is required")
				return
			}
			ledgersHandler.UploadLedger(w, r, ledgerID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
