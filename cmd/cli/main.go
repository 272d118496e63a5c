package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/bank-recon/internal/gcsuploader"
	infraBQ "github.com/dvloznov/bank-recon/internal/infra/bigquery"
	"github.com/dvloznov/bank-recon/internal/ingest"
	"github.com/dvloznov/bank-recon/internal/logger"
	"github.com/dvloznov/bank-recon/internal/notionsync"
	"github.com/dvloznov/bank-recon/internal/pipeline"
	"github.com/dvloznov/bank-recon/internal/recon"
	"github.com/dvloznov/bank-recon/internal/report"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "reconcile":
		runReconcile(log)
	case "run":
		runPipeline(log)
	case "upload":
		runUpload(log)
	case "runs":
		runListRuns(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Bank Reconciliation CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  reconcile  Reconcile two local ledger CSVs and write report files")
	fmt.Println("  run        Run the full pipeline against GCS sources with BigQuery tracking")
	fmt.Println("  upload     Upload a ledger file to GCS")
	fmt.Println("  runs       List recent reconciliation runs")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// runReconcile is the offline path: two local CSVs in, three CSVs and a
// summary out. No cloud project needed.
func runReconcile(log zerolog.Logger) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	cashbookPath := fs.String("cashbook", "", "Path to the cashbook CSV")
	bankPath := fs.String("bank", "", "Path to the bank statement CSV")
	outDir := fs.String("out", ".", "Directory for the report CSVs")
	monthFirst := fs.Bool("month-first", false, "Parse ambiguous dates as month-first instead of day-first")
	fs.Parse(os.Args[2:])

	if *cashbookPath == "" || *bankPath == "" {
		log.Fatal().Msg("Usage: cli reconcile -cashbook PATH -bank PATH [-out DIR]")
	}

	cashbookRaw, err := ingest.ReadLedgerFile(*cashbookPath, ingest.DefaultCashbookMapping())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read cashbook")
	}
	bankRaw, err := ingest.ReadLedgerFile(*bankPath, ingest.DefaultBankMapping())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read bank statement")
	}

	cfg := recon.DefaultConfig()
	cfg.DayFirst = !*monthFirst
	normalizer := recon.NewNormalizer(cfg)

	cashbook := normalizer.Normalize(cashbookRaw, recon.SourceCashbook)
	bank := normalizer.Normalize(bankRaw, recon.SourceBank)

	result := recon.Reconcile(cashbook, bank)
	summary := report.Summarize(result)

	files := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{"matched.csv", func() ([]byte, error) { return report.MatchedCSV(result) }},
		{"cashbook_remaining.csv", func() ([]byte, error) { return report.RemainingCSV(result.CashbookRemaining) }},
		{"bank_remaining.csv", func() ([]byte, error) { return report.RemainingCSV(result.BankRemaining) }},
	}
	for _, f := range files {
		data, err := f.render()
		if err != nil {
			log.Fatal().Err(err).Str("file", f.name).Msg("Failed to render report")
		}
		path := filepath.Join(*outDir, f.name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to write report")
		}
	}

	reportJSON, err := json.MarshalIndent(report.Build(result), "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render report JSON")
	}
	if err := os.WriteFile(filepath.Join(*outDir, "report.json"), reportJSON, 0o644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report JSON")
	}

	fmt.Printf("Cashbook records:   %d\n", summary.TotalCashbook)
	fmt.Printf("Bank records:       %d\n", summary.TotalBank)
	fmt.Printf("Matched pairs:      %d (%.1f%%)\n", summary.MatchedCount, summary.MatchedPct)
	fmt.Printf("Cashbook remaining: %d (%s unexplained)\n", summary.CashbookRemaining, summary.CashbookUnmatchedAmount)
	fmt.Printf("Bank remaining:     %d (%s unexplained)\n", summary.BankRemaining, summary.BankUnmatchedAmount)
	fmt.Printf("Reports written to %s\n", *outDir)
}

// runPipeline executes one tracked reconciliation run end to end.
func runPipeline(log zerolog.Logger) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cashbookURI := fs.String("cashbook", "", "Cashbook source (gs:// URI or local path)")
	bankURI := fs.String("bank", "", "Bank statement source (gs:// URI or local path)")
	reportBucket := fs.String("report-bucket", os.Getenv("RECON_REPORT_BUCKET"), "GCS bucket for report CSVs (or set RECON_REPORT_BUCKET env)")
	notionDB := fs.String("notion-db", os.Getenv("NOTION_EXCEPTIONS_DB_ID"), "Notion database ID for exception pages (or set NOTION_EXCEPTIONS_DB_ID env)")
	dryRun := fs.Bool("dry-run", false, "Log Notion changes without applying them")
	fs.Parse(os.Args[2:])

	if *cashbookURI == "" || *bankURI == "" {
		log.Fatal().Msg("Usage: cli run -cashbook URI -bank URI [-report-bucket NAME] [-notion-db ID]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer repo.Close()

	log.Info().
		Str("cashbook_uri", *cashbookURI).
		Str("bank_uri", *bankURI).
		Msg("Starting reconciliation run")

	state, err := pipeline.Run(ctx, pipeline.NewDeps(repo), *cashbookURI, *bankURI, *reportBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation run failed")
	}

	fmt.Printf("Run %s completed: %d matched, %d cashbook remaining, %d bank remaining\n",
		state.RunID, state.Summary.MatchedCount, state.Summary.CashbookRemaining, state.Summary.BankRemaining)
	for _, uri := range state.ReportURIs {
		fmt.Printf("  report: %s\n", uri)
	}

	if *notionDB != "" {
		token := os.Getenv("NOTION_TOKEN")
		if token == "" {
			log.Fatal().Msg("NOTION_TOKEN is required to publish exceptions")
		}
		client := notionsync.NewNotionClient(token)
		if err := notionsync.PublishExceptions(ctx, client, *notionDB, state.RunID, state.Result, *dryRun); err != nil {
			log.Fatal().Err(err).Msg("Failed to publish exceptions to Notion")
		}
		fmt.Println("Exceptions published to Notion.")
	}
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local ledger file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcsuploader.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}

func runListRuns(log zerolog.Logger) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Maximum number of runs to list")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	runs, err := infraBQ.ListRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}

	if len(runs) == 0 {
		fmt.Println("No reconciliation runs found.")
		return
	}

	for _, run := range runs {
		matched := int64(0)
		if run.MatchedCount.Valid {
			matched = run.MatchedCount.Int64
		}
		fmt.Printf("%s  %-9s  matched=%-5d  %s | %s\n",
			run.StartedAt.Format(time.RFC3339), run.Status, matched, run.CashbookURI, run.BankURI)
	}
}
