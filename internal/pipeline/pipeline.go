package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/bank-recon/internal/gcsuploader"
	"github.com/dvloznov/bank-recon/internal/ingest"
	infra "github.com/dvloznov/bank-recon/internal/infra/bigquery"
	"github.com/dvloznov/bank-recon/internal/logger"
	"github.com/dvloznov/bank-recon/internal/recon"
	"github.com/dvloznov/bank-recon/internal/report"
)

// Step represents a single step in the reconciliation run pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across all pipeline steps.
type State struct {
	CashbookURI string
	BankURI     string

	// ReportBucket receives the rendered CSVs; empty disables publishing.
	ReportBucket string

	RunID string

	CashbookData []byte
	BankData     []byte

	CashbookRaw []recon.RawRecord
	BankRaw     []recon.RawRecord

	Cashbook []recon.CanonicalRecord
	Bank     []recon.CanonicalRecord

	Result  recon.MatchResult
	Summary report.Summary

	// ReportURIs lists where the rendered CSVs were published.
	ReportURIs []string
}

// StartRunStep records the run in the warehouse with status=RUNNING.
type StartRunStep struct{ deps *Deps }

func (s *StartRunStep) Execute(ctx context.Context, state *State) error {
	runID, err := s.deps.Repo.StartRun(ctx, state.CashbookURI, state.BankURI)
	if err != nil {
		return err
	}
	state.RunID = runID
	return nil
}

// FetchSourcesStep loads both ledger files.
type FetchSourcesStep struct{ deps *Deps }

func (s *FetchSourcesStep) Execute(ctx context.Context, state *State) error {
	cashbook, err := s.deps.Store.Fetch(ctx, state.CashbookURI)
	if err != nil {
		s.deps.Repo.MarkRunFailed(ctx, state.RunID, err)
		return err
	}
	bank, err := s.deps.Store.Fetch(ctx, state.BankURI)
	if err != nil {
		s.deps.Repo.MarkRunFailed(ctx, state.RunID, err)
		return err
	}
	state.CashbookData = cashbook
	state.BankData = bank
	return nil
}

// ParseSourcesStep converts the fetched bytes into raw records: CSV
// directly, PDF statements through the AI transcriber.
type ParseSourcesStep struct{ deps *Deps }

func (s *ParseSourcesStep) Execute(ctx context.Context, state *State) error {
	cashbookRaw, err := s.parse(ctx, state.CashbookURI, state.CashbookData, s.deps.CashbookMapping)
	if err != nil {
		s.deps.Repo.MarkRunFailed(ctx, state.RunID, err)
		return err
	}
	bankRaw, err := s.parse(ctx, state.BankURI, state.BankData, s.deps.BankMapping)
	if err != nil {
		s.deps.Repo.MarkRunFailed(ctx, state.RunID, err)
		return err
	}
	state.CashbookRaw = cashbookRaw
	state.BankRaw = bankRaw
	return nil
}

func (s *ParseSourcesStep) parse(ctx context.Context, uri string, data []byte, mapping ingest.ColumnMapping) ([]recon.RawRecord, error) {
	if strings.HasSuffix(strings.ToLower(uri), ".pdf") {
		if s.deps.Parser == nil {
			return nil, fmt.Errorf("parse %s: no statement parser configured for PDF input", uri)
		}
		return s.deps.Parser.ParseStatement(ctx, data)
	}
	return ingest.ReadLedgerBytes(data, mapping)
}

// NormalizeStep converts raw records to canonical records, one to one.
type NormalizeStep struct{ deps *Deps }

func (s *NormalizeStep) Execute(ctx context.Context, state *State) error {
	state.Cashbook = s.deps.Normalizer.Normalize(state.CashbookRaw, recon.SourceCashbook)
	state.Bank = s.deps.Normalizer.Normalize(state.BankRaw, recon.SourceBank)
	return nil
}

// ReconcileStep runs the exact-key match. This is the single sequential
// pass; bank-record consumption is the only shared state in the run.
type ReconcileStep struct{ deps *Deps }

func (s *ReconcileStep) Execute(ctx context.Context, state *State) error {
	state.Result = recon.Reconcile(state.Cashbook, state.Bank)
	state.Summary = report.Summarize(state.Result)

	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", state.RunID).
		Int("matched", state.Summary.MatchedCount).
		Int("cashbook_remaining", state.Summary.CashbookRemaining).
		Int("bank_remaining", state.Summary.BankRemaining).
		Msg("Reconciliation pass complete")

	return nil
}

// StoreResultsStep writes one warehouse row per output record.
type StoreResultsStep struct{ deps *Deps }

func (s *StoreResultsStep) Execute(ctx context.Context, state *State) error {
	rows := infra.BuildResultRows(state.RunID, state.Result, time.Now())
	if err := s.deps.Repo.InsertResults(ctx, rows); err != nil {
		s.deps.Repo.MarkRunFailed(ctx, state.RunID, err)
		return err
	}
	return nil
}

// PublishReportStep renders the three CSV tables and uploads them under a
// run-scoped prefix. Skipped when no report bucket is configured.
type PublishReportStep struct{ deps *Deps }

func (s *PublishReportStep) Execute(ctx context.Context, state *State) error {
	if state.ReportBucket == "" {
		return nil
	}

	files := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{"matched.csv", func() ([]byte, error) { return report.MatchedCSV(state.Result) }},
		{"cashbook_remaining.csv", func() ([]byte, error) { return report.RemainingCSV(state.Result.CashbookRemaining) }},
		{"bank_remaining.csv", func() ([]byte, error) { return report.RemainingCSV(state.Result.BankRemaining) }},
	}

	for _, f := range files {
		data, err := f.render()
		if err != nil {
			s.deps.Repo.MarkRunFailed(ctx, state.RunID, err)
			return err
		}
		uri := gcsuploader.ReportURI(state.ReportBucket, state.RunID, f.name)
		if err := s.deps.Store.Publish(ctx, uri, "text/csv", data); err != nil {
			s.deps.Repo.MarkRunFailed(ctx, state.RunID, err)
			return err
		}
		state.ReportURIs = append(state.ReportURIs, uri)
	}

	return nil
}

// MarkSuccessStep closes out the run row with the headline counters.
type MarkSuccessStep struct{ deps *Deps }

func (s *MarkSuccessStep) Execute(ctx context.Context, state *State) error {
	return s.deps.Repo.MarkRunSucceeded(ctx, state.RunID,
		state.Summary.TotalCashbook, state.Summary.TotalBank, state.Summary.MatchedCount)
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewReconciliationPipeline creates the standard 8-step run pipeline.
func NewReconciliationPipeline(deps *Deps) *Pipeline {
	return NewPipeline(
		&StartRunStep{deps},
		&FetchSourcesStep{deps},
		&ParseSourcesStep{deps},
		&NormalizeStep{deps},
		&ReconcileStep{deps},
		&StoreResultsStep{deps},
		&PublishReportStep{deps},
		&MarkSuccessStep{deps},
	)
}

// Run executes one full reconciliation against the configured
// collaborators and returns the final state.
func Run(ctx context.Context, deps Deps, cashbookURI, bankURI, reportBucket string) (*State, error) {
	state := &State{
		CashbookURI:  cashbookURI,
		BankURI:      bankURI,
		ReportBucket: reportBucket,
	}
	if err := NewReconciliationPipeline(&deps).Execute(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}
