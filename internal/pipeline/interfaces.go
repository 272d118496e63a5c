package pipeline

import (
	"github.com/dvloznov/bank-recon/internal/gcsuploader"
	"github.com/dvloznov/bank-recon/internal/ingest"
	infra "github.com/dvloznov/bank-recon/internal/infra/bigquery"
	"github.com/dvloznov/bank-recon/internal/recon"
)

// Deps bundles the collaborators one reconciliation run needs. Everything
// is an interface (or pure) so tests can run the pipeline end to end with
// mocks and no cloud project.
type Deps struct {
	Repo   infra.RunRepository
	Store  gcsuploader.SourceStore
	Parser ingest.StatementParser

	Normalizer *recon.Normalizer

	CashbookMapping ingest.ColumnMapping
	BankMapping     ingest.ColumnMapping
}

// NewDeps creates the production dependency set: BigQuery repository, GCS
// source store, Gemini PDF parser, default normalizer and column mappings.
func NewDeps(repo infra.RunRepository) Deps {
	return Deps{
		Repo:            repo,
		Store:           gcsuploader.NewGCSSourceStore(),
		Parser:          ingest.NewGeminiStatementParser(""),
		Normalizer:      recon.NewNormalizer(recon.DefaultConfig()),
		CashbookMapping: ingest.DefaultCashbookMapping(),
		BankMapping:     ingest.DefaultBankMapping(),
	}
}
