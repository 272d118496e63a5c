package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/bank-recon/internal/recon"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used to transcribe PDF statements.
const DefaultModelName = "gemini-2.5-flash"

// StatementParser turns a PDF bank statement into raw ledger records.
// The parser only transcribes what is printed; normalization and matching
// never depend on it.
type StatementParser interface {
	ParseStatement(ctx context.Context, pdfBytes []byte) ([]recon.RawRecord, error)
}

// GeminiStatementParser is the concrete StatementParser backed by Gemini.
type GeminiStatementParser struct {
	model string
}

// NewGeminiStatementParser creates a parser using the given model, or
// DefaultModelName when empty.
func NewGeminiStatementParser(model string) *GeminiStatementParser {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiStatementParser{model: model}
}

// ParseStatement sends the PDF to Gemini and returns one raw record per
// statement line. Field values come back as the literal strings printed on
// the statement so the normalizer sees the same input a CSV export would
// give it.
func (p *GeminiStatementParser) ParseStatement(ctx context.Context, pdfBytes []byte) ([]recon.RawRecord, error) {
	prompt :=
		"You are a transcriber for PDF bank statements.\n\n" +
			"Task:\n" +
			"- Transcribe ALL transaction lines in the attached statement.\n" +
			"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
			"- Output a JSON array of objects.\n\n" +
			"Each object must have these fields:\n" +
			"- \"date\": string, exactly as printed on the statement\n" +
			"- \"description\": string, exactly as printed\n" +
			"- \"debit\": string or null, the paid-out column exactly as printed\n" +
			"- \"credit\": string or null, the paid-in column exactly as printed\n" +
			"- \"reference\": string or null, any reference column exactly as printed\n\n" +
			"Rules:\n" +
			"- Do NOT reformat dates or amounts; copy the printed text verbatim.\n" +
			"- Do NOT classify, merge or skip lines.\n" +
			"Return ONLY valid raw JSON.\n" +
			"Do NOT wrap the response in code fences.\n" +
			"Output must begin with \"[\" and end with \"]\".\n"

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("ParseStatement: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     pdfBytes,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("ParseStatement: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ParseStatement: empty response from model")
	}

	var lines []statementLine
	clean := cleanModelJSON(rawText)
	if err := json.Unmarshal([]byte(clean), &lines); err != nil {
		return nil, fmt.Errorf("ParseStatement: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	return linesToRawRecords(lines), nil
}

type statementLine struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Debit       *string `json:"debit"`
	Credit      *string `json:"credit"`
	Reference   *string `json:"reference"`
}

func linesToRawRecords(lines []statementLine) []recon.RawRecord {
	records := make([]recon.RawRecord, 0, len(lines))
	for _, line := range lines {
		rec := recon.RawRecord{
			Description: line.Description,
			Date:        line.Date,
			Debit:       line.Debit,
			Credit:      line.Credit,
		}
		if line.Reference != nil {
			rec.Reference = *line.Reference
		}
		records = append(records, rec)
	}
	return records
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only from the first '[' to the last ']' if junk remains.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
