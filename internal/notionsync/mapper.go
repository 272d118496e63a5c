package notionsync

import (
	"fmt"
	"time"

	"github.com/dvloznov/bank-recon/internal/recon"
	"github.com/jomei/notionapi"
)

// ExceptionID builds the stable identity for one unmatched record. The
// same record produces the same ID across re-runs of the same run ID,
// which is what makes the sync idempotent.
func ExceptionID(runID string, rec recon.CanonicalRecord) string {
	return fmt.Sprintf("%s:%s:%d", runID, rec.Source, rec.RawIndex+1)
}

// ExceptionToNotionProperties converts one unmatched record to Notion
// properties for the Reconciliation Exceptions database.
func ExceptionToNotionProperties(runID string, rec recon.CanonicalRecord) notionapi.Properties {
	props := notionapi.Properties{
		"Exception ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: ExceptionID(runID, rec),
					},
				},
			},
		},
		"Source": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(rec.Source),
			},
		},
		"Run ID": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: runID,
					},
				},
			},
		},
	}

	// Description
	if rec.Description != "" {
		props["Description"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: rec.Description,
					},
				},
			},
		}
	}

	// Reference
	if rec.ReferenceKey != "" {
		props["Reference"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: rec.ReferenceKey,
					},
				},
			},
		}
	}

	// Amount (nullable)
	if rec.AmountValid {
		amount, _ := rec.Amount.Float64()
		props["Amount"] = notionapi.NumberProperty{
			Number: amount,
		}
	}

	// Transaction Date (nullable)
	if rec.DateValid {
		props["Date"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(time.Date(
						rec.Date.Year,
						rec.Date.Month,
						rec.Date.Day,
						0, 0, 0, 0, time.UTC,
					))
					return &d
				}(),
			},
		}
	}

	// Issues
	if len(rec.Issues) > 0 {
		opts := make([]notionapi.Option, 0, len(rec.Issues))
		for _, issue := range rec.Issues {
			opts = append(opts, notionapi.Option{Name: string(issue)})
		}
		props["Issues"] = notionapi.MultiSelectProperty{
			MultiSelect: opts,
		}
	}

	return props
}
