package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type reindexOptions struct {
	hotel    string
	document string
	limit    int
	dryRun   bool
	dispatch bool
}

type reindexItem struct {
	DocumentID uuid.UUID `json:"document_id"`
	HotelID    uuid.UUID `json:"hotel_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status"`
	Chunks     int       `json:"chunks,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type reindexReport struct {
	DryRun    bool          `json:"dry_run"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Items     []reindexItem `json:"items"`
	Elapsed   string        `json:"elapsed"`
}

func newReindexCmd() *cobra.Command {
	var opts reindexOptions
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Process documents that are not yet searchable",
		Long: `Runs ingestion for unprocessed documents, oldest first.
With --document only that document is processed, whatever its state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, func(ctx context.Context, deps *adminDeps) error {
				report, err := runReindex(ctx, deps, opts)
				if err != nil {
					return err
				}
				if err := printJSON(cmd, report); err != nil {
					return err
				}
				if report.Failed > 0 {
					return fmt.Errorf("%d of %d documents failed", report.Failed, report.Total)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.hotel, "hotel", "", "only documents of this hotel id")
	cmd.Flags().StringVar(&opts.document, "document", "", "process a single document id")
	cmd.Flags().IntVar(&opts.limit, "limit", 100, "maximum number of documents")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "list the documents without processing them")
	cmd.Flags().BoolVar(&opts.dispatch, "dispatch", false, "hand documents to the configured dispatcher instead of processing in this process")
	return cmd
}

func runReindex(ctx context.Context, deps *adminDeps, opts reindexOptions) (*reindexReport, error) {
	started := time.Now()
	hotelID, err := parseOptionalUUID("hotel", opts.hotel)
	if err != nil {
		return nil, err
	}
	documentID, err := parseOptionalUUID("document", opts.document)
	if err != nil {
		return nil, err
	}
	if !opts.dryRun && deps.Processor == nil {
		return nil, errIngestionDisabled
	}

	var items []reindexItem
	if documentID != uuid.Nil {
		items = []reindexItem{{DocumentID: documentID, HotelID: hotelID}}
	} else {
		docs, err := deps.Documents.ListUnprocessed(ctx, hotelID, opts.limit)
		if err != nil {
			return nil, fmt.Errorf("list unprocessed documents: %w", err)
		}
		for _, d := range docs {
			items = append(items, reindexItem{DocumentID: d.ID, HotelID: d.HotelID, Title: d.Title})
		}
	}

	report := &reindexReport{DryRun: opts.dryRun, Total: len(items)}
	for i := range items {
		item := &items[i]
		switch {
		case opts.dryRun:
			item.Status = "pending"
			continue
		case opts.dispatch && deps.Dispatcher != nil:
			if err := deps.Dispatcher.Dispatch(ctx, item.DocumentID); err != nil {
				item.Status, item.Error = "failed", err.Error()
				report.Failed++
				continue
			}
			item.Status = "dispatched"
		default:
			summary, err := deps.Processor.Run(ctx, item.DocumentID)
			if err != nil {
				item.Status, item.Error = "failed", err.Error()
				report.Failed++
				continue
			}
			item.Status = "processed"
			item.HotelID = summary.HotelID
			item.Chunks = summary.Chunks
		}
		report.Succeeded++
	}
	report.Items = items
	report.Elapsed = time.Since(started).Round(time.Millisecond).String()
	return report, nil
}
