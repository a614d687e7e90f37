package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/concierge-backend/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		hotel     string
		documents []string
		limit     int
		threshold float64
		noChunks  bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a hotel-scoped search and print the JSON response",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := search.Request{HotelID: hotel, Options: search.DefaultOptions()}
			if len(args) == 1 {
				req.Query = args[0]
			}
			if cmd.Flags().Changed("limit") {
				req.Options.Limit = limit
			}
			if cmd.Flags().Changed("threshold") {
				req.Options.MatchThreshold = threshold
			}
			req.Options.UseChunks = !noChunks
			switch len(documents) {
			case 0:
			case 1:
				req.Options.DocumentID = documents[0]
			default:
				req.Options.DocumentIDs = documents
			}

			return withDeps(cmd, func(ctx context.Context, deps *adminDeps) error {
				resp, err := deps.Search.Search(ctx, req)
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				return printJSON(cmd, resp)
			})
		},
	}
	cmd.Flags().StringVar(&hotel, "hotel", "", "hotel id (required)")
	cmd.Flags().StringSliceVar(&documents, "document", nil, "restrict to document id(s); repeat or comma-separate")
	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "maximum number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", search.DefaultMatchThreshold, "minimum similarity")
	cmd.Flags().BoolVar(&noChunks, "no-chunks", false, "skip chunk search and match whole documents")
	return cmd
}
