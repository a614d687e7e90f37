package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/concierge-backend/internal/app"
	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/ingestion/pipeline"
	"github.com/yungbote/concierge-backend/internal/platform/dbctx"
	"github.com/yungbote/concierge-backend/internal/search"
)

type searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

type unprocessedLister interface {
	ListUnprocessed(ctx context.Context, hotelID uuid.UUID, limit int) ([]*types.Document, error)
}

type processor interface {
	Run(ctx context.Context, documentID uuid.UUID) (*pipeline.Summary, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, documentID uuid.UUID) error
}

// adminDeps is what the subcommands need from a running backend. Processor
// and Dispatcher are nil when no document bucket is configured.
type adminDeps struct {
	Search     searcher
	Documents  unprocessedLister
	Processor  processor
	Dispatcher dispatcher
	Migrate    func() error
	Close      func()
}

var errIngestionDisabled = errors.New("document ingestion is not configured (set DOCUMENTS_GCS_BUCKET_NAME)")

var openDeps = func(ctx context.Context) (*adminDeps, error) {
	a, err := app.New(ctx)
	if err != nil {
		return nil, err
	}
	deps := &adminDeps{
		Search:    a.Services.Search,
		Documents: repoLister{a.Repos},
		Migrate:   a.Clients.Postgres.AutoMigrateAll,
		Close:     a.Close,
	}
	if a.Services.Pipeline != nil {
		deps.Processor = a.Services.Pipeline
		deps.Dispatcher = a.Services.Dispatcher
	}
	return deps, nil
}

type repoLister struct{ repos app.Repos }

func (l repoLister) ListUnprocessed(ctx context.Context, hotelID uuid.UUID, limit int) ([]*types.Document, error) {
	return l.repos.Document.ListUnprocessed(dbctx.Context{Ctx: ctx}, hotelID, limit)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "concierge-admin",
		Short:         "Operate the hotel document search backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newReindexCmd(), newSearchCmd(), newMigrateCmd(), newTokenCmd())
	return root
}

// withDeps opens the backend for the duration of one command.
func withDeps(cmd *cobra.Command, fn func(ctx context.Context, deps *adminDeps) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	deps, err := openDeps(ctx)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	if deps.Close != nil {
		defer deps.Close()
	}
	return fn(ctx, deps)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseOptionalUUID(flag, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return id, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the document tables and search indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, func(_ context.Context, deps *adminDeps) error {
				if err := deps.Migrate(); err != nil {
					return err
				}
				cmd.Println("migrations applied")
				return nil
			})
		},
	}
}
