package cli

import (
	"context"
	"log/slog"

	"github.com/stockledger/stockledger/internal/app"
	"github.com/stockledger/stockledger/internal/ledger/accounts"
	"github.com/stockledger/stockledger/internal/ledger/journals"
	"github.com/stockledger/stockledger/internal/platform/db"
	"github.com/stockledger/stockledger/internal/shared"
)

// ReverseEntry posts a reversing entry for an existing journal entry. The
// original entry is left untouched; corrections are always explicit
// reversals.
func ReverseEntry(ctx context.Context, cfg *app.Config, logger *slog.Logger, input journals.ReverseInput) (journals.JournalEntry, error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	defer pool.Close()

	service := journals.NewService(journals.NewRepository(pool), shared.NewAuditLogger(pool))
	return service.Reverse(ctx, input)
}

// ListAccounts returns the chart of accounts with running balances.
func ListAccounts(ctx context.Context, cfg *app.Config) ([]accounts.Account, error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	return accounts.NewRepository(pool).List(ctx)
}
