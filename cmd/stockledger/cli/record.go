// Package cli wires the recording stack for in-process invocation from
// the command line. The posting core has no wire protocol of its own;
// callers embed it, and this package is the reference embedding.
package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockledger/stockledger/internal/app"
	"github.com/stockledger/stockledger/internal/events"
	"github.com/stockledger/stockledger/internal/inventory"
	"github.com/stockledger/stockledger/internal/ledger/rules"
	"github.com/stockledger/stockledger/internal/platform/db"
	"github.com/stockledger/stockledger/internal/posting"
	"github.com/stockledger/stockledger/internal/shared"
)

// RecorderCLI bundles the fully wired inventory recorder.
type RecorderCLI struct {
	pool      *pgxpool.Pool
	publisher *events.Publisher
	service   *inventory.Service
}

// NewRecorderCLI connects to storage and the queue and assembles the
// recorder with the same wiring the embedding application uses.
func NewRecorderCLI(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*RecorderCLI, error) {
	if cfg == nil {
		return nil, errors.New("cli: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}

	resolver, err := rules.NewResolver(ctx, rules.NewRepository(pool))
	if err != nil {
		pool.Close()
		return nil, err
	}

	engine := posting.NewEngine(resolver, logger, nil)
	publisher := events.NewPublisher(cfg.RedisAddr, logger)

	service := inventory.NewService(
		inventory.NewRepository(pool),
		engine,
		publisher,
		shared.NewAuditLogger(pool),
		shared.NewIdempotencyStore(pool),
		inventory.ServiceConfig{
			AllowNegativeStock:  cfg.AllowNegativeStock,
			DefaultReorderPoint: cfg.DefaultReorderPoint,
			ApprovalThreshold:   cfg.ApprovalThreshold,
		},
		logger,
	)

	return &RecorderCLI{pool: pool, publisher: publisher, service: service}, nil
}

// Record runs one movement through the full recording pipeline.
func (c *RecorderCLI) Record(ctx context.Context, input inventory.RecordInput) (inventory.Transaction, error) {
	if c == nil || c.service == nil {
		return inventory.Transaction{}, errors.New("cli: recorder not configured")
	}
	return c.service.Record(ctx, input)
}

// Close releases the pool and queue client.
func (c *RecorderCLI) Close() error {
	if c == nil {
		return nil
	}
	var err error
	if c.publisher != nil {
		err = c.publisher.Close()
	}
	if c.pool != nil {
		c.pool.Close()
	}
	return err
}
