package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/stockledger/stockledger/cmd/stockledger/cli"
	"github.com/stockledger/stockledger/internal/app"
	"github.com/stockledger/stockledger/internal/inventory"
	"github.com/stockledger/stockledger/internal/ledger/journals"
	"github.com/stockledger/stockledger/internal/observability"
	"github.com/stockledger/stockledger/internal/platform/cache"
	"github.com/stockledger/stockledger/internal/platform/db"
	"github.com/stockledger/stockledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "record":
			if err := runRecord(ctx, cfg, logger, os.Args[2:]); err != nil {
				logger.Error("record", slog.Any("error", err))
				os.Exit(1)
			}
			return
		case "reverse":
			if err := runReverse(ctx, cfg, logger, os.Args[2:]); err != nil {
				logger.Error("reverse", slog.Any("error", err))
				os.Exit(1)
			}
			return
		case "accounts":
			if err := runAccounts(ctx, cfg); err != nil {
				logger.Error("accounts", slog.Any("error", err))
				os.Exit(1)
			}
			return
		}
	}

	serve(ctx, stop, cfg, logger)
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Jobs:    jobHandler,
		Ready: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runRecord records a single movement through the full posting pipeline.
func runRecord(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	var (
		txType   = fs.String("type", "", "transaction type (PURCHASE, SALE, ...)")
		product  = fs.Int64("product", 0, "product id")
		sku      = fs.String("sku", "", "product SKU")
		name     = fs.String("name", "", "product name")
		qty      = fs.String("qty", "", "quantity")
		cost     = fs.String("cost", "0", "unit cost")
		to       = fs.String("to", "", "destination location")
		from     = fs.String("from", "", "source location (transfers)")
		document = fs.String("doc", "", "document number")
		order    = fs.String("order", "", "order id (uuid)")
		notes    = fs.String("notes", "", "free-form notes")
		actor    = fs.Int64("by", 0, "acting user id")
		idemKey  = fs.String("idempotency-key", "", "explicit idempotency key")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	quantity, err := decimal.NewFromString(*qty)
	if err != nil {
		return fmt.Errorf("parse qty: %w", err)
	}
	unitCost, err := decimal.NewFromString(*cost)
	if err != nil {
		return fmt.Errorf("parse cost: %w", err)
	}
	var orderID uuid.UUID
	if *order != "" {
		orderID, err = uuid.Parse(*order)
		if err != nil {
			return fmt.Errorf("parse order id: %w", err)
		}
	}

	recorder, err := cli.NewRecorderCLI(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Warn("recorder close", slog.Any("error", err))
		}
	}()

	txn, err := recorder.Record(ctx, inventory.RecordInput{
		Type:           inventory.TransactionType(*txType),
		ProductID:      *product,
		SKU:            *sku,
		ProductName:    *name,
		Quantity:       quantity,
		UnitCost:       unitCost,
		ToLocation:     *to,
		FromLocation:   *from,
		OrderID:        orderID,
		DocumentNumber: *document,
		Notes:          *notes,
		CreatedBy:      *actor,
		IdempotencyKey: *idemKey,
	})
	if err != nil {
		return err
	}

	logger.Info("movement recorded",
		slog.Int64("transaction_id", txn.ID),
		slog.Int64("journal_entry_id", txn.JournalEntryID),
		slog.String("total_cost", txn.TotalCost.StringFixed(2)),
	)
	return nil
}

// runReverse posts a reversing entry for a journal entry.
func runReverse(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("reverse", flag.ContinueOnError)
	var (
		entryID = fs.Int64("entry", 0, "journal entry id to reverse")
		actor   = fs.Int64("by", 0, "acting user id")
		memo    = fs.String("memo", "", "reversal memo")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	reversal, err := cli.ReverseEntry(ctx, cfg, logger, journals.ReverseInput{
		EntryID: *entryID,
		ActorID: *actor,
		Memo:    *memo,
	})
	if err != nil {
		return err
	}
	logger.Info("entry reversed",
		slog.Int64("original_id", reversal.ReversalOf),
		slog.Int64("reversal_id", reversal.ID),
		slog.Int64("reversal_number", reversal.Number),
	)
	return nil
}

// runAccounts prints the chart of accounts with running balances.
func runAccounts(ctx context.Context, cfg *app.Config) error {
	list, err := cli.ListAccounts(ctx, cfg)
	if err != nil {
		return err
	}
	for _, a := range list {
		active := " "
		if !a.IsActive {
			active = "x"
		}
		fmt.Printf("%s %-12s %-9s %-40s %12s\n", active, a.Code, a.Type, a.Name, a.Balance.StringFixed(2))
	}
	return nil
}
