package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	// TaskLedgerIntegrity verifies ledger invariants on a schedule.
	TaskLedgerIntegrity = "ledger:integrity"
)

// LedgerIntegrityPayload carries scheduling metadata.
type LedgerIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerIntegrityTask constructs the scheduled integrity task.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body), nil
}

// LedgerIntegrityJob cross-checks stored journal entries against the
// balance invariant. Posting keeps entries balanced by construction, so
// any hit here means data was touched outside the application.
type LedgerIntegrityJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLedgerIntegrityJob constructs a LedgerIntegrityJob.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *LedgerIntegrityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerIntegrityJob{pool: pool, logger: logger}
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return j.Run(ctx)
}

// Run scans for journal entries whose debit and credit totals diverge and
// for a non-zero grand total across all lines.
func (j *LedgerIntegrityJob) Run(ctx context.Context) error {
	rows, err := j.pool.Query(ctx, `
		SELECT journal_id,
		       SUM(CASE WHEN side = 'DEBIT' THEN amount ELSE 0 END) AS debit_total,
		       SUM(CASE WHEN side = 'CREDIT' THEN amount ELSE 0 END) AS credit_total
		FROM entry_lines
		GROUP BY journal_id
		HAVING SUM(CASE WHEN side = 'DEBIT' THEN amount ELSE -amount END) <> 0`)
	if err != nil {
		return err
	}
	defer rows.Close()

	unbalanced := 0
	for rows.Next() {
		var journalID int64
		var debit, credit decimal.Decimal
		if err := rows.Scan(&journalID, &debit, &credit); err != nil {
			return err
		}
		unbalanced++
		j.logger.Error("unbalanced journal entry",
			slog.Int64("journal_id", journalID),
			slog.String("debit_total", debit.StringFixed(2)),
			slog.String("credit_total", credit.StringFixed(2)),
		)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var drift decimal.Decimal
	err = j.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN side = 'DEBIT' THEN amount ELSE -amount END), 0)
		FROM entry_lines`).Scan(&drift)
	if err != nil {
		return err
	}
	if !drift.IsZero() {
		j.logger.Error("ledger grand total drift", slog.String("drift", drift.StringFixed(2)))
	}

	j.logger.Info("ledger integrity check completed",
		slog.Int("unbalanced_entries", unbalanced),
		slog.Bool("grand_total_balanced", drift.IsZero()),
	)
	return nil
}
