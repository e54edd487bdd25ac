package journals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockledger/stockledger/internal/ledger/accounts"
	"github.com/stockledger/stockledger/internal/ledger/shared"
	"github.com/stockledger/stockledger/internal/platform/db"
)

// Repository encapsulates DB operations for journal entries.
type Repository interface {
	List(ctx context.Context, limit int) ([]JournalEntry, error)
	GetWithLines(ctx context.Context, entryID int64) (JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside one posting
// transaction. Account lookups and balance deltas live here, not in the
// accounts repository, because they must share the posting's transaction.
type TxRepository interface {
	InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error)
	InsertEntryLines(ctx context.Context, entryID int64, lines []PostingLineInput) error
	LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error
	GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, []EntryLine, error)

	GetAccountByCode(ctx context.Context, code string) (accounts.Account, error)
	GetAccountByID(ctx context.Context, id int64) (accounts.Account, error)
	ApplyBalanceDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const entryColumns = `id, number, date, document_type, document_number, memo, total_amount, source_module, source_id, product_id, transaction_id, order_id, reversal_of, posted_by, posted_at, created_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.Number, &e.Date, &e.DocumentType, &e.DocumentNumber, &e.Memo, &e.TotalAmount,
		&e.SourceModule, &e.SourceID, &e.ProductID, &e.TransactionID, &e.OrderID, &e.ReversalOf,
		&e.PostedBy, &e.PostedAt, &e.CreatedAt)
	return e, err
}

func (r *repository) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY number DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) GetWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, lines, err := tx.GetJournalWithLines(ctx, entryID)
		if err != nil {
			return err
		}
		e.Lines = lines
		entry = e
		return nil
	})
	return entry, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an already-open transaction. The inventory recorder
// uses this to run the journal posting inside its own transaction so that a
// movement and its ledger entry share one failure domain.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (date, document_type, document_number, memo, total_amount, source_module, source_id, product_id, transaction_id, order_id, reversal_of, posted_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id, number, posted_at, created_at`,
		in.Date, in.DocumentType, in.DocumentNumber, in.Memo, in.Total(),
		in.SourceModule, in.SourceID, in.ProductID, in.TransactionID, in.OrderID, in.ReversalOf, in.PostedBy)
	entry := JournalEntry{
		Date:           in.Date,
		DocumentType:   in.DocumentType,
		DocumentNumber: in.DocumentNumber,
		Memo:           in.Memo,
		TotalAmount:    in.Total(),
		SourceModule:   in.SourceModule,
		SourceID:       in.SourceID,
		ProductID:      in.ProductID,
		TransactionID:  in.TransactionID,
		OrderID:        in.OrderID,
		ReversalOf:     in.ReversalOf,
		PostedBy:       in.PostedBy,
	}
	if err := row.Scan(&entry.ID, &entry.Number, &entry.PostedAt, &entry.CreatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertEntryLines(ctx context.Context, entryID int64, lines []PostingLineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO entry_lines (journal_id, account_id, side, amount, description, cost_center)
VALUES ($1,$2,$3,$4,$5,$6)`, entryID, line.AccountID, line.Side, line.Amount.Round(2), line.Description, line.CostCenter); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, ref_id, journal_id) VALUES ($1,$2,$3)`, module, ref, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrSourceConflict
		}
		return err
	}
	return nil
}

func (r *txRepository) GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, []EntryLine, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, nil, shared.ErrJournalNotFound
		}
		return JournalEntry{}, nil, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, journal_id, account_id, side, amount, description, cost_center, created_at
FROM entry_lines WHERE journal_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return JournalEntry{}, nil, err
	}
	defer rows.Close()
	var lines []EntryLine
	for rows.Next() {
		var line EntryLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Side, &line.Amount, &line.Description, &line.CostCenter, &line.CreatedAt); err != nil {
			return JournalEntry{}, nil, err
		}
		lines = append(lines, line)
	}
	return entry, lines, rows.Err()
}

func (r *txRepository) GetAccountByCode(ctx context.Context, code string) (accounts.Account, error) {
	return r.scanOneAccount(ctx, `SELECT id, code, name, type, parent_id, analytic, is_active, balance, created_at, updated_at FROM accounts WHERE code=$1`, code)
}

func (r *txRepository) GetAccountByID(ctx context.Context, id int64) (accounts.Account, error) {
	return r.scanOneAccount(ctx, `SELECT id, code, name, type, parent_id, analytic, is_active, balance, created_at, updated_at FROM accounts WHERE id=$1`, id)
}

func (r *txRepository) scanOneAccount(ctx context.Context, query string, arg any) (accounts.Account, error) {
	var a accounts.Account
	err := r.tx.QueryRow(ctx, query, arg).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Analytic, &a.IsActive, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, shared.ErrAccountNotFound
		}
		return accounts.Account{}, err
	}
	return a, nil
}

// ApplyBalanceDelta adjusts the running balance with a single atomic
// increment, never a read-modify-write, so concurrent postings against the
// same account cannot lose updates.
func (r *txRepository) ApplyBalanceDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}
