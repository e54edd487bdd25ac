package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockledger/stockledger/internal/ledger/journals"
	"github.com/stockledger/stockledger/internal/platform/db"
)

// Repository persists inventory transactions and stock levels in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the recorder.
// Ledger returns a journal TxRepository bound to the same database
// transaction, so the movement and its posting commit or roll back as one.
type TxRepository interface {
	InsertTransaction(ctx context.Context, txn Transaction) (int64, error)
	LinkJournalEntry(ctx context.Context, txnID, entryID int64) error
	GetStockLevelForUpdate(ctx context.Context, productID int64, location string) (StockLevel, error)
	UpsertStockLevel(ctx context.Context, level StockLevel) error
	Ledger() journals.TxRepository
}

// ErrStockLevelNotFound indicates a missing stock level row.
var ErrStockLevelNotFound = errors.New("inventory: stock level not found")

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const transactionColumns = `id, type, product_id, sku, product_name, quantity, unit_cost, total_cost, from_location, to_location, order_id, document_number, notes, created_by, created_at, journal_entry_id`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var journalID *int64
	err := row.Scan(&t.ID, &t.Type, &t.ProductID, &t.SKU, &t.ProductName, &t.Quantity, &t.UnitCost, &t.TotalCost,
		&t.FromLocation, &t.ToLocation, &t.OrderID, &t.DocumentNumber, &t.Notes, &t.CreatedBy, &t.CreatedAt, &journalID)
	if journalID != nil {
		t.JournalEntryID = *journalID
	}
	return t, err
}

// GetByID fetches one transaction.
func (r *Repository) GetByID(ctx context.Context, id int64) (Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM inventory_transactions WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

// ListByProduct returns a product's movement history, newest first.
func (r *Repository) ListByProduct(ctx context.Context, productID int64, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM inventory_transactions
WHERE product_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListByPeriod returns movements inside [From, To), optionally filtered by type.
func (r *Repository) ListByPeriod(ctx context.Context, filter PeriodFilter) ([]Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	to := filter.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	types := make([]string, 0, len(filter.Types))
	for _, t := range filter.Types {
		types = append(types, string(t))
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM inventory_transactions
WHERE created_at >= $1 AND created_at < $2 AND (cardinality($3::text[]) = 0 OR type = ANY($3))
ORDER BY created_at DESC, id DESC LIMIT $4`, filter.From, to, types, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// GetStockLevel reads the current level outside any transaction.
func (r *Repository) GetStockLevel(ctx context.Context, productID int64, location string) (StockLevel, error) {
	return scanStockLevel(r.pool.QueryRow(ctx, `SELECT product_id, location, on_hand, reserved, reorder_point, updated_at
FROM stock_levels WHERE product_id=$1 AND location=$2`, productID, location))
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanStockLevel(row pgx.Row) (StockLevel, error) {
	var level StockLevel
	err := row.Scan(&level.ProductID, &level.Location, &level.OnHand, &level.Reserved, &level.ReorderPoint, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLevel{}, ErrStockLevelNotFound
		}
		return StockLevel{}, err
	}
	return level, nil
}

type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) InsertTransaction(ctx context.Context, txn Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_transactions
(type, product_id, sku, product_name, quantity, unit_cost, total_cost, from_location, to_location, order_id, document_number, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id`,
		txn.Type, txn.ProductID, txn.SKU, txn.ProductName, txn.Quantity, txn.UnitCost, txn.TotalCost,
		txn.FromLocation, txn.ToLocation, txn.OrderID, txn.DocumentNumber, txn.Notes, txn.CreatedBy, txn.CreatedAt).Scan(&id)
	return id, err
}

// LinkJournalEntry records the posting a movement settled under. The link is
// written once; a linked transaction is immutable.
func (r *txRepo) LinkJournalEntry(ctx context.Context, txnID, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE inventory_transactions SET journal_entry_id=$2 WHERE id=$1 AND journal_entry_id IS NULL`, txnID, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *txRepo) GetStockLevelForUpdate(ctx context.Context, productID int64, location string) (StockLevel, error) {
	return scanStockLevel(r.tx.QueryRow(ctx, `SELECT product_id, location, on_hand, reserved, reorder_point, updated_at
FROM stock_levels WHERE product_id=$1 AND location=$2 FOR UPDATE`, productID, location))
}

func (r *txRepo) UpsertStockLevel(ctx context.Context, level StockLevel) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_levels (product_id, location, on_hand, reserved, reorder_point, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (product_id, location) DO UPDATE SET on_hand=EXCLUDED.on_hand, reserved=EXCLUDED.reserved,
reorder_point=EXCLUDED.reorder_point, updated_at=NOW()`,
		level.ProductID, level.Location, level.OnHand, level.Reserved, level.ReorderPoint)
	return err
}

func (r *txRepo) Ledger() journals.TxRepository {
	return journals.NewTxRepository(r.tx)
}
