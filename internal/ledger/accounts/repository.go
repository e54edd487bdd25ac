package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	ledgershared "github.com/stockledger/stockledger/internal/ledger/shared"
)

// Repository persists chart of accounts entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, code, name, type, parent_id, analytic, is_active, balance, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Analytic, &a.IsActive, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// GetByCode fetches an account by its hierarchical code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ledgershared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// List returns all accounts ordered by code.
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts an account with a zero opening balance.
func (r *Repository) Create(ctx context.Context, a Account) (Account, error) {
	if !a.Type.Valid() {
		return Account{}, ErrInvalidAccountType
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, type, parent_id, analytic, is_active, balance)
VALUES ($1,$2,$3,$4,$5,TRUE,0) RETURNING `+accountColumns, a.Code, a.Name, a.Type, a.ParentID, a.Analytic)
	return scanAccount(row)
}

// Deactivate flags the account inactive. Accounts are never deleted so the
// ledger history they anchor stays auditable.
func (r *Repository) Deactivate(ctx context.Context, code string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE accounts SET is_active=FALSE, updated_at=NOW() WHERE code=$1`, code)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ledgershared.ErrAccountNotFound
	}
	return nil
}
