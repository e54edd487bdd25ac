package rules

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists posting rules.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ruleColumns = `code, transaction_type, quantity_sign, debit_account_code, credit_account_code, description, is_active, created_at, updated_at`

// ListActive returns the active rule set for the resolver snapshot.
func (r *Repository) ListActive(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM posting_rules WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.Code, &rule.TransactionType, &rule.Sign, &rule.DebitAccountCode, &rule.CreditAccountCode, &rule.Description, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Upsert inserts or updates a rule keyed by code. Used by seeding.
func (r *Repository) Upsert(ctx context.Context, rule Rule) error {
	if !rule.Sign.Valid() {
		return ErrInvalidSign
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO posting_rules (code, transaction_type, quantity_sign, debit_account_code, credit_account_code, description, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (code) DO UPDATE SET transaction_type=EXCLUDED.transaction_type, quantity_sign=EXCLUDED.quantity_sign,
debit_account_code=EXCLUDED.debit_account_code, credit_account_code=EXCLUDED.credit_account_code,
description=EXCLUDED.description, is_active=EXCLUDED.is_active, updated_at=NOW()`,
		rule.Code, rule.TransactionType, rule.Sign, rule.DebitAccountCode, rule.CreditAccountCode, rule.Description, rule.IsActive)
	return err
}

// Deactivate retires a rule. Rules are never deleted.
func (r *Repository) Deactivate(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, `UPDATE posting_rules SET is_active=FALSE, updated_at=NOW() WHERE code=$1`, code)
	return err
}
