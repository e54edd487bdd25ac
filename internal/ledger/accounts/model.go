package accounts

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// IsDebitNormal reports whether a debit increases this account type's
// balance. Assets and expenses are debit-normal; liabilities, equity and
// revenue are credit-normal.
func (t AccountType) IsDebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// DebitDelta returns the signed balance change caused by debiting amount
// against an account of this type.
func (t AccountType) DebitDelta(amount decimal.Decimal) decimal.Decimal {
	if t.IsDebitNormal() {
		return amount
	}
	return amount.Neg()
}

// CreditDelta returns the signed balance change caused by crediting amount
// against an account of this type.
func (t AccountType) CreditDelta(amount decimal.Decimal) decimal.Decimal {
	return t.DebitDelta(amount).Neg()
}

// Account models a chart of accounts node. Codes are hierarchical strings
// such as "1.1.03.001"; only analytic (leaf) accounts accept postings.
// Accounts are never deleted, only deactivated, and their running balance
// is mutated exclusively by posting balance deltas.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
	Analytic  bool
	IsActive  bool
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Postable reports whether the account can appear on a journal line.
func (a Account) Postable() bool {
	return a.IsActive && a.Analytic
}

// ErrInvalidAccountType indicates an unknown account type value.
var ErrInvalidAccountType = errors.New("accounts: invalid account type")
