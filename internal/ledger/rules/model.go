package rules

import (
	"errors"
	"time"
)

// QuantitySign is the closed discriminator that replaces free-text rule
// conditions. A rule keyed SignAny matches every movement of its type;
// SignPositive/SignNegative split types like ADJUSTMENT whose accounting
// treatment depends on the direction of the quantity.
type QuantitySign string

const (
	SignAny      QuantitySign = "ANY"
	SignPositive QuantitySign = "POSITIVE"
	SignNegative QuantitySign = "NEGATIVE"
)

// Valid reports whether s is a known sign value.
func (s QuantitySign) Valid() bool {
	return s == SignAny || s == SignPositive || s == SignNegative
}

// Rule maps an inventory transaction type (and quantity sign) to the
// debit/credit account pair a posting for it must use. Rules are seeded at
// deployment and deactivated rather than deleted.
type Rule struct {
	Code              string
	TransactionType   string
	Sign              QuantitySign
	DebitAccountCode  string
	CreditAccountCode string
	Description       string
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

var (
	// ErrRuleNotFound indicates no active rule matches a movement. The
	// accounting model is incomplete for a transaction type in actual use;
	// treated as fatal for the posting attempt.
	ErrRuleNotFound = errors.New("rules: no active posting rule matches")
	// ErrAmbiguousRule indicates more than one active rule matches after
	// sign evaluation. A configuration defect, surfaced rather than
	// silently resolved.
	ErrAmbiguousRule = errors.New("rules: multiple active posting rules match")
	// ErrInvalidSign indicates an unknown quantity sign value in the table.
	ErrInvalidSign = errors.New("rules: invalid quantity sign")
)
