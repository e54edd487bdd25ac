package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side marks an entry line as a debit or a credit.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Valid reports whether s is exactly one of the two sides.
func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

// JournalEntry is an atomic, balanced group of debit/credit lines recorded
// on one date. Once posted it is immutable; corrections are new reversing
// entries, never in-place mutation.
type JournalEntry struct {
	ID             int64
	Number         int64
	Date           time.Time
	DocumentType   string
	DocumentNumber string
	Memo           string
	TotalAmount    decimal.Decimal
	SourceModule   string
	SourceID       uuid.UUID
	ProductID      int64
	TransactionID  int64
	OrderID        uuid.UUID
	ReversalOf     int64
	PostedBy       int64
	PostedAt       time.Time
	CreatedAt      time.Time
	Lines          []EntryLine
}

// EntryLine is a single debit or credit against one account. Lines are
// owned exclusively by their journal entry and cannot outlive it.
type EntryLine struct {
	ID          int64
	JournalID   int64
	AccountID   int64
	Side        Side
	Amount      decimal.Decimal
	Description string
	CostCenter  string
	CreatedAt   time.Time
}
