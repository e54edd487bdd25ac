package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockledger/stockledger/internal/ledger/shared"
)

// PostingLineInput describes a journal line for a posting request.
type PostingLineInput struct {
	AccountID   int64
	Side        Side
	Amount      decimal.Decimal
	Description string
	CostCenter  string
}

// PostingInput groups fields required to create a journal entry. It owns an
// ordered list of lines checked by a generic balance rule rather than a
// hardcoded two-line shape, so split entries stay possible.
type PostingInput struct {
	Date           time.Time
	DocumentType   string
	DocumentNumber string
	Memo           string
	SourceModule   string
	SourceID       uuid.UUID
	ProductID      int64
	TransactionID  int64
	OrderID        uuid.UUID
	ReversalOf     int64
	PostedBy       int64
	Lines          []PostingLineInput
}

// Validate enforces the balanced-entry invariant: every line positive with
// exactly one side, and sum(debits) == sum(credits) to the cent.
func (in PostingInput) Validate() error {
	if in.Date.IsZero() {
		return errors.New("ledger: entry date required")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if !line.Side.Valid() {
			return fmt.Errorf("ledger: line %d invalid side %q", idx, line.Side)
		}
		if line.Amount.Sign() <= 0 {
			return fmt.Errorf("ledger: line %d amount must be positive", idx)
		}
		switch line.Side {
		case SideDebit:
			debit = debit.Add(line.Amount)
		case SideCredit:
			credit = credit.Add(line.Amount)
		}
	}
	if !debit.Round(2).Equal(credit.Round(2)) {
		return shared.ErrUnbalanced
	}
	if in.SourceModule == "" {
		return errors.New("ledger: source module required")
	}
	if in.SourceID == uuid.Nil {
		return errors.New("ledger: source id required")
	}
	return nil
}

// Total returns the entry amount: the cent-rounded sum of the debit side.
func (in PostingInput) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range in.Lines {
		if line.Side == SideDebit {
			total = total.Add(line.Amount)
		}
	}
	return total.Round(2)
}

// ReverseInput wraps parameters for posting a reversing entry.
type ReverseInput struct {
	EntryID int64
	ActorID int64
	Memo    string
	Date    *time.Time
}
