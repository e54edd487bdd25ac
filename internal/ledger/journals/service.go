package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stockledger/stockledger/internal/ledger/shared"
	internalShared "github.com/stockledger/stockledger/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service posts and reverses journal entries.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns recent journal entries.
func (s *Service) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	return s.repo.List(ctx, limit)
}

// Get returns one entry with its lines.
func (s *Service) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	return s.repo.GetWithLines(ctx, entryID)
}

// Post validates the input and writes the entry, its lines, and the signed
// balance deltas for every touched account inside one transaction.
func (s *Service) Post(ctx context.Context, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := PostWithin(ctx, tx, input)
		if err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, input.PostedBy, "journal.post", entry)
	return entry, nil
}

// PostWithin performs the entry/lines/balance-delta write sequence against
// an already-open transaction. The caller owns the transaction boundary;
// partial persistence is never observable because any error rolls the whole
// unit back. Deltas are applied in line order, debit side first, so
// concurrent postings acquire account rows in a consistent order.
func PostWithin(ctx context.Context, tx TxRepository, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	entry, err := tx.InsertJournalEntry(ctx, input)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.InsertEntryLines(ctx, entry.ID, input.Lines); err != nil {
		return JournalEntry{}, err
	}
	if err := tx.LinkSource(ctx, input.SourceModule, input.SourceID, entry.ID); err != nil {
		if errors.Is(err, shared.ErrSourceConflict) {
			return JournalEntry{}, shared.ErrSourceAlreadyLinked
		}
		return JournalEntry{}, err
	}
	for _, line := range input.Lines {
		account, err := tx.GetAccountByID(ctx, line.AccountID)
		if err != nil {
			return JournalEntry{}, err
		}
		if !account.Postable() {
			return JournalEntry{}, shared.ErrAccountNotPostable
		}
		delta := account.Type.DebitDelta(line.Amount)
		if line.Side == SideCredit {
			delta = account.Type.CreditDelta(line.Amount)
		}
		if err := tx.ApplyBalanceDelta(ctx, account.ID, delta); err != nil {
			return JournalEntry{}, err
		}
	}
	entry.Lines = toEntryLines(entry.ID, input.Lines)
	return entry, nil
}

// Reverse posts a new entry mirroring the original's lines. The original is
// never touched: posted entries are immutable and a committed posting is
// final, so corrections always take the form of an explicit reversing entry.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, lines, err := tx.GetJournalWithLines(ctx, input.EntryID)
		if err != nil {
			return err
		}
		date := original.Date
		if input.Date != nil {
			date = *input.Date
		}
		posting := PostingInput{
			Date:           date,
			DocumentType:   original.DocumentType,
			DocumentNumber: original.DocumentNumber,
			Memo:           reversalMemo(input.Memo, original.Number),
			SourceModule:   original.SourceModule + ":REVERSAL",
			SourceID:       uuid.New(),
			ProductID:      original.ProductID,
			TransactionID:  original.TransactionID,
			OrderID:        original.OrderID,
			ReversalOf:     original.ID,
			PostedBy:       input.ActorID,
			Lines:          mirrorLines(lines),
		}
		inserted, err := PostWithin(ctx, tx, posting)
		if err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, input.ActorID, "journal.reverse", reversal)
	return reversal, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entry JournalEntry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"number":        entry.Number,
			"source_module": entry.SourceModule,
			"total_amount":  entry.TotalAmount.StringFixed(2),
		},
		At: s.now(),
	})
}

func mirrorLines(lines []EntryLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		side := SideDebit
		if line.Side == SideDebit {
			side = SideCredit
		}
		out = append(out, PostingLineInput{
			AccountID:   line.AccountID,
			Side:        side,
			Amount:      line.Amount,
			Description: line.Description,
			CostCenter:  line.CostCenter,
		})
	}
	return out
}

func toEntryLines(entryID int64, lines []PostingLineInput) []EntryLine {
	out := make([]EntryLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, EntryLine{
			JournalID:   entryID,
			AccountID:   line.AccountID,
			Side:        line.Side,
			Amount:      line.Amount.Round(2),
			Description: line.Description,
			CostCenter:  line.CostCenter,
		})
	}
	return out
}

func reversalMemo(memo string, number int64) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of JE %d", number)
}
