package journals

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/stockledger/internal/ledger/accounts"
	"github.com/stockledger/stockledger/internal/ledger/shared"
)

type memoryLedger struct {
	accounts  map[int64]accounts.Account
	byCode    map[string]int64
	entries   map[int64]JournalEntry
	lines     map[int64][]EntryLine
	links     map[string]int64
	nextEntry int64
	nextLine  int64

	failLines bool
}

func newMemoryLedger() *memoryLedger {
	l := &memoryLedger{
		accounts: make(map[int64]accounts.Account),
		byCode:   make(map[string]int64),
		entries:  make(map[int64]JournalEntry),
		lines:    make(map[int64][]EntryLine),
		links:    make(map[string]int64),
	}
	l.addAccount(accounts.Account{ID: 1, Code: "1.1.03.001", Name: "Inventory", Type: accounts.AccountTypeAsset, Analytic: true, IsActive: true})
	l.addAccount(accounts.Account{ID: 2, Code: "2.1.01.001", Name: "Accounts Payable", Type: accounts.AccountTypeLiability, Analytic: true, IsActive: true})
	l.addAccount(accounts.Account{ID: 3, Code: "5.1.01.001", Name: "COGS", Type: accounts.AccountTypeExpense, Analytic: true, IsActive: true})
	l.addAccount(accounts.Account{ID: 4, Code: "1.1.03", Name: "Inventory Assets", Type: accounts.AccountTypeAsset, Analytic: false, IsActive: true})
	return l
}

func (l *memoryLedger) addAccount(a accounts.Account) {
	l.accounts[a.ID] = a
	l.byCode[a.Code] = a.ID
}

func (l *memoryLedger) balance(id int64) decimal.Decimal {
	return l.accounts[id].Balance
}

func (l *memoryLedger) clone() *memoryLedger {
	c := newMemoryLedger()
	c.accounts = make(map[int64]accounts.Account, len(l.accounts))
	c.byCode = make(map[string]int64, len(l.byCode))
	for id, a := range l.accounts {
		c.accounts[id] = a
		c.byCode[a.Code] = id
	}
	c.entries = make(map[int64]JournalEntry, len(l.entries))
	for id, e := range l.entries {
		c.entries[id] = e
	}
	c.lines = make(map[int64][]EntryLine, len(l.lines))
	for id, ls := range l.lines {
		c.lines[id] = append([]EntryLine(nil), ls...)
	}
	c.links = make(map[string]int64, len(l.links))
	for k, v := range l.links {
		c.links[k] = v
	}
	c.nextEntry = l.nextEntry
	c.nextLine = l.nextLine
	c.failLines = l.failLines
	return c
}

// WithTx runs fn against a staged copy and publishes it only on success,
// mimicking transactional rollback.
func (l *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := l.clone()
	if err := fn(ctx, staged); err != nil {
		return err
	}
	*l = *staged
	return nil
}

func (l *memoryLedger) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out, nil
}

func (l *memoryLedger) GetWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	e, lines, err := l.GetJournalWithLines(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	e.Lines = lines
	return e, nil
}

func (l *memoryLedger) InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	l.nextEntry++
	entry := JournalEntry{
		ID:             l.nextEntry,
		Number:         l.nextEntry,
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
		PostedAt:       time.Now().UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	l.entries[entry.ID] = entry
	return entry, nil
}

func (l *memoryLedger) InsertEntryLines(ctx context.Context, entryID int64, lines []PostingLineInput) error {
	if l.failLines {
		return errors.New("boom")
	}
	for _, line := range lines {
		l.nextLine++
		l.lines[entryID] = append(l.lines[entryID], EntryLine{
			ID:        l.nextLine,
			JournalID: entryID,
			AccountID: line.AccountID,
			Side:      line.Side,
			Amount:    line.Amount.Round(2),
		})
	}
	return nil
}

func (l *memoryLedger) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	key := fmt.Sprintf("%s:%s", module, ref)
	if _, ok := l.links[key]; ok {
		return shared.ErrSourceConflict
	}
	l.links[key] = entryID
	return nil
}

func (l *memoryLedger) GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, []EntryLine, error) {
	e, ok := l.entries[entryID]
	if !ok {
		return JournalEntry{}, nil, shared.ErrJournalNotFound
	}
	return e, append([]EntryLine(nil), l.lines[entryID]...), nil
}

func (l *memoryLedger) GetAccountByCode(ctx context.Context, code string) (accounts.Account, error) {
	id, ok := l.byCode[code]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return l.accounts[id], nil
}

func (l *memoryLedger) GetAccountByID(ctx context.Context, id int64) (accounts.Account, error) {
	a, ok := l.accounts[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (l *memoryLedger) ApplyBalanceDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	a, ok := l.accounts[accountID]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(delta)
	l.accounts[accountID] = a
	return nil
}

func purchaseInput(amount string) PostingInput {
	return PostingInput{
		Date:         time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		DocumentType: "INVENTORY",
		Memo:         "GRN#1",
		SourceModule: "INVENTORY.PURCHASE",
		SourceID:     uuid.New(),
		PostedBy:     7,
		Lines: []PostingLineInput{
			{AccountID: 1, Side: SideDebit, Amount: decimal.RequireFromString(amount)},
			{AccountID: 2, Side: SideCredit, Amount: decimal.RequireFromString(amount)},
		},
	}
}

func TestPostAppliesSignedBalanceDeltas(t *testing.T) {
	ledger := newMemoryLedger()
	svc := NewService(ledger, nil)

	entry, err := svc.Post(context.Background(), purchaseInput("100.00"))
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Len(t, entry.Lines, 2)

	// Debit increases the asset, credit increases the liability.
	require.True(t, ledger.balance(1).Equal(decimal.RequireFromString("100.00")))
	require.True(t, ledger.balance(2).Equal(decimal.RequireFromString("100.00")))
}

func TestPostRejectsDuplicateSource(t *testing.T) {
	ledger := newMemoryLedger()
	svc := NewService(ledger, nil)

	input := purchaseInput("100.00")
	_, err := svc.Post(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrSourceAlreadyLinked)

	require.Len(t, ledger.entries, 1)
	require.True(t, ledger.balance(1).Equal(decimal.RequireFromString("100.00")))
}

func TestPostRollsBackOnLineFailure(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.failLines = true
	svc := NewService(ledger, nil)

	_, err := svc.Post(context.Background(), purchaseInput("100.00"))
	require.Error(t, err)

	require.Empty(t, ledger.entries)
	require.True(t, ledger.balance(1).IsZero())
	require.True(t, ledger.balance(2).IsZero())
}

func TestPostRejectsNonAnalyticAccount(t *testing.T) {
	ledger := newMemoryLedger()
	svc := NewService(ledger, nil)

	input := purchaseInput("50.00")
	input.Lines[0].AccountID = 4
	_, err := svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrAccountNotPostable)
	require.Empty(t, ledger.entries)
}

func TestReversePostsMirroredEntry(t *testing.T) {
	ledger := newMemoryLedger()
	svc := NewService(ledger, nil)

	original, err := svc.Post(context.Background(), purchaseInput("250.00"))
	require.NoError(t, err)

	reversal, err := svc.Reverse(context.Background(), ReverseInput{EntryID: original.ID, ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, original.ID, reversal.ReversalOf)
	require.Equal(t, "INVENTORY.PURCHASE:REVERSAL", reversal.SourceModule)

	// The reversal mirrors sides, returning both balances to zero.
	require.True(t, ledger.balance(1).IsZero())
	require.True(t, ledger.balance(2).IsZero())

	// The original entry and its lines are untouched.
	stored, err := svc.Get(context.Background(), original.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	require.Equal(t, SideDebit, stored.Lines[0].Side)
	require.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("250.00")))
}
