package posting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/stockledger/internal/inventory"
	"github.com/stockledger/stockledger/internal/ledger/accounts"
	"github.com/stockledger/stockledger/internal/ledger/journals"
	"github.com/stockledger/stockledger/internal/ledger/rules"
	ledgershared "github.com/stockledger/stockledger/internal/ledger/shared"
)

type ledgerTx struct {
	accounts map[string]accounts.Account
	entries  []journals.JournalEntry
	lines    map[int64][]journals.PostingLineInput
	links    map[string]int64
	deltas   map[int64]decimal.Decimal
	nextID   int64
}

func newLedgerTx() *ledgerTx {
	tx := &ledgerTx{
		accounts: make(map[string]accounts.Account),
		lines:    make(map[int64][]journals.PostingLineInput),
		links:    make(map[string]int64),
		deltas:   make(map[int64]decimal.Decimal),
	}
	tx.addAccount(accounts.Account{ID: 1, Code: "1.1.03.001", Type: accounts.AccountTypeAsset, Analytic: true, IsActive: true})
	tx.addAccount(accounts.Account{ID: 2, Code: "2.1.01.001", Type: accounts.AccountTypeLiability, Analytic: true, IsActive: true})
	tx.addAccount(accounts.Account{ID: 3, Code: "5.1.01.001", Type: accounts.AccountTypeExpense, Analytic: true, IsActive: true})
	tx.addAccount(accounts.Account{ID: 4, Code: "5.2.01.001", Type: accounts.AccountTypeExpense, Analytic: true, IsActive: true})
	tx.addAccount(accounts.Account{ID: 5, Code: "4.2.01.001", Type: accounts.AccountTypeRevenue, Analytic: true, IsActive: true})
	tx.addAccount(accounts.Account{ID: 6, Code: "1.1.03", Type: accounts.AccountTypeAsset, Analytic: false, IsActive: true})
	tx.addAccount(accounts.Account{ID: 7, Code: "9.9.99.999", Type: accounts.AccountTypeAsset, Analytic: true, IsActive: false})
	return tx
}

func (t *ledgerTx) addAccount(a accounts.Account) {
	t.accounts[a.Code] = a
}

func (t *ledgerTx) InsertJournalEntry(ctx context.Context, in journals.PostingInput) (journals.JournalEntry, error) {
	t.nextID++
	entry := journals.JournalEntry{
		ID:            t.nextID,
		Number:        t.nextID,
		Date:          in.Date,
		DocumentType:  in.DocumentType,
		Memo:          in.Memo,
		TotalAmount:   in.Total(),
		SourceModule:  in.SourceModule,
		SourceID:      in.SourceID,
		ProductID:     in.ProductID,
		TransactionID: in.TransactionID,
		PostedBy:      in.PostedBy,
		PostedAt:      time.Now().UTC(),
	}
	t.entries = append(t.entries, entry)
	return entry, nil
}

func (t *ledgerTx) InsertEntryLines(ctx context.Context, entryID int64, lines []journals.PostingLineInput) error {
	t.lines[entryID] = append(t.lines[entryID], lines...)
	return nil
}

func (t *ledgerTx) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	key := fmt.Sprintf("%s:%s", module, ref)
	if _, ok := t.links[key]; ok {
		return ledgershared.ErrSourceConflict
	}
	t.links[key] = entryID
	return nil
}

func (t *ledgerTx) GetJournalWithLines(ctx context.Context, entryID int64) (journals.JournalEntry, []journals.EntryLine, error) {
	return journals.JournalEntry{}, nil, ledgershared.ErrJournalNotFound
}

func (t *ledgerTx) GetAccountByCode(ctx context.Context, code string) (accounts.Account, error) {
	a, ok := t.accounts[code]
	if !ok {
		return accounts.Account{}, ledgershared.ErrAccountNotFound
	}
	return a, nil
}

func (t *ledgerTx) GetAccountByID(ctx context.Context, id int64) (accounts.Account, error) {
	for _, a := range t.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return accounts.Account{}, ledgershared.ErrAccountNotFound
}

func (t *ledgerTx) ApplyBalanceDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	t.deltas[accountID] = t.deltas[accountID].Add(delta)
	return nil
}

type countingMetrics struct {
	recorded map[string]int
	failed   map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{recorded: make(map[string]int), failed: make(map[string]int)}
}

func (m *countingMetrics) PostingRecorded(txType string) { m.recorded[txType]++ }
func (m *countingMetrics) PostingFailed(reason string)   { m.failed[reason]++ }

func testResolver() *rules.Resolver {
	return rules.NewStaticResolver([]rules.Rule{
		{Code: "PURCHASE", TransactionType: "PURCHASE", Sign: rules.SignAny, DebitAccountCode: "1.1.03.001", CreditAccountCode: "2.1.01.001", IsActive: true},
		{Code: "SALE", TransactionType: "SALE", Sign: rules.SignAny, DebitAccountCode: "5.1.01.001", CreditAccountCode: "1.1.03.001", IsActive: true},
		{Code: "ADJUSTMENT_POSITIVE", TransactionType: "ADJUSTMENT", Sign: rules.SignPositive, DebitAccountCode: "1.1.03.001", CreditAccountCode: "4.2.01.001", IsActive: true},
		{Code: "ADJUSTMENT_NEGATIVE", TransactionType: "ADJUSTMENT", Sign: rules.SignNegative, DebitAccountCode: "5.2.01.001", CreditAccountCode: "1.1.03.001", IsActive: true},
		{Code: "LOSS_SUMMARY", TransactionType: "LOSS", Sign: rules.SignAny, DebitAccountCode: "1.1.03", CreditAccountCode: "1.1.03.001", IsActive: true},
		{Code: "TRANSFER_DEAD", TransactionType: "TRANSFER", Sign: rules.SignAny, DebitAccountCode: "9.9.99.999", CreditAccountCode: "1.1.03.001", IsActive: true},
		{Code: "RESERVATION", TransactionType: "RESERVATION", Sign: rules.SignAny, DebitAccountCode: "0.0.00.000", CreditAccountCode: "1.1.03.001", IsActive: true},
		{Code: "FULFILLMENT_A", TransactionType: "FULFILLMENT", Sign: rules.SignAny, DebitAccountCode: "5.1.01.001", CreditAccountCode: "1.1.03.001", IsActive: true},
		{Code: "FULFILLMENT_B", TransactionType: "FULFILLMENT", Sign: rules.SignAny, DebitAccountCode: "5.1.01.001", CreditAccountCode: "1.1.03.001", IsActive: true},
	})
}

func purchaseTxn() inventory.Transaction {
	return inventory.Transaction{
		ID:         41,
		Type:       inventory.TransactionTypePurchase,
		ProductID:  100,
		SKU:        "WIDGET-01",
		Quantity:   decimal.RequireFromString("10"),
		UnitCost:   decimal.RequireFromString("25.50"),
		ToLocation: "WH-1",
		CreatedBy:  7,
		CreatedAt:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestPostPurchaseCreatesBalancedEntry(t *testing.T) {
	tx := newLedgerTx()
	metrics := newCountingMetrics()
	engine := NewEngine(testResolver(), nil, metrics)

	entry, err := engine.Post(context.Background(), tx, purchaseTxn())
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.True(t, entry.TotalAmount.Equal(decimal.RequireFromString("255.00")))

	lines := tx.lines[entry.ID]
	require.Len(t, lines, 2)
	require.Equal(t, journals.SideDebit, lines[0].Side)
	require.Equal(t, int64(1), lines[0].AccountID)
	require.Equal(t, journals.SideCredit, lines[1].Side)
	require.Equal(t, int64(2), lines[1].AccountID)
	require.True(t, lines[0].Amount.Equal(lines[1].Amount))

	// Asset debited up, liability credited up.
	require.True(t, tx.deltas[1].Equal(decimal.RequireFromString("255.00")))
	require.True(t, tx.deltas[2].Equal(decimal.RequireFromString("255.00")))

	require.Equal(t, 1, metrics.recorded["PURCHASE"])
}

func TestPostAdjustmentBranchesOnSign(t *testing.T) {
	engine := NewEngine(testResolver(), nil, nil)

	txn := purchaseTxn()
	txn.Type = inventory.TransactionTypeAdjustment
	txn.Quantity = decimal.RequireFromString("-4")

	tx := newLedgerTx()
	entry, err := engine.Post(context.Background(), tx, txn)
	require.NoError(t, err)

	// Negative adjustment debits the expense account.
	lines := tx.lines[entry.ID]
	require.Equal(t, int64(4), lines[0].AccountID)
	require.True(t, entry.TotalAmount.Equal(decimal.RequireFromString("102.00")))

	txn.ID++ // fresh source id
	txn.Quantity = decimal.RequireFromString("4")
	entry, err = engine.Post(context.Background(), tx, txn)
	require.NoError(t, err)
	require.Equal(t, int64(1), tx.lines[entry.ID][0].AccountID)
}

func TestPostSameTransactionTwiceHitsSourceGuard(t *testing.T) {
	tx := newLedgerTx()
	engine := NewEngine(testResolver(), nil, nil)

	_, err := engine.Post(context.Background(), tx, purchaseTxn())
	require.NoError(t, err)

	// The deterministic source id makes a replay collide on the link.
	_, err = engine.Post(context.Background(), tx, purchaseTxn())
	require.ErrorIs(t, err, ledgershared.ErrSourceAlreadyLinked)
}

func TestPostRuleNotFound(t *testing.T) {
	tx := newLedgerTx()
	metrics := newCountingMetrics()
	engine := NewEngine(testResolver(), nil, metrics)

	txn := purchaseTxn()
	txn.Type = inventory.TransactionTypePurchaseReturn
	_, err := engine.Post(context.Background(), tx, txn)
	require.ErrorIs(t, err, rules.ErrRuleNotFound)
	require.Empty(t, tx.entries)
	require.Equal(t, 1, metrics.failed["rule_not_found"])
}

func TestPostAmbiguousRule(t *testing.T) {
	tx := newLedgerTx()
	engine := NewEngine(testResolver(), nil, nil)

	txn := purchaseTxn()
	txn.Type = inventory.TransactionTypeFulfillment
	_, err := engine.Post(context.Background(), tx, txn)
	require.ErrorIs(t, err, rules.ErrAmbiguousRule)
	require.Empty(t, tx.entries)
}

func TestPostAccountMisconfigurations(t *testing.T) {
	engine := NewEngine(testResolver(), nil, nil)

	// Rule points at an account missing from the chart.
	tx := newLedgerTx()
	txn := purchaseTxn()
	txn.Type = inventory.TransactionTypeReservation
	_, err := engine.Post(context.Background(), tx, txn)
	require.ErrorIs(t, err, ledgershared.ErrAccountNotFound)
	require.Empty(t, tx.entries)

	// Rule points at an inactive account.
	tx = newLedgerTx()
	txn.Type = inventory.TransactionTypeTransfer
	_, err = engine.Post(context.Background(), tx, txn)
	require.ErrorIs(t, err, ledgershared.ErrAccountNotFound)

	// Rule points at a summary (non-analytic) account.
	tx = newLedgerTx()
	txn.Type = inventory.TransactionTypeLoss
	_, err = engine.Post(context.Background(), tx, txn)
	require.ErrorIs(t, err, ledgershared.ErrAccountNotPostable)
	require.Empty(t, tx.entries)
}

func TestPostZeroAmountRejected(t *testing.T) {
	tx := newLedgerTx()
	engine := NewEngine(testResolver(), nil, nil)

	txn := purchaseTxn()
	txn.UnitCost = decimal.Zero
	_, err := engine.Post(context.Background(), tx, txn)
	require.ErrorIs(t, err, ErrNothingToPost)
	require.Empty(t, tx.entries)
}

func TestSourceIDIsDeterministic(t *testing.T) {
	require.Equal(t, sourceID(41), sourceID(41))
	require.NotEqual(t, sourceID(41), sourceID(42))
}
