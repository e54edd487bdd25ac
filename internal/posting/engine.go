// Package posting converts inventory movements into balanced journal
// entries: resolve the posting rule for the movement, look up the debit and
// credit accounts, write the two-line entry, and apply the signed balance
// deltas, all inside the transaction the recorder already holds.
package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockledger/stockledger/internal/inventory"
	"github.com/stockledger/stockledger/internal/ledger/accounts"
	"github.com/stockledger/stockledger/internal/ledger/journals"
	"github.com/stockledger/stockledger/internal/ledger/rules"
	ledgershared "github.com/stockledger/stockledger/internal/ledger/shared"
)

// ErrNothingToPost indicates a zero-amount movement.
var ErrNothingToPost = errors.New("posting: movement amount is zero")

// Metrics receives posting outcome counters. Implemented by
// observability.Metrics; nil-safe.
type Metrics interface {
	PostingRecorded(transactionType string)
	PostingFailed(reason string)
}

// Engine is the posting engine. It is stateless apart from the rule
// snapshot; all persistence flows through the ledger TxRepository handed in
// by the caller, so the engine never owns a transaction boundary of its own.
type Engine struct {
	resolver *rules.Resolver
	logger   *slog.Logger
	metrics  Metrics
}

// NewEngine builds Engine.
func NewEngine(resolver *rules.Resolver, logger *slog.Logger, metrics Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{resolver: resolver, logger: logger, metrics: metrics}
}

// Post builds and persists the balanced journal entry for txn. On any
// failure nothing is persisted: the caller's transaction rolls back, and
// with it the movement itself. A transaction must never exist in storage
// without its ledger posting.
func (e *Engine) Post(ctx context.Context, ltx journals.TxRepository, txn inventory.Transaction) (journals.JournalEntry, error) {
	entry, err := e.post(ctx, ltx, txn)
	if err != nil {
		e.fail(reason(err))
		return journals.JournalEntry{}, err
	}
	if e.metrics != nil {
		e.metrics.PostingRecorded(string(txn.Type))
	}
	return entry, nil
}

func (e *Engine) post(ctx context.Context, ltx journals.TxRepository, txn inventory.Transaction) (journals.JournalEntry, error) {
	amount := txn.Quantity.Abs().Mul(txn.UnitCost).Round(2)
	if amount.Sign() <= 0 {
		return journals.JournalEntry{}, ErrNothingToPost
	}

	rule, err := e.resolver.Resolve(string(txn.Type), quantitySign(txn.Quantity))
	if err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) || errors.Is(err, rules.ErrAmbiguousRule) {
			// Configuration defect: the accounting model is incomplete for
			// a transaction type in actual use.
			e.logger.Error("posting rule configuration defect",
				slog.String("transaction_type", string(txn.Type)),
				slog.Any("error", err))
		}
		return journals.JournalEntry{}, err
	}

	debitAccount, err := e.lookupAccount(ctx, ltx, rule.DebitAccountCode)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	creditAccount, err := e.lookupAccount(ctx, ltx, rule.CreditAccountCode)
	if err != nil {
		return journals.JournalEntry{}, err
	}

	memo := fmt.Sprintf("%s %s: %s @ %s", txn.Type, txn.SKU, txn.Quantity.String(), txn.UnitCost.StringFixed(2))
	input := journals.PostingInput{
		Date:           txn.CreatedAt,
		DocumentType:   "INVENTORY",
		DocumentNumber: txn.DocumentNumber,
		Memo:           memo,
		SourceModule:   "INVENTORY." + string(txn.Type),
		SourceID:       sourceID(txn.ID),
		ProductID:      txn.ProductID,
		TransactionID:  txn.ID,
		OrderID:        txn.OrderID,
		PostedBy:       txn.CreatedBy,
		Lines: []journals.PostingLineInput{
			{AccountID: debitAccount.ID, Side: journals.SideDebit, Amount: amount, Description: rule.Description},
			{AccountID: creditAccount.ID, Side: journals.SideCredit, Amount: amount, Description: rule.Description},
		},
	}
	entry, err := journals.PostWithin(ctx, ltx, input)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	return entry, nil
}

func (e *Engine) lookupAccount(ctx context.Context, ltx journals.TxRepository, code string) (accounts.Account, error) {
	a, err := ltx.GetAccountByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ledgershared.ErrAccountNotFound) {
			e.logger.Error("chart of accounts misconfiguration", slog.String("code", code))
		}
		return accounts.Account{}, err
	}
	if !a.IsActive {
		e.logger.Error("posting against inactive account", slog.String("code", code))
		return accounts.Account{}, ledgershared.ErrAccountNotFound
	}
	if !a.Analytic {
		return accounts.Account{}, ledgershared.ErrAccountNotPostable
	}
	return a, nil
}

func (e *Engine) fail(reason string) {
	if e.metrics != nil {
		e.metrics.PostingFailed(reason)
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, rules.ErrRuleNotFound):
		return "rule_not_found"
	case errors.Is(err, rules.ErrAmbiguousRule):
		return "ambiguous_rule"
	case errors.Is(err, ledgershared.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ledgershared.ErrAccountNotPostable):
		return "account_not_postable"
	case errors.Is(err, ledgershared.ErrUnbalanced):
		return "unbalanced"
	case errors.Is(err, ErrNothingToPost):
		return "zero_amount"
	default:
		return "persistence"
	}
}

func quantitySign(qty decimal.Decimal) rules.QuantitySign {
	if qty.Sign() < 0 {
		return rules.SignNegative
	}
	return rules.SignPositive
}

// sourceID derives a deterministic journal source id from the transaction
// id, so a replayed posting for the same movement hits the source-link
// uniqueness guard instead of double-posting.
func sourceID(transactionID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("INVTX:%d", transactionID)))
}
