package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockledger/stockledger/internal/ledger/journals"
	"github.com/stockledger/stockledger/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (Transaction, error)
	ListByProduct(ctx context.Context, productID int64, limit int) ([]Transaction, error)
	ListByPeriod(ctx context.Context, filter PeriodFilter) ([]Transaction, error)
	GetStockLevel(ctx context.Context, productID int64, location string) (StockLevel, error)
}

// LedgerPoster posts the balanced journal entry for a movement against the
// ledger repository bound to the recorder's transaction.
type LedgerPoster interface {
	Post(ctx context.Context, ltx journals.TxRepository, txn Transaction) (journals.JournalEntry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort abstracts the idempotency key store. Satisfied by
// shared.IdempotencyStore.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ServiceConfig groups recorder policy settings.
type ServiceConfig struct {
	AllowNegativeStock  bool
	DefaultReorderPoint decimal.Decimal
	ApprovalThreshold   decimal.Decimal
}

// Service records inventory transactions. A movement is not recorded until
// its ledger posting succeeds: recorder and posting engine share one
// failure domain, so no transaction ever exists in storage without a
// matching journal entry.
type Service struct {
	repo        RepositoryPort
	poster      LedgerPoster
	publisher   EventPublisher
	audit       AuditPort
	idempotency IdempotencyPort
	validate    *validator.Validate
	cfg         ServiceConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, poster LedgerPoster, publisher EventPublisher, audit AuditPort, idem IdempotencyPort, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		poster:      poster,
		publisher:   publisher,
		audit:       audit,
		idempotency: idem,
		validate:    validator.New(),
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Record validates and persists a stock movement, posts its journal entry
// in the same database transaction, links the two, and emits the domain
// events for the movement. All errors propagate to the caller; nothing is
// swallowed, and there is no automatic retry here — retrying a financial
// posting is the caller's decision, protected by the idempotency key.
func (s *Service) Record(ctx context.Context, input RecordInput) (Transaction, error) {
	if err := s.validateInput(input); err != nil {
		return Transaction{}, err
	}

	now := s.now().UTC()
	txn := Transaction{
		Type:           input.Type,
		ProductID:      input.ProductID,
		SKU:            input.SKU,
		ProductName:    input.ProductName,
		Quantity:       input.Quantity,
		UnitCost:       input.UnitCost,
		TotalCost:      input.Quantity.Abs().Mul(input.UnitCost).Round(2),
		FromLocation:   input.FromLocation,
		ToLocation:     input.ToLocation,
		OrderID:        input.OrderID,
		DocumentNumber: input.DocumentNumber,
		Notes:          input.Notes,
		CreatedBy:      input.CreatedBy,
		CreatedAt:      now,
	}

	key := idempotencyKey(input)
	claimedKey := false
	if s.idempotency != nil && key != "" {
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return Transaction{}, err
		}
		claimedKey = true
	}

	var changes []stockChange
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertTransaction(ctx, txn)
		if err != nil {
			return err
		}
		txn.ID = id

		updated, err := s.applyStockEffect(ctx, tx, txn)
		if err != nil {
			return err
		}
		changes = updated

		entry, err := s.poster.Post(ctx, tx.Ledger(), txn)
		if err != nil {
			return err
		}
		if err := tx.LinkJournalEntry(ctx, txn.ID, entry.ID); err != nil {
			return err
		}
		txn.JournalEntryID = entry.ID
		return nil
	})
	if err != nil {
		if claimedKey {
			// The claim must come off even when the failure was a cancelled
			// context, or the key blocks a legitimate retry until pruned.
			releaseCtx := context.WithoutCancel(ctx)
			if derr := s.idempotency.Delete(releaseCtx, key); derr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
			}
		}
		return Transaction{}, err
	}

	s.recordAudit(ctx, txn)
	s.emitEvents(ctx, txn, changes)
	return txn, nil
}

// GetProductTransactions lists a product's movement history.
func (s *Service) GetProductTransactions(ctx context.Context, productID int64, limit int) ([]Transaction, error) {
	if productID <= 0 {
		return nil, errors.New("inventory: product id required")
	}
	return s.repo.ListByProduct(ctx, productID, limit)
}

// GetTransactionsByPeriod lists movements inside a time window.
func (s *Service) GetTransactionsByPeriod(ctx context.Context, filter PeriodFilter) ([]Transaction, error) {
	if filter.From.IsZero() {
		return nil, errors.New("inventory: period start required")
	}
	return s.repo.ListByPeriod(ctx, filter)
}

// GetStockLevel reads the current level for a product at a location.
func (s *Service) GetStockLevel(ctx context.Context, productID int64, location string) (StockLevel, error) {
	return s.repo.GetStockLevel(ctx, productID, location)
}

func (s *Service) validateInput(input RecordInput) error {
	if !input.Type.Valid() {
		return fmt.Errorf("inventory: unknown transaction type %q", input.Type)
	}
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("inventory: %w", err)
	}
	if input.ToLocation == "" {
		return ErrInvalidLocation
	}
	if input.Quantity.IsZero() {
		return ErrInvalidQuantity
	}
	if input.Quantity.Sign() < 0 && !input.Type.Signed() {
		return ErrInvalidQuantity
	}
	if input.UnitCost.Sign() < 0 {
		return ErrInvalidUnitCost
	}
	if input.Type == TransactionTypeTransfer {
		if input.FromLocation == "" {
			return ErrInvalidLocation
		}
		if input.FromLocation == input.ToLocation {
			return errors.New("inventory: source and destination location must differ")
		}
	}
	return nil
}

// stockChange pairs a movement's resulting level with the on-hand quantity
// before the movement, so alert emission can detect threshold crossings.
type stockChange struct {
	level      StockLevel
	prevOnHand decimal.Decimal
}

// applyStockEffect updates the stock levels a movement touches and returns
// the changes for post-commit alert evaluation.
func (s *Service) applyStockEffect(ctx context.Context, tx TxRepository, txn Transaction) ([]stockChange, error) {
	qty := txn.Quantity
	switch txn.Type {
	case TransactionTypePurchase, TransactionTypeSaleReturn:
		change, err := s.adjustLevel(ctx, tx, txn.ProductID, txn.ToLocation, qty, decimal.Zero)
		if err != nil {
			return nil, err
		}
		return []stockChange{change}, nil
	case TransactionTypeSale, TransactionTypePurchaseReturn, TransactionTypeLoss:
		change, err := s.adjustLevel(ctx, tx, txn.ProductID, txn.ToLocation, qty.Neg(), decimal.Zero)
		if err != nil {
			return nil, err
		}
		return []stockChange{change}, nil
	case TransactionTypeAdjustment:
		change, err := s.adjustLevel(ctx, tx, txn.ProductID, txn.ToLocation, qty, decimal.Zero)
		if err != nil {
			return nil, err
		}
		return []stockChange{change}, nil
	case TransactionTypeReservation:
		change, err := s.adjustLevel(ctx, tx, txn.ProductID, txn.ToLocation, qty.Neg(), qty)
		if err != nil {
			return nil, err
		}
		return []stockChange{change}, nil
	case TransactionTypeReservationRelease:
		change, err := s.adjustLevel(ctx, tx, txn.ProductID, txn.ToLocation, qty, qty.Neg())
		if err != nil {
			return nil, err
		}
		return []stockChange{change}, nil
	case TransactionTypeFulfillment:
		change, err := s.adjustLevel(ctx, tx, txn.ProductID, txn.ToLocation, decimal.Zero, qty.Neg())
		if err != nil {
			return nil, err
		}
		return []stockChange{change}, nil
	case TransactionTypeTransfer:
		// Lock the two rows in deterministic location order so opposing
		// concurrent transfers cannot deadlock.
		first, second := txn.FromLocation, txn.ToLocation
		firstDelta, secondDelta := qty.Neg(), qty
		if second < first {
			first, second = second, first
			firstDelta, secondDelta = secondDelta, firstDelta
		}
		a, err := s.adjustLevel(ctx, tx, txn.ProductID, first, firstDelta, decimal.Zero)
		if err != nil {
			return nil, err
		}
		b, err := s.adjustLevel(ctx, tx, txn.ProductID, second, secondDelta, decimal.Zero)
		if err != nil {
			return nil, err
		}
		return []stockChange{a, b}, nil
	default:
		return nil, fmt.Errorf("inventory: unknown transaction type %q", txn.Type)
	}
}

func (s *Service) adjustLevel(ctx context.Context, tx TxRepository, productID int64, location string, onHandDelta, reservedDelta decimal.Decimal) (stockChange, error) {
	level, err := tx.GetStockLevelForUpdate(ctx, productID, location)
	if err != nil && !errors.Is(err, ErrStockLevelNotFound) {
		return stockChange{}, err
	}
	if errors.Is(err, ErrStockLevelNotFound) {
		level = StockLevel{ProductID: productID, Location: location, ReorderPoint: s.cfg.DefaultReorderPoint}
	}
	prevOnHand := level.OnHand
	newOnHand := level.OnHand.Add(onHandDelta)
	newReserved := level.Reserved.Add(reservedDelta)
	if newOnHand.Sign() < 0 && !s.cfg.AllowNegativeStock {
		return stockChange{}, ErrNegativeStock
	}
	if newReserved.Sign() < 0 {
		return stockChange{}, ErrInsufficientReserved
	}
	level.OnHand = newOnHand
	level.Reserved = newReserved
	if err := tx.UpsertStockLevel(ctx, level); err != nil {
		return stockChange{}, err
	}
	return stockChange{level: level, prevOnHand: prevOnHand}, nil
}

func (s *Service) recordAudit(ctx context.Context, txn Transaction) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  txn.CreatedBy,
		Action:   fmt.Sprintf("inventory:%s", txn.Type),
		Entity:   "inventory_tx",
		EntityID: fmt.Sprintf("%d", txn.ID),
		Meta: map[string]any{
			"product_id":       txn.ProductID,
			"sku":              txn.SKU,
			"quantity":         txn.Quantity.String(),
			"total_cost":       txn.TotalCost.StringFixed(2),
			"journal_entry_id": txn.JournalEntryID,
		},
		At: s.now(),
	})
}

func (s *Service) emitEvents(ctx context.Context, txn Transaction, changes []stockChange) {
	s.publish(ctx, movementEventFor(txn))
	for _, change := range changes {
		level := change.level
		if level.OnHand.Sign() <= 0 {
			s.publish(ctx, ProductOutOfStockEvent{
				EventMeta: NewEventMeta(),
				ProductID: level.ProductID,
				SKU:       txn.SKU,
				Location:  level.Location,
			})
			continue
		}
		// Alert on the downward crossing of the reorder point only. An
		// upward movement that lands below the point, or a further movement
		// already below it, does not re-alert.
		if level.ReorderPoint.Sign() > 0 &&
			level.OnHand.LessThanOrEqual(level.ReorderPoint) &&
			change.prevOnHand.GreaterThan(level.ReorderPoint) {
			s.publish(ctx, LowStockAlertEvent{
				EventMeta:    NewEventMeta(),
				ProductID:    level.ProductID,
				SKU:          txn.SKU,
				Location:     level.Location,
				OnHand:       level.OnHand,
				ReorderPoint: level.ReorderPoint,
			})
		}
	}
	if s.requiresApproval(txn) {
		s.publish(ctx, TransactionApprovalRequiredEvent{
			EventMeta:     NewEventMeta(),
			TransactionID: txn.ID,
			Type:          txn.Type,
			ProductID:     txn.ProductID,
			TotalCost:     txn.TotalCost,
			CreatedBy:     txn.CreatedBy,
		})
	}
}

func (s *Service) requiresApproval(txn Transaction) bool {
	if s.cfg.ApprovalThreshold.Sign() <= 0 {
		return false
	}
	if txn.Type != TransactionTypeLoss && txn.Type != TransactionTypeAdjustment {
		return false
	}
	return txn.TotalCost.GreaterThanOrEqual(s.cfg.ApprovalThreshold)
}

func (s *Service) publish(ctx context.Context, evt Event) {
	if s.publisher == nil || evt == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		// Fire-and-forget: delivery failures never unwind a committed
		// recording.
		s.logger.Warn("publish event", slog.String("kind", string(evt.Kind())), slog.Any("error", err))
	}
}

func movementEventFor(txn Transaction) Event {
	base := MovementEvent{
		EventMeta:      NewEventMeta(),
		TransactionID:  txn.ID,
		JournalEntryID: txn.JournalEntryID,
		ProductID:      txn.ProductID,
		SKU:            txn.SKU,
		Quantity:       txn.Quantity,
		UnitCost:       txn.UnitCost,
		TotalCost:      txn.TotalCost,
		FromLocation:   txn.FromLocation,
		ToLocation:     txn.ToLocation,
		OrderID:        txn.OrderID,
	}
	switch txn.Type {
	case TransactionTypePurchase:
		return StockPurchasedEvent{base}
	case TransactionTypeSale, TransactionTypeFulfillment:
		return StockFulfilledEvent{base}
	case TransactionTypeSaleReturn:
		return SaleReturnedEvent{base}
	case TransactionTypePurchaseReturn:
		return PurchaseReturnedEvent{base}
	case TransactionTypeAdjustment:
		return StockAdjustedEvent{base}
	case TransactionTypeTransfer:
		return StockTransferredEvent{base}
	case TransactionTypeLoss:
		return StockLossEvent{base}
	case TransactionTypeReservation:
		return StockReservedEvent{base}
	case TransactionTypeReservationRelease:
		return StockReleasedEvent{base}
	default:
		return nil
	}
}

func idempotencyKey(input RecordInput) string {
	if input.IdempotencyKey != "" {
		return input.IdempotencyKey
	}
	if input.DocumentNumber == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%d:%s", input.Type, input.DocumentNumber, input.ProductID, input.ToLocation)
}
