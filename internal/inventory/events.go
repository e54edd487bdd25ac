package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind tags a domain event. Consumers switch on the kind rather than
// relying on a shared supertype.
type EventKind string

const (
	EventStockReserved     EventKind = "stock.reserved"
	EventStockReleased     EventKind = "stock.released"
	EventStockFulfilled    EventKind = "stock.fulfilled"
	EventStockAdjusted     EventKind = "stock.adjusted"
	EventStockLoss         EventKind = "stock.loss"
	EventStockPurchased    EventKind = "stock.purchased"
	EventStockTransferred  EventKind = "stock.transferred"
	EventPurchaseReturned  EventKind = "stock.purchase_returned"
	EventSaleReturned      EventKind = "stock.sale_returned"
	EventLowStockAlert     EventKind = "stock.low_stock"
	EventProductOutOfStock EventKind = "stock.out_of_stock"
	EventApprovalRequired  EventKind = "transaction.approval_required"
)

// Event is the contract every domain event satisfies: a generated id, a
// UTC timestamp, and a kind tag.
type Event interface {
	Kind() EventKind
	EventID() uuid.UUID
	OccurredAt() time.Time
}

// EventPublisher delivers events to external consumers with fire-and-forget,
// at-least-once semantics. No acknowledgment flows back into this core.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
}

// EventMeta carries the fields shared by every event.
type EventMeta struct {
	ID uuid.UUID `json:"id"`
	At time.Time `json:"occurred_at"`
}

// NewEventMeta stamps a fresh id and UTC timestamp.
func NewEventMeta() EventMeta {
	return EventMeta{ID: uuid.New(), At: time.Now().UTC()}
}

func (m EventMeta) EventID() uuid.UUID    { return m.ID }
func (m EventMeta) OccurredAt() time.Time { return m.At }

// MovementEvent carries the payload common to the per-type movement events.
type MovementEvent struct {
	EventMeta
	TransactionID  int64           `json:"transaction_id"`
	JournalEntryID int64           `json:"journal_entry_id"`
	ProductID      int64           `json:"product_id"`
	SKU            string          `json:"sku"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	FromLocation   string          `json:"from_location,omitempty"`
	ToLocation     string          `json:"to_location"`
	OrderID        uuid.UUID       `json:"order_id,omitempty"`
}

type StockReservedEvent struct{ MovementEvent }
type StockReleasedEvent struct{ MovementEvent }
type StockFulfilledEvent struct{ MovementEvent }
type StockAdjustedEvent struct{ MovementEvent }
type StockLossEvent struct{ MovementEvent }
type StockPurchasedEvent struct{ MovementEvent }
type StockTransferredEvent struct{ MovementEvent }
type PurchaseReturnedEvent struct{ MovementEvent }
type SaleReturnedEvent struct{ MovementEvent }

func (StockReservedEvent) Kind() EventKind    { return EventStockReserved }
func (StockReleasedEvent) Kind() EventKind    { return EventStockReleased }
func (StockFulfilledEvent) Kind() EventKind   { return EventStockFulfilled }
func (StockAdjustedEvent) Kind() EventKind    { return EventStockAdjusted }
func (StockLossEvent) Kind() EventKind        { return EventStockLoss }
func (StockPurchasedEvent) Kind() EventKind   { return EventStockPurchased }
func (StockTransferredEvent) Kind() EventKind { return EventStockTransferred }
func (PurchaseReturnedEvent) Kind() EventKind { return EventPurchaseReturned }
func (SaleReturnedEvent) Kind() EventKind     { return EventSaleReturned }

// LowStockAlertEvent fires when on-hand crosses the reorder point downward.
type LowStockAlertEvent struct {
	EventMeta
	ProductID    int64           `json:"product_id"`
	SKU          string          `json:"sku"`
	Location     string          `json:"location"`
	OnHand       decimal.Decimal `json:"on_hand"`
	ReorderPoint decimal.Decimal `json:"reorder_point"`
}

func (LowStockAlertEvent) Kind() EventKind { return EventLowStockAlert }

// ProductOutOfStockEvent fires when on-hand reaches zero or below.
type ProductOutOfStockEvent struct {
	EventMeta
	ProductID int64  `json:"product_id"`
	SKU       string `json:"sku"`
	Location  string `json:"location"`
}

func (ProductOutOfStockEvent) Kind() EventKind { return EventProductOutOfStock }

// TransactionApprovalRequiredEvent flags a high-value loss or adjustment
// for risk review.
type TransactionApprovalRequiredEvent struct {
	EventMeta
	TransactionID int64           `json:"transaction_id"`
	Type          TransactionType `json:"type"`
	ProductID     int64           `json:"product_id"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	CreatedBy     int64           `json:"created_by"`
}

func (TransactionApprovalRequiredEvent) Kind() EventKind { return EventApprovalRequired }
