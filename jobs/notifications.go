package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stockledger/stockledger/internal/inventory"
)

// StockNotifier handles replenishment alerts raised by the inventory
// recorder. Delivery channels beyond the log are wired per deployment;
// the handler keeps the alert durable by going through the queue.
type StockNotifier struct {
	logger *slog.Logger
}

// NewStockNotifier constructs a StockNotifier.
func NewStockNotifier(logger *slog.Logger) *StockNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &StockNotifier{logger: logger}
}

// HandleLowStock processes low-stock alert events.
func (n *StockNotifier) HandleLowStock(ctx context.Context, t *asynq.Task) error {
	var evt inventory.LowStockAlertEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return asynq.SkipRetry
	}
	n.logger.Warn("low stock",
		slog.String("event_id", evt.EventID().String()),
		slog.Int64("product_id", evt.ProductID),
		slog.String("sku", evt.SKU),
		slog.String("location", evt.Location),
		slog.String("on_hand", evt.OnHand.String()),
		slog.String("reorder_point", evt.ReorderPoint.String()),
	)
	return nil
}

// HandleOutOfStock processes out-of-stock events.
func (n *StockNotifier) HandleOutOfStock(ctx context.Context, t *asynq.Task) error {
	var evt inventory.ProductOutOfStockEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return asynq.SkipRetry
	}
	n.logger.Warn("product out of stock",
		slog.String("event_id", evt.EventID().String()),
		slog.Int64("product_id", evt.ProductID),
		slog.String("sku", evt.SKU),
		slog.String("location", evt.Location),
	)
	return nil
}

// HandleApprovalRequired processes high-value loss and adjustment reviews.
func (n *StockNotifier) HandleApprovalRequired(ctx context.Context, t *asynq.Task) error {
	var evt inventory.TransactionApprovalRequiredEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return asynq.SkipRetry
	}
	n.logger.Warn("transaction requires approval",
		slog.String("event_id", evt.EventID().String()),
		slog.Int64("transaction_id", evt.TransactionID),
		slog.String("type", string(evt.Type)),
		slog.String("total_cost", evt.TotalCost.StringFixed(2)),
		slog.Int64("created_by", evt.CreatedBy),
	)
	return nil
}

// HandleEvent is the fallback handler for event kinds without a dedicated
// consumer. Events are logged and acknowledged.
func (n *StockNotifier) HandleEvent(ctx context.Context, t *asynq.Task) error {
	n.logger.Info("event received", slog.String("type", t.Type()))
	return nil
}
