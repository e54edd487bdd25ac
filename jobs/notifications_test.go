package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/stockledger/internal/events"
	"github.com/stockledger/stockledger/internal/inventory"
)

func TestHandleLowStock(t *testing.T) {
	evt := inventory.LowStockAlertEvent{
		EventMeta:    inventory.NewEventMeta(),
		ProductID:    100,
		SKU:          "WIDGET-01",
		Location:     "WH-1",
		OnHand:       decimal.RequireFromString("8"),
		ReorderPoint: decimal.RequireFromString("10"),
	}
	payload, err := json.Marshal(evt)
	require.NoError(t, err)

	n := NewStockNotifier(nil)
	task := asynq.NewTask(events.TaskType(evt.Kind()), payload)
	require.NoError(t, n.HandleLowStock(context.Background(), task))
}

func TestHandleLowStockBadPayload(t *testing.T) {
	n := NewStockNotifier(nil)
	task := asynq.NewTask(events.TaskType(inventory.EventLowStockAlert), []byte("{"))
	require.ErrorIs(t, n.HandleLowStock(context.Background(), task), asynq.SkipRetry)
}

func TestHandleApprovalRequired(t *testing.T) {
	evt := inventory.TransactionApprovalRequiredEvent{
		EventMeta:     inventory.NewEventMeta(),
		TransactionID: 41,
		Type:          inventory.TransactionTypeLoss,
		ProductID:     100,
		TotalCost:     decimal.RequireFromString("12750.00"),
		CreatedBy:     7,
	}
	payload, err := json.Marshal(evt)
	require.NoError(t, err)

	n := NewStockNotifier(nil)
	task := asynq.NewTask(events.TaskType(evt.Kind()), payload)
	require.NoError(t, n.HandleApprovalRequired(context.Background(), task))
}

func TestHandleOutOfStockBadPayload(t *testing.T) {
	n := NewStockNotifier(nil)
	task := asynq.NewTask(events.TaskType(inventory.EventProductOutOfStock), []byte("not json"))
	require.ErrorIs(t, n.HandleOutOfStock(context.Background(), task), asynq.SkipRetry)
}
