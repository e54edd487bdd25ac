package events

import (
	"context"
	"encoding/json"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/stockledger/internal/inventory"
)

type countingMetrics struct {
	kinds []string
}

func (m *countingMetrics) EventPublished(kind string) { m.kinds = append(m.kinds, kind) }

func TestPublishEnqueuesEventTask(t *testing.T) {
	mr := miniredis.RunT(t)
	metrics := &countingMetrics{}
	p := NewPublisher(mr.Addr(), nil).WithMetrics(metrics)
	defer p.Close()

	evt := inventory.StockPurchasedEvent{MovementEvent: inventory.MovementEvent{
		EventMeta:     inventory.NewEventMeta(),
		TransactionID: 41,
		ProductID:     100,
		SKU:           "WIDGET-01",
		Quantity:      decimal.RequireFromString("10"),
		UnitCost:      decimal.RequireFromString("25.50"),
		TotalCost:     decimal.RequireFromString("255.00"),
		ToLocation:    "WH-1",
	}}
	require.NoError(t, p.Publish(context.Background(), evt))

	insp := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer insp.Close()

	tasks, err := insp.ListPendingTasks(Queue)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "events:stock.purchased", tasks[0].Type)

	var decoded inventory.StockPurchasedEvent
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &decoded))
	require.Equal(t, evt.EventID(), decoded.EventID())
	require.True(t, decoded.TotalCost.Equal(evt.TotalCost))
	require.Equal(t, []string{"stock.purchased"}, metrics.kinds)
}

func TestTaskTypeNamespacesKinds(t *testing.T) {
	require.Equal(t, "events:stock.reserved", TaskType(inventory.EventStockReserved))
	require.Equal(t, "events:transaction.approval_required", TaskType(inventory.EventApprovalRequired))
}

func TestNilEventIsIgnored(t *testing.T) {
	mr := miniredis.RunT(t)
	p := NewPublisher(mr.Addr(), nil)
	defer p.Close()
	require.NoError(t, p.Publish(context.Background(), nil))
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	require.NoError(t, p.Publish(context.Background(), inventory.LowStockAlertEvent{}))
}
