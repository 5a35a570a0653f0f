package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regdesk/catreport_backend/models"
)

func factMap(facts []*models.OrderBusinessClassification) map[string]string {
	m := make(map[string]string, len(facts))
	for _, f := range facts {
		group := ""
		if f.Group != nil {
			group = *f.Group
		}
		m[f.Classification] = group
	}
	return m
}

func TestClassifyOrderFirstMatchWins(t *testing.T) {
	// Agency order whose source equals origination matches both the Client
	// Facing rule and the Internal catch-all; only the first may win.
	order := validOrder("ORD-1")
	order.SourceSystem = "OMS-1"
	order.OriginationSystem = "OMS-1"

	facts := factMap(ClassifyOrder(&order))
	assert.Equal(t, "Client Facing", facts[models.ClassificationOrderEdge])
	assert.Equal(t, "Agency", facts[models.ClassificationOrderCapacityDerived])
	assert.Equal(t, "House", facts[models.ClassificationFlowTypeDerived])
	assert.Equal(t, "New", facts[models.ClassificationOrderStatus])
	assert.Equal(t, "Originate", facts[models.ClassificationOrderAction])
}

func TestClassifyOrderEdgeCatchAll(t *testing.T) {
	// Principal capacity but no system fields: no specific edge rule fires.
	order := validOrder("ORD-1")
	order.Capacity = models.CapacityPrincipal

	facts := factMap(ClassifyOrder(&order))
	assert.Equal(t, "Internal", facts[models.ClassificationOrderEdge])
	assert.Equal(t, "Principal", facts[models.ClassificationOrderCapacityDerived])
}

func TestClassifyOrderRoutedFlow(t *testing.T) {
	order := validOrder("ORD-1")
	order.ActionType = models.ActionTypeExternalRouteAccepted
	order.Destination = "NYSE"

	facts := factMap(ClassifyOrder(&order))
	assert.Equal(t, "Routed", facts[models.ClassificationFlowTypeDerived])
	assert.Equal(t, "Market Facing", facts[models.ClassificationOrderEdge])
	assert.Equal(t, "Route", facts[models.ClassificationOrderAction])
	assert.Equal(t, "Accepted", facts[models.ClassificationOrderStatus])
}

func TestClassifyOrderArrivalMarketability(t *testing.T) {
	market := validOrder("ORD-1")
	market.OrderType = models.OrderTypeMarket
	assert.Equal(t, "Marketable", factMap(ClassifyOrder(&market))[models.ClassificationArrivalMarketability])

	// Buy limit at or above the ask is marketable.
	buyAtAsk := validOrder("ORD-2")
	buyAtAsk.Price = dec("100.25")
	buyAtAsk.AskPrice = dec("100.25")
	assert.Equal(t, "Marketable", factMap(ClassifyOrder(&buyAtAsk))[models.ClassificationArrivalMarketability])

	buyBelowAsk := validOrder("ORD-3")
	buyBelowAsk.Price = dec("100.10")
	buyBelowAsk.AskPrice = dec("100.25")
	assert.Equal(t, "Non-Marketable", factMap(ClassifyOrder(&buyBelowAsk))[models.ClassificationArrivalMarketability])

	// Sell limit at or below the bid is marketable.
	sellAtBid := validOrder("ORD-4")
	sellAtBid.Side = models.OrderSideSellShort
	sellAtBid.Price = dec("99.90")
	sellAtBid.BidPrice = dec("100.00")
	assert.Equal(t, "Marketable", factMap(ClassifyOrder(&sellAtBid))[models.ClassificationArrivalMarketability])

	// No order type: the category contributes no fact at all.
	blank := validOrder("ORD-5")
	blank.OrderType = ""
	_, ok := factMap(ClassifyOrder(&blank))[models.ClassificationArrivalMarketability]
	assert.False(t, ok)
}

func TestClassifyExecutionCapacity(t *testing.T) {
	exec := models.Execution{ExecutionId: "EXE-1", Capacity: models.CapacityRisklessPrincipal}
	facts := ClassifyExecution(&exec)
	require.Len(t, facts, 1)
	assert.Equal(t, models.ClassificationExecutionCapacity, facts[0].Classification)
	require.NotNil(t, facts[0].Group)
	assert.Equal(t, "Riskless Principal", *facts[0].Group)
}

func TestClassificationRegenerationIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	order := validOrder("ORD-1")
	order.SourceSystem = "OMS-1"
	order.OriginationSystem = "OMS-1"
	batch := createOrderBatch(t, db, "FIRM-A", order)
	markValidated(t, db, batch.ID)

	engine := &ClassificationEngine{DB: db, Logger: testLogger()}
	require.NoError(t, engine.ProcessBatch(ctx, batch))

	first, err := models.OrderClassificationsForBatch(ctx, db, batch.ID)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// Second run regenerates the identical fact set, no duplicates.
	require.NoError(t, engine.ProcessBatch(ctx, batch))
	second, err := models.OrderClassificationsForBatch(ctx, db, batch.ID)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	assert.Equal(t, factMap(first), factMap(second))

	// Facts wiped out of band come back on the next run.
	require.NoError(t, db.Where("1 = 1").Delete(&models.OrderBusinessClassification{}).Error)
	require.NoError(t, engine.ProcessBatch(ctx, batch))
	third, err := models.OrderClassificationsForBatch(ctx, db, batch.ID)
	require.NoError(t, err)
	assert.Len(t, third, len(first))
}

func TestClassificationNeverTouchesBatchOrRecords(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	batch := createOrderBatch(t, db, "FIRM-A", validOrder("ORD-1"))
	markValidated(t, db, batch.ID)
	before := reloadBatch(t, db, batch.ID)

	engine := &ClassificationEngine{DB: db, Logger: testLogger()}
	require.NoError(t, engine.ProcessBatch(ctx, batch))

	after := reloadBatch(t, db, batch.ID)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, before.ErrorLog, after.ErrorLog)
}
