package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/regdesk/catreport_backend/models"
)

func createFact(t *testing.T, db *gorm.DB, orderId int, classification string, group string) *models.OrderBusinessClassification {
	t.Helper()
	fact := models.OrderBusinessClassification{
		OrderId:        orderId,
		Classification: classification,
	}
	if group != "" {
		fact.Group = &group
	}
	require.NoError(t, db.Create(&fact).Error)
	return &fact
}

func TestDeriverPromotesOnlyAllowListedFacts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	batch := createOrderBatch(t, db, "FIRM-A", validOrder("ORD-1"))
	orders, err := models.OrdersForBatch(ctx, db, batch.ID)
	require.NoError(t, err)
	oid := orders[0].ID

	clientEdge := createFact(t, db, oid, models.ClassificationOrderEdge, "Client Facing")
	routedFlow := createFact(t, db, oid, models.ClassificationFlowTypeDerived, "Routed")
	anyAction := createFact(t, db, oid, models.ClassificationOrderAction, "Modify")
	createFact(t, db, oid, models.ClassificationOrderEdge, "Internal")
	createFact(t, db, oid, models.ClassificationOrderStatus, "New")

	d := &CatEventDeriver{DB: db, Logger: testLogger()}
	require.NoError(t, d.ProcessPending(ctx))

	events, err := models.CatEventsForOrder(ctx, db, oid)
	require.NoError(t, err)
	require.Len(t, events, 3)

	byFact := make(map[int]*models.OrderCatEvent, len(events))
	for _, e := range events {
		byFact[e.ClassificationId] = e
	}
	require.Contains(t, byFact, clientEdge.ID)
	require.Contains(t, byFact, routedFlow.ID)
	require.Contains(t, byFact, anyAction.ID)

	assert.Equal(t, models.CatEventNewOrder, byFact[clientEdge.ID].CatEvent)
	assert.Equal(t, models.CatEventOrderRoute, byFact[routedFlow.ID].CatEvent)
	assert.Equal(t, models.CatEventOrderRoute, byFact[anyAction.ID].CatEvent)
	for _, e := range events {
		assert.NotEmpty(t, e.UniqueId)
		assert.Equal(t, oid, e.OrderId)
	}
}

func TestDeriverIsIdempotentAcrossRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	batch := createOrderBatch(t, db, "FIRM-A", validOrder("ORD-1"))
	orders, err := models.OrdersForBatch(ctx, db, batch.ID)
	require.NoError(t, err)
	createFact(t, db, orders[0].ID, models.ClassificationOrderEdge, "Market Facing")

	d := &CatEventDeriver{DB: db, Logger: testLogger()}
	require.NoError(t, d.ProcessPending(ctx))
	require.NoError(t, d.ProcessPending(ctx))
	require.NoError(t, d.ProcessPending(ctx))

	events, err := models.CatEventsForOrder(ctx, db, orders[0].ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestDeriverDuplicateInsertIsNotAFault(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	batch := createOrderBatch(t, db, "FIRM-A", validOrder("ORD-1"))
	orders, err := models.OrdersForBatch(ctx, db, batch.ID)
	require.NoError(t, err)
	fact := createFact(t, db, orders[0].ID, models.ClassificationOrderAction, "Originate")

	d := &CatEventDeriver{DB: db, Logger: testLogger()}
	require.NoError(t, d.deriveOne(ctx, fact))
	// A second direct insert attempt hits the existence check / unique index
	// path and still reports success.
	require.NoError(t, d.deriveOne(ctx, fact))

	var count int64
	require.NoError(t, db.Model(&models.OrderCatEvent{}).Where("classification_id = ?", fact.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeriverRespectsPageSize(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	batch := createOrderBatch(t, db, "FIRM-A", validOrder("ORD-1"), validOrder("ORD-2"), validOrder("ORD-3"))
	orders, err := models.OrdersForBatch(ctx, db, batch.ID)
	require.NoError(t, err)
	for _, o := range orders {
		createFact(t, db, o.ID, models.ClassificationOrderAction, "Originate")
	}

	d := &CatEventDeriver{DB: db, Logger: testLogger(), PageSize: 2}
	require.NoError(t, d.ProcessPending(ctx))

	var count int64
	require.NoError(t, db.Model(&models.OrderCatEvent{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	// The next scan drains the remainder.
	require.NoError(t, d.ProcessPending(ctx))
	require.NoError(t, db.Model(&models.OrderCatEvent{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}
