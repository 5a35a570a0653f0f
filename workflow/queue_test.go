package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regdesk/catreport_backend/models"
)

func TestStageQueueGuardsOnPreviousStage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	fresh := createOrderBatch(t, db, "FIRM-A", validOrder("ORD-1"))
	failed := createOrderBatch(t, db, "FIRM-A", validOrder("ORD-2"))
	require.NoError(t, db.Model(&models.Batch{}).Where("id = ?", failed.ID).Updates(map[string]interface{}{
		"validation_1": false, "validation_1_status": models.ValidationStatusFailed,
	}).Error)

	// Stage 2 must see neither: one batch has no Stage-1 verdict yet, the
	// other failed Stage 1 and is terminal.
	pending, err := models.PendingBatches(ctx, db, models.StageValidation2, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	v2 := &Stage2Validator{DB: db, Logger: testLogger()}
	require.NoError(t, RunStageQueue(ctx, db, testLogger(), v2, 10))

	got := reloadBatch(t, db, fresh.ID)
	assert.Nil(t, got.Validation2)
	got = reloadBatch(t, db, failed.ID)
	assert.Nil(t, got.Validation2)
}

func TestStageQueueProcessesOldestFirstWithinPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := createOrderBatch(t, db, "FIRM-A", validOrder("ORD-1"))
	second := createOrderBatch(t, db, "FIRM-A", validOrder("ORD-2"))
	third := createOrderBatch(t, db, "FIRM-A", validOrder("ORD-3"))

	// Page size 2: only the two oldest batches get a Stage-1 verdict this
	// tick, the third waits for the next one.
	v1 := &Stage1Validator{DB: db, Logger: testLogger()}
	require.NoError(t, RunStageQueue(ctx, db, testLogger(), v1, 2))

	assert.NotNil(t, reloadBatch(t, db, first.ID).Validation1)
	assert.NotNil(t, reloadBatch(t, db, second.ID).Validation1)
	assert.Nil(t, reloadBatch(t, db, third.ID).Validation1)

	require.NoError(t, RunStageQueue(ctx, db, testLogger(), v1, 2))
	assert.NotNil(t, reloadBatch(t, db, third.ID).Validation1)
}

func TestFailedBatchIsTerminal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	bad := validOrder("ORD-1")
	bad.Side = "Sideways"
	batch := createOrderBatch(t, db, "FIRM-A", bad)

	v1 := &Stage1Validator{DB: db, Logger: testLogger()}
	require.NoError(t, RunStageQueue(ctx, db, testLogger(), v1, 10))
	got := reloadBatch(t, db, batch.ID)
	require.NotNil(t, got.Validation1Status)
	require.Equal(t, models.ValidationStatusFailed, *got.Validation1Status)

	// No later stage ever selects it again.
	for _, stage := range []int{models.StageValidation1, models.StageValidation2, models.StageValidation3, models.StageClassification} {
		pending, err := models.PendingBatches(ctx, db, stage, 10)
		require.NoError(t, err)
		assert.Empty(t, pending, "stage %d selected a terminal batch", stage)
	}
}

func TestPollerDropsOverlappingTick(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	p := &Poller{
		Name:     "test",
		Interval: time.Hour,
		Logger:   testLogger(),
		Tick: func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		},
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.True(t, p.RunOnce(context.Background()))
	}()

	<-started
	// Second invocation lands while the first tick is still inside Tick.
	assert.False(t, p.RunOnce(context.Background()))

	close(release)
	wg.Wait()

	// With the first tick finished the guard is released again.
	p.Tick = func(ctx context.Context) error { return nil }
	assert.True(t, p.RunOnce(context.Background()))
}
