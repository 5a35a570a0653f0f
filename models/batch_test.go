package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchVerdictColumnNames(t *testing.T) {
	db := newTestDB(t)
	// The verdict pair columns are addressed by raw name in the stage guards
	// and verdict writes; the migrated schema must carry exactly these names.
	for _, column := range []string{
		"validation_1", "validation_1_status",
		"validation_2", "validation_2_status",
		"validation_3", "validation_3_status",
		"error_log",
	} {
		assert.True(t, db.Migrator().HasColumn(&Batch{}, column), "missing column %s", column)
	}
}

func TestBrokerDealerLookupColumnName(t *testing.T) {
	db := newTestDB(t)
	assert.True(t, db.Migrator().HasColumn(&BrokerDealer{}, "imid"))

	ctx := context.Background()
	require.NoError(t, db.Create(&BrokerDealer{IMID: "GSCO", Name: "Goldman Sachs & Co."}).Error)
	exists, err := ReferenceExists(ctx, db, RefTableBrokerDealers, "imid", "GSCO")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSetStageResultPassAndFail(t *testing.T) {
	db := newTestDB(t)
	batch := Batch{FirmId: "FIRM-A", FileType: FileTypeOrders, TotalRecords: 2}
	require.NoError(t, db.Create(&batch).Error)

	require.NoError(t, batch.SetStageResult(db, StageValidation1, nil))
	var got Batch
	require.NoError(t, db.First(&got, batch.ID).Error)
	require.NotNil(t, got.Validation1)
	assert.True(t, *got.Validation1)
	assert.Equal(t, ValidationStatusPassed, *got.Validation1Status)
	assert.Empty(t, got.ErrorLog)

	rowErrors := RowErrorList{{Index: 1, OrderId: "ORD-2", Error: "field Symbol is required"}}
	require.NoError(t, batch.SetStageResult(db, StageValidation2, rowErrors))
	require.NoError(t, db.First(&got, batch.ID).Error)
	require.NotNil(t, got.Validation2)
	assert.False(t, *got.Validation2)
	assert.Equal(t, ValidationStatusFailed, *got.Validation2Status)
	require.Len(t, got.ErrorLog, 1)
	assert.Equal(t, "ORD-2", got.ErrorLog[0].OrderId)

	// The in-memory struct mirrors what was written.
	require.NotNil(t, batch.Validation2)
	assert.False(t, *batch.Validation2)

	err := batch.SetStageResult(db, StageClassification, nil)
	require.Error(t, err)
}

func TestPendingBatchesStageGuards(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	fresh := Batch{FirmId: "FIRM-A", FileType: FileTypeOrders}
	require.NoError(t, db.Create(&fresh).Error)

	cleared1 := Batch{FirmId: "FIRM-A", FileType: FileTypeOrders}
	require.NoError(t, db.Create(&cleared1).Error)
	require.NoError(t, cleared1.SetStageResult(db, StageValidation1, nil))

	failed1 := Batch{FirmId: "FIRM-A", FileType: FileTypeOrders}
	require.NoError(t, db.Create(&failed1).Error)
	require.NoError(t, failed1.SetStageResult(db, StageValidation1, RowErrorList{{Index: 0, Error: "bad"}}))

	fullyCleared := Batch{FirmId: "FIRM-A", FileType: FileTypeOrders}
	require.NoError(t, db.Create(&fullyCleared).Error)
	require.NoError(t, fullyCleared.SetStageResult(db, StageValidation1, nil))
	require.NoError(t, fullyCleared.SetStageResult(db, StageValidation2, nil))
	require.NoError(t, fullyCleared.SetStageResult(db, StageValidation3, nil))

	ids := func(batches []*Batch) []int {
		out := make([]int, 0, len(batches))
		for _, b := range batches {
			out = append(out, b.ID)
		}
		return out
	}

	pending, err := PendingBatches(ctx, db, StageValidation1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{fresh.ID}, ids(pending))

	pending, err = PendingBatches(ctx, db, StageValidation2, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{cleared1.ID}, ids(pending))

	pending, err = PendingBatches(ctx, db, StageValidation3, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = PendingBatches(ctx, db, StageClassification, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{fullyCleared.ID}, ids(pending))

	// Once a batch carries facts the classification queue leaves it alone.
	order := Order{BatchId: fullyCleared.ID, RecordIndex: 0, OrderId: "ORD-1"}
	require.NoError(t, db.Create(&order).Error)
	group := "Internal"
	fact := OrderBusinessClassification{OrderId: order.ID, Classification: ClassificationOrderEdge, Group: &group}
	require.NoError(t, db.Create(&fact).Error)

	pending, err = PendingBatches(ctx, db, StageClassification, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Deleting the facts out of band re-opens the batch for classification.
	require.NoError(t, db.Delete(&fact).Error)
	pending, err = PendingBatches(ctx, db, StageClassification, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{fullyCleared.ID}, ids(pending))

	_, err = PendingBatches(ctx, db, 9, 10)
	require.Error(t, err)
}

func TestResetStageFieldsReentersPipeline(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batch := Batch{FirmId: "FIRM-A", FileType: FileTypeOrders}
	require.NoError(t, db.Create(&batch).Error)
	require.NoError(t, batch.SetStageResult(db, StageValidation1, nil))
	require.NoError(t, batch.SetStageResult(db, StageValidation2, RowErrorList{{Index: 0, Error: "bad"}}))

	require.NoError(t, batch.ResetStageFields(db, StageValidation2))

	var got Batch
	require.NoError(t, db.First(&got, batch.ID).Error)
	require.NotNil(t, got.Validation1)
	assert.True(t, *got.Validation1)
	assert.Nil(t, got.Validation2)
	assert.Nil(t, got.Validation2Status)
	assert.Empty(t, got.ErrorLog)

	pending, err := PendingBatches(ctx, db, StageValidation2, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, batch.ID, pending[0].ID)
}
