package workflow

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/regdesk/catreport_backend/models"
)

// newTestDB opens a per-test in-memory database. The shared-cache DSN keeps
// all of gorm's pooled connections on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrateAll(db))
	return db
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// createOrderBatch persists a batch plus its order records and returns the
// reloaded batch.
func createOrderBatch(t *testing.T, db *gorm.DB, firmId string, orders ...models.Order) *models.Batch {
	t.Helper()
	batch := models.Batch{
		FirmId:       firmId,
		FileType:     models.FileTypeOrders,
		FileName:     "orders.xlsx",
		TotalRecords: len(orders),
	}
	require.NoError(t, db.Create(&batch).Error)
	for i := range orders {
		orders[i].BatchId = batch.ID
		orders[i].RecordIndex = i
		require.NoError(t, db.Create(&orders[i]).Error)
	}
	return &batch
}

func createExecutionBatch(t *testing.T, db *gorm.DB, firmId string, executions ...models.Execution) *models.Batch {
	t.Helper()
	batch := models.Batch{
		FirmId:       firmId,
		FileType:     models.FileTypeExecution,
		FileName:     "executions.xlsx",
		TotalRecords: len(executions),
	}
	require.NoError(t, db.Create(&batch).Error)
	for i := range executions {
		executions[i].BatchId = batch.ID
		executions[i].RecordIndex = i
		require.NoError(t, db.Create(&executions[i]).Error)
	}
	return &batch
}

func reloadBatch(t *testing.T, db *gorm.DB, id int) *models.Batch {
	t.Helper()
	var batch models.Batch
	require.NoError(t, db.First(&batch, id).Error)
	return &batch
}

// markValidated stamps the batch as having cleared all three validation
// stages, for tests that start downstream of validation.
func markValidated(t *testing.T, db *gorm.DB, batchId int) {
	t.Helper()
	require.NoError(t, db.Model(&models.Batch{}).Where("id = ?", batchId).Updates(map[string]interface{}{
		"validation_1": true, "validation_1_status": models.ValidationStatusPassed,
		"validation_2": true, "validation_2_status": models.ValidationStatusPassed,
		"validation_3": true, "validation_3_status": models.ValidationStatusPassed,
	}).Error)
}
