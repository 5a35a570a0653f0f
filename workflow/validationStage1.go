package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/regdesk/catreport_backend/models"
)

// Stage1Validator checks every record against the canonical enum
// vocabularies and the firm's field-level schema. Matched enum values are
// rewritten to their canonical spelling; that is the only mutation this
// stage performs on child records.
type Stage1Validator struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func (v *Stage1Validator) Stage() int { return models.StageValidation1 }

func (v *Stage1Validator) ProcessBatch(ctx context.Context, batch *models.Batch) error {
	schema, err := models.GetValidationSchema(ctx, v.DB, batch.FirmId, batch.FileType)
	if err != nil {
		return err
	}

	var rowErrors models.RowErrorList
	var dirtyOrders []*models.Order
	var dirtyExecutions []*models.Execution

	if batch.FileType == models.FileTypeOrders {
		orders, err := models.OrdersForBatch(ctx, v.DB, batch.ID)
		if err != nil {
			return err
		}
		for _, o := range orders {
			messages, changed := checkEnumFields(o, orderEnumFields)
			if schema != nil {
				messages = append(messages, checkFieldSchema(o, schema.Stage1Schema)...)
			}
			for _, msg := range messages {
				rowErrors = append(rowErrors, newRowError(batch.FileType, o.RecordIndex, o.OrderId, msg))
			}
			if changed {
				dirtyOrders = append(dirtyOrders, o)
			}
		}
	} else {
		executions, err := models.ExecutionsForBatch(ctx, v.DB, batch.ID)
		if err != nil {
			return err
		}
		for _, e := range executions {
			messages, changed := checkEnumFields(e, executionEnumFields)
			if schema != nil {
				messages = append(messages, checkFieldSchema(e, schema.Stage1Schema)...)
			}
			for _, msg := range messages {
				rowErrors = append(rowErrors, newRowError(batch.FileType, e.RecordIndex, e.ExecutionId, msg))
			}
			if changed {
				dirtyExecutions = append(dirtyExecutions, e)
			}
		}
	}

	return v.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range dirtyOrders {
			if err := tx.Save(o).Error; err != nil {
				return err
			}
		}
		for _, e := range dirtyExecutions {
			if err := tx.Save(e).Error; err != nil {
				return err
			}
		}
		return batch.SetStageResult(tx, models.StageValidation1, rowErrors)
	})
}
