package workflow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/regdesk/catreport_backend/models"
)

// Stage3Validator evaluates the firm's per-field reference-data conditions.
// Each condition is a lookup against one of the reference tables; a failed
// lookup is a row error, a misconfigured condition (unknown table/column) is
// an engine fault and leaves the batch untouched for the next tick.
type Stage3Validator struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func (v *Stage3Validator) Stage() int { return models.StageValidation3 }

func (v *Stage3Validator) ProcessBatch(ctx context.Context, batch *models.Batch) error {
	schema, err := models.GetValidationSchema(ctx, v.DB, batch.FirmId, batch.FileType)
	if err != nil {
		return err
	}

	var conditions models.FieldConditionList
	if schema != nil {
		conditions = schema.Stage3Conditions
	}

	var rowErrors models.RowErrorList
	check := func(rec record, index int, recordId string) error {
		for _, cond := range conditions {
			value := rec.FieldValue(cond.Field)
			if value == "" {
				// Presence is Stage 1's concern.
				continue
			}
			exists, err := models.ReferenceExists(ctx, v.DB, cond.RefTable, cond.RefColumn, value)
			if err != nil {
				return err
			}
			if !exists {
				msg := fmt.Sprintf("value %q for field %s not found in %s", value, cond.Field, cond.RefTable)
				rowErrors = append(rowErrors, newRowError(batch.FileType, index, recordId, msg))
			}
		}
		return nil
	}

	if batch.FileType == models.FileTypeOrders {
		orders, err := models.OrdersForBatch(ctx, v.DB, batch.ID)
		if err != nil {
			return err
		}
		for _, o := range orders {
			if err := check(o, o.RecordIndex, o.OrderId); err != nil {
				return err
			}
		}
	} else {
		executions, err := models.ExecutionsForBatch(ctx, v.DB, batch.ID)
		if err != nil {
			return err
		}
		for _, e := range executions {
			if err := check(e, e.RecordIndex, e.ExecutionId); err != nil {
				return err
			}
		}
	}

	return batch.SetStageResult(v.DB.WithContext(ctx), models.StageValidation3, rowErrors)
}
