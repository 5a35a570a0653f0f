package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/regdesk/catreport_backend/models"
)

// Stage2Validator applies the firm's cross-field business rules. A firm with
// no configured rules passes trivially.
type Stage2Validator struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func (v *Stage2Validator) Stage() int { return models.StageValidation2 }

func (v *Stage2Validator) ProcessBatch(ctx context.Context, batch *models.Batch) error {
	schema, err := models.GetValidationSchema(ctx, v.DB, batch.FirmId, batch.FileType)
	if err != nil {
		return err
	}

	var rules models.CrossFieldRuleList
	if schema != nil {
		rules = schema.Stage2Rules
	}

	var rowErrors models.RowErrorList
	if batch.FileType == models.FileTypeOrders {
		orders, err := models.OrdersForBatch(ctx, v.DB, batch.ID)
		if err != nil {
			return err
		}
		for _, o := range orders {
			for _, rule := range rules {
				if msg := evaluateCrossFieldRule(rule, o); msg != "" {
					rowErrors = append(rowErrors, newRowError(batch.FileType, o.RecordIndex, o.OrderId, msg))
				}
			}
		}
	} else {
		executions, err := models.ExecutionsForBatch(ctx, v.DB, batch.ID)
		if err != nil {
			return err
		}
		for _, e := range executions {
			for _, rule := range rules {
				if msg := evaluateCrossFieldRule(rule, e); msg != "" {
					rowErrors = append(rowErrors, newRowError(batch.FileType, e.RecordIndex, e.ExecutionId, msg))
				}
			}
		}
	}

	return batch.SetStageResult(v.DB.WithContext(ctx), models.StageValidation2, rowErrors)
}
