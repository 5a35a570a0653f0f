package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RowError is one row-level validation finding. Index is the zero-based
// position of the record within the upload; exactly one of OrderId /
// ExecutionId is set depending on the batch file type.
type RowError struct {
	Index       int    `json:"index"`
	OrderId     string `json:"orderId,omitempty"`
	ExecutionId string `json:"executionId,omitempty"`
	Error       string `json:"error"`
}

// RowErrorList is stored on the batch as a JSON column.
type RowErrorList []RowError

func (l RowErrorList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *RowErrorList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type %T for RowErrorList", value)
	}
}

// Batch is one upload unit and the unit of pipeline progression. The three
// verdict pairs start NULL; each stage's validator writes its own pair exactly
// once. The core never deletes batches.
type Batch struct {
	ID           int      `gorm:"primary_key" json:"id"`
	FirmId       string   `gorm:"size:64;index;not null" json:"firm_id"`
	UserId       int      `gorm:"index" json:"user_id"`
	FileType     FileType `gorm:"size:20;not null;index" json:"file_type"`
	FileName     string   `gorm:"size:255" json:"file_name"`
	TotalRecords int      `gorm:"not null;default:0" json:"total_records"`

	Validation1       *bool             `gorm:"column:validation_1;index" json:"validation_1"`
	Validation1Status *ValidationStatus `gorm:"column:validation_1_status;size:10" json:"validation_1_status"`
	Validation2       *bool             `gorm:"column:validation_2" json:"validation_2"`
	Validation2Status *ValidationStatus `gorm:"column:validation_2_status;size:10" json:"validation_2_status"`
	Validation3       *bool             `gorm:"column:validation_3;index" json:"validation_3"`
	Validation3Status *ValidationStatus `gorm:"column:validation_3_status;size:10" json:"validation_3_status"`

	ErrorLog RowErrorList `gorm:"type:json" json:"error_log"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Pipeline stage identifiers used by the schedulers and the manual trigger.
const (
	StageValidation1    = 1
	StageValidation2    = 2
	StageValidation3    = 3
	StageClassification = 4
)

// PendingBatches selects the oldest batches eligible for the given stage.
// Eligibility is purely data-driven: a stage's guard reads the previous
// stage's committed status, so a batch cannot surface here before that write
// has committed. Classification never writes back to the batch, so its guard
// additionally excludes batches that already carry facts; regeneration for
// such a batch happens only through the explicit re-run paths.
func PendingBatches(ctx context.Context, db *gorm.DB, stage int, limit int) ([]*Batch, error) {
	q := db.WithContext(ctx).Model(&Batch{})
	switch stage {
	case StageValidation1:
		q = q.Where("validation_1 IS NULL")
	case StageValidation2:
		q = q.Where("validation_1_status = ? AND validation_2 IS NULL", ValidationStatusPassed)
	case StageValidation3:
		q = q.Where("validation_2_status = ? AND validation_3 IS NULL", ValidationStatusPassed)
	case StageClassification:
		q = q.Where("validation_3 = ? AND validation_3_status = ?", true, ValidationStatusPassed).
			Where(`batches.id NOT IN (
				SELECT orders.batch_id FROM order_business_classifications
				JOIN orders ON orders.id = order_business_classifications.order_id
				UNION
				SELECT executions.batch_id FROM execution_business_classifications
				JOIN executions ON executions.id = execution_business_classifications.execution_id
			)`)
	default:
		return nil, fmt.Errorf("unknown pipeline stage %d", stage)
	}

	var batches []*Batch
	if err := q.Order("id ASC").Limit(limit).Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// SetStageResult writes one stage's verdict pair. Passed stages do not touch
// the error log; a failed stage persists its full row-error list.
func (b *Batch) SetStageResult(tx *gorm.DB, stage int, rowErrors RowErrorList) error {
	passed := len(rowErrors) == 0
	status := ValidationStatusPassed
	if !passed {
		status = ValidationStatusFailed
	}

	updates := map[string]interface{}{}
	switch stage {
	case StageValidation1:
		updates["validation_1"] = passed
		updates["validation_1_status"] = status
	case StageValidation2:
		updates["validation_2"] = passed
		updates["validation_2_status"] = status
	case StageValidation3:
		updates["validation_3"] = passed
		updates["validation_3_status"] = status
	default:
		return fmt.Errorf("stage %d does not write a batch verdict", stage)
	}
	if !passed {
		updates["error_log"] = rowErrors
	}

	if err := tx.Model(&Batch{}).Where("id = ?", b.ID).Updates(updates).Error; err != nil {
		return err
	}

	b.applyStageResult(stage, passed, status, rowErrors)
	return nil
}

func (b *Batch) applyStageResult(stage int, passed bool, status ValidationStatus, rowErrors RowErrorList) {
	switch stage {
	case StageValidation1:
		b.Validation1, b.Validation1Status = &passed, &status
	case StageValidation2:
		b.Validation2, b.Validation2Status = &passed, &status
	case StageValidation3:
		b.Validation3, b.Validation3Status = &passed, &status
	}
	if !passed {
		b.ErrorLog = rowErrors
	}
}

func GetBatch(ctx context.Context, db *gorm.DB, id int) (*Batch, error) {
	var batch Batch
	if err := db.WithContext(ctx).First(&batch, id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// ResetStageFields clears a stage's verdict pair (and those of all later
// stages) so the batch re-enters the pipeline at that stage on the next tick.
// This is the external administrative retry path; the core never calls it.
func (b *Batch) ResetStageFields(db *gorm.DB, fromStage int) error {
	updates := map[string]interface{}{"error_log": nil}
	if fromStage <= StageValidation1 {
		updates["validation_1"] = nil
		updates["validation_1_status"] = nil
	}
	if fromStage <= StageValidation2 {
		updates["validation_2"] = nil
		updates["validation_2_status"] = nil
	}
	if fromStage <= StageValidation3 {
		updates["validation_3"] = nil
		updates["validation_3_status"] = nil
	}
	return db.Model(&Batch{}).Where("id = ?", b.ID).Updates(updates).Error
}
