package workflow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/regdesk/catreport_backend/config"
	"github.com/regdesk/catreport_backend/models"
)

// BatchProcessor is one pipeline engine: a stage validator or the
// classification engine.
type BatchProcessor interface {
	Stage() int
	ProcessBatch(ctx context.Context, batch *models.Batch) error
}

// RunStageQueue selects one page of eligible batches, oldest first, and
// processes them strictly sequentially. An engine fault on one batch is
// logged and leaves that batch's stage fields untouched for the next tick; a
// selection fault aborts the whole tick.
func RunStageQueue(ctx context.Context, db *gorm.DB, logger *logrus.Logger, proc BatchProcessor, pageSize int) error {
	batches, err := models.PendingBatches(ctx, db, proc.Stage(), pageSize)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		if err := proc.ProcessBatch(ctx, batch); err != nil {
			config.LogError(logger, "pipeline", "RunStageQueue",
				fmt.Sprintf("stage %d", proc.Stage()),
				map[string]interface{}{"batch_id": batch.ID, "firm_id": batch.FirmId}, err)
			continue
		}
	}
	return nil
}
