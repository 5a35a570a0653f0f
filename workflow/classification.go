package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/regdesk/catreport_backend/models"
)

// ClassificationEngine re-derives the full classification fact set for a
// batch that cleared all three validation stages. Regeneration is
// delete-then-insert in one transaction, so re-running it for the same batch
// is idempotent and never touches the batch or its source records.
type ClassificationEngine struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func (e *ClassificationEngine) Stage() int { return models.StageClassification }

// ClassifyOrder evaluates every category against one order record,
// first-matching-rule-wins per category.
func ClassifyOrder(o *models.Order) []*models.OrderBusinessClassification {
	var facts []*models.OrderBusinessClassification
	for _, category := range OrderCategories {
		group, ok := category.Evaluate(o)
		if !ok {
			continue
		}
		g := group
		facts = append(facts, &models.OrderBusinessClassification{
			OrderId:        o.ID,
			Classification: category.Name,
			Group:          &g,
		})
	}
	return facts
}

func ClassifyExecution(x *models.Execution) []*models.ExecutionBusinessClassification {
	var facts []*models.ExecutionBusinessClassification
	for _, category := range ExecutionCategories {
		group, ok := category.Evaluate(x)
		if !ok {
			continue
		}
		g := group
		facts = append(facts, &models.ExecutionBusinessClassification{
			ExecutionId:    x.ID,
			Classification: category.Name,
			Group:          &g,
		})
	}
	return facts
}

func (e *ClassificationEngine) ProcessBatch(ctx context.Context, batch *models.Batch) error {
	if batch.FileType == models.FileTypeOrders {
		orders, err := models.OrdersForBatch(ctx, e.DB, batch.ID)
		if err != nil {
			return err
		}
		orderIds := make([]int, 0, len(orders))
		var facts []*models.OrderBusinessClassification
		for _, o := range orders {
			orderIds = append(orderIds, o.ID)
			facts = append(facts, ClassifyOrder(o)...)
		}
		return models.ReplaceOrderClassifications(ctx, e.DB, orderIds, facts)
	}

	executions, err := models.ExecutionsForBatch(ctx, e.DB, batch.ID)
	if err != nil {
		return err
	}
	executionIds := make([]int, 0, len(executions))
	var facts []*models.ExecutionBusinessClassification
	for _, x := range executions {
		executionIds = append(executionIds, x.ID)
		facts = append(facts, ClassifyExecution(x)...)
	}
	return models.ReplaceExecutionClassifications(ctx, e.DB, executionIds, facts)
}
