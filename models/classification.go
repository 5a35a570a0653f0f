package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Classification category names. Each category contributes at most one fact
// per record.
const (
	ClassificationOrderCapacityDerived = "Order Capacity Derived"
	ClassificationFlowTypeDerived      = "Flow Type Derived"
	ClassificationOrderStatus          = "Order Status"
	ClassificationOrderAction          = "Order Action"
	ClassificationOrderEdge            = "Order Edge"
	ClassificationArrivalMarketability = "Arrival Marketability"
	ClassificationExecutionCapacity    = "Execution Capacity"
)

// OrderBusinessClassification is a derived, non-authoritative annotation on
// one order record. Facts are regenerated whole-batch, never patched.
type OrderBusinessClassification struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrderId        int       `gorm:"index;not null" json:"order_id"`
	Classification string    `gorm:"size:60;index;not null" json:"classification"`
	Group          *string   `gorm:"size:60" json:"group"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type ExecutionBusinessClassification struct {
	ID             int       `gorm:"primary_key" json:"id"`
	ExecutionId    int       `gorm:"index;not null" json:"execution_id"`
	Classification string    `gorm:"size:60;index;not null" json:"classification"`
	Group          *string   `gorm:"size:60" json:"group"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func OrderClassificationsForBatch(ctx context.Context, db *gorm.DB, batchId int) ([]*OrderBusinessClassification, error) {
	var facts []*OrderBusinessClassification
	err := db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = order_business_classifications.order_id").
		Where("orders.batch_id = ?", batchId).
		Order("order_business_classifications.id ASC").
		Find(&facts).Error
	if err != nil {
		return nil, err
	}
	return facts, nil
}

func ExecutionClassificationsForBatch(ctx context.Context, db *gorm.DB, batchId int) ([]*ExecutionBusinessClassification, error) {
	var facts []*ExecutionBusinessClassification
	err := db.WithContext(ctx).
		Joins("JOIN executions ON executions.id = execution_business_classifications.execution_id").
		Where("executions.batch_id = ?", batchId).
		Order("execution_business_classifications.id ASC").
		Find(&facts).Error
	if err != nil {
		return nil, err
	}
	return facts, nil
}

// ReplaceOrderClassifications regenerates the fact set for the given order
// ids inside one transaction: delete everything, insert the fresh set. A
// crash cannot leave a partial mix of old and new facts.
func ReplaceOrderClassifications(ctx context.Context, db *gorm.DB, orderIds []int, facts []*OrderBusinessClassification) error {
	if len(orderIds) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id IN ?", orderIds).Delete(&OrderBusinessClassification{}).Error; err != nil {
			return err
		}
		if len(facts) == 0 {
			return nil
		}
		return tx.CreateInBatches(facts, 200).Error
	})
}

func ReplaceExecutionClassifications(ctx context.Context, db *gorm.DB, executionIds []int, facts []*ExecutionBusinessClassification) error {
	if len(executionIds) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("execution_id IN ?", executionIds).Delete(&ExecutionBusinessClassification{}).Error; err != nil {
			return err
		}
		if len(facts) == 0 {
			return nil
		}
		return tx.CreateInBatches(facts, 200).Error
	})
}
