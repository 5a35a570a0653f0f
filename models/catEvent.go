package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// CAT event codes used on derived events.
const (
	CatEventNewOrder   = "MENO"
	CatEventOrderRoute = "MEOR"
)

// OrderCatEvent is a regulatory event promoted from exactly one
// classification fact. Immutable once created. The unique index on
// ClassificationId is the storage-level backstop for the deriver's
// existence-check-then-insert; a duplicate-key error means another run got
// there first and is not a fault.
type OrderCatEvent struct {
	ID               int       `gorm:"primary_key" json:"id"`
	ClassificationId int       `gorm:"uniqueIndex;not null" json:"classification_id"`
	OrderId          int       `gorm:"index;not null" json:"order_id"`
	CatEvent         string    `gorm:"size:10;not null" json:"cat_event"`
	UniqueId         string    `gorm:"size:36;not null" json:"unique_id"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CatEventsForOrder(ctx context.Context, db *gorm.DB, orderId int) ([]*OrderCatEvent, error) {
	var events []*OrderCatEvent
	err := db.WithContext(ctx).
		Where("order_id = ?", orderId).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ClassificationsWithoutEvent selects order classification facts that have no
// associated CAT event yet, oldest first.
func ClassificationsWithoutEvent(ctx context.Context, db *gorm.DB, limit int) ([]*OrderBusinessClassification, error) {
	var facts []*OrderBusinessClassification
	err := db.WithContext(ctx).
		Model(&OrderBusinessClassification{}).
		Joins("LEFT JOIN order_cat_events ON order_cat_events.classification_id = order_business_classifications.id").
		Where("order_cat_events.id IS NULL").
		Order("order_business_classifications.id ASC").
		Limit(limit).
		Find(&facts).Error
	if err != nil {
		return nil, err
	}
	return facts, nil
}

// HasCatEvent re-checks for an existing event immediately before insert.
func HasCatEvent(ctx context.Context, db *gorm.DB, classificationId int) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&OrderCatEvent{}).
		Where("classification_id = ?", classificationId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
