package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Execution is one raw execution record, owned by exactly one batch.
// Immutable after creation except Stage-1 enum canonicalization.
type Execution struct {
	ID          int    `gorm:"primary_key" json:"id"`
	BatchId     int    `gorm:"index;not null" json:"batch_id"`
	RecordIndex int    `gorm:"not null" json:"record_index"`
	ExecutionId string `gorm:"size:64;index;not null" json:"execution_id"`
	OrderId     string `gorm:"size:64;index" json:"order_id"`

	Symbol           string           `gorm:"size:20" json:"symbol"`
	Side             string           `gorm:"size:20" json:"side"`
	Capacity         string           `gorm:"size:30" json:"capacity"`
	Price            *decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`
	Quantity         decimal.Decimal  `gorm:"type:decimal(20,8)" json:"quantity"`
	TradeVenue       string           `gorm:"size:50" json:"trade_venue"`
	SenderIMID       string           `gorm:"column:sender_imid;size:20" json:"sender_imid"`
	FirmDesignatedId string           `gorm:"size:40" json:"firm_designated_id"`
	SessionId        string           `gorm:"size:40" json:"session_id"`
	EventTimestamp   *time.Time       `json:"event_timestamp"`

	ExtraFields FieldMap `gorm:"type:json" json:"extra_fields"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Upload vocabulary field names for executions.
const (
	FieldExecutionId          = "Execution_ID"
	FieldExecOrderId          = "Order_ID"
	FieldExecSymbol           = "Symbol"
	FieldExecSide             = "Side"
	FieldExecCapacity         = "Capacity"
	FieldExecPrice            = "Price"
	FieldExecQuantity         = "Quantity"
	FieldTradeVenue           = "Trade_Venue"
	FieldExecSenderIMID       = "Sender_IMID"
	FieldExecFirmDesignatedId = "Firm_Designated_ID"
	FieldExecSessionId        = "Session_ID"
)

func (e *Execution) FieldValue(name string) string {
	switch name {
	case FieldExecutionId:
		return e.ExecutionId
	case FieldExecOrderId:
		return e.OrderId
	case FieldExecSymbol:
		return e.Symbol
	case FieldExecSide:
		return e.Side
	case FieldExecCapacity:
		return e.Capacity
	case FieldExecPrice:
		return formatDecimal(e.Price)
	case FieldExecQuantity:
		if e.Quantity.IsZero() {
			return ""
		}
		return e.Quantity.String()
	case FieldTradeVenue:
		return e.TradeVenue
	case FieldExecSenderIMID:
		return e.SenderIMID
	case FieldExecFirmDesignatedId:
		return e.FirmDesignatedId
	case FieldExecSessionId:
		return e.SessionId
	default:
		return e.ExtraFields[name]
	}
}

func (e *Execution) SetEnumField(name string, value string) {
	switch name {
	case FieldExecSide:
		e.Side = value
	case FieldExecCapacity:
		e.Capacity = value
	}
}

func ExecutionsForBatch(ctx context.Context, db *gorm.DB, batchId int) ([]*Execution, error) {
	var executions []*Execution
	err := db.WithContext(ctx).
		Where("batch_id = ?", batchId).
		Order("record_index ASC").
		Find(&executions).Error
	if err != nil {
		return nil, err
	}
	return executions, nil
}
