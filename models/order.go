package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FieldMap holds the long tail of the upload vocabulary that no validator or
// classifier consults by column. Stored as JSON.
type FieldMap map[string]string

func (m FieldMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *FieldMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type %T for FieldMap", value)
	}
}

// Order is one raw order record, owned by exactly one batch. Immutable after
// creation except Stage-1 enum canonicalization.
type Order struct {
	ID          int    `gorm:"primary_key" json:"id"`
	BatchId     int    `gorm:"index;not null" json:"batch_id"`
	RecordIndex int    `gorm:"not null" json:"record_index"`
	OrderId     string `gorm:"size:64;index;not null" json:"order_id"`

	Symbol               string           `gorm:"size:20" json:"symbol"`
	Side                 string           `gorm:"size:20" json:"side"`
	OrderType            string           `gorm:"size:20" json:"order_type"`
	Price                *decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`
	Quantity             decimal.Decimal  `gorm:"type:decimal(20,8)" json:"quantity"`
	Capacity             string           `gorm:"size:30" json:"capacity"`
	ActionType           string           `gorm:"size:40" json:"action_type"`
	SourceSystem         string           `gorm:"size:50" json:"source_system"`
	OriginationSystem    string           `gorm:"size:50" json:"origination_system"`
	Destination          string           `gorm:"size:50" json:"destination"`
	LinkedOrderType      string           `gorm:"size:30" json:"linked_order_type"`
	InfoBarrierId        string           `gorm:"size:50" json:"info_barrier_id"`
	BidPrice             *decimal.Decimal `gorm:"type:decimal(20,8)" json:"bid_price"`
	AskPrice             *decimal.Decimal `gorm:"type:decimal(20,8)" json:"ask_price"`
	TimeInForce          string           `gorm:"size:10" json:"time_in_force"`
	AccountHolderType    string           `gorm:"size:30" json:"account_holder_type"`
	SenderIMID           string           `gorm:"column:sender_imid;size:20" json:"sender_imid"`
	ReceiverIMID         string           `gorm:"column:receiver_imid;size:20" json:"receiver_imid"`
	RoutedOrderId        string           `gorm:"size:64" json:"routed_order_id"`
	FirmDesignatedId     string           `gorm:"size:40" json:"firm_designated_id"`
	SessionId            string           `gorm:"size:40" json:"session_id"`
	HandlingInstructions string           `gorm:"size:100" json:"handling_instructions"`
	EventTimestamp       *time.Time       `json:"event_timestamp"`

	ExtraFields FieldMap `gorm:"type:json" json:"extra_fields"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Upload vocabulary field names for orders. The validators and the Stage-3
// condition tables address record fields by these names.
const (
	FieldOrderId              = "Order_ID"
	FieldSymbol               = "Symbol"
	FieldOrderSide            = "Order_Side"
	FieldOrderType            = "Order_Type"
	FieldPrice                = "Price"
	FieldQuantity             = "Quantity"
	FieldCapacity             = "Capacity"
	FieldActionType           = "Action_Type"
	FieldSourceSystem         = "Source_System"
	FieldOriginationSystem    = "Origination_System"
	FieldDestination          = "Destination"
	FieldLinkedOrderType      = "Linked_Order_Type"
	FieldInfoBarrierId        = "Info_Barrier_ID"
	FieldBidPrice             = "Bid_Price"
	FieldAskPrice             = "Ask_Price"
	FieldTimeInForce          = "Time_In_Force"
	FieldAccountHolderType    = "Account_Holder_Type"
	FieldSenderIMID           = "Sender_IMID"
	FieldReceiverIMID         = "Receiver_IMID"
	FieldRoutedOrderId        = "Routed_Order_ID"
	FieldFirmDesignatedId     = "Firm_Designated_ID"
	FieldSessionId            = "Session_ID"
	FieldHandlingInstructions = "Handling_Instructions"
	FieldEventTimestamp       = "Event_Timestamp"
)

func formatDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// FieldValue resolves a vocabulary field name to the record's value, falling
// back to the extra-fields map for names without a dedicated column. Absent
// values come back as "".
func (o *Order) FieldValue(name string) string {
	switch name {
	case FieldOrderId:
		return o.OrderId
	case FieldSymbol:
		return o.Symbol
	case FieldOrderSide:
		return o.Side
	case FieldOrderType:
		return o.OrderType
	case FieldPrice:
		return formatDecimal(o.Price)
	case FieldQuantity:
		if o.Quantity.IsZero() {
			return ""
		}
		return o.Quantity.String()
	case FieldCapacity:
		return o.Capacity
	case FieldActionType:
		return o.ActionType
	case FieldSourceSystem:
		return o.SourceSystem
	case FieldOriginationSystem:
		return o.OriginationSystem
	case FieldDestination:
		return o.Destination
	case FieldLinkedOrderType:
		return o.LinkedOrderType
	case FieldInfoBarrierId:
		return o.InfoBarrierId
	case FieldBidPrice:
		return formatDecimal(o.BidPrice)
	case FieldAskPrice:
		return formatDecimal(o.AskPrice)
	case FieldTimeInForce:
		return o.TimeInForce
	case FieldAccountHolderType:
		return o.AccountHolderType
	case FieldSenderIMID:
		return o.SenderIMID
	case FieldReceiverIMID:
		return o.ReceiverIMID
	case FieldRoutedOrderId:
		return o.RoutedOrderId
	case FieldFirmDesignatedId:
		return o.FirmDesignatedId
	case FieldSessionId:
		return o.SessionId
	case FieldHandlingInstructions:
		return o.HandlingInstructions
	case FieldEventTimestamp:
		if o.EventTimestamp == nil {
			return ""
		}
		return o.EventTimestamp.UTC().Format(time.RFC3339Nano)
	default:
		return o.ExtraFields[name]
	}
}

// SetEnumField writes the canonical spelling back onto an enum-bearing
// column. Stage 1 is the only caller; other fields stay immutable.
func (o *Order) SetEnumField(name string, value string) {
	switch name {
	case FieldOrderSide:
		o.Side = value
	case FieldOrderType:
		o.OrderType = value
	case FieldCapacity:
		o.Capacity = value
	case FieldActionType:
		o.ActionType = value
	case FieldTimeInForce:
		o.TimeInForce = value
	case FieldAccountHolderType:
		o.AccountHolderType = value
	case FieldLinkedOrderType:
		o.LinkedOrderType = value
	}
}

func OrdersForBatch(ctx context.Context, db *gorm.DB, batchId int) ([]*Order, error) {
	var orders []*Order
	err := db.WithContext(ctx).
		Where("batch_id = ?", batchId).
		Order("record_index ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func GetOrder(ctx context.Context, db *gorm.DB, id int) (*Order, error) {
	var order Order
	if err := db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
