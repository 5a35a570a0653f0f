package models

import "strings"

type FileType string

const (
	FileTypeOrders    FileType = "orders"
	FileTypeExecution FileType = "execution"
)

func (t FileType) Valid() bool {
	return t == FileTypeOrders || t == FileTypeExecution
}

type ValidationStatus string

const (
	ValidationStatusPassed ValidationStatus = "passed"
	ValidationStatusFailed ValidationStatus = "failed"
)

// Canonical display values for the enum-bearing fields of the order and
// execution vocabularies. Stage 1 matches raw input against these
// case-insensitively and rewrites matched values to the canonical spelling.

const (
	OrderSideBuy             = "Buy"
	OrderSideSell            = "Sell"
	OrderSideSellShort       = "Sell Short"
	OrderSideSellShortExempt = "Sell Short Exempt"
)

const (
	OrderTypeMarket    = "Market"
	OrderTypeLimit     = "Limit"
	OrderTypeStop      = "Stop"
	OrderTypeStopLimit = "Stop Limit"
	OrderTypePegged    = "Pegged"
)

const (
	CapacityAgency            = "Agency"
	CapacityPrincipal         = "Principal"
	CapacityRisklessPrincipal = "Riskless Principal"
)

const (
	ActionTypeNewOrder                  = "New Order"
	ActionTypeOrderAccepted             = "Order Accepted"
	ActionTypeInternalRouteAccepted     = "Internal Route Accepted"
	ActionTypeInternalRouteAcknowledged = "Internal Route Acknowledged"
	ActionTypeExternalRouteAccepted     = "External Route Accepted"
	ActionTypeOrderModified             = "Order Modified"
	ActionTypeOrderCanceled             = "Order Canceled"
	ActionTypeOrderExecuted             = "Order Executed"
)

const (
	TimeInForceDay = "Day"
	TimeInForceGTC = "GTC"
	TimeInForceGTD = "GTD"
	TimeInForceIOC = "IOC"
	TimeInForceFOK = "FOK"
	TimeInForceOPG = "OPG"
)

const (
	AccountHolderTypeIndividual    = "Individual"
	AccountHolderTypeInstitutional = "Institutional"
	AccountHolderTypeProprietary   = "Proprietary"
	AccountHolderTypeEmployee      = "Employee"
	AccountHolderTypeMarketMaking  = "Market Making"
)

const (
	LinkedOrderTypeAggregated     = "Aggregated"
	LinkedOrderTypeRepresentative = "Representative"
	LinkedOrderTypeChild          = "Child"
)

// EnumValueSet is the closed value vocabulary for one enum-bearing field.
// Matching is case-insensitive exact; Canonical returns the display spelling.
type EnumValueSet struct {
	Field  string
	Values []string
	canon  map[string]string
}

func NewEnumValueSet(field string, values ...string) *EnumValueSet {
	s := &EnumValueSet{
		Field:  field,
		Values: values,
		canon:  make(map[string]string, len(values)),
	}
	for _, v := range values {
		s.canon[strings.ToLower(v)] = v
	}
	return s
}

func (s *EnumValueSet) Canonical(raw string) (string, bool) {
	v, ok := s.canon[strings.ToLower(strings.TrimSpace(raw))]
	return v, ok
}

// Enum vocabularies keyed by the field names of the upload vocabulary.
var (
	EnumOrderSide         = NewEnumValueSet("Order_Side", OrderSideBuy, OrderSideSell, OrderSideSellShort, OrderSideSellShortExempt)
	EnumOrderType         = NewEnumValueSet("Order_Type", OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit, OrderTypePegged)
	EnumCapacity          = NewEnumValueSet("Capacity", CapacityAgency, CapacityPrincipal, CapacityRisklessPrincipal)
	EnumActionType        = NewEnumValueSet("Action_Type", ActionTypeNewOrder, ActionTypeOrderAccepted, ActionTypeInternalRouteAccepted, ActionTypeInternalRouteAcknowledged, ActionTypeExternalRouteAccepted, ActionTypeOrderModified, ActionTypeOrderCanceled, ActionTypeOrderExecuted)
	EnumTimeInForce       = NewEnumValueSet("Time_In_Force", TimeInForceDay, TimeInForceGTC, TimeInForceGTD, TimeInForceIOC, TimeInForceFOK, TimeInForceOPG)
	EnumAccountHolderType = NewEnumValueSet("Account_Holder_Type", AccountHolderTypeIndividual, AccountHolderTypeInstitutional, AccountHolderTypeProprietary, AccountHolderTypeEmployee, AccountHolderTypeMarketMaking)
	EnumLinkedOrderType   = NewEnumValueSet("Linked_Order_Type", LinkedOrderTypeAggregated, LinkedOrderTypeRepresentative, LinkedOrderTypeChild)

	// Execution vocabulary reuses the side/capacity value sets under its own
	// field names.
	EnumExecutionSide     = NewEnumValueSet("Side", OrderSideBuy, OrderSideSell, OrderSideSellShort, OrderSideSellShortExempt)
	EnumExecutionCapacity = NewEnumValueSet("Capacity", CapacityAgency, CapacityPrincipal, CapacityRisklessPrincipal)
)
