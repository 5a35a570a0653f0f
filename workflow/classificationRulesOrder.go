package workflow

import (
	"github.com/regdesk/catreport_backend/models"
)

// OrderRule is one (predicate, group) pair. Within a category rules are
// tried top to bottom and the first match wins; a category with no matching
// rule contributes no fact.
type OrderRule struct {
	Group string
	Match func(o *models.Order) bool
}

type OrderCategory struct {
	Name  string
	Rules []OrderRule
}

func (c OrderCategory) Evaluate(o *models.Order) (string, bool) {
	for _, rule := range c.Rules {
		if rule.Match(o) {
			return rule.Group, true
		}
	}
	return "", false
}

func isSellVariant(side string) bool {
	switch side {
	case models.OrderSideSell, models.OrderSideSellShort, models.OrderSideSellShortExempt:
		return true
	}
	return false
}

// OrderCategories is the ordered rule table for order records. The order of
// rules inside each category is the tie-break contract; do not reorder
// without a rule-set version bump.
var OrderCategories = []OrderCategory{
	{
		Name: models.ClassificationOrderCapacityDerived,
		Rules: []OrderRule{
			{Group: "Agency", Match: func(o *models.Order) bool { return o.Capacity == models.CapacityAgency }},
			{Group: "Riskless Principal", Match: func(o *models.Order) bool { return o.Capacity == models.CapacityRisklessPrincipal }},
			{Group: "Principal", Match: func(o *models.Order) bool { return o.Capacity == models.CapacityPrincipal }},
		},
	},
	{
		Name: models.ClassificationFlowTypeDerived,
		Rules: []OrderRule{
			{Group: "Routed", Match: func(o *models.Order) bool {
				return o.Destination != "" && o.ActionType == models.ActionTypeExternalRouteAccepted
			}},
			{Group: "Received", Match: func(o *models.Order) bool {
				return o.SourceSystem != "" && o.OriginationSystem != "" && o.SourceSystem != o.OriginationSystem
			}},
			{Group: "House", Match: func(o *models.Order) bool {
				return o.SourceSystem != "" && o.SourceSystem == o.OriginationSystem
			}},
		},
	},
	{
		Name: models.ClassificationOrderStatus,
		Rules: []OrderRule{
			{Group: "New", Match: func(o *models.Order) bool { return o.ActionType == models.ActionTypeNewOrder }},
			{Group: "Accepted", Match: func(o *models.Order) bool {
				switch o.ActionType {
				case models.ActionTypeOrderAccepted, models.ActionTypeInternalRouteAccepted, models.ActionTypeExternalRouteAccepted:
					return true
				}
				return false
			}},
			{Group: "Modified", Match: func(o *models.Order) bool { return o.ActionType == models.ActionTypeOrderModified }},
			{Group: "Canceled", Match: func(o *models.Order) bool { return o.ActionType == models.ActionTypeOrderCanceled }},
			{Group: "Executed", Match: func(o *models.Order) bool { return o.ActionType == models.ActionTypeOrderExecuted }},
		},
	},
	{
		Name: models.ClassificationOrderAction,
		Rules: []OrderRule{
			{Group: "Route", Match: func(o *models.Order) bool {
				switch o.ActionType {
				case models.ActionTypeInternalRouteAccepted, models.ActionTypeInternalRouteAcknowledged, models.ActionTypeExternalRouteAccepted:
					return true
				}
				return false
			}},
			{Group: "Cancel", Match: func(o *models.Order) bool { return o.ActionType == models.ActionTypeOrderCanceled }},
			{Group: "Modify", Match: func(o *models.Order) bool { return o.ActionType == models.ActionTypeOrderModified }},
			{Group: "Originate", Match: func(o *models.Order) bool {
				return o.ActionType == models.ActionTypeNewOrder || o.ActionType == models.ActionTypeOrderAccepted
			}},
		},
	},
	{
		Name: models.ClassificationOrderEdge,
		Rules: []OrderRule{
			{Group: "Client Facing", Match: func(o *models.Order) bool {
				return o.Capacity == models.CapacityAgency && o.SourceSystem != "" && o.SourceSystem == o.OriginationSystem
			}},
			{Group: "Market Facing", Match: func(o *models.Order) bool {
				return o.Destination != "" && o.ActionType == models.ActionTypeExternalRouteAccepted
			}},
			{Group: "Principal", Match: func(o *models.Order) bool {
				return o.Capacity == models.CapacityPrincipal && o.SourceSystem != "" && o.SourceSystem == o.OriginationSystem
			}},
			{Group: "Aggregated", Match: func(o *models.Order) bool {
				return o.LinkedOrderType == models.LinkedOrderTypeAggregated
			}},
			{Group: "Information Barrier", Match: func(o *models.Order) bool {
				return o.ActionType == models.ActionTypeInternalRouteAcknowledged && o.InfoBarrierId != ""
			}},
			// Catch-all: every order record gets an edge.
			{Group: "Internal", Match: func(o *models.Order) bool { return true }},
		},
	},
	{
		Name: models.ClassificationArrivalMarketability,
		Rules: []OrderRule{
			{Group: "Marketable", Match: func(o *models.Order) bool {
				if o.OrderType == models.OrderTypeMarket {
					return true
				}
				if o.OrderType != models.OrderTypeLimit || o.Price == nil {
					return false
				}
				if isSellVariant(o.Side) && o.BidPrice != nil {
					return o.Price.LessThanOrEqual(*o.BidPrice)
				}
				if o.Side == models.OrderSideBuy && o.AskPrice != nil {
					return o.Price.GreaterThanOrEqual(*o.AskPrice)
				}
				return false
			}},
			{Group: "Non-Marketable", Match: func(o *models.Order) bool { return o.OrderType != "" }},
		},
	},
}
