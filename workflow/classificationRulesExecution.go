package workflow

import (
	"github.com/regdesk/catreport_backend/models"
)

type ExecutionRule struct {
	Group string
	Match func(e *models.Execution) bool
}

type ExecutionCategory struct {
	Name  string
	Rules []ExecutionRule
}

func (c ExecutionCategory) Evaluate(e *models.Execution) (string, bool) {
	for _, rule := range c.Rules {
		if rule.Match(e) {
			return rule.Group, true
		}
	}
	return "", false
}

var ExecutionCategories = []ExecutionCategory{
	{
		Name: models.ClassificationExecutionCapacity,
		Rules: []ExecutionRule{
			{Group: "Agency", Match: func(e *models.Execution) bool { return e.Capacity == models.CapacityAgency }},
			{Group: "Riskless Principal", Match: func(e *models.Execution) bool { return e.Capacity == models.CapacityRisklessPrincipal }},
			{Group: "Principal", Match: func(e *models.Execution) bool { return e.Capacity == models.CapacityPrincipal }},
		},
	},
}
