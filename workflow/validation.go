// Package workflow holds the pipeline engines: the three stage validators,
// the classification engine, the CAT event deriver and the poller scaffold
// that drives them.
package workflow

import (
	"fmt"
	"strings"

	"github.com/regdesk/catreport_backend/models"
)

// record is the field-addressable view the validators share across orders
// and executions.
type record interface {
	FieldValue(name string) string
	SetEnumField(name string, value string)
}

// Enum-bearing fields checked by Stage 1, per file type.
var orderEnumFields = []*models.EnumValueSet{
	models.EnumOrderSide,
	models.EnumOrderType,
	models.EnumCapacity,
	models.EnumActionType,
	models.EnumTimeInForce,
	models.EnumAccountHolderType,
	models.EnumLinkedOrderType,
}

var executionEnumFields = []*models.EnumValueSet{
	models.EnumExecutionSide,
	models.EnumExecutionCapacity,
}

func newRowError(fileType models.FileType, index int, recordId string, message string) models.RowError {
	e := models.RowError{Index: index, Error: message}
	if fileType == models.FileTypeOrders {
		e.OrderId = recordId
	} else {
		e.ExecutionId = recordId
	}
	return e
}

func enumErrorMessage(set *models.EnumValueSet, raw string) string {
	return fmt.Sprintf("invalid value %q for field %s; accepted values: %s",
		raw, set.Field, strings.Join(set.Values, ", "))
}

// checkEnumFields validates and canonicalizes a record's enum fields.
// Returns the error messages and whether any column was rewritten.
func checkEnumFields(rec record, sets []*models.EnumValueSet) (messages []string, changed bool) {
	for _, set := range sets {
		raw := rec.FieldValue(set.Field)
		if raw == "" {
			continue
		}
		canon, ok := set.Canonical(raw)
		if !ok {
			messages = append(messages, enumErrorMessage(set, raw))
			continue
		}
		if canon != raw {
			rec.SetEnumField(set.Field, canon)
			changed = true
		}
	}
	return messages, changed
}

// checkFieldSchema applies the firm's Stage-1 field-level conditions.
func checkFieldSchema(rec record, schema models.FieldSchemaList) (messages []string) {
	for _, fs := range schema {
		value := rec.FieldValue(fs.Field)
		if fs.Required && value == "" {
			messages = append(messages, fmt.Sprintf("field %s is required", fs.Field))
			continue
		}
		if value == "" || len(fs.AllowedValues) == 0 {
			continue
		}
		allowed := false
		for _, v := range fs.AllowedValues {
			if strings.EqualFold(v, value) {
				allowed = true
				break
			}
		}
		if !allowed {
			messages = append(messages, fmt.Sprintf("value %q for field %s is not allowed; allowed values: %s",
				value, fs.Field, strings.Join(fs.AllowedValues, ", ")))
		}
	}
	return messages
}

// evaluateCrossFieldRule applies one Stage-2 rule to a record. Returns a row
// error message, or "" when the rule holds.
func evaluateCrossFieldRule(rule models.CrossFieldRule, rec record) string {
	if rec.FieldValue(rule.WhenField) != rule.WhenEquals {
		return ""
	}
	value := rec.FieldValue(rule.Field)
	switch rule.Kind {
	case models.RuleKindRequiredIf:
		if value == "" {
			return fmt.Sprintf("field %s is required when %s = %q", rule.Field, rule.WhenField, rule.WhenEquals)
		}
	case models.RuleKindForbiddenIf:
		if value != "" {
			return fmt.Sprintf("field %s must be empty when %s = %q", rule.Field, rule.WhenField, rule.WhenEquals)
		}
	case models.RuleKindEqualsIf:
		if value != rule.ExpectedValue {
			return fmt.Sprintf("field %s must equal %q when %s = %q", rule.Field, rule.ExpectedValue, rule.WhenField, rule.WhenEquals)
		}
	}
	return ""
}
