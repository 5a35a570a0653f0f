package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// FieldSchema is one Stage-1 field-level condition of a firm's schema.
type FieldSchema struct {
	Field         string   `json:"field" binding:"required"`
	Required      bool     `json:"required"`
	AllowedValues []string `json:"allowed_values,omitempty"`
}

// Cross-field rule kinds for Stage 2.
const (
	RuleKindRequiredIf  = "requiredIf"
	RuleKindForbiddenIf = "forbiddenIf"
	RuleKindEqualsIf    = "equalsIf"
)

// CrossFieldRule is one Stage-2 rule: when WhenField equals WhenEquals, the
// subject Field must be present (requiredIf), absent (forbiddenIf), or equal
// to ExpectedValue (equalsIf).
type CrossFieldRule struct {
	Kind          string `json:"kind" binding:"required,rulekind"`
	Field         string `json:"field" binding:"required"`
	WhenField     string `json:"when_field" binding:"required"`
	WhenEquals    string `json:"when_equals"`
	ExpectedValue string `json:"expected_value,omitempty"`
}

// FieldCondition is one Stage-3 lookup predicate: the field's value must
// exist in RefColumn of RefTable. Generated offline from the markdown
// condition specification (cmd/condition-table-gen).
type FieldCondition struct {
	Field     string `json:"field" binding:"required"`
	RefTable  string `json:"ref_table" binding:"required"`
	RefColumn string `json:"ref_column" binding:"required"`
}

type FieldSchemaList []FieldSchema
type CrossFieldRuleList []CrossFieldRule
type FieldConditionList []FieldCondition

func jsonValue(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func jsonScan(value interface{}, dest any) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported type %T for json column", value)
	}
}

func (l FieldSchemaList) Value() (driver.Value, error)  { return jsonValue([]FieldSchema(l)) }
func (l *FieldSchemaList) Scan(value interface{}) error { return jsonScan(value, (*[]FieldSchema)(l)) }

func (l CrossFieldRuleList) Value() (driver.Value, error) { return jsonValue([]CrossFieldRule(l)) }
func (l *CrossFieldRuleList) Scan(value interface{}) error {
	return jsonScan(value, (*[]CrossFieldRule)(l))
}

func (l FieldConditionList) Value() (driver.Value, error) { return jsonValue([]FieldCondition(l)) }
func (l *FieldConditionList) Scan(value interface{}) error {
	return jsonScan(value, (*[]FieldCondition)(l))
}

// ValidationSchema is a firm's active rule configuration for one file type.
// The pipeline always reads the current row; history exists solely for
// audit/restore.
type ValidationSchema struct {
	ID               int                `gorm:"primary_key" json:"id"`
	FirmId           string             `gorm:"size:64;not null;index:uniq_firm_filetype,unique" json:"firm_id"`
	FileType         FileType           `gorm:"size:20;not null;index:uniq_firm_filetype,unique" json:"file_type"`
	Stage1Schema     FieldSchemaList    `gorm:"type:json" json:"stage1_schema"`
	Stage2Rules      CrossFieldRuleList `gorm:"type:json" json:"stage2_rules"`
	Stage3Conditions FieldConditionList `gorm:"type:json" json:"stage3_conditions"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// ValidationSchemaHistory is an append-only snapshot written on every schema
// update. Never consulted during validation.
type ValidationSchemaHistory struct {
	ID               int                `gorm:"primary_key" json:"id"`
	SchemaId         int                `gorm:"index;not null" json:"schema_id"`
	FirmId           string             `gorm:"size:64;index;not null" json:"firm_id"`
	FileType         FileType           `gorm:"size:20;not null" json:"file_type"`
	Stage1Schema     FieldSchemaList    `gorm:"type:json" json:"stage1_schema"`
	Stage2Rules      CrossFieldRuleList `gorm:"type:json" json:"stage2_rules"`
	Stage3Conditions FieldConditionList `gorm:"type:json" json:"stage3_conditions"`
	UpdatedBy        string             `gorm:"size:100" json:"updated_by"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

// GetValidationSchema returns the firm's active schema for the file type, or
// nil when the firm has no configuration (validators then apply only the
// built-in enum vocabulary).
func GetValidationSchema(ctx context.Context, db *gorm.DB, firmId string, fileType FileType) (*ValidationSchema, error) {
	var schema ValidationSchema
	err := db.WithContext(ctx).
		Where("firm_id = ? AND file_type = ?", firmId, fileType).
		First(&schema).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

type NewValidationSchema struct {
	Stage1Schema     []FieldSchema    `json:"stage1_schema" binding:"omitempty,dive"`
	Stage2Rules      []CrossFieldRule `json:"stage2_rules" binding:"omitempty,dive"`
	Stage3Conditions []FieldCondition `json:"stage3_conditions" binding:"omitempty,dive"`
	UpdatedBy        string           `json:"updated_by"`
}

// UpsertValidationSchema replaces the firm's active schema and appends a
// history row, in one transaction.
func UpsertValidationSchema(ctx context.Context, db *gorm.DB, firmId string, fileType FileType, input *NewValidationSchema) (*ValidationSchema, error) {
	var schema *ValidationSchema
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := GetValidationSchema(ctx, tx, firmId, fileType)
		if err != nil {
			return err
		}
		if existing == nil {
			existing = &ValidationSchema{FirmId: firmId, FileType: fileType}
		}
		existing.Stage1Schema = FieldSchemaList(input.Stage1Schema)
		existing.Stage2Rules = CrossFieldRuleList(input.Stage2Rules)
		existing.Stage3Conditions = FieldConditionList(input.Stage3Conditions)
		if err := tx.Save(existing).Error; err != nil {
			return err
		}

		history := ValidationSchemaHistory{
			SchemaId:         existing.ID,
			FirmId:           firmId,
			FileType:         fileType,
			Stage1Schema:     existing.Stage1Schema,
			Stage2Rules:      existing.Stage2Rules,
			Stage3Conditions: existing.Stage3Conditions,
			UpdatedBy:        input.UpdatedBy,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}
		schema = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schema, nil
}
