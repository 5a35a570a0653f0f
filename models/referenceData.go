package models

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Reference data tables consulted by Stage 3. Maintained externally;
// read-only to the pipeline.

type BrokerDealer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	IMID      string    `gorm:"column:imid;size:20;uniqueIndex;not null" json:"imid"`
	Name      string    `gorm:"size:255" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type InstrumentMaster struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Symbol    string    `gorm:"size:20;uniqueIndex;not null" json:"symbol"`
	Name      string    `gorm:"size:255" json:"name"`
	Exchange  string    `gorm:"size:20" json:"exchange"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type AccountMapping struct {
	ID               int       `gorm:"primary_key" json:"id"`
	FirmDesignatedId string    `gorm:"size:40;uniqueIndex;not null" json:"firm_designated_id"`
	AccountNumber    string    `gorm:"size:40" json:"account_number"`
	AccountType      string    `gorm:"size:30" json:"account_type"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type DestinationCode struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Code        string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Reference table names as the Stage-3 condition configuration addresses
// them. The whitelist below is the only way a condition reaches a table.
const (
	RefTableBrokerDealers    = "broker_dealers"
	RefTableInstrumentMaster = "instrument_masters"
	RefTableAccountMappings  = "account_mappings"
	RefTableDestinationCodes = "destination_codes"
)

type refLookup struct {
	model   any
	columns map[string]bool
}

var refLookups = map[string]refLookup{
	RefTableBrokerDealers:    {model: &BrokerDealer{}, columns: map[string]bool{"imid": true}},
	RefTableInstrumentMaster: {model: &InstrumentMaster{}, columns: map[string]bool{"symbol": true}},
	RefTableAccountMappings:  {model: &AccountMapping{}, columns: map[string]bool{"firm_designated_id": true, "account_number": true}},
	RefTableDestinationCodes: {model: &DestinationCode{}, columns: map[string]bool{"code": true}},
}

// ValidateReferenceTarget reports whether a condition's table/column pair is
// on the lookup whitelist. Used by the pipeline and by the offline condition
// generator.
func ValidateReferenceTarget(table string, column string) error {
	lookup, ok := refLookups[table]
	if !ok {
		return fmt.Errorf("unknown reference table %q", table)
	}
	if !lookup.columns[column] {
		return fmt.Errorf("unknown column %q for reference table %q", column, table)
	}
	return nil
}

// ReferenceExists answers one Stage-3 lookup-and-compare predicate. Table and
// column names go through a whitelist; a condition naming anything else is a
// configuration fault, not a row error.
func ReferenceExists(ctx context.Context, db *gorm.DB, table string, column string, value string) (bool, error) {
	if err := ValidateReferenceTarget(table, column); err != nil {
		return false, err
	}
	lookup := refLookups[table]
	var count int64
	err := db.WithContext(ctx).
		Model(lookup.model).
		Where(fmt.Sprintf("%s = ?", column), value).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
