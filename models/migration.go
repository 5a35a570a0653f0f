package models

import (
	"log"

	"github.com/regdesk/catreport_backend/config"
	"gorm.io/gorm"
)

// AutoMigrateAll migrates every pipeline table on the given connection.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&Batch{},
		&Order{}, &Execution{},
		&OrderBusinessClassification{}, &ExecutionBusinessClassification{},
		&OrderCatEvent{},
		&ValidationSchema{}, &ValidationSchemaHistory{},
		&BrokerDealer{}, &InstrumentMaster{}, &AccountMapping{}, &DestinationCode{},
	)
}

func MigrateTable() {
	if err := AutoMigrateAll(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}
