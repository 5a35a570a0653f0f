package main

import (
	"flag"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/regdesk/catreport_backend/config"
	"github.com/regdesk/catreport_backend/models"
	"github.com/regdesk/catreport_backend/utils"
)

// Seeds the Stage-3 reference tables for dev and demo environments. Existing
// rows are left alone, so the tool is safe to re-run.

var brokerDealers = []models.BrokerDealer{
	{IMID: "FIRM", Name: "Reporting Firm", IsActive: utils.NewTrue()},
	{IMID: "GSCO", Name: "Goldman Sachs & Co.", IsActive: utils.NewTrue()},
	{IMID: "MSCO", Name: "Morgan Stanley & Co.", IsActive: utils.NewTrue()},
	{IMID: "JPMS", Name: "J.P. Morgan Securities", IsActive: utils.NewTrue()},
}

var instruments = []models.InstrumentMaster{
	{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ"},
	{Symbol: "MSFT", Name: "Microsoft Corporation", Exchange: "NASDAQ"},
	{Symbol: "IBM", Name: "International Business Machines", Exchange: "NYSE"},
	{Symbol: "SPY", Name: "SPDR S&P 500 ETF Trust", Exchange: "NYSEARCA"},
}

var accountMappings = []models.AccountMapping{
	{FirmDesignatedId: "FDID-1001", AccountNumber: "ACC-1001", AccountType: "Individual"},
	{FirmDesignatedId: "FDID-1002", AccountNumber: "ACC-1002", AccountType: "Institutional"},
	{FirmDesignatedId: "FDID-2001", AccountNumber: "ACC-2001", AccountType: "Proprietary"},
}

var destinationCodes = []models.DestinationCode{
	{Code: "NYSE", Description: "New York Stock Exchange"},
	{Code: "NSDQ", Description: "Nasdaq Stock Market"},
	{Code: "ARCA", Description: "NYSE Arca"},
	{Code: "EDGX", Description: "Cboe EDGX Exchange"},
}

func seed[T any](db *gorm.DB, rows []T, where func(row *T) *gorm.DB) (int, error) {
	created := 0
	for i := range rows {
		result := where(&rows[i]).FirstOrCreate(&rows[i])
		if result.Error != nil {
			return created, result.Error
		}
		if result.RowsAffected > 0 {
			created++
		}
	}
	return created, nil
}

func main() {
	migrate := flag.Bool("migrate", true, "Run AutoMigrate before seeding")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
	}

	n, err := seed(db, brokerDealers, func(row *models.BrokerDealer) *gorm.DB {
		return db.Where("imid = ?", row.IMID)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed broker dealers: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("broker_dealers: %d created\n", n)

	n, err = seed(db, instruments, func(row *models.InstrumentMaster) *gorm.DB {
		return db.Where("symbol = ?", row.Symbol)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed instruments: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("instrument_masters: %d created\n", n)

	n, err = seed(db, accountMappings, func(row *models.AccountMapping) *gorm.DB {
		return db.Where("firm_designated_id = ?", row.FirmDesignatedId)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed account mappings: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("account_mappings: %d created\n", n)

	n, err = seed(db, destinationCodes, func(row *models.DestinationCode) *gorm.DB {
		return db.Where("code = ?", row.Code)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed destination codes: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("destination_codes: %d created\n", n)
}
