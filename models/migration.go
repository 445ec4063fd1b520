package models

import (
	"log"

	"github.com/zaraisoft/farmbooks_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Tenant{}, &Account{}, &Party{}, &Project{}, &CropCycle{},
		&PostingGroup{}, &LedgerEntry{}, &AllocationRow{},
		&ShareRule{}, &ShareRuleLine{},
		&Settlement{}, &SettlementLine{},
		&PeriodCloseRun{}, &AccountingCorrection{},
		&Expense{}, &Sale{}, &MachineryService{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
