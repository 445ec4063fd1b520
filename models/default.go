package models

import (
	"context"

	"gorm.io/gorm"
)

type defaultAccountDef struct {
	Code       string
	Name       string
	MainType   AccountMainType
	SystemCode string
}

// System chart of accounts seeded for every tenant. Party-control accounts
// are not part of this list; they are created lazily per party.
var defaultAccounts = []defaultAccountDef{
	{"1000", "Cash", AccountMainTypeAsset, SystemAccountCash},
	{"1100", "Accounts Receivable", AccountMainTypeAsset, SystemAccountAccountsReceivable},
	{"2100", "Accounts Payable", AccountMainTypeLiability, SystemAccountAccountsPayable},
	{"4000", "Crop Pool Income", AccountMainTypeIncome, SystemAccountPoolIncome},
	{"4100", "Machinery Services Income", AccountMainTypeIncome, SystemAccountMachineryIncome},
	{"5000", "Crop Pool Expenses", AccountMainTypeExpense, SystemAccountPoolExpense},
	{"5100", "Machinery Running Expenses", AccountMainTypeExpense, SystemAccountMachineryExpense},
	{"5200", "Land Lease Expense", AccountMainTypeExpense, SystemAccountLeaseExpense},
	{"5300", "Farm Labour Wages", AccountMainTypeExpense, SystemAccountPayrollExpense},
	{"3100", "Current Earnings", AccountMainTypeEquity, SystemAccountCurrentEarnings},
	{"3200", "Retained Earnings", AccountMainTypeEquity, SystemAccountRetainedEarnings},
	{"3300", "Profit Distribution Clearing", AccountMainTypeEquity, SystemAccountProfitDistributionClearing},
}

func CreateDefaultAccounts(tx *gorm.DB, ctx context.Context, tenantId string) ([]Account, error) {
	accounts := make([]Account, 0, len(defaultAccounts))
	for _, def := range defaultAccounts {
		accounts = append(accounts, Account{
			ID:         NewId(),
			TenantId:   tenantId,
			Code:       def.Code,
			Name:       def.Name,
			MainType:   def.MainType,
			IsActive:   newTrue(),
			IsSystem:   newTrue(),
			SystemCode: def.SystemCode,
		})
	}
	if err := tx.WithContext(ctx).Create(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
