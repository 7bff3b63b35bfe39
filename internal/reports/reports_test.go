package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nileharvest/backoffice/internal/ledger"
)

func tx(t ledger.TransactionType, amount int64) ledger.Transaction {
	return ledger.Transaction{TransactionType: t, Amount: decimal.NewFromInt(amount)}
}

func TestBuildIncomeStatement(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	transactions := []ledger.Transaction{
		tx(ledger.TypeDeposit, 500000),
		tx(ledger.TypeDeposit, 250000),
		tx(ledger.TypeRecovery, 30000),
		tx(ledger.TypeSalary, 120000),
		tx(ledger.TypePayment, 200000),
		tx(ledger.TypeExpense, 45000), // categorised via expense records instead
	}
	byCategory := map[string]decimal.Decimal{
		"Expense Request": decimal.NewFromInt(45000),
	}

	statement := BuildIncomeStatement(from, to, transactions, byCategory)

	require.True(t, statement.Income.Total.Equal(decimal.NewFromInt(780000)))
	require.True(t, statement.Expenses.Total.Equal(decimal.NewFromInt(365000)))
	require.True(t, statement.Net.Equal(decimal.NewFromInt(415000)))
	require.Equal(t, "UGX 415,000", statement.NetFormatted)
	require.Len(t, statement.Income.Lines, 2)
	require.Len(t, statement.Expenses.Lines, 3)
}

func TestBuildBalanceSheetBalances(t *testing.T) {
	sheet := BuildBalanceSheet(time.Now(), decimal.NewFromInt(900000), decimal.NewFromInt(40000))

	require.True(t, sheet.TotalAssets.Equal(decimal.NewFromInt(940000)))
	require.True(t, sheet.Equity.Total.Equal(sheet.Assets.Total))
	require.Equal(t, "UGX 940,000", sheet.TotalFormatted)
}

func TestBuildDailyCashStatement(t *testing.T) {
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	transactions := []ledger.Transaction{
		tx(ledger.TypeDeposit, 100000),
		tx(ledger.TypeExpense, 25000),
		tx(ledger.TypeWithdrawal, 10000),
	}

	statement := BuildDailyCashStatement(date, decimal.NewFromInt(50000), transactions)

	require.True(t, statement.Inflows.Equal(decimal.NewFromInt(100000)))
	require.True(t, statement.Outflows.Equal(decimal.NewFromInt(35000)))
	require.True(t, statement.Closing.Equal(decimal.NewFromInt(115000)))
	require.Equal(t, 3, statement.EntryCount)
	require.True(t, statement.ByType["deposit"].Equal(decimal.NewFromInt(100000)))
}

func TestBuildDailyCashStatementEmptyDay(t *testing.T) {
	statement := BuildDailyCashStatement(time.Now(), decimal.NewFromInt(77000), nil)

	require.True(t, statement.Closing.Equal(decimal.NewFromInt(77000)))
	require.Equal(t, 0, statement.EntryCount)
	require.True(t, statement.Inflows.IsZero())
}

func TestFormatUGX(t *testing.T) {
	require.Equal(t, "UGX 0", FormatUGX(decimal.Zero))
	require.Equal(t, "UGX 1,250,000", FormatUGX(decimal.NewFromInt(1250000)))
	require.Equal(t, "UGX -45,000", FormatUGX(decimal.NewFromInt(-45000)))
}
