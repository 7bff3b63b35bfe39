// Package reports builds the financial statements shown in the back office.
// The Build functions are pure: they aggregate rows fetched elsewhere and
// carry no storage or transport concerns.
package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nileharvest/backoffice/internal/ledger"
)

// Line is one labelled amount within a statement section.
type Line struct {
	Label     string          `json:"label"`
	Amount    decimal.Decimal `json:"amount"`
	Formatted string          `json:"formatted"`
}

// Section groups lines under a heading with a total.
type Section struct {
	Label          string          `json:"label"`
	Lines          []Line          `json:"lines"`
	Total          decimal.Decimal `json:"total"`
	TotalFormatted string          `json:"total_formatted"`
}

func (s *Section) add(label string, amount decimal.Decimal) {
	s.Lines = append(s.Lines, Line{Label: label, Amount: amount, Formatted: FormatUGX(amount)})
	s.Total = s.Total.Add(amount)
}

func (s *Section) finish() {
	sort.Slice(s.Lines, func(i, j int) bool { return s.Lines[i].Label < s.Lines[j].Label })
	s.TotalFormatted = FormatUGX(s.Total)
}

// IncomeStatement summarises cash income against spend over a period.
type IncomeStatement struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Income       Section         `json:"income"`
	Expenses     Section         `json:"expenses"`
	Net          decimal.Decimal `json:"net"`
	NetFormatted string          `json:"net_formatted"`
}

// BuildIncomeStatement aggregates ledger inflows and categorised spend.
// Deposits and advance recoveries count as income; expense categories come
// from the expense records, salaries and supplier payments from the ledger.
func BuildIncomeStatement(from, to time.Time, transactions []ledger.Transaction, expensesByCategory map[string]decimal.Decimal) IncomeStatement {
	income := Section{Label: "Income"}
	spend := Section{Label: "Expenses"}

	deposits, recoveries := decimal.Zero, decimal.Zero
	salaries, payments := decimal.Zero, decimal.Zero
	for _, tx := range transactions {
		switch tx.TransactionType {
		case ledger.TypeDeposit:
			deposits = deposits.Add(tx.Amount)
		case ledger.TypeRecovery:
			recoveries = recoveries.Add(tx.Amount)
		case ledger.TypeSalary:
			salaries = salaries.Add(tx.Amount)
		case ledger.TypePayment:
			payments = payments.Add(tx.Amount)
		}
	}
	if deposits.IsPositive() {
		income.add("Deposits", deposits)
	}
	if recoveries.IsPositive() {
		income.add("Advance Recoveries", recoveries)
	}
	for category, total := range expensesByCategory {
		spend.add(category, total)
	}
	if salaries.IsPositive() {
		spend.add("Salaries", salaries)
	}
	if payments.IsPositive() {
		spend.add("Supplier & Farmer Payments", payments)
	}
	income.finish()
	spend.finish()

	net := income.Total.Sub(spend.Total)
	return IncomeStatement{
		From:         from,
		To:           to,
		Income:       income,
		Expenses:     spend,
		Net:          net,
		NetFormatted: FormatUGX(net),
	}
}

// BalanceSheet is the point-in-time position of the cash operation.
type BalanceSheet struct {
	AsOf           time.Time       `json:"as_of"`
	Assets         Section         `json:"assets"`
	Equity         Section         `json:"equity"`
	TotalAssets    decimal.Decimal `json:"total_assets"`
	TotalFormatted string          `json:"total_formatted"`
}

// BuildBalanceSheet lays out cash and receivables against the equity that
// balances them. The operation carries no tracked liabilities.
func BuildBalanceSheet(asOf time.Time, cash, outstandingAdvances decimal.Decimal) BalanceSheet {
	assets := Section{Label: "Assets"}
	assets.add("Cash on Hand", cash)
	if outstandingAdvances.IsPositive() {
		assets.add("Staff Advances Receivable", outstandingAdvances)
	}
	assets.finish()

	equity := Section{Label: "Equity"}
	equity.add("Retained Funds", assets.Total)
	equity.finish()

	return BalanceSheet{
		AsOf:           asOf,
		Assets:         assets,
		Equity:         equity,
		TotalAssets:    assets.Total,
		TotalFormatted: FormatUGX(assets.Total),
	}
}

// DailyCashStatement reconciles one day of cash movement.
type DailyCashStatement struct {
	Date             time.Time                  `json:"date"`
	Opening          decimal.Decimal            `json:"opening"`
	Inflows          decimal.Decimal            `json:"inflows"`
	Outflows         decimal.Decimal            `json:"outflows"`
	Closing          decimal.Decimal            `json:"closing"`
	ClosingFormatted string                     `json:"closing_formatted"`
	ByType           map[string]decimal.Decimal `json:"by_type"`
	EntryCount       int                        `json:"entry_count"`
}

// BuildDailyCashStatement folds one day's transactions over the opening
// balance. Closing always equals opening plus the signed movement, whatever
// the stored balance says.
func BuildDailyCashStatement(date time.Time, opening decimal.Decimal, transactions []ledger.Transaction) DailyCashStatement {
	inflows, outflows := decimal.Zero, decimal.Zero
	byType := map[string]decimal.Decimal{}
	for _, tx := range transactions {
		if tx.TransactionType.Outflow() {
			outflows = outflows.Add(tx.Amount)
		} else {
			inflows = inflows.Add(tx.Amount)
		}
		key := string(tx.TransactionType)
		byType[key] = byType[key].Add(tx.Amount)
	}
	closing := opening.Add(inflows).Sub(outflows)
	return DailyCashStatement{
		Date:             date,
		Opening:          opening,
		Inflows:          inflows,
		Outflows:         outflows,
		Closing:          closing,
		ClosingFormatted: FormatUGX(closing),
		ByType:           byType,
		EntryCount:       len(transactions),
	}
}
