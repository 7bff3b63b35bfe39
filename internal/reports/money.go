package reports

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var ugxPrinter = message.NewPrinter(language.English)

// FormatUGX renders an amount as a grouped Ugandan shilling string, for
// example "UGX 1,250,000". Shillings carry no minor unit.
func FormatUGX(amount decimal.Decimal) string {
	return ugxPrinter.Sprintf("UGX %v", number.Decimal(amount.Round(0).InexactFloat64(), number.MaxFractionDigits(0)))
}
