package notification

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// FormatMoney renders v grouped by the locale's rules and prefixed with the
// locale's currency symbol, e.g. "R$ 1.234,50" for pt-BR/BRL. Decimals follow
// the currency (none for JPY). Unknown locales fall back to English; codes
// that are not ISO 4217 are printed as given with two decimals.
func FormatMoney(v decimal.Decimal, code, locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)

	code = strings.ToUpper(strings.TrimSpace(code))
	if unit, err := currency.ParseISO(code); err == nil {
		return p.Sprint(currency.Symbol(unit.Amount(v.InexactFloat64())))
	}

	amount := p.Sprint(number.Decimal(v.Round(2).InexactFloat64(), number.Scale(2)))
	if code == "" {
		return amount
	}
	return code + " " + amount
}
