package finance

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders amount in the currency's own notation, e.g. "$1,234.50".
// Unknown currency codes fall back to "1234.50 XYZ".
func FormatMoney(amount float64, currency string) string {
	code := strings.ToUpper(currency)
	if !isFinite(amount) {
		return "n/a"
	}
	cur := money.GetCurrency(code)
	if cur == nil {
		return fmt.Sprintf("%.2f %s", amount, code)
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0)
	return money.New(minor.IntPart(), code).Display()
}

// FormatSignedMoney is FormatMoney with an explicit "+" on gains.
func FormatSignedMoney(amount float64, currency string) string {
	s := FormatMoney(amount, currency)
	if amount > 0 && isFinite(amount) {
		return "+" + s
	}
	return s
}
