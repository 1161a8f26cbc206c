// Package revenue computes brokerage fees and formats money for outbound mail and reports.
package revenue

import (
	"errors"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// FeeRate is the brokerage fee charged on a placed contract's value.
const FeeRate = 0.03

var ErrNoValue = errors.New("contract has no value")

var printer = message.NewPrinter(language.AmericanEnglish)

// Fee returns the brokerage fee for a contract value.
func Fee(value *float64) (float64, error) {
	if value == nil {
		return 0, ErrNoValue
	}
	return *value * FeeRate, nil
}

// FormatUSD renders an amount like $1,200,000.00.
func FormatUSD(v float64) string {
	if v < 0 {
		return "-" + FormatUSD(-v)
	}
	return printer.Sprintf("$%v", number.Decimal(v, number.Scale(2)))
}

// FormatValue renders an optional contract value, or TBD when it is unknown or zero.
func FormatValue(v *float64) string {
	if v == nil || *v == 0 {
		return "TBD"
	}
	return FormatUSD(*v)
}
