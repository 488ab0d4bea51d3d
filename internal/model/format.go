package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatValue renders v with a fixed number of decimal places and an
// optional unit suffix, e.g. FormatValue(1234.5, 2, "€") == "1234.50 €".
func FormatValue(v float64, places int32, suffix string) string {
	s := decimal.NewFromFloat(v).StringFixed(places)
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return s
	}
	return s + " " + suffix
}
