package common

import "fmt"

// FormatCents renders minor units as euros: FormatCents(123456) → "1.234,56 €".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s,%02d €", sign, FormatNumber(cents/100), cents%100)
}

// FormatSignedCents renders "+5,00 €" or "-1,50 €".
//
// Examples:
//
//	FormatSignedCents(500)  → "+5,00 €"
//	FormatSignedCents(-150) → "-1,50 €"
func FormatSignedCents(amount int64) string {
	if amount >= 0 {
		return "+" + FormatCents(amount)
	}
	return FormatCents(amount)
}

// FormatNumber groups thousands with dots: FormatNumber(2350) → "2.350".
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	rest := n / 1000
	last := n % 1000
	return fmt.Sprintf("%s.%03d", FormatNumber(rest), last)
}
