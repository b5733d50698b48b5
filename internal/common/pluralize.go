package common

import "fmt"

// Pluralize returns singular for |n| == 1 and plural otherwise.
//
// Examples:
//
//	Pluralize(1, "ticket", "tickets")  → "ticket"
//	Pluralize(0, "ticket", "tickets")  → "tickets"
//	Pluralize(-1, "ticket", "tickets") → "ticket"
func Pluralize(n int64, singular, plural string) string {
	if n == 1 || n == -1 {
		return singular
	}
	return plural
}

// FormatTickets renders a ticket count, e.g. "3 tickets".
func FormatTickets(n int64) string {
	return fmt.Sprintf("%d %s", n, Pluralize(n, "ticket", "tickets"))
}
