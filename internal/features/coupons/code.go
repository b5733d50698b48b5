package coupons

import (
	"crypto/rand"
	"strings"

	"github.com/shopspring/decimal"
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NormalizeCode uppercases a code and drops everything outside [A-Z0-9_-].
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range code {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildCode returns PREFIX-XXXX-XXXX with eight random base-36 characters.
func BuildCode(prefix string) string {
	prefix = NormalizeCode(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	if len(prefix) > maxPrefixLen {
		prefix = prefix[:maxPrefixLen]
	}
	suffix := randomBase36(8)
	return prefix + "-" + suffix[:4] + "-" + suffix[4:]
}

// randomBase36 draws n uniform characters, rejecting bytes that would bias the modulo.
func randomBase36(n int) string {
	const limit = 252 // largest multiple of 36 below 256
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic("coupons: crypto/rand unavailable: " + err.Error())
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

// ComputeDiscount prices a coupon against a subtotal in cents. The result is
// never negative and never larger than the subtotal.
func ComputeDiscount(c *Coupon, subtotalCents int64) int64 {
	if c == nil || subtotalCents <= 0 {
		return 0
	}

	switch c.Type {
	case TypeFixed:
		if c.Value <= 0 {
			return 0
		}
		return min(c.Value, subtotalCents)
	case TypeFreeOrder:
		return subtotalCents
	default:
		percent := max(0, min(100, c.Value))
		discount := decimal.NewFromInt(subtotalCents).
			Mul(decimal.NewFromInt(percent)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		return min(discount, subtotalCents)
	}
}
