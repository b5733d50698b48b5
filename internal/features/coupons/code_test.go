package coupons

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SUMMER-20", NormalizeCode("  summer-20 "))
	assert.Equal(t, "AB_CD", NormalizeCode("a b$_c.d"))
	assert.Equal(t, "", NormalizeCode("€€€"))
}

func TestBuildCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9_-]+-[0-9A-Z]{4}-[0-9A-Z]{4}$`)

	code := BuildCode("myst")
	assert.Regexp(t, `^MYST-[0-9A-Z]{4}-[0-9A-Z]{4}$`, code)

	assert.Regexp(t, `^AR-`, BuildCode(""))
	assert.Regexp(t, `^AR-`, BuildCode("!!"))
	assert.Regexp(t, `^ABCDEFGHIJKL-`, BuildCode("abcdefghijklmnop"))

	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		c := BuildCode("T")
		assert.Regexp(t, pattern, c)
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name     string
		coupon   Coupon
		subtotal int64
		want     int64
	}{
		{"percent", Coupon{Type: TypePercent, Value: 20}, 1000, 200},
		{"percent rounds half up", Coupon{Type: TypePercent, Value: 15}, 1003, 150},
		{"percent half cent", Coupon{Type: TypePercent, Value: 50}, 3, 2},
		{"percent above 100 clamps", Coupon{Type: TypePercent, Value: 150}, 800, 800},
		{"fixed below subtotal", Coupon{Type: TypeFixed, Value: 250}, 1000, 250},
		{"fixed capped at subtotal", Coupon{Type: TypeFixed, Value: 500}, 300, 300},
		{"free order", Coupon{Type: TypeFreeOrder}, 4599, 4599},
		{"zero subtotal", Coupon{Type: TypePercent, Value: 20}, 0, 0},
		{"negative subtotal", Coupon{Type: TypeFixed, Value: 20}, -10, 0},
		{"zero value", Coupon{Type: TypeFixed}, 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeDiscount(&tt.coupon, tt.subtotal))
		})
	}
	assert.Zero(t, ComputeDiscount(nil, 100))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"fixed", TypeFixed, true},
		{" Percent ", TypePercent, true},
		{"FREE_ORDER", TypeFreeOrder, true},
		{"bogus", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseType(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}
