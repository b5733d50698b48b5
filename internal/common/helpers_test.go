package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("  abc  ", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "ñá", Truncate("ñáé", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}
