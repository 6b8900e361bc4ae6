package finance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", FormatMoney(1234.5, "usd"))
	assert.Equal(t, "$0.01", FormatMoney(0.005, "USD"))
	assert.Equal(t, "-$10.00", FormatMoney(-10, "usd"))
	assert.Equal(t, "12.30 XYZ", FormatMoney(12.3, "xyz"))
	assert.Equal(t, "n/a", FormatMoney(math.Inf(1), "usd"))
}

func TestFormatSignedMoney(t *testing.T) {
	assert.Equal(t, "+$5.00", FormatSignedMoney(5, "usd"))
	assert.Equal(t, "-$5.00", FormatSignedMoney(-5, "usd"))
	assert.Equal(t, "$0.00", FormatSignedMoney(0, "usd"))
}
