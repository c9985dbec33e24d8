package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "USD 1,234.56", FormatMoney("USD", dec("1234.56")))
	assert.Equal(t, "EUR 0.00", FormatMoney("eur", dec("0")))
	assert.Equal(t, "USD -1,000,000.10", FormatMoney("USD", dec("-1000000.1")))
	assert.Equal(t, "12.35", FormatMoney("", dec("12.345")))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(" 1,234.50 ")
	require.NoError(t, err)
	assertDecimal(t, "1234.5", v)

	_, err = ParseAmount("12abc")
	assert.Error(t, err)
}
