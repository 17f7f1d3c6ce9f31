package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "15.00", Format(1500, enums.CurrencyINR))
	assert.Equal(t, "0.05", Format(5, enums.CurrencyUSD))
	assert.Equal(t, "-1.20", Format(-120, enums.CurrencyEUR))
}

func TestFromMajor(t *testing.T) {
	minor, err := FromMajor("15.5", enums.CurrencyINR)
	require.NoError(t, err)
	assert.Equal(t, int64(1550), minor)

	_, err = FromMajor("1.005", enums.CurrencyINR)
	assert.Error(t, err)

	_, err = FromMajor("-2", enums.CurrencyINR)
	assert.Error(t, err)

	_, err = FromMajor("abc", enums.CurrencyINR)
	assert.Error(t, err)
}
