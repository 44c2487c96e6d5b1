package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineValue(t *testing.T) {
	got := LineValue(MustMoney("12.345"), 3)
	assert.True(t, got.Equal(MustMoney("37.035")))
	assert.Equal(t, "37.04", RoundTotal(got).StringFixed(MoneyScale))
}

func TestLineValueZeroQuantity(t *testing.T) {
	assert.True(t, LineValue(MustMoney("9.99"), 0).IsZero())
}
