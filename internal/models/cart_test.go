package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupe_SumsQuantitiesByCompositeKey(t *testing.T) {
	t.Parallel()

	lines := []CartLine{
		{ProductID: "1", VariantID: "A", Quantity: 2, Name: "Oud"},
		{ProductID: "1", VariantID: "", Quantity: 1},
		{ProductID: "1", VariantID: "A", Quantity: 3, Image: "oud.png", UnitPrice: decimal.NewFromInt(40)},
	}

	out := Dedupe(lines)
	require.Len(t, out, 2)

	assert.Equal(t, Key{ProductID: "1", VariantID: "A"}, out[0].Key())
	assert.Equal(t, 5, out[0].Quantity)
	assert.Equal(t, "Oud", out[0].Name)
	assert.Equal(t, "oud.png", out[0].Image)
	assert.True(t, decimal.NewFromInt(40).Equal(out[0].UnitPrice))

	assert.Equal(t, 1, out[1].Quantity)
}

func TestNewSnapshot_DerivesTotalAndCopies(t *testing.T) {
	t.Parallel()

	lines := []CartLine{
		{ProductID: "5", Quantity: 3},
		{ProductID: "7", VariantID: "B", Quantity: 2},
	}
	snap := NewSnapshot(lines)
	assert.Equal(t, 5, snap.TotalQuantity)

	lines[0].Quantity = 100
	assert.Equal(t, 3, snap.Lines[0].Quantity)
}

func TestFind(t *testing.T) {
	t.Parallel()

	lines := []CartLine{{ProductID: "1"}, {ProductID: "1", VariantID: "B"}}
	assert.Equal(t, 1, Find(lines, Key{ProductID: "1", VariantID: "B"}))
	assert.Equal(t, -1, Find(lines, Key{ProductID: "2"}))
	assert.Equal(t, "1::B", lines[1].Key().String())
}
