package prizepool

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates() (uuid.UUID, uuid.UUID, []Candidate) {
	empty := uuid.New()
	asset := uuid.New()
	return empty, asset, []Candidate{
		{PrizeID: asset, Quantity: 2, Order: 1},
		{PrizeID: empty, Quantity: 8, Order: 0},
	}
}

func TestSelectLaysOutSlotsByOrder(t *testing.T) {
	empty, asset, pool := candidates()

	for r := int64(0); r < 8; r++ {
		res, err := Select(pool, r)
		require.NoError(t, err)
		assert.Equal(t, empty, res.PrizeID, "slot %d", r)
		assert.Equal(t, r, res.SlotNumber)
		assert.Equal(t, int64(10), res.TotalSlots)
	}
	for r := int64(8); r < 10; r++ {
		res, err := Select(pool, r)
		require.NoError(t, err)
		assert.Equal(t, asset, res.PrizeID, "slot %d", r)
	}
}

func TestSelectIsStableForEqualOrder(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	pool := []Candidate{
		{PrizeID: a, Quantity: 1},
		{PrizeID: b, Quantity: 1},
	}

	res, err := Select(pool, 0)
	require.NoError(t, err)
	assert.Equal(t, a, res.PrizeID)

	res, err = Select(pool, 1)
	require.NoError(t, err)
	assert.Equal(t, b, res.PrizeID)
}

func TestSelectIgnoresNonPositiveQuantities(t *testing.T) {
	live := uuid.New()
	pool := []Candidate{
		{PrizeID: uuid.New(), Quantity: 0, Order: 0},
		{PrizeID: uuid.New(), Quantity: -3, Order: 1},
		{PrizeID: live, Quantity: 1, Order: 2},
	}

	res, err := Select(pool, 0)
	require.NoError(t, err)
	assert.Equal(t, live, res.PrizeID)
	assert.Equal(t, int64(1), res.TotalSlots)
}

func TestSelectRejectsOutOfRangeSlot(t *testing.T) {
	_, _, pool := candidates()

	_, err := Select(pool, 10)
	assert.Error(t, err)
	_, err = Select(pool, -1)
	assert.Error(t, err)
}

func TestDrawExhausted(t *testing.T) {
	_, err := Draw(nil)
	assert.ErrorIs(t, err, ErrPoolExhausted)

	_, err = Draw([]Candidate{{PrizeID: uuid.New(), Quantity: 0}})
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

// Frequencies over many draws must match quantity shares. The chi-square
// critical value for 2 degrees of freedom at p=0.001 is 13.82.
func TestDrawDistribution(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	pool := []Candidate{
		{PrizeID: ids[0], Quantity: 5, Order: 0},
		{PrizeID: ids[1], Quantity: 3, Order: 1},
		{PrizeID: ids[2], Quantity: 2, Order: 2},
	}
	const trials = 20000

	counts := make(map[uuid.UUID]int)
	for i := 0; i < trials; i++ {
		res, err := Draw(pool)
		require.NoError(t, err)
		counts[res.PrizeID]++
	}

	var chi2 float64
	for _, c := range pool {
		expected := float64(trials) * float64(c.Quantity) / 10
		diff := float64(counts[c.PrizeID]) - expected
		chi2 += diff * diff / expected
	}
	assert.Less(t, chi2, 13.82, "counts %v", counts)
}

func TestNewSeed(t *testing.T) {
	a, err := NewSeed()
	require.NoError(t, err)
	b, err := NewSeed()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := base58.Decode(a)
	require.NoError(t, err)
	assert.Len(t, raw, seedSize)
}
