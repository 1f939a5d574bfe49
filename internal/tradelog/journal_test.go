package tradelog

import (
	"testing"
	"time"

	"matchbook/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTrade(seq uint64) common.Trade {
	return common.Trade{
		Sequence:     seq,
		TakerOrderID: seq + 10,
		MakerOrderID: seq,
		TakerSide:    common.Sell,
		Quantity:     5 * seq,
		Price:        100 + seq,
		TakerOwner:   "taker",
		MakerOwner:   "maker-" + string(rune('a'+seq)),
		Timestamp:    time.Unix(1700000000, int64(seq)),
	}
}

func TestJournal_AppendGetScan(t *testing.T) {
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, j.Deliver(t.Context(), testTrade(seq)))
	}
	assert.Equal(t, uint64(3), j.Len())

	got, err := j.Get(2)
	require.NoError(t, err)
	assert.True(t, testTrade(2).Timestamp.Equal(got.Timestamp))
	got.Timestamp = testTrade(2).Timestamp
	assert.Equal(t, testTrade(2), got)

	_, err = j.Get(4)
	assert.ErrorIs(t, err, ErrTradeNotFound)

	var indexes []uint64
	require.NoError(t, j.Scan(func(index uint64, trade common.Trade) error {
		indexes = append(indexes, index)
		assert.Equal(t, index, trade.Sequence)
		return nil
	}))
	assert.Equal(t, []uint64{1, 2, 3}, indexes)
}

func TestJournal_ContinuesAfterReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenJournal(dir)
	require.NoError(t, err)
	require.NoError(t, j.Deliver(t.Context(), testTrade(1)))
	require.NoError(t, j.Deliver(t.Context(), testTrade(2)))
	require.NoError(t, j.Close())

	// A restarted engine numbers its trades from 1 again.
	j, err = OpenJournal(dir)
	require.NoError(t, err)
	defer j.Close()
	assert.Equal(t, uint64(2), j.Len())
	require.NoError(t, j.Deliver(t.Context(), testTrade(1)))

	got, err := j.Get(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Sequence)
	assert.Equal(t, uint64(3), j.Len())
}

func TestDecodeTrade_Corrupt(t *testing.T) {
	_, err := decodeTrade([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptRecord)

	raw := encodeTrade(testTrade(1))
	_, err = decodeTrade(raw[:len(raw)-1])
	assert.ErrorIs(t, err, ErrCorruptRecord)
}
