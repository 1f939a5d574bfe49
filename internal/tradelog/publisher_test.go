package tradelog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_Message(t *testing.T) {
	p := NewPublisher("AAPL", []string{"localhost:9092"}, "trades")
	defer p.Close()

	trade := testTrade(3)
	msg, err := p.message(trade)
	require.NoError(t, err)

	assert.Equal(t, "3", string(msg.Key))
	assert.True(t, trade.Timestamp.Equal(msg.Time))

	var event map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "AAPL", event["symbol"])
	assert.Equal(t, "SELL", event["taker_side"])
	assert.EqualValues(t, 103, event["price"])
	assert.EqualValues(t, 15, event["qty"])
	assert.Equal(t, "maker-d", event["maker"])
	assert.Equal(t, "kafka", p.Name())
}
