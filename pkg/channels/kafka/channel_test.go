package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092,"))
	assert.Empty(t, ParseBrokers(""))
}

func TestCreateChannel_NoBrokers(t *testing.T) {
	t.Parallel()

	_, _, err := CreateChannel(watermill.NopLogger{}, nil, "dispatcher")
	require.ErrorIs(t, err, ErrNoBrokers)
}

func TestPartitionKey(t *testing.T) {
	t.Parallel()

	msg := message.NewMessage("1", nil)
	msg.Metadata.Set(KeyMetadata, "wf-1")

	key, err := partitionKey("topic", msg)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", key)
}
