package kafka

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type placed struct {
	OrderID string `json:"order_id"`
}

func TestEnvelopeRoundTrip(t *testing.T) {
	b := MustMarshal(envelope{EventType: "OrderPlaced", Payload: MustMarshal(placed{OrderID: "o-1"})})

	var ev envelope
	require.NoError(t, UnmarshalEnvelope(b, &ev))
	assert.Equal(t, "OrderPlaced", ev.EventType)

	p, err := UnwrapPayload[placed](ev.Payload)
	require.NoError(t, err)
	assert.Equal(t, "o-1", p.OrderID)
}

func TestUnwrapPayloadRejectsGarbage(t *testing.T) {
	_, err := UnwrapPayload[placed](json.RawMessage(`[1,2`))
	assert.ErrorContains(t, err, "decode payload")
	assert.Error(t, UnmarshalEnvelope([]byte("nope"), &envelope{}))
}

func TestPublishDropsWhenFull(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "t", 1, zerolog.Nop())
	p.Publish([]byte("k"), []byte("v1"))
	p.Publish([]byte("k"), []byte("v2"))
	require.Len(t, p.inbox, 1)
	m := <-p.inbox
	assert.Equal(t, "v1", string(m.Value))
	p.Close()
	p.Close()
}
