package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_WrapsPayloadInEnvelope(t *testing.T) {
	event, err := NewEvent("Order", "12", "OrderCreated", "order_events", map[string]any{"order_id": 12})
	require.NoError(t, err)

	require.Equal(t, "Order", event.AggregateType)
	require.Equal(t, "12", event.AggregateID)
	require.Equal(t, "order_events", event.Topic)
	require.NotEqual(t, uuid.Nil, event.EventUID)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(event.Payload, &envelope))
	require.Equal(t, "OrderCreated", envelope.Event)
	require.JSONEq(t, `{"order_id":12}`, string(envelope.Payload))
}

func TestNewEvent_UnmarshalablePayload(t *testing.T) {
	_, err := NewEvent("Order", "1", "OrderCreated", "order_events", make(chan int))
	require.Error(t, err)
}
