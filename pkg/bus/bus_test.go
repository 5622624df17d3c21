package bus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestHubDeliversToAllOtherMembers(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	a := New(hub.Transport())
	b := New(hub.Transport())
	c := New(hub.Transport())

	var gotB, gotC []Envelope
	b.Subscribe(func(env Envelope) { gotB = append(gotB, env) })
	c.Subscribe(func(env Envelope) { gotC = append(gotC, env) })

	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	require.NoError(t, c.Start(ctx))

	env, err := NewEnvelope(MessageTrigger, map[string]string{"type": "last-customer-left-lunch"})
	require.NoError(t, err)
	require.NoError(t, a.Publish(ctx, env))

	require.Len(t, gotB, 1)
	require.Len(t, gotC, 1)
	require.Equal(t, MessageTrigger, gotB[0].Type)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(gotB[0].Data, &payload))
	require.Equal(t, "last-customer-left-lunch", payload["type"])
}

func TestHubSkipsSender(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	a := New(hub.Transport())
	var got []Envelope
	a.Subscribe(func(env Envelope) { got = append(got, env) })
	require.NoError(t, a.Start(ctx))

	env, err := NewEnvelope(MessageClearSubmissions, struct{}{})
	require.NoError(t, err)
	require.NoError(t, a.Publish(ctx, env))

	require.Empty(t, got)
}

func TestClosedMemberStopsReceiving(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	a := New(hub.Transport())
	b := New(hub.Transport())

	var got int
	b.Subscribe(func(Envelope) { got++ })
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	env, err := NewEnvelope(MessageSubmission, map[string]string{"taskId": "lunch-duty-manager-1"})
	require.NoError(t, err)

	require.NoError(t, a.Publish(ctx, env))
	require.Equal(t, 1, got)

	require.NoError(t, b.Close())
	require.NoError(t, a.Publish(ctx, env))
	require.Equal(t, 1, got)
}

func TestDispatchDropsMalformedPayload(t *testing.T) {
	b := New()
	var got int
	b.Subscribe(func(Envelope) { got++ })

	b.dispatch([]byte(`not json`))
	require.Zero(t, got)

	b.dispatch([]byte(`{"type":"TRIGGER","data":null}`))
	require.Equal(t, 1, got)
}

func TestPublishWithNoTransports(t *testing.T) {
	b := New()
	env, err := NewEnvelope(MessageReviewStatus, map[string]string{"taskId": "x"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), env))
}

func TestEnvelopeWireFormat(t *testing.T) {
	env, err := NewEnvelope(MessageTrigger, map[string]any{"type": "last-customer-left-dinner"})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"TRIGGER","data":{"type":"last-customer-left-dinner"}}`, string(raw))

	var decoded Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, env.Type, decoded.Type)
	require.JSONEq(t, string(env.Data), string(decoded.Data))
}
