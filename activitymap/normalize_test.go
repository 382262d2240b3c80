package activitymap_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gyber/go-custody"
	"github.com/gyber/go-custody/activitymap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		event   custody.ActivityEvent
		opts    []activitymap.Option
		channel string
		object  string
		objID   string
		actor   string
		outcome string
	}{
		{
			name: "login success",
			event: custody.ActivityEvent{
				EventType:  custody.ActivityEventLoginSuccess,
				Actor:      custody.ActorRef{ID: "user-1", Type: "user"},
				UserID:     "user-1",
				OccurredAt: ts,
			},
			channel: "auth", object: "user", objID: "user-1", actor: "user-1", outcome: activitymap.OutcomeSuccess,
		},
		{
			name: "login failure without actor",
			event: custody.ActivityEvent{
				EventType:  custody.ActivityEventLoginFailure,
				Actor:      custody.ActorRef{Type: "unknown"},
				OccurredAt: ts,
			},
			channel: "auth", object: "user", objID: "", actor: "system", outcome: activitymap.OutcomeFailure,
		},
		{
			name: "wallet events use the address",
			event: custody.ActivityEvent{
				EventType:  custody.ActivityEventWalletRevealed,
				Actor:      custody.ActorRef{ID: "user-2", Type: "user"},
				UserID:     "user-2",
				Metadata:   map[string]any{"address": "0xabc"},
				OccurredAt: ts,
			},
			channel: "wallet", object: "wallet", objID: "0xabc", actor: "user-2", outcome: activitymap.OutcomeSuccess,
		},
		{
			name: "forced channel and actor fallback",
			event: custody.ActivityEvent{
				EventType:  custody.ActivityEventProfileUpdated,
				OccurredAt: ts,
			},
			opts:    []activitymap.Option{activitymap.WithChannel("audit"), activitymap.WithActorFallback("cron")},
			channel: "audit", object: "user", objID: "", actor: "cron", outcome: activitymap.OutcomeSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := activitymap.Normalize(tt.event, tt.opts...)

			assert.Equal(t, string(tt.event.EventType), out.Verb)
			assert.Equal(t, tt.channel, out.Channel)
			assert.Equal(t, tt.object, out.ObjectType)
			assert.Equal(t, tt.objID, out.ObjectID)
			assert.Equal(t, tt.actor, out.ActorID)
			assert.Equal(t, tt.outcome, out.Outcome)
			assert.True(t, out.OccurredAt.Equal(ts))
		})
	}
}

func TestNormalize_MetadataIsCopied(t *testing.T) {
	event := custody.ActivityEvent{
		EventType: custody.ActivityEventChainsUpdated,
		Actor:     custody.ActorRef{ID: "u", Type: "user"},
		Metadata:  map[string]any{"mainnet": "eth-mainnet"},
	}

	out := activitymap.Normalize(event)
	out.Metadata["mainnet"] = "changed"

	assert.Equal(t, "eth-mainnet", event.Metadata["mainnet"])
	assert.Equal(t, "user", out.Metadata[activitymap.MetadataKeyActorType])
	assert.False(t, out.OccurredAt.IsZero())
}

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := activitymap.NewPrometheusSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, custody.ActivityEvent{EventType: custody.ActivityEventLoginFailure}))
	require.NoError(t, sink.Record(ctx, custody.ActivityEvent{EventType: custody.ActivityEventLoginFailure}))
	require.NoError(t, sink.Record(ctx, custody.ActivityEvent{EventType: custody.ActivityEventSignup}))

	failures := sink.Collector().WithLabelValues(string(custody.ActivityEventLoginFailure), activitymap.OutcomeFailure)
	assert.Equal(t, float64(2), testutil.ToFloat64(failures))

	signups := sink.Collector().WithLabelValues(string(custody.ActivityEventSignup), activitymap.OutcomeSuccess)
	assert.Equal(t, float64(1), testutil.ToFloat64(signups))

	_, err = activitymap.NewPrometheusSink(reg)
	assert.Error(t, err, "registering twice fails")
}

func TestFanout(t *testing.T) {
	var seen []custody.ActivityEventType
	record := custody.ActivitySinkFunc(func(_ context.Context, e custody.ActivityEvent) error {
		seen = append(seen, e.EventType)
		return nil
	})
	failing := custody.ActivitySinkFunc(func(context.Context, custody.ActivityEvent) error {
		return errors.New("sink down")
	})

	err := activitymap.Fanout{failing, nil, record}.Record(context.Background(), custody.ActivityEvent{
		EventType: custody.ActivityEventSignup,
	})

	assert.EqualError(t, err, "sink down")
	assert.Equal(t, []custody.ActivityEventType{custody.ActivityEventSignup}, seen)
}
