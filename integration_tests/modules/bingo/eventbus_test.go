//go:build integration

package bingointegration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Black-And-White-Club/mundo-bingo/integration_tests/testutils"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/eventbus"
	bingoevents "github.com/Black-And-White-Club/mundo-bingo/pkg/events/bingo"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runEventBusTests(t *testing.T, env *testutils.TestEnvironment) {
	ctx, cancel := context.WithTimeout(env.Ctx, 30*time.Second)
	defer cancel()

	base, err := env.EventBus.Subscribe(ctx, bingoevents.RoomClosedV1)
	require.NoError(t, err)
	scoped, err := env.EventBus.Subscribe(ctx, eventbus.FormatRoomScopedTopic(bingoevents.RoomClosedV1, "300001"))
	require.NoError(t, err)

	// Core NATS drops messages published before the subscription is live.
	time.Sleep(200 * time.Millisecond)

	pub := eventbus.NewPublisher(env.EventBus)
	payload := map[string]any{"room_code": "300001"}
	require.NoError(t, pub.Publish(ctx, bingoevents.RoomClosedV1, "300001", payload))

	for name, ch := range map[string]<-chan *message.Message{"base": base, "scoped": scoped} {
		select {
		case msg := <-ch:
			var got map[string]any
			require.NoError(t, json.Unmarshal(msg.Payload, &got), name)
			assert.Equal(t, "300001", got["room_code"], name)
			msg.Ack()
		case <-ctx.Done():
			t.Fatalf("%s subscriber got nothing", name)
		}
	}
}
