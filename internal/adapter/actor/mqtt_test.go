package actor

import (
	"testing"
	"time"

	"battfleet2mqtt/internal/core/domain"
	"battfleet2mqtt/internal/core/events"
	"battfleet2mqtt/internal/mqtt"
	"battfleet2mqtt/internal/util"
	"battfleet2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	time.Sleep(2 * time.Second)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.NotNil(t, resp)

	es.Publish(domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_AGGREGATED_MODE,
		},
		Value: "FLOAT",
	})
	es.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_COMBINED_CVL,
		},
		Value:    54.4,
		Decimals: 2,
	})

	time.Sleep(1 * time.Second)

	context.Stop(pid)

	time.Sleep(1 * time.Second)

	as.Shutdown()
}

func TestBridgeStateEventToMQTTMessage(t *testing.T) {

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	state := NewMQTTActor(&cfg, nil, logger)
	state.client = mqtt.CreateMQTTClient(&cfg, mqtt.OptsFromConfig(&cfg), nil)

	online := state.event2MQTTMessage(domain.BridgeStateUpdateEvent{Value: true})
	require.NotNil(t, online)
	assert.Equal(t, state.client.BridgeStateTopic(), online.topic)
	assert.Equal(t, mqtt.MQTT_PAYLOAD_ONLINE, online.message)
	assert.True(t, online.retain)

	offline := state.event2MQTTMessage(domain.BridgeStateUpdateEvent{Value: false})
	require.NotNil(t, offline)
	assert.Equal(t, mqtt.MQTT_PAYLOAD_OFFLINE, offline.message)
	assert.True(t, offline.retain)
}
