package actor

import (
	"sync"
	"testing"
	"time"

	adactor "battfleet2mqtt/internal/adapter/actor"
	"battfleet2mqtt/internal/config"
	"battfleet2mqtt/internal/core/domain"
	"battfleet2mqtt/internal/core/events"
	"battfleet2mqtt/internal/core/service"
	"battfleet2mqtt/internal/util/actorutil"
	"battfleet2mqtt/pkg/bmsmodbus"
	"battfleet2mqtt/pkg/vedirect"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []any
}

func (r *eventRecorder) record(value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, value)
}

func (r *eventRecorder) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any{}, r.events...)
}

func TestChargeFlow(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	cfg := config.Config{}
	cfg.AggregatorConfig.PollIntervalMillis = 500

	// batteries actor
	batteriesProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewBatteriesActor([]bmsmodbus.BatteryModbusReader{
			bmsmodbus.CreateTestBatteryModbusReader(bmsmodbus.LabelFloat, 54.0),
			bmsmodbus.CreateTestBatteryModbusReader(bmsmodbus.LabelFloat, 54.4),
		}, logger)
	})
	batteriesActorPID := context.Spawn(batteriesProps)

	// shunt actor with a fresh sample
	shuntProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewShuntActor(&vedirect.TestShuntReader{
			Sample: &vedirect.ShuntData{
				ConsumedAmpHours:     -3.2,
				CurrentAmps:          -0.8,
				StateOfChargePercent: 92.0,
				ReadTimestamp:        time.Now(),
			},
		}, logger)
	})
	shuntActorPID := context.Spawn(shuntProps)

	es := eventstream.EventStream{}
	recorder := &eventRecorder{}
	sub := es.Subscribe(recorder.record)
	defer es.Unsubscribe(sub)

	chargeFlowProps := actor.PropsFromProducer(func() actor.Actor {
		return NewChargeFlowActor(&cfg, batteriesActorPID, shuntActorPID,
			service.NewStickyChargeModeAggregator(domain.AggregatedFloatTransition, logger), &es, logger)
	})
	cfActorPID := context.Spawn(chargeFlowProps)

	time.Sleep(2 * time.Second)

	var modeValue string
	var cvlValue float64
	var batteryCount float64
	var socValue float64
	var fresh *bool
	for _, ev := range recorder.snapshot() {
		switch e := ev.(type) {
		case domain.TextSensorUpdateEvent:
			if e.Id == events.SENSOR_ID_AGGREGATED_MODE {
				modeValue = e.Value
			}
		case domain.FloatSensorUpdateEvent:
			switch e.Id {
			case events.SENSOR_ID_COMBINED_CVL:
				cvlValue = e.Value
			case events.SENSOR_ID_BATTERY_COUNT:
				batteryCount = e.Value
			case events.SENSOR_ID_SHUNT_SOC:
				socValue = e.Value
			}
		case domain.BinarySensorUpdateEvent:
			if e.Id == events.SENSOR_ID_SHUNT_DATA_FRESH {
				v := e.Value
				fresh = &v
			}
		}
	}

	// all-Float fleet: aggregated mode converges to FLOAT with the global
	// minimum limit
	assert.Equal(t, "FLOAT", modeValue)
	assert.Equal(t, 54.0, cvlValue)
	assert.Equal(t, 2.0, batteryCount)
	assert.Equal(t, 92.0, socValue)
	require.NotNil(t, fresh)
	assert.True(t, *fresh)

	// latest target is served on request
	result, err := context.RequestFuture(cfActorPID, domain.GetChargeTargetRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	targetResp, ok := result.(domain.GetChargeTargetResponse)
	require.True(t, ok)
	require.NotNil(t, targetResp.Target)
	assert.Equal(t, domain.AggregatedFloat, targetResp.Target.Mode)
	assert.Equal(t, 54.0, targetResp.Target.ChargeVoltageLimit)
	assert.Equal(t, 2, targetResp.Target.BatteryCount)

	context.Stop(cfActorPID)
	context.Stop(shuntActorPID)
	context.Stop(batteriesActorPID)

	as.Shutdown()
}

func TestChargeFlowStaleShunt(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	cfg := config.Config{}
	cfg.AggregatorConfig.PollIntervalMillis = 500

	batteriesProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewBatteriesActor([]bmsmodbus.BatteryModbusReader{
			bmsmodbus.CreateTestBatteryModbusReader(bmsmodbus.LabelBulk, 56.0),
		}, logger)
	})
	batteriesActorPID := context.Spawn(batteriesProps)

	shuntProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewShuntActor(&vedirect.TestShuntReader{}, logger)
	})
	shuntActorPID := context.Spawn(shuntProps)

	es := eventstream.EventStream{}
	recorder := &eventRecorder{}
	sub := es.Subscribe(recorder.record)
	defer es.Unsubscribe(sub)

	chargeFlowProps := actor.PropsFromProducer(func() actor.Actor {
		return NewChargeFlowActor(&cfg, batteriesActorPID, shuntActorPID,
			service.NewStickyChargeModeAggregator(domain.AggregatedFloat, logger), &es, logger)
	})
	cfActorPID := context.Spawn(chargeFlowProps)

	time.Sleep(2 * time.Second)

	var fresh *bool
	sawShuntValue := false
	for _, ev := range recorder.snapshot() {
		switch e := ev.(type) {
		case domain.FloatSensorUpdateEvent:
			switch e.Id {
			case events.SENSOR_ID_SHUNT_CURRENT, events.SENSOR_ID_SHUNT_SOC, events.SENSOR_ID_SHUNT_CONSUMED_AH:
				sawShuntValue = true
			}
		case domain.BinarySensorUpdateEvent:
			if e.Id == events.SENSOR_ID_SHUNT_DATA_FRESH {
				v := e.Value
				fresh = &v
			}
		}
	}

	// stale shunt publishes only the freshness marker, never old values
	require.NotNil(t, fresh)
	assert.False(t, *fresh)
	assert.False(t, sawShuntValue)

	context.Stop(cfActorPID)
	context.Stop(shuntActorPID)
	context.Stop(batteriesActorPID)

	as.Shutdown()
}
