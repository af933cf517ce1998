package actor

import (
	"fmt"
	"testing"
	"time"

	adactor "battfleet2mqtt/internal/adapter/actor"
	"battfleet2mqtt/internal/core/domain"
	"battfleet2mqtt/internal/core/port"
	"battfleet2mqtt/internal/core/service"
	"battfleet2mqtt/internal/util"
	"battfleet2mqtt/pkg/bmsmodbus"
	"battfleet2mqtt/pkg/vedirect"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.BatteriesActor {
			return adactor.NewBatteriesActor([]bmsmodbus.BatteryModbusReader{
				bmsmodbus.CreateTestBatteryModbusReader(bmsmodbus.LabelBulk, 56.0),
				bmsmodbus.CreateTestBatteryModbusReader(bmsmodbus.LabelFloat, 54.0),
			}, logger)
		}, func() *adactor.ShuntActor {
			return adactor.NewShuntActor(&vedirect.TestShuntReader{}, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, func() port.ChargeModeAggregator {
			return service.NewStickyChargeModeAggregator(domain.AggregatedFloat, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	context.Stop(pid)

	as.Shutdown()
}

func TestMasterActorUnhealthyWhenShuntWedged(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	// fast poll so a shunt read is in flight when the health check arrives
	cfg.AggregatorConfig.PollIntervalMillis = 500
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.BatteriesActor {
			return adactor.NewBatteriesActor([]bmsmodbus.BatteryModbusReader{
				bmsmodbus.CreateTestBatteryModbusReader(bmsmodbus.LabelFloat, 54.0),
			}, logger)
		}, func() *adactor.ShuntActor {
			return adactor.NewShuntActor(&vedirect.TestShuntReader{UpdateDelay: 30 * time.Second}, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, func() port.ChargeModeAggregator {
			return service.NewStickyChargeModeAggregator(domain.AggregatedFloat, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master_wedged_shunt")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(1500 * time.Millisecond)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)

	assert.False(t, healthResp.Healthy, "wedged shunt degrades bridge health")

	context.Stop(pid)

	as.Shutdown()
}
