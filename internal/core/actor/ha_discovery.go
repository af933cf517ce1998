package actor

import (
	"errors"
	"fmt"
	"time"

	"battfleet2mqtt/internal/config"
	"battfleet2mqtt/internal/core/domain"
	"battfleet2mqtt/internal/core/events"
	"battfleet2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor publishes the Home Assistant discovery catalogue
// once both the batteries and MQTT actors report healthy.
type HADiscoveryActor struct {
	config                *config.Config
	behavior              actor.Behavior
	stash                 *actorutil.Stash
	batteriesActor        *actor.PID
	mqttActor             *actor.PID
	batteriesActorHealthy bool
	mqttActorHealthy      bool
	healthyRecv           int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, batteriesActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:         config,
		batteriesActor: batteriesActor,
		mqttActor:      mqttActor,
		behavior:       actor.NewBehavior(),
		stash:          &actorutil.Stash{},
		logger:         actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check batteries and MQTT actor healthy
		state.healthyRecv = 0
		state.batteriesActorHealthy = false
		state.mqttActorHealthy = false
		// Batteries Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.batteriesActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_BATTERIES,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_BATTERIES:
				state.batteriesActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {

			if state.batteriesActorHealthy && state.mqttActorHealthy {
				// Ask fleet identities before announcing the catalogue
				actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.batteriesActor, domain.GetBatteriesInfoRequest{}, 6*time.Second), func(err error) any {
					return domain.GetBatteriesInfoResponse{
						ActorResponseMixIn: domain.ActorResponseMixIn{
							ResponseError: err,
						},
					}
				})
				state.behavior.Become(state.WaitingInfoReceive)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or Batteries Actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}

func (state *HADiscoveryActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetBatteriesInfoResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		for _, info := range msg.Batteries {
			state.logger.Info("hadiscovery@info: battery",
				zap.String("manufacturer", info.Manufacturer),
				zap.String("model", info.Model),
				zap.String("serial", info.Serial))
		}

		bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
		sensors := events.FleetSensors(bridgeDevice, state.config.Shunt.Enabled)

		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: sensors,
		})
		state.behavior.Become(state.Done)

	default:
		state.logger.Debug("hadiscovery@info: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
