package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "battfleet2mqtt/internal/adapter/actor"
	"battfleet2mqtt/internal/config"
	"battfleet2mqtt/internal/core/domain"
	"battfleet2mqtt/internal/core/port"
	. "battfleet2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type BatteriesActorProvider func() *adactor.BatteriesActor

type ShuntActorProvider func() *adactor.ShuntActor

type AggregatorProvider func() port.ChargeModeAggregator

// MasterOfPuppetsActor supervises the actor tree and answers the
// bridge-level health check.
type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	batteriesActor     *actor.PID
	shuntActor         *actor.PID
	mqttActor          *actor.PID
	chargeFlowActor    *actor.PID

	batteriesActorProvider BatteriesActorProvider
	shuntActorProvider     ShuntActorProvider
	mqttActorProvider      MQTTActorProvider
	aggregatorProvider     AggregatorProvider

	logger *zap.Logger
}

type healthCheckResult struct {
	batteriesActorHealthy  bool
	shuntActorHealthy      bool
	mqttActorHealthy       bool
	chargeFlowActorHealthy bool
	shuntTracked           bool
	checksReceived         int
	respondTo              *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, batteriesActorProvider BatteriesActorProvider,
	shuntActorProvider ShuntActorProvider, mqttActorProvider MQTTActorProvider,
	aggregatorProvider AggregatorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:                 config,
		behavior:               actor.NewBehavior(),
		stash:                  &Stash{},
		logger:                 ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:            &eventstream.EventStream{},
		batteriesActorProvider: batteriesActorProvider,
		shuntActorProvider:     shuntActorProvider,
		mqttActorProvider:      mqttActorProvider,
		aggregatorProvider:     aggregatorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start batteries child
		batteriesActorPID, err := state.startBatteriesActor(ctx)
		if err != nil {
			panic(err)
		}
		state.batteriesActor = batteriesActorPID

		// start shunt child
		if state.config.Shunt.Enabled {
			shuntActorPID, err := state.startShuntActor(ctx)
			if err != nil {
				panic(err)
			}
			state.shuntActor = shuntActorPID
		}

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start ChargeFlow child
		chargeFlowActorPID, err := state.startChargeFlowActor(ctx)
		if err != nil {
			panic(err)
		}
		state.chargeFlowActor = chargeFlowActorPID

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		// Batteries Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.batteriesActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_BATTERIES,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// ChargeFlow Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.chargeFlowActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CHARGEFLOW,
				Healthy: false,
			}
		})
		// Shunt Actor Request (optional child)
		state.currentHealthCheck.shuntTracked = state.shuntActor != nil
		if state.shuntActor != nil {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.shuntActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      domain.ACTOR_ID_SHUNT,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.GetChargeTargetRequest:
		// forward to the chargeflow child, preserving the reply target
		state.logger.Debug("master@default GetChargeTargetRequest")
		replyTo := ForRequest(msg).ReplyTo(ctx)
		ctx.Send(state.chargeFlowActor, domain.GetChargeTargetRequest{
			ActorRequestMixIn: domain.ActorRequestMixIn{
				ReplyToRef: (*domain.ActorRef)(replyTo),
			},
		})
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_BATTERIES) {
			state.logger.Error("master@default batteries error")
			panic(errors.New("batteries terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			if msg.Id == domain.ACTOR_ID_BATTERIES {
				state.currentHealthCheck.batteriesActorHealthy = true
			} else if msg.Id == domain.ACTOR_ID_MQTT {
				state.currentHealthCheck.mqttActorHealthy = true
			} else if msg.Id == domain.ACTOR_ID_CHARGEFLOW {
				state.currentHealthCheck.chargeFlowActorHealthy = true
			} else if msg.Id == domain.ACTOR_ID_SHUNT {
				state.currentHealthCheck.shuntActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startBatteriesActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	batteriesProps := actor.PropsFromProducer(func() actor.Actor {
		return state.batteriesActorProvider()
	}, actor.WithSupervisor(supervisor))
	batteriesActorPID, err := ctx.SpawnNamed(batteriesProps, domain.ACTOR_ID_BATTERIES)
	if err != nil {
		return nil, err
	}

	return batteriesActorPID, nil
}

func (state *MasterOfPuppetsActor) startShuntActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	shuntProps := actor.PropsFromProducer(func() actor.Actor {
		return state.shuntActorProvider()
	}, actor.WithSupervisor(supervisor))
	shuntActorPID, err := ctx.SpawnNamed(shuntProps, domain.ACTOR_ID_SHUNT)
	if err != nil {
		return nil, err
	}

	return shuntActorPID, nil
}

func (state *MasterOfPuppetsActor) startChargeFlowActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewAllForOneStrategy(1, 10*time.Second, decider)

	chargeFlowProps := actor.PropsFromProducer(func() actor.Actor {
		return NewChargeFlowActor(&state.config, state.batteriesActor, state.shuntActor,
			state.aggregatorProvider(), state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	chargeFlowActorPID, err := ctx.SpawnNamed(chargeFlowProps, domain.ACTOR_ID_CHARGEFLOW)
	if err != nil {
		return nil, err
	}

	return chargeFlowActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.batteriesActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *healthCheckResult) reset() {
	state.batteriesActorHealthy = false
	state.shuntActorHealthy = false
	state.mqttActorHealthy = false
	state.chargeFlowActorHealthy = false
	state.shuntTracked = false
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	expected := 3
	if state.shuntTracked {
		expected = 4
	}
	return state.checksReceived == expected
}

func (state *healthCheckResult) allHealthy() bool {
	return state.batteriesActorHealthy && state.mqttActorHealthy && state.chargeFlowActorHealthy &&
		(!state.shuntTracked || state.shuntActorHealthy)
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
