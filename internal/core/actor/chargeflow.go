package actor

import (
	"fmt"
	"time"

	"battfleet2mqtt/internal/config"
	"battfleet2mqtt/internal/core/domain"
	"battfleet2mqtt/internal/core/events"
	"battfleet2mqtt/internal/core/port"
	. "battfleet2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// ChargeFlowActor drives the polling loop: each tick it requests the
// fleet's charge reports and the shunt sample, folds the reports
// through the aggregator and publishes the resulting sensor updates.
type ChargeFlowActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	batteriesActor *actor.PID
	shuntActor     *actor.PID
	aggregator     port.ChargeModeAggregator
	config         *config.Config
	eventStream    *eventstream.EventStream
	currentTarget  *domain.ChargeTargetUpdate

	logger *zap.Logger
}

type chargeFlowTick struct {
}

func NewChargeFlowActor(config *config.Config, batteriesActor *actor.PID, shuntActor *actor.PID,
	aggregator port.ChargeModeAggregator, eventStream *eventstream.EventStream, logger *zap.Logger) *ChargeFlowActor {
	act := &ChargeFlowActor{
		config:         config,
		batteriesActor: batteriesActor,
		shuntActor:     shuntActor,
		aggregator:     aggregator,
		behavior:       actor.NewBehavior(),
		stash:          &Stash{},
		logger:         ActorLogger(domain.ACTOR_ID_CHARGEFLOW, logger),
		eventStream:    eventStream,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ChargeFlowActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ChargeFlowActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("chargeflow@starting started")

		if state.config.AggregatorConfig.PollIntervalMillis > 0 {
			state.scheduler = scheduler.NewTimerScheduler(ctx)
			state.scheduler.RequestOnce(time.Duration(state.config.AggregatorConfig.PollIntervalMillis)*time.Millisecond, ctx.Self(), chargeFlowTick{})
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("chargeflow@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ChargeFlowActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("chargeflow@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CHARGEFLOW,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetChargeTargetRequest:
		state.logger.Debug("chargeflow@default: GetChargeTargetRequest")
		ForRequest(msg).Respond(ctx, domain.GetChargeTargetResponse{
			Target: state.currentTarget,
		})
	case chargeFlowTick:
		state.logger.Debug("chargeflow@default tick")
		// get battery charge reports
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.batteriesActor, domain.GetBatteryReportsRequest{}, 6*time.Second), func(err error) any {
			return domain.GetBatteryReportsResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		// get shunt sample
		if state.shuntActor != nil {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.shuntActor, domain.GetShuntSampleRequest{}, 6*time.Second), func(err error) any {
				return domain.GetShuntSampleResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
		}

		// schedule next tick
		state.scheduler.RequestOnce(time.Duration(state.config.AggregatorConfig.PollIntervalMillis)*time.Millisecond, ctx.Self(), chargeFlowTick{})
		state.behavior.BecomeStacked(state.WaitingReportsReceive)
	case domain.GetShuntSampleResponse:
		state.logger.Debug("chargeflow@default GetShuntSampleResponse")
		state.publishShuntSample(msg)
	default:
		state.logger.Debug("chargeflow@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ChargeFlowActor) WaitingReportsReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetBatteryReportsResponse:
		if msg.HasResponseError() {
			state.logger.Error("chargeflow@waiting GetBatteryReportsResponse error", zap.Error(msg.GetResponseError()))
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
			return
		}
		state.logger.Debug("chargeflow@waiting GetBatteryReportsResponse")

		modes := make([]domain.ChargeMode, 0, len(msg.Reports))
		for _, report := range msg.Reports {
			modes = append(modes, report.ChargeMode)
		}
		state.aggregator.AdvanceMode(modes)
		limit, err := state.aggregator.CombinedVoltageLimit(msg.Reports)
		if err != nil {
			state.logger.Error("chargeflow@waiting combined voltage limit", zap.Error(err))
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
			return
		}

		target := domain.ChargeTargetUpdate{
			Mode:               state.aggregator.Mode(),
			ChargeVoltageLimit: limit,
			BatteryCount:       len(msg.Reports),
		}
		state.currentTarget = &target
		for _, ev := range events.ChargeTargetToUpdateEvents(&target) {
			state.eventStream.Publish(ev)
		}

		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("chargeflow@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// publishShuntSample publishes the measurements of a fresh sample, or
// only the freshness marker when the reading is stale or failed.
func (state *ChargeFlowActor) publishShuntSample(msg domain.GetShuntSampleResponse) {
	if msg.HasResponseError() {
		state.logger.Error("chargeflow GetShuntSampleResponse error", zap.Error(msg.GetResponseError()))
		state.eventStream.Publish(events.ShuntFreshnessUpdateEvent(false))
		return
	}
	if msg.Sample == nil {
		state.eventStream.Publish(events.ShuntFreshnessUpdateEvent(false))
		return
	}
	for _, ev := range events.ShuntSampleToUpdateEvents(msg.Sample) {
		state.eventStream.Publish(ev)
	}
}
