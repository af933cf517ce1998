package actor

import (
	"fmt"
	"time"

	"battfleet2mqtt/internal/core/domain"
	"battfleet2mqtt/internal/core/port"
	"battfleet2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// ShuntActor owns the VE.Direct serial reader. The underlying monitor
// opens the port lazily, so a missing or busy device does not prevent
// the actor from starting.
type ShuntActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	reader   port.ShuntReader
	logger   *zap.Logger
}

func NewShuntActor(reader port.ShuntReader, logger *zap.Logger) *ShuntActor {
	act := &ShuntActor{
		reader:   reader,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_SHUNT, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *ShuntActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ShuntActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("shunt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SHUNT,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetShuntSampleRequest:
		state.logger.Debug("shunt@default GetShuntSampleRequest")
		sender := ctx.Sender()
		actorutil.NewBackgroundTask(ctx, func() (*backgroundTaskResult, error) {
			sample := state.reader.Update()
			return &backgroundTaskResult{
				message: domain.GetShuntSampleResponse{Sample: sample},
				replyTo: sender,
			}, nil
		}).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetShuntSampleResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(5 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingSerial)
	case *actor.Restarting:
		state.reader.Close()
	case *actor.Stopping:
		state.reader.Close()
	default:
		state.logger.Debug("shunt@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ShuntActor) WaitingSerial(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("shunt@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.reader.Close()
	default:
		state.logger.Debug("shunt@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}
