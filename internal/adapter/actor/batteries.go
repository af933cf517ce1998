package actor

import (
	"fmt"
	"time"

	"battfleet2mqtt/internal/core/domain"
	"battfleet2mqtt/internal/util/actorutil"
	"battfleet2mqtt/pkg/bmsmodbus"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// BatteriesActor owns the Modbus connections to the battery fleet.
// Requests are served one at a time: while a read cycle runs in the
// background, incoming messages are stashed.
type BatteriesActor struct {
	behavior  actor.Behavior
	stash     *actorutil.Stash
	batteries []bmsmodbus.BatteryModbusReader
	logger    *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewBatteriesActor(batteries []bmsmodbus.BatteryModbusReader, logger *zap.Logger) *BatteriesActor {
	act := &BatteriesActor{
		batteries: batteries,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_BATTERIES, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *BatteriesActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *BatteriesActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("batteries@starting started")
		for _, batt := range state.batteries {
			if err := batt.Open(); err != nil {
				panic(err)
			}
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.closeAll()
	default:
		state.logger.Debug("batteries@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *BatteriesActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("batteries@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_BATTERIES,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetBatteriesInfoRequest:
		state.logger.Debug("batteries@default GetBatteriesInfoRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.NewBackgroundTask(ctx, func() (*backgroundTaskResult, error) {
			resp, err := state.getBatteriesInfo()
			if err != nil {
				return nil, err
			}
			return &backgroundTaskResult{message: *resp, replyTo: sender}, nil
		}).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetBatteriesInfoResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(5 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.GetBatteryReportsRequest:
		state.logger.Debug("batteries@default GetBatteryReportsRequest")
		sender := ctx.Sender()
		actorutil.NewBackgroundTask(ctx, func() (*backgroundTaskResult, error) {
			resp, err := state.getBatteryReports()
			if err != nil {
				return nil, err
			}
			return &backgroundTaskResult{message: *resp, replyTo: sender}, nil
		}).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetBatteryReportsResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(5 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Stopping:
		state.closeAll()
	default:
		state.logger.Debug("batteries@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *BatteriesActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("batteries@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.closeAll()
	default:
		state.logger.Debug("batteries@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *BatteriesActor) getBatteriesInfo() (*domain.GetBatteriesInfoResponse, error) {
	infos := make([]*bmsmodbus.BatteryInfo, 0, len(state.batteries))
	for _, batt := range state.batteries {
		info, err := batt.GetInfo()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return &domain.GetBatteriesInfoResponse{
		Batteries: infos,
	}, nil
}

// getBatteryReports reads the charge params of every battery. A failed
// read on any battery fails the whole cycle so the aggregator never
// acts on a partial view of the fleet.
func (state *BatteriesActor) getBatteryReports() (*domain.GetBatteryReportsResponse, error) {
	reports := make([]domain.BatteryChargeReport, 0, len(state.batteries))
	for _, batt := range state.batteries {
		params, err := batt.GetChargeParams()
		if err != nil {
			return nil, err
		}
		mode, err := domain.ParseChargeMode(params.ChargeMode)
		if err != nil {
			return nil, err
		}
		reports = append(reports, domain.BatteryChargeReport{
			ChargeMode:         mode,
			ChargeVoltageLimit: params.ChargeVoltageLimit,
			StateOfCharge:      params.StateOfCharge,
		})
	}
	return &domain.GetBatteryReportsResponse{
		Reports: reports,
	}, nil
}

func (state *BatteriesActor) closeAll() {
	for _, batt := range state.batteries {
		batt.Close()
	}
}
