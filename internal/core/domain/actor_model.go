package domain

import (
	"battfleet2mqtt/pkg/bmsmodbus"
	"battfleet2mqtt/pkg/vedirect"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_BATTERIES    = "batteries"
	ACTOR_ID_SHUNT        = "shunt"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_CHARGEFLOW   = "chargeflow"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type GetBatteriesInfoRequest struct {
	ActorRequestMixIn
}

type GetBatteriesInfoResponse struct {
	ActorResponseMixIn
	Batteries []*bmsmodbus.BatteryInfo
}

type GetBatteryReportsRequest struct {
	ActorRequestMixIn
}

type GetBatteryReportsResponse struct {
	ActorResponseMixIn
	Reports []BatteryChargeReport
}

type GetShuntSampleRequest struct {
	ActorRequestMixIn
}

type GetShuntSampleResponse struct {
	ActorResponseMixIn
	// Sample is nil when no fresh measurement is available this cycle.
	Sample *vedirect.ShuntData
}

// ChargeTargetUpdate is the aggregator output for one cycle.
type ChargeTargetUpdate struct {
	Mode               AggregatedChargeMode
	ChargeVoltageLimit float64
	BatteryCount       int
}

type GetChargeTargetRequest struct {
	ActorRequestMixIn
}

type GetChargeTargetResponse struct {
	ActorResponseMixIn
	Target *ChargeTargetUpdate
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
