package server

import (
	"net/http"
	"time"

	"battfleet2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type chargeTargetPayload struct {
	Mode               string  `json:"mode"`
	ChargeVoltageLimit float64 `json:"charge_voltage_limit"`
	BatteryCount       int     `json:"battery_count"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/chargetarget", s.ChargeTargetHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// ChargeTargetHandler serves the latest aggregation result, or 404 until
// the first polling cycle completes.
func (s *Server) ChargeTargetHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetChargeTargetRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "charge_target: FAIL")
	}
	response, ok := res.(domain.GetChargeTargetResponse)
	if !ok || response.HasResponseError() {
		return c.String(http.StatusServiceUnavailable, "charge_target: FAIL")
	}
	if response.Target == nil {
		return c.String(http.StatusNotFound, "charge_target: no cycle completed yet")
	}
	return c.JSON(http.StatusOK, chargeTargetPayload{
		Mode:               response.Target.Mode.String(),
		ChargeVoltageLimit: response.Target.ChargeVoltageLimit,
		BatteryCount:       response.Target.BatteryCount,
	})
}
