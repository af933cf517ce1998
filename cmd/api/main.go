package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "battfleet2mqtt/internal/adapter/actor"
	"battfleet2mqtt/internal/config"
	"battfleet2mqtt/internal/core/actor"
	"battfleet2mqtt/internal/core/domain"
	"battfleet2mqtt/internal/core/port"
	"battfleet2mqtt/internal/core/service"
	"battfleet2mqtt/internal/server"
	"battfleet2mqtt/internal/util/actorutil"
	"battfleet2mqtt/pkg/bmsmodbus"
	"battfleet2mqtt/pkg/vedirect"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// logrus logger for the protocol packages
	pkgLogger := logrus.New()
	pkgLogger.SetLevel(logrusLevel(cfg.LogLevel))

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// init batteries actor provider
	batteriesProv, err := batteriesActorProvider(cfg, logger, pkgLogger)
	if err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, batteriesProv,
			shuntActorProvider(cfg, logger, pkgLogger),
			mqttActorProvider(cfg, logger),
			aggregatorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	// periodic health watchdog
	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	if err := startHealthWatchdog(schedCtx, ctx, pid, logger); err != nil {
		logger.Warn("could not start health watchdog", zap.Error(err))
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => BATTFLEET_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("BATTFLEET_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("battfleet")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if len(cfg.Batteries) == 0 {
		return nil, errors.New("config param batteries should list at least one battery")
	}
	for _, batt := range cfg.Batteries {
		if batt.Host == "" {
			return nil, errors.New("config param batteries[].host should not be empty")
		}
		if batt.UnitId > 255 {
			return nil, errors.New("config param batteries[].unit_id should be <= 255")
		}
	}
	if cfg.AggregatorConfig.PollIntervalMillis < 1000 {
		return nil, errors.New("config param aggregator.poll_interval_millis should be >= 1000")
	}
	if _, err := domain.ParseAggregatedChargeMode(cfg.AggregatorConfig.InitialMode); err != nil {
		return nil, errors.New("config param aggregator.initial_mode should be one of BULK_OR_ABSORPTION, FLOAT_TRANSITION, FLOAT")
	}
	if cfg.Shunt.Enabled && cfg.Shunt.Device == "" {
		return nil, errors.New("config param shunt.device should not be empty when shunt.enabled is true")
	}

	return &cfg, nil
}

func batteriesActorProvider(cfg *config.Config, logger *zap.Logger, pkgLogger *logrus.Logger) (actor.BatteriesActorProvider, error) {

	readers := make([]bmsmodbus.BatteryModbusReader, 0, len(cfg.Batteries))
	for _, batt := range cfg.Batteries {
		reader, err := bmsmodbus.CreateBatteryModbusReader(batt.Host, batt.Port, uint8(batt.UnitId),
			1*time.Second, pkgLogger)
		if err != nil {
			return nil, err
		}
		readers = append(readers, reader)
	}

	return func() *adactor.BatteriesActor {
		return adactor.NewBatteriesActor(readers, logger)
	}, nil
}

func shuntActorProvider(cfg *config.Config, logger *zap.Logger, pkgLogger *logrus.Logger) actor.ShuntActorProvider {
	return func() *adactor.ShuntActor {
		return adactor.NewShuntActor(vedirect.NewShuntMonitor(cfg.Shunt.Device, pkgLogger), logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func aggregatorProvider(cfg *config.Config, logger *zap.Logger) actor.AggregatorProvider {
	return func() port.ChargeModeAggregator {
		initial, err := domain.ParseAggregatedChargeMode(cfg.AggregatorConfig.InitialMode)
		if err != nil {
			// validated by initConfig
			initial = domain.AggregatedFloat
		}
		return service.NewStickyChargeModeAggregator(initial, logger)
	}
}

// startHealthWatchdog schedules a periodic bridge-level health probe. An
// unhealthy bridge is logged loudly so operators notice a wedged child
// even when nothing scrapes /healthcheck.
func startHealthWatchdog(ctx context.Context, rootContext *pactor.RootContext, masterActor *pactor.PID, logger *zap.Logger) error {

	sched := quartz.NewStdScheduler()
	sched.Start(ctx)

	healthJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		res, err := rootContext.RequestFuture(masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
		if err != nil {
			logger.Error("health watchdog: no response from master", zap.Error(err))
			return false, err
		}
		resp, ok := res.(domain.ActorHealthResponse)
		if !ok || !resp.Healthy {
			logger.Error("health watchdog: bridge unhealthy")
			return false, nil
		}
		return true, nil
	})

	return sched.ScheduleJob(quartz.NewJobDetail(healthJob, quartz.NewJobKey("bridge_health")),
		quartz.NewSimpleTrigger(1*time.Minute))
}

func logrusLevel(level zapcore.Level) logrus.Level {
	switch {
	case level <= zap.DebugLevel:
		return logrus.DebugLevel
	case level == zap.InfoLevel:
		return logrus.InfoLevel
	case level == zap.WarnLevel:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "battfleet")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("aggregator.poll_interval_millis", 5000)
	viper.SetDefault("aggregator.initial_mode", "FLOAT")
	viper.SetDefault("shunt.enabled", false)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
