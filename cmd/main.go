// @title           Smart Home Collector API
// @version         1.0
// @description     Sensor collection, device control and the dehumidifier automation for Home Assistant and Homey.
// @BasePath        /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smarthome_collector/internal/config"
	"smarthome_collector/internal/handlers"
	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/notify"
	"smarthome_collector/internal/platform/factory"
	"smarthome_collector/internal/repository"
	"smarthome_collector/internal/repository/db"
	"smarthome_collector/internal/server"
	"smarthome_collector/internal/service"

	"github.com/google/uuid"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level)

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	adapter, err := factory.Create(cfg.Platform.Name, cfg.Platform.URL, cfg.Platform.Token, log)
	if err != nil {
		log.Fatalw("failed to create platform adapter", "err", err, "platform", cfg.Platform.Name)
	}

	influx := connectInflux(cfg.InfluxDB, log)
	publisher, closeMQTT := connectMQTT(cfg.MQTT, log)

	if cfg.Auth.SigningKey == "" {
		cfg.Auth.SigningKey = uuid.NewString()
		log.Warnw("auth.signing_key not set; using a random key, tokens will not survive a restart")
	}

	var points repository.PointWriter
	if influx != nil {
		points = influx.Writer()
	}
	repos := repository.NewRepository(sqlDB, points, log)
	services := service.NewService(repos, adapter, publisher, cfg, log)
	apiHandler := handlers.NewHandler(services, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := services.Dehumidifier.Restore(ctx); err != nil {
		log.Warnw("dehumidifier_state_restore_failed", "err", err)
	}
	if cfg.Collector.Enabled {
		services.Collector.Start()
	}
	go services.Dehumidifier.Run(ctx, cfg.Automation.Dehumidifier.CheckInterval)

	srv := &server.Server{}
	runHTTPServer(srv, cfg.HTTP.Port, apiHandler, log)
	log.Infow("started", "platform", adapter.Name(), "port", server.Addr(cfg.HTTP.Port))

	waitForShutdown(cancel, srv, log)

	if err := services.Collector.Stop(); err != nil {
		log.Errorw("collector_stop_failed", "err", err)
	}
	closeMQTT()
	if influx != nil {
		influx.Close()
	}
}

// connectInflux returns nil when InfluxDB is disabled or unreachable; readings then stay in SQLite only.
func connectInflux(cfg config.InfluxDBConfig, log *logger.Logger) *repository.InfluxClient {
	client, err := repository.ConnectInflux(cfg, log)
	switch {
	case errors.Is(err, repository.ErrInfluxDisabled):
		return nil
	case err != nil:
		log.Warnw("influxdb unavailable; mirroring disabled", "err", err)
		return nil
	}
	return client
}

func connectMQTT(cfg config.MQTTConfig, log *logger.Logger) (notify.Publisher, func()) {
	pub, err := notify.Connect(cfg, log)
	switch {
	case errors.Is(err, notify.ErrDisabled):
		return notify.Nop{}, func() {}
	case err != nil:
		log.Warnw("mqtt unavailable; command notifications disabled", "err", err)
		return notify.Nop{}, func() {}
	}
	return pub, pub.Close
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
