package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/rs/zerolog"

	"github.com/ilievs/powercycle/config"
	"github.com/ilievs/powercycle/core"
	"github.com/ilievs/powercycle/device"
	"github.com/ilievs/powercycle/mqtt"
	"github.com/ilievs/powercycle/schedule"
	"github.com/ilievs/powercycle/system"
)

type overrideRequest struct {
	State string `json:"state"`
}

// RunApplication wires the process: embedded broker, relay controller, one
// schedule table and scheduler per configured device, and the HTTP status
// surface. It blocks until the process is signalled to stop.
func RunApplication(cfg config.Config, logger zerolog.Logger) error {

	registry := device.NewRegistry()

	broker := mqtt.NewBroker(mqtt.BrokerConfig{
		Addr:           cfg.MQTTAddr,
		DeviceUsername: cfg.MQTTUsername,
		DevicePassword: cfg.MQTTPassword,
	}, logger)
	err := broker.Start(
		[]mochi.Hook{new(mqtt.PresenceHook)},
		[]any{&mqtt.PresenceHookOptions{Listener: registry, Logger: logger}})
	if err != nil {
		return fmt.Errorf("failed to start mqtt broker: %w", err)
	}
	defer broker.Close()

	client := mqtt.NewClient(broker.Server())
	monitor := device.NewMonitor(registry, logger)
	if err := monitor.Start(client); err != nil {
		return fmt.Errorf("failed to subscribe to device state: %w", err)
	}
	ctrl := device.NewRelayController(client, logger)

	deviceTimes, err := schedule.LoadFile(cfg.ScheduleFile, cfg.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}
	if len(deviceTimes) == 0 {
		return fmt.Errorf("schedule file %s has no devices", cfg.ScheduleFile)
	}

	tables := make(map[string]*core.ScheduleTable)
	var schedulers []*core.PowerScheduler
	for name, times := range deviceTimes {
		table, err := core.NewScheduleTable(name, times.On, times.Off)
		if err != nil {
			// A misconfigured device must not prevent the others from
			// starting.
			logger.Error().Err(err).Str("device", name).Msg("skipping device")
			continue
		}

		registry.Add(name)
		s := core.NewPowerScheduler(table, ctrl, logger, registry.SetPower)
		if err := s.Start(); err != nil {
			logger.Error().Err(err).Str("device", name).Msg("failed to start scheduler")
			continue
		}
		tables[name] = table
		schedulers = append(schedulers, s)
	}
	if len(schedulers) == 0 {
		return errors.New("no device scheduler could be started")
	}

	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Routes
	e.GET("/devices", func(c echo.Context) error {
		return c.JSON(http.StatusOK, registry.List())
	})

	e.GET("/devices/:deviceId", func(c echo.Context) error {
		status, ok := registry.Get(c.Param("deviceId"))
		if !ok {
			return c.NoContent(http.StatusNotFound)
		}
		return c.JSON(http.StatusOK, status)
	})

	e.GET("/devices/:deviceId/schedule", func(c echo.Context) error {
		table, ok := tables[c.Param("deviceId")]
		if !ok {
			return c.NoContent(http.StatusNotFound)
		}
		return c.JSON(http.StatusOK, table.Events())
	})

	// Manual override through the same controller the schedulers use. The
	// schedule reasserts its own state at the next transition.
	e.POST("/devices/:deviceId/command", func(c echo.Context) error {
		name := c.Param("deviceId")
		if _, ok := registry.Get(name); !ok {
			return c.NoContent(http.StatusNotFound)
		}

		req := new(overrideRequest)
		if err := c.Bind(req); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		state, err := core.ParsePowerState(req.State)
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		if state == core.PowerOn {
			err = ctrl.SetOn(name)
		} else {
			err = ctrl.SetOff(name)
		}
		if err != nil {
			return c.String(http.StatusBadGateway, err.Error())
		}
		registry.SetPower(time.Now().UTC(), name, state)
		return c.NoContent(http.StatusOK)
	})

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("failed to start http server")
		}
	}()

	// Run until interrupted
	system.WaitForOsSignal()
	logger.Info().Msg("shutting down")

	for _, s := range schedulers {
		s.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}

	return nil
}
