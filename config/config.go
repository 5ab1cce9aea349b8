// Package config reads process configuration from environment variables.
package config

import (
	"os"
)

type Config struct {
	// Env is "development" (default) or "production".
	Env string

	// HTTPAddr is the listen address of the status/override API.
	HTTPAddr string

	// MQTTAddr is the listen address of the embedded broker.
	MQTTAddr string

	// ScheduleFile is the tab-delimited schedule (device, time, state).
	ScheduleFile string

	// Timezone is the IANA zone the schedule file's times are written in.
	Timezone string

	// MQTTUsername/MQTTPassword are the credentials outlet devices use.
	MQTTUsername string
	MQTTPassword string
}

func Load() Config {
	return Config{
		Env:          getEnv("POWERCYCLE_ENV", "development"),
		HTTPAddr:     getEnv("POWERCYCLE_HTTP_ADDR", ":8080"),
		MQTTAddr:     getEnv("POWERCYCLE_MQTT_ADDR", ":1883"),
		ScheduleFile: getEnv("POWERCYCLE_SCHEDULE_FILE", "schedule.tsv"),
		Timezone:     getEnv("POWERCYCLE_TIMEZONE", "UTC"),
		MQTTUsername: getEnv("POWERCYCLE_MQTT_USERNAME", "outlet"),
		MQTTPassword: getEnv("POWERCYCLE_MQTT_PASSWORD", "outlet"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
