// Package logging configures zerolog for the process.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Setup returns the process logger: console output, debug level in
// development, info otherwise.
func Setup(environment string) zerolog.Logger {
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stdout}
	return zerolog.New(writer).With().Timestamp().Logger().Level(level)
}
