package di

import (
	"os"

	"github.com/rs/zerolog"
)

// ProvideLogger creates a zerolog.Logger configured for the runtime
// environment: JSON when BAKERY_LOG_JSON is set (CI, log shippers),
// console format with colors otherwise.
func ProvideLogger() zerolog.Logger {
	if os.Getenv("BAKERY_LOG_JSON") != "" {
		return zerolog.New(os.Stdout).
			Level(zerolog.InfoLevel).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
}
