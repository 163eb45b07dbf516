package logger

import (
	"fmt"
	"os"
	"warzone-tracker/internal/config"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func New(cfg *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger.Level(level), nil
}

var Module = fx.Provide(New)
