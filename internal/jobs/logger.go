package jobs

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// NewLogger routes asynq's internal logging through zerolog.
func NewLogger(l zerolog.Logger) asynq.Logger {
	return zlogger{l: l.With().Str("source", "asynq").Logger()}
}

type zlogger struct {
	l zerolog.Logger
}

func (z zlogger) Debug(args ...interface{}) { z.l.Debug().Msg(fmt.Sprint(args...)) }
func (z zlogger) Info(args ...interface{})  { z.l.Info().Msg(fmt.Sprint(args...)) }
func (z zlogger) Warn(args ...interface{})  { z.l.Warn().Msg(fmt.Sprint(args...)) }
func (z zlogger) Error(args ...interface{}) { z.l.Error().Msg(fmt.Sprint(args...)) }
func (z zlogger) Fatal(args ...interface{}) { z.l.Fatal().Msg(fmt.Sprint(args...)) }
