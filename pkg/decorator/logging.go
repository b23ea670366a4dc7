package decorator

import (
	"context"
	"errors"
	"time"

	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/rs/zerolog"
)

type (
	commandLoggingDecorator[C Command, R any] struct {
		base   CommandHandler[C, R]
		logger logger.Logger
	}

	queryLoggingDecorator[Q Query, R Result] struct {
		base   QueryHandler[Q, R]
		logger logger.Logger
	}

	// expectedError marks failures caused by the caller, logged below error
	// level.
	expectedError interface {
		Expected() bool
	}
)

func (d commandLoggingDecorator[C, R]) Handle(ctx context.Context, cmd C) (result R, err error) {
	log := d.logger.WithContext(ctx).With().Str("command", generateActionName(cmd)).Logger()
	start := time.Now()

	log.Debug().Msg("executing command")

	defer func() {
		logOutcome(&log, "command", time.Since(start), err)
	}()

	return d.base.Handle(ctx, cmd)
}

func (d queryLoggingDecorator[Q, R]) Execute(ctx context.Context, query Q) (result R, err error) {
	log := d.logger.WithContext(ctx).With().Str("query", generateActionName(query)).Logger()
	start := time.Now()

	log.Debug().Msg("executing query")

	defer func() {
		logOutcome(&log, "query", time.Since(start), err)
	}()

	return d.base.Execute(ctx, query)
}

func logOutcome(log *zerolog.Logger, kind string, elapsed time.Duration, err error) {
	if err == nil {
		log.Debug().Dur("duration", elapsed).Msg(kind + " executed")

		return
	}

	var expected expectedError
	if errors.As(err, &expected) && expected.Expected() {
		log.Info().Err(err).Dur("duration", elapsed).Msg(kind + " rejected")

		return
	}

	log.Error().Err(err).Dur("duration", elapsed).Msg(kind + " failed")
}
