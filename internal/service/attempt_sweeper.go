package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"github.com/mvtrinh/examgate/config"
)

// StartAttemptSweeper runs the server-side deadline backstop: clients normally
// submit on timer expiry themselves, but an abandoned tab must not leave an
// attempt open forever. The sweeper closes overdue attempts through the same
// conditional completion path as an explicit submit.
func StartAttemptSweeper(lc fx.Lifecycle, cfg *config.Config, attempts AttemptService) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go run(ctx, cfg.Attempt.SweepInterval, attempts)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func run(ctx context.Context, interval time.Duration, attempts AttemptService) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("Attempt sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Attempt sweeper stopped")
			return
		case <-ticker.C:
			expired, err := attempts.ExpireOverdue()
			if err != nil {
				log.Error().Err(err).Msg("Attempt sweep failed")
				continue
			}
			if expired > 0 {
				log.Info().Int("expired", expired).Msg("Closed overdue attempts")
			}
		}
	}
}
