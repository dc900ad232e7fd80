package jobs

import (
	"context"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/gatherly/events-api/internal/pkg/logger"
	"github.com/robfig/cron/v3"
)

// CompletionSweeper flips published events whose end time has passed to
// completed, so partner analytics and payout eligibility stay current without
// a write on the read path.
type CompletionSweeper struct {
	repo domain.EventRepository
	cron *cron.Cron
	spec string
}

func NewCompletionSweeper(repo domain.EventRepository, spec string) *CompletionSweeper {
	if spec == "" {
		spec = "@every 10m"
	}
	return &CompletionSweeper{
		repo: repo,
		cron: cron.New(),
		spec: spec,
	}
}

func (s *CompletionSweeper) Start(ctx context.Context) error {
	log := logger.Logger.With().Str("component", "completion_sweeper").Logger()

	_, err := s.cron.AddFunc(s.spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		n, err := s.repo.CompleteEndedEvents(runCtx, time.Now().UTC())
		if err != nil {
			log.Warn().Err(err).Msg("completion sweep failed")
			return
		}
		if n > 0 {
			log.Info().Int64("completed", n).Msg("events marked completed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Info().Str("spec", s.spec).Msg("started")

	go func() {
		<-ctx.Done()
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		log.Info().Msg("stopped")
	}()
	return nil
}
