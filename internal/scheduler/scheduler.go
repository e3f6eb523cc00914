package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"melisma/internal/logging"
	"melisma/internal/scanner"
)

// Scheduler runs periodic library refreshes on a cron schedule. The engine's
// single-flight guard makes overlapping triggers harmless.
type Scheduler struct {
	cron   *cron.Cron
	engine *scanner.Engine
	logger *logging.Logger
}

// NewScheduler creates a scheduler for the given engine.
func NewScheduler(engine *scanner.Engine, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		engine: engine,
		logger: logger,
	}
}

// Start registers the refresh schedule and begins running jobs. An empty
// spec disables periodic refreshes.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	if spec == "" {
		return nil
	}

	_, err := s.cron.AddFunc(spec, func() {
		outcome, err := s.engine.RefreshAllFolders(ctx)
		if err != nil {
			if s.logger != nil {
				s.logger.Zerolog().Error().Err(err).Msg("Scheduled library refresh failed")
			}
			return
		}
		if outcome != nil && s.logger != nil {
			s.logger.WithFields(map[string]interface{}{
				"scan_id":   outcome.ScanID,
				"added":     outcome.Added,
				"modified":  outcome.Modified,
				"removed":   outcome.Removed,
				"completed": outcome.Completed,
			}).Info().Msg("Scheduled library refresh finished")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid rescan schedule %q: %w", spec, err)
	}

	s.cron.Start()
	return nil
}

// Stop halts job scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
