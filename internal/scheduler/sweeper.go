// Package scheduler runs the proactive refresh sweep: a cron job that
// refreshes access tokens shortly before they expire so interactive
// requests rarely pay the refresh latency. The sweep is an optimization;
// on-demand refresh keeps everything correct without it.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"coursehub/internal/common/errors"
	"coursehub/internal/common/logging"
)

// CredentialLister finds users whose tokens expire soon.
type CredentialLister interface {
	ListExpiringGoogleCredentials(ctx context.Context, before time.Time) ([]string, error)
}

// Refresher refreshes one user's token if it expires inside the window.
type Refresher interface {
	RefreshExpiringWithin(ctx context.Context, userID string, window time.Duration) error
}

// Sweeper schedules and runs the refresh sweep.
type Sweeper struct {
	cron      *cron.Cron
	store     CredentialLister
	tokens    Refresher
	schedule  string
	lookahead time.Duration
	logger    logging.Logger
}

// NewSweeper creates a sweeper with a cron schedule like "*/15 * * * *".
func NewSweeper(store CredentialLister, tokens Refresher, schedule string, lookahead time.Duration, logger logging.Logger) *Sweeper {
	if lookahead <= 0 {
		lookahead = 20 * time.Minute
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Sweeper{
		cron:      cron.New(),
		store:     store,
		tokens:    tokens,
		schedule:  schedule,
		lookahead: lookahead,
		logger:    logger,
	}
}

// Start registers the cron job and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return errors.ConfigError("invalid sweep schedule: " + err.Error())
	}

	s.cron.Start()
	s.logger.Info("token refresh sweep started",
		logging.Field{Key: "schedule", Value: s.schedule},
		logging.Field{Key: "lookahead", Value: s.lookahead.String()})
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs a single sweep. Per-user failures are logged and never
// stop the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) {
	userIDs, err := s.store.ListExpiringGoogleCredentials(ctx, time.Now().Add(s.lookahead))
	if err != nil {
		s.logger.Error("failed to list expiring credentials", err)
		return
	}
	if len(userIDs) == 0 {
		return
	}

	refreshed := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}

		if err := s.tokens.RefreshExpiringWithin(ctx, userID, s.lookahead); err != nil {
			switch errors.GetType(err) {
			case errors.ErrTypeReauthRequired, errors.ErrTypeNotLinked:
				s.logger.Debug("skipping credential pending user action",
					logging.Field{Key: "user_id", Value: userID})
			default:
				s.logger.Warn("proactive refresh failed",
					logging.Field{Key: "user_id", Value: userID},
					logging.Err(err))
			}
			continue
		}
		refreshed++
	}

	s.logger.Info("token refresh sweep finished",
		logging.Field{Key: "candidates", Value: len(userIDs)},
		logging.Field{Key: "refreshed", Value: refreshed})
}
