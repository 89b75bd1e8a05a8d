// Package jobs runs the background maintenance schedule.
package jobs

import (
	"github.com/mlegall/assohub/internal/sessions"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper deletes expired session rows on a schedule. Without it the
// user_sessions table grows forever, logout being the only other cleanup.
type Sweeper struct {
	cron     *cron.Cron
	sessions *sessions.Service
	log      zerolog.Logger
}

func NewSweeper(svc *sessions.Service, log zerolog.Logger) *Sweeper {
	return &Sweeper{cron: cron.New(), sessions: svc, log: log}
}

// Start registers the hourly sweep and launches the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler; a running sweep finishes first.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	n, err := s.sessions.SweepExpired()
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("swept expired sessions")
	}
}
