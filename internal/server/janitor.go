// Package server schedules the background sweeps that bound the ephemeral
// per-token and per-IP maps.
package server

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartJanitor runs the periodic cleanup jobs: expired rate-limit windows on
// the configured sweep interval and idle registration-gate entries every ten
// minutes. The returned cron runner is stopped by the caller on shutdown.
func (s *Server) StartJanitor() *cron.Cron {
	c := cron.New()

	sweepSpec := "@every " + s.cfg.RateLimit.SweepInterval.String()
	if _, err := c.AddFunc(sweepSpec, func() {
		if n := s.limiter.Sweep(time.Now()); n > 0 {
			s.log.Debug("swept expired rate-limit windows", zap.Int("removed", n))
		}
	}); err != nil {
		s.log.Error("could not schedule rate-limit sweep", zap.Error(err))
	}

	if _, err := c.AddFunc("@every 10m", func() {
		if n := s.gate.prune(10 * time.Minute); n > 0 {
			s.log.Debug("pruned idle registration-gate entries", zap.Int("removed", n))
		}
	}); err != nil {
		s.log.Error("could not schedule gate prune", zap.Error(err))
	}

	c.Start()
	return c
}
