package service

import (
	"context"
	"time"

	"github.com/bookflow/bookflow/internal/domain/appointment"
	"github.com/bookflow/bookflow/pkg/metrics"
	"go.uber.org/zap"
)

// HoldSweeper reverts lapsed holds in the background. Each run is one
// bounded pass; transient storage errors are logged and retried on the
// next tick, indefinitely — the sweep must eventually release every
// expired hold even across restarts.
type HoldSweeper struct {
	repo      appointment.Repository
	clock     Clock
	collector *metrics.Collector
	log       *zap.Logger
}

func NewHoldSweeper(repo appointment.Repository, clock Clock, collector *metrics.Collector, log *zap.Logger) *HoldSweeper {
	return &HoldSweeper{repo: repo, clock: clock, collector: collector, log: log}
}

func (s *HoldSweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := s.repo.ExpireHolds(ctx, s.clock.Now())
	if err != nil {
		s.log.Error("hold expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		s.collector.HoldsExpired.Add(float64(expired))
		s.log.Info("expired holds released", zap.Int("count", expired))
	}
}
