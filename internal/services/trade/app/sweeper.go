package server

import (
	"context"
	"log"
	"time"

	"github.com/roperia/roperia/internal/services/trade/domain"
)

const defaultSweepInterval = time.Minute

// Sweeper periodically expires overdue proposals and reminds receivers of
// proposals close to their deadline.
type Sweeper struct {
	service  *domain.Service
	interval time.Duration
}

// NewSweeper builds the background sweep loop.
func NewSweeper(service *domain.Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{service: service, interval: interval}
}

// Run sweeps immediately, then on every tick until the context is cancelled.
// Cancellation is the normal way to stop the loop and returns nil.
func (s *Sweeper) Run(ctx context.Context) error {
	if s == nil || s.service == nil {
		return domain.ErrStoreNotConfigured
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs both passes independently: a failed expiry pass does not block
// reminders, and vice versa.
func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.service.ExpireDue(ctx)
	if err != nil {
		log.Printf("trade sweep: expire due proposals: %v", err)
	} else if len(expired) > 0 {
		log.Printf("trade sweep: expired %d proposals", len(expired))
	}

	reminded, err := s.service.RemindExpiring(ctx)
	if err != nil {
		log.Printf("trade sweep: remind expiring proposals: %v", err)
	} else if reminded > 0 {
		log.Printf("trade sweep: reminded %d receivers", reminded)
	}
}
