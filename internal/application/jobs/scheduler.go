package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler dispara RunJob para cada job con Interval > 0. La exclusión mutua entre
// réplicas la da el lock del Runner, no el scheduler.
type Scheduler struct {
	runner *Runner

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler construye el scheduler sobre el runner.
func NewScheduler(runner *Runner) *Scheduler {
	return &Scheduler{runner: runner}
}

// Start arranca un ticker por job programado. Llamar Start dos veces no duplica los tickers.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.runner.mu.RLock()
	var scheduled []Job
	for _, j := range s.runner.jobs {
		if j.Interval > 0 {
			scheduled = append(scheduled, j)
		}
	}
	s.runner.mu.RUnlock()

	for _, j := range scheduled {
		s.wg.Add(1)
		go s.loop(ctx, j.Name, j.Interval)
		log.Info().Str("job", j.Name).Dur("interval", j.Interval).Msg("scheduler: job programado")
	}
}

// Stop detiene los tickers y espera a que termine la ejecución en curso.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	log.Info().Msg("scheduler: detenido")
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.runner.RunJob(ctx, name, nil)
			if err != nil {
				log.Error().Err(err).Str("job", name).Msg("scheduler: error ejecutando job")
				continue
			}
			log.Debug().Str("job", name).Str("status", res.Status).Str("reason", res.Reason).Msg("scheduler: tick")
		}
	}
}
