package app

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/maine/promo_offers_bot/internal/metrics"
	"github.com/maine/promo_offers_bot/internal/offer"
)

// По умолчанию циклы запускаются раз в полчаса
const defaultInterval = 30 * time.Minute

// CycleRunner исполняет один цикл обработки офферов.
type CycleRunner interface {
	Run(ctx context.Context) (offer.CycleReport, error)
}

// Scheduler запускает циклы с фиксированным интервалом. Первый цикл
// стартует немедленно; если к моменту тика предыдущий цикл ещё не
// завершился, тик пропускается.
type Scheduler struct {
	cycle    CycleRunner
	interval time.Duration
	inFlight *semaphore.Weighted
	onReport func(offer.CycleReport)
}

// NewScheduler создаёт планировщик. onReport может быть nil; если задан,
// вызывается после каждого завершённого цикла.
func NewScheduler(cycle CycleRunner, interval time.Duration, onReport func(offer.CycleReport)) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Scheduler{
		cycle:    cycle,
		interval: interval,
		inFlight: semaphore.NewWeighted(1),
		onReport: onReport,
	}
}

// Run блокируется до отмены контекста. Перед возвратом дожидается
// завершения текущего цикла, чтобы не оборвать запись журнала отправок.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("Scheduler started, interval %s", s.interval)

	go s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.waitInFlight()
			log.Println("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			go s.runOnce(ctx)
		}
	}
}

// RunOnce исполняет ровно один цикл, минуя расписание. Используется
// командой разового запуска.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.inFlight.TryAcquire(1) {
		log.Println("Cycle already in flight, refusing to start another")
		return nil
	}
	defer s.inFlight.Release(1)

	return s.execute(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.inFlight.TryAcquire(1) {
		log.Println("Previous cycle still running, skipping this tick")
		metrics.RecordCycleSkipped()
		return
	}
	defer s.inFlight.Release(1)

	if err := s.execute(ctx); err != nil {
		log.Printf("Cycle failed: %v", err)
	}
}

func (s *Scheduler) execute(ctx context.Context) error {
	started := time.Now()
	report, err := s.cycle.Run(ctx)
	duration := time.Since(started)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordCycle(status, duration)

	if s.onReport != nil {
		s.onReport(report)
	}

	return err
}

func (s *Scheduler) waitInFlight() {
	// Контекст уже отменён, поэтому ждём на фоновом
	if err := s.inFlight.Acquire(context.Background(), 1); err != nil {
		return
	}
	s.inFlight.Release(1)
}
