// Package scheduler выполняет отложенные доменные действия: перевод на
// запасные события в дедлайн и периодическую чистку завершившихся событий.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/event-teams/models"
	"github.com/Dosada05/event-teams/services"
)

const defaultCleanupInterval = 24 * time.Hour

type Scheduler struct {
	eventService      services.EventService
	enrollmentService services.EnrollmentService
	logger            *slog.Logger
	cleanupInterval   time.Duration

	mu     sync.Mutex
	timers []*time.Timer
	ctx    context.Context

	now func() time.Time
}

func New(
	eventService services.EventService,
	enrollmentService services.EnrollmentService,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		eventService:      eventService,
		enrollmentService: enrollmentService,
		logger:            logger,
		cleanupInterval:   defaultCleanupInterval,
		now:               time.Now,
	}
}

// Run взводит таймеры дедлайнов для уже существующих событий и крутит
// цикл чистки до отмены контекста.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	events, err := s.eventService.ListEvents(ctx)
	if err != nil {
		s.logger.Error("failed to list events on scheduler start", slog.String("error", err.Error()))
	} else {
		for _, event := range events {
			s.ScheduleDeadline(event)
		}
	}

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	s.cleanup(ctx)
	for {
		select {
		case <-ctx.Done():
			s.stopTimers()
			return ctx.Err()
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

// ScheduleDeadline взводит перевод на запасное событие в момент дедлайна.
// События без команды или без запасного варианта пропускаются.
func (s *Scheduler) ScheduleDeadline(event *models.Event) {
	if !event.IsTeamEvent || event.AltEventID == nil {
		return
	}
	delay := event.Deadline.Sub(s.now())
	if delay < 0 {
		return
	}

	eventID := event.ID
	timer := time.AfterFunc(delay, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		if ctx.Err() != nil {
			return
		}

		moved, err := s.enrollmentService.EnrollAlternateOnDeadline(ctx, eventID)
		if err != nil {
			s.logger.Error("deadline fallback failed",
				slog.Int("event_id", eventID),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.Info("deadline fallback executed",
			slog.Int("event_id", eventID),
			slog.Int("moved", moved),
		)
	})

	s.mu.Lock()
	s.timers = append(s.timers, timer)
	s.mu.Unlock()
}

func (s *Scheduler) cleanup(ctx context.Context) {
	deleted, err := s.eventService.DeleteExpiredEvents(ctx)
	if err != nil {
		s.logger.Error("expired event cleanup failed", slog.String("error", err.Error()))
		return
	}
	if deleted > 0 {
		s.logger.Info("expired event cleanup finished", slog.Int("deleted", deleted))
	}
}

func (s *Scheduler) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = nil
}
