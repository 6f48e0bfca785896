package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/event-teams/cache"
	"github.com/Dosada05/event-teams/models"
	"github.com/Dosada05/event-teams/repositories"
)

const (
	maxEventNameLength = 200
	eventListCacheSize = 64

	allEventsKey = "all"
)

// EventService определяет интерфейс для управления событиями.
type EventService interface {
	CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error)
	GetEventByID(ctx context.Context, id int) (*models.Event, error)
	ListEvents(ctx context.Context) ([]*models.Event, error)
	ListEventsByName(ctx context.Context, name string) ([]*models.Event, error)

	// DeleteExpiredEvents удаляет события, чьё время окончания прошло,
	// и возвращает количество удалённых.
	DeleteExpiredEvents(ctx context.Context) (int, error)
}

type eventService struct {
	eventRepo  repositories.EventRepository
	userRepo   repositories.UserRepository
	vocabulary EventVocabulary
	notifier   Notifier
	logger     *slog.Logger

	// listCache держит списки событий; любая запись сбрасывает его целиком.
	listCache *cache.Cache[string, []*models.Event]

	now func() time.Time
}

func NewEventService(
	eventRepo repositories.EventRepository,
	userRepo repositories.UserRepository,
	vocabulary EventVocabulary,
	notifier Notifier,
	logger *slog.Logger,
) EventService {
	return &eventService{
		eventRepo:  eventRepo,
		userRepo:   userRepo,
		vocabulary: vocabulary,
		notifier:   notifier,
		logger:     logger,
		listCache:  cache.New[string, []*models.Event](eventListCacheSize),
		now:        time.Now,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	// Запасное событие всегда некомандное: флаг главнее остальных полей.
	if event.IsAltEvent {
		event.IsTeamEvent = false
	}

	if err := s.validateEvent(ctx, event); err != nil {
		return nil, err
	}

	// Поля, не имеющие смысла для данного вида события, обнуляются, чтобы
	// в сторе не оседали противоречивые комбинации.
	if !event.IsTeamEvent {
		event.MinTeamMemberCount = 0
		event.MaxTeamMemberCount = 0
		event.AltEventID = nil
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		switch {
		case errors.Is(err, repositories.ErrEventOrganizerInvalid):
			return nil, ErrUserNotFound
		case errors.Is(err, repositories.ErrEventAltInvalid):
			return nil, ErrEventAltNotFound
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.listCache.Purge()
	s.logger.Info("event created",
		slog.Int("event_id", event.ID),
		slog.String("name", event.Name),
		slog.Bool("is_team_event", event.IsTeamEvent),
	)
	s.notifier.EventCreated(event)
	return event, nil
}

func (s *eventService) validateEvent(ctx context.Context, event *models.Event) error {
	if event.Name == "" || len(event.Name) > maxEventNameLength || !s.vocabulary.Contains(event.Name) {
		return ErrEventNameInvalid
	}

	now := s.now()
	if !event.StartTime.After(now) {
		return ErrEventStartInPast
	}
	if event.EndTime.Before(event.StartTime) {
		return ErrEventEndBeforeStart
	}
	if !event.Deadline.After(event.StartTime) || !event.Deadline.Before(event.EndTime) {
		return ErrEventDeadlineOutOfRange
	}

	if event.IsTeamEvent {
		if event.MinTeamMemberCount < 2 || event.MaxTeamMemberCount < 2 ||
			event.MaxTeamMemberCount < event.MinTeamMemberCount {
			return ErrEventTeamSizeInvalid
		}
	}

	organizer, err := s.userRepo.GetByID(ctx, event.OrganizerID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to check organizer: %w", err)
	}
	if !organizer.IsAdmin {
		return ErrOrganizerNotAllowed
	}

	if event.IsTeamEvent {
		// У командного события обязано быть запасное: после дедлайна туда
		// перебрасываются участники неукомплектованных команд.
		if event.AltEventID == nil {
			return ErrEventAltRequired
		}
		alt, err := s.eventRepo.GetByID(ctx, *event.AltEventID)
		if err != nil {
			if errors.Is(err, repositories.ErrEventNotFound) {
				return ErrEventAltNotFound
			}
			return fmt.Errorf("failed to check alternate event: %w", err)
		}
		if alt.IsTeamEvent {
			return ErrEventAltIsTeamEvent
		}
		// Командное событие должно закончиться не позже запасного, иначе
		// переброшенным участникам достанется уже завершившееся событие.
		if event.EndTime.After(alt.EndTime) {
			return ErrEventAltEndsTooEarly
		}
	}
	return nil
}

func (s *eventService) GetEventByID(ctx context.Context, id int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context) ([]*models.Event, error) {
	if events, ok := s.listCache.Get(allEventsKey); ok {
		return events, nil
	}
	events, err := s.eventRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	s.listCache.Set(allEventsKey, events)
	return events, nil
}

func (s *eventService) ListEventsByName(ctx context.Context, name string) ([]*models.Event, error) {
	if !s.vocabulary.Contains(name) {
		return nil, ErrEventNameInvalid
	}
	cacheKey := "name:" + name
	if events, ok := s.listCache.Get(cacheKey); ok {
		return events, nil
	}
	events, err := s.eventRepo.ListByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by name: %w", err)
	}
	s.listCache.Set(cacheKey, events)
	return events, nil
}

func (s *eventService) DeleteExpiredEvents(ctx context.Context) (int, error) {
	expired, err := s.eventRepo.ListExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired events: %w", err)
	}

	deleted := 0
	for _, event := range expired {
		if err := s.eventRepo.Delete(ctx, event.ID); err != nil {
			// Событие могло исчезнуть между списком и удалением; остальные
			// всё равно обрабатываем.
			if errors.Is(err, repositories.ErrEventNotFound) {
				continue
			}
			s.logger.Error("failed to delete expired event",
				slog.Int("event_id", event.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.listCache.Purge()
		s.logger.Info("expired events cleaned up", slog.Int("deleted", deleted))
	}
	return deleted, nil
}
