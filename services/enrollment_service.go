package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/event-teams/models"
	"github.com/Dosada05/event-teams/repositories"
)

// BatchEnrollResult — итог пакетного зачисления. Каждый элемент входа
// обрабатывается независимо, ошибки не прерывают остальных.
type BatchEnrollResult struct {
	Succeeded []int          `json:"succeeded"`
	Failed    map[int]string `json:"failed,omitempty"`
}

// EnrollmentService определяет интерфейс для записи на события.
type EnrollmentService interface {
	Enroll(ctx context.Context, userID, eventID int) error

	// Unenroll идемпотентен: повторная отписка не ошибка. Вместе с
	// регистрацией удаляются запросы пользователя на этом событии.
	Unenroll(ctx context.Context, userID, eventID int) error

	// AutoEnrollInEvents зачисляет пользователя во все ещё не начавшиеся
	// события, чьё имя совпадает с его классификацией.
	AutoEnrollInEvents(ctx context.Context, userID int) (*BatchEnrollResult, error)

	// BulkEnrollByEventType зачисляет в событие всех пользователей, чья
	// классификация совпадает с именем события.
	BulkEnrollByEventType(ctx context.Context, eventID int) (*BatchEnrollResult, error)

	// EnrollAlternateOnDeadline переводит участников без укомплектованной
	// команды на запасное событие и удаляет их неполные команды.
	// Возвращает количество переведённых участников.
	EnrollAlternateOnDeadline(ctx context.Context, eventID int) (int, error)

	EnrolledTeamEvents(ctx context.Context, userID int) ([]*models.EnrolledEvent, error)
	EnrolledSingleEvents(ctx context.Context, userID int) ([]*models.EnrolledEvent, error)
	UsersEnrolledInEvent(ctx context.Context, eventID int) ([]*models.Registration, error)
}

type enrollmentService struct {
	registrationRepo repositories.RegistrationRepository
	eventRepo        repositories.EventRepository
	userRepo         repositories.UserRepository
	teamRepo         repositories.TeamRepository
	requestRepo      repositories.TeamRequestRepository
	vocabulary       EventVocabulary
	caches           *RegistrationCaches
	notifier         Notifier
	logger           *slog.Logger

	now func() time.Time
}

func NewEnrollmentService(
	registrationRepo repositories.RegistrationRepository,
	eventRepo repositories.EventRepository,
	userRepo repositories.UserRepository,
	teamRepo repositories.TeamRepository,
	requestRepo repositories.TeamRequestRepository,
	vocabulary EventVocabulary,
	caches *RegistrationCaches,
	notifier Notifier,
	logger *slog.Logger,
) EnrollmentService {
	return &enrollmentService{
		registrationRepo: registrationRepo,
		eventRepo:        eventRepo,
		userRepo:         userRepo,
		teamRepo:         teamRepo,
		requestRepo:      requestRepo,
		vocabulary:       vocabulary,
		caches:           caches,
		notifier:         notifier,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *enrollmentService) Enroll(ctx context.Context, userID, eventID int) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to check user: %w", err)
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to check event: %w", err)
	}

	now := s.now()

	// Запасные события принимают опоздавших: на них переводят после
	// дедлайна основного, когда их собственный старт уже мог пройти.
	if now.After(event.StartTime) && !event.IsAltEvent {
		return ErrEventAlreadyStarted
	}

	// Членство должно покрывать событие целиком, не только момент записи.
	if user.MembershipExpiresAt == nil || !user.MembershipExpiresAt.After(event.EndTime) {
		return ErrNotSubscribed
	}

	if event.IsTeamEvent && now.After(event.Deadline) {
		return ErrDeadlinePassed
	}

	reg := &models.Registration{UserID: userID, EventID: eventID}
	if err := s.registrationRepo.Create(ctx, reg); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRegistrationConflict):
			return ErrAlreadyEnrolled
		case errors.Is(err, repositories.ErrRegistrationUserInvalid):
			return ErrUserNotFound
		case errors.Is(err, repositories.ErrRegistrationEventInvalid):
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to enroll user: %w", err)
	}

	s.caches.InvalidateUser(userID)
	s.caches.InvalidateEvent(eventID)

	s.logger.Info("user enrolled", slog.Int("user_id", userID), slog.Int("event_id", eventID))
	s.notifier.UserEnrolled(userID, eventID)
	return nil
}

func (s *enrollmentService) Unenroll(ctx context.Context, userID, eventID int) error {
	existed, err := s.registrationRepo.Delete(ctx, userID, eventID)
	if err != nil {
		return fmt.Errorf("failed to unenroll user: %w", err)
	}

	// Запросы чистятся и для уже отсутствующей регистрации: повторный
	// вызов должен оставлять то же конечное состояние.
	if err := s.requestRepo.DeleteForUserOnEvent(ctx, userID, eventID); err != nil {
		return fmt.Errorf("failed to clean up requests on unenroll: %w", err)
	}

	if existed {
		s.caches.InvalidateUser(userID)
		s.caches.InvalidateEvent(eventID)
		s.logger.Info("user unenrolled", slog.Int("user_id", userID), slog.Int("event_id", eventID))
	}
	return nil
}

func (s *enrollmentService) AutoEnrollInEvents(ctx context.Context, userID int) (*BatchEnrollResult, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if user.EventType == nil || !s.vocabulary.Contains(*user.EventType) {
		return nil, fmt.Errorf("%w: user has no valid event type", ErrValidationFailed)
	}

	events, err := s.eventRepo.ListByName(ctx, *user.EventType)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for auto enrollment: %w", err)
	}

	now := s.now()
	result := &BatchEnrollResult{
		Succeeded: make([]int, 0, len(events)),
		Failed:    make(map[int]string),
	}
	for _, event := range events {
		// Запасные события комплектуются только переводом в дедлайн.
		if event.IsAltEvent || now.After(event.StartTime) {
			continue
		}
		if err := s.Enroll(ctx, userID, event.ID); err != nil {
			if Kind(err) == KindInfrastructure {
				return nil, err
			}
			result.Failed[event.ID] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, event.ID)
	}
	return result, nil
}

func (s *enrollmentService) BulkEnrollByEventType(ctx context.Context, eventID int) (*BatchEnrollResult, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to check event: %w", err)
	}

	userIDs, err := s.userRepo.ListIDsByEventType(ctx, event.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list users for bulk enrollment: %w", err)
	}

	result := &BatchEnrollResult{
		Succeeded: make([]int, 0, len(userIDs)),
		Failed:    make(map[int]string),
	}
	for _, userID := range userIDs {
		if err := s.Enroll(ctx, userID, eventID); err != nil {
			if Kind(err) == KindInfrastructure {
				return nil, err
			}
			result.Failed[userID] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, userID)
	}

	s.logger.Info("bulk enrollment finished",
		slog.Int("event_id", eventID),
		slog.Int("enrolled", len(result.Succeeded)),
		slog.Int("skipped", len(result.Failed)),
	)
	return result, nil
}

func (s *enrollmentService) EnrollAlternateOnDeadline(ctx context.Context, eventID int) (int, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return 0, ErrEventNotFound
		}
		return 0, fmt.Errorf("failed to check event: %w", err)
	}
	if !event.IsTeamEvent || event.AltEventID == nil {
		return 0, nil
	}

	regs, err := s.registrationRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to list registrations: %w", err)
	}

	teamSizes := make(map[int]int)
	for _, reg := range regs {
		if reg.TeamID != nil {
			teamSizes[*reg.TeamID]++
		}
	}

	moved := 0
	staleTeams := make(map[int]struct{})
	for _, reg := range regs {
		incomplete := reg.TeamID == nil
		if reg.TeamID != nil && teamSizes[*reg.TeamID] < event.MinTeamMemberCount {
			incomplete = true
			staleTeams[*reg.TeamID] = struct{}{}
		}
		if !incomplete {
			continue
		}

		// Каждый участник переводится независимо: ошибка одного не должна
		// оставить остальных на событии, в котором они не смогут выступить.
		if _, err := s.registrationRepo.Delete(ctx, reg.UserID, eventID); err != nil {
			s.logger.Error("failed to remove registration on deadline",
				slog.Int("user_id", reg.UserID),
				slog.Int("event_id", eventID),
				slog.String("error", err.Error()),
			)
			continue
		}
		alt := &models.Registration{UserID: reg.UserID, EventID: *event.AltEventID}
		if err := s.registrationRepo.Create(ctx, alt); err != nil && !errors.Is(err, repositories.ErrRegistrationConflict) {
			s.logger.Error("failed to enroll user in alternate event",
				slog.Int("user_id", reg.UserID),
				slog.Int("alt_event_id", *event.AltEventID),
				slog.String("error", err.Error()),
			)
			continue
		}
		moved++
	}

	if len(staleTeams) > 0 {
		teamIDs := make([]int, 0, len(staleTeams))
		for id := range staleTeams {
			teamIDs = append(teamIDs, id)
		}
		if err := s.teamRepo.DeleteBatch(ctx, teamIDs); err != nil {
			return moved, fmt.Errorf("failed to delete incomplete teams: %w", err)
		}
	}

	s.caches.Purge()
	s.logger.Info("deadline fallback finished",
		slog.Int("event_id", eventID),
		slog.Int("moved", moved),
		slog.Int("teams_deleted", len(staleTeams)),
	)
	return moved, nil
}

func (s *enrollmentService) EnrolledTeamEvents(ctx context.Context, userID int) ([]*models.EnrolledEvent, error) {
	if events, ok := s.caches.teamEvents.Get(userID); ok {
		return events, nil
	}
	events, err := s.registrationRepo.ListTeamEventsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team events: %w", err)
	}
	s.caches.teamEvents.Set(userID, events)
	return events, nil
}

func (s *enrollmentService) EnrolledSingleEvents(ctx context.Context, userID int) ([]*models.EnrolledEvent, error) {
	if events, ok := s.caches.singleEvents.Get(userID); ok {
		return events, nil
	}
	events, err := s.registrationRepo.ListSingleEventsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list single events: %w", err)
	}
	s.caches.singleEvents.Set(userID, events)
	return events, nil
}

func (s *enrollmentService) UsersEnrolledInEvent(ctx context.Context, eventID int) ([]*models.Registration, error) {
	if regs, ok := s.caches.eventUsers.Get(eventID); ok {
		return regs, nil
	}
	regs, err := s.registrationRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event registrations: %w", err)
	}
	s.caches.eventUsers.Set(eventID, regs)
	return regs, nil
}
