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

const (
	// requestWindow — максимальный срок жизни запроса.
	requestWindow = 7 * 24 * time.Hour
	// requestGuard — зазор перед дедлайном: запрос, принятый впритык,
	// не должен оставлять команду без времени на комплектование.
	requestGuard = 20 * time.Minute
)

// TeamRequestService определяет интерфейс для запросов на формирование команд.
type TeamRequestService interface {
	// SendRequest создает запрос от requesterID к requesteeID. Если
	// отправитель уже в команде, запрос адресуется в его команду.
	SendRequest(ctx context.Context, requesterID, requesteeID, eventID int) (*models.TeamRequest, error)

	// AcceptRequest принимает запрос: создает пару либо добавляет адресата
	// в команду отправителя. Все изменения применяются в одной транзакции.
	// Возвращает id итоговой команды.
	AcceptRequest(ctx context.Context, requestID int) (int, error)

	DeclineRequest(ctx context.Context, requestID int) error

	// RemoveTeamMember выводит пользователя из команды на событии.
	// Команда без участников удаляется.
	RemoveTeamMember(ctx context.Context, teamID, userID, eventID int) error

	ListRequests(ctx context.Context, userID, eventID int, direction models.RequestDirection) ([]*models.TeamRequestInfo, error)

	// TeamMembers возвращает состав команды пользователя на событии.
	TeamMembers(ctx context.Context, userID, eventID int) ([]*models.TeamMember, error)
}

type teamRequestService struct {
	requestRepo      repositories.TeamRequestRepository
	registrationRepo repositories.RegistrationRepository
	teamRepo         repositories.TeamRepository
	eventRepo        repositories.EventRepository
	userRepo         repositories.UserRepository
	txManager        repositories.TxManager
	caches           *RegistrationCaches
	notifier         Notifier
	logger           *slog.Logger

	now func() time.Time
}

func NewTeamRequestService(
	requestRepo repositories.TeamRequestRepository,
	registrationRepo repositories.RegistrationRepository,
	teamRepo repositories.TeamRepository,
	eventRepo repositories.EventRepository,
	userRepo repositories.UserRepository,
	txManager repositories.TxManager,
	caches *RegistrationCaches,
	notifier Notifier,
	logger *slog.Logger,
) TeamRequestService {
	return &teamRequestService{
		requestRepo:      requestRepo,
		registrationRepo: registrationRepo,
		teamRepo:         teamRepo,
		eventRepo:        eventRepo,
		userRepo:         userRepo,
		txManager:        txManager,
		caches:           caches,
		notifier:         notifier,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *teamRequestService) SendRequest(ctx context.Context, requesterID, requesteeID, eventID int) (*models.TeamRequest, error) {
	if requesterID == requesteeID {
		return nil, fmt.Errorf("%w: cannot send a request to yourself", ErrValidationFailed)
	}

	if _, err := s.getUser(ctx, requesterID); err != nil {
		return nil, err
	}
	if _, err := s.getUser(ctx, requesteeID); err != nil {
		return nil, err
	}

	if err := s.checkCorporateGroup(ctx, requesterID, requesteeID); err != nil {
		return nil, err
	}

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsTeamEvent {
		return nil, fmt.Errorf("%w: event is not a team event", ErrValidationFailed)
	}

	now := s.now()
	if now.After(event.Deadline) {
		return nil, ErrDeadlinePassed
	}

	requesterTeamID, err := s.teamIDOf(ctx, requesterID, eventID)
	if err != nil {
		return nil, err
	}
	requesteeTeamID, err := s.teamIDOf(ctx, requesteeID, eventID)
	if err != nil {
		return nil, err
	}

	if requesterTeamID != nil {
		count, err := s.teamRepo.MemberCount(ctx, nil, *requesterTeamID)
		if err != nil {
			return nil, fmt.Errorf("failed to count team members: %w", err)
		}
		if count >= event.MaxTeamMemberCount {
			return nil, ErrTeamFull
		}
	}

	// Встречный запрос в любом статусе блокирует отправку: стороны должны
	// разбираться с уже существующим, а не плодить зеркальные.
	if err := s.checkReversed(ctx, requesterID, requesteeID, eventID, requesteeTeamID); err != nil {
		return nil, err
	}

	if _, err := s.requestRepo.FindBySides(ctx, requesterID, requesteeID, eventID, requesterTeamID, true); err == nil {
		return nil, ErrRequestAlreadySent
	} else if !errors.Is(err, repositories.ErrRequestNotFound) {
		return nil, fmt.Errorf("failed to check existing request: %w", err)
	}

	req := &models.TeamRequest{
		RequesterID: requesterID,
		RequesteeID: requesteeID,
		EventID:     eventID,
		TeamID:      requesterTeamID,
		Status:      models.RequestPending,
		ExpiresOn:   requestExpiry(now, event.Deadline),
	}
	if err := s.requestRepo.Create(ctx, req); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRequestConflict):
			return nil, ErrRequestAlreadySent
		case errors.Is(err, repositories.ErrRequestUserInvalid):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create team request: %w", err)
	}

	s.logger.Info("team request sent",
		slog.Int("request_id", req.ID),
		slog.Int("requester_id", requesterID),
		slog.Int("requestee_id", requesteeID),
		slog.Int("event_id", eventID),
	)
	s.notifier.RequestCreated(req)
	return req, nil
}

// requestExpiry — срок жизни запроса: неделя, но не дольше, чем осталось
// до дедлайна за вычетом зазора.
func requestExpiry(now, deadline time.Time) time.Time {
	window := deadline.Sub(now.Add(requestGuard))
	if window > requestWindow {
		window = requestWindow
	}
	return now.Add(window)
}

func (s *teamRequestService) checkCorporateGroup(ctx context.Context, requesterID, requesteeID int) error {
	requesterAccounts, err := s.userRepo.CorporateAccounts(ctx, requesterID)
	if err != nil {
		return fmt.Errorf("failed to check corporate accounts: %w", err)
	}
	requesteeAccounts, err := s.userRepo.CorporateAccounts(ctx, requesteeID)
	if err != nil {
		return fmt.Errorf("failed to check corporate accounts: %w", err)
	}
	if len(requesterAccounts) != 1 || len(requesteeAccounts) != 1 ||
		requesterAccounts[0] != requesteeAccounts[0] {
		return ErrCorporateGroupMismatch
	}
	return nil
}

func (s *teamRequestService) checkReversed(ctx context.Context, requesterID, requesteeID, eventID int, requesteeTeamID *int) error {
	scopes := []*int{nil}
	if requesteeTeamID != nil {
		scopes = append(scopes, requesteeTeamID)
	}
	for _, scope := range scopes {
		_, err := s.requestRepo.FindBySides(ctx, requesteeID, requesterID, eventID, scope, false)
		if err == nil {
			return ErrRequestAlreadyReceived
		}
		if !errors.Is(err, repositories.ErrRequestNotFound) {
			return fmt.Errorf("failed to check reversed request: %w", err)
		}
	}
	return nil
}

func (s *teamRequestService) AcceptRequest(ctx context.Context, requestID int) (int, error) {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrRequestNotFound) {
			return 0, ErrRequestNotFound
		}
		return 0, fmt.Errorf("failed to find team request: %w", err)
	}
	if req.Status != models.RequestPending {
		return 0, fmt.Errorf("%w: request is not pending", ErrValidationFailed)
	}

	now := s.now()
	if now.After(req.ExpiresOn) {
		return 0, ErrRequestExpired
	}

	event, err := s.getEvent(ctx, req.EventID)
	if err != nil {
		return 0, err
	}
	if now.After(event.Deadline) {
		return 0, ErrDeadlinePassed
	}

	prevTeamID, err := s.teamIDOf(ctx, req.RequesteeID, req.EventID)
	if err != nil {
		return 0, err
	}

	var teamID int
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if req.TeamID != nil {
			teamID = *req.TeamID
			// Лимит читается той же транзакцией, что и вставка: два
			// конкурентных принятия в одну команду не закоммитятся оба.
			count, err := s.teamRepo.MemberCount(ctx, exec, teamID)
			if err != nil {
				return fmt.Errorf("failed to count team members: %w", err)
			}
			if count >= event.MaxTeamMemberCount {
				return ErrTeamFull
			}
			if err := s.teamRepo.AddMember(ctx, exec, teamID, req.RequesteeID); err != nil {
				return fmt.Errorf("failed to add requestee to team: %w", err)
			}
		} else {
			createdID, err := s.teamRepo.Create(ctx, exec, req.RequesterID, req.RequesteeID)
			if err != nil {
				return fmt.Errorf("failed to create team: %w", err)
			}
			teamID = createdID
			if err := s.registrationRepo.UpdateTeamID(ctx, exec, req.EventID, &teamID, req.RequesterID); err != nil {
				return fmt.Errorf("failed to move requester to team: %w", err)
			}
		}

		if prevTeamID != nil && *prevTeamID != teamID {
			if err := s.removeMemberTx(ctx, exec, *prevTeamID, req.RequesteeID); err != nil {
				return err
			}
		}

		if err := s.registrationRepo.UpdateTeamID(ctx, exec, req.EventID, &teamID, req.RequesteeID); err != nil {
			return fmt.Errorf("failed to move requestee to team: %w", err)
		}

		if err := s.requestRepo.MarkAccepted(ctx, exec, req.ID, teamID); err != nil {
			return fmt.Errorf("failed to mark request accepted: %w", err)
		}

		if err := s.deleteCrossedRequests(ctx, exec, req, teamID); err != nil {
			return err
		}

		// Оставшиеся парные запросы переезжают на новую команду: принявший
		// их теперь будет звать в неё, а не в несуществующую пару.
		if req.TeamID == nil {
			if err := s.requestRepo.ReassignSoloToTeam(ctx, exec, teamID, req.RequesterID, req.EventID); err != nil {
				return fmt.Errorf("failed to reassign requester requests: %w", err)
			}
		}
		if prevTeamID == nil {
			if err := s.requestRepo.ReassignSoloToTeam(ctx, exec, teamID, req.RequesteeID, req.EventID); err != nil {
				return fmt.Errorf("failed to reassign requestee requests: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTeamFull) {
			// Запрос в заполнившуюся команду закрывается, чтобы не висеть
			// до истечения срока.
			if _, declineErr := s.requestRepo.MarkDeclinedIfLive(ctx, req.ID, now); declineErr != nil {
				s.logger.Error("failed to auto-decline request into full team",
					slog.Int("request_id", req.ID),
					slog.String("error", declineErr.Error()),
				)
			}
		}
		return 0, err
	}

	s.caches.InvalidateUser(req.RequesterID)
	s.caches.InvalidateUser(req.RequesteeID)
	s.caches.InvalidateEvent(req.EventID)

	s.logger.Info("team request accepted",
		slog.Int("request_id", req.ID),
		slog.Int("team_id", teamID),
		slog.Int("event_id", req.EventID),
	)
	return teamID, nil
}

// deleteCrossedRequests убирает парные запросы принявшей стороны к людям,
// которых сторона отправителя уже позвала: иначе один адресат мог бы
// попасть в команду дважды разными путями.
func (s *teamRequestService) deleteCrossedRequests(ctx context.Context, exec repositories.SQLExecutor, req *models.TeamRequest, teamID int) error {
	var solicited []int
	var err error
	if req.TeamID != nil {
		solicited, err = s.requestRepo.ListRequesteeIDsByTeam(ctx, exec, req.EventID, teamID, req.ID)
	} else {
		solicited, err = s.requestRepo.ListRequesteeIDsByRequester(ctx, exec, req.EventID, req.RequesterID, req.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to list solicited users: %w", err)
	}
	if len(solicited) == 0 {
		return nil
	}

	solicitedSet := make(map[int]struct{}, len(solicited))
	for _, id := range solicited {
		solicitedSet[id] = struct{}{}
	}

	pending, err := s.requestRepo.ListPendingSoloByRequester(ctx, exec, req.EventID, req.RequesteeID, req.ID)
	if err != nil {
		return fmt.Errorf("failed to list pending requests: %w", err)
	}
	for _, r := range pending {
		if _, ok := solicitedSet[r.RequesteeID]; !ok {
			continue
		}
		if err := s.requestRepo.Delete(ctx, exec, r.ID); err != nil {
			return fmt.Errorf("failed to delete crossed request: %w", err)
		}
	}
	return nil
}

func (s *teamRequestService) DeclineRequest(ctx context.Context, requestID int) error {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrRequestNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("failed to find team request: %w", err)
	}
	if req.Status != models.RequestPending {
		return fmt.Errorf("%w: request is not pending", ErrValidationFailed)
	}

	event, err := s.getEvent(ctx, req.EventID)
	if err != nil {
		return err
	}
	now := s.now()
	if now.After(event.Deadline) {
		return ErrDeadlinePassed
	}

	declined, err := s.requestRepo.MarkDeclinedIfLive(ctx, req.ID, now)
	if err != nil {
		return fmt.Errorf("failed to decline team request: %w", err)
	}
	if !declined {
		return ErrRequestExpired
	}

	s.logger.Info("team request declined", slog.Int("request_id", req.ID))
	return nil
}

func (s *teamRequestService) RemoveTeamMember(ctx context.Context, teamID, userID, eventID int) error {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if s.now().After(event.Deadline) {
		return ErrDeadlinePassed
	}

	currentTeamID, err := s.teamIDOf(ctx, userID, eventID)
	if err != nil {
		return err
	}
	if currentTeamID == nil || *currentTeamID != teamID {
		return ErrTeamMemberNotFound
	}

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.removeMemberTx(ctx, exec, teamID, userID); err != nil {
			return err
		}
		if err := s.registrationRepo.UpdateTeamID(ctx, exec, eventID, nil, userID); err != nil {
			return fmt.Errorf("failed to detach registration from team: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.caches.InvalidateUser(userID)
	s.caches.InvalidateEvent(eventID)

	s.logger.Info("team member removed",
		slog.Int("user_id", userID),
		slog.Int("team_id", teamID),
		slog.Int("event_id", eventID),
	)
	return nil
}

// removeMemberTx выводит участника и удаляет опустевшую команду.
func (s *teamRequestService) removeMemberTx(ctx context.Context, exec repositories.SQLExecutor, teamID, userID int) error {
	if err := s.teamRepo.RemoveMember(ctx, exec, teamID, userID); err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return ErrTeamMemberNotFound
		}
		return fmt.Errorf("failed to remove team member: %w", err)
	}
	count, err := s.teamRepo.MemberCount(ctx, exec, teamID)
	if err != nil {
		return fmt.Errorf("failed to count team members: %w", err)
	}
	if count == 0 {
		if err := s.teamRepo.Delete(ctx, exec, teamID); err != nil {
			return fmt.Errorf("failed to delete empty team: %w", err)
		}
	}
	return nil
}

func (s *teamRequestService) ListRequests(ctx context.Context, userID, eventID int, direction models.RequestDirection) ([]*models.TeamRequestInfo, error) {
	switch direction {
	case models.DirectionIncoming:
		infos, err := s.requestRepo.ListIncoming(ctx, userID, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to list incoming requests: %w", err)
		}
		return infos, nil

	case models.DirectionOutgoing:
		teamID, err := s.teamIDOf(ctx, userID, eventID)
		if err != nil {
			return nil, err
		}
		var infos []*models.TeamRequestInfo
		if teamID == nil {
			infos, err = s.requestRepo.ListOutgoingByRequester(ctx, userID, eventID)
		} else {
			infos, err = s.requestRepo.ListOutgoingByTeam(ctx, *teamID, eventID, userID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list outgoing requests: %w", err)
		}
		return infos, nil

	default:
		return nil, ErrInvalidDirection
	}
}

func (s *teamRequestService) TeamMembers(ctx context.Context, userID, eventID int) ([]*models.TeamMember, error) {
	teamID, err := s.teamIDOf(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if teamID == nil {
		return nil, ErrTeamNotFound
	}

	members, err := s.teamRepo.ListMembers(ctx, *teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	return members, nil
}

func (s *teamRequestService) getUser(ctx context.Context, id int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	return user, nil
}

func (s *teamRequestService) getEvent(ctx context.Context, id int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to check event: %w", err)
	}
	return event, nil
}

// teamIDOf возвращает команду пользователя на событии; регистрация без
// команды и отсутствующая регистрация дают nil.
func (s *teamRequestService) teamIDOf(ctx context.Context, userID, eventID int) (*int, error) {
	teamID, err := s.registrationRepo.TeamIDForUser(ctx, nil, userID, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find registration team: %w", err)
	}
	return teamID, nil
}
