package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/event-teams/models"
	"github.com/lib/pq"
)

var (
	ErrRequestNotFound    = errors.New("team request not found")
	ErrRequestConflict    = errors.New("team request already exists")
	ErrRequestUserInvalid = errors.New("team request user conflict or invalid")
)

// TeamRequestRepository определяет интерфейс для запросов на формирование команд.
// Методы с SQLExecutor участвуют в транзакции принятия запроса.
type TeamRequestRepository interface {
	// Create создает запрос со статусом pending, заполняет ID и CreatedAt.
	Create(ctx context.Context, req *models.TeamRequest) error

	FindByID(ctx context.Context, id int) (*models.TeamRequest, error)

	// FindBySides ищет запрос от requesterID к requesteeID в той же области
	// видимости (команда teamID либо пара при nil). pendingOnly ограничивает
	// поиск незакрытыми запросами.
	FindBySides(ctx context.Context, requesterID, requesteeID, eventID int, teamID *int, pendingOnly bool) (*models.TeamRequest, error)

	// MarkAccepted переводит запрос в accepted и проставляет команду.
	MarkAccepted(ctx context.Context, exec SQLExecutor, id, teamID int) error

	// MarkDeclinedIfLive переводит запрос в declined, только пока его
	// expires_on ещё не прошёл. Возвращает false, если строка не изменилась.
	MarkDeclinedIfLive(ctx context.Context, id int, now time.Time) (bool, error)

	Delete(ctx context.Context, exec SQLExecutor, id int) error

	// ListRequesteeIDsByRequester — адресаты парных запросов отправителя
	// (team_id IS NULL), кроме запроса excludeRequestID.
	ListRequesteeIDsByRequester(ctx context.Context, exec SQLExecutor, eventID, requesterID, excludeRequestID int) ([]int, error)

	// ListRequesteeIDsByTeam — адресаты запросов команды, кроме excludeRequestID.
	ListRequesteeIDsByTeam(ctx context.Context, exec SQLExecutor, eventID, teamID, excludeRequestID int) ([]int, error)

	// ListPendingSoloByRequester — незакрытые парные запросы, отправленные
	// пользователем, кроме excludeRequestID.
	ListPendingSoloByRequester(ctx context.Context, exec SQLExecutor, eventID, requesterID, excludeRequestID int) ([]*models.TeamRequest, error)

	// ReassignSoloToTeam переводит незакрытые парные запросы пользователя
	// на команду teamID, чтобы они продолжали адресоваться правильной стороне.
	ReassignSoloToTeam(ctx context.Context, exec SQLExecutor, teamID, requesterID, eventID int) error

	ListIncoming(ctx context.Context, requesteeID, eventID int) ([]*models.TeamRequestInfo, error)
	ListOutgoingByRequester(ctx context.Context, requesterID, eventID int) ([]*models.TeamRequestInfo, error)
	ListOutgoingByTeam(ctx context.Context, teamID, eventID, excludeUserID int) ([]*models.TeamRequestInfo, error)

	// DeleteForUserOnEvent чистит запросы при отписке пользователя от события:
	// парные в обе стороны и все отправленные пользователем.
	DeleteForUserOnEvent(ctx context.Context, userID, eventID int) error
}

type postgresTeamRequestRepository struct {
	db *sql.DB
}

func NewPostgresTeamRequestRepository(db *sql.DB) TeamRequestRepository {
	return &postgresTeamRequestRepository{db: db}
}

func (r *postgresTeamRequestRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const requestColumns = `id, requester_id, requestee_id, event_id, team_id, status, expires_on, created_at`

func (r *postgresTeamRequestRepository) Create(ctx context.Context, req *models.TeamRequest) error {
	query := `
		INSERT INTO team_requests (requester_id, requestee_id, event_id, team_id, status, expires_on)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		req.RequesterID,
		req.RequesteeID,
		req.EventID,
		req.TeamID,
		req.Status,
		req.ExpiresOn,
	).Scan(&req.ID, &req.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				return ErrRequestConflict
			case "23503": // foreign_key_violation
				return ErrRequestUserInvalid
			}
		}
		return fmt.Errorf("failed to create team request: %w", err)
	}
	return nil
}

func scanRequest(rowScanner interface{ Scan(dest ...interface{}) error }, req *models.TeamRequest) error {
	return rowScanner.Scan(
		&req.ID,
		&req.RequesterID,
		&req.RequesteeID,
		&req.EventID,
		&req.TeamID,
		&req.Status,
		&req.ExpiresOn,
		&req.CreatedAt,
	)
}

func (r *postgresTeamRequestRepository) FindByID(ctx context.Context, id int) (*models.TeamRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM team_requests WHERE id = $1`, requestColumns)

	req := &models.TeamRequest{}
	if err := scanRequest(r.db.QueryRowContext(ctx, query, id), req); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to find team request: %w", err)
	}
	return req, nil
}

func (r *postgresTeamRequestRepository) FindBySides(ctx context.Context, requesterID, requesteeID, eventID int, teamID *int, pendingOnly bool) (*models.TeamRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM team_requests
		WHERE requester_id = $1 AND requestee_id = $2 AND event_id = $3`, requestColumns)
	args := []interface{}{requesterID, requesteeID, eventID}

	if teamID != nil {
		args = append(args, *teamID)
		query += fmt.Sprintf(" AND team_id = $%d", len(args))
	} else {
		query += " AND team_id IS NULL"
	}
	if pendingOnly {
		query += fmt.Sprintf(" AND status = %d", models.RequestPending)
	}
	query += " LIMIT 1"

	req := &models.TeamRequest{}
	if err := scanRequest(r.db.QueryRowContext(ctx, query, args...), req); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to find team request by sides: %w", err)
	}
	return req, nil
}

func (r *postgresTeamRequestRepository) MarkAccepted(ctx context.Context, exec SQLExecutor, id, teamID int) error {
	executor := r.getExecutor(exec)

	result, err := executor.ExecContext(ctx,
		`UPDATE team_requests SET status = $1, team_id = $2 WHERE id = $3`,
		models.RequestAccepted, teamID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark team request accepted: %w", err)
	}
	return checkAffectedRows(result, ErrRequestNotFound)
}

func (r *postgresTeamRequestRepository) MarkDeclinedIfLive(ctx context.Context, id int, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE team_requests SET status = $1 WHERE id = $2 AND expires_on > $3`,
		models.RequestDeclined, id, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to decline team request: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *postgresTeamRequestRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)

	result, err := executor.ExecContext(ctx, `DELETE FROM team_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team request: %w", err)
	}
	return checkAffectedRows(result, ErrRequestNotFound)
}

func (r *postgresTeamRequestRepository) ListRequesteeIDsByRequester(ctx context.Context, exec SQLExecutor, eventID, requesterID, excludeRequestID int) ([]int, error) {
	return r.listIDs(ctx, exec, `
		SELECT requestee_id FROM team_requests
		WHERE team_id IS NULL AND event_id = $1 AND requester_id = $2 AND id != $3`,
		eventID, requesterID, excludeRequestID)
}

func (r *postgresTeamRequestRepository) ListRequesteeIDsByTeam(ctx context.Context, exec SQLExecutor, eventID, teamID, excludeRequestID int) ([]int, error) {
	return r.listIDs(ctx, exec, `
		SELECT requestee_id FROM team_requests
		WHERE team_id = $2 AND event_id = $1 AND id != $3`,
		eventID, teamID, excludeRequestID)
}

func (r *postgresTeamRequestRepository) listIDs(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]int, error) {
	executor := r.getExecutor(exec)

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list request ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan request id: %w", scanErr)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating request ids: %w", err)
	}
	return ids, nil
}

func (r *postgresTeamRequestRepository) ListPendingSoloByRequester(ctx context.Context, exec SQLExecutor, eventID, requesterID, excludeRequestID int) ([]*models.TeamRequest, error) {
	executor := r.getExecutor(exec)

	query := fmt.Sprintf(`
		SELECT %s FROM team_requests
		WHERE team_id IS NULL AND event_id = $1 AND requester_id = $2 AND id != $3 AND status = $4`,
		requestColumns)

	rows, err := executor.QueryContext(ctx, query, eventID, requesterID, excludeRequestID, models.RequestPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*models.TeamRequest, 0)
	for rows.Next() {
		var req models.TeamRequest
		if scanErr := scanRequest(rows, &req); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team request row: %w", scanErr)
		}
		requests = append(requests, &req)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team request rows: %w", err)
	}
	return requests, nil
}

func (r *postgresTeamRequestRepository) ReassignSoloToTeam(ctx context.Context, exec SQLExecutor, teamID, requesterID, eventID int) error {
	executor := r.getExecutor(exec)

	_, err := executor.ExecContext(ctx,
		`UPDATE team_requests SET team_id = $1
		 WHERE requester_id = $2 AND event_id = $3 AND team_id IS NULL AND status = $4`,
		teamID, requesterID, eventID, models.RequestPending,
	)
	if err != nil {
		return fmt.Errorf("failed to reassign requests to team: %w", err)
	}
	return nil
}

func (r *postgresTeamRequestRepository) ListIncoming(ctx context.Context, requesteeID, eventID int) ([]*models.TeamRequestInfo, error) {
	query := `
		SELECT tr.id, tr.requester_id, tr.status, u.email, u.display_name
		FROM team_requests tr
		JOIN users u ON tr.requester_id = u.id
		WHERE tr.requestee_id = $1 AND tr.event_id = $2
		ORDER BY tr.created_at DESC`
	return r.listInfo(ctx, query, requesteeID, eventID)
}

func (r *postgresTeamRequestRepository) ListOutgoingByRequester(ctx context.Context, requesterID, eventID int) ([]*models.TeamRequestInfo, error) {
	query := `
		SELECT tr.id, tr.requestee_id, tr.status, u.email, u.display_name
		FROM team_requests tr
		JOIN users u ON tr.requestee_id = u.id
		WHERE tr.requester_id = $1 AND tr.event_id = $2
		ORDER BY tr.created_at DESC`
	return r.listInfo(ctx, query, requesterID, eventID)
}

func (r *postgresTeamRequestRepository) ListOutgoingByTeam(ctx context.Context, teamID, eventID, excludeUserID int) ([]*models.TeamRequestInfo, error) {
	query := `
		SELECT tr.id, tr.requestee_id, tr.status, u.email, u.display_name
		FROM team_requests tr
		JOIN users u ON tr.requestee_id = u.id
		WHERE tr.team_id = $1 AND tr.event_id = $2 AND u.id != $3
		ORDER BY tr.created_at DESC`
	return r.listInfo(ctx, query, teamID, eventID, excludeUserID)
}

func (r *postgresTeamRequestRepository) listInfo(ctx context.Context, query string, args ...interface{}) ([]*models.TeamRequestInfo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list team requests: %w", err)
	}
	defer rows.Close()

	infos := make([]*models.TeamRequestInfo, 0)
	for rows.Next() {
		var info models.TeamRequestInfo
		if scanErr := rows.Scan(&info.RequestID, &info.UserID, &info.Status, &info.Email, &info.DisplayName); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team request info row: %w", scanErr)
		}
		infos = append(infos, &info)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team request info rows: %w", err)
	}
	return infos, nil
}

func (r *postgresTeamRequestRepository) DeleteForUserOnEvent(ctx context.Context, userID, eventID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM team_requests
		 WHERE (requestee_id = $1 OR requester_id = $1) AND event_id = $2 AND team_id IS NULL`,
		userID, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete pair requests for user: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM team_requests WHERE requester_id = $1 AND event_id = $2`,
		userID, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete sent requests for user: %w", err)
	}
	return nil
}
