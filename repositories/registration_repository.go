package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/event-teams/models"
	"github.com/lib/pq"
)

var (
	ErrRegistrationNotFound     = errors.New("registration not found")
	ErrRegistrationConflict     = errors.New("user is already registered for this event")
	ErrRegistrationUserInvalid  = errors.New("registration user conflict or invalid")
	ErrRegistrationEventInvalid = errors.New("registration event conflict or invalid")
)

// RegistrationRepository определяет интерфейс для строк регистрации.
// Методы с SQLExecutor участвуют в транзакции принятия запроса.
type RegistrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error

	// Delete возвращает true, если строка существовала. Отсутствие строки
	// не ошибка: unenroll идемпотентен.
	Delete(ctx context.Context, userID, eventID int) (bool, error)

	// TeamIDForUser возвращает team_id регистрации пользователя
	// (nil — регистрация без команды, ErrRegistrationNotFound — нет строки).
	TeamIDForUser(ctx context.Context, exec SQLExecutor, userID, eventID int) (*int, error)

	// UpdateTeamID переводит регистрацию на команду teamID (nil — убрать из команды).
	UpdateTeamID(ctx context.Context, exec SQLExecutor, eventID int, teamID *int, userID int) error

	ListByEvent(ctx context.Context, eventID int) ([]*models.Registration, error)
	ListTeamEventsByUser(ctx context.Context, userID int) ([]*models.EnrolledEvent, error)
	ListSingleEventsByUser(ctx context.Context, userID int) ([]*models.EnrolledEvent, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO event_registrations (user_id, event_id, team_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		reg.UserID,
		reg.EventID,
		reg.TeamID,
	).Scan(&reg.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				return ErrRegistrationConflict
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "event_registrations_user_id_fkey":
					return ErrRegistrationUserInvalid
				case "event_registrations_event_id_fkey":
					return ErrRegistrationEventInvalid
				}
			}
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, userID, eventID int) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM event_registrations WHERE user_id = $1 AND event_id = $2`,
		userID, eventID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete registration: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *postgresRegistrationRepository) TeamIDForUser(ctx context.Context, exec SQLExecutor, userID, eventID int) (*int, error) {
	executor := r.getExecutor(exec)

	var teamID *int
	err := executor.QueryRowContext(ctx,
		`SELECT team_id FROM event_registrations WHERE user_id = $1 AND event_id = $2`,
		userID, eventID,
	).Scan(&teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to find registration team: %w", err)
	}
	return teamID, nil
}

func (r *postgresRegistrationRepository) UpdateTeamID(ctx context.Context, exec SQLExecutor, eventID int, teamID *int, userID int) error {
	executor := r.getExecutor(exec)

	result, err := executor.ExecContext(ctx,
		`UPDATE event_registrations SET team_id = $1 WHERE user_id = $2 AND event_id = $3`,
		teamID, userID, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to update registration team: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.Registration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, event_id, team_id, created_at
		 FROM event_registrations WHERE event_id = $1 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations by event: %w", err)
	}
	defer rows.Close()

	regs := make([]*models.Registration, 0)
	for rows.Next() {
		var reg models.Registration
		if scanErr := rows.Scan(&reg.UserID, &reg.EventID, &reg.TeamID, &reg.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", scanErr)
		}
		regs = append(regs, &reg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registration rows: %w", err)
	}
	return regs, nil
}

func (r *postgresRegistrationRepository) ListTeamEventsByUser(ctx context.Context, userID int) ([]*models.EnrolledEvent, error) {
	query := `
		SELECT er.event_id, e.name, e.start_time, e.deadline, e.min_team_member_count, er.team_id
		FROM event_registrations er
		JOIN events e ON e.id = er.event_id
		WHERE e.is_team_event = TRUE AND er.user_id = $1
		ORDER BY e.start_time ASC`
	return r.listEnrolled(ctx, query, true, userID)
}

func (r *postgresRegistrationRepository) ListSingleEventsByUser(ctx context.Context, userID int) ([]*models.EnrolledEvent, error) {
	query := `
		SELECT er.event_id, e.name, e.start_time, e.deadline
		FROM event_registrations er
		JOIN events e ON e.id = er.event_id
		WHERE e.is_team_event = FALSE AND er.user_id = $1
		ORDER BY e.start_time ASC`
	return r.listEnrolled(ctx, query, false, userID)
}

func (r *postgresRegistrationRepository) listEnrolled(ctx context.Context, query string, withTeam bool, userID int) ([]*models.EnrolledEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrolled events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.EnrolledEvent, 0)
	for rows.Next() {
		var event models.EnrolledEvent
		var scanErr error
		if withTeam {
			scanErr = rows.Scan(&event.EventID, &event.EventName, &event.StartTime, &event.Deadline,
				&event.MinTeamMemberCount, &event.TeamID)
		} else {
			scanErr = rows.Scan(&event.EventID, &event.EventName, &event.StartTime, &event.Deadline)
		}
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan enrolled event row: %w", scanErr)
		}
		events = append(events, &event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrolled event rows: %w", err)
	}
	return events, nil
}
