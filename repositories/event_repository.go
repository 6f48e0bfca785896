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
	ErrEventNotFound         = errors.New("event not found")
	ErrEventOrganizerInvalid = errors.New("event organizer conflict or invalid")
	ErrEventAltInvalid       = errors.New("event alternate event conflict or invalid")
)

// EventRepository определяет интерфейс для работы с событиями.
type EventRepository interface {
	// Create создает событие и заполняет ID и CreatedAt у переданного объекта.
	Create(ctx context.Context, event *models.Event) error

	GetByID(ctx context.Context, id int) (*models.Event, error)
	List(ctx context.Context) ([]*models.Event, error)
	ListByName(ctx context.Context, name string) ([]*models.Event, error)

	// Delete удаляет событие; регистрации и запросы каскадируются схемой.
	Delete(ctx context.Context, id int) error

	// ListExpired возвращает события, чьё end_time уже прошло.
	ListExpired(ctx context.Context, now time.Time) ([]*models.Event, error)
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

const eventColumns = `id, name, is_alt_event, is_team_event, start_time, end_time, deadline,
	min_team_member_count, max_team_member_count, organizer_id, alt_event_id, created_at`

func (r *postgresEventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (name, is_alt_event, is_team_event, start_time, end_time, deadline,
			min_team_member_count, max_team_member_count, organizer_id, alt_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		event.Name,
		event.IsAltEvent,
		event.IsTeamEvent,
		event.StartTime,
		event.EndTime,
		event.Deadline,
		event.MinTeamMemberCount,
		event.MaxTeamMemberCount,
		event.OrganizerID,
		event.AltEventID,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" { // foreign_key_violation
			switch pqErr.Constraint {
			case "events_organizer_id_fkey":
				return ErrEventOrganizerInvalid
			case "events_alt_event_id_fkey":
				return ErrEventAltInvalid
			}
		}
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func scanEvent(rowScanner interface{ Scan(dest ...interface{}) error }, e *models.Event) error {
	return rowScanner.Scan(
		&e.ID,
		&e.Name,
		&e.IsAltEvent,
		&e.IsTeamEvent,
		&e.StartTime,
		&e.EndTime,
		&e.Deadline,
		&e.MinTeamMemberCount,
		&e.MaxTeamMemberCount,
		&e.OrganizerID,
		&e.AltEventID,
		&e.CreatedAt,
	)
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE id = $1`, eventColumns)

	event := &models.Event{}
	if err := scanEvent(r.db.QueryRowContext(ctx, query, id), event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	return event, nil
}

func (r *postgresEventRepository) List(ctx context.Context) ([]*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events ORDER BY start_time ASC`, eventColumns)
	return r.list(ctx, query)
}

func (r *postgresEventRepository) ListByName(ctx context.Context, name string) ([]*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE name = $1 ORDER BY start_time ASC`, eventColumns)
	return r.list(ctx, query, name)
}

func (r *postgresEventRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE end_time <= $1`, eventColumns)
	return r.list(ctx, query, now)
}

func (r *postgresEventRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		var event models.Event
		if scanErr := scanEvent(rows, &event); scanErr != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", scanErr)
		}
		events = append(events, &event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

func (r *postgresEventRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}
