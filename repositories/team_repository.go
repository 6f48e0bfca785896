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
	ErrTeamNotFound       = errors.New("team not found")
	ErrTeamMemberNotFound = errors.New("team member not found")
	ErrTeamMemberConflict = errors.New("user is already a member of this team")
)

// TeamRepository управляет командами и их составом (join-таблица team_members).
type TeamRepository interface {
	// Create создает команду с указанными участниками и возвращает её id.
	Create(ctx context.Context, exec SQLExecutor, memberIDs ...int) (int, error)

	AddMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error
	RemoveMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error
	MemberCount(ctx context.Context, exec SQLExecutor, teamID int) (int, error)
	Delete(ctx context.Context, exec SQLExecutor, teamID int) error

	// DeleteBatch удаляет несколько команд одним запросом; составы
	// каскадируются, team_id регистраций обнуляется схемой.
	DeleteBatch(ctx context.Context, teamIDs []int) error

	ListMembers(ctx context.Context, teamID int) ([]*models.TeamMember, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, memberIDs ...int) (int, error) {
	executor := r.getExecutor(exec)

	var teamID int
	if err := executor.QueryRowContext(ctx, `INSERT INTO teams DEFAULT VALUES RETURNING id`).Scan(&teamID); err != nil {
		return 0, fmt.Errorf("failed to create team: %w", err)
	}

	for _, userID := range memberIDs {
		if err := r.addMember(ctx, executor, teamID, userID); err != nil {
			return 0, err
		}
	}
	return teamID, nil
}

func (r *postgresTeamRepository) AddMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error {
	return r.addMember(ctx, r.getExecutor(exec), teamID, userID)
}

func (r *postgresTeamRepository) addMember(ctx context.Context, executor SQLExecutor, teamID, userID int) error {
	_, err := executor.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`,
		teamID, userID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				return ErrTeamMemberConflict
			case "23503": // foreign_key_violation
				return ErrTeamNotFound
			}
		}
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) RemoveMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error {
	executor := r.getExecutor(exec)

	result, err := executor.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}
	return checkAffectedRows(result, ErrTeamMemberNotFound)
}

func (r *postgresTeamRepository) MemberCount(ctx context.Context, exec SQLExecutor, teamID int) (int, error) {
	executor := r.getExecutor(exec)

	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM team_members WHERE team_id = $1`,
		teamID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count team members: %w", err)
	}
	return count, nil
}

func (r *postgresTeamRepository) Delete(ctx context.Context, exec SQLExecutor, teamID int) error {
	executor := r.getExecutor(exec)

	result, err := executor.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) DeleteBatch(ctx context.Context, teamIDs []int) error {
	if len(teamIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM teams WHERE id = ANY($1)`,
		pq.Array(teamIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to delete teams: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) ListMembers(ctx context.Context, teamID int) ([]*models.TeamMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tm.team_id, tm.user_id, u.email, u.display_name
		 FROM team_members tm
		 JOIN users u ON u.id = tm.user_id
		 WHERE tm.team_id = $1
		 ORDER BY tm.created_at ASC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.TeamMember, 0)
	for rows.Next() {
		var member models.TeamMember
		if scanErr := rows.Scan(&member.TeamID, &member.UserID, &member.Email, &member.DisplayName); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team member row: %w", scanErr)
		}
		members = append(members, &member)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team member rows: %w", err)
	}
	return members, nil
}
