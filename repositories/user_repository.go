package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/event-teams/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository — каталог участников. Снаружи системы это внешний
// справочник (членство, корпоративные аккаунты); ядро видит только этот
// интерфейс.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// CorporateAccounts возвращает корпоративные аккаунты пользователя.
	// Для права формировать команду список должен состоять ровно из одного id.
	CorporateAccounts(ctx context.Context, userID int) ([]int, error)

	// ListIDsByEventType — пользователи с данной классификацией события.
	ListIDsByEventType(ctx context.Context, eventType string) ([]int, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `id, email, display_name, is_admin, corporate_account_id, event_type,
	membership_expires_at, password_hash, created_at`

func scanUser(rowScanner interface{ Scan(dest ...interface{}) error }, u *models.User) error {
	return rowScanner.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.IsAdmin,
		&u.CorporateAccountID,
		&u.EventType,
		&u.MembershipExpiresAt,
		&u.PasswordHash,
		&u.CreatedAt,
	)
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	user := &models.User{}
	if err := scanUser(r.db.QueryRowContext(ctx, query, id), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	user := &models.User{}
	if err := scanUser(r.db.QueryRowContext(ctx, query, email), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

func (r *postgresUserRepository) CorporateAccounts(ctx context.Context, userID int) ([]int, error) {
	var accountID *int
	err := r.db.QueryRowContext(ctx,
		`SELECT corporate_account_id FROM users WHERE id = $1`,
		userID,
	).Scan(&accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find corporate accounts: %w", err)
	}
	if accountID == nil {
		return []int{}, nil
	}
	return []int{*accountID}, nil
}

func (r *postgresUserRepository) ListIDsByEventType(ctx context.Context, eventType string) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM users WHERE event_type = $1`,
		eventType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users by event type: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", scanErr)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user ids: %w", err)
	}
	return ids, nil
}
