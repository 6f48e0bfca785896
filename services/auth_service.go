package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/event-teams/models"
	"github.com/Dosada05/event-teams/repositories"
	"golang.org/x/crypto/bcrypt"
)

// AuthService проверяет учётные данные; выпуск токена остаётся на
// HTTP-слое.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.User, error)
}

type authService struct {
	userRepo repositories.UserRepository
}

func NewAuthService(userRepo repositories.UserRepository) AuthService {
	return &authService{userRepo: userRepo}
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			// Не раскрываем, что именно не совпало.
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrAuthInvalidCredentials
	}
	return user, nil
}
