package services

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dosada05/event-teams/models"
)

func TestLogin(t *testing.T) {
	is := is.New(t)
	store := newMemStore()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	is.NoErr(err)
	store.addUser(&models.User{ID: 1, Email: "user@corp.test", PasswordHash: string(hash)})

	svc := NewAuthService(store)
	ctx := context.Background()

	user, err := svc.Login(ctx, "user@corp.test", "s3cret")
	is.NoErr(err)
	is.Equal(user.ID, 1)

	_, err = svc.Login(ctx, "user@corp.test", "wrong")
	is.True(errors.Is(err, ErrAuthInvalidCredentials))

	// Неизвестный email даёт ту же ошибку, что и неверный пароль.
	_, err = svc.Login(ctx, "ghost@corp.test", "s3cret")
	is.True(errors.Is(err, ErrAuthInvalidCredentials))
}
