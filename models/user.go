package models

import "time"

type User struct {
	ID          int    `json:"id" db:"id"`
	Email       string `json:"email" db:"email"`
	DisplayName string `json:"display_name" db:"display_name"`
	IsAdmin     bool   `json:"is_admin" db:"is_admin"`

	// CorporateAccountID — корпоративный аккаунт, ограничивающий формирование
	// команд. Обе стороны запроса должны принадлежать одному аккаунту.
	CorporateAccountID *int `json:"corporate_account_id,omitempty" db:"corporate_account_id"`

	// EventType — классификация пользователя: событие с таким именем
	// подхватывает его при автозачислении.
	EventType *string `json:"event_type,omitempty" db:"event_type"`

	// MembershipExpiresAt — срок действия членства; nil означает отсутствие
	// активной подписки.
	MembershipExpiresAt *time.Time `json:"membership_expires_at,omitempty" db:"membership_expires_at"`

	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
