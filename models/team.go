package models

import "time"

type Team struct {
	ID        int       `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Members []TeamMember `json:"members,omitempty" db:"-"`
}

// TeamMember — участник команды вместе с данными пользователя.
type TeamMember struct {
	TeamID      int    `json:"team_id" db:"team_id"`
	UserID      int    `json:"user_id" db:"user_id"`
	Email       string `json:"email" db:"email"`
	DisplayName string `json:"display_name" db:"display_name"`
}
