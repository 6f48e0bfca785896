package models

import "time"

type Registration struct {
	UserID    int       `json:"user_id" db:"user_id"`
	EventID   int       `json:"event_id" db:"event_id"`
	TeamID    *int      `json:"team_id,omitempty" db:"team_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EnrolledEvent — строка списка событий пользователя (join events).
type EnrolledEvent struct {
	EventID            int       `json:"event_id" db:"event_id"`
	EventName          string    `json:"event_name" db:"event_name"`
	StartTime          time.Time `json:"start_time" db:"start_time"`
	Deadline           time.Time `json:"deadline" db:"deadline"`
	MinTeamMemberCount int       `json:"min_team_member_count,omitempty" db:"min_team_member_count"`
	TeamID             *int      `json:"team_id,omitempty" db:"team_id"`
}
