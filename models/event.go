package models

import "time"

type Event struct {
	ID                 int       `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	IsAltEvent         bool      `json:"is_alt_event" db:"is_alt_event"`
	IsTeamEvent        bool      `json:"is_team_event" db:"is_team_event"`
	StartTime          time.Time `json:"start_time" db:"start_time"`
	EndTime            time.Time `json:"end_time" db:"end_time"`
	Deadline           time.Time `json:"deadline" db:"deadline"`
	MinTeamMemberCount int       `json:"min_team_member_count" db:"min_team_member_count"`
	MaxTeamMemberCount int       `json:"max_team_member_count" db:"max_team_member_count"`
	OrganizerID        int       `json:"organizer_id" db:"organizer_id"`
	AltEventID         *int      `json:"alt_event_id,omitempty" db:"alt_event_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}
