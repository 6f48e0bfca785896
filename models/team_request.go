package models

import "time"

type RequestStatus int

const (
	RequestDeclined RequestStatus = -1
	RequestPending  RequestStatus = 0
	RequestAccepted RequestStatus = 1
)

type RequestDirection string

const (
	DirectionIncoming RequestDirection = "incoming"
	DirectionOutgoing RequestDirection = "outgoing"
)

// TeamRequest — приглашение в пару или в существующую команду.
// TeamID заполнен, когда отправитель уже состоит в команде: приглашение
// адресовано в эту команду, а не на создание новой пары.
type TeamRequest struct {
	ID          int           `json:"id" db:"id"`
	RequesterID int           `json:"requester_id" db:"requester_id"`
	RequesteeID int           `json:"requestee_id" db:"requestee_id"`
	EventID     int           `json:"event_id" db:"event_id"`
	TeamID      *int          `json:"team_id,omitempty" db:"team_id"`
	Status      RequestStatus `json:"status" db:"status"`
	ExpiresOn   time.Time     `json:"expires_on" db:"expires_on"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// TeamRequestInfo — строка списка запросов: сам запрос плюс данные
// второй стороны (для incoming — отправителя, для outgoing — адресата).
type TeamRequestInfo struct {
	RequestID   int           `json:"request_id" db:"request_id"`
	UserID      int           `json:"user_id" db:"user_id"`
	Status      RequestStatus `json:"status" db:"status"`
	Email       string        `json:"email" db:"email"`
	DisplayName string        `json:"display_name" db:"display_name"`
}
