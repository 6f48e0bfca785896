package handlers

import (
	"net/http"
	"time"

	"github.com/Dosada05/event-teams/models"
	"github.com/Dosada05/event-teams/services"
)

// DeadlineScheduler взводит отложенный перевод на запасное событие.
type DeadlineScheduler interface {
	ScheduleDeadline(event *models.Event)
}

type EventHandler struct {
	eventService      services.EventService
	enrollmentService services.EnrollmentService
	scheduler         DeadlineScheduler
}

func NewEventHandler(
	eventService services.EventService,
	enrollmentService services.EnrollmentService,
	scheduler DeadlineScheduler,
) *EventHandler {
	return &EventHandler{
		eventService:      eventService,
		enrollmentService: enrollmentService,
		scheduler:         scheduler,
	}
}

type createEventRequest struct {
	Name               string    `json:"name"`
	IsAltEvent         bool      `json:"is_alt_event"`
	IsTeamEvent        bool      `json:"is_team_event"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	Deadline           time.Time `json:"deadline"`
	MinTeamMemberCount int       `json:"min_team_member_count"`
	MaxTeamMemberCount int       `json:"max_team_member_count"`
	OrganizerID        int       `json:"organizer_id"`
	AltEventID         *int      `json:"alt_event_id"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input createEventRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event := &models.Event{
		Name:               input.Name,
		IsAltEvent:         input.IsAltEvent,
		IsTeamEvent:        input.IsTeamEvent,
		StartTime:          input.StartTime,
		EndTime:            input.EndTime,
		Deadline:           input.Deadline,
		MinTeamMemberCount: input.MinTeamMemberCount,
		MaxTeamMemberCount: input.MaxTeamMemberCount,
		OrganizerID:        input.OrganizerID,
		AltEventID:         input.AltEventID,
	}

	created, err := h.eventService.CreateEvent(r.Context(), event)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	// Пользователи с подходящей классификацией зачисляются сразу при
	// создании события.
	enrollment, err := h.enrollmentService.BulkEnrollByEventType(r.Context(), created.ID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.scheduler.ScheduleDeadline(created)

	writeJSON(w, http.StatusCreated, jsonResponse{
		"event":           created,
		"auto_enrollment": enrollment,
	}, nil)
}

func (h *EventHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, err := h.eventService.GetEventByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"event": event}, nil)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")

	var events []*models.Event
	var err error
	if name != "" {
		events, err = h.eventService.ListEventsByName(r.Context(), name)
	} else {
		events, err = h.eventService.ListEvents(r.Context())
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"events": events}, nil)
}

func (h *EventHandler) DeleteExpired(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.eventService.DeleteExpiredEvents(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"deleted": deleted}, nil)
}
