package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dosada05/event-teams/middleware"
	"github.com/Dosada05/event-teams/models"
	"github.com/Dosada05/event-teams/services"
)

type TeamRequestHandler struct {
	requestService services.TeamRequestService
}

func NewTeamRequestHandler(requestService services.TeamRequestService) *TeamRequestHandler {
	return &TeamRequestHandler{requestService: requestService}
}

type sendRequestBody struct {
	RequesteeID int `json:"requestee_id"`
}

func (h *TeamRequestHandler) Send(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := middleware.UserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input sendRequestBody
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	req, err := h.requestService.SendRequest(r.Context(), requesterID, input.RequesteeID, eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"request": req}, nil)
}

func (h *TeamRequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	requestID, err := idParam(r, "requestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	teamID, err := h.requestService.AcceptRequest(r.Context(), requestID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"team_id": teamID}, nil)
}

func (h *TeamRequestHandler) Decline(w http.ResponseWriter, r *http.Request) {
	requestID, err := idParam(r, "requestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.requestService.DeclineRequest(r.Context(), requestID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"message": "request declined"}, nil)
}

func (h *TeamRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	direction := models.RequestDirection(r.URL.Query().Get("direction"))

	infos, err := h.requestService.ListRequests(r.Context(), userID, eventID, direction)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"requests": infos}, nil)
}

// RemoveMember выводит участника из команды. Выйти можно только самому;
// администратор может вывести любого.
func (h *TeamRequestHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	teamID, err := idParam(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := idParam(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	eventID, err := strconv.Atoi(r.URL.Query().Get("event_id"))
	if err != nil || eventID <= 0 {
		badRequestResponse(w, r, errors.New("invalid event_id parameter"))
		return
	}

	if userID != callerID && !middleware.IsAdmin(r.Context()) {
		errorResponse(w, r, http.StatusForbidden, "cannot remove another team member")
		return
	}

	if err := h.requestService.RemoveTeamMember(r.Context(), teamID, userID, eventID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"message": "team member removed"}, nil)
}

func (h *TeamRequestHandler) TeamMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	members, err := h.requestService.TeamMembers(r.Context(), userID, eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"members": members}, nil)
}
