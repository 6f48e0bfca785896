package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"

	"github.com/Dosada05/event-teams/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Источник проверяется CORS-слоем маршрутизатора.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub       *notify.Hub
	jwtSecret string
}

func NewWebSocketHandler(hub *notify.Hub, jwtSecret string) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, jwtSecret: jwtSecret}
}

// Serve подключает клиента к его персональной комнате, если в query
// передан валидный токен, и к lobby в остальных случаях. Токен идёт
// через query, потому что браузерный websocket не умеет заголовки.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	room := notify.LobbyRoom
	if tokenString := r.URL.Query().Get("token"); tokenString != "" {
		userID, err := h.parseUserID(tokenString)
		if err != nil {
			unauthorizedResponse(w, r, "invalid or expired token")
			return
		}
		room = notify.UserRoom(userID)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	h.hub.NewClient(conn, room)
}

func (h *WebSocketHandler) parseUserID(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}
	rawUserID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}
	return int(rawUserID), nil
}
