package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/event-teams/handlers"
	"github.com/Dosada05/event-teams/middleware"
)

// SetupRoutes собирает маршрутизатор приложения.
func SetupRoutes(
	authHandler *handlers.AuthHandler,
	eventHandler *handlers.EventHandler,
	enrollmentHandler *handlers.EnrollmentHandler,
	requestHandler *handlers.TeamRequestHandler,
	wsHandler *handlers.WebSocketHandler,
	jwtSecret string,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/auth/signin", authHandler.SignIn)
	r.Get("/ws", wsHandler.Serve)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.List)
			r.Get("/{eventID}", eventHandler.GetByID)
			r.Get("/{eventID}/registrations", enrollmentHandler.EventParticipants)

			r.Post("/{eventID}/enroll", enrollmentHandler.Enroll)
			r.Delete("/{eventID}/enroll", enrollmentHandler.Unenroll)

			r.Post("/{eventID}/requests", requestHandler.Send)
			r.Get("/{eventID}/requests", requestHandler.List)
			r.Get("/{eventID}/team", requestHandler.TeamMembers)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/", eventHandler.Create)
				r.Delete("/expired", eventHandler.DeleteExpired)
			})
		})

		r.Route("/enrollments", func(r chi.Router) {
			r.Post("/auto", enrollmentHandler.AutoEnroll)
			r.Get("/team-events", enrollmentHandler.TeamEvents)
			r.Get("/single-events", enrollmentHandler.SingleEvents)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Post("/{requestID}/accept", requestHandler.Accept)
			r.Post("/{requestID}/decline", requestHandler.Decline)
		})

		r.Delete("/teams/{teamID}/members/{userID}", requestHandler.RemoveMember)
	})

	return r
}
