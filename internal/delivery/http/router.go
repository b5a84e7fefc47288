package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"rehearsalplanner/internal/delivery/http/controllers"
	"rehearsalplanner/internal/delivery/http/middleware"
	"rehearsalplanner/internal/domain"
)

// NewRouter initializes the HTTP router with all application routes.
// Rehearsal mutations additionally require the schedule.manage capability;
// reads and the inbox only require authentication.
func NewRouter(
	verifier domain.TokenVerifier,
	authController *controllers.AuthController,
	rehearsalController *controllers.RehearsalController,
	notificationController *controllers.NotificationController,
	availabilityController *controllers.AvailabilityController,
	realtimeController *controllers.RealtimeController,
) *http.ServeMux {
	mux := http.NewServeMux()

	auth := middleware.RequireAuth(verifier)
	manage := func(next http.HandlerFunc) http.HandlerFunc {
		return auth(middleware.RequireCapability(domain.CapabilityScheduleManage)(next))
	}

	// Auth
	mux.HandleFunc("POST /auth/signup", authController.SignUp)
	mux.HandleFunc("POST /auth/login", authController.Login)
	mux.HandleFunc("GET /members/me", auth(authController.Me))

	// Rehearsal lifecycle
	mux.HandleFunc("POST /rehearsals/draft", manage(rehearsalController.CreateDraft))
	mux.HandleFunc("PATCH /rehearsals/{rehearsalID}/draft", manage(rehearsalController.UpdateDraft))
	mux.HandleFunc("POST /rehearsals/{rehearsalID}/publish", manage(rehearsalController.Publish))
	mux.HandleFunc("POST /rehearsals", manage(rehearsalController.CreatePlanned))
	mux.HandleFunc("PATCH /rehearsals/{rehearsalID}", manage(rehearsalController.Update))
	mux.HandleFunc("DELETE /rehearsals/{rehearsalID}", manage(rehearsalController.Delete))
	mux.HandleFunc("GET /rehearsals/{rehearsalID}", auth(rehearsalController.GetByID))
	mux.HandleFunc("GET /rehearsals", auth(rehearsalController.List))

	// Availability signal
	mux.HandleFunc("GET /members/availability", auth(availabilityController.BlockedOn))

	// Notification inbox
	mux.HandleFunc("GET /notifications", auth(notificationController.List))
	mux.HandleFunc("POST /notifications/{notificationID}/respond", auth(notificationController.MarkResponded))

	// Realtime stream
	mux.HandleFunc("GET /ws", auth(realtimeController.Connect))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
