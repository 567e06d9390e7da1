package api

import (
	"net/http"
	"time"

	"codearena/internal/api/handler"
	"codearena/internal/app/service"
	"codearena/internal/app/ws"
	"codearena/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	problemService *service.ProblemService,
	submissionService *service.SubmissionService,
	feedbackService *service.FeedbackService,
	potdService *service.POTDService,
	contestService *service.ContestService,
	adminService *service.AdminService,
	profileService *service.ProfileService,
	hub *ws.Hub,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies a bearer token if present and puts the claims in context.
	// Route groups decide whether authentication is required.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// WebSocket endpoint lives outside the versioned API; it authenticates
	// through a query parameter.
	wsHandler := handler.NewWSHandler(hub)
	r.Route("/ws", wsHandler.RegisterRoutes)

	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(authService)
		v1.Group(func(pub chi.Router) {
			authHandler.RegisterRoutes(pub)
		})

		problemHandler := handler.NewProblemHandler(problemService)
		v1.Route("/problems", problemHandler.RegisterRoutes)

		submissionHandler := handler.NewSubmissionHandler(submissionService, feedbackService)
		v1.Route("/submissions", submissionHandler.RegisterRoutes)

		potdHandler := handler.NewPOTDHandler(potdService)
		v1.Route("/potd", potdHandler.RegisterRoutes)

		contestHandler := handler.NewContestHandler(contestService, hub)
		v1.Route("/contests", contestHandler.RegisterRoutes)

		adminHandler := handler.NewAdminHandler(adminService)
		v1.Route("/admin", adminHandler.RegisterRoutes)

		profileHandler := handler.NewProfileHandler(profileService)
		v1.Route("/profiles", profileHandler.RegisterRoutes)
	})

	return r
}
