package api

import (
	"net/http"
	"time"

	"taskboard/internal/api/handler"
	"taskboard/internal/api/middleware"
	"taskboard/internal/app/service"
	"taskboard/internal/common"
	"taskboard/internal/common/security"
	"taskboard/internal/domain/repository"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	userRepo repository.UserRepository,
	authService *service.AuthService,
	taskService *service.TaskService,
	adminService *service.AdminService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Looks for "Authorization: Bearer T" and stores the verification result;
	// routes that need a caller add the authenticator below.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithError(w, http.StatusNotFound, "Route not found")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	})

	authenticator := middleware.NewAuthenticator(userRepo)

	r.Route("/api", func(api chi.Router) {
		authHandler := handler.NewAuthHandler(authService, authenticator)
		api.Route("/auth", authHandler.RegisterRoutes)

		taskHandler := handler.NewTaskHandler(taskService)
		api.Route("/tasks", func(tasks chi.Router) {
			tasks.Use(authenticator)
			taskHandler.RegisterRoutes(tasks)
		})

		adminHandler := handler.NewAdminHandler(adminService)
		api.Route("/admin", func(admin chi.Router) {
			admin.Use(authenticator)
			admin.Use(middleware.AdminOnly)
			adminHandler.RegisterRoutes(admin)
		})
	})

	return r
}
