package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/jojo6550/jefitness-sub002/internal/auth"
	"github.com/jojo6550/jefitness-sub002/internal/handlers"
	"github.com/jojo6550/jefitness-sub002/internal/middleware"
	"github.com/jojo6550/jefitness-sub002/internal/models"
)

// RegisterRoutes registers all application routes under /api.
func RegisterRoutes(
	router chi.Router,
	gate *auth.Gate,
	authHandler *handlers.AuthHandler,
	appointmentHandler *handlers.AppointmentHandler,
	userHandler *handlers.UserHandler,
) {
	authRateLimit := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit())
	apiRateLimit := middleware.RateLimitByIP(middleware.DefaultAPIRateLimit())

	router.Route("/api", func(r chi.Router) {
		// Public routes, tightly rate limited
		r.With(authRateLimit).Post("/auth/signup", authHandler.Signup)
		r.With(authRateLimit).Post("/auth/login", authHandler.Login)

		// Everything else requires a verified token
		r.Group(func(r chi.Router) {
			r.Use(apiRateLimit)
			r.Use(gate.Authenticate)

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)
			r.Post("/auth/change-password", authHandler.ChangePassword)

			r.Post("/appointments", appointmentHandler.Create)
			r.Get("/appointments/user", appointmentHandler.ListMine)
			r.Get("/appointments/{id}", appointmentHandler.Get)
			r.Put("/appointments/{id}", appointmentHandler.Update)
			r.Post("/appointments/{id}/cancel", appointmentHandler.Cancel)
			r.Delete("/appointments/{id}", appointmentHandler.Delete)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(gate.RequireRole(models.RoleAdmin))

				r.Get("/appointments", appointmentHandler.ListAll)

				r.Get("/users", userHandler.List)
				r.Get("/users/{id}", userHandler.Get)
				r.Put("/users/{id}/role", userHandler.ChangeRole)
				r.Post("/users/{id}/force-logout", userHandler.ForceLogout)
				r.Delete("/users/{id}", userHandler.Erase)
			})
		})
	})
}
