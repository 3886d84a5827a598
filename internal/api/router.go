package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/kindyguard/internal/middleware"
)

type RouterDeps struct {
	Auth     *AuthHandler
	State    *StateHandler
	Alerts   *AlertHandler
	Override *OverrideHandler
	Status   *StatusHandler
	Toasts   *ToastHandler
	Events   *EventLogHandler

	JWT            *middleware.JWTAuth
	Metrics        http.Handler // promhttp
	HTTPRecorder   middleware.HTTPRecorder
	AllowedOrigins []string
}

// NewRouter assembles the /api/v1 surface. Everything except login/refresh,
// health and metrics sits behind JWT; override activation and status patching
// additionally require the admin role.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS(d.AllowedOrigins))
	if d.HTTPRecorder != nil {
		r.Use(middleware.Metrics(d.HTTPRecorder))
	}

	r.Get("/healthz", d.Status.Healthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Post("/auth/login", d.Auth.Login)
		r.Post("/auth/refresh", d.Auth.Refresh)
		r.Post("/auth/logout", d.Auth.Logout)

		// Websocket authenticates via query token inside the handler
		r.Get("/state/ws", d.State.ServeWS)

		// Protected
		r.Group(func(r chi.Router) {
			r.Use(d.JWT.Middleware)

			r.Get("/state", d.State.GetState)
			r.Post("/alerts/{id}/dismiss", d.Alerts.Dismiss)

			r.Post("/toasts", d.Toasts.Add)
			r.Delete("/toasts/{id}", d.Toasts.Remove)

			r.Get("/events", d.Events.List)

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))

				r.Post("/override", d.Override.Activate)
				r.Delete("/override", d.Override.End)
				r.Patch("/system/status", d.Status.Patch)
			})
		})
	})

	return r
}
