package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/api/handlers"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/api/middleware"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/audit"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/auth"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/config"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/identity"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/metrics"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/onboarding"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/violation"
)

// Services are the components the HTTP layer serves. Mailer may be nil.
type Services struct {
	Tenants      *tenant.Service
	Identity     identity.Provider
	Onboarding   *onboarding.Orchestrator
	Violations   *violation.Service
	Audit        *audit.Service
	Mailer       handlers.SubscriptionMailer
	HealthChecks map[string]handlers.Check
}

type Router struct {
	mux *chi.Mux
	cfg *config.Config
	svc Services
	jwt *auth.JWTMiddleware
	rl  *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, svc Services) *Router {
	return &Router{
		mux: chi.NewRouter(),
		cfg: cfg,
		svc: svc,
		jwt: auth.NewJWTMiddleware(cfg.Auth.JWTSecret, svc.Tenants),
		rl:  middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
}

// Close releases the rate limiter's background worker.
func (rt *Router) Close() {
	rt.rl.Close()
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))

	// Service endpoints
	health := handlers.NewHealthHandler(rt.svc.HealthChecks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", metrics.Handler())

	onboardingH := handlers.NewOnboardingHandler(rt.svc.Onboarding)
	authH := handlers.NewAuthHandler(rt.svc.Identity, rt.svc.Tenants)
	hoaH := handlers.NewHOAHandler(rt.svc.Tenants)
	violationH := handlers.NewViolationHandler(rt.svc.Violations)
	adminH := handlers.NewAdminHandler(rt.svc.Tenants, rt.svc.Identity, rt.svc.Onboarding, rt.svc.Audit, rt.svc.Mailer)

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Group(func(r chi.Router) {
			r.Use(rt.rl.Limit)
			r.Post("/onboarding", onboardingH.Onboard)
			r.Post("/auth/login", authH.Login)
			r.Get("/hoas/{slug}", hoaH.Profile)
			r.Post("/hoas/{slug}/violations", violationH.Submit)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.jwt.Authenticate)
			r.Get("/me", authH.Me)

			// HOA admin (or super admin acting on any HOA). Registered
			// per route so they share the public /hoas/{slug} tree.
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireHOAAccess("slug"))
				r.Get("/hoas/{slug}/settings", hoaH.Settings)
				r.Put("/hoas/{slug}/settings", hoaH.UpdateSettings)
				r.Get("/hoas/{slug}/violations", violationH.List)
				r.Get("/hoas/{slug}/violations/stream", violationH.Stream)
				r.Patch("/hoas/{slug}/violations/{id}", violationH.Update)
				r.Delete("/hoas/{slug}/violations/{id}", violationH.Delete)
				r.Post("/hoas/{slug}/violations/{id}/notify", violationH.Notify)
			})

			// Super admin
			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireRole(models.RoleSuperAdmin))
				r.Get("/hoas", adminH.ListHOAs)
				r.Post("/hoas", adminH.CreateHOA)
				r.Get("/hoas/stream", adminH.StreamHOAs)
				r.Put("/hoas/{slug}", adminH.UpdateHOA)
				r.Patch("/hoas/{slug}/status", adminH.SetStatus)
				r.Delete("/hoas/{slug}", adminH.DeleteHOA)
				r.Get("/users", adminH.ListUsers)
				r.Post("/users", adminH.CreateUser)
				r.Patch("/users/{id}", adminH.UpdateUser)
				r.Delete("/users/{id}", adminH.DeleteUser)
				r.Get("/audit", adminH.AuditLogs)
			})
		})
	})

	return r
}
