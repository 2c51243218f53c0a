package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/metrics"
	"github.com/beitak/beitak/internal/middleware"
)

// NewRouter constructs the HTTP handler that serves the Beitak API.
//
// Routes:
//
//	POST  /api/auth/otp            → authHandler.SendMagicLink
//	POST  /api/auth/verify         → authHandler.VerifyCode
//	POST  /api/auth/oauth          → authHandler.OAuth
//	POST  /api/auth/signup         → authHandler.SignUp
//	POST  /api/auth/login          → authHandler.SignIn
//	POST  /api/auth/reset          → authHandler.ResetPassword
//	POST  /api/auth/reset/confirm  → authHandler.ConfirmReset
//	GET   /api/auth/session        → authHandler.Session (bearer)
//	POST  /api/auth/logout         → authHandler.SignOut (bearer)
//	GET   /api/profiles/{id}       → profileHandler.Get (bearer, own id)
//	PATCH /api/profiles/{id}       → profileHandler.Update (bearer, own id)
//	GET   /metrics                 → prometheus exposition of gatherer
//
// Middleware chain (applied in order):
//  1. RequestID, Recoverer
//  2. WithMetrics, WithRequestLogging
//  3. AllowContentType("application/json") on /api
//  4. RateLimitAuth on the public auth endpoints (nil limiter disables it)
//  5. BearerAuth on the protected group
func NewRouter(
	authHandler *AuthHandler,
	profileHandler *ProfileHandler,
	verifier middleware.TokenVerifier,
	limiter *middleware.RateLimiter,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithMetrics(m))
	r.Use(middleware.WithRequestLogging(logger))

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// Bodyless requests pass AllowContentType untouched.
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitAuth(limiter, logger))
				r.Post("/otp", authHandler.SendMagicLink)
				r.Post("/verify", authHandler.VerifyCode)
				r.Post("/oauth", authHandler.OAuth)
				r.Post("/signup", authHandler.SignUp)
				r.Post("/login", authHandler.SignIn)
				r.Post("/reset", authHandler.ResetPassword)
				r.Post("/reset/confirm", authHandler.ConfirmReset)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.BearerAuth(verifier, logger))
				r.Get("/session", authHandler.Session)
				r.Post("/logout", authHandler.SignOut)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(verifier, logger))
			r.Get("/profiles/{id}", profileHandler.Get)
			r.Patch("/profiles/{id}", profileHandler.Update)
		})
	})

	return r
}
