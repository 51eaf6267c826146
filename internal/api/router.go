package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handlers struct {
	Health *HealthHandler
	Auth   *AuthHandler
	Files  *FileHandler
	User   *UserHandler
}

// NewRouter wires every route. authenticate resolves the optional caller on
// /api routes; limiter guards uploads.
func NewRouter(h Handlers, authenticate func(http.Handler) http.Handler, limiter *RateLimiter, oauthEnabled bool, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(Metrics)

	r.Get("/health/live", h.Health.Live)
	r.Get("/health/ready", h.Health.Ready)
	r.Get("/metrics", h.Health.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(CORS)
		r.Use(authenticate)

		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)
		r.Post("/auth/logout", h.Auth.Logout)
		if oauthEnabled {
			r.Get("/auth/oauth2/login", h.Auth.OAuth2Login)
			r.Get("/auth/oauth2/callback", h.Auth.OAuth2Callback)
		}

		r.With(limiter.Middleware).Post("/upload", h.Files.Upload)

		r.Get("/files/{shortId}/download", h.Files.Download)
		r.Get("/files/{shortId}/contents", h.Files.Contents)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)

			r.Get("/auth/me", h.Auth.Me)
			r.Get("/files/user", h.Files.UserFiles)
			r.Put("/files/{shortId}/password", h.Files.SetPassword)
			r.Delete("/files/{shortId}", h.Files.Delete)
			r.Get("/user/apikey", h.User.GetAPIKey)
			r.Post("/user/apikey", h.User.RotateAPIKey)
			r.Get("/user/sharex", h.User.ShareXConfig)
		})
	})

	r.Get("/{shortId}/info", h.Files.Info)
	r.Get("/{shortId}/raw", h.Files.Raw)
	r.Get("/{shortId}/download", h.Files.Download)
	r.Get("/{shortId}/contents", h.Files.Contents)
	r.Get("/{shortId}/extract", h.Files.Extract)

	return r
}
