package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/restin-ai/authcore/internal/auth"
	"github.com/restin-ai/authcore/internal/rate"
	"github.com/restin-ai/authcore/internal/token"
)

// RouterDeps contiene las dependencias del router principal.
type RouterDeps struct {
	Verifier *token.Verifier
	Linker   *auth.Linker
	JWKSJSON []byte
	// LoginLimiter acota POST /v1/auth/google. Nil desactiva el límite.
	LoginLimiter rate.Limiter
	// Pingers alimenta /readyz (nombre -> ping).
	Pingers map[string]func(context.Context) error
	// MetricsHandler sirve /metrics. Nil omite la ruta.
	MetricsHandler http.Handler
}

// NewRouter arma el router chi con la cadena de middlewares estándar.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(WithRecover)
	r.Use(WithSecurityHeaders)
	r.Use(WithMetrics)
	r.Use(WithLogging)

	ah := &AuthHandler{Linker: d.Linker}

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return WithRateLimit(next, d.LoginLimiter)
		})
		r.Post("/v1/auth/google", ah.GoogleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(d.Verifier))
		r.Post("/v1/auth/google/link", ah.GoogleLink)
		r.Delete("/v1/auth/google/link", ah.GoogleUnlink)
	})

	r.Get("/.well-known/jwks.json", NewJWKSHandler(d.JWKSJSON))
	r.Get("/healthz", Healthz)
	r.Get("/readyz", NewReadyzHandler(d.Pingers))
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	return r
}
