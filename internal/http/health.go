package http

import (
	"context"
	"net/http"
	"time"
)

// NewJWKSHandler sirve el set de claves públicas pre-serializado.
// Vacío bajo modo simétrico: el secret jamás se publica.
func NewJWKSHandler(jwksJSON []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jwksJSON)
	}
}

// Healthz: vivo. No toca dependencias.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewReadyzHandler reporta listo solo si las dependencias dadas responden.
func NewReadyzHandler(pingers map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(pingers))
		ready := true
		for name, ping := range pingers {
			if err := ping(ctx); err != nil {
				checks[name] = "down"
				ready = false
				continue
			}
			checks[name] = "ok"
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		WriteJSON(w, status, map[string]any{"ready": ready, "checks": checks})
	}
}
