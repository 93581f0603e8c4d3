package http

import (
	"context"
	"net/http"
	"strings"

	httperrors "github.com/restin-ai/authcore/internal/http/errors"
	"github.com/restin-ai/authcore/internal/token"
)

type claimsKey struct{}

// ClaimsFrom devuelve los claims validados que RequireAuth dejó en el
// contexto. ok=false si el request no pasó por RequireAuth.
func ClaimsFrom(ctx context.Context) (*token.AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*token.AccessClaims)
	return c, ok
}

// BearerToken extrae el token del header Authorization. Devuelve ""
// si no hay header o el esquema no es Bearer.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return ""
	}
	scheme, rest, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(rest)
}

// RequireAuth es la compuerta bearer sobre el verifier dual. En fallo
// responde exactamente una de las cuatro categorías; en éxito deja los
// claims en el contexto.
func RequireAuth(v *token.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			claims, err := v.Verify(r.Context(), raw, token.VerifyOptions{
				RequestID: RequestIDFrom(w),
			})
			if err != nil {
				httperrors.WriteError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
