package http

import (
	"net/http"

	"github.com/restin-ai/authcore/internal/auth"
	httperrors "github.com/restin-ai/authcore/internal/http/errors"
)

// AuthHandler expone el login federado y el linking explícito.
type AuthHandler struct {
	Linker *auth.Linker
}

type googleLoginRequest struct {
	IDToken        string   `json:"id_token"`
	VenueID        string   `json:"venue_id,omitempty"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
}

// GoogleLogin maneja POST /v1/auth/google.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.IDToken == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("id_token es requerido"))
		return
	}

	res, err := h.Linker.Login(r.Context(), auth.LoginRequest{
		IDToken:        req.IDToken,
		VenueID:        req.VenueID,
		AllowedDomains: req.AllowedDomains,
	})
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

type googleLinkRequest struct {
	IDToken string `json:"id_token"`
}

// GoogleLink maneja POST /v1/auth/google/link. Requiere bearer válido.
func (h *AuthHandler) GoogleLink(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	var req googleLinkRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.IDToken == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("id_token es requerido"))
		return
	}

	if err := h.Linker.Link(r.Context(), claims.UserID, req.IDToken); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GoogleUnlink maneja DELETE /v1/auth/google/link. Requiere bearer válido.
func (h *AuthHandler) GoogleUnlink(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	if err := h.Linker.Unlink(r.Context(), claims.UserID); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
