package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/restin-ai/authcore/internal/auth"
	"github.com/restin-ai/authcore/internal/identity"
	"github.com/restin-ai/authcore/internal/token"
)

// errorResponse controla exactamente qué campos se envían al cliente.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe una respuesta HTTP basada en el error proporcionado.
// Maneja automáticamente errores de tipo *AppError y errores genéricos.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// FromError convierte un error genérico en un AppError. Si no es un
// AppError ni un error de dominio conocido, cae en error interno
// conservando la causa.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var ve *token.VerifyError
	if errors.As(err, &ve) {
		return FromVerify(ve)
	}

	var nf *auth.UserNotFoundError
	if errors.As(err, &nf) {
		return ErrUserNotFound.WithDetail(nf.Email)
	}

	switch {
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return ErrTokenInvalidSignature
	case errors.Is(err, auth.ErrFederatedSubjectTaken):
		return ErrFederatedSubjectTaken
	case errors.Is(err, auth.ErrNoLocalCredential):
		return ErrNoLocalCredential
	case errors.Is(err, identity.ErrNotFound):
		return ErrUserNotFound
	}
	return ErrInternalServerError.WithCause(err)
}

// FromVerify mapea la taxonomía del verifier a los cuatro AppError 401.
func FromVerify(ve *token.VerifyError) *AppError {
	switch ve.Category {
	case token.CategoryMissing:
		return ErrTokenMissing
	case token.CategoryMalformed:
		return ErrTokenMalformed
	case token.CategoryExpired:
		return ErrTokenExpired
	default:
		return ErrTokenInvalidSignature
	}
}
