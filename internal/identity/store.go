package identity

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Store es la interfaz angosta del Principal Store que consume el
// Federated Linker. Las implementaciones viven en identity/pg e
// identity/memory; el core las trata como colaborador externo.
type Store interface {
	FindByID(ctx context.Context, id string) (*Principal, error)
	FindByFederatedSubject(ctx context.Context, sub string) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	FindByLinkedEmail(ctx context.Context, email string) (*Principal, error)

	// UpdateOnFederatedLogin asienta los campos de un login federado de
	// forma idempotente (upsert de los campos nombrados, linked_emails
	// acumula, last_login se pisa).
	UpdateOnFederatedLogin(ctx context.Context, principalID string, login FederatedLogin) error

	// ClearFederatedSubject desliga la identidad federada. El guard de
	// "al menos una forma de autenticarse" es responsabilidad del caller.
	ClearFederatedSubject(ctx context.Context, principalID string) error
}
