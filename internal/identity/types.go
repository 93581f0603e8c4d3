package identity

import (
	"strings"
	"time"
)

// Provider marca cómo puede autenticarse un principal.
const (
	ProviderLocal  = "local"  // solo credencial local (PIN / password)
	ProviderGoogle = "google" // solo identidad federada
	ProviderHybrid = "hybrid" // ambas vigentes
)

// Principal es el registro local de identidad de una persona o cuenta de
// servicio. El rol y los venues son opacos para el core de auth.
type Principal struct {
	ID      string
	VenueID string
	Role    string

	DisplayName string
	Email       *string
	// LinkedEmails acumula cada email verificado visto en logins federados.
	LinkedEmails []string

	// FederatedSubject es el identificador estable del issuer externo
	// ("sub" del ID token). Nil si nunca se linkeó.
	FederatedSubject *string
	Provider         string
	AvatarURL        *string

	// Credenciales locales. El core solo mira presencia, nunca verifica.
	PINHash      *string
	PasswordHash *string

	AllowedVenueIDs []string
	DefaultVenueID  string

	LastLoginAt *time.Time
	CreatedAt   time.Time
}

// HasLocalCredential reporta si el principal conserva una forma de
// autenticarse sin la identidad federada.
func (p *Principal) HasLocalCredential() bool {
	return (p.PINHash != nil && *p.PINHash != "") ||
		(p.PasswordHash != nil && *p.PasswordHash != "")
}

// HasLinkedEmail reporta pertenencia case-insensitive en linked_emails.
func (p *Principal) HasLinkedEmail(email string) bool {
	for _, e := range p.LinkedEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// FederatedLogin son los campos que un login federado exitoso deja
// asentados sobre el principal. El upsert es idempotente: un login
// posterior repara cualquier campo faltante.
type FederatedLogin struct {
	FederatedSubject string
	Email            string
	AvatarURL        *string
	Provider         string
	LastLoginAt      time.Time
}
