package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/restin-ai/authcore/internal/audit"
	"github.com/restin-ai/authcore/internal/identity"
	"github.com/restin-ai/authcore/internal/metrics"
	"github.com/restin-ai/authcore/internal/observability/logger"
	"github.com/restin-ai/authcore/internal/token"
)

// Assertion es una identidad externa ya verificada por el issuer federado.
type Assertion struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// AssertionVerifier valida un ID token externo contra el issuer federado.
type AssertionVerifier interface {
	Verify(ctx context.Context, idToken string) (*Assertion, error)
}

// Errores del Linker. Todo fallo de autenticación colapsa en
// ErrAuthenticationFailed: el caller nunca ve más fidelidad que las
// cuatro categorías del verifier. UserNotFound es la única excepción,
// porque es un resultado de autorización, no de autenticación.
var (
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrFederatedSubjectTaken = errors.New("federated subject already linked to another principal")
	ErrNoLocalCredential     = errors.New("cannot unlink: no local credential set")
)

// UserNotFoundError nombra el email de la assertion para que la UI pueda
// dirigir al usuario a un administrador. No se auto-provisionan cuentas.
type UserNotFoundError struct {
	Email string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("no account for %s", e.Email)
}

// LoginRequest es un intento de login federado.
type LoginRequest struct {
	IDToken string
	// VenueID es el hint de venue destino. Si el principal tiene acceso,
	// el token se emite scoped a ese venue; si no, al venue por defecto.
	VenueID string
	// AllowedDomains pisa la allow-list de dominios configurada.
	AllowedDomains []string
}

// Identity es el sobre de identidad que acompaña al token local.
type Identity struct {
	UserID          string   `json:"user_id"`
	DisplayName     string   `json:"display_name"`
	Role            string   `json:"role"`
	VenueID         string   `json:"venue_id"`
	Email           string   `json:"email,omitempty"`
	AvatarURL       string   `json:"avatar_url,omitempty"`
	AllowedVenueIDs []string `json:"allowed_venue_ids"`
	DefaultVenueID  string   `json:"default_venue_id"`
}

// LoginResult es un login federado exitoso.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  Identity  `json:"identity"`
}

// LinkerDeps contains dependencies for the federated linker.
type LinkerDeps struct {
	Verifier       AssertionVerifier
	Store          identity.Store
	Signer         *token.Signer
	AllowedDomains []string
}

// Linker conecta una assertion federada con un principal local y emite
// el token propio. No provisiona cuentas: ese es un acto administrativo.
type Linker struct {
	verifier       AssertionVerifier
	store          identity.Store
	signer         *token.Signer
	allowedDomains []string
}

func NewLinker(d LinkerDeps) *Linker {
	return &Linker{
		verifier:       d.Verifier,
		store:          d.Store,
		signer:         d.Signer,
		allowedDomains: d.AllowedDomains,
	}
}

// Login procesa un login federado completo: verificación de assertion,
// gate de dominio, resolución de principal, linking y emisión local.
func (l *Linker) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth.linker"))

	asrt, err := l.verifier.Verify(ctx, req.IDToken)
	if err != nil {
		log.Warn("assertion verification failed", logger.Err(err))
		metrics.RecordFederatedLogin("rejected")
		return nil, ErrAuthenticationFailed
	}

	if !asrt.EmailVerified || asrt.Email == "" {
		log.Warn("assertion without verified email",
			logger.String("subject", asrt.Subject),
			logger.Bool("email_verified", asrt.EmailVerified),
		)
		metrics.RecordFederatedLogin("rejected")
		return nil, ErrAuthenticationFailed
	}

	// Gate de dominio: allow-list del request o la configurada.
	domains := req.AllowedDomains
	if len(domains) == 0 {
		domains = l.allowedDomains
	}
	if len(domains) > 0 {
		domain := emailDomain(asrt.Email)
		if !containsFold(domains, domain) {
			audit.Security(ctx, "federated_domain_rejected",
				logger.Email(asrt.Email),
				logger.String("domain", domain),
				logger.VenueID(req.VenueID),
			)
			metrics.RecordFederatedLogin("rejected")
			return nil, ErrAuthenticationFailed
		}
	}

	p, matchedBySubject, err := l.resolve(ctx, asrt)
	if err != nil {
		var nf *UserNotFoundError
		if errors.As(err, &nf) {
			log.Info("federated login for unknown principal", logger.Email(asrt.Email))
			metrics.RecordFederatedLogin("user_not_found")
			return nil, err
		}
		log.Error("principal store lookup failed", logger.Err(err))
		metrics.RecordFederatedLogin("rejected")
		return nil, ErrAuthenticationFailed
	}

	// Post-match linking. Best-effort: un login posterior repara campos
	// faltantes, así que un fallo acá no voltea la autenticación.
	login := identity.FederatedLogin{
		FederatedSubject: asrt.Subject,
		AvatarURL:        optional(asrt.Picture),
		LastLoginAt:      time.Now().UTC(),
	}
	if !matchedBySubject {
		// Primer login federado de este principal: queda "hybrid"
		// (credencial local y federada vigentes) y el email se acumula.
		login.Provider = identity.ProviderHybrid
		login.Email = asrt.Email
	}
	if err := l.store.UpdateOnFederatedLogin(ctx, p.ID, login); err != nil {
		log.Error("federated login update failed",
			logger.UserID(p.ID),
			logger.Err(err),
		)
	}

	venueID := l.resolveVenue(p, req.VenueID)
	signed, exp, err := l.signer.Sign(p.ID, venueID, p.Role, nil)
	if err != nil {
		log.Error("token issuance failed", logger.UserID(p.ID), logger.Err(err))
		return nil, ErrAuthenticationFailed
	}

	log.Info("federated login ok",
		logger.UserID(p.ID),
		logger.VenueID(venueID),
		logger.Role(p.Role),
	)
	metrics.RecordFederatedLogin("ok")

	return &LoginResult{
		Token:     signed,
		ExpiresAt: exp,
		Identity: Identity{
			UserID:          p.ID,
			DisplayName:     p.DisplayName,
			Role:            p.Role,
			VenueID:         venueID,
			Email:           asrt.Email,
			AvatarURL:       asrt.Picture,
			AllowedVenueIDs: p.AllowedVenueIDs,
			DefaultVenueID:  p.DefaultVenueID,
		},
	}, nil
}

// resolve busca el principal en orden: subject federado, email primario,
// pertenencia en linked_emails. Primer match gana.
func (l *Linker) resolve(ctx context.Context, asrt *Assertion) (*identity.Principal, bool, error) {
	p, err := l.store.FindByFederatedSubject(ctx, asrt.Subject)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return nil, false, err
	}

	p, err = l.store.FindByEmail(ctx, asrt.Email)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return nil, false, err
	}

	p, err = l.store.FindByLinkedEmail(ctx, asrt.Email)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return nil, false, err
	}
	return nil, false, &UserNotFoundError{Email: asrt.Email}
}

func (l *Linker) resolveVenue(p *identity.Principal, hint string) string {
	if hint != "" {
		for _, v := range p.AllowedVenueIDs {
			if v == hint {
				return hint
			}
		}
	}
	if p.DefaultVenueID != "" {
		return p.DefaultVenueID
	}
	return p.VenueID
}

// Link ata una assertion externa al principal YA autenticado del caller.
// Rehúsa si el subject federado pertenece a otro principal.
func (l *Linker) Link(ctx context.Context, principalID, idToken string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth.linker"))

	asrt, err := l.verifier.Verify(ctx, idToken)
	if err != nil {
		log.Warn("link assertion verification failed", logger.Err(err))
		return ErrAuthenticationFailed
	}
	if !asrt.EmailVerified || asrt.Email == "" {
		return ErrAuthenticationFailed
	}

	existing, err := l.store.FindByFederatedSubject(ctx, asrt.Subject)
	if err == nil && existing.ID != principalID {
		log.Warn("federated subject conflict",
			logger.UserID(principalID),
			logger.String("bound_to", existing.ID),
		)
		return ErrFederatedSubjectTaken
	}
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		log.Error("principal store lookup failed", logger.Err(err))
		return ErrAuthenticationFailed
	}

	err = l.store.UpdateOnFederatedLogin(ctx, principalID, identity.FederatedLogin{
		FederatedSubject: asrt.Subject,
		Email:            asrt.Email,
		AvatarURL:        optional(asrt.Picture),
		Provider:         identity.ProviderHybrid,
		LastLoginAt:      time.Now().UTC(),
	})
	// Carrera contra otro link concurrente: el índice único del store
	// es la última palabra.
	if errors.Is(err, identity.ErrConflict) {
		return ErrFederatedSubjectTaken
	}
	return err
}

// Unlink quita la identidad federada. Rehúsa si el principal quedaría sin
// ninguna forma de autenticarse.
func (l *Linker) Unlink(ctx context.Context, principalID string) error {
	p, err := l.store.FindByID(ctx, principalID)
	if err != nil {
		return err
	}
	if !p.HasLocalCredential() {
		return ErrNoLocalCredential
	}
	return l.store.ClearFederatedSubject(ctx, principalID)
}

func emailDomain(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return strings.ToLower(email[i+1:])
	}
	return ""
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
