package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/restin-ai/authcore/internal/config"
	"github.com/restin-ai/authcore/internal/identity"
	"github.com/restin-ai/authcore/internal/identity/memory"
	"github.com/restin-ai/authcore/internal/token"
)

// fakeVerifier devuelve una assertion fija o un error, sin red.
type fakeVerifier struct {
	asrt *Assertion
	err  error
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (*Assertion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.asrt, nil
}

func testSigner(t *testing.T) *token.Signer {
	t.Helper()
	var c config.Config
	c.JWT.Mode = config.ModeSymmetric
	c.JWT.Issuer = "restin.ai"
	c.JWT.Audience = "restin.ai"
	c.JWT.TokenTTL = 12 * time.Hour
	c.JWT.SecretKey = "0123456789abcdef"
	ks, err := token.Load(&c)
	require.NoError(t, err)
	return token.NewSigner(&c, ks)
}

func strPtr(s string) *string { return &s }

func seedPrincipal(store *memory.Store, email string) *identity.Principal {
	pin := "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA"
	p := &identity.Principal{
		VenueID:         "v-1",
		Role:            "manager",
		DisplayName:     "Ana García",
		Email:           strPtr(email),
		Provider:        identity.ProviderLocal,
		PINHash:         &pin,
		AllowedVenueIDs: []string{"v-1", "v-2"},
		DefaultVenueID:  "v-1",
	}
	store.Put(p)
	return p
}

func newTestLinker(store *memory.Store, fv *fakeVerifier, domains []string) *Linker {
	return NewLinker(LinkerDeps{
		Verifier:       fv,
		Store:          store,
		Signer:         nil,
		AllowedDomains: domains,
	})
}

func googleAssertion(email string) *Assertion {
	return &Assertion{
		Subject:       "google-sub-1",
		Email:         email,
		EmailVerified: true,
		Name:          "Ana García",
		Picture:       "https://lh3.example/a.png",
	}
}

// Primer login federado por match de email: queda linkeado (subject,
// provider hybrid, email acumulado) y el token local sale con la
// identidad del principal.
func TestLogin_EmailMatchLinksAndIssues(t *testing.T) {
	store := memory.New()
	p := seedPrincipal(store, "ana@restin.ai")
	l := NewLinker(LinkerDeps{
		Verifier: &fakeVerifier{asrt: googleAssertion("ana@restin.ai")},
		Store:    store,
		Signer:   testSigner(t),
	})

	res, err := l.Login(context.Background(), LoginRequest{IDToken: "x"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, p.ID, res.Identity.UserID)
	require.Equal(t, "manager", res.Identity.Role)
	require.Equal(t, "v-1", res.Identity.VenueID)
	require.Equal(t, []string{"v-1", "v-2"}, res.Identity.AllowedVenueIDs)

	got, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FederatedSubject)
	require.Equal(t, "google-sub-1", *got.FederatedSubject)
	require.Equal(t, identity.ProviderHybrid, got.Provider)
	require.Contains(t, got.LinkedEmails, "ana@restin.ai")
	require.NotNil(t, got.LastLoginAt)
}

// Login posterior por subject: refresh de last-login y avatar, sin
// tocar provider ni acumular emails de nuevo.
func TestLogin_SubjectMatchRefreshOnly(t *testing.T) {
	store := memory.New()
	p := seedPrincipal(store, "ana@restin.ai")
	l := NewLinker(LinkerDeps{
		Verifier: &fakeVerifier{asrt: googleAssertion("ana@restin.ai")},
		Store:    store,
		Signer:   testSigner(t),
	})

	_, err := l.Login(context.Background(), LoginRequest{IDToken: "x"})
	require.NoError(t, err)
	first, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = l.Login(context.Background(), LoginRequest{IDToken: "x"})
	require.NoError(t, err)
	second, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)

	require.Equal(t, first.Provider, second.Provider)
	require.Equal(t, first.LinkedEmails, second.LinkedEmails)
	require.Equal(t, "google-sub-1", *second.FederatedSubject)
}

// La resolución prueba subject primero: si el subject ya está ligado a
// un principal, un cambio de email en Google no re-rutea el login.
func TestLogin_SubjectWinsOverEmail(t *testing.T) {
	store := memory.New()
	bound := seedPrincipal(store, "ana@restin.ai")
	bound.FederatedSubject = strPtr("google-sub-1")
	store.Put(bound)
	other := seedPrincipal(store, "nueva@restin.ai")

	l := NewLinker(LinkerDeps{
		Verifier: &fakeVerifier{asrt: googleAssertion("nueva@restin.ai")},
		Store:    store,
		Signer:   testSigner(t),
	})

	res, err := l.Login(context.Background(), LoginRequest{IDToken: "x"})
	require.NoError(t, err)
	require.Equal(t, bound.ID, res.Identity.UserID)
	require.NotEqual(t, other.ID, res.Identity.UserID)
}

// Match por linked_emails, case-insensitive.
func TestLogin_LinkedEmailMatch(t *testing.T) {
	store := memory.New()
	p := seedPrincipal(store, "ana@restin.ai")
	p.LinkedEmails = []string{"Ana.Alt@gmail.com"}
	store.Put(p)

	l := NewLinker(LinkerDeps{
		Verifier: &fakeVerifier{asrt: googleAssertion("ana.alt@gmail.com")},
		Store:    store,
		Signer:   testSigner(t),
	})

	res, err := l.Login(context.Background(), LoginRequest{IDToken: "x"})
	require.NoError(t, err)
	require.Equal(t, p.ID, res.Identity.UserID)
}

// Sin principal: UserNotFound con el email de la assertion. No hay
// auto-provisioning.
func TestLogin_UnknownUser(t *testing.T) {
	store := memory.New()
	l := NewLinker(LinkerDeps{
		Verifier: &fakeVerifier{asrt: googleAssertion("ghost@restin.ai")},
		Store:    store,
		Signer:   testSigner(t),
	})

	_, err := l.Login(context.Background(), LoginRequest{IDToken: "x"})
	var nf *UserNotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "ghost@restin.ai", nf.Email)
}

// Email sin verificar: rechazo y el store queda intacto.
func TestLogin_UnverifiedEmailRejected(t *testing.T) {
	store := memory.New()
	p := seedPrincipal(store, "ana@restin.ai")
	asrt := googleAssertion("ana@restin.ai")
	asrt.EmailVerified = false

	l := NewLinker(LinkerDeps{
		Verifier: &fakeVerifier{asrt: asrt},
		Store:    store,
		Signer:   testSigner(t),
	})

	_, err := l.Login(context.Background(), LoginRequest{IDToken: "x"})
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	got, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.Nil(t, got.FederatedSubject)
	require.Equal(t, identity.ProviderLocal, got.Provider)
}

// Gate de dominio: email verificado de dominio ajeno se rechaza antes
// de tocar el store.
func TestLogin_DomainRejected(t *testing.T) {
	store := memory.New()
	p := seedPrincipal(store, "ana@gmail.com")
	l := newTestLinker(store, &fakeVerifier{asrt: googleAssertion("ana@gmail.com")}, []string{"restin.ai"})

	_, err := l.Login(context.Background(), LoginRequest{IDToken: "x"})
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	got, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.Nil(t, got.FederatedSubject)
	require.Nil(t, got.LastLoginAt)
}

func TestLogin_DomainOverrideAndCaseFold(t *testing.T) {
	store := memory.New()
	seedPrincipal(store, "ana@Partner.Example")
	l := NewLinker(LinkerDeps{
		Verifier:       &fakeVerifier{asrt: googleAssertion("ana@Partner.Example")},
		Store:          store,
		Signer:         testSigner(t),
		AllowedDomains: []string{"restin.ai"},
	})

	// El request pisa la allow-list configurada.
	_, err := l.Login(context.Background(), LoginRequest{
		IDToken:        "x",
		AllowedDomains: []string{"PARTNER.example"},
	})
	require.NoError(t, err)
}

// Venue hint: se respeta solo si el principal tiene acceso.
func TestLogin_VenueHint(t *testing.T) {
	store := memory.New()
	seedPrincipal(store, "ana@restin.ai")
	l := NewLinker(LinkerDeps{
		Verifier: &fakeVerifier{asrt: googleAssertion("ana@restin.ai")},
		Store:    store,
		Signer:   testSigner(t),
	})

	res, err := l.Login(context.Background(), LoginRequest{IDToken: "x", VenueID: "v-2"})
	require.NoError(t, err)
	require.Equal(t, "v-2", res.Identity.VenueID)

	res, err = l.Login(context.Background(), LoginRequest{IDToken: "x", VenueID: "v-forbidden"})
	require.NoError(t, err)
	require.Equal(t, "v-1", res.Identity.VenueID)
}

func TestLogin_AssertionFailure(t *testing.T) {
	store := memory.New()
	l := newTestLinker(store, &fakeVerifier{err: errors.New("bad signature")}, nil)

	_, err := l.Login(context.Background(), LoginRequest{IDToken: "x"})
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestLink_ConflictWithAnotherPrincipal(t *testing.T) {
	store := memory.New()
	bound := seedPrincipal(store, "ana@restin.ai")
	bound.FederatedSubject = strPtr("google-sub-1")
	store.Put(bound)
	caller := seedPrincipal(store, "luis@restin.ai")

	l := newTestLinker(store, &fakeVerifier{asrt: googleAssertion("luis@restin.ai")}, nil)

	err := l.Link(context.Background(), caller.ID, "x")
	require.ErrorIs(t, err, ErrFederatedSubjectTaken)
}

func TestLink_OK(t *testing.T) {
	store := memory.New()
	caller := seedPrincipal(store, "luis@restin.ai")
	l := newTestLinker(store, &fakeVerifier{asrt: googleAssertion("luis@restin.ai")}, nil)

	require.NoError(t, l.Link(context.Background(), caller.ID, "x"))

	got, err := store.FindByID(context.Background(), caller.ID)
	require.NoError(t, err)
	require.Equal(t, "google-sub-1", *got.FederatedSubject)
	require.Equal(t, identity.ProviderHybrid, got.Provider)
}

// Relink idempotente del mismo principal no es conflicto.
func TestLink_SamePrincipalIdempotent(t *testing.T) {
	store := memory.New()
	caller := seedPrincipal(store, "luis@restin.ai")
	l := newTestLinker(store, &fakeVerifier{asrt: googleAssertion("luis@restin.ai")}, nil)

	require.NoError(t, l.Link(context.Background(), caller.ID, "x"))
	require.NoError(t, l.Link(context.Background(), caller.ID, "x"))
}

func TestUnlink_RequiresLocalCredential(t *testing.T) {
	store := memory.New()

	// Principal solo-Google: sin PIN ni password.
	p := &identity.Principal{
		VenueID:          "v-1",
		Role:             "waiter",
		DisplayName:      "Solo Google",
		Email:            strPtr("solo@restin.ai"),
		Provider:         identity.ProviderGoogle,
		FederatedSubject: strPtr("google-sub-9"),
	}
	store.Put(p)

	l := newTestLinker(store, &fakeVerifier{}, nil)
	err := l.Unlink(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrNoLocalCredential)
}

func TestUnlink_OK(t *testing.T) {
	store := memory.New()
	p := seedPrincipal(store, "ana@restin.ai")
	p.FederatedSubject = strPtr("google-sub-1")
	p.Provider = identity.ProviderHybrid
	store.Put(p)

	l := newTestLinker(store, &fakeVerifier{}, nil)
	require.NoError(t, l.Unlink(context.Background(), p.ID))

	got, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.Nil(t, got.FederatedSubject)
	require.Equal(t, identity.ProviderLocal, got.Provider)
}
