package token

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/restin-ai/authcore/internal/config"
)

func requireCategory(t *testing.T, err error, want Category) {
	t.Helper()
	require.Error(t, err)
	ve, ok := err.(*VerifyError)
	require.True(t, ok, "want *VerifyError, got %T: %v", err, err)
	require.Equal(t, want, ve.Category, "want %s, got %s", want, ve.Category)
}

// signHS firma claims arbitrarios con HS256, sin pasar por el Signer.
func signHS(t *testing.T, secret string, claims jwtv5.MapClaims) string {
	t.Helper()
	raw, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

// signRS firma claims con RS256 y kid usando la config asimétrica dada.
func signRS(t *testing.T, cfg *config.Config, kid string, claims jwtv5.MapClaims) string {
	t.Helper()
	ks, err := Load(cfg)
	require.NoError(t, err)
	_, priv, err := ks.SigningKey()
	require.NoError(t, err)

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tk.Header["kid"] = kid
	raw, err := tk.SignedString(priv)
	require.NoError(t, err)
	return raw
}

func baseClaims() jwtv5.MapClaims {
	now := time.Now()
	return jwtv5.MapClaims{
		"user_id":  "u-1",
		"venue_id": "v-1",
		"role":     "waiter",
		"iss":      "restin.ai",
		"aud":      "restin.ai",
		"iat":      now.Unix(),
		"exp":      now.Add(time.Hour).Unix(),
	}
}

func newSymmetricVerifier(t *testing.T, secret string) *Verifier {
	t.Helper()
	cfg := symmetricConfig(secret)
	ks, err := Load(cfg)
	require.NoError(t, err)
	return NewVerifier(cfg, ks)
}

func newAsymmetricVerifier(t *testing.T) (*Verifier, *config.Config) {
	t.Helper()
	privPEM, pubPEM := genKeyPEM(t)
	cfg := asymmetricConfig(t, privPEM, map[string]string{"kid-1": pubPEM})
	ks, err := Load(cfg)
	require.NoError(t, err)
	return NewVerifier(cfg, ks), cfg
}

func TestVerify_Missing(t *testing.T) {
	v := newSymmetricVerifier(t, "0123456789abcdef")
	for _, raw := range []string{"", "   ", "\t"} {
		_, err := v.Verify(context.Background(), raw, VerifyOptions{})
		requireCategory(t, err, CategoryMissing)
	}
}

func TestVerify_Malformed(t *testing.T) {
	v := newSymmetricVerifier(t, "0123456789abcdef")
	cases := []string{
		"garbage",
		"a.b",
		"a.b.c.d",
		"!!!.###.$$$",
		base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"`)) + ".e30.sig",
	}
	for _, raw := range cases {
		_, err := v.Verify(context.Background(), raw, VerifyOptions{})
		requireCategory(t, err, CategoryMalformed)
	}
}

// alg "none" y cualquier algoritmo no soportado son malformed, no un
// fallo de firma: nunca llegan a tocar material de claves.
func TestVerify_UnsupportedAlg(t *testing.T) {
	v := newSymmetricVerifier(t, "0123456789abcdef")

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"user_id":"u-1"}`))
	_, err := v.Verify(context.Background(), header+"."+payload+".", VerifyOptions{})
	requireCategory(t, err, CategoryMalformed)

	header = base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"ES256"}`))
	_, err = v.Verify(context.Background(), header+"."+payload+".sig", VerifyOptions{})
	requireCategory(t, err, CategoryMalformed)
}

func TestVerify_HS256_WrongSecret(t *testing.T) {
	v := newSymmetricVerifier(t, "0123456789abcdef")
	raw := signHS(t, "another-secret-value", baseClaims())
	_, err := v.Verify(context.Background(), raw, VerifyOptions{})
	requireCategory(t, err, CategoryInvalidSignature)
}

func TestVerify_HS256_NoSecretConfigured(t *testing.T) {
	// Deployment asimétrico sin secret legacy: un HS256 bien formado
	// falla por firma, no por forma.
	v, _ := newAsymmetricVerifier(t)
	raw := signHS(t, "0123456789abcdef", baseClaims())
	_, err := v.Verify(context.Background(), raw, VerifyOptions{})
	requireCategory(t, err, CategoryInvalidSignature)
}

func TestVerify_HS256_Expired(t *testing.T) {
	v := newSymmetricVerifier(t, "0123456789abcdef")
	claims := baseClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	raw := signHS(t, "0123456789abcdef", claims)
	_, err := v.Verify(context.Background(), raw, VerifyOptions{})
	requireCategory(t, err, CategoryExpired)
}

// Tolerancia legacy: los HS256 en vuelo pueden no llevar iss/aud y deben
// seguir verificando mientras la firma y exp estén bien.
func TestVerify_HS256_NoIssuerAudienceEnforcement(t *testing.T) {
	v := newSymmetricVerifier(t, "0123456789abcdef")
	claims := jwtv5.MapClaims{
		"user_id":  "u-legacy",
		"venue_id": "v-1",
		"role":     "cashier",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
	raw := signHS(t, "0123456789abcdef", claims)
	got, err := v.Verify(context.Background(), raw, VerifyOptions{})
	require.NoError(t, err)
	require.Equal(t, "u-legacy", got.UserID)

	// Incluso con un issuer ajeno.
	claims["iss"] = "somebody-else"
	raw = signHS(t, "0123456789abcdef", claims)
	_, err = v.Verify(context.Background(), raw, VerifyOptions{})
	require.NoError(t, err)
}

func TestVerify_RS256_KidRequired(t *testing.T) {
	v, cfg := newAsymmetricVerifier(t)
	ks, err := Load(cfg)
	require.NoError(t, err)
	_, priv, err := ks.SigningKey()
	require.NoError(t, err)

	// RS256 sin kid en el header.
	raw, err := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, baseClaims()).SignedString(priv)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), raw, VerifyOptions{})
	requireCategory(t, err, CategoryMalformed)
}

func TestVerify_RS256_UnknownKid(t *testing.T) {
	v, cfg := newAsymmetricVerifier(t)
	raw := signRS(t, cfg, "kid-retired", baseClaims())
	_, err := v.Verify(context.Background(), raw, VerifyOptions{})
	requireCategory(t, err, CategoryInvalidSignature)
}

func TestVerify_RS256_WrongPrivateKey(t *testing.T) {
	// kid publicado pero firmado con otra clave privada: la firma no
	// valida contra la pública registrada bajo ese kid.
	v, _ := newAsymmetricVerifier(t)

	forgerPriv, forgerPub := genKeyPEM(t)
	forgerCfg := asymmetricConfig(t, forgerPriv, map[string]string{"kid-1": forgerPub})
	raw := signRS(t, forgerCfg, "kid-1", baseClaims())

	_, err := v.Verify(context.Background(), raw, VerifyOptions{})
	requireCategory(t, err, CategoryInvalidSignature)
}

func TestVerify_RS256_Expired(t *testing.T) {
	v, cfg := newAsymmetricVerifier(t)
	claims := baseClaims()
	claims["exp"] = time.Now().Add(-time.Minute).Unix()
	raw := signRS(t, cfg, "kid-1", claims)
	_, err := v.Verify(context.Background(), raw, VerifyOptions{})
	requireCategory(t, err, CategoryExpired)
}

// Bajo RS256 issuer y audience SÍ se exigen; el mismatch reporta
// invalid_signature, sin categoría propia.
func TestVerify_RS256_IssuerAudienceMismatch(t *testing.T) {
	v, cfg := newAsymmetricVerifier(t)

	claims := baseClaims()
	claims["iss"] = "intruder.example"
	raw := signRS(t, cfg, "kid-1", claims)
	_, err := v.Verify(context.Background(), raw, VerifyOptions{})
	requireCategory(t, err, CategoryInvalidSignature)

	claims = baseClaims()
	claims["aud"] = "other-system"
	raw = signRS(t, cfg, "kid-1", claims)
	_, err = v.Verify(context.Background(), raw, VerifyOptions{})
	requireCategory(t, err, CategoryInvalidSignature)
}

// Confusión de algoritmos: un token HS256 firmado usando el PEM de la
// pubkey como secreto HMAC jamás debe verificar, tenga o no el proceso
// un shared secret configurado.
func TestVerify_AlgConfusion(t *testing.T) {
	privPEM, pubPEM := genKeyPEM(t)
	cfg := asymmetricConfig(t, privPEM, map[string]string{"kid-1": pubPEM})
	cfg.JWT.SecretKey = "0123456789abcdef" // legado habilitado
	ks, err := Load(cfg)
	require.NoError(t, err)
	v := NewVerifier(cfg, ks)

	claims := baseClaims()
	forged, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(pubPEM))
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), forged, VerifyOptions{})
	requireCategory(t, err, CategoryInvalidSignature)

	// Sin secret configurado, el camino HS256 muere antes del lookup.
	cfg2 := asymmetricConfig(t, privPEM, map[string]string{"kid-1": pubPEM})
	ks2, err := Load(cfg2)
	require.NoError(t, err)
	v2 := NewVerifier(cfg2, ks2)
	_, err = v2.Verify(context.Background(), forged, VerifyOptions{})
	requireCategory(t, err, CategoryInvalidSignature)
}

// Modo dual: un deployment asimétrico con secret legacy acepta ambos
// tipos de token en vuelo.
func TestVerify_DualMode(t *testing.T) {
	privPEM, pubPEM := genKeyPEM(t)
	cfg := asymmetricConfig(t, privPEM, map[string]string{"kid-1": pubPEM})
	cfg.JWT.SecretKey = "0123456789abcdef"
	ks, err := Load(cfg)
	require.NoError(t, err)
	v := NewVerifier(cfg, ks)

	rs := signRS(t, cfg, "kid-1", baseClaims())
	_, err = v.Verify(context.Background(), rs, VerifyOptions{})
	require.NoError(t, err)

	hs := signHS(t, "0123456789abcdef", baseClaims())
	_, err = v.Verify(context.Background(), hs, VerifyOptions{})
	require.NoError(t, err)
}

func TestVerify_AllowExpired(t *testing.T) {
	// HS256 vencido con allow-expired: inspeccionable.
	v := newSymmetricVerifier(t, "0123456789abcdef")
	claims := baseClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	raw := signHS(t, "0123456789abcdef", claims)

	got, err := v.Verify(context.Background(), raw, VerifyOptions{AllowExpired: true})
	require.NoError(t, err)
	require.Equal(t, "u-1", got.UserID)

	// La firma se sigue exigiendo.
	forged := signHS(t, "wrong-secret-here", claims)
	_, err = v.Verify(context.Background(), forged, VerifyOptions{AllowExpired: true})
	requireCategory(t, err, CategoryInvalidSignature)
}

// Con allow-expired bajo RS256, issuer y audience se chequean a mano.
func TestVerify_AllowExpired_RS256KeepsIssuerCheck(t *testing.T) {
	v, cfg := newAsymmetricVerifier(t)

	claims := baseClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	raw := signRS(t, cfg, "kid-1", claims)
	got, err := v.Verify(context.Background(), raw, VerifyOptions{AllowExpired: true})
	require.NoError(t, err)
	require.Equal(t, "u-1", got.UserID)

	claims["iss"] = "intruder.example"
	raw = signRS(t, cfg, "kid-1", claims)
	_, err = v.Verify(context.Background(), raw, VerifyOptions{AllowExpired: true})
	requireCategory(t, err, CategoryInvalidSignature)
}

// Rotación: tokens firmados con un kid retirado verifican mientras la
// pubkey siga publicada.
func TestVerify_RotationWindow(t *testing.T) {
	oldPriv, oldPub := genKeyPEM(t)
	newPriv, newPub := genKeyPEM(t)

	// Config del proceso viejo para emitir con kid-old.
	oldCfg := asymmetricConfig(t, oldPriv, map[string]string{"kid-old": oldPub})
	oldCfg.JWT.ActiveKID = "kid-old"
	oldToken := signRS(t, oldCfg, "kid-old", baseClaims())

	// Proceso nuevo: firma con kid-new pero aún publica kid-old.
	newCfg := asymmetricConfig(t, newPriv, map[string]string{
		"kid-old": oldPub,
		"kid-new": newPub,
	})
	newCfg.JWT.ActiveKID = "kid-new"
	ks, err := Load(newCfg)
	require.NoError(t, err)
	v := NewVerifier(newCfg, ks)

	_, err = v.Verify(context.Background(), oldToken, VerifyOptions{})
	require.NoError(t, err)
}

func TestCategorize(t *testing.T) {
	require.Equal(t, CategoryExpired, Categorize(&VerifyError{Category: CategoryExpired}))
	require.Equal(t, CategoryInvalidSignature, Categorize(context.Canceled))
}
