package token

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/restin-ai/authcore/internal/config"
	"github.com/restin-ai/authcore/internal/metrics"
	"github.com/restin-ai/authcore/internal/observability/logger"
)

// Verifier es la compuerta de seguridad central. Verifica tanto HS256
// (tokens legacy) como RS256 (tokens con rotación): la firma es exclusiva
// por modo, la verificación acepta ambos hasta que los HS256 en vuelo
// expiren naturalmente.
//
// Invariante: el header del token nunca elige la clave más allá de
// seleccionar entre el secret simétrico pre-configurado y el lookup
// kid -> pubkey. Los dos caminos no comparten el paso de lookup.
type Verifier struct {
	keys     *Keystore
	issuer   string
	audience string
}

// VerifyOptions son los flags opcionales de una verificación.
type VerifyOptions struct {
	// AllowExpired permite inspeccionar claims vencidos. Solo para tooling
	// de operador; jamás en gates de requests ordinarios.
	AllowExpired bool
	// RequestID es el correlation id para logging estructurado.
	// Nunca se refleja al caller.
	RequestID string
}

func NewVerifier(cfg *config.Config, ks *Keystore) *Verifier {
	return &Verifier{
		keys:     ks,
		issuer:   cfg.JWT.Issuer,
		audience: cfg.JWT.Audience,
	}
}

// tokenHeader es el header leído SIN confiar en la firma: solo sirve
// para despachar entre los dos caminos de verificación.
type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

func peekHeader(raw string) (*tokenHeader, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("want 3 segments, got %d", len(parts))
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("header segment: %w", err)
	}
	var h tokenHeader
	if err := json.Unmarshal(hb, &h); err != nil {
		return nil, fmt.Errorf("header json: %w", err)
	}
	return &h, nil
}

// Verify valida un bearer token. En éxito devuelve el claim set validado;
// en fallo, exactamente una de las cuatro categorías.
func (v *Verifier) Verify(ctx context.Context, raw string, opts VerifyOptions) (*AccessClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, v.fail(ctx, opts, CategoryMissing, "unknown", "none", errors.New("empty bearer"))
	}

	hdr, err := peekHeader(raw)
	if err != nil {
		return nil, v.fail(ctx, opts, CategoryMalformed, "unknown", "none", err)
	}

	switch hdr.Alg {
	case "HS256":
		return v.verifyHS256(ctx, raw, hdr, opts)
	case "RS256":
		return v.verifyRS256(ctx, raw, hdr, opts)
	default:
		// "none" y cualquier alg desconocido caen acá.
		return nil, v.fail(ctx, opts, CategoryMalformed, hdr.Alg, kidOrNone(hdr.Kid), fmt.Errorf("unsupported alg %q", hdr.Alg))
	}
}

// verifyHS256 es el camino legacy: firma con el shared secret, exp salvo
// allow-expired. Issuer y audience NO se chequean (tolerancia legacy).
func (v *Verifier) verifyHS256(ctx context.Context, raw string, hdr *tokenHeader, opts VerifyOptions) (*AccessClaims, error) {
	secret := v.keys.Secret()
	if len(secret) == 0 {
		// La forma del token estaba bien; al deployment le falta la clave.
		return nil, v.fail(ctx, opts, CategoryInvalidSignature, hdr.Alg, "none", errors.New("no shared secret configured"))
	}

	popts := []jwtv5.ParserOption{jwtv5.WithValidMethods([]string{"HS256"})}
	if opts.AllowExpired {
		popts = append(popts, jwtv5.WithoutClaimsValidation())
	}

	claims := &AccessClaims{}
	tok, err := jwtv5.ParseWithClaims(raw, claims, func(t *jwtv5.Token) (any, error) {
		return secret, nil
	}, popts...)
	if err != nil || !tok.Valid {
		return nil, v.fail(ctx, opts, categorizeParseErr(err), hdr.Alg, "none", err)
	}
	return claims, nil
}

// verifyRS256 es el camino moderno: pubkey por kid, exp salvo allow-expired,
// y SÍ se exigen issuer y audience configurados.
func (v *Verifier) verifyRS256(ctx context.Context, raw string, hdr *tokenHeader, opts VerifyOptions) (*AccessClaims, error) {
	if hdr.Kid == "" {
		return nil, v.fail(ctx, opts, CategoryMalformed, hdr.Alg, "none", errors.New("kid header missing"))
	}
	pub, ok := v.keys.VerificationKey(hdr.Kid)
	if !ok {
		return nil, v.fail(ctx, opts, CategoryInvalidSignature, hdr.Alg, hdr.Kid, fmt.Errorf("unknown kid %q", hdr.Kid))
	}

	popts := []jwtv5.ParserOption{jwtv5.WithValidMethods([]string{"RS256"})}
	if opts.AllowExpired {
		popts = append(popts, jwtv5.WithoutClaimsValidation())
	} else {
		popts = append(popts,
			jwtv5.WithIssuer(v.issuer),
			jwtv5.WithAudience(v.audience),
		)
	}

	claims := &AccessClaims{}
	tok, err := jwtv5.ParseWithClaims(raw, claims, func(t *jwtv5.Token) (any, error) {
		return pub, nil
	}, popts...)
	if err != nil || !tok.Valid {
		return nil, v.fail(ctx, opts, categorizeParseErr(err), hdr.Alg, hdr.Kid, err)
	}

	// Con allow-expired la validación de claims quedó apagada: issuer y
	// audience se exigen igual a mano.
	if opts.AllowExpired {
		if claims.Issuer != v.issuer {
			return nil, v.fail(ctx, opts, CategoryInvalidSignature, hdr.Alg, hdr.Kid, fmt.Errorf("issuer mismatch"))
		}
		if !claims.HasAudience(v.audience) {
			return nil, v.fail(ctx, opts, CategoryInvalidSignature, hdr.Alg, hdr.Kid, fmt.Errorf("audience mismatch"))
		}
	}
	return claims, nil
}

// categorizeParseErr mapea los errores de la librería a la taxonomía.
// Issuer/audience inválidos bajo RS256 reportan invalid_signature, no una
// categoría propia: decisión de diseño heredada de los consumers actuales.
func categorizeParseErr(err error) Category {
	switch {
	case err == nil:
		return CategoryInvalidSignature
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		return CategoryMalformed
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return CategoryExpired
	case errors.Is(err, jwtv5.ErrTokenSignatureInvalid):
		return CategoryInvalidSignature
	case errors.Is(err, jwtv5.ErrTokenInvalidIssuer), errors.Is(err, jwtv5.ErrTokenInvalidAudience):
		return CategoryInvalidSignature
	default:
		return CategoryInvalidSignature
	}
}

// fail emite exactamente un registro warn por fallo: correlation id,
// categoría, alg y kid vistos. Nunca el token, su firma ni la clave.
func (v *Verifier) fail(ctx context.Context, opts VerifyOptions, cat Category, alg, kid string, cause error) error {
	rid := opts.RequestID
	if rid == "" {
		rid = "unknown"
	}
	logger.From(ctx).Warn("token verification failed",
		logger.RequestID(rid),
		logger.Category(cat.Code()),
		logger.Alg(alg),
		logger.KID(kid),
		logger.Err(cause),
	)
	metrics.RecordVerifyFailure(cat.Code(), alg)
	return &VerifyError{Category: cat, Message: cat.message()}
}

func kidOrNone(kid string) string {
	if kid == "" {
		return "none"
	}
	return kid
}
