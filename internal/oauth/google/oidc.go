// Package google verifica ID tokens emitidos por Google.
// El cliente (app de piso, back-office) obtiene el ID token vía Google
// Sign-In y lo presenta como assertion; acá solo se verifica.
package google

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/restin-ai/authcore/internal/metrics"
)

const discoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

var (
	ErrInvalidAssertion = errors.New("invalid id_token")
	ErrUnknownKID       = errors.New("kid not found in google jwks")
)

type discoveryDoc struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"` // base64url
	E   string `json:"e"` // base64url
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// Verifier valida assertions de Google contra el JWKS publicado,
// con cache y dedup de refreshes concurrentes.
type Verifier struct {
	ClientID string

	http   *http.Client
	flight singleflight.Group

	mu    sync.RWMutex
	disc  *discoveryDoc
	discU time.Time

	jwks     *jwks
	jwksAt   time.Time
	jwksETag string
}

func New(clientID string) *Verifier {
	return &Verifier{
		ClientID: clientID,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *Verifier) discovery(ctx context.Context) (*discoveryDoc, error) {
	g.mu.RLock()
	disc := g.disc
	stale := time.Since(g.discU) > 24*time.Hour
	g.mu.RUnlock()
	if disc != nil && !stale {
		return disc, nil
	}

	v, err, _ := g.flight.Do("discovery", func() (any, error) {
		req, _ := http.NewRequestWithContext(ctx, "GET", discoveryURL, nil)
		resp, err := g.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		var dd discoveryDoc
		if err := json.NewDecoder(resp.Body).Decode(&dd); err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.disc = &dd
		g.discU = time.Now()
		g.mu.Unlock()
		return &dd, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*discoveryDoc), nil
}

func (g *Verifier) getJWKS(ctx context.Context, uri string) (*jwks, error) {
	g.mu.RLock()
	j := g.jwks
	age := time.Since(g.jwksAt)
	g.mu.RUnlock()
	if j != nil && age < time.Hour {
		return j, nil
	}

	v, err, _ := g.flight.Do("jwks", func() (any, error) {
		req, _ := http.NewRequestWithContext(ctx, "GET", uri, nil)
		g.mu.RLock()
		etag := g.jwksETag
		g.mu.RUnlock()
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		resp, err := g.http.Do(req)
		if err != nil {
			metrics.JWKSRefreshTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotModified {
			g.mu.Lock()
			out := g.jwks
			g.jwksAt = time.Now()
			g.mu.Unlock()
			metrics.JWKSRefreshTotal.WithLabelValues("not_modified").Inc()
			return out, nil
		}
		if resp.StatusCode/100 != 2 {
			metrics.JWKSRefreshTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("jwks http %d", resp.StatusCode)
		}
		var jj jwks
		if err := json.NewDecoder(resp.Body).Decode(&jj); err != nil {
			metrics.JWKSRefreshTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		g.mu.Lock()
		g.jwks = &jj
		g.jwksAt = time.Now()
		g.jwksETag = resp.Header.Get("ETag")
		g.mu.Unlock()
		metrics.JWKSRefreshTotal.WithLabelValues("ok").Inc()
		return &jj, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*jwks), nil
}

func (g *Verifier) rsaKeyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	disc, err := g.discovery(ctx)
	if err != nil {
		return nil, err
	}
	set, err := g.getJWKS(ctx, disc.JWKSURI)
	if err != nil {
		return nil, err
	}
	for _, k := range set.Keys {
		if k.Kid == kid && strings.EqualFold(k.Kty, "RSA") {
			nb, err := base64.RawURLEncoding.DecodeString(k.N)
			if err != nil {
				return nil, err
			}
			eb, err := base64.RawURLEncoding.DecodeString(k.E)
			if err != nil {
				return nil, err
			}
			e := 65537
			if len(eb) > 0 {
				e = 0
				for _, b := range eb {
					e = (e << 8) | int(b)
				}
			}
			return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
		}
	}
	return nil, ErrUnknownKID
}

// IDClaims son los claims de una assertion verificada.
type IDClaims struct {
	Sub           string `json:"sub"`
	Iss           string `json:"iss"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Hd            string `json:"hd,omitempty"`
}

// VerifyIDToken valida firma, iss, aud y exp del ID token. Devuelve claims.
func (g *Verifier) VerifyIDToken(ctx context.Context, idToken string) (*IDClaims, error) {
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidAssertion
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidAssertion
	}
	if err := json.Unmarshal(hb, &header); err != nil {
		return nil, ErrInvalidAssertion
	}
	if header.Alg != "RS256" {
		return nil, fmt.Errorf("%w: unexpected alg %s", ErrInvalidAssertion, header.Alg)
	}

	key, err := g.rsaKeyForKid(ctx, header.Kid)
	if err != nil {
		return nil, err
	}
	tok, err := jwtv5.Parse(idToken,
		func(t *jwtv5.Token) (any, error) { return key, nil },
		jwtv5.WithValidMethods([]string{"RS256"}))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidAssertion
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidAssertion
	}

	iss, _ := claims["iss"].(string)
	if iss != "https://accounts.google.com" && iss != "accounts.google.com" {
		return nil, fmt.Errorf("%w: bad iss", ErrInvalidAssertion)
	}

	audOK := false
	switch a := claims["aud"].(type) {
	case string:
		audOK = a == g.ClientID
	case []any:
		for _, v := range a {
			if s, _ := v.(string); s == g.ClientID {
				audOK = true
				break
			}
		}
	}
	if !audOK {
		return nil, fmt.Errorf("%w: bad aud", ErrInvalidAssertion)
	}

	if expf, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(expf), 0).Before(time.Now().Add(-30 * time.Second)) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidAssertion)
		}
	}

	return &IDClaims{
		Sub:           strClaim(claims, "sub"),
		Iss:           iss,
		Email:         strClaim(claims, "email"),
		EmailVerified: boolClaim(claims, "email_verified"),
		Name:          strClaim(claims, "name"),
		Picture:       strClaim(claims, "picture"),
		Hd:            strClaim(claims, "hd"),
	}, nil
}

func strClaim(m jwtv5.MapClaims, k string) string {
	s, _ := m[k].(string)
	return s
}

func boolClaim(m jwtv5.MapClaims, k string) bool {
	b, _ := m[k].(bool)
	return b
}
