package token

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/restin-ai/authcore/internal/config"
	"github.com/restin-ai/authcore/internal/metrics"
)

// Signer emite tokens firmados con el régimen elegido al arranque.
// Es una función pura de sus inputs más config inmutable: no consulta
// estado per-request.
type Signer struct {
	keys     *Keystore
	issuer   string
	audience string
	ttl      time.Duration
}

func NewSigner(cfg *config.Config, ks *Keystore) *Signer {
	return &Signer{
		keys:     ks,
		issuer:   cfg.JWT.Issuer,
		audience: cfg.JWT.Audience,
		ttl:      cfg.JWT.TokenTTL,
	}
}

// Sign emite un token para el principal dado. deviceID puede ser nil.
// Devuelve el token compacto y su instante de expiración.
func (s *Signer) Sign(userID, venueID, role string, deviceID *string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(s.ttl)

	claims := &AccessClaims{
		UserID:   userID,
		VenueID:  venueID,
		Role:     role,
		DeviceID: deviceID,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwtv5.ClaimStrings{s.audience},
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}

	if s.keys.Mode() == config.ModeAsymmetric {
		kid, priv, err := s.keys.SigningKey()
		if err != nil {
			return "", time.Time{}, err
		}
		tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
		tk.Header["kid"] = kid
		tk.Header["typ"] = "JWT"
		signed, err := tk.SignedString(priv)
		if err != nil {
			return "", time.Time{}, err
		}
		metrics.RecordTokenIssued("RS256")
		return signed, exp, nil
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tk.SignedString(s.keys.Secret())
	if err != nil {
		return "", time.Time{}, err
	}
	metrics.RecordTokenIssued("HS256")
	return signed, exp, nil
}
