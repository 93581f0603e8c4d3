package token

import (
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// AccessClaims es el claim set de los tokens que emite este core.
// La identidad del sujeto viaja en claims custom (user_id, no "sub"):
// compatibilidad con los tokens pre-existentes del deployment.
type AccessClaims struct {
	UserID   string  `json:"user_id"`
	VenueID  string  `json:"venue_id"`
	Role     string  `json:"role"`
	DeviceID *string `json:"device_id,omitempty"`

	jwtv5.RegisteredClaims
}

// HasAudience reporta si aud contiene el valor esperado.
func (c *AccessClaims) HasAudience(aud string) bool {
	for _, a := range c.Audience {
		if a == aud {
			return true
		}
	}
	return false
}
