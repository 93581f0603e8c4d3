package auth

import (
	"context"

	"github.com/restin-ai/authcore/internal/oauth/google"
)

// GoogleVerifier adapta el verifier OIDC de Google a AssertionVerifier.
type GoogleVerifier struct {
	v *google.Verifier
}

func NewGoogleVerifier(v *google.Verifier) *GoogleVerifier {
	return &GoogleVerifier{v: v}
}

func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (*Assertion, error) {
	claims, err := g.v.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &Assertion{
		Subject:       claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}
