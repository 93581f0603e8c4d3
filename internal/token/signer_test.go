package token

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func decodeHeader(t *testing.T, raw string) map[string]any {
	t.Helper()
	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	var h map[string]any
	require.NoError(t, json.Unmarshal(hb, &h))
	return h
}

func TestSign_SymmetricRoundTrip(t *testing.T) {
	cfg := symmetricConfig("0123456789abcdef")
	ks, err := Load(cfg)
	require.NoError(t, err)
	signer := NewSigner(cfg, ks)
	verifier := NewVerifier(cfg, ks)

	device := "tablet-07"
	raw, exp, err := signer.Sign("u-1", "v-1", "waiter", &device)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(12*time.Hour), exp, time.Minute)

	// HS256 y sin kid: el modo simétrico no tiene rotación.
	h := decodeHeader(t, raw)
	require.Equal(t, "HS256", h["alg"])
	require.NotContains(t, h, "kid")

	claims, err := verifier.Verify(context.Background(), raw, VerifyOptions{})
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID)
	require.Equal(t, "v-1", claims.VenueID)
	require.Equal(t, "waiter", claims.Role)
	require.NotNil(t, claims.DeviceID)
	require.Equal(t, "tablet-07", *claims.DeviceID)
	require.Equal(t, "restin.ai", claims.Issuer)
}

func TestSign_AsymmetricRoundTrip(t *testing.T) {
	privPEM, pubPEM := genKeyPEM(t)
	cfg := asymmetricConfig(t, privPEM, map[string]string{"kid-1": pubPEM})
	ks, err := Load(cfg)
	require.NoError(t, err)
	signer := NewSigner(cfg, ks)
	verifier := NewVerifier(cfg, ks)

	raw, _, err := signer.Sign("u-2", "v-9", "manager", nil)
	require.NoError(t, err)

	h := decodeHeader(t, raw)
	require.Equal(t, "RS256", h["alg"])
	require.Equal(t, "kid-1", h["kid"])
	require.Equal(t, "JWT", h["typ"])

	claims, err := verifier.Verify(context.Background(), raw, VerifyOptions{})
	require.NoError(t, err)
	require.Equal(t, "u-2", claims.UserID)
	require.Nil(t, claims.DeviceID)
}

// device_id es omitempty: un token sin device no lleva la claim.
func TestSign_DeviceIDOmitted(t *testing.T) {
	cfg := symmetricConfig("0123456789abcdef")
	ks, err := Load(cfg)
	require.NoError(t, err)
	signer := NewSigner(cfg, ks)

	raw, _, err := signer.Sign("u-1", "v-1", "waiter", nil)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	pb, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	require.NotContains(t, string(pb), "device_id")
	require.NotContains(t, string(pb), `"sub"`)
}
