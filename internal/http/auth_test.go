package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/restin-ai/authcore/internal/config"
	"github.com/restin-ai/authcore/internal/token"
)

const testSecret = "0123456789abcdef"

func testVerifier(t *testing.T) (*token.Verifier, *token.Signer) {
	t.Helper()
	var c config.Config
	c.JWT.Mode = config.ModeSymmetric
	c.JWT.Issuer = "restin.ai"
	c.JWT.Audience = "restin.ai"
	c.JWT.TokenTTL = 12 * time.Hour
	c.JWT.SecretKey = testSecret
	ks, err := token.Load(&c)
	require.NoError(t, err)
	return token.NewVerifier(&c, ks), token.NewSigner(&c, ks)
}

func TestBearerToken(t *testing.T) {
	mk := func(h string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if h != "" {
			r.Header.Set("Authorization", h)
		}
		return r
	}

	require.Equal(t, "abc.def.ghi", BearerToken(mk("Bearer abc.def.ghi")))
	require.Equal(t, "abc.def.ghi", BearerToken(mk("bearer abc.def.ghi")))
	require.Equal(t, "", BearerToken(mk("")))
	require.Equal(t, "", BearerToken(mk("Basic dXNlcjpwYXNz")))
	require.Equal(t, "", BearerToken(mk("Bearer")))
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestRequireAuth(t *testing.T) {
	verifier, signer := testVerifier(t)

	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		require.True(t, ok)
		gotUserID = claims.UserID
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAuth(verifier)(next)

	do := func(authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/protected", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing", func(t *testing.T) {
		rec := do("")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "TOKEN_MISSING", errCode(t, rec))
	})

	t.Run("malformed", func(t *testing.T) {
		rec := do("Bearer not-a-jwt")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "TOKEN_MALFORMED", errCode(t, rec))
	})

	t.Run("expired", func(t *testing.T) {
		raw, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
			"user_id": "u-1",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		rec := do("Bearer " + raw)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "TOKEN_EXPIRED", errCode(t, rec))
	})

	t.Run("invalid signature", func(t *testing.T) {
		raw, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
			"user_id": "u-1",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("the-wrong-secret"))
		require.NoError(t, err)

		rec := do("Bearer " + raw)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "TOKEN_INVALID_SIGNATURE", errCode(t, rec))
	})

	t.Run("ok", func(t *testing.T) {
		raw, _, err := signer.Sign("u-7", "v-1", "waiter", nil)
		require.NoError(t, err)

		rec := do("Bearer " + raw)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "u-7", gotUserID)
	})
}
