package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyTokenResolvesIdentity(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{"user_id": float64(42), "role": "student"})

	identity, err := VerifyToken(token, testSecret)
	require.NoError(t, err)
	require.Equal(t, uint(42), identity.UserID)
	require.Equal(t, "student", identity.Role)
}

func TestVerifyTokenSubjectVariants(t *testing.T) {
	cases := []struct {
		name   string
		claims jwt.MapClaims
		userID uint
		role   string
	}{
		{name: "numeric sub", claims: jwt.MapClaims{"sub": float64(7)}, userID: 7},
		{name: "string sub", claims: jwt.MapClaims{"sub": "7", "role": "ADMIN"}, userID: 7, role: "admin"},
		{name: "id claim", claims: jwt.MapClaims{"id": float64(9)}, userID: 9},
		{name: "roles list", claims: jwt.MapClaims{"user_id": float64(3), "roles": []interface{}{"teacher"}}, userID: 3, role: "teacher"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity, err := VerifyToken(signToken(t, testSecret, tc.claims), testSecret)
			require.NoError(t, err)
			require.Equal(t, tc.userID, identity.UserID)
			require.Equal(t, tc.role, identity.Role)
		})
	}
}

func TestVerifyTokenRejections(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "whitespace", token: "   "},
		{name: "garbage", token: "not-a-token"},
		{name: "wrong secret", token: signToken(t, "other-secret", jwt.MapClaims{"user_id": float64(1)})},
		{name: "missing subject", token: signToken(t, testSecret, jwt.MapClaims{"role": "student"})},
		{name: "negative subject", token: signToken(t, testSecret, jwt.MapClaims{"user_id": float64(-1)})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := VerifyToken(tc.token, testSecret)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyTokenRejectsNonHMACMethod(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": float64(1)})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = VerifyToken(signed, testSecret)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func newProtectedApp(secret string) *fiber.App {
	app := fiber.New()
	app.Get("/me", JWTProtected(secret), func(c *fiber.Ctx) error {
		identity, ok := IdentityFromCtx(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"user_id": identity.UserID, "role": identity.Role})
	})
	return app
}

func TestJWTProtectedAcceptsBearer(t *testing.T) {
	app := newProtectedApp(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"user_id": float64(42), "role": "student"})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejectsBadHeaders(t *testing.T) {
	app := newProtectedApp(testSecret)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "no bearer prefix", header: "Token abc"},
		{name: "invalid token", header: "Bearer not-a-token"},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other-secret", jwt.MapClaims{"user_id": float64(1)})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}
