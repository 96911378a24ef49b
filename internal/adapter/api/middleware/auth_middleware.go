package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"campuslink/internal/domain/entity"
	"campuslink/internal/usecase"
	"campuslink/pkg/errors"
	"campuslink/pkg/response"
)

const identityKey = "identity"

type AuthMiddleware struct {
	verifier usecase.TokenVerifier
}

func NewAuthMiddleware(verifier usecase.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// Authenticate accepts "Authorization: Bearer <token>" or, for browsers
// opening a socket, a ?token= query parameter.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, err := TokenFromRequest(c)
		if err != nil {
			return response.Error(c, err)
		}

		identity, err := m.verifier.Verify(c.Request().Context(), token)
		if err != nil {
			return response.Error(c, err)
		}

		c.Set(identityKey, *identity)
		return next(c)
	}
}

func TokenFromRequest(c echo.Context) (string, error) {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", errors.Unauthorized("Invalid authorization format", nil)
		}
		return parts[1], nil
	}
	if token := c.QueryParam("token"); token != "" {
		return token, nil
	}
	return "", errors.Unauthorized("Authorization header is required", nil)
}

// IdentityFrom returns the caller set by Authenticate.
func IdentityFrom(c echo.Context) (entity.Identity, bool) {
	identity, ok := c.Get(identityKey).(entity.Identity)
	return identity, ok
}
