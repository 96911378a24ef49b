package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"campuslink/internal/domain/entity"
	"campuslink/internal/infrastructure/jwtauth"
	"campuslink/pkg/errors"
	"campuslink/pkg/logger"
	"campuslink/pkg/response"
)

const devTokenTTL = 24 * time.Hour

// DirectorySeeder is implemented by directories that accept new users, such
// as the in-memory one.
type DirectorySeeder interface {
	Put(id string, role entity.Role)
}

// DevTokenHandler mints HS256 tokens for local development.
type DevTokenHandler struct {
	tokens *jwtauth.Manager
	seeder DirectorySeeder
}

// NewDevTokenHandler registers issued users with seeder when it is not nil.
func NewDevTokenHandler(tokens *jwtauth.Manager, seeder DirectorySeeder) *DevTokenHandler {
	return &DevTokenHandler{
		tokens: tokens,
		seeder: seeder,
	}
}

type devTokenRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=student alumni admin"`
}

func (h *DevTokenHandler) GenerateToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	identity := entity.Identity{UserID: req.UserID, Role: entity.Role(req.Role)}
	token, err := h.tokens.Issue(identity, devTokenTTL)
	if err != nil {
		return response.Error(c, err)
	}
	if h.seeder != nil {
		h.seeder.Put(identity.UserID, identity.Role)
	}

	logger.Debug("Issued dev token for %s (%s)", identity.UserID, identity.Role)
	return response.Success(c, map[string]interface{}{
		"token":      token,
		"user":       identity,
		"expires_in": int(devTokenTTL.Seconds()),
	})
}
