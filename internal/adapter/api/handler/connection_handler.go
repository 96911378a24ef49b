package handler

import (
	"github.com/labstack/echo/v4"

	"campuslink/internal/adapter/api/middleware"
	"campuslink/internal/domain/entity"
	"campuslink/internal/usecase"
	"campuslink/pkg/errors"
	"campuslink/pkg/response"
)

type ConnectionHandler struct {
	connectionUseCase *usecase.ConnectionUseCase
}

func NewConnectionHandler(connectionUseCase *usecase.ConnectionUseCase) *ConnectionHandler {
	return &ConnectionHandler{
		connectionUseCase: connectionUseCase,
	}
}

type createConnectionRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Message     string `json:"message" validate:"max=1000"`
}

type respondConnectionRequest struct {
	ConnectionID string `json:"connection_id" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=accepted rejected"`
}

// CreateRequest sends a connection request, optionally with a note.
func (h *ConnectionHandler) CreateRequest(c echo.Context) error {
	var req createConnectionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	connection, err := h.connectionUseCase.CreateRequest(c.Request().Context(), identity, usecase.CreateConnectionInput{
		RecipientID: req.RecipientID,
		Message:     req.Message,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, connection)
}

// Respond accepts or rejects a pending request addressed to the caller.
func (h *ConnectionHandler) Respond(c echo.Context) error {
	var req respondConnectionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	connection, err := h.connectionUseCase.Respond(c.Request().Context(), identity, usecase.RespondConnectionInput{
		ConnectionID: req.ConnectionID,
		Status:       entity.ConnectionStatus(req.Status),
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, connection)
}

// Status returns the connection between the caller and ?with=, or null.
func (h *ConnectionHandler) Status(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	connection, err := h.connectionUseCase.StatusBetween(c.Request().Context(), identity.UserID, c.QueryParam("with"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, connection)
}

// Pending lists pending requests; ?as=requester lists the ones the caller sent.
func (h *ConnectionHandler) Pending(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	asRecipient := true
	switch c.QueryParam("as") {
	case "", "recipient":
	case "requester":
		asRecipient = false
	default:
		return response.Error(c, errors.Validation("as must be one of: recipient requester"))
	}

	connections, err := h.connectionUseCase.ListPending(c.Request().Context(), identity.UserID, asRecipient)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, connections)
}

func (h *ConnectionHandler) Accepted(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	connections, err := h.connectionUseCase.ListAccepted(c.Request().Context(), identity.UserID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, connections)
}
