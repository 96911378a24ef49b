package handler

import (
	"github.com/labstack/echo/v4"

	"campuslink/internal/adapter/api/middleware"
	"campuslink/internal/domain/entity"
	"campuslink/internal/usecase"
	"campuslink/pkg/errors"
	"campuslink/pkg/response"
	"campuslink/pkg/utils"
)

type MessageHandler struct {
	messageUseCase *usecase.MessageUseCase
}

func NewMessageHandler(messageUseCase *usecase.MessageUseCase) *MessageHandler {
	return &MessageHandler{
		messageUseCase: messageUseCase,
	}
}

type sendMessageRequest struct {
	RecipientID string             `json:"recipient_id" validate:"required"`
	Content     string             `json:"content" validate:"max=10000"`
	MessageType string             `json:"message_type" validate:"omitempty,oneof=text file"`
	Attachment  *attachmentRequest `json:"attachment,omitempty"`
}

type attachmentRequest struct {
	URL      string `json:"url" validate:"required,url"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size" validate:"min=0"`
}

type markReadRequest struct {
	MessageID string `json:"message_id" validate:"required"`
}

type markConversationReadRequest struct {
	WithUserID string `json:"with_user_id" validate:"required"`
}

func (h *MessageHandler) Send(c echo.Context) error {
	var req sendMessageRequest
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

	input := usecase.SendMessageInput{
		RecipientID: req.RecipientID,
		Content:     req.Content,
		MessageType: entity.MessageType(req.MessageType),
	}
	if req.Attachment != nil {
		input.Attachment = &entity.Attachment{
			URL:      req.Attachment.URL,
			Name:     req.Attachment.Name,
			MimeType: req.Attachment.MimeType,
			Size:     req.Attachment.Size,
		}
	}

	message, err := h.messageUseCase.Send(c.Request().Context(), identity, input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// History pages through the conversation with ?with=, newest page first.
func (h *MessageHandler) History(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	params := utils.GetHistoryParams(c)
	page, err := h.messageUseCase.History(c.Request().Context(), identity.UserID, usecase.HistoryInput{
		OtherUserID: c.QueryParam("with"),
		Limit:       params.Limit,
		Before:      params.Before,
		After:       params.After,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, page)
}

func (h *MessageHandler) MarkRead(c echo.Context) error {
	var req markReadRequest
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

	message, err := h.messageUseCase.MarkRead(c.Request().Context(), identity.UserID, req.MessageID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, message)
}

func (h *MessageHandler) MarkConversationRead(c echo.Context) error {
	var req markConversationReadRequest
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

	result, err := h.messageUseCase.MarkConversationRead(c.Request().Context(), identity.UserID, req.WithUserID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, result)
}

func (h *MessageHandler) Delete(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	if err := h.messageUseCase.Delete(c.Request().Context(), identity.UserID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"id": c.Param("id")})
}
