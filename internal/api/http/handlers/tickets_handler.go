package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketsHandler manages ticket and thread endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
	chat    *service.ChatService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, chatService *service.ChatService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, chat: chatService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), identity.UserID, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(ticket)
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListTickets(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(tickets)
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// UpdateStatus PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	identity, _ := auth.IdentityFromContext(c)
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), id, req.Status, identity)
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// ListMessages GET /api/tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	msgs, err := h.chat.ListMessages(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(msgs)
}

// AddMessage POST /api/tickets/:id/messages. The message is relayed to the
// ticket's room like one sent over the event channel.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	sender := req.Sender
	if sender == "" {
		sender = string(senderFor(identity))
	}
	msg, err := h.chat.SendMessage(c.UserContext(), id, sender, req.Message, identity)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(msg)
}

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	raw := c.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": raw})
	}
	return id, nil
}
