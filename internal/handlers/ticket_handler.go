package handlers

import (
	"net/http"
	"strconv"

	"ru-ticket/internal/services"
	"ru-ticket/internal/status"
	"ru-ticket/models"

	"github.com/pocketbase/pocketbase/core"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type TicketHandler struct {
	tickets *services.TicketService
	resp    *Responder
}

func NewTicketHandler(tickets *services.TicketService, resp *Responder) *TicketHandler {
	return &TicketHandler{tickets: tickets, resp: resp}
}

// CreateTicket - POST /api/tickets
func (h *TicketHandler) CreateTicket(e *core.RequestEvent) error {
	var in services.CreateTicketInput
	if err := bindJSON(e, &in); err != nil {
		return h.resp.Error(e, err)
	}

	role := models.RoleOf(e.Auth)
	if in.UsuarioID == "" {
		in.UsuarioID = e.Auth.Id
	}
	if role != models.RoleAdmin {
		if in.UsuarioID != e.Auth.Id {
			return h.resp.Error(e, status.ErrForbidden)
		}
		// only admins pick a status; everyone else starts pending
		in.Status = models.TicketPendente
	}

	ticket, err := h.tickets.CreateTicket(e.Request.Context(), in)
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusCreated, ticket)
}

// ListTickets - GET /api/tickets
func (h *TicketHandler) ListTickets(e *core.RequestEvent) error {
	q := e.Request.URL.Query()

	usuarioID := e.Auth.Id
	if models.RoleOf(e.Auth).IsStaff() {
		usuarioID = q.Get("usuario_id")
	}

	limit := queryInt(q.Get("limit"), defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(q.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	tickets, err := h.tickets.ListTickets(e.Request.Context(), usuarioID, limit, offset)
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"tickets": tickets,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetTicket - GET /api/tickets/{id}
func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	ticket, err := h.tickets.GetTicket(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return h.resp.Error(e, err)
	}
	if ticket.UsuarioID != e.Auth.Id && !models.RoleOf(e.Auth).IsStaff() {
		// do not reveal other users' tickets
		return h.resp.Error(e, status.ErrTicketNotFound)
	}

	history, err := h.tickets.TicketHistory(e.Request.Context(), ticket.ID)
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"ticket":    ticket,
		"historico": history,
	})
}

type updateTicketRequest struct {
	Status models.TicketStatus `json:"status"`
}

// UpdateTicket - PATCH /api/tickets/{id}
func (h *TicketHandler) UpdateTicket(e *core.RequestEvent) error {
	var req updateTicketRequest
	if err := bindJSON(e, &req); err != nil {
		return h.resp.Error(e, err)
	}

	ticket, err := h.tickets.SetStatus(e.Request.Context(), e.Request.PathValue("id"), req.Status)
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusOK, ticket)
}

type validateTicketRequest struct {
	ValidadoPor string `json:"validado_por"`
	Acao        string `json:"acao"`
}

// ValidateTicket - PATCH /api/tickets/{id}/validar
func (h *TicketHandler) ValidateTicket(e *core.RequestEvent) error {
	var req validateTicketRequest
	if err := bindJSON(e, &req); err != nil {
		return h.resp.Error(e, err)
	}
	if req.ValidadoPor == "" {
		req.ValidadoPor = e.Auth.Id
	}

	ticket, err := h.tickets.ValidateTicket(e.Request.Context(), e.Request.PathValue("id"), req.Acao, req.ValidadoPor)
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"mensagem": "Ticket validado com sucesso",
		"ticket":   ticket,
	})
}

type qrLookupRequest struct {
	QRCode string `json:"qr_code"`
}

// LookupQRCode - POST /api/tickets/validar-qr
func (h *TicketHandler) LookupQRCode(e *core.RequestEvent) error {
	var req qrLookupRequest
	if err := bindJSON(e, &req); err != nil {
		return h.resp.Error(e, err)
	}

	ticket, err := h.tickets.FindByQRCode(e.Request.Context(), req.QRCode)
	if err != nil {
		return h.resp.Error(e, err)
	}

	body := map[string]any{"ticket": ticket}
	if owner, err := e.App.FindRecordById(models.CollectionUsuarios, ticket.UsuarioID); err == nil {
		body["usuario"] = models.UsuarioFromRecord(owner)
	}
	return e.JSON(http.StatusOK, body)
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
