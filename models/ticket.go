package models

import (
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

const (
	CollectionTickets       = "tickets"
	CollectionTicketHistory = "ticket_historico"
	CollectionUsuarios      = "usuarios"
	CollectionQRLoginTokens = "qr_login_tokens"
	DateLayout              = "2006-01-02"
	ValidateAction          = "validar"
	HistoryOriginWebhook    = "webhook"
	HistoryOriginAdmin      = "admin"
)

// TicketStatus is the payment state of a ticket. Redemption is tracked
// separately by Ticket.Validado.
type TicketStatus string

const (
	TicketPendente  TicketStatus = "pendente"
	TicketPago      TicketStatus = "pago"
	TicketCancelado TicketStatus = "cancelado"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketPendente, TicketPago, TicketCancelado:
		return true
	}
	return false
}

var TicketStatuses = []string{string(TicketPendente), string(TicketPago), string(TicketCancelado)}

type Ticket struct {
	ID                  string          `json:"id"`
	UsuarioID           string          `json:"usuario_id"`
	Data                string          `json:"data"` // YYYY-MM-DD
	Quantidade          int             `json:"quantidade"`
	ValorTotal          decimal.Decimal `json:"valor_total"`
	Status              TicketStatus    `json:"status"`
	Subsidiado          bool            `json:"subsidiado"`
	ReferenciaPagamento *string         `json:"referencia_pagamento"`
	PreferenciaID       string          `json:"preferencia_id,omitempty"`
	QRCode              string          `json:"qr_code"`
	Validado            bool            `json:"validado"`
	ValidadoEm          *time.Time      `json:"validado_em"`
	ValidadoPor         string          `json:"validado_por,omitempty"`
	CreatedAt           time.Time       `json:"created"`
	UpdatedAt           time.Time       `json:"updated"`
}

// TicketFromRecord converts a "tickets" record into its API shape.
func TicketFromRecord(r *core.Record) *Ticket {
	t := &Ticket{
		ID:            r.Id,
		UsuarioID:     r.GetString("usuario_id"),
		Quantidade:    r.GetInt("quantidade"),
		ValorTotal:    decimal.NewFromFloat(r.GetFloat("valor_total")).Round(2),
		Status:        TicketStatus(r.GetString("status")),
		Subsidiado:    r.GetBool("subsidiado"),
		PreferenciaID: r.GetString("preferencia_id"),
		QRCode:        r.GetString("qr_code"),
		Validado:      r.GetBool("validado"),
		ValidadoPor:   r.GetString("validado_por"),
		CreatedAt:     r.GetDateTime("created").Time(),
		UpdatedAt:     r.GetDateTime("updated").Time(),
	}

	if d := r.GetDateTime("data"); !d.IsZero() {
		t.Data = d.Time().Format(DateLayout)
	}
	if ref := r.GetString("referencia_pagamento"); ref != "" {
		t.ReferenciaPagamento = &ref
	}
	if v := r.GetDateTime("validado_em"); !v.IsZero() {
		vt := v.Time()
		t.ValidadoEm = &vt
	}

	return t
}

// TicketHistory is one audit entry per actual status change.
type TicketHistory struct {
	TicketID       string       `json:"ticket"`
	StatusAnterior TicketStatus `json:"status_anterior"`
	StatusNovo     TicketStatus `json:"status_novo"`
	Origem         string       `json:"origem"`
	PagamentoID    string       `json:"pagamento_id,omitempty"`
}
