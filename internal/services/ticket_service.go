package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ru-ticket/internal/status"
	"ru-ticket/models"
	"ru-ticket/monitoring"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

const maxQuantidade = 20

type TicketService struct {
	app      core.App
	logger   *slog.Logger
	notifier Notifier
}

func NewTicketService(app core.App, notifier Notifier) *TicketService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &TicketService{
		app:      app,
		logger:   app.Logger().With("service", "tickets"),
		notifier: notifier,
	}
}

type CreateTicketInput struct {
	UsuarioID  string              `json:"usuario_id"`
	Data       string              `json:"data"`
	Quantidade int                 `json:"quantidade"`
	ValorTotal decimal.Decimal     `json:"valor_total"`
	Status     models.TicketStatus `json:"status"`
	Subsidiado bool                `json:"subsidiado"`
}

func (in CreateTicketInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.UsuarioID, validation.Required),
		validation.Field(&in.Data, validation.Required, validation.Date(models.DateLayout)),
		validation.Field(&in.Quantidade, validation.Required, validation.Min(1), validation.Max(maxQuantidade)),
		validation.Field(&in.Status, validation.In(models.TicketPendente, models.TicketPago, models.TicketCancelado)),
	)
	if err != nil {
		return status.Invalid(err.Error())
	}
	if in.ValorTotal.IsNegative() {
		return status.Invalid("valor_total: must not be negative.")
	}
	return nil
}

// CreateTicket inserts a ticket with a fresh QR code. Status defaults to pendente.
func (s *TicketService) CreateTicket(ctx context.Context, in CreateTicketInput) (*models.Ticket, error) {
	if in.Status == "" {
		in.Status = models.TicketPendente
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.app.FindRecordById(models.CollectionUsuarios, in.UsuarioID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrUserNotFound
		}
		return nil, fmt.Errorf("find usuario: %w", err)
	}

	collection, err := s.app.FindCollectionByNameOrId(models.CollectionTickets)
	if err != nil {
		return nil, fmt.Errorf("find tickets collection: %w", err)
	}

	record := newTicketRecord(collection, in, "")
	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("save ticket: %w", err)
	}

	s.logger.Info("Ticket created", "ticketID", record.Id, "usuarioID", in.UsuarioID, "status", in.Status)
	return models.TicketFromRecord(record), nil
}

func newTicketRecord(collection *core.Collection, in CreateTicketInput, referencia string) *core.Record {
	record := core.NewRecord(collection)
	record.Set("usuario_id", in.UsuarioID)
	record.Set("data", in.Data)
	record.Set("quantidade", in.Quantidade)
	record.Set("valor_total", in.ValorTotal.Round(2).InexactFloat64())
	record.Set("status", string(in.Status))
	record.Set("subsidiado", in.Subsidiado)
	record.Set("referencia_pagamento", referencia)
	record.Set("qr_code", uuid.NewString())
	record.Set("validado", false)
	return record
}

// ListTickets returns tickets newest first; an empty usuarioID lists all of them.
func (s *TicketService) ListTickets(ctx context.Context, usuarioID string, limit, offset int) ([]*models.Ticket, error) {
	filter := ""
	params := dbx.Params{}
	if usuarioID != "" {
		filter = "usuario_id = {:usuario}"
		params["usuario"] = usuarioID
	}

	records, err := s.app.FindRecordsByFilter(models.CollectionTickets, filter, "-data,-created", limit, offset, params)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	tickets := make([]*models.Ticket, 0, len(records))
	for _, r := range records {
		tickets = append(tickets, models.TicketFromRecord(r))
	}
	return tickets, nil
}

func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	record, err := s.findTicket(id)
	if err != nil {
		return nil, err
	}
	return models.TicketFromRecord(record), nil
}

func (s *TicketService) findTicket(id string) (*core.Record, error) {
	if id == "" {
		return nil, status.ErrTicketNotFound
	}
	record, err := s.app.FindRecordById(models.CollectionTickets, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrTicketNotFound
		}
		return nil, fmt.Errorf("find ticket %s: %w", id, err)
	}
	return record, nil
}

// FindByQRCode resolves a scanned QR payload. The payload is normally the
// ticket's qr_code; a bare ticket id is accepted too.
func (s *TicketService) FindByQRCode(ctx context.Context, payload string) (*models.Ticket, error) {
	if payload == "" {
		return nil, status.Invalid("qr_code: cannot be blank.")
	}

	record, err := s.app.FindFirstRecordByData(models.CollectionTickets, "qr_code", payload)
	if err == nil {
		return models.TicketFromRecord(record), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find ticket by qr: %w", err)
	}

	return s.GetTicket(ctx, payload)
}

// SetStatus changes a ticket's payment status by hand and writes an audit
// entry when the status actually changed.
func (s *TicketService) SetStatus(ctx context.Context, id string, to models.TicketStatus) (*models.Ticket, error) {
	if !to.Valid() {
		return nil, status.Invalid("status: must be a valid value.")
	}

	record, err := s.findTicket(id)
	if err != nil {
		return nil, err
	}

	from := models.TicketStatus(record.GetString("status"))
	if from == to {
		return models.TicketFromRecord(record), nil
	}
	if record.GetBool("validado") {
		return nil, status.ErrTicketAlreadyUsed
	}

	changed, err := changeTicketStatus(s.app, id, to)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := recordHistory(s.app, id, from, to, models.HistoryOriginAdmin, ""); err != nil {
			s.logger.Error("Failed to write ticket history", "ticketID", id, "error", err)
		}
		monitoring.TrackStatusChange(models.HistoryOriginAdmin, string(from), string(to))
		s.logger.Info("Ticket status changed", "ticketID", id, "from", from, "to", to)
	}

	return s.GetTicket(ctx, id)
}

// ValidateTicket redeems a paid ticket exactly once. The final write is a
// conditional update, so of two concurrent redemptions only one succeeds.
func (s *TicketService) ValidateTicket(ctx context.Context, id, acao, validadoPor string) (*models.Ticket, error) {
	if acao != models.ValidateAction {
		return nil, status.Invalid("Ação inválida")
	}

	record, err := s.findTicket(id)
	if err != nil {
		if errors.Is(err, status.ErrTicketNotFound) {
			monitoring.TrackValidation("not_found")
		}
		return nil, err
	}
	if err := redeemable(record); err != nil {
		return nil, err
	}

	now := types.NowDateTime().String()
	res, err := s.app.NonconcurrentDB().NewQuery(
		"UPDATE tickets SET validado = 1, validado_em = {:now}, validado_por = {:por}, updated = {:now} " +
			"WHERE id = {:id} AND validado = 0 AND status = {:pago}",
	).Bind(dbx.Params{
		"now":  now,
		"por":  validadoPor,
		"id":   id,
		"pago": string(models.TicketPago),
	}).Execute()
	if err != nil {
		monitoring.TrackValidation("error")
		return nil, fmt.Errorf("validate ticket %s: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		// lost a race; report against the current row
		fresh, err := s.findTicket(id)
		if err != nil {
			return nil, err
		}
		if err := redeemable(fresh); err != nil {
			return nil, err
		}
		monitoring.TrackValidation("already_used")
		return nil, status.ErrTicketAlreadyUsed
	}

	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	monitoring.TrackValidation("validated")
	s.logger.Info("Ticket validated", "ticketID", id, "validadoPor", validadoPor)

	notifyAsync(s.logger, s.notifier, ticket.UsuarioID, map[string]any{
		"type":        "ticket_validated",
		"ticket_id":   ticket.ID,
		"validado_em": ticket.ValidadoEm,
	})

	return ticket, nil
}

func redeemable(record *core.Record) error {
	if record.GetBool("validado") {
		monitoring.TrackValidation("already_used")
		return status.ErrTicketAlreadyUsed
	}
	if models.TicketStatus(record.GetString("status")) != models.TicketPago {
		monitoring.TrackValidation("not_paid")
		return status.ErrTicketNotPaid
	}
	return nil
}

// changeTicketStatus moves a non-redeemed ticket to the target status. It
// reports false when the row already had that status or was redeemed.
func changeTicketStatus(app core.App, id string, to models.TicketStatus) (bool, error) {
	res, err := app.NonconcurrentDB().NewQuery(
		"UPDATE tickets SET status = {:to}, updated = {:now} " +
			"WHERE id = {:id} AND status <> {:to} AND validado = 0",
	).Bind(dbx.Params{
		"to":  string(to),
		"now": types.NowDateTime().String(),
		"id":  id,
	}).Execute()
	if err != nil {
		return false, fmt.Errorf("update ticket %s status: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func recordHistory(app core.App, ticketID string, from, to models.TicketStatus, origem, pagamentoID string) error {
	collection, err := app.FindCollectionByNameOrId(models.CollectionTicketHistory)
	if err != nil {
		return fmt.Errorf("find history collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("ticket", ticketID)
	record.Set("status_anterior", string(from))
	record.Set("status_novo", string(to))
	record.Set("origem", origem)
	record.Set("pagamento_id", pagamentoID)

	return app.Save(record)
}

// TicketHistory lists the audit entries of a ticket, oldest first.
func (s *TicketService) TicketHistory(ctx context.Context, id string) ([]*models.TicketHistory, error) {
	records, err := s.app.FindRecordsByFilter(models.CollectionTicketHistory, "ticket = {:id}", "created", 0, 0, dbx.Params{"id": id})
	if err != nil {
		return nil, fmt.Errorf("list ticket history: %w", err)
	}

	entries := make([]*models.TicketHistory, 0, len(records))
	for _, r := range records {
		entries = append(entries, &models.TicketHistory{
			TicketID:       r.GetString("ticket"),
			StatusAnterior: models.TicketStatus(r.GetString("status_anterior")),
			StatusNovo:     models.TicketStatus(r.GetString("status_novo")),
			Origem:         r.GetString("origem"),
			PagamentoID:    r.GetString("pagamento_id"),
		})
	}
	return entries, nil
}

func dayStart(t time.Time) string {
	return t.UTC().Format(models.DateLayout) + " 00:00:00.000Z"
}
