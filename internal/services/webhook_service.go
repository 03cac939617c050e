package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"ru-ticket/internal/services/mercadopago"
	"ru-ticket/internal/status"
	"ru-ticket/models"
	"ru-ticket/monitoring"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// ErrWebhookSecretMissing means signature checks are on but no secret is set.
var ErrWebhookSecretMissing = errors.New("webhook secret not configured")

type WebhookResult struct {
	Ignored       bool                `json:"ignorado,omitempty"`
	Unmapped      bool                `json:"nao_mapeado,omitempty"`
	PaymentID     string              `json:"pagamento_id,omitempty"`
	Referencia    string              `json:"referencia,omitempty"`
	GatewayStatus string              `json:"status_gateway,omitempty"`
	Status        models.TicketStatus `json:"status,omitempty"`
	Matched       int                 `json:"encontrados"`
	Updated       int                 `json:"atualizados"`
}

type WebhookService struct {
	app           core.App
	logger        *slog.Logger
	gateway       PaymentGateway
	notifier      Notifier
	secret        string
	skipSignature bool
}

func NewWebhookService(app core.App, gateway PaymentGateway, notifier Notifier, secret string, skipSignature bool) *WebhookService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &WebhookService{
		app:           app,
		logger:        app.Logger().With("service", "webhook"),
		gateway:       gateway,
		notifier:      notifier,
		secret:        secret,
		skipSignature: skipSignature,
	}
}

// Authenticate checks the x-signature header against the raw body.
func (s *WebhookService) Authenticate(body []byte, signatureHeader string) error {
	if s.skipSignature {
		s.logger.Warn("Webhook signature verification is DISABLED; accepting unsigned notification")
		return nil
	}
	if s.secret == "" {
		return ErrWebhookSecretMissing
	}
	if err := mercadopago.VerifySignature(body, signatureHeader, s.secret); err != nil {
		return fmt.Errorf("%w: %v", status.ErrInvalidSignature, err)
	}
	return nil
}

// Process authenticates a notification, fetches the payment it refers to and
// applies the mapped status to every ticket sharing its external reference.
// Replays are no-ops: rows already at the target status are not touched and
// get no new history entry.
func (s *WebhookService) Process(ctx context.Context, body []byte, signatureHeader string, query url.Values) (*WebhookResult, error) {
	if err := s.Authenticate(body, signatureHeader); err != nil {
		if errors.Is(err, status.ErrInvalidSignature) {
			monitoring.TrackWebhook("unauthorized")
		} else {
			monitoring.TrackWebhook("error")
		}
		return nil, err
	}

	n, err := notificationFrom(body, query)
	if err != nil {
		monitoring.TrackWebhook("invalid")
		return nil, err
	}

	result := &WebhookResult{PaymentID: n.PaymentID()}
	if !n.IsPayment() {
		monitoring.TrackWebhook("ignored")
		result.Ignored = true
		return result, nil
	}
	if result.PaymentID == "" {
		monitoring.TrackWebhook("invalid")
		return nil, status.Invalid("Notificação sem id de pagamento")
	}

	payment, err := s.gateway.GetPayment(ctx, result.PaymentID)
	if err != nil {
		monitoring.TrackWebhook("error")
		s.logger.Error("Failed to fetch payment", "paymentID", result.PaymentID, "error", err)
		return nil, fmt.Errorf("%w: %v", status.ErrGateway, err)
	}

	result.Referencia = payment.ExternalReference
	result.GatewayStatus = payment.Status

	if result.Referencia == "" {
		monitoring.TrackWebhook("not_found")
		return result, status.ErrReferenceNotFound
	}

	records, err := s.app.FindRecordsByFilter(
		models.CollectionTickets,
		"referencia_pagamento = {:ref}",
		"created",
		0, 0,
		dbx.Params{"ref": result.Referencia},
	)
	if err != nil {
		monitoring.TrackWebhook("error")
		return nil, fmt.Errorf("find tickets by reference: %w", err)
	}
	result.Matched = len(records)
	if len(records) == 0 {
		monitoring.TrackWebhook("not_found")
		s.logger.Warn("No tickets for payment reference", "paymentID", result.PaymentID, "referencia", result.Referencia)
		return result, status.ErrReferenceNotFound
	}

	target, ok := mercadopago.MapStatus(payment.Status)
	if !ok {
		monitoring.TrackWebhook("unmapped")
		result.Unmapped = true
		s.logger.Warn("Unmapped gateway payment status; tickets left unchanged",
			"paymentID", result.PaymentID,
			"referencia", result.Referencia,
			"status", payment.Status,
		)
		return result, nil
	}
	result.Status = target

	var changed []*core.Record
	for _, record := range records {
		from := models.TicketStatus(record.GetString("status"))
		if from == target {
			continue
		}

		updated, err := changeTicketStatus(s.app, record.Id, target)
		if err != nil {
			monitoring.TrackWebhook("error")
			return nil, err
		}
		if !updated {
			continue
		}

		if err := recordHistory(s.app, record.Id, from, target, models.HistoryOriginWebhook, result.PaymentID); err != nil {
			s.logger.Error("Failed to write ticket history", "ticketID", record.Id, "error", err)
		}
		monitoring.TrackStatusChange(models.HistoryOriginWebhook, string(from), string(target))
		changed = append(changed, record)
	}
	result.Updated = len(changed)

	monitoring.TrackWebhook("processed")
	s.logger.Info("Payment notification processed",
		"paymentID", result.PaymentID,
		"referencia", result.Referencia,
		"gatewayStatus", payment.Status,
		"status", target,
		"matched", result.Matched,
		"updated", result.Updated,
	)

	if target == models.TicketPago && len(changed) > 0 {
		s.notifyOwners(changed, result)
	}

	return result, nil
}

func (s *WebhookService) notifyOwners(records []*core.Record, result *WebhookResult) {
	byOwner := map[string][]string{}
	for _, r := range records {
		owner := r.GetString("usuario_id")
		byOwner[owner] = append(byOwner[owner], r.Id)
	}

	for owner, ticketIDs := range byOwner {
		notifyAsync(s.logger, s.notifier, owner, models.PaymentNotice{
			Type:                "payment_success",
			ReferenciaPagamento: result.Referencia,
			PagamentoID:         result.PaymentID,
			Status:              string(result.Status),
			Tickets:             ticketIDs,
		})
	}
}

// notificationFrom decodes the body, falling back to the query string
// (?type=payment&data.id=123 or the legacy ?topic=payment&id=123).
func notificationFrom(body []byte, query url.Values) (*mercadopago.Notification, error) {
	n := &mercadopago.Notification{}
	if len(strings.TrimSpace(string(body))) > 0 {
		parsed, err := mercadopago.ParseNotification(body)
		if err != nil {
			return nil, status.Invalid("Corpo da notificação inválido")
		}
		n = parsed
	}

	if n.Type == "" {
		n.Type = query.Get("type")
	}
	if n.Topic == "" {
		n.Topic = query.Get("topic")
	}
	if n.PaymentID() == "" {
		if id := query.Get("data.id"); id != "" {
			n.Data.ID = id
		} else if id := query.Get("id"); id != "" && (n.Topic == "payment" || n.Type == "payment") {
			n.Data.ID = id
		}
	}

	return n, nil
}
