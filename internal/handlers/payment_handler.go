package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"ru-ticket/internal/services"
	"ru-ticket/internal/services/mercadopago"
	"ru-ticket/internal/status"
	"ru-ticket/models"

	"github.com/pocketbase/pocketbase/core"
)

const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	payments *services.PaymentService
	webhooks *services.WebhookService
	resp     *Responder
}

func NewPaymentHandler(payments *services.PaymentService, webhooks *services.WebhookService, resp *Responder) *PaymentHandler {
	return &PaymentHandler{payments: payments, webhooks: webhooks, resp: resp}
}

type checkoutRequest struct {
	Itens []models.CheckoutItem `json:"itens"`
}

// Checkout - POST /api/checkout
func (h *PaymentHandler) Checkout(e *core.RequestEvent) error {
	var req checkoutRequest
	if err := bindJSON(e, &req); err != nil {
		return h.resp.Error(e, err)
	}

	result, err := h.payments.Checkout(e.Request.Context(), e.Auth, req.Itens)
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusCreated, result)
}

// PaymentMethods - GET /api/mercadopago/payment-methods
func (h *PaymentHandler) PaymentMethods(e *core.RequestEvent) error {
	methods, err := h.payments.PaymentMethods(e.Request.Context())
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusOK, methods)
}

// Webhook - POST /api/mercadopago/webhook
func (h *PaymentHandler) Webhook(e *core.RequestEvent) error {
	body, err := io.ReadAll(io.LimitReader(e.Request.Body, maxWebhookBody))
	if err != nil {
		return h.resp.Error(e, fmt.Errorf("%w: %v", status.ErrInvalidInput, err))
	}

	result, err := h.webhooks.Process(
		e.Request.Context(),
		body,
		e.Request.Header.Get(mercadopago.SignatureHeader),
		e.Request.URL.Query(),
	)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrWebhookSecretMissing):
		return h.resp.Error(e, status.New(http.StatusInternalServerError, "Webhook não configurado"))
	case errors.Is(err, status.ErrReferenceNotFound):
		return h.resp.ErrorWith(e, err, map[string]any{"referencia": result.Referencia})
	default:
		return h.resp.Error(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"recebido":    true,
		"atualizados": result.Updated,
		"resultado":   result,
	})
}
