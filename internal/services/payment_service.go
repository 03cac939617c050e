package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ru-ticket/config"
	"ru-ticket/internal/services/mercadopago"
	"ru-ticket/internal/status"
	"ru-ticket/models"
	"ru-ticket/monitoring"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	paymentMethodsCacheKey = "mercadopago:payment_methods"
	paymentMethodsCacheTTL = time.Hour
	maxCheckoutItems       = 10
	webhookPath            = "/api/mercadopago/webhook"
)

// PaymentGateway is the part of the Mercado Pago client the services use.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, req *mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
	GetPayment(ctx context.Context, id string) (*mercadopago.Payment, error)
	ListPaymentMethods(ctx context.Context) ([]mercadopago.PaymentMethod, error)
}

type PaymentService struct {
	app     core.App
	logger  *slog.Logger
	gateway PaymentGateway
	redis   redis.Cmdable
	cfg     *config.Config
}

func NewPaymentService(app core.App, gateway PaymentGateway, redisClient redis.Cmdable, cfg *config.Config) *PaymentService {
	return &PaymentService{
		app:     app,
		logger:  app.Logger().With("service", "payments"),
		gateway: gateway,
		redis:   redisClient,
		cfg:     cfg,
	}
}

func validateCheckoutItems(items []models.CheckoutItem) error {
	if err := validation.Validate(items, validation.Required, validation.Length(1, maxCheckoutItems)); err != nil {
		return status.Invalid("itens: " + err.Error())
	}
	for i, item := range items {
		err := validation.ValidateStruct(&item,
			validation.Field(&item.Data, validation.Required, validation.Date(models.DateLayout)),
			validation.Field(&item.Quantidade, validation.Required, validation.Min(1), validation.Max(maxQuantidade)),
		)
		if err != nil {
			return status.Invalid(fmt.Sprintf("itens[%d]: %s", i, err.Error()))
		}
	}
	return nil
}

// UnitPrice returns the configured price of one meal.
func (s *PaymentService) UnitPrice(subsidiado bool) decimal.Decimal {
	if subsidiado {
		return s.cfg.PrecoSubsidiado
	}
	return s.cfg.PrecoIntegral
}

// Checkout creates pending tickets for the buyer, opens a gateway preference
// and links the tickets to it through a shared payment reference.
func (s *PaymentService) Checkout(ctx context.Context, buyer *core.Record, items []models.CheckoutItem) (*models.CheckoutResult, error) {
	if buyer == nil {
		return nil, status.ErrUnauthenticated
	}
	if err := validateCheckoutItems(items); err != nil {
		monitoring.TrackCheckout("invalid")
		return nil, err
	}

	collection, err := s.app.FindCollectionByNameOrId(models.CollectionTickets)
	if err != nil {
		return nil, fmt.Errorf("find tickets collection: %w", err)
	}

	total := decimal.Zero
	records := make([]*core.Record, 0, len(items))
	err = s.app.RunInTransaction(func(txApp core.App) error {
		for _, item := range items {
			valor := s.UnitPrice(item.Subsidiado).Mul(decimal.NewFromInt(int64(item.Quantidade))).Round(2)
			record := newTicketRecord(collection, CreateTicketInput{
				UsuarioID:  buyer.Id,
				Data:       item.Data,
				Quantidade: item.Quantidade,
				ValorTotal: valor,
				Status:     models.TicketPendente,
				Subsidiado: item.Subsidiado,
			}, "")
			if err := txApp.SaveWithContext(ctx, record); err != nil {
				return fmt.Errorf("save ticket: %w", err)
			}
			records = append(records, record)
			total = total.Add(valor)
		}
		return nil
	})
	if err != nil {
		monitoring.TrackCheckout("error")
		return nil, err
	}

	referencia := uuid.NewString()
	req := s.preferenceRequest(buyer, items, records, referencia)

	pref, err := s.gateway.CreatePreference(ctx, req)
	if err != nil {
		// tickets stay pendente without a reference and never match a webhook
		s.logger.Error("Failed to create payment preference", "usuarioID", buyer.Id, "referencia", referencia, "error", err)
		monitoring.TrackCheckout("gateway_error")
		return nil, fmt.Errorf("%w: %v", status.ErrGateway, err)
	}

	ids := make([]any, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Id)
	}
	_, err = s.app.NonconcurrentDB().Update(models.CollectionTickets, dbx.Params{
		"referencia_pagamento": referencia,
		"preferencia_id":       pref.ID,
		"updated":              types.NowDateTime().String(),
	}, dbx.In("id", ids...)).Execute()
	if err != nil {
		monitoring.TrackCheckout("error")
		return nil, fmt.Errorf("link tickets to preference: %w", err)
	}

	result := &models.CheckoutResult{
		Tickets:             make([]*models.Ticket, 0, len(records)),
		Total:               total,
		ReferenciaPagamento: referencia,
		PreferenciaID:       pref.ID,
		InitPoint:           pref.InitPoint,
		SandboxInitPoint:    pref.SandboxInitPoint,
		PublicKey:           s.cfg.MercadoPagoPublicKey,
	}
	for _, r := range records {
		t := models.TicketFromRecord(r)
		ref := referencia
		t.ReferenciaPagamento = &ref
		t.PreferenciaID = pref.ID
		result.Tickets = append(result.Tickets, t)
	}

	monitoring.TrackCheckout("created")
	s.logger.Info("Checkout created",
		"usuarioID", buyer.Id,
		"referencia", referencia,
		"preferenciaID", pref.ID,
		"tickets", len(records),
		"total", total.StringFixed(2),
	)

	return result, nil
}

func (s *PaymentService) preferenceRequest(buyer *core.Record, items []models.CheckoutItem, records []*core.Record, referencia string) *mercadopago.PreferenceRequest {
	req := &mercadopago.PreferenceRequest{
		Items:               make([]mercadopago.PreferenceItem, 0, len(items)),
		Payer:               &mercadopago.Payer{Name: buyer.GetString("nome"), Email: buyer.GetString("email")},
		ExternalReference:   referencia,
		NotificationURL:     s.cfg.PublicBaseURL + webhookPath,
		StatementDescriptor: "RU TICKET",
		BackURLs: &mercadopago.BackURLs{
			Success: s.cfg.PublicBaseURL + "/pagamento/sucesso",
			Failure: s.cfg.PublicBaseURL + "/pagamento/falha",
			Pending: s.cfg.PublicBaseURL + "/pagamento/pendente",
		},
		AutoReturn: "approved",
	}

	for i, item := range items {
		title := "Refeição RU " + item.Data
		if item.Subsidiado {
			title += " (subsidiada)"
		}
		req.Items = append(req.Items, mercadopago.PreferenceItem{
			ID:         records[i].Id,
			Title:      title,
			Quantity:   item.Quantidade,
			CurrencyID: "BRL",
			UnitPrice:  s.UnitPrice(item.Subsidiado).InexactFloat64(),
		})
	}
	return req
}

// PaymentMethods lists the gateway's payment methods, cached in Redis.
func (s *PaymentService) PaymentMethods(ctx context.Context) ([]mercadopago.PaymentMethod, error) {
	cached, err := s.redis.Get(ctx, paymentMethodsCacheKey).Result()
	switch {
	case err == nil:
		var methods []mercadopago.PaymentMethod
		if jsonErr := json.Unmarshal([]byte(cached), &methods); jsonErr == nil {
			return methods, nil
		}
		s.logger.Warn("Discarding corrupt payment methods cache entry")
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("Payment methods cache read failed", "error", err)
	}

	methods, err := s.gateway.ListPaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrGateway, err)
	}

	data, err := json.Marshal(methods)
	if err == nil {
		err = s.redis.Set(ctx, paymentMethodsCacheKey, string(data), paymentMethodsCacheTTL).Err()
	}
	if err != nil {
		s.logger.Warn("Payment methods cache write failed", "error", err)
	}

	return methods, nil
}
