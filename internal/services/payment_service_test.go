package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ru-ticket/internal/services/mercadopago"
	"ru-ticket/internal/status"
	"ru-ticket/models"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentService_Checkout(t *testing.T) {
	app := newTestApp(t)
	db, _ := redismock.NewClientMock()
	buyer := createUsuario(t, app, "aluno@ufx.br", models.RoleUsuario)

	gw := &fakeGateway{preference: &mercadopago.Preference{
		ID:        "pref-1",
		InitPoint: "https://mp.example/checkout?pref=pref-1",
	}}
	svc := NewPaymentService(app, gw, db, testConfig())

	result, err := svc.Checkout(context.Background(), buyer, []models.CheckoutItem{
		{Data: "2026-10-20", Quantidade: 2},
		{Data: "2026-10-21", Quantidade: 1, Subsidiado: true},
	})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("22.00").Equal(result.Total), result.Total.String())
	assert.Equal(t, "pref-1", result.PreferenciaID)
	assert.Equal(t, "https://mp.example/checkout?pref=pref-1", result.InitPoint)
	assert.Equal(t, "TEST-public-key", result.PublicKey)
	assert.NotEmpty(t, result.ReferenciaPagamento)
	require.Len(t, result.Tickets, 2)

	require.Len(t, gw.prefReqs, 1)
	req := gw.prefReqs[0]
	assert.Equal(t, result.ReferenciaPagamento, req.ExternalReference)
	assert.Equal(t, "https://ru.example.com/api/mercadopago/webhook", req.NotificationURL)
	assert.Equal(t, "aluno@ufx.br", req.Payer.Email)
	require.Len(t, req.Items, 2)
	assert.Equal(t, 10.0, req.Items[0].UnitPrice)
	assert.Equal(t, 2, req.Items[0].Quantity)
	assert.Equal(t, 2.0, req.Items[1].UnitPrice)
	assert.Equal(t, "BRL", req.Items[1].CurrencyID)

	records, err := app.FindRecordsByFilter(models.CollectionTickets, "referencia_pagamento = {:ref}", "", 0, 0,
		dbx.Params{"ref": result.ReferenciaPagamento})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		ticket := models.TicketFromRecord(r)
		assert.Equal(t, models.TicketPendente, ticket.Status)
		assert.Equal(t, buyer.Id, ticket.UsuarioID)
		assert.Equal(t, "pref-1", ticket.PreferenciaID)
		if ticket.Subsidiado {
			assert.True(t, decimal.RequireFromString("2").Equal(ticket.ValorTotal))
		} else {
			assert.True(t, decimal.RequireFromString("20").Equal(ticket.ValorTotal))
		}
	}
}

func TestPaymentService_Checkout_GatewayFailure(t *testing.T) {
	app := newTestApp(t)
	db, _ := redismock.NewClientMock()
	buyer := createUsuario(t, app, "aluno@ufx.br", models.RoleUsuario)

	gw := &fakeGateway{prefErr: errors.New("503 service unavailable")}
	svc := NewPaymentService(app, gw, db, testConfig())

	_, err := svc.Checkout(context.Background(), buyer, []models.CheckoutItem{{Data: "2026-10-20", Quantidade: 1}})
	assert.ErrorIs(t, err, status.ErrGateway)

	records, err := app.FindRecordsByFilter(models.CollectionTickets, "usuario_id = {:u}", "", 0, 0, dbx.Params{"u": buyer.Id})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, string(models.TicketPendente), records[0].GetString("status"))
	assert.Empty(t, records[0].GetString("referencia_pagamento"))
}

func TestPaymentService_Checkout_Invalid(t *testing.T) {
	app := newTestApp(t)
	db, _ := redismock.NewClientMock()
	buyer := createUsuario(t, app, "aluno@ufx.br", models.RoleUsuario)
	gw := &fakeGateway{}
	svc := NewPaymentService(app, gw, db, testConfig())

	tests := []struct {
		name  string
		items []models.CheckoutItem
	}{
		{"empty", nil},
		{"bad date", []models.CheckoutItem{{Data: "amanhã", Quantidade: 1}}},
		{"zero quantity", []models.CheckoutItem{{Data: "2026-10-20"}}},
		{"too many", make([]models.CheckoutItem, maxCheckoutItems+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Checkout(context.Background(), buyer, tt.items)
			require.Error(t, err)
			assert.Equal(t, 400, status.Resolve(err).Code)
		})
	}

	assert.Empty(t, gw.prefReqs)

	_, err := svc.Checkout(context.Background(), nil, []models.CheckoutItem{{Data: "2026-10-20", Quantidade: 1}})
	assert.ErrorIs(t, err, status.ErrUnauthenticated)
}

func TestPaymentService_PaymentMethods_Cache(t *testing.T) {
	app := newTestApp(t)
	db, mock := redismock.NewClientMock()

	methods := []mercadopago.PaymentMethod{{ID: "pix", Name: "PIX", PaymentTypeID: "bank_transfer", Status: "active"}}
	encoded, err := json.Marshal(methods)
	require.NoError(t, err)

	gw := &fakeGateway{methods: methods}
	svc := NewPaymentService(app, gw, db, testConfig())

	mock.ExpectGet(paymentMethodsCacheKey).RedisNil()
	mock.ExpectSet(paymentMethodsCacheKey, string(encoded), time.Hour).SetVal("OK")

	got, err := svc.PaymentMethods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, methods, got)
	assert.Equal(t, 1, gw.methodCalls)

	mock.ExpectGet(paymentMethodsCacheKey).SetVal(string(encoded))

	got, err = svc.PaymentMethods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, methods, got)
	assert.Equal(t, 1, gw.methodCalls)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_PaymentMethods_GatewayError(t *testing.T) {
	app := newTestApp(t)
	db, mock := redismock.NewClientMock()

	gw := &fakeGateway{methodsErr: errors.New("timeout")}
	svc := NewPaymentService(app, gw, db, testConfig())

	mock.ExpectGet(paymentMethodsCacheKey).RedisNil()

	_, err := svc.PaymentMethods(context.Background())
	assert.ErrorIs(t, err, status.ErrGateway)
	assert.NoError(t, mock.ExpectationsWereMet())
}
