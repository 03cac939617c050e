package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"ru-ticket/internal/services/mercadopago"
	"ru-ticket/internal/session"
	_ "ru-ticket/migrations"
	"ru-ticket/models"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "segredo123"

func newTestApp(t *testing.T) *tests.TestApp {
	t.Helper()
	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return app
}

func newSessions() *session.Manager {
	return session.NewManager("handler-test-secret", 7*24*time.Hour, false)
}

func createUsuario(t *testing.T, app core.App, email string, role models.Role) *core.Record {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId(models.CollectionUsuarios)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	record := core.NewRecord(collection)
	record.Set("nome", "Usuário Teste")
	record.Set("email", email)
	record.Set("senha_hash", string(hash))
	record.Set("role", string(role))
	require.NoError(t, app.Save(record))
	return record
}

func createTicket(t *testing.T, app core.App, usuarioID string, st models.TicketStatus, referencia string) *core.Record {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId(models.CollectionTickets)
	require.NoError(t, err)

	record := core.NewRecord(collection)
	record.Set("usuario_id", usuarioID)
	record.Set("data", "2026-10-20")
	record.Set("quantidade", 1)
	record.Set("valor_total", 2.0)
	record.Set("status", string(st))
	record.Set("subsidiado", true)
	record.Set("referencia_pagamento", referencia)
	record.Set("qr_code", uuid.NewString())
	require.NoError(t, app.Save(record))
	return record
}

// newEvent builds a request event as the router would hand it to a handler.
func newEvent(app core.App, method, target string, body io.Reader, auth *core.Record) (*core.RequestEvent, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()

	e := &core.RequestEvent{App: app, Auth: auth}
	e.Request = req
	e.Response = rec
	return e, rec
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type stubGateway struct {
	payment *mercadopago.Payment
	pref    *mercadopago.Preference
}

func (g *stubGateway) CreatePreference(context.Context, *mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	return g.pref, nil
}

func (g *stubGateway) GetPayment(context.Context, string) (*mercadopago.Payment, error) {
	return g.payment, nil
}

func (g *stubGateway) ListPaymentMethods(context.Context) ([]mercadopago.PaymentMethod, error) {
	return nil, nil
}
