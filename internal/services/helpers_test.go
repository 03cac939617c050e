package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ru-ticket/config"
	"ru-ticket/internal/services/mercadopago"
	_ "ru-ticket/migrations"
	"ru-ticket/models"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/shopspring/decimal"
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

type ticketFixture struct {
	usuarioID  string
	status     models.TicketStatus
	valor      string
	subsidiado bool
	referencia string
	validado   bool
	data       string
}

func createTicket(t *testing.T, app core.App, f ticketFixture) *core.Record {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId(models.CollectionTickets)
	require.NoError(t, err)

	if f.valor == "" {
		f.valor = "10.00"
	}
	if f.data == "" {
		f.data = time.Now().UTC().Format(models.DateLayout)
	}

	record := newTicketRecord(collection, CreateTicketInput{
		UsuarioID:  f.usuarioID,
		Data:       f.data,
		Quantidade: 1,
		ValorTotal: decimal.RequireFromString(f.valor),
		Status:     f.status,
		Subsidiado: f.subsidiado,
	}, f.referencia)
	record.Set("validado", f.validado)
	require.NoError(t, app.Save(record))
	return record
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:          "test",
		PublicBaseURL:        "https://ru.example.com",
		MercadoPagoPublicKey: "TEST-public-key",
		PrecoIntegral:        decimal.RequireFromString("10.00"),
		PrecoSubsidiado:      decimal.RequireFromString("2.00"),
	}
}

type fakeGateway struct {
	mu          sync.Mutex
	preference  *mercadopago.Preference
	prefErr     error
	payment     *mercadopago.Payment
	paymentErr  error
	methods     []mercadopago.PaymentMethod
	methodsErr  error
	prefReqs    []*mercadopago.PreferenceRequest
	paymentIDs  []string
	methodCalls int
}

func (g *fakeGateway) CreatePreference(_ context.Context, req *mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prefReqs = append(g.prefReqs, req)
	if g.prefErr != nil {
		return nil, g.prefErr
	}
	return g.preference, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*mercadopago.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paymentIDs = append(g.paymentIDs, id)
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	return g.payment, nil
}

func (g *fakeGateway) ListPaymentMethods(context.Context) ([]mercadopago.PaymentMethod, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.methodCalls++
	return g.methods, g.methodsErr
}

type sentNotice struct {
	userID  string
	message any
}

type recordingNotifier struct {
	sent chan sentNotice
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan sentNotice, 16)}
}

func (n *recordingNotifier) Notify(_ context.Context, userID string, message any) error {
	n.sent <- sentNotice{userID: userID, message: message}
	return nil
}

func (n *recordingNotifier) next(t *testing.T) sentNotice {
	t.Helper()
	select {
	case s := <-n.sent:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no notification sent")
		return sentNotice{}
	}
}
