package mercadopago

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

type (
	PreferenceItem struct {
		ID          string  `json:"id,omitempty"`
		Title       string  `json:"title"`
		Description string  `json:"description,omitempty"`
		Quantity    int     `json:"quantity"`
		CurrencyID  string  `json:"currency_id"`
		UnitPrice   float64 `json:"unit_price"`
	}

	Payer struct {
		Name  string `json:"name,omitempty"`
		Email string `json:"email,omitempty"`
	}

	BackURLs struct {
		Success string `json:"success,omitempty"`
		Failure string `json:"failure,omitempty"`
		Pending string `json:"pending,omitempty"`
	}

	PreferenceRequest struct {
		Items               []PreferenceItem  `json:"items"`
		Payer               *Payer            `json:"payer,omitempty"`
		ExternalReference   string            `json:"external_reference"`
		NotificationURL     string            `json:"notification_url,omitempty"`
		BackURLs            *BackURLs         `json:"back_urls,omitempty"`
		AutoReturn          string            `json:"auto_return,omitempty"`
		StatementDescriptor string            `json:"statement_descriptor,omitempty"`
		Metadata            map[string]string `json:"metadata,omitempty"`
	}

	Preference struct {
		ID                string `json:"id"`
		InitPoint         string `json:"init_point"`
		SandboxInitPoint  string `json:"sandbox_init_point"`
		ExternalReference string `json:"external_reference"`
		DateCreated       string `json:"date_created"`
	}

	Payment struct {
		ID                int64           `json:"id"`
		Status            string          `json:"status"`
		StatusDetail      string          `json:"status_detail"`
		ExternalReference string          `json:"external_reference"`
		TransactionAmount decimal.Decimal `json:"transaction_amount"`
		CurrencyID        string          `json:"currency_id"`
		PaymentMethodID   string          `json:"payment_method_id"`
		PaymentTypeID     string          `json:"payment_type_id"`
		DateApproved      string          `json:"date_approved"`
	}

	PaymentMethod struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		PaymentTypeID   string `json:"payment_type_id"`
		Status          string `json:"status"`
		SecureThumbnail string `json:"secure_thumbnail"`
		Thumbnail       string `json:"thumbnail"`
	}
)

// Notification is the body Mercado Pago posts to the webhook endpoint.
// Identifiers arrive either as JSON strings or numbers.
type Notification struct {
	ID          any    `json:"id"`
	LiveMode    bool   `json:"live_mode"`
	Type        string `json:"type"`
	Topic       string `json:"topic"`
	Action      string `json:"action"`
	DateCreated string `json:"date_created"`
	APIVersion  string `json:"api_version"`
	Data        struct {
		ID any `json:"id"`
	} `json:"data"`
}

// ParseNotification decodes a raw webhook body keeping numeric ids exact.
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("mercadopago: decode notification: %w", err)
	}
	return &n, nil
}

// PaymentID returns the referenced payment id, or "" when absent.
func (n *Notification) PaymentID() string {
	if n.Data.ID != nil {
		return strings.TrimSpace(cast.ToString(n.Data.ID))
	}
	return ""
}

// IsPayment reports whether the notification concerns a payment.
func (n *Notification) IsPayment() bool {
	switch n.Action {
	case "payment.created", "payment.updated":
		return true
	}
	return n.Type == "payment" || n.Topic == "payment"
}
