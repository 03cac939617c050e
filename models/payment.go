package models

import "github.com/shopspring/decimal"

// CheckoutItem is one line of a checkout request: a meal date and how many
// meals, priced either full or subsidized.
type CheckoutItem struct {
	Data       string `json:"data"`
	Quantidade int    `json:"quantidade"`
	Subsidiado bool   `json:"subsidiado"`
}

type CheckoutResult struct {
	Tickets             []*Ticket       `json:"tickets"`
	Total               decimal.Decimal `json:"total"`
	ReferenciaPagamento string          `json:"referencia_pagamento"`
	PreferenciaID       string          `json:"preferencia_id"`
	InitPoint           string          `json:"init_point"`
	SandboxInitPoint    string          `json:"sandbox_init_point,omitempty"`
	PublicKey           string          `json:"public_key,omitempty"`
}

// PaymentNotice is pushed to the ticket owner's realtime channel.
type PaymentNotice struct {
	Type                string   `json:"type"`
	ReferenciaPagamento string   `json:"referencia_pagamento,omitempty"`
	PagamentoID         string   `json:"pagamento_id,omitempty"`
	Status              string   `json:"status"`
	Tickets             []string `json:"tickets"`
}
