package services

import (
	"context"
	"fmt"
	"time"

	"ru-ticket/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

const (
	defaultDashboardDays = 7
	maxDashboardDays     = 90
)

type StatusSummary struct {
	Status     models.TicketStatus `json:"status"`
	Tickets    int64               `json:"tickets"`
	Quantidade int64               `json:"quantidade"`
	Receita    decimal.Decimal     `json:"receita"`
}

type DailyRevenue struct {
	Dia        string          `json:"dia"`
	Tickets    int64           `json:"tickets"`
	Quantidade int64           `json:"quantidade"`
	Receita    decimal.Decimal `json:"receita"`
}

type Dashboard struct {
	PorStatus       []StatusSummary `json:"por_status"`
	ReceitaPorDia   []DailyRevenue  `json:"receita_por_dia"`
	ReceitaTotal    decimal.Decimal `json:"receita_total"`
	ValidadosHoje   int64           `json:"validados_hoje"`
	SubsidiadosPago int64           `json:"subsidiados_pagos"`
	Dias            int             `json:"dias"`
}

// aggregateRow receives SQLite aggregates; SUM over NUMERIC may come back
// as a float, so every number is scanned as float64.
type aggregateRow struct {
	Key        string  `db:"chave"`
	Tickets    float64 `db:"tickets"`
	Quantidade float64 `db:"quantidade"`
	Receita    float64 `db:"receita"`
}

type DashboardService struct {
	app core.App
	now func() time.Time
}

func NewDashboardService(app core.App) *DashboardService {
	return &DashboardService{app: app, now: time.Now}
}

// Dashboard aggregates sales for the admin view over the last dias days.
func (s *DashboardService) Dashboard(ctx context.Context, dias int) (*Dashboard, error) {
	if dias <= 0 {
		dias = defaultDashboardDays
	}
	if dias > maxDashboardDays {
		dias = maxDashboardDays
	}

	db := s.app.DB()
	today := s.now().UTC()
	out := &Dashboard{Dias: dias, ReceitaTotal: decimal.Zero}

	var byStatus []aggregateRow
	err := db.NewQuery(
		"SELECT status AS chave, COUNT(*) AS tickets, " +
			"COALESCE(SUM(quantidade), 0) AS quantidade, COALESCE(SUM(valor_total), 0) AS receita " +
			"FROM tickets GROUP BY status ORDER BY status",
	).WithContext(ctx).All(&byStatus)
	if err != nil {
		return nil, fmt.Errorf("dashboard by status: %w", err)
	}
	out.PorStatus = make([]StatusSummary, 0, len(byStatus))
	for _, row := range byStatus {
		summary := StatusSummary{
			Status:     models.TicketStatus(row.Key),
			Tickets:    int64(row.Tickets),
			Quantidade: int64(row.Quantidade),
			Receita:    money(row.Receita),
		}
		out.PorStatus = append(out.PorStatus, summary)
		if summary.Status == models.TicketPago {
			out.ReceitaTotal = summary.Receita
		}
	}

	var daily []aggregateRow
	err = db.NewQuery(
		"SELECT substr(data, 1, 10) AS chave, COUNT(*) AS tickets, " +
			"COALESCE(SUM(quantidade), 0) AS quantidade, COALESCE(SUM(valor_total), 0) AS receita " +
			"FROM tickets WHERE status = {:pago} AND data >= {:desde} " +
			"GROUP BY chave ORDER BY chave",
	).Bind(dbx.Params{
		"pago":  string(models.TicketPago),
		"desde": dayStart(today.AddDate(0, 0, -(dias - 1))),
	}).WithContext(ctx).All(&daily)
	if err != nil {
		return nil, fmt.Errorf("dashboard daily revenue: %w", err)
	}
	out.ReceitaPorDia = make([]DailyRevenue, 0, len(daily))
	for _, row := range daily {
		out.ReceitaPorDia = append(out.ReceitaPorDia, DailyRevenue{
			Dia:        row.Key,
			Tickets:    int64(row.Tickets),
			Quantidade: int64(row.Quantidade),
			Receita:    money(row.Receita),
		})
	}

	err = db.NewQuery("SELECT COUNT(*) FROM tickets WHERE validado = 1 AND validado_em >= {:hoje}").
		Bind(dbx.Params{"hoje": dayStart(today)}).
		WithContext(ctx).
		Row(&out.ValidadosHoje)
	if err != nil {
		return nil, fmt.Errorf("dashboard validated today: %w", err)
	}

	err = db.NewQuery("SELECT COUNT(*) FROM tickets WHERE status = {:pago} AND subsidiado = 1").
		Bind(dbx.Params{"pago": string(models.TicketPago)}).
		WithContext(ctx).
		Row(&out.SubsidiadosPago)
	if err != nil {
		return nil, fmt.Errorf("dashboard subsidized: %w", err)
	}

	return out, nil
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
