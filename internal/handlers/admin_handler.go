package handlers

import (
	"net/http"

	"ru-ticket/internal/services"

	"github.com/pocketbase/pocketbase/core"
)

type AdminHandler struct {
	dashboard *services.DashboardService
	resp      *Responder
}

func NewAdminHandler(dashboard *services.DashboardService, resp *Responder) *AdminHandler {
	return &AdminHandler{dashboard: dashboard, resp: resp}
}

// GetDashboard - GET /api/admin/dashboard?dias=7
func (h *AdminHandler) GetDashboard(e *core.RequestEvent) error {
	dias := queryInt(e.Request.URL.Query().Get("dias"), 0)

	data, err := h.dashboard.Dashboard(e.Request.Context(), dias)
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusOK, data)
}
