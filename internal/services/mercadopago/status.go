package mercadopago

import "ru-ticket/models"

// Gateway payment statuses with a documented local meaning.
const (
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
	StatusInProcess = "in_process"
)

var statusTable = map[string]models.TicketStatus{
	StatusApproved:  models.TicketPago,
	StatusRejected:  models.TicketCancelado,
	StatusCancelled: models.TicketCancelado,
	StatusPending:   models.TicketPendente,
	StatusInProcess: models.TicketPendente,
}

// MapStatus maps a gateway payment status to the local ticket status.
// Statuses outside the table are reported as unmapped and must not mutate tickets.
func MapStatus(gatewayStatus string) (models.TicketStatus, bool) {
	s, ok := statusTable[gatewayStatus]
	return s, ok
}
