package handlers

import (
	"fmt"
	"net/http"

	"ru-ticket/internal/status"

	"github.com/pocketbase/pocketbase/core"
)

// Responder writes the {"erro": ...} error envelope. Outside production the
// underlying error text is added under "detalhes".
type Responder struct {
	production bool
}

func NewResponder(production bool) *Responder {
	return &Responder{production: production}
}

func (r *Responder) Error(e *core.RequestEvent, err error) error {
	se := status.Resolve(err)

	if se.Code >= http.StatusInternalServerError {
		e.App.Logger().Error("Request failed",
			"method", e.Request.Method,
			"path", e.Request.URL.Path,
			"error", err,
		)
	}

	body := map[string]any{"erro": se.Message}
	if !r.production && err.Error() != se.Message {
		body["detalhes"] = err.Error()
	}
	return e.JSON(se.Code, body)
}

// ErrorWith writes the envelope plus extra fields.
func (r *Responder) ErrorWith(e *core.RequestEvent, err error, extra map[string]any) error {
	se := status.Resolve(err)
	body := map[string]any{"erro": se.Message}
	for k, v := range extra {
		body[k] = v
	}
	if !r.production && err.Error() != se.Message {
		body["detalhes"] = err.Error()
	}
	return e.JSON(se.Code, body)
}

func bindJSON(e *core.RequestEvent, dst any) error {
	if err := e.BindBody(dst); err != nil {
		return fmt.Errorf("%w: %v", status.ErrInvalidInput, err)
	}
	return nil
}
