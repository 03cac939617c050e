package status

import (
	"errors"
	"net/http"
)

// Error is an error with a stable HTTP status and a user-facing message.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Invalid builds a validation error with a custom message.
func Invalid(message string) *Error {
	return New(http.StatusBadRequest, message)
}

var (
	ErrUnauthenticated    = New(http.StatusUnauthorized, "Não autenticado")
	ErrInvalidCredentials = New(http.StatusUnauthorized, "Email ou senha inválidos")
	ErrForbidden          = New(http.StatusForbidden, "Acesso negado")

	ErrInvalidInput = New(http.StatusBadRequest, "Requisição inválida")

	ErrTicketNotFound    = New(http.StatusNotFound, "Ticket não encontrado")
	ErrUserNotFound      = New(http.StatusNotFound, "Usuário não encontrado")
	ErrReferenceNotFound = New(http.StatusNotFound, "Nenhum ticket encontrado para a referência")
	ErrFileNotFound      = New(http.StatusNotFound, "Arquivo não encontrado")

	ErrTicketAlreadyUsed = New(http.StatusBadRequest, "Ticket já foi utilizado")
	ErrTicketNotPaid     = New(http.StatusBadRequest, "Ticket ainda não foi pago")
	ErrEmailTaken        = New(http.StatusConflict, "Email já cadastrado")
	ErrQRTokenUsed       = New(http.StatusGone, "QR code de login já foi utilizado")

	ErrInvalidSignature = New(http.StatusUnauthorized, "Assinatura inválida")
	ErrGateway          = New(http.StatusInternalServerError, "Falha ao comunicar com o gateway de pagamento")
	ErrInternal         = New(http.StatusInternalServerError, "Erro interno")
)

// Resolve finds the *Error in err's chain, falling back to ErrInternal.
func Resolve(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return ErrInternal
}
