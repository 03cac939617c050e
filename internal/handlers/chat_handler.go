package handlers

import (
	"net/http"

	"ru-ticket/internal/services"

	"github.com/pocketbase/pocketbase/core"
)

type ChatHandler struct {
	chat *services.ChatService
	resp *Responder
}

func NewChatHandler(chat *services.ChatService, resp *Responder) *ChatHandler {
	return &ChatHandler{chat: chat, resp: resp}
}

type chatRequest struct {
	Mensagem string `json:"mensagem"`
}

// Chat - POST /api/chat
func (h *ChatHandler) Chat(e *core.RequestEvent) error {
	var req chatRequest
	if err := bindJSON(e, &req); err != nil {
		return h.resp.Error(e, err)
	}

	reply, err := h.chat.Answer(req.Mensagem)
	if err != nil {
		return h.resp.Error(e, err)
	}
	return e.JSON(http.StatusOK, reply)
}
