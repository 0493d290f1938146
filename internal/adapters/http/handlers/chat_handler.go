// Package handlers agrupa os handlers HTTP da API.
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	maxPromptLength  = 1000
	maxMessageLength = 2000
	maxMessages      = 50
)

// ChatMessage é uma mensagem do histórico enviado pelo cliente.
type ChatMessage struct {
	User    string    `json:"user"`
	Message string    `json:"message"`
	SendDt  time.Time `json:"sendDt"`
}

type ChatRequest struct {
	CharacterPrompt string        `json:"character_prompt"`
	Messages        []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Message   string    `json:"message"`
	ModelUsed string    `json:"model_used"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatService é o backend de geração de resposta. A geração em si (modelo,
// prompt engineering) fica fora deste repositório; aqui só injetamos a
// dependência.
type ChatService interface {
	Reply(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// NewChatHandler valida o corpo e delega ao backend de chat.
func NewChatHandler(service ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		if msg, ok := validateChatRequest(req); !ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		resp, err := service.Reply(r.Context(), req)
		if err != nil {
			log.Printf("chat backend failed: %v", err)
			writeError(w, http.StatusBadGateway, "chat backend unavailable")
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func validateChatRequest(req ChatRequest) (string, bool) {
	if strings.TrimSpace(req.CharacterPrompt) == "" {
		return "character_prompt is required", false
	}
	if len(req.CharacterPrompt) > maxPromptLength {
		return "character_prompt is too long", false
	}
	if len(req.Messages) == 0 {
		return "at least one message is required", false
	}
	if len(req.Messages) > maxMessages {
		return "too many messages", false
	}
	for _, msg := range req.Messages {
		if strings.TrimSpace(msg.Message) == "" {
			return "message content is required", false
		}
		if len(msg.Message) > maxMessageLength {
			return "message content is too long", false
		}
	}
	return "", true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
