// Package telegram implements the webhook edge: decoding Bot API
// updates and answering them with a send-message action in the webhook
// response body, so no separate API call is needed to reply.
package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Update is the Bot API structure delivered to the webhook. Only the
// subset this bot reads is declared.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      *Chat  `json:"chat,omitempty"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// SendMessageAction is the reply carried in the webhook response body.
// The method field tells Telegram which Bot API call to perform.
type SendMessageAction struct {
	Method                string `json:"method"`
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

// Dispatcher turns one caller message into a reply string. Every branch
// terminates in a reply; the handler never sees an error from it.
type Dispatcher interface {
	Handle(ctx context.Context, caller, text string) string
}

// WebhookHandler serves /webhook/<secret>. A wrong secret is answered
// with a fixed body and never reaches the dispatcher.
type WebhookHandler struct {
	Secret    string
	ParseMode string // "" | ParseModeMarkdown | ParseModeMarkdownV2 | ParseModeHTML
	Dispatch  Dispatcher
	Logger    *slog.Logger
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	token := strings.TrimPrefix(r.URL.Path, "/webhook/")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.Secret)) != 1 {
		logger.Warn("webhook_bad_secret", "path_len", len(r.URL.Path))
		writeText(w, http.StatusOK, "Invalid Bot Token!")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		// Undecodable updates are a transport failure; they never
		// reach the dispatcher.
		logger.Warn("webhook_decode_error", "error", err.Error())
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}

	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" ||
		msg.From == nil || msg.From.IsBot {
		writeText(w, http.StatusOK, "Nothing to do")
		return
	}

	reqID := "req_" + uuid.NewString()
	caller := strings.TrimSpace(msg.From.Username)
	if caller == "" {
		logger.Warn("webhook_no_username", "req_id", reqID, "chat_id", msg.Chat.ID)
		h.reply(w, msg.Chat.ID, "Invalid User!")
		return
	}

	logger.Info("webhook_message",
		"req_id", reqID,
		"chat_id", msg.Chat.ID,
		"chat_type", msg.Chat.Type,
		"from", caller,
		"text_len", len(msg.Text),
	)
	reply := h.Dispatch.Handle(r.Context(), caller, msg.Text)
	logger.Info("webhook_reply", "req_id", reqID, "chat_id", msg.Chat.ID, "reply_len", len(reply))
	h.reply(w, msg.Chat.ID, reply)
}

func (h *WebhookHandler) reply(w http.ResponseWriter, chatID int64, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}
	if h.ParseMode == ParseModeMarkdownV2 {
		text = EscapeMarkdownUnderscores(text)
	}
	action := SendMessageAction{
		Method:                "sendMessage",
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             h.ParseMode,
		DisableWebPagePreview: true,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(action)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
