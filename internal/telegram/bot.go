package telegram

import (
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cryptoPortfolioBot/internal/common"
)

type Bot struct {
	api    *tgbotapi.BotAPI
	h      *Handlers
	logger *common.Logger
}

func NewBot(token, webhookURL string, d Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if d.Logger == nil {
		d.Logger = common.NewSilentLogger()
	}

	// set webhook
	webhook, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	if _, err := api.Request(webhook); err != nil {
		return nil, err
	}
	d.Logger.Info().Str("url", webhookURL).Str("bot", api.Self.UserName).Msg("Telegram webhook set")

	return newBotWithAPI(api, d), nil
}

func newBotWithAPI(api *tgbotapi.BotAPI, d Deps) *Bot {
	h := NewHandlers(api, d)
	return &Bot{api: api, h: h, logger: h.logger}
}

// Webhook HTTP handler (registered at /telegram/webhook)
func (b *Bot) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	if update.Message != nil {
		b.logger.Debug().Int64("chat_id", update.Message.Chat.ID).Str("text", update.Message.Text).Msg("Webhook message")
		go b.h.HandleMessage(update.Message)
	} else {
		b.logger.Debug().Int("update_id", update.UpdateID).Msg("Webhook non-message update")
	}
	w.WriteHeader(http.StatusOK)
}
