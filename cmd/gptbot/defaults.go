package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Completion backend
	viper.SetDefault("gpt.base_url", "https://us-central1-telegram-gpt-488cd.cloudfunctions.net/chatgpt")
	viper.SetDefault("gpt.request_timeout", 90*time.Second)
	viper.SetDefault("gpt.image_model", "dall-e-3")

	// Bot
	viper.SetDefault("bot.admin", "")
	viper.SetDefault("bot.webhook_secret", "")
	viper.SetDefault("bot.model", "gpt-4o-mini")
	viper.SetDefault("bot.system_prompt", "You are a helpful assistant.")
	viper.SetDefault("bot.parse_mode", "Markdown")
	viper.SetDefault("bot.telegram_link", "")
	viper.SetDefault("bot.web_link", "")

	// Sessions
	viper.SetDefault("session.retention", 30*24*time.Hour)

	// Durable admin state
	viper.SetDefault("state_file", "/var/lib/gptbot/state.json")

	// HTTP server
	viper.SetDefault("server.bind", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
}
