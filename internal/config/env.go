package config

import (
	"fmt"
	"os"
)

// EnvConfig содержит токены и другие переменные окружения.
type EnvConfig struct {
	ShopeeAppID      string
	ShopeeAppSecret  string
	TelegramBotToken string
	TelegramChatID   string
	GeminiAPIKey     string
	PostgresDSN      string // непустой DSN переключает журнал на Postgres
	SkipGemini       bool   // Пропустить копирайтер даже при включённом gemini в конфиге
	DryRun           bool   // Ничего не отправлять в Telegram (только логи)
}

// LoadEnvConfig читает переменные окружения и возвращает конфигурацию.
// Возвращает ошибку, если обязательные переменные отсутствуют или пустые.
func LoadEnvConfig() (*EnvConfig, error) {
	appID := os.Getenv("SHOPEE_APP_ID")
	if appID == "" {
		return nil, fmt.Errorf("SHOPEE_APP_ID environment variable is required")
	}
	appSecret := os.Getenv("SHOPEE_APP_SECRET")
	if appSecret == "" {
		return nil, fmt.Errorf("SHOPEE_APP_SECRET environment variable is required")
	}

	dryRun := os.Getenv("DRY_RUN") == "1"

	// Токен и чат нужны только когда бот действительно отправляет
	tgToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	tgChatID := os.Getenv("TELEGRAM_CHAT_ID")
	if !dryRun {
		if tgToken == "" {
			return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is required (or set DRY_RUN=1)")
		}
		if tgChatID == "" {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID environment variable is required (or set DRY_RUN=1)")
		}
	}

	return &EnvConfig{
		ShopeeAppID:      appID,
		ShopeeAppSecret:  appSecret,
		TelegramBotToken: tgToken,
		TelegramChatID:   tgChatID,
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		PostgresDSN:      os.Getenv("LEDGER_POSTGRES_DSN"),
		SkipGemini:       os.Getenv("SKIP_GEMINI") == "1",
		DryRun:           dryRun,
	}, nil
}
