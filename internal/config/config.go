package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type (
	// Root объединяет все конфигурационные блоки.
	Root struct {
		Fetch    Fetch    `yaml:"fetch"`
		Schedule Schedule `yaml:"schedule"`
		Rank     Rank     `yaml:"rank"`
		Ledger   Ledger   `yaml:"ledger"`
		Web      Web      `yaml:"web"`
		Gemini   Gemini   `yaml:"gemini"`
	}

	// Fetch описывает параметры опроса Shopee Affiliate API.
	Fetch struct {
		BaseURL         string   `yaml:"base_url"`
		Keywords        []string `yaml:"keywords"`
		PagesPerKeyword int      `yaml:"pages_per_keyword"`
		PageLimit       int      `yaml:"page_limit"`
	}

	// Schedule описывает расписание циклов и темп отправки.
	Schedule struct {
		IntervalMinutes  int     `yaml:"interval_minutes"`
		BatchLimit       int     `yaml:"batch_limit"` // 0 - без ограничения
		SendDelaySeconds float64 `yaml:"send_delay_seconds"`
	}

	// Rank описывает параметры приоритизации.
	Rank struct {
		ShuffleWithinTier bool     `yaml:"shuffle_within_tier"`
		CampaignKeywords  []string `yaml:"campaign_keywords"` // пусто - встроенный список
	}

	// Ledger описывает хранение журнала отправленных офферов.
	Ledger struct {
		Path       string `yaml:"path"`
		MaxEntries int    `yaml:"max_entries"` // 0 - без ограничения
	}

	// Web описывает встроенный HTTP-сервер (health, отчёт, метрики).
	Web struct {
		Addr string `yaml:"addr"`
	}

	// Gemini содержит настройки необязательного копирайтера подписей.
	Gemini struct {
		Enabled bool   `yaml:"enabled"`
		Model   string `yaml:"model"`
	}
)

// Значения по умолчанию; применяются к незаполненным полям конфига.
var defaultKeywords = []string{"brinquedos", "moda feminina", "casa", "eletronicos"}

const (
	defaultBaseURL          = "https://open-api.affiliate.shopee.com.br/graphql"
	defaultPagesPerKeyword  = 1
	defaultPageLimit        = 20
	defaultIntervalMinutes  = 30
	defaultSendDelaySeconds = 1.5
	defaultLedgerPath       = "data/sent_offers.json"
	defaultWebAddr          = ":8080"
	defaultGeminiModel      = "gemini-2.0-flash"
)

// LoadRoot читает основной файл конфигурации и заполняет значения
// по умолчанию.
func LoadRoot(path string) (Root, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Root{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Root
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Root{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default возвращает конфигурацию по умолчанию (когда файла нет).
func Default() Root {
	var cfg Root
	cfg.applyDefaults()
	return cfg
}

func (c *Root) applyDefaults() {
	if c.Fetch.BaseURL == "" {
		c.Fetch.BaseURL = defaultBaseURL
	}
	if len(c.Fetch.Keywords) == 0 {
		c.Fetch.Keywords = append([]string(nil), defaultKeywords...)
	}
	if c.Fetch.PagesPerKeyword <= 0 {
		c.Fetch.PagesPerKeyword = defaultPagesPerKeyword
	}
	if c.Fetch.PageLimit <= 0 {
		c.Fetch.PageLimit = defaultPageLimit
	}
	if c.Schedule.IntervalMinutes <= 0 {
		c.Schedule.IntervalMinutes = defaultIntervalMinutes
	}
	if c.Schedule.SendDelaySeconds <= 0 {
		c.Schedule.SendDelaySeconds = defaultSendDelaySeconds
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = defaultLedgerPath
	}
	if c.Web.Addr == "" {
		c.Web.Addr = defaultWebAddr
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
}
