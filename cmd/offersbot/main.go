package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maine/promo_offers_bot/internal/app"
	"github.com/maine/promo_offers_bot/internal/classify"
	"github.com/maine/promo_offers_bot/internal/config"
	"github.com/maine/promo_offers_bot/internal/format"
	"github.com/maine/promo_offers_bot/internal/gemini"
	"github.com/maine/promo_offers_bot/internal/ledger"
	"github.com/maine/promo_offers_bot/internal/rank"
	"github.com/maine/promo_offers_bot/internal/shopee"
	"github.com/maine/promo_offers_bot/internal/telegram"
	"github.com/maine/promo_offers_bot/internal/web"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "offersbot",
	Short: "Shopee Brasil affiliate offers to Telegram channel bot",
	Long:  "Fetches Shopee Brasil affiliate offers, dedupes and ranks them, and posts new or repriced ones to a Telegram channel.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot: periodic cycles plus the HTTP endpoints",
	RunE:  runRun,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single cycle and exit",
	RunE:  runOnce,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Fetch and rank offers without sending anything",
	RunE:  runPreview,
}

var sendTestCmd = &cobra.Command{
	Use:   "sendtest",
	Short: "Send a test message to the configured channel",
	RunE:  runSendTest,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		// .env подхватывается автоматически; отсутствие файла не ошибка
		_ = godotenv.Load()
	})

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/bot.yaml", "Path to YAML config")
	previewCmd.Flags().String("format", "table", "Output format: table, json")
	sendTestCmd.Flags().String("text", "Shopee offers bot: test message", "Message text to send")

	rootCmd.AddCommand(runCmd, onceCmd, previewCmd, sendTestCmd)
}

// bot держит собранный граф зависимостей одного запуска.
type bot struct {
	cfg       config.Root
	env       *config.EnvConfig
	source    app.OfferSource
	ledger    *ledger.Ledger
	cycle     *app.Cycle
	scheduler *app.Scheduler
	web       *web.Server
	closeFn   func()
}

func (b *bot) close() {
	if b.closeFn != nil {
		b.closeFn()
	}
}

// loadRootConfig читает конфиг; при отсутствии файла по умолчанию
// работает на встроенных значениях.
func loadRootConfig(cmd *cobra.Command) (config.Root, error) {
	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) && !cmd.Root().PersistentFlags().Changed("config") {
			log.Printf("Config file %s not found, using defaults", configPath)
			return config.Default(), nil
		}
		return config.Root{}, fmt.Errorf("stat config: %w", err)
	}
	return config.LoadRoot(configPath)
}

// buildBot собирает все модули бота в один граф.
func buildBot(ctx context.Context, cmd *cobra.Command) (*bot, error) {
	cfg, err := loadRootConfig(cmd)
	if err != nil {
		return nil, err
	}

	// Загружаем переменные окружения (токены)
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return nil, err
	}

	// Журнал отправленных офферов: Postgres при заданном DSN, иначе файл
	var store ledger.Store
	closeFn := func() {}
	if envCfg.PostgresDSN != "" {
		pgStore, err := ledger.NewPostgresStore(ctx, envCfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect ledger postgres: %w", err)
		}
		store = pgStore
		closeFn = pgStore.Close
		log.Println("Ledger backend: postgres")
	} else {
		store = ledger.NewFileStore(cfg.Ledger.Path)
		log.Printf("Ledger backend: file %s", cfg.Ledger.Path)
	}

	led := ledger.New(store, cfg.Ledger.MaxEntries)
	if err := led.Load(ctx); err != nil {
		closeFn()
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	log.Printf("Ledger loaded: %d entries", led.Len())

	// Инициализируем модули цикла
	source := shopee.NewClient(cfg.Fetch, envCfg.ShopeeAppID, envCfg.ShopeeAppSecret, nil, nil)
	ranker := rank.New(classify.New(cfg.Rank.CampaignKeywords), nil, cfg.Rank.ShuffleWithinTier)
	msgFormatter := format.NewFormatter()

	// Копирайтер только при включённом Gemini
	var copywriter app.Copywriter
	if cfg.Gemini.Enabled && !envCfg.SkipGemini {
		geminiClient, err := gemini.NewClient()
		if err != nil {
			closeFn()
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		copywriter = gemini.NewCopywriter(geminiClient, cfg.Gemini)
	}

	tgClient := telegram.NewClient(envCfg.TelegramBotToken)
	sendDelay := time.Duration(cfg.Schedule.SendDelaySeconds * float64(time.Second))
	deliverer := telegram.NewDeliverer(tgClient, envCfg.TelegramChatID, sendDelay, envCfg.DryRun)

	cycle := app.NewCycle(app.CycleDeps{
		Source:     source,
		Ranker:     ranker,
		Ledger:     led,
		Formatter:  msgFormatter,
		Copywriter: copywriter,
		Deliverer:  deliverer,
		BatchLimit: cfg.Schedule.BatchLimit,
		Clock:      nil, // используем time.Now по умолчанию
	})

	webSrv := web.NewServer(cfg.Web.Addr)
	interval := time.Duration(cfg.Schedule.IntervalMinutes) * time.Minute
	scheduler := app.NewScheduler(cycle, interval, webSrv.SetReport)

	return &bot{
		cfg:       cfg,
		env:       envCfg,
		source:    source,
		ledger:    led,
		cycle:     cycle,
		scheduler: scheduler,
		web:       webSrv,
		closeFn:   closeFn,
	}, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := buildBot(ctx, cmd)
	if err != nil {
		return err
	}
	defer b.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.web.Run(gctx) })
	g.Go(func() error { return b.scheduler.Run(gctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	log.Println("Bot stopped")
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := buildBot(ctx, cmd)
	if err != nil {
		return err
	}
	defer b.close()

	if err := b.scheduler.RunOnce(ctx); err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}
	log.Println("Cycle completed successfully")
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Предпросмотр никогда не отправляет, токены Telegram не нужны
	if os.Getenv("DRY_RUN") == "" {
		os.Setenv("DRY_RUN", "1")
	}

	b, err := buildBot(ctx, cmd)
	if err != nil {
		return err
	}
	defer b.close()

	raw, err := b.source.Fetch(ctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	// Детерминированный порядок для чтения глазами, без перемешивания
	ranked := rank.New(classify.New(b.cfg.Rank.CampaignKeywords), nil, false).Prioritize(raw)

	outFormat, _ := cmd.Flags().GetString("format")
	if outFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ranked)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIER\tDISCOUNT\tPRICE\tNAME")
	for _, co := range ranked {
		fmt.Fprintf(w, "%s\t%.0f%%\t%s\t%s\n", co.Tier, co.DiscountScore, co.Offer.PriceMin, co.Offer.Name)
	}
	return w.Flush()
}

func runSendTest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	if envCfg.TelegramBotToken == "" || envCfg.TelegramChatID == "" {
		return fmt.Errorf("sendtest requires TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
	}

	text, _ := cmd.Flags().GetString("text")
	client := telegram.NewClient(envCfg.TelegramBotToken)
	if err := client.SendMessage(ctx, envCfg.TelegramChatID, text, ""); err != nil {
		return fmt.Errorf("send test message: %w", err)
	}
	log.Println("Test message sent")
	return nil
}
