package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/maine/promo_offers_bot/internal/metrics"
	"github.com/maine/promo_offers_bot/internal/offer"
)

// ErrNotConfigured возвращается, когда цикл запущен без обязательных зависимостей.
var ErrNotConfigured = errors.New("cycle dependencies not configured")

// Clock определяет источник времени (удобно подменять в тестах).
type Clock func() time.Time

// OfferSource получает сырые офферы из внешнего API.
type OfferSource interface {
	Fetch(ctx context.Context) ([]offer.Offer, error)
}

// Ranker дедуплицирует и упорядочивает офферы по приоритету.
type Ranker interface {
	Prioritize(offers []offer.Offer) []offer.ClassifiedOffer
}

// Ledger отвечает на вопрос "отправляли ли мы это" и фиксирует отправки.
type Ledger interface {
	ShouldDeliver(co offer.ClassifiedOffer) bool
	MarkDelivered(ctx context.Context, co offer.ClassifiedOffer) error
	Len() int
}

// Formatter собирает подпись оффера для Telegram.
type Formatter interface {
	Caption(co offer.ClassifiedOffer) string
}

// Copywriter улучшает подпись. Необязательная зависимость.
type Copywriter interface {
	Polish(ctx context.Context, co offer.ClassifiedOffer, caption string) string
}

// Deliverer отправляет один оффер в канал, выдерживая паузу между отправками.
type Deliverer interface {
	Deliver(ctx context.Context, co offer.ClassifiedOffer, caption string) error
}

// CycleDeps перечисляет зависимости цикла.
type CycleDeps struct {
	Source     OfferSource
	Ranker     Ranker
	Ledger     Ledger
	Formatter  Formatter
	Copywriter Copywriter // может быть nil
	Deliverer  Deliverer
	BatchLimit int // 0 - без ограничения
	Clock      Clock
}

// Cycle инкапсулирует один проход fetch -> prioritize -> ledger -> deliver.
type Cycle struct {
	source     OfferSource
	ranker     Ranker
	ledger     Ledger
	formatter  Formatter
	copywriter Copywriter
	deliverer  Deliverer
	batchLimit int
	clock      Clock
}

// NewCycle создаёт новый экземпляр цикла.
func NewCycle(deps CycleDeps) *Cycle {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Cycle{
		source:     deps.Source,
		ranker:     deps.Ranker,
		ledger:     deps.Ledger,
		formatter:  deps.Formatter,
		copywriter: deps.Copywriter,
		deliverer:  deps.Deliverer,
		batchLimit: deps.BatchLimit,
		clock:      clock,
	}
}

// Run исполняет полный цикл обработки офферов и возвращает отчёт.
// Ошибки источника и доставки не фатальны; цикл прерывается только
// отменой контекста или отсутствием зависимостей.
func (c *Cycle) Run(ctx context.Context) (offer.CycleReport, error) {
	report := offer.CycleReport{
		RunID:     uuid.NewString(),
		StartedAt: c.clock(),
	}

	if err := c.validateDeps(); err != nil {
		return report, err
	}

	log.Printf("[%s] Step 1: Fetching offers from Shopee...", report.RunID)
	raw, err := c.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		// Неполная выборка лучше пропущенного цикла
		log.Printf("[%s] Fetch finished with error (continuing with %d offers): %v", report.RunID, len(raw), err)
	}
	report.Fetched = len(raw)
	metrics.RecordFetched(len(raw))
	log.Printf("[%s] Fetched %d raw offers", report.RunID, len(raw))

	log.Printf("[%s] Step 2: Prioritizing offers...", report.RunID)
	ranked := c.ranker.Prioritize(raw)
	report.Ranked = len(ranked)
	report.Offers = ranked
	log.Printf("[%s] After dedupe and ranking: %d offers", report.RunID, len(ranked))

	log.Printf("[%s] Step 3: Filtering against sent-offer ledger...", report.RunID)
	eligible := make([]offer.ClassifiedOffer, 0, len(ranked))
	for _, co := range ranked {
		if c.ledger.ShouldDeliver(co) {
			eligible = append(eligible, co)
		}
	}
	report.Eligible = len(eligible)
	log.Printf("[%s] Eligible for delivery: %d offers", report.RunID, len(eligible))

	batch := eligible
	if c.batchLimit > 0 && len(batch) > c.batchLimit {
		batch = batch[:c.batchLimit]
		log.Printf("[%s] Batch capped to %d offers (%d left for next cycle)",
			report.RunID, c.batchLimit, len(eligible)-len(batch))
	}

	log.Printf("[%s] Step 4: Delivering %d offers...", report.RunID, len(batch))
	for _, co := range batch {
		caption := c.formatter.Caption(co)
		if c.copywriter != nil {
			caption = c.copywriter.Polish(ctx, co, caption)
		}

		// Сначала отметка в журнале, потом отправка: при шторме ретраев
		// дубль в канале хуже, чем потерянный оффер
		if err := c.ledger.MarkDelivered(ctx, co); err != nil {
			log.Printf("[%s] Ledger persistence failed for %q (in-memory state kept): %v",
				report.RunID, co.Offer.Name, err)
		}

		if err := c.deliverer.Deliver(ctx, co, caption); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			metrics.RecordDeliveryFailure()
			log.Printf("[%s] Failed to deliver %q: %v", report.RunID, co.Offer.Name, err)
			continue
		}

		report.Delivered++
		metrics.RecordDelivered(string(co.Tier))
		log.Printf("[%s] Delivered: %s (%s)", report.RunID, co.Offer.Name, co.Tier)
	}

	metrics.SetLedgerSize(c.ledger.Len())
	report.FinishedAt = c.clock()
	log.Printf("[%s] Cycle complete: %d fetched, %d ranked, %d eligible, %d delivered, %d failed",
		report.RunID, report.Fetched, report.Ranked, report.Eligible, report.Delivered, report.Failed)

	return report, nil
}

func (c *Cycle) validateDeps() error {
	// copywriter опционален - без него подписи уходят как есть
	switch {
	case c.source == nil,
		c.ranker == nil,
		c.ledger == nil,
		c.formatter == nil,
		c.deliverer == nil,
		c.clock == nil:
		return ErrNotConfigured
	default:
		return nil
	}
}
