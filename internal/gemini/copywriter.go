package gemini

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/maine/promo_offers_bot/internal/config"
	"github.com/maine/promo_offers_bot/internal/offer"
)

const (
	// maxPromoLineLength - лимит на промо-строку; ответы длиннее
	// отбрасываются как мусор модели
	maxPromoLineLength = 120
	// maxCaptionLength - лимит Telegram на подпись к фото
	maxCaptionLength = 1024
)

// Copywriter добавляет к подписи оффера короткую продающую строку
// через Gemini. Необязательный этап: при любой ошибке подпись уходит
// в исходном виде.
type Copywriter struct {
	client GeminiClient
	model  string
}

// NewCopywriter создаёт новый экземпляр копирайтера.
func NewCopywriter(client GeminiClient, cfg config.Gemini) *Copywriter {
	return &Copywriter{
		client: client,
		model:  cfg.Model,
	}
}

// Polish возвращает подпись с промо-строкой в начале. Ошибки API,
// пустые и неформатные ответы не считаются фатальными: возвращается
// исходная подпись.
func (c *Copywriter) Polish(ctx context.Context, co offer.ClassifiedOffer, caption string) string {
	if caption == "" {
		return caption
	}

	response, err := c.client.GenerateText(ctx, c.model, c.buildPrompt(co))
	if err != nil {
		log.Printf("Copywriter skipped for %q: %v", co.Offer.Name, err)
		return caption
	}

	promo := cleanPromoLine(response)
	if promo == "" {
		log.Printf("Copywriter returned unusable response for %q, sending plain caption", co.Offer.Name)
		return caption
	}

	polished := promo + "\n" + caption
	if len([]rune(polished)) > maxCaptionLength {
		return caption
	}
	return polished
}

func (c *Copywriter) buildPrompt(co offer.ClassifiedOffer) string {
	var context []string
	if co.Tier == offer.TierCampaign {
		context = append(context, "товар участвует в крупной распродаже")
	}
	if co.Offer.CouponCode != "" {
		context = append(context, "к товару есть купон "+co.Offer.CouponCode)
	}
	if co.DiscountScore > 0 {
		context = append(context, fmt.Sprintf("скидка примерно %d%%", int(co.DiscountScore)))
	}
	hints := "нет"
	if len(context) > 0 {
		hints = strings.Join(context, "; ")
	}

	return fmt.Sprintf(`Ты — копирайтер телеграм-канала с товарами Shopee для бразильской аудитории.
Напиши ОДНУ короткую цепляющую фразу на бразильском португальском для товара "%s".
Дополнительный контекст: %s.

Требования:
- не больше 8 слов;
- без хэштегов, без ссылок, без HTML и markdown;
- можно один уместный эмодзи в начале;
- верни только саму фразу, без кавычек и пояснений.`, co.Offer.Name, hints)
}

// cleanPromoLine вычищает типичный мусор модели: обрамляющие кавычки,
// markdown, пустые строки. Возвращает пустую строку, если ответ
// непригоден.
func cleanPromoLine(response string) string {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "`*\"'")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len([]rune(line)) > maxPromoLineLength {
			return ""
		}
		return line
	}
	return ""
}
