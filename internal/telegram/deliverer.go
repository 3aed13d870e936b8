package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maine/promo_offers_bot/internal/offer"
)

const (
	// parseMode - все подписи собираются в HTML
	parseMode = "HTML"
	// retryAttempts - количество попыток отправки при ошибке
	retryAttempts = 3
	// retryDelay - задержка между попытками
	retryDelay = 2 * time.Second
	// defaultSendDelay - пауза между офферами, чтобы не заспамить канал
	defaultSendDelay = 1500 * time.Millisecond
)

// Deliverer отправляет офферы в канал: фото или видео с подписью,
// с паузой между сообщениями и retry-логикой.
type Deliverer struct {
	client  TelegramClient
	chatID  string
	limiter *rate.Limiter
	dryRun  bool
}

// NewDeliverer создаёт новый экземпляр отправителя. sendDelay - пауза
// между офферами (0 - значение по умолчанию).
func NewDeliverer(client TelegramClient, chatID string, sendDelay time.Duration, dryRun bool) *Deliverer {
	if sendDelay <= 0 {
		sendDelay = defaultSendDelay
	}
	return &Deliverer{
		client:  client,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(sendDelay), 1),
		dryRun:  dryRun,
	}
}

// Deliver отправляет один оффер. Выбор носителя: видео, иначе фото,
// иначе текст. Если носитель не принят Telegram, подпись уходит
// текстом: в ней есть ссылка, оффер ценнее картинки.
func (d *Deliverer) Deliver(ctx context.Context, co offer.ClassifiedOffer, caption string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait send delay: %w", err)
	}

	if d.dryRun {
		log.Printf("DRY_RUN: would deliver %q (%s) to %s", co.Offer.Name, co.Tier, d.chatID)
		return nil
	}

	err := d.sendWithRetry(ctx, co, caption)
	if err != nil && isMediaError(err) && hasMedia(co) {
		log.Printf("Media rejected for %q, falling back to text: %v", co.Offer.Name, err)
		return d.sendTextWithRetry(ctx, caption)
	}
	return err
}

// sendWithRetry отправляет оффер с повторными попытками при ошибках.
func (d *Deliverer) sendWithRetry(ctx context.Context, co offer.ClassifiedOffer, caption string) error {
	return d.withRetry(ctx, func(ctx context.Context) error {
		switch {
		case co.Offer.VideoURL != "":
			return d.client.SendVideo(ctx, d.chatID, co.Offer.VideoURL, caption, parseMode)
		case co.Offer.ImageURL != "":
			return d.client.SendPhoto(ctx, d.chatID, co.Offer.ImageURL, caption, parseMode)
		default:
			return d.client.SendMessage(ctx, d.chatID, caption, parseMode)
		}
	})
}

func (d *Deliverer) sendTextWithRetry(ctx context.Context, caption string) error {
	return d.withRetry(ctx, func(ctx context.Context) error {
		return d.client.SendMessage(ctx, d.chatID, caption, parseMode)
	})
}

func (d *Deliverer) withRetry(ctx context.Context, send func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			// Задержка перед повтором (экспоненциальная с максимумом)
			delay := retryDelay * time.Duration(attempt)
			if delay > 10*time.Second {
				delay = 10 * time.Second
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := send(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		// Для некоторых ошибок (чат не найден, бот заблокирован,
		// носитель отвергнут) повтор не поможет
		if !isRetryableError(err) {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func hasMedia(co offer.ClassifiedOffer) bool {
	return co.Offer.VideoURL != "" || co.Offer.ImageURL != ""
}

// isRetryableError определяет, можно ли повторить отправку при данной ошибке.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Ошибки, при которых повтор не поможет
	nonRetryableErrors := []string{
		"chat not found",
		"bot was blocked",
		"user is deactivated",
		"chat_id is empty",
		"message is too long",
		"caption is too long",
		"bad request",
		"wrong file identifier",
		"failed to get http url content",
	}

	for _, nonRetryable := range nonRetryableErrors {
		// Простая проверка по подстроке: Bot API возвращает описание
		// ошибки текстом, кодов недостаточно
		if containsIgnoreCase(errStr, nonRetryable) {
			return false
		}
	}

	// По умолчанию считаем ошибку повторяемой (сетевые ошибки, временные проблемы API)
	return true
}

// isMediaError определяет, отверг ли Telegram сам носитель (битая
// ссылка на картинку, неподдерживаемый формат). Такой оффер ещё можно
// доставить текстом.
func isMediaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	mediaErrors := []string{
		"wrong file identifier",
		"failed to get http url content",
		"wrong type of the web page content",
		"photo_invalid_dimensions",
		"wrong remote file",
	}

	for _, mediaErr := range mediaErrors {
		if containsIgnoreCase(errStr, mediaErr) {
			return true
		}
	}
	return false
}

// containsIgnoreCase проверяет, содержит ли строка подстроку (без учёта регистра).
func containsIgnoreCase(s, substr string) bool {
	s = strings.ToLower(s)
	substr = strings.ToLower(substr)
	return strings.Contains(s, substr)
}
