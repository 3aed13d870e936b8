package identity

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/maine/promo_offers_bot/internal/offer"
)

// maxNameWords ограничивает число слов имени в ключе: длинные заголовки
// часто различаются хвостами при одном и том же товаре.
const maxNameWords = 8

// maxImageBytes ограничивает объём скачиваемого изображения при хэшировании.
const maxImageBytes = 4 << 20

// KeyFunc вычисляет ключ дедупликации для акции. Второй результат false
// означает, что акция неидентифицируема и должна быть отброшена до
// ранжирования.
type KeyFunc func(offer.Offer) (offer.IdentityKey, bool)

// Derive вычисляет ключ базовой чистой стратегией (без I/O): сначала
// канонизированный URL изображения, затем канонизированная ссылка, затем
// нормализованное имя вместе с идентификатором магазина. Один и тот же
// товар, пришедший с разными трекинговыми параметрами в URL, даёт один ключ.
func Derive(o offer.Offer) (offer.IdentityKey, bool) {
	if img := strings.TrimSpace(o.ImageURL); img != "" {
		return offer.IdentityKey("img:" + canonicalURL(img)), true
	}
	if link := strings.TrimSpace(o.Link); link != "" {
		return offer.IdentityKey("link:" + canonicalURL(link)), true
	}
	if name := NormalizeName(o.Name); name != "" {
		return offer.IdentityKey("name:" + name + "::" + strings.TrimSpace(o.ShopID)), true
	}
	return "", false
}

// canonicalURL приводит URL к сравнимому виду: отбрасывает query и фрагмент,
// опускает регистр схемы и хоста, убирает завершающий слэш пути. Регистр
// пути сохраняется, он значим. Если URL не парсится, применяется простое
// усечение до первого "?" или "#".
func canonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return truncateAtQuery(raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func truncateAtQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// NormalizeName приводит имя товара к сравнимому виду: убирает диакритику,
// опускает регистр, схлопывает пробелы и оставляет первые maxNameWords слов.
func NormalizeName(name string) string {
	name = StripDiacritics(name)
	name = strings.ToLower(name)
	words := strings.Fields(name)
	if len(words) > maxNameWords {
		words = words[:maxNameWords]
	}
	return strings.Join(words, " ")
}

// StripDiacritics убирает диакритические знаки ("Sofá" -> "Sofa") через
// NFD-разложение с удалением комбинирующих символов.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ImageHasher реализует усиленную стратегию идентификации: скачивает
// изображение и строит ключ из SHA-1 его содержимого. Стратегия сетевая и
// включается отдельной настройкой; при любой ошибке скачивания происходит
// откат к базовой Derive, так что метод остаётся тотальным.
type ImageHasher struct {
	client  *http.Client
	timeout time.Duration
}

// NewImageHasher создаёт стратегию. client может быть nil.
func NewImageHasher(client *http.Client, timeout time.Duration) *ImageHasher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ImageHasher{client: client, timeout: timeout}
}

// Derive реализует KeyFunc.
func (h *ImageHasher) Derive(o offer.Offer) (offer.IdentityKey, bool) {
	img := strings.TrimSpace(o.ImageURL)
	if img == "" {
		return Derive(o)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img, nil)
	if err != nil {
		return Derive(o)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return Derive(o)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Derive(o)
	}

	sum := sha1.New()
	if _, err := io.Copy(sum, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		return Derive(o)
	}
	return offer.IdentityKey("imgsha1:" + hex.EncodeToString(sum.Sum(nil))), true
}
