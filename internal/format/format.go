package format

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/maine/promo_offers_bot/internal/offer"
	"github.com/maine/promo_offers_bot/internal/pricing"
)

const (
	// telegramMaxCaptionLength - лимит Telegram на подпись к фото (1024 символа)
	telegramMaxCaptionLength = 1024
	// maxTitleLength - обрезка длинных названий товаров, чтобы подпись
	// не упиралась в лимит целиком из-за заголовка
	maxTitleLength = 200
	// ellipsis - символы, добавляемые при обрезке
	ellipsis = "..."
)

// Formatter собирает HTML-подписи для отправки в Telegram
// (parse_mode=HTML).
type Formatter struct{}

// NewFormatter создаёт новый экземпляр форматтера.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Caption строит подпись оффера: жирное название, строка цены,
// строка купона и ссылка "Ver oferta".
func (f *Formatter) Caption(co offer.ClassifiedOffer) string {
	var lines []string

	if title := strings.TrimSpace(co.Offer.Name); title != "" {
		lines = append(lines, "<b>"+html.EscapeString(truncate(title, maxTitleLength))+"</b>")
	}
	if price := priceLine(co); price != "" {
		lines = append(lines, price)
	}
	if coupon := strings.TrimSpace(co.Offer.CouponCode); coupon != "" {
		lines = append(lines, "Cupom: <code>"+html.EscapeString(coupon)+"</code>")
	}
	if link := strings.TrimSpace(co.Offer.Link); link != "" {
		lines = append(lines, fmt.Sprintf(`<a href="%s">Ver oferta</a>`, html.EscapeString(link)))
	}

	return truncate(strings.Join(lines, "\n"), telegramMaxCaptionLength)
}

// priceLine выбирает строку цены: при скидке показываем обе цены и
// процент, иначе одну цену; нераспознанная строка цены идёт как есть.
func priceLine(co offer.ClassifiedOffer) string {
	lo, okLo := pricing.ParsePrice(co.Offer.PriceMin)
	hi, okHi := pricing.ParsePrice(co.Offer.PriceMax)

	switch {
	case co.DiscountScore > 0 && okLo && okHi:
		return fmt.Sprintf("De %s por <b>%s</b> (-%d%%)",
			formatReais(hi), formatReais(lo), int(math.Round(co.DiscountScore)))
	case okLo:
		return formatReais(lo)
	case strings.TrimSpace(co.Offer.PriceMin) != "":
		return html.EscapeString(strings.TrimSpace(co.Offer.PriceMin))
	default:
		return ""
	}
}

// formatReais форматирует цену в бразильской записи: R$ 1.234,56.
func formatReais(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, fracPart, _ := strings.Cut(s, ".")

	var sb strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(d)
	}
	return "R$ " + sb.String() + "," + fracPart
}

// truncate обрезает строку по рунам, чтобы не разрезать акцентованные
// символы посередине.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-len(ellipsis)]) + ellipsis
}
