package pricing

import (
	"strconv"
	"strings"

	"github.com/maine/promo_offers_bot/internal/offer"
)

// ParsePrice извлекает численное значение из строки цены произвольного
// формата ("R$ 1.234,56", "59,90", "1599"). Символы валюты и буквы
// отбрасываются, десятичный разделитель определяется эвристикой: последний
// из ","/"." считается десятичным, если после него одна или две цифры,
// иначе все разделители трактуются как разряды тысяч. Функция никогда не
// возвращает ошибку: если распарсить нечего, второй результат false.
func ParsePrice(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || !strings.ContainsAny(s, "0123456789") {
		return 0, false
	}

	if lastSep := strings.LastIndexAny(s, ".,"); lastSep >= 0 {
		intPart := dropSeparators(s[:lastSep])
		frac := s[lastSep+1:]
		if len(frac) >= 1 && len(frac) <= 2 {
			s = intPart + "." + frac
		} else {
			s = intPart + dropSeparators(frac)
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func dropSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, s)
}

// DiscountScore вычисляет процент скидки по паре минимальной и максимальной
// цены акции. Если хотя бы одна из цен не парсится или максимум не больше
// минимума, скидка равна нулю. Результат лежит в [0, 100) и используется
// только для относительного ранжирования, не для денежной арифметики.
func DiscountScore(o offer.Offer) float64 {
	lo, okLo := ParsePrice(o.PriceMin)
	hi, okHi := ParsePrice(o.PriceMax)
	if !okLo || !okHi || hi <= 0 || hi <= lo {
		return 0
	}
	return (hi - lo) / hi * 100
}
