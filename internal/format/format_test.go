package format

import (
	"strings"
	"testing"

	"github.com/maine/promo_offers_bot/internal/offer"
)

func TestFormatter_Caption(t *testing.T) {
	f := NewFormatter()

	t.Run("full offer with discount and coupon", func(t *testing.T) {
		co := offer.ClassifiedOffer{
			Offer: offer.Offer{
				Name:       "Fone Bluetooth Sem Fio",
				PriceMin:   "59,90",
				PriceMax:   "99,90",
				CouponCode: "FONE10",
				Link:       "https://shopee.com.br/p/fone",
			},
			Tier:          offer.TierCoupon,
			DiscountScore: 40.04,
		}

		caption := f.Caption(co)

		if !strings.Contains(caption, "<b>Fone Bluetooth Sem Fio</b>") {
			t.Errorf("caption missing bold title: %q", caption)
		}
		if !strings.Contains(caption, "De R$ 99,90 por <b>R$ 59,90</b> (-40%)") {
			t.Errorf("caption missing discount line: %q", caption)
		}
		if !strings.Contains(caption, "Cupom: <code>FONE10</code>") {
			t.Errorf("caption missing coupon line: %q", caption)
		}
		if !strings.Contains(caption, `<a href="https://shopee.com.br/p/fone">Ver oferta</a>`) {
			t.Errorf("caption missing link: %q", caption)
		}
	})

	t.Run("single price without discount", func(t *testing.T) {
		co := offer.ClassifiedOffer{
			Offer: offer.Offer{
				Name:     "Caneca",
				PriceMin: "25,00",
				Link:     "https://shopee.com.br/p/caneca",
			},
			Tier: offer.TierPlain,
		}

		caption := f.Caption(co)
		if !strings.Contains(caption, "R$ 25,00") {
			t.Errorf("caption missing price: %q", caption)
		}
		if strings.Contains(caption, "De R$") {
			t.Errorf("caption has discount line without discount: %q", caption)
		}
	})

	t.Run("HTML in title is escaped", func(t *testing.T) {
		co := offer.ClassifiedOffer{
			Offer: offer.Offer{Name: `Kit <Ferramentas> & Acessórios`},
		}

		caption := f.Caption(co)
		if strings.Contains(caption, "<Ferramentas>") {
			t.Errorf("caption has unescaped HTML: %q", caption)
		}
		if !strings.Contains(caption, "&lt;Ferramentas&gt; &amp; Acessórios") {
			t.Errorf("caption escaping wrong: %q", caption)
		}
	})

	t.Run("unparseable price shown as is", func(t *testing.T) {
		co := offer.ClassifiedOffer{
			Offer: offer.Offer{Name: "Item", PriceMin: "consulte o vendedor"},
		}
		caption := f.Caption(co)
		if !strings.Contains(caption, "consulte o vendedor") {
			t.Errorf("caption dropped raw price string: %q", caption)
		}
	})

	t.Run("no link no anchor", func(t *testing.T) {
		co := offer.ClassifiedOffer{
			Offer: offer.Offer{Name: "Item", PriceMin: "10,00"},
		}
		caption := f.Caption(co)
		if strings.Contains(caption, "<a href") {
			t.Errorf("caption has anchor without link: %q", caption)
		}
	})

	t.Run("long title is truncated", func(t *testing.T) {
		co := offer.ClassifiedOffer{
			Offer: offer.Offer{
				Name: strings.Repeat("Promoção ", 100),
				Link: "https://shopee.com.br/p/x",
			},
		}

		caption := f.Caption(co)
		if !strings.Contains(caption, "...") {
			t.Errorf("long title not truncated: %q", caption)
		}
		if len([]rune(caption)) > 1024 {
			t.Errorf("caption length = %d runes, want <= 1024", len([]rune(caption)))
		}
	})

	t.Run("empty offer yields empty caption", func(t *testing.T) {
		caption := f.Caption(offer.ClassifiedOffer{})
		if caption != "" {
			t.Errorf("Caption() = %q, want empty", caption)
		}
	})
}

func TestFormatReais(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{59.9, "R$ 59,90"},
		{1234.56, "R$ 1.234,56"},
		{1000000, "R$ 1.000.000,00"},
		{0.5, "R$ 0,50"},
		{0, "R$ 0,00"},
		{100, "R$ 100,00"},
		{999, "R$ 999,00"},
		{1000, "R$ 1.000,00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatReais(tt.value); got != tt.want {
				t.Errorf("formatReais(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
