package classify

import (
	"testing"

	"github.com/maine/promo_offers_bot/internal/offer"
)

func TestClassifier_Classify(t *testing.T) {
	c := New(nil)

	tests := []struct {
		name  string
		offer offer.Offer
		want  offer.Tier
	}{
		{
			name:  "campaign by keyword",
			offer: offer.Offer{Name: "Sofá Black Friday 3 lugares"},
			want:  offer.TierCampaign,
		},
		{
			name:  "campaign keyword matched without accents",
			offer: offer.Offer{Name: "MEGA PROMOCAO tênis corrida"},
			want:  offer.TierCampaign,
		},
		{
			name: "campaign beats coupon and discount",
			offer: offer.Offer{
				Name:       "Esquenta Black Friday fone bluetooth",
				CouponCode: "FONE10",
				PriceMin:   "50",
				PriceMax:   "100",
			},
			want: offer.TierCampaign,
		},
		{
			name: "coupon beats discount",
			offer: offer.Offer{
				Name:       "Fone bluetooth",
				CouponCode: "FONE10",
				PriceMin:   "20",
				PriceMax:   "100",
			},
			want: offer.TierCoupon,
		},
		{
			name:  "discounted",
			offer: offer.Offer{Name: "Fone bluetooth", PriceMin: "50", PriceMax: "100"},
			want:  offer.TierDiscounted,
		},
		{
			name:  "plain when prices equal",
			offer: offer.Offer{Name: "Fone bluetooth", PriceMin: "99", PriceMax: "99"},
			want:  offer.TierPlain,
		},
		{
			name:  "plain without any signals",
			offer: offer.Offer{Name: "Caneca simples"},
			want:  offer.TierPlain,
		},
		{
			name:  "whitespace coupon is not a coupon",
			offer: offer.Offer{Name: "Caneca simples", CouponCode: "   "},
			want:  offer.TierPlain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.offer)
			if got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifier_CustomKeywords(t *testing.T) {
	c := New([]string{"Dia das Mães"})

	if got := c.Classify(offer.Offer{Name: "Presente dia das maes"}); got != offer.TierCampaign {
		t.Errorf("Classify() = %v, want %v", got, offer.TierCampaign)
	}
	// Дефолтные ключевые слова при кастомном списке не действуют.
	if got := c.Classify(offer.Offer{Name: "Black Friday TV"}); got != offer.TierPlain {
		t.Errorf("Classify() = %v, want %v", got, offer.TierPlain)
	}
}
