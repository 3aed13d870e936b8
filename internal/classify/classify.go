package classify

import (
	"strings"

	"github.com/maine/promo_offers_bot/internal/identity"
	"github.com/maine/promo_offers_bot/internal/offer"
	"github.com/maine/promo_offers_bot/internal/pricing"
)

// defaultCampaignKeywords покрывает сезонные распродажи Shopee Brasil.
// Список переопределяется конфигом.
var defaultCampaignKeywords = []string{
	"black friday",
	"cyber monday",
	"esquenta",
	"mega promoção",
	"queima de estoque",
	"semana do consumidor",
	"11.11",
	"12.12",
}

// Classifier присваивает акции приоритетную корзину по фиксированным
// правилам. Первый сработавший уровень выигрывает: Campaign > Coupon >
// Discounted > Plain. Кампания бьёт купон намеренно, даже если у купонной
// акции скидка выше.
type Classifier struct {
	keywords []string
}

// New создаёт классификатор. Ключевые слова кампаний нормализуются один
// раз (без регистра и диакритики); пустой список заменяется дефолтным.
func New(campaignKeywords []string) *Classifier {
	if len(campaignKeywords) == 0 {
		campaignKeywords = defaultCampaignKeywords
	}
	normalized := make([]string, 0, len(campaignKeywords))
	for _, kw := range campaignKeywords {
		kw = strings.ToLower(identity.StripDiacritics(strings.TrimSpace(kw)))
		if kw == "" {
			continue
		}
		normalized = append(normalized, kw)
	}
	return &Classifier{keywords: normalized}
}

// Classify возвращает корзину акции.
func (c *Classifier) Classify(o offer.Offer) offer.Tier {
	if c.matchesCampaign(o.Name) {
		return offer.TierCampaign
	}
	if strings.TrimSpace(o.CouponCode) != "" {
		return offer.TierCoupon
	}
	if pricing.DiscountScore(o) > 0 {
		return offer.TierDiscounted
	}
	return offer.TierPlain
}

func (c *Classifier) matchesCampaign(name string) bool {
	name = strings.ToLower(identity.StripDiacritics(name))
	if name == "" {
		return false
	}
	for _, kw := range c.keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
