package offer

import "time"

// Offer описывает акцию в каноническом виде после нормализации ответа
// партнёрского API. Любое поле может быть пустым: источник не гарантирует
// ни одно из них.
type Offer struct {
	Name       string    `json:"name,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	Link       string    `json:"link,omitempty"`
	PriceMin   string    `json:"price_min,omitempty"`
	PriceMax   string    `json:"price_max,omitempty"`
	ShopID     string    `json:"shop_id,omitempty"`
	CouponCode string    `json:"coupon_code,omitempty"`
	VideoURL   string    `json:"video_url,omitempty"`
	Keyword    string    `json:"keyword,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// IdentityKey служит стабильным ключом дедупликации между циклами.
// Вычисляется в internal/identity из изображения, ссылки или имени и
// магазина; сырые URL с трекинговыми параметрами ключом не являются.
type IdentityKey string

// Tier задаёт приоритетную корзину акции при доставке.
type Tier string

const (
	TierCampaign   Tier = "campaign"
	TierCoupon     Tier = "coupon"
	TierDiscounted Tier = "discounted"
	TierPlain      Tier = "plain"
)

// TierOrder перечисляет корзины в порядке убывания приоритета доставки.
// Campaign всегда выше Coupon, даже если у купонной акции скидка больше.
var TierOrder = [...]Tier{TierCampaign, TierCoupon, TierDiscounted, TierPlain}

// ClassifiedOffer хранит акцию вместе с результатами классификации.
// Считается заново в каждом цикле и никогда не персистится.
type ClassifiedOffer struct {
	Offer         Offer       `json:"offer"`
	Key           IdentityKey `json:"key"`
	Tier          Tier        `json:"tier"`
	DiscountScore float64     `json:"discount_score"`
}

// LedgerEntry описывает запись об уже доставленной акции.
// LastPrice равен nil, если цена на момент доставки не распарсилась.
type LedgerEntry struct {
	Key         IdentityKey `json:"key"`
	Name        string      `json:"name,omitempty"`
	Keyword     string      `json:"keyword,omitempty"`
	LastPrice   *float64    `json:"last_price,omitempty"`
	DeliveredAt time.Time   `json:"delivered_at"`
}

// CycleReport содержит итоги одного цикла: счётчики и ранжированный срез
// подходящих акций. Отдаётся inspection-эндпойнтом как есть.
type CycleReport struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Fetched    int               `json:"fetched"`
	Ranked     int               `json:"ranked"`
	Eligible   int               `json:"eligible"`
	Delivered  int               `json:"delivered"`
	Failed     int               `json:"failed"`
	Offers     []ClassifiedOffer `json:"offers,omitempty"`
}
