package shopee

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maine/promo_offers_bot/internal/config"
	"github.com/maine/promo_offers_bot/internal/offer"
)

// Запрос к Shopee Affiliate Open API. Поля nodes перечислены по
// документации, но декодер не полагается на точный набор: версии API
// возвращают разные имена (см. normalizeOffer).
const productOfferQuery = `query productOfferV2($keyword: String, $page: Int, $limit: Int) {
  productOfferV2(keyword: $keyword, page: $page, limit: $limit, sortType: 2) {
    nodes {
      productName
      imageUrl
      offerLink
      productLink
      priceMin
      priceMax
      shopId
      couponCode
      videoUrl
      sales
    }
    pageInfo {
      page
      limit
      hasNextPage
    }
  }
}`

// Client опрашивает Shopee Affiliate Open API с подписью запросов.
type Client struct {
	cfg     config.Fetch
	appID   string
	secret  string
	httpc   *http.Client
	limiter *rate.Limiter
	clock   func() time.Time
}

// NewClient создаёт новый экземпляр. client и clock могут быть nil.
func NewClient(cfg config.Fetch, appID, appSecret string, client *http.Client, clock func() time.Time) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Client{
		cfg:     cfg,
		appID:   appID,
		secret:  appSecret,
		httpc:   client,
		// Пауза между запросами, чтобы не упираться в лимиты API
		limiter: rate.NewLimiter(rate.Every(800*time.Millisecond), 1),
		clock:   clock,
	}
}

// Fetch обходит все ключевые слова и страницы из конфига.
// Ошибка одной страницы не прерывает обход: страница считается пустой,
// остальные ключевые слова обрабатываются дальше.
func (c *Client) Fetch(ctx context.Context) ([]offer.Offer, error) {
	var results []offer.Offer
	for _, keyword := range c.cfg.Keywords {
		for page := 1; page <= c.cfg.PagesPerKeyword; page++ {
			offers, err := c.FetchPage(ctx, keyword, page)
			if err != nil {
				if ctx.Err() != nil {
					return results, ctx.Err()
				}
				log.Printf("Error fetching offers for keyword %q page %d: %v", keyword, page, err)
				continue
			}
			results = append(results, offers...)
		}
	}
	return results, nil
}

// FetchPage запрашивает одну страницу выдачи по ключевому слову.
func (c *Client) FetchPage(ctx context.Context, keyword string, page int) ([]offer.Offer, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait rate limit: %w", err)
	}

	payload, err := json.Marshal(graphqlRequest{
		Query: productOfferQuery,
		Variables: map[string]any{
			"keyword": keyword,
			"page":    page,
			"limit":   c.cfg.PageLimit,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader(payload))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return c.decodeOffers(body, keyword)
}

// authHeader строит заголовок авторизации Shopee Open API:
// подпись - SHA256 от конкатенации appID + timestamp + тело + secret.
func (c *Client) authHeader(payload []byte) string {
	ts := c.clock().Unix()
	base := c.appID + strconv.FormatInt(ts, 10) + string(payload) + c.secret
	sum := sha256.Sum256([]byte(base))
	return fmt.Sprintf("SHA256 Credential=%s, Timestamp=%d, Signature=%s",
		c.appID, ts, hex.EncodeToString(sum[:]))
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type offerResponse struct {
	Data struct {
		ProductOfferV2 struct {
			Nodes []json.RawMessage `json:"nodes"`
		} `json:"productOfferV2"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) decodeOffers(body []byte, keyword string) ([]offer.Offer, error) {
	var resp offerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("api error: %s", resp.Errors[0].Message)
	}

	now := c.clock()
	offers := make([]offer.Offer, 0, len(resp.Data.ProductOfferV2.Nodes))
	for _, node := range resp.Data.ProductOfferV2.Nodes {
		var fields map[string]any
		if err := json.Unmarshal(node, &fields); err != nil {
			log.Printf("Skipping malformed offer node for keyword %q: %v", keyword, err)
			continue
		}
		offers = append(offers, normalizeOffer(fields, keyword, now))
	}
	return offers, nil
}

// --- Normalization ---

// Поля офферов приходят под разными именами и типами в зависимости от
// версии API: имя продукта бывает productName, product_name или name,
// цена - строкой или числом. normalizeOffer приводит сырой объект к
// канонической форме, дальше по пайплайну гуляет только offer.Offer.
func normalizeOffer(fields map[string]any, keyword string, fetchedAt time.Time) offer.Offer {
	return offer.Offer{
		Name:       pickString(fields, "productName", "product_name", "name", "title"),
		ImageURL:   pickString(fields, "imageUrl", "image_url", "image", "picture"),
		Link:       pickString(fields, "offerLink", "offer_link", "productLink", "product_link", "url", "link"),
		PriceMin:   pickScalar(fields, "priceMin", "price_min", "price"),
		PriceMax:   pickScalar(fields, "priceMax", "price_max"),
		ShopID:     pickScalar(fields, "shopId", "shop_id", "shopid"),
		CouponCode: pickString(fields, "couponCode", "coupon_code", "voucher"),
		VideoURL:   pickString(fields, "videoUrl", "video_url"),
		Keyword:    keyword,
		FetchedAt:  fetchedAt,
	}
}

// pickString возвращает первое непустое строковое поле из списка имён.
func pickString(fields map[string]any, names ...string) string {
	for _, name := range names {
		if v, ok := fields[name]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// pickScalar принимает строку или число и возвращает строковую форму.
// Числовые значения форматируются без лишних нулей.
func pickScalar(fields map[string]any, names ...string) string {
	for _, name := range names {
		v, ok := fields[name]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				return strings.TrimSpace(t)
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}
