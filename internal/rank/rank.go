package rank

import (
	"math/rand/v2"
	"sort"

	"github.com/maine/promo_offers_bot/internal/classify"
	"github.com/maine/promo_offers_bot/internal/identity"
	"github.com/maine/promo_offers_bot/internal/offer"
	"github.com/maine/promo_offers_bot/internal/pricing"
)

// Ranker строит итоговую последовательность доставки: дедупликация по
// ключу, классификация, разбиение на корзины и упорядочивание внутри
// корзин. Порядок внутри корзины либо детерминированный (стабильная
// сортировка по убыванию скидки), либо случайный на каждый цикл, если
// включён shuffleWithinTier. Выбор фиксируется конфигом, по умолчанию
// детерминированный: воспроизводимые прогоны тестов требуют выключенного
// перемешивания.
type Ranker struct {
	classifier        *classify.Classifier
	keyFn             identity.KeyFunc
	shuffleWithinTier bool
}

// New создаёт ранкер. keyFn nil означает базовую стратегию identity.Derive.
func New(classifier *classify.Classifier, keyFn identity.KeyFunc, shuffleWithinTier bool) *Ranker {
	if classifier == nil {
		classifier = classify.New(nil)
	}
	if keyFn == nil {
		keyFn = identity.Derive
	}
	return &Ranker{
		classifier:        classifier,
		keyFn:             keyFn,
		shuffleWithinTier: shuffleWithinTier,
	}
}

// Prioritize возвращает ранжированный список без повторяющихся ключей.
// Метод тотальный: ошибок не бывает, неидентифицируемые акции молча
// отбрасываются, выход не содержит ничего, чего не было во входе.
func (r *Ranker) Prioritize(offers []offer.Offer) []offer.ClassifiedOffer {
	// Дедупликация по ключу, первая встреченная акция выигрывает.
	seen := make(map[offer.IdentityKey]struct{}, len(offers))
	classified := make([]offer.ClassifiedOffer, 0, len(offers))
	for _, o := range offers {
		key, ok := r.keyFn(o)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		classified = append(classified, offer.ClassifiedOffer{
			Offer:         o,
			Key:           key,
			Tier:          r.classifier.Classify(o),
			DiscountScore: pricing.DiscountScore(o),
		})
	}

	// Разбиение по корзинам; внутри корзины порядок входа сохраняется.
	byTier := make(map[offer.Tier][]offer.ClassifiedOffer, len(offer.TierOrder))
	for _, co := range classified {
		byTier[co.Tier] = append(byTier[co.Tier], co)
	}

	result := make([]offer.ClassifiedOffer, 0, len(classified))
	for _, tier := range offer.TierOrder {
		group := byTier[tier]
		if r.shuffleWithinTier {
			rand.Shuffle(len(group), func(i, j int) {
				group[i], group[j] = group[j], group[i]
			})
		} else {
			sort.SliceStable(group, func(i, j int) bool {
				return group[i].DiscountScore > group[j].DiscountScore
			})
		}
		result = append(result, group...)
	}

	// Защитный проход: инвариант уникальности ключей на выходе держится
	// независимо от предыдущих шагов.
	return dedupeByKey(result)
}

func dedupeByKey(in []offer.ClassifiedOffer) []offer.ClassifiedOffer {
	seen := make(map[offer.IdentityKey]struct{}, len(in))
	out := in[:0]
	for _, co := range in {
		if _, dup := seen[co.Key]; dup {
			continue
		}
		seen[co.Key] = struct{}{}
		out = append(out, co)
	}
	return out
}
