package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/maine/promo_offers_bot/internal/offer"
	"github.com/maine/promo_offers_bot/internal/pricing"
)

// priceEpsilon — порог, ниже которого две цены считаются равными.
const priceEpsilon = 0.005

// Store описывает персистентное хранилище журнала отправок.
type Store interface {
	Load(ctx context.Context) (map[offer.IdentityKey]offer.LedgerEntry, error)
	Save(ctx context.Context, entries map[offer.IdentityKey]offer.LedgerEntry) error
}

// Ledger хранит ключи уже отправленных офферов вместе с последней
// известной ценой. Оффер отправляется повторно только когда его текущая
// цена отличается от записанной. Доступ однопоточный: журнал мутирует
// только активный цикл, одновременных циклов не бывает.
type Ledger struct {
	store      Store
	maxEntries int
	clock      func() time.Time
	entries    map[offer.IdentityKey]offer.LedgerEntry
}

// New создаёт журнал поверх стора. maxEntries ограничивает размер
// журнала (0 - без ограничения); при переполнении вытесняются самые
// старые записи по времени отправки.
func New(store Store, maxEntries int) *Ledger {
	return &Ledger{
		store:      store,
		maxEntries: maxEntries,
		clock:      time.Now,
		entries:    make(map[offer.IdentityKey]offer.LedgerEntry),
	}
}

// Load читает снапшот журнала из стора. Вызывается один раз при старте.
func (l *Ledger) Load(ctx context.Context) error {
	entries, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	if entries == nil {
		entries = make(map[offer.IdentityKey]offer.LedgerEntry)
	}
	l.entries = entries
	return nil
}

// ShouldDeliver сообщает, надо ли отправлять оффер: да, если ключ ещё
// не встречался или если цена изменилась с прошлой отправки. Появление
// и исчезновение цены тоже считается изменением.
func (l *Ledger) ShouldDeliver(co offer.ClassifiedOffer) bool {
	entry, ok := l.entries[co.Key]
	if !ok {
		return true
	}

	cur, okCur := pricing.ParsePrice(co.Offer.PriceMin)
	switch {
	case entry.LastPrice == nil && !okCur:
		return false
	case entry.LastPrice == nil || !okCur:
		return true
	default:
		return math.Abs(cur-*entry.LastPrice) > priceEpsilon
	}
}

// MarkDelivered записывает оффер в журнал и сразу сохраняет снапшот.
// Вызывается ДО отправки в Telegram: при сбое отправки запись не
// откатывается, чтобы частично доставленная пачка не дублировалась
// на следующем цикле.
func (l *Ledger) MarkDelivered(ctx context.Context, co offer.ClassifiedOffer) error {
	entry := offer.LedgerEntry{
		Key:         co.Key,
		Name:        co.Offer.Name,
		Keyword:     co.Offer.Keyword,
		DeliveredAt: l.clock(),
	}
	if price, ok := pricing.ParsePrice(co.Offer.PriceMin); ok {
		entry.LastPrice = &price
	}
	l.entries[co.Key] = entry
	l.prune()

	if err := l.store.Save(ctx, l.entries); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// Len возвращает текущее число записей в журнале.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// prune вытесняет самые старые записи, когда журнал превышает лимит.
func (l *Ledger) prune() {
	if l.maxEntries <= 0 || len(l.entries) <= l.maxEntries {
		return
	}

	all := make([]offer.LedgerEntry, 0, len(l.entries))
	for _, e := range l.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].DeliveredAt.Before(all[j].DeliveredAt)
	})

	for _, e := range all[:len(all)-l.maxEntries] {
		delete(l.entries, e.Key)
	}
}
