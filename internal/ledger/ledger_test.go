package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maine/promo_offers_bot/internal/offer"
)

type mockStore struct {
	loadFunc func(ctx context.Context) (map[offer.IdentityKey]offer.LedgerEntry, error)
	saveFunc func(ctx context.Context, entries map[offer.IdentityKey]offer.LedgerEntry) error
}

func (m *mockStore) Load(ctx context.Context) (map[offer.IdentityKey]offer.LedgerEntry, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx)
	}
	return map[offer.IdentityKey]offer.LedgerEntry{}, nil
}

func (m *mockStore) Save(ctx context.Context, entries map[offer.IdentityKey]offer.LedgerEntry) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, entries)
	}
	return nil
}

func classified(key, priceMin string) offer.ClassifiedOffer {
	return offer.ClassifiedOffer{
		Offer: offer.Offer{Name: "Oferta " + key, PriceMin: priceMin},
		Key:   offer.IdentityKey(key),
		Tier:  offer.TierPlain,
	}
}

func TestLedger_ShouldDeliver(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown offer is eligible", func(t *testing.T) {
		l := New(&mockStore{}, 0)
		if !l.ShouldDeliver(classified("k1", "59,90")) {
			t.Error("ShouldDeliver() = false for unseen offer, want true")
		}
	})

	t.Run("same price is not eligible again", func(t *testing.T) {
		l := New(&mockStore{}, 0)
		co := classified("k1", "59,90")
		if err := l.MarkDelivered(ctx, co); err != nil {
			t.Fatalf("MarkDelivered() error = %v", err)
		}
		if l.ShouldDeliver(co) {
			t.Error("ShouldDeliver() = true after delivery at same price, want false")
		}
	})

	t.Run("equal price in another format is not a change", func(t *testing.T) {
		l := New(&mockStore{}, 0)
		if err := l.MarkDelivered(ctx, classified("k1", "R$ 1.234,56")); err != nil {
			t.Fatalf("MarkDelivered() error = %v", err)
		}
		if l.ShouldDeliver(classified("k1", "1,234.56")) {
			t.Error("ShouldDeliver() = true for same price in US format, want false")
		}
	})

	t.Run("changed price is eligible again", func(t *testing.T) {
		l := New(&mockStore{}, 0)
		if err := l.MarkDelivered(ctx, classified("k1", "59,90")); err != nil {
			t.Fatalf("MarkDelivered() error = %v", err)
		}
		if !l.ShouldDeliver(classified("k1", "49,90")) {
			t.Error("ShouldDeliver() = false after price drop, want true")
		}
	})

	t.Run("price appearing counts as change", func(t *testing.T) {
		l := New(&mockStore{}, 0)
		if err := l.MarkDelivered(ctx, classified("k1", "")); err != nil {
			t.Fatalf("MarkDelivered() error = %v", err)
		}
		if !l.ShouldDeliver(classified("k1", "10,00")) {
			t.Error("ShouldDeliver() = false when price appeared, want true")
		}
	})

	t.Run("price disappearing counts as change", func(t *testing.T) {
		l := New(&mockStore{}, 0)
		if err := l.MarkDelivered(ctx, classified("k1", "10,00")); err != nil {
			t.Fatalf("MarkDelivered() error = %v", err)
		}
		if !l.ShouldDeliver(classified("k1", "indisponível")) {
			t.Error("ShouldDeliver() = false when price disappeared, want true")
		}
	})

	t.Run("still no price is not a change", func(t *testing.T) {
		l := New(&mockStore{}, 0)
		if err := l.MarkDelivered(ctx, classified("k1", "")); err != nil {
			t.Fatalf("MarkDelivered() error = %v", err)
		}
		if l.ShouldDeliver(classified("k1", "")) {
			t.Error("ShouldDeliver() = true for repeated priceless offer, want false")
		}
	})
}

func TestLedger_MarkDelivered_WritesThrough(t *testing.T) {
	ctx := context.Background()
	saves := 0
	var lastSaved map[offer.IdentityKey]offer.LedgerEntry
	store := &mockStore{
		saveFunc: func(ctx context.Context, entries map[offer.IdentityKey]offer.LedgerEntry) error {
			saves++
			lastSaved = entries
			return nil
		},
	}

	l := New(store, 0)
	if err := l.MarkDelivered(ctx, classified("k1", "10,00")); err != nil {
		t.Fatalf("MarkDelivered() error = %v", err)
	}
	if err := l.MarkDelivered(ctx, classified("k2", "20,00")); err != nil {
		t.Fatalf("MarkDelivered() error = %v", err)
	}

	if saves != 2 {
		t.Errorf("store.Save called %d times, want 2 (write-through per mark)", saves)
	}
	if len(lastSaved) != 2 {
		t.Errorf("last snapshot has %d entries, want 2", len(lastSaved))
	}
	entry, ok := lastSaved["k1"]
	if !ok {
		t.Fatal("snapshot missing key k1")
	}
	if entry.LastPrice == nil || *entry.LastPrice != 10.0 {
		t.Errorf("entry.LastPrice = %v, want 10.0", entry.LastPrice)
	}
}

func TestLedger_MarkDelivered_SaveError(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{
		saveFunc: func(ctx context.Context, entries map[offer.IdentityKey]offer.LedgerEntry) error {
			return errors.New("disk full")
		},
	}

	l := New(store, 0)
	co := classified("k1", "10,00")
	if err := l.MarkDelivered(ctx, co); err == nil {
		t.Fatal("MarkDelivered() error = nil, want save error")
	}
	// Запись остаётся в памяти: в рамках процесса дублей не будет.
	if l.ShouldDeliver(co) {
		t.Error("ShouldDeliver() = true after failed save, want false (entry kept in memory)")
	}
}

func TestLedger_Prune(t *testing.T) {
	ctx := context.Background()
	l := New(&mockStore{}, 2)

	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	l.clock = func() time.Time {
		tick++
		return now.Add(time.Duration(tick) * time.Minute)
	}

	for _, key := range []string{"oldest", "middle", "newest"} {
		if err := l.MarkDelivered(ctx, classified(key, "10,00")); err != nil {
			t.Fatalf("MarkDelivered(%s) error = %v", key, err)
		}
	}

	if l.Len() != 2 {
		t.Fatalf("Len() = %d after prune, want 2", l.Len())
	}
	// Самая старая запись вытеснена и снова считается новой.
	if !l.ShouldDeliver(classified("oldest", "10,00")) {
		t.Error("ShouldDeliver(oldest) = false, want true after eviction")
	}
	if l.ShouldDeliver(classified("newest", "10,00")) {
		t.Error("ShouldDeliver(newest) = true, want false (entry kept)")
	}
}

func TestLedger_Load(t *testing.T) {
	ctx := context.Background()
	price := 59.9
	store := &mockStore{
		loadFunc: func(ctx context.Context) (map[offer.IdentityKey]offer.LedgerEntry, error) {
			return map[offer.IdentityKey]offer.LedgerEntry{
				"k1": {Key: "k1", LastPrice: &price, DeliveredAt: time.Now()},
			}, nil
		},
	}

	l := New(store, 0)
	if err := l.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	if l.ShouldDeliver(classified("k1", "59,90")) {
		t.Error("ShouldDeliver() = true for restored entry at same price, want false")
	}

	t.Run("load error propagates", func(t *testing.T) {
		broken := &mockStore{
			loadFunc: func(ctx context.Context) (map[offer.IdentityKey]offer.LedgerEntry, error) {
				return nil, errors.New("io error")
			},
		}
		l := New(broken, 0)
		if err := l.Load(ctx); err == nil {
			t.Error("Load() error = nil, want io error")
		}
	})

	t.Run("nil map from store becomes empty ledger", func(t *testing.T) {
		nilStore := &mockStore{
			loadFunc: func(ctx context.Context) (map[offer.IdentityKey]offer.LedgerEntry, error) {
				return nil, nil
			},
		}
		l := New(nilStore, 0)
		if err := l.Load(ctx); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !l.ShouldDeliver(classified("k1", "10,00")) {
			t.Error("ShouldDeliver() = false on empty ledger, want true")
		}
	})
}
