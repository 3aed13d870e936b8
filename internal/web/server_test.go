package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maine/promo_offers_bot/internal/offer"
)

func TestHealthz(t *testing.T) {
	srv := NewServer(":0")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestOffers_NoReportYet(t *testing.T) {
	srv := NewServer(":0")
	req := httptest.NewRequest(http.MethodGet, "/offers", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 before first cycle", rr.Code)
	}
}

func TestOffers_ReturnsLastReport(t *testing.T) {
	srv := NewServer(":0")
	srv.SetReport(offer.CycleReport{
		RunID:     "run-42",
		StartedAt: time.Date(2025, 11, 28, 12, 0, 0, 0, time.UTC),
		Fetched:   10,
		Delivered: 3,
		Offers: []offer.ClassifiedOffer{
			{Offer: offer.Offer{Name: "Fone Bluetooth"}, Key: "link:abc", Tier: offer.TierDiscounted},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/offers", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var report offer.CycleReport
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if report.RunID != "run-42" || report.Fetched != 10 || report.Delivered != 3 {
		t.Errorf("report = %+v, want stored report", report)
	}
	if len(report.Offers) != 1 || report.Offers[0].Offer.Name != "Fone Bluetooth" {
		t.Errorf("offers = %+v, want ranked offer carried through", report.Offers)
	}
}

func TestOffers_MethodNotAllowed(t *testing.T) {
	srv := NewServer(":0")
	req := httptest.NewRequest(http.MethodPost, "/offers", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}

func TestMetricsEndpointServed(t *testing.T) {
	srv := NewServer(":0")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Error("expected non-empty metrics exposition")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv := NewServer(":0")

	t.Run("generated when absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		if rr.Header().Get("X-Request-Id") == "" {
			t.Error("expected generated X-Request-Id header")
		}
	})

	t.Run("echoed when present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Request-Id", "req-123")
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		if got := rr.Header().Get("X-Request-Id"); got != "req-123" {
			t.Errorf("X-Request-Id = %q, want echoed value", got)
		}
	})
}
