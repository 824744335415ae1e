package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestHandler(chat *stubChannel) (*Handler, *DeadLetterStore, *http.ServeMux) {
	dlq := NewDeadLetterStore()
	d := NewDeliverer(testRetryConfig(), nil, chat, dlq, testLogger(), nil)
	h := NewHandler(dlq, d)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, dlq, mux
}

func deadLetterFixture(id string) *Delivery {
	return &Delivery{
		ID:           id,
		Channel:      "chat",
		Notification: sampleNotification("tenant-1", "chat"),
		Status:       StatusDeadLetter,
		Attempts:     3,
		LastError:    "attempt 3 refused",
		CreatedAt:    time.Now(),
	}
}

func TestHandler_List(t *testing.T) {
	_, dlq, mux := newTestHandler(&stubChannel{name: "chat"})
	dlq.Add(deadLetterFixture("nd-list"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/notifications/dead-letter", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data struct {
			Items []*Delivery `json:"items"`
			Total int         `json:"total"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Total != 1 || len(resp.Data.Items) != 1 {
		t.Fatalf("expected 1 item, got total=%d items=%d", resp.Data.Total, len(resp.Data.Items))
	}
	if resp.Data.Items[0].ID != "nd-list" {
		t.Errorf("expected nd-list, got %s", resp.Data.Items[0].ID)
	}
}

func TestHandler_Stats(t *testing.T) {
	_, dlq, mux := newTestHandler(&stubChannel{name: "chat"})
	dlq.Add(deadLetterFixture("nd-stats"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/notifications/dead-letter/stats", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data DeadLetterStats `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Total != 1 {
		t.Errorf("expected 1 total, got %d", resp.Data.Total)
	}
	if resp.Data.ByChannel["chat"] != 1 {
		t.Errorf("unexpected channel breakdown: %v", resp.Data.ByChannel)
	}
	if resp.Data.TotalAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", resp.Data.TotalAttempts)
	}
}

func TestHandler_Replay(t *testing.T) {
	chat := &stubChannel{name: "chat"}
	_, dlq, mux := newTestHandler(chat)
	dlq.Add(deadLetterFixture("nd-replay"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/notifications/dead-letter/nd-replay/replay", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data Delivery `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Status != StatusDelivered {
		t.Errorf("expected delivered, got %s", resp.Data.Status)
	}
	if chat.calls.Load() != 1 {
		t.Errorf("expected 1 send, got %d", chat.calls.Load())
	}
	if dlq.Count() != 0 {
		t.Errorf("expected empty store after replay, got %d", dlq.Count())
	}
}

func TestHandler_ReplayFailsAgain(t *testing.T) {
	chat := &stubChannel{name: "chat", failures: 1 << 30}
	_, dlq, mux := newTestHandler(chat)
	dlq.Add(deadLetterFixture("nd-flaky"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/notifications/dead-letter/nd-flaky/replay", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "delivery_failed" {
		t.Errorf("expected delivery_failed, got %s", resp.Error.Code)
	}
	if dlq.Count() != 1 {
		t.Errorf("expected entry back in store, got %d", dlq.Count())
	}
}

func TestHandler_ReplayNotFound(t *testing.T) {
	_, _, mux := newTestHandler(&stubChannel{name: "chat"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/notifications/dead-letter/nd-missing/replay", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_Delete(t *testing.T) {
	_, dlq, mux := newTestHandler(&stubChannel{name: "chat"})
	dlq.Add(deadLetterFixture("nd-del"))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/notifications/dead-letter/nd-del", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if dlq.Count() != 0 {
		t.Errorf("expected 0, got %d", dlq.Count())
	}
}

func TestHandler_DeleteNotFound(t *testing.T) {
	_, _, mux := newTestHandler(&stubChannel{name: "chat"})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/notifications/dead-letter/nd-missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_Purge(t *testing.T) {
	_, dlq, mux := newTestHandler(&stubChannel{name: "chat"})
	dlq.Add(deadLetterFixture("nd-p1"))
	dlq.Add(deadLetterFixture("nd-p2"))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/notifications/dead-letter", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data struct {
			Purged int `json:"purged"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Purged != 2 {
		t.Errorf("expected 2 purged, got %d", resp.Data.Purged)
	}
	if dlq.Count() != 0 {
		t.Errorf("expected 0 after purge, got %d", dlq.Count())
	}
}
