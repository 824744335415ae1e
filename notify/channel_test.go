package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatChannel_PostsMessage(t *testing.T) {
	bodyCh := make(chan chatMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %q", ct)
		}
		var m chatMessage
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			t.Errorf("decode body: %v", err)
		}
		bodyCh <- m
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewChatChannel(srv.URL, testLogger())
	if ch.Name() != "chat" {
		t.Errorf("expected name chat, got %s", ch.Name())
	}

	n := sampleNotification("tenant-7", "chat")
	if err := ch.Send(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := <-bodyCh
	if got.TenantID != "tenant-7" {
		t.Errorf("expected tenant-7, got %s", got.TenantID)
	}
	if got.ThresholdPercent != 80 {
		t.Errorf("expected threshold 80, got %d", got.ThresholdPercent)
	}
	if got.UsagePercent != 91.5 {
		t.Errorf("expected usage 91.5, got %f", got.UsagePercent)
	}
	if !strings.Contains(got.Text, "tenant-7") || !strings.Contains(got.Text, "91.5%") {
		t.Errorf("unexpected text: %q", got.Text)
	}
}

func TestChatChannel_Non2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := NewChatChannel(srv.URL, testLogger())
	err := ch.Send(context.Background(), sampleNotification("tenant-7", "chat"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("expected status in error, got %v", err)
	}
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subject = subject
	f.data = data
	return nil
}

func TestEmailChannel_PublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	ch := &EmailChannel{pub: pub, subject: DefaultEmailSubject, logger: testLogger()}
	if ch.Name() != "email" {
		t.Errorf("expected name email, got %s", ch.Name())
	}

	n := sampleNotification("tenant-9", "email")
	if err := ch.Send(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pub.subject != DefaultEmailSubject {
		t.Errorf("expected subject %s, got %s", DefaultEmailSubject, pub.subject)
	}

	var msg emailMessage
	if err := json.Unmarshal(pub.data, &msg); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if msg.TenantID != "tenant-9" {
		t.Errorf("expected tenant-9, got %s", msg.TenantID)
	}
	if !strings.Contains(msg.Subject, "91.5%") {
		t.Errorf("unexpected subject line: %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "tenant-9") || !strings.Contains(msg.Body, "80%") {
		t.Errorf("unexpected body: %q", msg.Body)
	}
	if msg.UsagePercent != 91.5 {
		t.Errorf("expected usage 91.5, got %f", msg.UsagePercent)
	}
}

func TestEmailChannel_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	ch := &EmailChannel{pub: pub, subject: DefaultEmailSubject, logger: testLogger()}

	err := ch.Send(context.Background(), sampleNotification("tenant-9", "email"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "nats down") {
		t.Errorf("expected cause in error, got %v", err)
	}
}

func TestNewEmailChannel_DefaultSubject(t *testing.T) {
	ch := NewEmailChannel(nil, "", testLogger())
	if ch.subject != DefaultEmailSubject {
		t.Errorf("expected default subject, got %s", ch.subject)
	}
}
