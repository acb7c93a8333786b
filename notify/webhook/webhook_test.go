package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/topup/notify"
)

func testConfig(url string) Config {
	return Config{
		URL:             url,
		Secret:          "whsec_test",
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoURL) {
		t.Errorf("expected ErrNoURL, got %v", err)
	}
}

func TestSendSignsPayload(t *testing.T) {
	var (
		gotBody  []byte
		gotSig   string
		gotEvent string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		gotEvent = r.Header.Get(EventHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	n := notify.New(notify.EventOrderConfirmed, notify.Customer("c1"), "order confirmed")
	if err := s.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotEvent != string(notify.EventOrderConfirmed) {
		t.Errorf("event header = %q", gotEvent)
	}
	if err := Verify(gotBody, gotSig, "whsec_test", time.Minute); err != nil {
		t.Errorf("signature did not verify: %v", err)
	}

	var decoded notify.Notification
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.ID.String() != n.ID.String() || decoded.Recipient.ID != "c1" {
		t.Errorf("unexpected body: %+v", decoded)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, _ := New(testConfig(srv.URL))
	if err := s.Send(context.Background(), notify.New(notify.EventOrderCreated, notify.Operator("op"), "x")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSendGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, _ := New(testConfig(srv.URL))
	if err := s.Send(context.Background(), notify.New(notify.EventOrderCreated, notify.Operator("op"), "x")); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s, _ := New(testConfig(srv.URL))
	if err := s.Send(context.Background(), notify.New(notify.EventOrderCreated, notify.Operator("op"), "x")); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"id":"ntf_1"}`)
	now := time.Now().Unix()
	header := Sign(payload, "secret", now)

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		wantErr bool
	}{
		{"valid", payload, header, "secret", false},
		{"wrong secret", payload, header, "other", true},
		{"tampered payload", []byte(`{"id":"ntf_2"}`), header, "secret", true},
		{"malformed header", payload, "garbage", "secret", true},
		{"expired", payload, Sign(payload, "secret", now-3600), "secret", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.payload, tt.header, tt.secret, 5*time.Minute)
			if (err != nil) != tt.wantErr {
				t.Errorf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
