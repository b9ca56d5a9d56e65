package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestVerificationClient(baseURL string) *VerificationClient {
	c := NewVerificationClient(baseURL, "app-1", "key-1")
	c.RetryDelay = time.Millisecond
	c.AttemptTimeout = time.Second
	return c
}

func TestVerifierTerminal4xxStopsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "no such transaction", http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestVerificationClient(srv.URL)
	_, err := client.GetTransaction(context.Background(), "tx-missing")
	verr, ok := err.(*VerificationError)
	if !ok {
		t.Fatalf("want *VerificationError, got %v", err)
	}
	if !verr.Terminal || verr.StatusCode != http.StatusNotFound {
		t.Fatalf("want terminal 404, got %+v", verr)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("4xx must not retry: %d calls", got)
	}
}

func TestVerifierRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transaction_status":"confirmed","reference":"ref-1","transaction_hash":"0xbeef"}`))
	}))
	defer srv.Close()

	client := newTestVerificationClient(srv.URL)
	result, err := client.GetTransaction(context.Background(), "tx-1")
	if err != nil {
		t.Fatalf("want success on third attempt, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("want exactly 3 calls, got %d", got)
	}
	if !result.Confirmed() || result.Reference != "ref-1" || result.TxHash != "0xbeef" {
		t.Fatalf("bad result: %+v", result)
	}
}

func TestVerifierExhaustedRetriesIs502(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestVerificationClient(srv.URL)
	_, err := client.GetTransaction(context.Background(), "tx-down")
	verr, ok := err.(*VerificationError)
	if !ok {
		t.Fatalf("want *VerificationError, got %v", err)
	}
	if verr.Terminal {
		t.Fatal("exhausted retries must not be classified terminal")
	}
	if verr.StatusCode != http.StatusBadGateway || verr.Attempts != 3 {
		t.Fatalf("want 502 after 3 attempts, got %+v", verr)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("want exactly 3 calls, got %d", got)
	}
}

func TestVerifierAcceptsLegacyStatusField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("app_id") != "app-1" || r.URL.Query().Get("type") != "miniapp" {
			t.Errorf("missing query params: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer key-1" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","reference":"ref-2"}`))
	}))
	defer srv.Close()

	client := newTestVerificationClient(srv.URL)
	result, err := client.GetTransaction(context.Background(), "tx-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !result.Confirmed() || result.Reference != "ref-2" {
		t.Fatalf("bad result: %+v", result)
	}
}
