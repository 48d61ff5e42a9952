package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientListSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"status":"success","data":{"sessions":["shop1","shop2"]}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	sessions, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if len(sessions) != 2 || sessions[0] != "shop1" || sessions[1] != "shop2" {
		t.Errorf("unexpected sessions: %v", sessions)
	}
}

func TestClientStartProcessRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/process" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body["product_url"] != "https://example.com/item" {
			t.Errorf("unexpected product_url: %v", body["product_url"])
		}
		if body["session_name"] != "shop1" {
			t.Errorf("unexpected session_name: %v", body["session_name"])
		}
		if body["use_existing_session"] != true {
			t.Errorf("unexpected use_existing_session: %v", body["use_existing_session"])
		}
		w.Write([]byte(`{"status":"success","data":{"process_id":"proc-1","status":"running","stage":"PENDING"}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	proc, err := c.StartProcess(context.Background(), "https://example.com/item", "shop1", true)
	if err != nil {
		t.Fatalf("StartProcess returned error: %v", err)
	}
	if proc.ProcessID != "proc-1" || proc.Stage != "PENDING" {
		t.Errorf("unexpected process: %+v", proc)
	}
}

func TestClientGetProcessNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"process not found"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.GetProcess(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !IsNotFound(err) {
		t.Errorf("expected IsNotFound true, got error: %v", err)
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "process not found" {
		t.Errorf("expected server message carried, got %q", apiErr.Message)
	}
}

func TestClientSubmitPaymentRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process/proc-1/payment" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body["process_id"] != "proc-1" {
			t.Errorf("unexpected process_id: %v", body["process_id"])
		}
		if body["card_number"] != "4111111111111111" {
			t.Errorf("unexpected card_number: %v", body["card_number"])
		}
		if body["expiry_month"] != "05" || body["expiry_year"] != "28" || body["expiry_combined"] != "05/28" {
			t.Errorf("unexpected expiry fields: %v %v %v", body["expiry_month"], body["expiry_year"], body["expiry_combined"])
		}
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if err := c.SubmitPayment(context.Background(), "proc-1", "4111111111111111", "123", "05", "28", "05/28"); err != nil {
		t.Fatalf("SubmitPayment returned error: %v", err)
	}
}

func TestClientSelectAddressRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process/proc-1/select-address" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			ProcessID    string `json:"process_id"`
			AddressIndex int    `json:"address_index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body.AddressIndex != 2 {
			t.Errorf("expected 0-based address index 2, got %d", body.AddressIndex)
		}
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if err := c.SelectAddress(context.Background(), "proc-1", 2); err != nil {
		t.Fatalf("SelectAddress returned error: %v", err)
	}
}

func TestClientMalformedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.ListSessions(context.Background()); err == nil {
		t.Fatal("expected error for malformed response body")
	}
}
