package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/UniversalShopper/ShopperChat/internal/models"
	"github.com/UniversalShopper/ShopperChat/internal/twiliosms"
)

// Ensure TwilioService implements Service interface
func TestTwilioServiceImplementsService(t *testing.T) {
	var _ Service = (*TwilioService)(nil)
}

func TestTwilioServiceSendMessageCanonicalizes(t *testing.T) {
	mock := twiliosms.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendMessage(context.Background(), "+1 (416) 555-0199", "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(mock.SentMessages))
	}
	if mock.SentMessages[0].To != "14165550199" {
		t.Errorf("expected canonicalized recipient, got %q", mock.SentMessages[0].To)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.Status != models.MessageStatusSent {
			t.Errorf("unexpected receipt status: %s", receipt.Status)
		}
	default:
		t.Fatal("expected receipt, got none")
	}
}

func TestTwilioServiceRecipientValidation(t *testing.T) {
	svc := NewTwilioService(twiliosms.NewMockClient())

	if _, err := svc.ValidateAndCanonicalizeRecipient(""); err != models.ErrEmptyRecipient {
		t.Errorf("expected ErrEmptyRecipient, got %v", err)
	}
	if _, err := svc.ValidateAndCanonicalizeRecipient("123"); err == nil {
		t.Error("expected error for too-short number")
	}
	if _, err := svc.ValidateAndCanonicalizeRecipient("abc"); err == nil {
		t.Error("expected error for number with no digits")
	}
	got, err := svc.ValidateAndCanonicalizeRecipient("416-555-0199")
	if err != nil || got != "4165550199" {
		t.Errorf("unexpected canonicalization: %q err=%v", got, err)
	}
}

func TestTwilioServiceWebhookEmitsResponse(t *testing.T) {
	svc := NewTwilioService(twiliosms.NewMockClient())

	form := url.Values{}
	form.Set("From", "+14165550199")
	form.Set("Body", "select 1")
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	select {
	case resp := <-svc.Responses():
		if resp.From != "+14165550199" || resp.Body != "select 1" {
			t.Errorf("unexpected response: %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for webhook response")
	}
}

func TestTwilioServiceWebhookRejectsMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliosms.NewMockClient())

	form := url.Values{}
	form.Set("From", "+14165550199")
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing body, got %d", rec.Code)
	}
}

func TestTwilioServiceStopDropsLateSends(t *testing.T) {
	svc := NewTwilioService(twiliosms.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "4165550199", "late"); err != models.ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}
