package messaging

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/UniversalShopper/ShopperChat/internal/models"
)

// Ensure ConsoleService implements Service interface
func TestConsoleServiceImplementsService(t *testing.T) {
	var _ Service = (*ConsoleService)(nil)
}

func TestConsoleServiceSendMessage(t *testing.T) {
	var out bytes.Buffer
	svc := NewConsoleServiceWithIO(strings.NewReader(""), &out)

	if err := svc.SendMessage(context.Background(), ConsoleRecipient, "hello operator"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if got := out.String(); got != "hello operator\n" {
		t.Errorf("unexpected output: %q", got)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.To != ConsoleRecipient || receipt.Status != models.MessageStatusSent {
			t.Errorf("unexpected receipt: %+v", receipt)
		}
	default:
		t.Fatal("expected receipt, got none")
	}
}

func TestConsoleServiceSendMessageEmptyBody(t *testing.T) {
	svc := NewConsoleServiceWithIO(strings.NewReader(""), &bytes.Buffer{})
	if err := svc.SendMessage(context.Background(), ConsoleRecipient, ""); err != models.ErrEmptyBody {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}
}

func TestConsoleServiceReadLoop(t *testing.T) {
	svc := NewConsoleServiceWithIO(strings.NewReader("select 1\n\ncreate shop1\n"), &bytes.Buffer{})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	want := []string{"select 1", "create shop1"}
	for _, body := range want {
		select {
		case resp := <-svc.Responses():
			if resp.From != ConsoleRecipient || resp.Body != body {
				t.Errorf("unexpected response: %+v, want body %q", resp, body)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for line %q", body)
		}
	}
}

func TestConsoleServiceValidateRecipient(t *testing.T) {
	svc := NewConsoleServiceWithIO(strings.NewReader(""), &bytes.Buffer{})

	if _, err := svc.ValidateAndCanonicalizeRecipient(""); err != models.ErrEmptyRecipient {
		t.Errorf("expected ErrEmptyRecipient, got %v", err)
	}
	got, err := svc.ValidateAndCanonicalizeRecipient("anyone")
	if err != nil || got != ConsoleRecipient {
		t.Errorf("expected canonical console recipient, got %q err=%v", got, err)
	}
}

func TestConsoleServiceStopIdempotent(t *testing.T) {
	svc := NewConsoleServiceWithIO(strings.NewReader(""), &bytes.Buffer{})
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
	if err := svc.SendMessage(context.Background(), ConsoleRecipient, "late"); err != models.ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped after stop, got %v", err)
	}
}
