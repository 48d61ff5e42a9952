package messaging

import (
	"context"
	"testing"

	"github.com/UniversalShopper/ShopperChat/internal/models"
	"github.com/UniversalShopper/ShopperChat/internal/whatsapp"
)

// Ensure WhatsAppService implements Service interface
func TestWhatsAppServiceImplementsService(t *testing.T) {
	var _ Service = (*WhatsAppService)(nil)
}

// Test SendMessage emits a sent receipt
func TestWhatsAppServiceSendMessageReceipt(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	ctx := context.Background()

	if err := svc.SendMessage(ctx, "+1 416 555 0199", "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if len(mockClient.SentMessages) != 1 || mockClient.SentMessages[0].To != "14165550199" {
		t.Errorf("unexpected sent messages: %+v", mockClient.SentMessages)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.To != "14165550199" {
			t.Errorf("expected receipt.To 14165550199, got %s", receipt.To)
		}
		if receipt.Status != models.MessageStatusSent {
			t.Errorf("expected receipt.Status %s, got %s", models.MessageStatusSent, receipt.Status)
		}
	default:
		t.Fatal("expected receipt, got none")
	}
}

func TestWhatsAppServiceSendMessageInvalidRecipient(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.SendMessage(context.Background(), "123", "hello"); err == nil {
		t.Error("expected error for too-short recipient")
	}
}

// Test Start and Stop do not error and close channels
func TestWhatsAppServiceStartStop(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	// After Stop, Receipts and Responses channels are eventually closed;
	// receiving from a closed channel yields the zero value
	receipt, ok := <-svc.Receipts()
	if ok {
		t.Errorf("expected receipts channel closed, got value %v", receipt)
	}
	response, ok := <-svc.Responses()
	if ok {
		t.Errorf("expected responses channel closed, got value %v", response)
	}
}
