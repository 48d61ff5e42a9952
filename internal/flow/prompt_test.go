package flow

import (
	"strings"
	"testing"

	"github.com/UniversalShopper/ShopperChat/internal/models"
)

func TestOutcomeForStageTable(t *testing.T) {
	tests := []struct {
		name        string
		proc        *models.Process
		wantMessage string
		wantKind    models.InputKind
		wantStop    bool
		wantEnd     bool
	}{
		{
			name:        "login required default message",
			proc:        &models.Process{Stage: models.StageLoginRequired},
			wantMessage: "Please enter your phone number.",
			wantKind:    models.InputPhoneNumber,
			wantStop:    true,
		},
		{
			name:        "login otp required",
			proc:        &models.Process{Stage: models.StageLoginOTPRequired},
			wantMessage: "Please enter login OTP.",
			wantKind:    models.InputLoginOTP,
			wantStop:    true,
		},
		{
			name:        "otp requested alias",
			proc:        &models.Process{Stage: models.StageOTPRequested},
			wantMessage: "Please enter login OTP.",
			wantKind:    models.InputLoginOTP,
			wantStop:    true,
		},
		{
			name:        "server message wins over default",
			proc:        &models.Process{Stage: models.StageLoginOTPRequired, Message: "OTP sent to your phone."},
			wantMessage: "OTP sent to your phone.",
			wantKind:    models.InputLoginOTP,
			wantStop:    true,
		},
		{
			name:        "bank otp requested",
			proc:        &models.Process{Stage: models.StageBankOTPRequested},
			wantMessage: "Enter bank OTP.",
			wantKind:    models.InputBankOTP,
			wantStop:    true,
		},
		{
			name:        "completed default",
			proc:        &models.Process{Stage: models.StageCompleted},
			wantMessage: "Order placed successfully!",
			wantStop:    true,
			wantEnd:     true,
		},
		{
			name:        "failed with server message",
			proc:        &models.Process{Stage: models.StageFailed, Message: "card declined"},
			wantMessage: "Process failed: card declined",
			wantStop:    true,
			wantEnd:     true,
		},
		{
			name:        "failed without message",
			proc:        &models.Process{Stage: models.StageFailed},
			wantMessage: "Process failed: Unknown error",
			wantStop:    true,
			wantEnd:     true,
		},
		{
			name:        "unknown stage passes server message through",
			proc:        &models.Process{Stage: "navigating", Message: "Opening product page"},
			wantMessage: "Opening product page",
		},
		{
			name: "unknown stage with no message stays silent",
			proc: &models.Process{Stage: "navigating"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := OutcomeForStage(tc.proc)
			if out.Message != tc.wantMessage {
				t.Errorf("message = %q, want %q", out.Message, tc.wantMessage)
			}
			if out.Input.Kind != tc.wantKind {
				t.Errorf("input kind = %q, want %q", out.Input.Kind, tc.wantKind)
			}
			if out.StopPolling != tc.wantStop {
				t.Errorf("StopPolling = %v, want %v", out.StopPolling, tc.wantStop)
			}
			if out.Terminal != tc.wantEnd {
				t.Errorf("Terminal = %v, want %v", out.Terminal, tc.wantEnd)
			}
		})
	}
}

func TestOutcomeForStageAddressEnumeration(t *testing.T) {
	proc := &models.Process{
		Stage: models.StageSelectingAddress,
		Data: &models.ProcessData{
			AvailableAddresses: []models.AddressCandidate{
				{Index: 0, Name: "Home", Text: "1 Main St"},
				{Index: 1, Name: "", Text: "malformed"},
				{Index: 2, Name: "Office", Text: "9 Work Rd"},
			},
		},
	}

	out := OutcomeForStage(proc)
	if out.Input.Kind != models.InputSelectAddress {
		t.Fatalf("input kind = %q, want select_address", out.Input.Kind)
	}
	if !strings.Contains(out.Message, "1. Home: 1 Main St") {
		t.Errorf("expected first candidate enumerated, got %q", out.Message)
	}
	if !strings.Contains(out.Message, "3. Office: 9 Work Rd") {
		t.Errorf("expected third candidate to keep its 1-based slot, got %q", out.Message)
	}
	if strings.Contains(out.Message, "malformed") {
		t.Errorf("malformed candidate should be skipped, got %q", out.Message)
	}
	if !strings.HasSuffix(out.Message, "\nEnter number.") {
		t.Errorf("expected Enter number suffix, got %q", out.Message)
	}
	// The stored candidate list keeps every slot so selection bounds match
	if len(out.Input.Addresses) != 3 {
		t.Errorf("expected all 3 candidates stored, got %d", len(out.Input.Addresses))
	}
}

func TestOutcomeForStageAddressEmpty(t *testing.T) {
	out := OutcomeForStage(&models.Process{Stage: models.StageSelectingAddress})
	if !strings.Contains(out.Message, "(No addresses found or invalid format)") {
		t.Errorf("expected empty-list note, got %q", out.Message)
	}
	if out.Input.Kind != models.InputSelectAddress {
		t.Errorf("input kind = %q, want select_address", out.Input.Kind)
	}
}

func TestOutcomeForStagePayment(t *testing.T) {
	truth := true
	out := OutcomeForStage(&models.Process{
		Stage: models.StagePaymentRequested,
		Data:  &models.ProcessData{TotalAmount: "$42.00", IsNewExpiryFormat: &truth},
	})
	if out.Message != "Please provide payment details. Total: $42.00" {
		t.Errorf("unexpected payment message: %q", out.Message)
	}
	if out.Input.Kind != models.InputPayment {
		t.Errorf("input kind = %q, want payment", out.Input.Kind)
	}
	if !out.Input.NewExpiryFormat {
		t.Error("expected NewExpiryFormat carried through")
	}
	if !out.StopPolling {
		t.Error("expected polling stop for payment stage")
	}
}
