package flow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/UniversalShopper/ShopperChat/internal/models"
)

// Outcome describes the conversational reaction to a process stage
// transition: the assistant message to post, the input the user must now
// supply (if any), and whether polling stops.
type Outcome struct {
	Message     string
	Input       models.RequiredInput
	StopPolling bool
	// Terminal marks completed and failed stages; the conversation resets
	// to session selection after the message is posted.
	Terminal bool
}

// OutcomeForStage maps the stage of a freshly merged process snapshot to its
// conversational outcome. Unrecognized stages are intermediate: the server
// message (possibly empty) passes through and polling continues.
func OutcomeForStage(p *models.Process) Outcome {
	msg := p.Message

	switch p.Stage {
	case models.StageLoginRequired:
		if msg == "" {
			msg = "Please enter your phone number."
		}
		return Outcome{
			Message:     msg,
			Input:       models.RequiredInput{Kind: models.InputPhoneNumber},
			StopPolling: true,
		}

	case models.StageLoginOTPRequired, models.StageOTPRequested:
		if msg == "" {
			msg = "Please enter login OTP."
		}
		return Outcome{
			Message:     msg,
			Input:       models.RequiredInput{Kind: models.InputLoginOTP},
			StopPolling: true,
		}

	case models.StageSelectingAddress:
		if msg == "" {
			msg = "Please select delivery address:"
		}
		var candidates []models.AddressCandidate
		if p.Data != nil {
			candidates = p.Data.AvailableAddresses
		}
		return Outcome{
			Message:     addressPrompt(msg, candidates),
			Input:       models.RequiredInput{Kind: models.InputSelectAddress, Addresses: candidates},
			StopPolling: true,
		}

	case models.StagePaymentRequested:
		if msg == "" {
			msg = "Please provide payment details."
		}
		newFormat := false
		if p.Data != nil {
			if p.Data.TotalAmount != "" {
				msg = fmt.Sprintf("%s Total: %s", msg, p.Data.TotalAmount)
			}
			if p.Data.IsNewExpiryFormat != nil {
				newFormat = *p.Data.IsNewExpiryFormat
			}
		}
		return Outcome{
			Message:     msg,
			Input:       models.RequiredInput{Kind: models.InputPayment, NewExpiryFormat: newFormat},
			StopPolling: true,
		}

	case models.StageBankOTPRequested:
		if msg == "" {
			msg = "Enter bank OTP."
		}
		return Outcome{
			Message:     msg,
			Input:       models.RequiredInput{Kind: models.InputBankOTP},
			StopPolling: true,
		}

	case models.StageCompleted:
		if msg == "" {
			msg = "Order placed successfully!"
		}
		return Outcome{Message: msg, StopPolling: true, Terminal: true}

	case models.StageFailed:
		if msg == "" {
			msg = "Unknown error"
		}
		return Outcome{Message: "Process failed: " + msg, StopPolling: true, Terminal: true}
	}

	return Outcome{Message: msg}
}

// addressPrompt enumerates the address candidates under the server message,
// numbered from 1 in list order. Malformed candidates are skipped in the
// display but keep their slot in the selectable list.
func addressPrompt(msg string, candidates []models.AddressCandidate) string {
	if len(candidates) == 0 {
		return msg + "\n(No addresses found or invalid format)"
	}

	var b strings.Builder
	b.WriteString(msg)
	for _, addr := range candidates {
		if addr.Name == "" || addr.Text == "" {
			slog.Warn("Skipping malformed address candidate", "index", addr.Index)
			continue
		}
		fmt.Fprintf(&b, "\n%d. %s: %s", addr.Index+1, addr.Name, addr.Text)
	}
	b.WriteString("\nEnter number.")
	return b.String()
}
