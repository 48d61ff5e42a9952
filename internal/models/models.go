// Package models defines the core data structures for ShopperChat.
//
// It includes the checkout process types mirrored from the backend API, the
// conversation transcript types, and the session/input state shared across
// modules.
package models

import (
	"errors"
	"time"
)

// Stage tags reported by the backend automation engine. Matching is
// case-sensitive; unrecognized tags are treated as intermediate states.
const (
	StageLoginRequired    = "LOGIN_REQUIRED"
	StageLoginOTPRequired = "login_otp_required"
	StageOTPRequested     = "OTP_REQUESTED"
	StageSelectingAddress = "SELECTING_ADDRESS"
	StagePaymentRequested = "PAYMENT_REQUESTED"
	StageBankOTPRequested = "BANK_OTP_REQUESTED"
	StageCompleted        = "completed"
	StageFailed           = "failed"
)

// InputKind identifies the kind of user-supplied data the active process is
// currently blocked on.
type InputKind string

const (
	// InputNone indicates no input is required; polling may run.
	InputNone InputKind = ""
	// InputPhoneNumber requests the login phone number.
	InputPhoneNumber InputKind = "phone_number"
	// InputLoginOTP requests the login one-time password.
	InputLoginOTP InputKind = "login_otp"
	// InputSelectAddress requests a delivery address selection.
	InputSelectAddress InputKind = "select_address"
	// InputPayment requests card number, CVV and expiry.
	InputPayment InputKind = "payment"
	// InputBankOTP requests the bank transaction one-time password.
	InputBankOTP InputKind = "bank_otp"
	// InputSessionName requests a name for a new browser session.
	InputSessionName InputKind = "create_session_name"
)

// RequiredInput pairs an input kind with the auxiliary data needed to
// validate the next user reply.
type RequiredInput struct {
	Kind InputKind
	// Addresses holds the candidate list for InputSelectAddress.
	Addresses []AddressCandidate
	// NewExpiryFormat carries the backend's expiry-format flag for InputPayment.
	NewExpiryFormat bool
}

// IsNone reports whether no input is currently required.
func (r RequiredInput) IsNone() bool {
	return r.Kind == InputNone
}

// SessionPhase governs the pre-process interaction; it is dormant once a
// process is active.
type SessionPhase string

const (
	// PhaseSelecting means the user is selecting or creating a session.
	PhaseSelecting SessionPhase = "selecting"
	// PhaseURLRequired means a session is chosen and a product URL is awaited.
	PhaseURLRequired SessionPhase = "url_required"
)

// Session is a named checkout context (a saved browser profile) reused or
// created per process.
type Session struct {
	Name       string `json:"name"`
	IsExisting bool   `json:"is_existing"`
}

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in the conversation transcript.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// ProcessEvent records one observed poll result for the audit store.
type ProcessEvent struct {
	ProcessID     string    `json:"process_id"`
	Status        string    `json:"status"`
	Stage         string    `json:"stage"`
	Message       string    `json:"message,omitempty"`
	ScreenshotURL string    `json:"screenshot_url,omitempty"`
	Time          time.Time `json:"time"`
}

// Response represents an incoming chat message from the operator on any
// messaging channel.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// MessageStatus represents the delivery status of an outbound chat message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
)

// Receipt represents a delivery event for an outbound chat message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrEmptyBody      = errors.New("message body cannot be empty")
	ErrServiceStopped = errors.New("messaging service is stopped")
)
