// Package client wraps the Universal Shopper backend REST API.
//
// It provides a stateless request/response wrapper over the session and
// process endpoints. Every call returns a typed *APIError on non-2xx
// responses, carrying the server's message when one is present.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/UniversalShopper/ShopperChat/internal/models"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000"

// DefaultRequestTimeout bounds a single API round trip.
const DefaultRequestTimeout = 30 * time.Second

// APIError is returned for non-2xx responses and undecodable bodies.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (status %d)", e.StatusCode)
}

// IsNotFound reports whether err is a 404-class API error, which the polling
// engine treats as "process not found or expired".
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Opts holds configuration options for the API client.
type Opts struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Option defines a configuration option for the API client.
type Option func(*Opts)

// WithBaseURL sets the backend base URL.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithHTTPClient injects a custom *http.Client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = hc }
}

// Client is a stateless wrapper over the backend's session and process
// endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new API client, applying any provided options.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
		slog.Debug("Client using default base URL", "base_url", cfg.BaseURL)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	slog.Debug("Client created", "base_url", cfg.BaseURL)
	return &Client{baseURL: cfg.BaseURL, http: cfg.HTTPClient}
}

// envelope is the standard {status, message, data} response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// errorBody is the minimal shape of a non-2xx response body.
type errorBody struct {
	Message string `json:"message"`
}

// doJSON performs one API round trip. A nil reqBody sends no payload; a nil
// data skips response decoding beyond the error check.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, data interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			slog.Error("Client failed to marshal request body", "error", err, "path", path)
			return fmt.Errorf("failed to marshal request body for %s: %w", path, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		slog.Error("Client failed to build request", "error", err, "method", method, "path", path)
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("Client request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("Client request failed", "error", err, "method", method, "path", path)
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Client failed to read response body", "error", err, "path", path)
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		slog.Error("Client API error", "status", resp.StatusCode, "message", eb.Message, "path", path)
		return &APIError{StatusCode: resp.StatusCode, Message: eb.Message}
	}

	if data == nil {
		slog.Debug("Client request succeeded", "method", method, "path", path, "status", resp.StatusCode)
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Error("Client failed to decode response envelope", "error", err, "path", path)
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		slog.Error("Client failed to decode response data", "error", err, "path", path)
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response data: %v", err)}
	}

	slog.Debug("Client request succeeded", "method", method, "path", path, "status", resp.StatusCode)
	return nil
}

// ListSessions returns the ordered names of saved browser sessions.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	var data struct {
		Sessions []string `json:"sessions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/sessions", nil, &data); err != nil {
		return nil, err
	}
	slog.Debug("Client ListSessions succeeded", "count", len(data.Sessions))
	return data.Sessions, nil
}

// startProcessRequest is the payload for POST /process.
type startProcessRequest struct {
	ProductURL         string `json:"product_url"`
	SessionName        string `json:"session_name,omitempty"`
	UseExistingSession bool   `json:"use_existing_session"`
}

// StartProcess starts a new checkout process for the given product URL in
// the named session.
func (c *Client) StartProcess(ctx context.Context, productURL, sessionName string, useExisting bool) (*models.Process, error) {
	req := startProcessRequest{
		ProductURL:         productURL,
		SessionName:        sessionName,
		UseExistingSession: useExisting,
	}
	var proc models.Process
	if err := c.doJSON(ctx, http.MethodPost, "/process", req, &proc); err != nil {
		return nil, err
	}
	slog.Info("Client StartProcess succeeded", "process_id", proc.ProcessID, "session", sessionName)
	return &proc, nil
}

// GetProcess fetches the current state of a process by id.
func (c *Client) GetProcess(ctx context.Context, processID string) (*models.Process, error) {
	var proc models.Process
	if err := c.doJSON(ctx, http.MethodGet, "/process/"+processID, nil, &proc); err != nil {
		return nil, err
	}
	return &proc, nil
}

// ListProcesses returns all processes known to the backend.
func (c *Client) ListProcesses(ctx context.Context) ([]models.Process, error) {
	var data struct {
		Processes []models.Process `json:"processes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/processes", nil, &data); err != nil {
		return nil, err
	}
	slog.Debug("Client ListProcesses succeeded", "count", len(data.Processes))
	return data.Processes, nil
}

// SubmitLoginOTP submits the login one-time password for a process.
func (c *Client) SubmitLoginOTP(ctx context.Context, processID, otp string) error {
	req := struct {
		ProcessID string `json:"process_id"`
		OTP       string `json:"otp"`
	}{ProcessID: processID, OTP: otp}
	return c.doJSON(ctx, http.MethodPost, "/process/"+processID+"/login-otp", req, nil)
}

// SubmitBankOTP submits the bank transaction one-time password for a process.
func (c *Client) SubmitBankOTP(ctx context.Context, processID, otp string) error {
	req := struct {
		ProcessID string `json:"process_id"`
		OTP       string `json:"otp"`
	}{ProcessID: processID, OTP: otp}
	return c.doJSON(ctx, http.MethodPost, "/process/"+processID+"/bank-otp", req, nil)
}

// SubmitPhoneNumber submits the login phone number for a process.
func (c *Client) SubmitPhoneNumber(ctx context.Context, processID, phoneNumber string) error {
	req := struct {
		PhoneNumber string `json:"phone_number"`
	}{PhoneNumber: phoneNumber}
	return c.doJSON(ctx, http.MethodPost, "/process/"+processID+"/phone_number", req, nil)
}

// SelectAddress submits the 0-based index of the chosen delivery address.
func (c *Client) SelectAddress(ctx context.Context, processID string, addressIndex int) error {
	req := struct {
		ProcessID    string `json:"process_id"`
		AddressIndex int    `json:"address_index"`
	}{ProcessID: processID, AddressIndex: addressIndex}
	return c.doJSON(ctx, http.MethodPost, "/process/"+processID+"/select-address", req, nil)
}

// SubmitPayment submits card details for a process. Expiry is sent both
// split (month/year) and combined ("MM/YY") because backends differ on the
// accepted format.
func (c *Client) SubmitPayment(ctx context.Context, processID, cardNumber, cvv, expiryMonth, expiryYear, expiryCombined string) error {
	req := struct {
		ProcessID      string `json:"process_id"`
		CardNumber     string `json:"card_number"`
		CVV            string `json:"cvv"`
		ExpiryMonth    string `json:"expiry_month"`
		ExpiryYear     string `json:"expiry_year"`
		ExpiryCombined string `json:"expiry_combined"`
	}{
		ProcessID:      processID,
		CardNumber:     cardNumber,
		CVV:            cvv,
		ExpiryMonth:    expiryMonth,
		ExpiryYear:     expiryYear,
		ExpiryCombined: expiryCombined,
	}
	return c.doJSON(ctx, http.MethodPost, "/process/"+processID+"/payment", req, nil)
}
