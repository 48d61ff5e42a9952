package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/UniversalShopper/ShopperChat/internal/client"
	"github.com/UniversalShopper/ShopperChat/internal/models"
	"github.com/UniversalShopper/ShopperChat/internal/store"
	"github.com/UniversalShopper/ShopperChat/internal/transcript"
)

// ProcessAPI is the backend surface the controller drives.
type ProcessAPI interface {
	ProcessFetcher
	ListSessions(ctx context.Context) ([]string, error)
	StartProcess(ctx context.Context, productURL, sessionName string, useExisting bool) (*models.Process, error)
	ListProcesses(ctx context.Context) ([]models.Process, error)
	SubmitLoginOTP(ctx context.Context, processID, otp string) error
	SubmitBankOTP(ctx context.Context, processID, otp string) error
	SubmitPhoneNumber(ctx context.Context, processID, phoneNumber string) error
	SelectAddress(ctx context.Context, processID string, addressIndex int) error
	SubmitPayment(ctx context.Context, processID, cardNumber, cvv, expiryMonth, expiryYear, expiryCombined string) error
}

// Sender delivers assistant and system replies to the operator's messaging
// channel.
type Sender interface {
	SendMessage(ctx context.Context, to, body string) error
}

var (
	urlRegex      = regexp.MustCompile(`https?://[^\s]+`)
	phoneRegex    = regexp.MustCompile(`^\d{10}$`)
	twoDigitRegex = regexp.MustCompile(`^\d{2}$`)
)

// ControllerOpts holds configurable controller fields.
type ControllerOpts struct {
	Recipient  string
	AuditStore store.Store
	PollerOpts []PollerOption
}

// ControllerOption configures a Controller.
type ControllerOption func(*ControllerOpts)

// WithRecipient sets the canonical operator recipient replies are sent to.
func WithRecipient(to string) ControllerOption {
	return func(o *ControllerOpts) { o.Recipient = to }
}

// WithAuditStore enables process event recording.
func WithAuditStore(st store.Store) ControllerOption {
	return func(o *ControllerOpts) { o.AuditStore = st }
}

// WithPollerOptions forwards options to the embedded poller.
func WithPollerOptions(opts ...PollerOption) ControllerOption {
	return func(o *ControllerOpts) { o.PollerOpts = append(o.PollerOpts, opts...) }
}

// Controller is the conversational state machine driving one checkout
// conversation. A single mutex serializes user input and poll results, so
// every transcript append and state transition happens in a consistent order.
type Controller struct {
	api       ProcessAPI
	sender    Sender
	log       *transcript.Log
	audit     store.Store
	poller    *Poller
	recipient string

	mu                sync.Mutex
	phase             models.SessionPhase
	session           *models.Session
	availableSessions []string
	process           *models.Process
	required          models.RequiredInput
	loading           bool
}

// NewController creates a controller over the given backend API, outbound
// sender and transcript log. sender may be nil when the transcript alone is
// the conversation surface.
func NewController(api ProcessAPI, sender Sender, log *transcript.Log, opts ...ControllerOption) *Controller {
	var cfg ControllerOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Controller{
		api:       api,
		sender:    sender,
		log:       log,
		audit:     cfg.AuditStore,
		recipient: cfg.Recipient,
		phase:     models.PhaseSelecting,
	}
	c.poller = NewPoller(api, c, cfg.PollerOpts...)
	slog.Debug("Controller created", "recipient", cfg.Recipient)
	return c
}

// Start fetches the saved sessions and posts the welcome message.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.phase = models.PhaseSelecting
	c.loading = true
	sessions, err := c.api.ListSessions(ctx)
	c.loading = false
	if err != nil {
		slog.Error("Controller initial session fetch failed", "error", err)
		c.say(ctx, models.RoleSystem, "Welcome! Error fetching sessions. Try 'create <name>'.")
		return
	}
	c.availableSessions = sessions
	slog.Info("Controller started", "sessions", len(sessions))
	c.say(ctx, models.RoleSystem, welcomeMessage(sessions))
}

// Shutdown stops polling without posting a reset message.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.poller.Stop()
	slog.Info("Controller shut down")
}

// HandleUserMessage routes one user utterance through the state machine.
// Priority order: required-input submission, then session setup, then
// free-text process commands, then the unreachable-state fallback.
func (c *Controller) HandleUserMessage(ctx context.Context, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Append(models.RoleUser, input)
	slog.Debug("Controller handling user message", "phase", c.phase, "required", c.required.Kind, "active", c.process != nil)

	switch {
	case c.process != nil && !c.required.IsNone():
		c.handleRequiredInput(ctx, input)
	case c.process == nil:
		if c.required.Kind == models.InputSessionName {
			c.required = models.RequiredInput{}
			c.useSession(ctx, input, true)
		} else if c.phase == models.PhaseURLRequired {
			c.handleProductURL(ctx, input)
		} else {
			c.handleSessionCommand(ctx, input)
		}
	case c.process != nil:
		c.handleProcessCommand(ctx, input)
	default:
		slog.Warn("Controller reached unexpected state", "phase", c.phase, "required", c.required.Kind)
		c.say(ctx, models.RoleAssistant, "I seem to be in an unexpected state. Please try refreshing or starting a new session.")
		c.resetToSessionSelection(ctx)
	}
}

// handleRequiredInput validates and submits the blocked input. Validation
// failures re-prompt without touching the network; network failures re-prompt
// with the server's message; success clears the requirement and resumes
// polling.
func (c *Controller) handleRequiredInput(ctx context.Context, input string) {
	processID := c.process.ProcessID
	var submitted string
	var err error

	switch c.required.Kind {
	case models.InputPhoneNumber:
		if !phoneRegex.MatchString(input) {
			c.say(ctx, models.RoleAssistant, "Please enter a valid 10-digit phone number.")
			return
		}
		err = c.api.SubmitPhoneNumber(ctx, processID, input)
		submitted = "Phone number submitted. Checking status..."

	case models.InputLoginOTP:
		err = c.api.SubmitLoginOTP(ctx, processID, input)
		submitted = "Login OTP submitted. Checking status..."

	case models.InputBankOTP:
		err = c.api.SubmitBankOTP(ctx, processID, input)
		submitted = "Bank OTP submitted. Checking status..."

	case models.InputSelectAddress:
		n, convErr := strconv.Atoi(input)
		idx := n - 1
		if convErr != nil || idx < 0 || idx >= len(c.required.Addresses) {
			c.say(ctx, models.RoleAssistant, "Invalid selection. Please enter a valid number from the list.")
			return
		}
		err = c.api.SelectAddress(ctx, processID, idx)
		submitted = fmt.Sprintf("Selected address: %s. Checking status...", c.required.Addresses[idx].Name)

	case models.InputPayment:
		details := strings.Split(input, ",")
		if len(details) != 3 {
			c.say(ctx, models.RoleAssistant, "Invalid format. Please enter Number, CVV, MM/YY separated by commas.")
			return
		}
		num := strings.TrimSpace(details[0])
		cvv := strings.TrimSpace(details[1])
		exp := strings.TrimSpace(details[2])
		expParts := strings.Split(exp, "/")
		if len(expParts) != 2 || !twoDigitRegex.MatchString(expParts[0]) || !twoDigitRegex.MatchString(expParts[1]) {
			c.say(ctx, models.RoleAssistant, "Invalid expiry format. Please use MM/YY (e.g., 05/28).")
			return
		}
		err = c.api.SubmitPayment(ctx, processID, num, cvv, expParts[0], expParts[1], exp)
		submitted = "Payment details submitted. Checking status..."

	default:
		slog.Warn("Controller has unknown required input kind", "kind", c.required.Kind)
		c.say(ctx, models.RoleAssistant, "I seem to be in an unexpected state. Please try refreshing or starting a new session.")
		c.resetToSessionSelection(ctx)
		return
	}

	if err != nil {
		slog.Error("Controller input submission failed", "error", err, "kind", c.required.Kind, "processID", processID)
		c.say(ctx, models.RoleAssistant, fmt.Sprintf("Error submitting %s. %s Please try again.", c.required.Kind, submitErrMessage(err)))
		return
	}

	c.say(ctx, models.RoleAssistant, submitted)
	c.required = models.RequiredInput{}
	c.loading = true
	c.poller.Start(ctx, processID)
}

// handleSessionCommand parses 'select <n|name>' and 'create <name>' while in
// the selecting phase.
func (c *Controller) handleSessionCommand(ctx context.Context, input string) {
	fields := strings.SplitN(input, " ", 2)
	command := strings.ToLower(fields[0])
	value := ""
	if len(fields) > 1 {
		value = strings.TrimSpace(fields[1])
	}

	switch {
	case command == "select" && value != "":
		if n, err := strconv.Atoi(value); err == nil && n >= 1 && n <= len(c.availableSessions) {
			c.useSession(ctx, c.availableSessions[n-1], false)
			return
		}
		for _, name := range c.availableSessions {
			if name == value {
				c.useSession(ctx, name, false)
				return
			}
		}
		c.say(ctx, models.RoleAssistant, "Invalid command. Use 'select <number or name>' or 'create <name>'.")

	case command == "create" && value != "":
		c.useSession(ctx, value, true)

	case command == "create":
		c.required = models.RequiredInput{Kind: models.InputSessionName}
		c.say(ctx, models.RoleAssistant, "Please enter a name for the new session.")

	default:
		c.say(ctx, models.RoleAssistant, "Invalid command. Use 'select <number or name>' or 'create <name>'.")
	}
}

// useSession records the chosen session and advances to the URL prompt.
func (c *Controller) useSession(ctx context.Context, name string, createNew bool) {
	c.session = &models.Session{Name: name, IsExisting: !createNew}
	c.phase = models.PhaseURLRequired
	slog.Info("Controller session chosen", "session", name, "create_new", createNew)

	if createNew {
		c.say(ctx, models.RoleAssistant, fmt.Sprintf("Creating new session '%s'. Please paste the product URL.", name))
	} else {
		c.say(ctx, models.RoleAssistant, fmt.Sprintf("Using session '%s'. Please paste the product URL.", name))
	}
}

// handleProductURL extracts the first URL from the input and starts the
// checkout process.
func (c *Controller) handleProductURL(ctx context.Context, input string) {
	url := urlRegex.FindString(input)
	if url == "" {
		c.say(ctx, models.RoleAssistant, "Please paste a valid product URL.")
		return
	}

	c.say(ctx, models.RoleAssistant, fmt.Sprintf("Got it! Starting checkout for %s in session '%s'.", url, c.session.Name))

	c.loading = true
	proc, err := c.api.StartProcess(ctx, url, c.session.Name, c.session.IsExisting)
	if err != nil {
		c.loading = false
		slog.Error("Controller failed to start process", "error", err, "url", url, "session", c.session.Name)
		c.say(ctx, models.RoleAssistant, fmt.Sprintf("An unexpected error occurred. %s Please try again or refresh.", submitErrMessage(err)))
		return
	}

	slog.Info("Controller process started", "processID", proc.ProcessID, "session", c.session.Name)
	c.say(ctx, models.RoleAssistant, fmt.Sprintf("Process %s initiated. I'll keep you updated.", proc.ProcessID))
	c.process = proc
	c.required = models.RequiredInput{}
	// The phase is dormant while the process runs.
	c.phase = models.PhaseSelecting
	c.recordProcessEvent()
	c.poller.Start(ctx, proc.ProcessID)
}

// handleProcessCommand recognizes free-text commands while a process runs
// and no input is required. Unrecognized text gets no reply.
func (c *Controller) handleProcessCommand(ctx context.Context, input string) {
	command := strings.ToLower(input)
	switch {
	case strings.Contains(command, "cancel"):
		c.say(ctx, models.RoleAssistant, "Okay, stopping the current process.")
		c.resetToSessionSelection(ctx)

	case strings.Contains(command, "status"):
		reply := fmt.Sprintf("Current status: %s (%s). %s", c.process.Status, c.process.Stage, c.process.Message)
		if c.process.ScreenshotURL != "" {
			reply += "\nLast screenshot: " + c.process.ScreenshotURL
		}
		c.say(ctx, models.RoleAssistant, reply)

	case strings.Contains(command, "help"):
		c.say(ctx, models.RoleAssistant, "While processing, you can ask for 'status' or tell me to 'cancel'.")

	case strings.Contains(command, "processes"):
		c.listProcesses(ctx)
	}
}

// listProcesses reports every process known to the backend.
func (c *Controller) listProcesses(ctx context.Context) {
	procs, err := c.api.ListProcesses(ctx)
	if err != nil {
		slog.Error("Controller failed to list processes", "error", err)
		c.say(ctx, models.RoleAssistant, "Error fetching processes.")
		return
	}
	if len(procs) == 0 {
		c.say(ctx, models.RoleAssistant, "No processes found.")
		return
	}
	var b strings.Builder
	b.WriteString("Known processes:")
	for i, p := range procs {
		fmt.Fprintf(&b, "\n%d. %s: %s (%s)", i+1, p.ProcessID, p.Status, p.Stage)
	}
	c.say(ctx, models.RoleAssistant, b.String())
}

// PollResult folds one poll outcome into the conversation. Runs on the timer
// goroutine; the generation check under the controller lock guarantees that
// results from fetches in flight when polling stopped never reach the
// transcript.
func (c *Controller) PollResult(ctx context.Context, gen uint64, processID string, fetched *models.Process, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.poller.Live(gen) {
		slog.Debug("Controller discarding stale poll result", "processID", processID, "generation", gen)
		return
	}
	if c.process == nil || c.process.ProcessID != processID {
		slog.Debug("Controller discarding poll result for inactive process", "processID", processID)
		return
	}

	if err != nil {
		msg := "Error checking status."
		if client.IsNotFound(err) {
			msg = "Process not found or may have expired."
		}
		slog.Error("Controller poll fetch failed", "error", err, "processID", processID)
		c.say(ctx, models.RoleAssistant, msg+" Resetting.")
		c.resetToSessionSelection(ctx)
		return
	}

	prevStage := c.process.Stage
	prevScreenshot := c.process.ScreenshotURL
	c.process.Merge(fetched)
	c.recordProcessEvent()

	if c.process.Stage == prevStage {
		c.loading = true
		if c.process.ScreenshotURL != "" && c.process.ScreenshotURL != prevScreenshot {
			c.say(ctx, models.RoleAssistant, "Status update: "+c.process.ScreenshotURL)
		}
		return
	}

	slog.Info("Controller observed stage transition", "processID", processID, "from", prevStage, "to", c.process.Stage)
	out := OutcomeForStage(c.process)
	if out.Message != "" {
		c.say(ctx, models.RoleAssistant, out.Message)
	}
	if !out.StopPolling {
		c.loading = true
		return
	}

	c.poller.Stop()
	c.loading = false
	c.required = out.Input
	if out.Terminal {
		c.resetToSessionSelection(ctx)
	}
}

// PollTimeout fires when the poll attempt ceiling is exceeded: post the
// timeout message once and reset.
func (c *Controller) PollTimeout(ctx context.Context, gen uint64, processID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.poller.Live(gen) {
		slog.Debug("Controller discarding stale poll timeout", "processID", processID, "generation", gen)
		return
	}
	slog.Warn("Controller poll timeout", "processID", processID)
	c.say(ctx, models.RoleAssistant, "Process timed out. Resetting.")
	c.resetToSessionSelection(ctx)
}

// resetToSessionSelection performs the full reset: stop polling, clear the
// process, required input and session, refetch the session list and post the
// transition message. Safe to call from any path; callers hold c.mu.
func (c *Controller) resetToSessionSelection(ctx context.Context) {
	slog.Info("Controller resetting to session selection")
	c.poller.Stop()
	c.process = nil
	c.required = models.RequiredInput{}
	c.session = nil
	c.phase = models.PhaseSelecting

	c.loading = true
	sessions, err := c.api.ListSessions(ctx)
	c.loading = false
	if err != nil {
		slog.Error("Controller session refetch failed after reset", "error", err)
		c.say(ctx, models.RoleSystem, "Process finished. Error fetching sessions. Try 'create <name>'.")
		return
	}
	c.availableSessions = sessions
	c.say(ctx, models.RoleSystem, resetMessage(sessions))
}

// recordProcessEvent mirrors the current process snapshot to the audit store.
func (c *Controller) recordProcessEvent() {
	if c.audit == nil || c.process == nil {
		return
	}
	event := models.ProcessEvent{
		ProcessID:     c.process.ProcessID,
		Status:        c.process.Status,
		Stage:         c.process.Stage,
		Message:       c.process.Message,
		ScreenshotURL: c.process.ScreenshotURL,
		Time:          time.Now(),
	}
	if err := c.audit.AddProcessEvent(event); err != nil {
		slog.Warn("Controller failed to record process event", "error", err, "processID", c.process.ProcessID)
	}
}

// say appends a transcript entry and, for assistant and system roles,
// forwards it to the operator's channel.
func (c *Controller) say(ctx context.Context, role models.Role, content string) {
	c.log.Append(role, content)
	if role == models.RoleUser || c.sender == nil || c.recipient == "" {
		return
	}
	if err := c.sender.SendMessage(ctx, c.recipient, content); err != nil {
		slog.Error("Controller failed to send reply", "error", err, "to", c.recipient)
	}
}

// Phase returns the current session phase.
func (c *Controller) Phase() models.SessionPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Required returns the currently required input.
func (c *Controller) Required() models.RequiredInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.required
}

// ActiveProcess returns a copy of the active process, or nil.
func (c *Controller) ActiveProcess() *models.Process {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.process == nil {
		return nil
	}
	cp := *c.process
	return &cp
}

// Sessions returns the last fetched session list.
func (c *Controller) Sessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.availableSessions))
	copy(out, c.availableSessions)
	return out
}

// Loading reports whether a backend call or poll cycle is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// InputHint returns a short placeholder describing what the conversation
// currently expects, for channels that can display one.
func (c *Controller) InputHint() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.required.Kind {
	case models.InputPhoneNumber:
		return "Enter 10-digit phone number..."
	case models.InputLoginOTP:
		return "Enter login OTP..."
	case models.InputSelectAddress:
		return "Enter address number..."
	case models.InputPayment:
		return "Enter Card No, CVV, MM/YY..."
	case models.InputBankOTP:
		return "Enter bank OTP..."
	case models.InputSessionName:
		return "Enter new session name..."
	}
	if c.process != nil {
		return "Ask 'status' or say 'cancel'..."
	}
	if c.phase == models.PhaseURLRequired {
		return "Paste product URL..."
	}
	return "Enter 'select <n|name>' or 'create <name>'..."
}

// welcomeMessage builds the initial system prompt enumerating saved sessions.
func welcomeMessage(sessions []string) string {
	var b strings.Builder
	b.WriteString("Welcome to Universal Shopper! Please choose an option:\n")
	if len(sessions) > 0 {
		b.WriteString("Available sessions:\n")
		for i, name := range sessions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		}
		b.WriteString("\nEnter 'select <number or name>' to use an existing session.\n")
	}
	b.WriteString("Enter 'create <new_session_name>' to create a new session.")
	return b.String()
}

// resetMessage builds the post-reset system prompt.
func resetMessage(sessions []string) string {
	var b strings.Builder
	b.WriteString("Process finished or stopped.\n\nSelect/create session.")
	if len(sessions) > 0 {
		b.WriteString("\nAvailable sessions:\n")
		for i, name := range sessions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		}
		b.WriteString("Enter 'select <number or name>' or 'create <new_session_name>'.")
	} else {
		b.WriteString("\nEnter 'create <new_session_name>'.")
	}
	return b.String()
}

// submitErrMessage extracts the server-facing message from an API error for
// inclusion in a chat reply.
func submitErrMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
