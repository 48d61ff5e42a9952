package messaging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/UniversalShopper/ShopperChat/internal/models"
)

// ConsoleRecipient is the canonical recipient identifier for the console
// channel; every operator on this channel shares it.
const ConsoleRecipient = "console"

// ConsoleService implements Service over stdin/stdout for local use. Each
// line read becomes one inbound response; outbound messages are printed.
type ConsoleService struct {
	in        io.Reader
	out       io.Writer
	receipts  chan models.Receipt
	responses chan models.Response
	done      chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

// NewConsoleService creates a console channel over os.Stdin and os.Stdout.
func NewConsoleService() *ConsoleService {
	return NewConsoleServiceWithIO(os.Stdin, os.Stdout)
}

// NewConsoleServiceWithIO creates a console channel over the given reader
// and writer (used by tests).
func NewConsoleServiceWithIO(in io.Reader, out io.Writer) *ConsoleService {
	return &ConsoleService{
		in:        in,
		out:       out,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient maps any non-empty recipient to the
// shared console identity.
func (s *ConsoleService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	return ConsoleRecipient, nil
}

// Start begins reading lines from the input stream.
func (s *ConsoleService) Start(ctx context.Context) error {
	slog.Debug("ConsoleService Start invoked")
	go s.readLoop(ctx)
	return nil
}

// Stop closes channels and stops the service. Safe to call multiple times.
func (s *ConsoleService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.receipts)
		close(s.responses)
	}()

	slog.Info("ConsoleService stopped")
	return nil
}

// SendMessage prints a message to the output stream and emits a sent receipt.
func (s *ConsoleService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return models.ErrServiceStopped
	}
	s.mu.RUnlock()

	if body == "" {
		return models.ErrEmptyBody
	}
	if _, err := fmt.Fprintf(s.out, "%s\n", body); err != nil {
		slog.Error("ConsoleService SendMessage write failed", "error", err)
		return fmt.Errorf("failed to write console message: %w", err)
	}
	s.safeEmitReceipt(models.Receipt{To: ConsoleRecipient, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// Receipts returns a channel of receipt events.
func (s *ConsoleService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns a channel of incoming operator lines.
func (s *ConsoleService) Responses() <-chan models.Response {
	return s.responses
}

// readLoop scans input lines and forwards each as a response until the
// stream ends or the service stops.
func (s *ConsoleService) readLoop(ctx context.Context) {
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			slog.Debug("ConsoleService readLoop stopping, context cancelled")
			return
		case <-s.done:
			slog.Debug("ConsoleService readLoop stopping, service stopped")
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}
		s.safeEmitResponse(models.Response{From: ConsoleRecipient, Body: line, Time: time.Now().Unix()})
	}
	if err := scanner.Err(); err != nil {
		slog.Error("ConsoleService readLoop scanner error", "error", err)
	}
	slog.Debug("ConsoleService readLoop finished")
}

func (s *ConsoleService) safeEmitReceipt(receipt models.Receipt) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("ConsoleService receipts channel blocked, dropping receipt", "to", receipt.To)
	}
}

func (s *ConsoleService) safeEmitResponse(response models.Response) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("ConsoleService dropping inbound line (service stopped)")
		return
	}

	select {
	case s.responses <- response:
		slog.Debug("ConsoleService emitted inbound line", "body_length", len(response.Body))
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("ConsoleService responses channel blocked, dropping line")
	}
}
