// Package app assembles the ShopperChat modules and runs the chat loop.
//
// It wires the configured messaging channel, the audit store, the backend
// API client and the conversation controller together, then consumes inbound
// operator messages until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UniversalShopper/ShopperChat/internal/client"
	"github.com/UniversalShopper/ShopperChat/internal/flow"
	"github.com/UniversalShopper/ShopperChat/internal/lockfile"
	"github.com/UniversalShopper/ShopperChat/internal/messaging"
	"github.com/UniversalShopper/ShopperChat/internal/store"
	"github.com/UniversalShopper/ShopperChat/internal/transcript"
	"github.com/UniversalShopper/ShopperChat/internal/twiliosms"
	"github.com/UniversalShopper/ShopperChat/internal/whatsapp"
)

// Supported chat channel names.
const (
	ChannelConsole  = "console"
	ChannelWhatsApp = "whatsapp"
	ChannelTwilio   = "twilio"
)

// Default configuration values.
const (
	DefaultStateDir        = "/var/lib/shopperchat"
	DefaultWebhookAddr     = ":8080"
	DefaultShutdownTimeout = 5 * time.Second
)

// Opts holds application-level configuration.
type Opts struct {
	Channel     string
	Operator    string
	StateDir    string
	WebhookAddr string
	PollerOpts  []flow.PollerOption
	TwilioOpts  []twiliosms.Option
}

// Option defines an application configuration option.
type Option func(*Opts)

// WithChannel selects the chat channel: console, whatsapp or twilio.
func WithChannel(channel string) Option {
	return func(o *Opts) { o.Channel = channel }
}

// WithOperator sets the operator identity inbound messages are accepted
// from and replies are sent to. Required for whatsapp and twilio channels.
func WithOperator(operator string) Option {
	return func(o *Opts) { o.Operator = operator }
}

// WithStateDir sets the state directory used for locking.
func WithStateDir(dir string) Option {
	return func(o *Opts) { o.StateDir = dir }
}

// WithWebhookAddr sets the listen address for the Twilio inbound webhook.
func WithWebhookAddr(addr string) Option {
	return func(o *Opts) { o.WebhookAddr = addr }
}

// WithPollerOptions forwards options to the polling engine.
func WithPollerOptions(opts ...flow.PollerOption) Option {
	return func(o *Opts) { o.PollerOpts = append(o.PollerOpts, opts...) }
}

// WithTwilioOptions forwards options to the Twilio SMS client.
func WithTwilioOptions(opts ...twiliosms.Option) Option {
	return func(o *Opts) { o.TwilioOpts = append(o.TwilioOpts, opts...) }
}

// Run assembles the application and blocks until SIGINT/SIGTERM or channel
// shutdown.
func Run(waOpts []whatsapp.Option, storeOpts []store.Option, clientOpts []client.Option, appOpts []Option) error {
	cfg := Opts{
		Channel:     ChannelConsole,
		StateDir:    DefaultStateDir,
		WebhookAddr: DefaultWebhookAddr,
	}
	for _, opt := range appOpts {
		opt(&cfg)
	}

	// One instance per state directory
	lock, err := lockfile.AcquireLock(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("failed to acquire state directory lock: %w", err)
	}
	defer lock.Release()

	st, err := store.NewStore(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	log := transcript.NewLog(st)
	apiClient := client.NewClient(clientOpts...)

	svc, webhookSrv, err := buildMessagingService(cfg, waOpts)
	if err != nil {
		return err
	}

	operator := cfg.Operator
	if cfg.Channel == ChannelConsole && operator == "" {
		operator = messaging.ConsoleRecipient
	}
	if operator == "" {
		return fmt.Errorf("operator must be configured for channel %s", cfg.Channel)
	}
	canonicalOperator, err := svc.ValidateAndCanonicalizeRecipient(operator)
	if err != nil {
		return fmt.Errorf("invalid operator %q: %w", operator, err)
	}

	controller := flow.NewController(apiClient, svc, log,
		flow.WithRecipient(canonicalOperator),
		flow.WithAuditStore(st),
		flow.WithPollerOptions(cfg.PollerOpts...),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	if webhookSrv != nil {
		go func() {
			slog.Info("Twilio webhook server listening", "addr", webhookSrv.Addr)
			if err := webhookSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Webhook server failed", "error", err)
			}
		}()
	}

	// Drain receipts so senders never block on the receipt channel.
	go drainReceipts(svc)

	slog.Info("ShopperChat running", "channel", cfg.Channel, "operator", canonicalOperator)
	controller.Start(ctx)

	runLoop(ctx, controller, svc, canonicalOperator)

	slog.Info("ShopperChat shutting down")
	controller.Shutdown()
	if webhookSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := webhookSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Webhook server shutdown failed", "error", err)
		}
	}
	if err := svc.Stop(); err != nil {
		slog.Error("Messaging service stop failed", "error", err)
	}
	return nil
}

// buildMessagingService constructs the configured chat channel. The returned
// server is non-nil only for the twilio channel.
func buildMessagingService(cfg Opts, waOpts []whatsapp.Option) (messaging.Service, *http.Server, error) {
	switch cfg.Channel {
	case ChannelConsole:
		return messaging.NewConsoleService(), nil, nil

	case ChannelWhatsApp:
		waClient, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(waClient), nil, nil

	case ChannelTwilio:
		smsClient, err := twiliosms.NewClient(cfg.TwilioOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		svc := messaging.NewTwilioService(smsClient)
		mux := http.NewServeMux()
		mux.HandleFunc("/twilio/webhook", svc.WebhookHandler)
		srv := &http.Server{Addr: cfg.WebhookAddr, Handler: mux}
		return svc, srv, nil

	default:
		return nil, nil, fmt.Errorf("unknown channel %q", cfg.Channel)
	}
}

// runLoop feeds inbound operator messages to the controller until the
// context is cancelled or the channel closes.
func runLoop(ctx context.Context, controller *flow.Controller, svc messaging.Service, operator string) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-svc.Responses():
			if !ok {
				slog.Info("Responses channel closed, stopping run loop")
				return
			}
			from, err := svc.ValidateAndCanonicalizeRecipient(resp.From)
			if err != nil || from != operator {
				slog.Warn("Ignoring message from unknown sender", "from", resp.From)
				continue
			}
			controller.HandleUserMessage(ctx, resp.Body)
		}
	}
}

// drainReceipts logs delivery receipts until the channel closes.
func drainReceipts(svc messaging.Service) {
	for receipt := range svc.Receipts() {
		slog.Debug("Delivery receipt", "to", receipt.To, "status", receipt.Status)
	}
}
