package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/UniversalShopper/ShopperChat/internal/app"
	"github.com/UniversalShopper/ShopperChat/internal/client"
	"github.com/UniversalShopper/ShopperChat/internal/flow"
	"github.com/UniversalShopper/ShopperChat/internal/store"
	"github.com/UniversalShopper/ShopperChat/internal/util"
	"github.com/UniversalShopper/ShopperChat/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ShopperChat state data
	DefaultStateDir = "/var/lib/shopperchat"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "shopperchat.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Build module options
	waOpts := buildWhatsAppOptions(flags)
	storeOpts := buildStoreOptions(flags)
	clientOpts := buildClientOptions(flags)
	appOpts := buildAppOptions(flags)

	slog.Info("Bootstrapping ShopperChat with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "channel", *flags.channel, "api_base_url", *flags.apiBaseURL)
	if err := app.Run(waOpts, storeOpts, clientOpts, appOpts); err != nil {
		slog.Error("ShopperChat failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ShopperChat exited successfully")
}

// Config holds environment configuration
type Config struct {
	WhatsAppDSN  string
	DatabaseURL  string
	StateDir     string
	APIBaseURL   string
	Channel      string
	Operator     string
	WebhookAddr  string
	PollInterval time.Duration
	PollAttempts int
}

// Flags holds command line flag values
type Flags struct {
	qrOutput     *string
	numeric      *bool
	stateDir     *string
	dbDSN        *string
	apiBaseURL   *string
	channel      *string
	operator     *string
	webhookAddr  *string
	pollInterval *time.Duration
	pollAttempts *int
}

// initializeLogger sets up structured logging; SHOPPERCHAT_DEBUG=true
// switches the level to debug
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("SHOPPERCHAT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		WhatsAppDSN:  os.Getenv("WHATSAPP_DB_DSN"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("SHOPPERCHAT_STATE_DIR"),
		APIBaseURL:   os.Getenv("SHOPPER_API_URL"),
		Channel:      os.Getenv("CHAT_CHANNEL"),
		Operator:     os.Getenv("OPERATOR_NUMBER"),
		WebhookAddr:  os.Getenv("WEBHOOK_ADDR"),
		PollInterval: util.ParseDurationEnv("POLL_INTERVAL", flow.DefaultPollInterval),
		PollAttempts: util.ParseIntEnv("POLL_MAX_ATTEMPTS", flow.DefaultMaxAttempts),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SHOPPERCHAT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Default to the shared database URL if no WhatsApp-specific DSN is set
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = config.DatabaseURL
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.WhatsAppDSN)
	}

	slog.Debug("environment variables loaded",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"SHOPPERCHAT_STATE_DIR", config.StateDir,
		"SHOPPER_API_URL", config.APIBaseURL,
		"CHAT_CHANNEL", config.Channel,
		"OPERATOR_NUMBER_SET", config.Operator != "",
		"WEBHOOK_ADDR", config.WebhookAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:     flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:      flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for ShopperChat data (overrides $SHOPPERCHAT_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.WhatsAppDSN, "database DSN for the audit store and WhatsApp session (overrides $WHATSAPP_DB_DSN or $DATABASE_URL)"),
		apiBaseURL:   flag.String("api-base-url", config.APIBaseURL, "Universal Shopper backend base URL (overrides $SHOPPER_API_URL)"),
		channel:      flag.String("channel", config.Channel, "chat channel: console, whatsapp or twilio (overrides $CHAT_CHANNEL)"),
		operator:     flag.String("operator", config.Operator, "operator phone number for whatsapp/twilio channels (overrides $OPERATOR_NUMBER)"),
		webhookAddr:  flag.String("webhook-addr", config.WebhookAddr, "listen address for the Twilio inbound webhook (overrides $WEBHOOK_ADDR)"),
		pollInterval: flag.Duration("poll-interval", config.PollInterval, "delay between process status polls (overrides $POLL_INTERVAL)"),
		pollAttempts: flag.Int("poll-max-attempts", config.PollAttempts, "poll attempt ceiling before timeout (overrides $POLL_MAX_ATTEMPTS)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiBaseURL", *flags.apiBaseURL,
		"channel", *flags.channel,
		"operator_set", *flags.operator != "",
		"webhookAddr", *flags.webhookAddr,
		"pollInterval", *flags.pollInterval,
		"pollAttempts", *flags.pollAttempts)

	// Follow a changed state directory when the DSN still points at the default
	if *flags.dbDSN == config.WhatsAppDSN && config.WhatsAppDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.dbDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.dbDSN))
	}
	return waOpts
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildClientOptions constructs backend API client options
func buildClientOptions(flags Flags) []client.Option {
	var clientOpts []client.Option
	if *flags.apiBaseURL != "" {
		clientOpts = append(clientOpts, client.WithBaseURL(*flags.apiBaseURL))
	}
	return clientOpts
}

// buildAppOptions constructs application-level options
func buildAppOptions(flags Flags) []app.Option {
	var appOpts []app.Option
	if *flags.channel != "" {
		appOpts = append(appOpts, app.WithChannel(*flags.channel))
	}
	if *flags.operator != "" {
		appOpts = append(appOpts, app.WithOperator(*flags.operator))
	}
	if *flags.stateDir != "" {
		appOpts = append(appOpts, app.WithStateDir(*flags.stateDir))
	}
	if *flags.webhookAddr != "" {
		appOpts = append(appOpts, app.WithWebhookAddr(*flags.webhookAddr))
	}

	var pollerOpts []flow.PollerOption
	if *flags.pollInterval > 0 && *flags.pollInterval != flow.DefaultPollInterval {
		pollerOpts = append(pollerOpts, flow.WithPollInterval(*flags.pollInterval))
	}
	if *flags.pollAttempts > 0 && *flags.pollAttempts != flow.DefaultMaxAttempts {
		pollerOpts = append(pollerOpts, flow.WithMaxAttempts(*flags.pollAttempts))
	}
	if len(pollerOpts) > 0 {
		appOpts = append(appOpts, app.WithPollerOptions(pollerOpts...))
	}
	return appOpts
}
