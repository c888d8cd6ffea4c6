package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"mailboxaudit/internal/common/validation"
	"mailboxaudit/internal/common/version"
)

// Mail backend selectors for the -mail-backend flag.
const (
	BackendGraph = "graph"
	BackendIMAP  = "imap"
)

// Config holds all application configuration merged from command-line
// flags and environment variables.
type Config struct {
	// Core configuration
	ShowVersion bool   // Display version information and exit
	InputPath   string // Path to the delimited account list file
	TenantID    string // Azure AD Tenant ID (GUID format)
	ClientID    string // Application (Client) ID (GUID format)

	// Authentication configuration (mutually exclusive)
	ClientSecret string // Client Secret for authentication
	CertPath     string // Path to .pfx certificate file
	CertPassword string // Password for the .pfx certificate file

	// Exchange admin endpoint
	ExchangeURL  string // Exchange admin REST base URL (default: Exchange Online)
	Organization string // Tenant organization, e.g. contoso.onmicrosoft.com

	// Mailbox statistics backend
	MailBackend  string // graph or imap
	IMAPServer   string // IMAP server host:port (imap backend only)
	IMAPUser     string // Service account with impersonation rights (imap backend only)
	IMAPPassword string // Service account password (imap backend only)

	// Runtime configuration
	VerboseMode bool   // Enable verbose diagnostic output (maps to DEBUG log level)
	LogLevel    string // Logging level: DEBUG, INFO, WARN, ERROR (default: INFO)
}

// NewConfig creates a new Config with sensible default values.
// Command-line flags and environment variables will override these defaults.
func NewConfig() *Config {
	return &Config{
		MailBackend: BackendGraph,
		LogLevel:    "INFO",
	}
}

// parseAndConfigureFlags defines all command-line flags, parses them,
// applies environment variables, and returns a populated Config struct with
// all configuration values merged from defaults, environment variables, and
// command-line arguments (in that order of precedence).
func parseAndConfigureFlags() *Config {
	config := NewConfig()

	// Optional .env overlay for local runs; a missing file is fine.
	_ = godotenv.Load()

	// Customize help output
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Mailbox Audit Tool - Version %s\n\n", version.Get())
		fmt.Fprintf(flag.CommandLine.Output(), "Collects activity statistics and delegated permissions for a list of\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Exchange Online mailboxes and writes HTML and CSV reports.\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\nEnvironment Variables:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  Credentials use the standard Azure names: AZURE_TENANT_ID, AZURE_CLIENT_ID, AZURE_CLIENT_SECRET\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  Everything else uses an AUDIT prefix, e.g. AUDIT_INPUT_FILE, AUDIT_ORGANIZATION\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  Command-line flags take precedence over environment variables\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  A .env file in the working directory is loaded if present\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Examples:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  %s -input mailboxes.csv -tenant-id \"...\" -client-id \"...\" -client-secret \"...\" -organization contoso.onmicrosoft.com\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "  %s -input mailboxes.csv -tenant-id \"...\" -client-id \"...\" -cert-path app.pfx -cert-password \"...\" -organization contoso.onmicrosoft.com\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "  %s -input mailboxes.csv -mail-backend imap -imap-server mail.example.com:993 -imap-user auditor -imap-password \"...\" -tenant-id \"...\" -client-id \"...\" -client-secret \"...\" -organization contoso.onmicrosoft.com\n\n", os.Args[0])
	}

	// Define Command Line Parameters
	showVersion := flag.Bool("version", false, "Show version information")
	inputPath := flag.String("input", "", "Path to the account list file (CSV with a header row) (env: AUDIT_INPUT_FILE)")
	tenantID := flag.String("tenant-id", "", "The Azure Tenant ID (env: AZURE_TENANT_ID)")
	clientID := flag.String("client-id", "", "The Application (Client) ID (env: AZURE_CLIENT_ID)")
	clientSecret := flag.String("client-secret", "", "The Client Secret (env: AZURE_CLIENT_SECRET)")
	certPath := flag.String("cert-path", "", "Path to the .pfx certificate file (env: AUDIT_CERT_PATH)")
	certPassword := flag.String("cert-password", "", "Password for the .pfx file (env: AUDIT_CERT_PASSWORD)")
	exchangeURL := flag.String("exchange-url", "", "Exchange admin REST base URL, defaults to Exchange Online (env: AUDIT_EXCHANGE_URL)")
	organization := flag.String("organization", "", "Tenant organization, e.g. contoso.onmicrosoft.com (env: AUDIT_ORGANIZATION)")
	mailBackend := flag.String("mail-backend", BackendGraph, "Mailbox statistics backend: graph, imap (env: AUDIT_MAIL_BACKEND)")
	imapServer := flag.String("imap-server", "", "IMAP server host:port for the imap backend (env: AUDIT_IMAP_SERVER)")
	imapUser := flag.String("imap-user", "", "IMAP service account with impersonation rights (env: AUDIT_IMAP_USER)")
	imapPassword := flag.String("imap-password", "", "IMAP service account password (env: AUDIT_IMAP_PASSWORD)")
	verbose := flag.Bool("verbose", false, "Enable verbose output (shows configuration, token claims, API details)")
	logLevel := flag.String("log-level", "INFO", "Logging level: DEBUG, INFO, WARN, ERROR (env: AUDIT_LOG_LEVEL)")

	flag.Parse()

	config.ShowVersion = *showVersion
	config.InputPath = *inputPath
	config.TenantID = *tenantID
	config.ClientID = *clientID
	config.ClientSecret = *clientSecret
	config.CertPath = *certPath
	config.CertPassword = *certPassword
	config.ExchangeURL = *exchangeURL
	config.Organization = *organization
	config.MailBackend = *mailBackend
	config.IMAPServer = *imapServer
	config.IMAPUser = *imapUser
	config.IMAPPassword = *imapPassword
	config.VerboseMode = *verbose
	config.LogLevel = *logLevel

	// Apply environment variables (if flags not set)
	applyEnvironmentVariables(config)

	return config
}

// applyEnvironmentVariables applies environment variables to config.
func applyEnvironmentVariables(config *Config) {
	if config.InputPath == "" {
		config.InputPath = os.Getenv("AUDIT_INPUT_FILE")
	}
	if config.TenantID == "" {
		config.TenantID = os.Getenv("AZURE_TENANT_ID")
	}
	if config.ClientID == "" {
		config.ClientID = os.Getenv("AZURE_CLIENT_ID")
	}
	if config.ClientSecret == "" {
		config.ClientSecret = os.Getenv("AZURE_CLIENT_SECRET")
	}
	if config.CertPath == "" {
		config.CertPath = os.Getenv("AUDIT_CERT_PATH")
	}
	if config.CertPassword == "" {
		config.CertPassword = os.Getenv("AUDIT_CERT_PASSWORD")
	}
	if config.ExchangeURL == "" {
		config.ExchangeURL = os.Getenv("AUDIT_EXCHANGE_URL")
	}
	if config.Organization == "" {
		config.Organization = os.Getenv("AUDIT_ORGANIZATION")
	}
	if backend := os.Getenv("AUDIT_MAIL_BACKEND"); backend != "" && config.MailBackend == BackendGraph {
		config.MailBackend = backend
	}
	if config.IMAPServer == "" {
		config.IMAPServer = os.Getenv("AUDIT_IMAP_SERVER")
	}
	if config.IMAPUser == "" {
		config.IMAPUser = os.Getenv("AUDIT_IMAP_USER")
	}
	if config.IMAPPassword == "" {
		config.IMAPPassword = os.Getenv("AUDIT_IMAP_PASSWORD")
	}
	if level := os.Getenv("AUDIT_LOG_LEVEL"); level != "" && config.LogLevel == "INFO" {
		config.LogLevel = level
	}
}

// validateConfiguration validates the configuration.
func validateConfiguration(config *Config) error {
	// Validate backend selection first so later checks know which fields apply
	if config.MailBackend != BackendGraph && config.MailBackend != BackendIMAP {
		return fmt.Errorf("invalid mail backend: %s (must be one of: %s, %s)",
			config.MailBackend, BackendGraph, BackendIMAP)
	}

	// Input path is optional here: when empty the tool prompts for it at
	// startup. When provided it must point at a readable file.
	if config.InputPath != "" {
		if err := validation.ValidateFilePath(config.InputPath, "input file"); err != nil {
			return err
		}
	}

	// Credentials are always required: both backends query Exchange for
	// mailbox resolution and permissions.
	if err := validation.ValidateGUID(config.TenantID, "tenant ID"); err != nil {
		return err
	}
	if err := validation.ValidateGUID(config.ClientID, "client ID"); err != nil {
		return err
	}
	if config.ClientSecret == "" && config.CertPath == "" {
		return fmt.Errorf("authentication is required: provide -client-secret or -cert-path")
	}
	if config.CertPath != "" {
		if err := validation.ValidateFilePath(config.CertPath, "certificate file"); err != nil {
			return err
		}
	}

	if config.Organization == "" {
		return fmt.Errorf("organization is required (-organization flag)")
	}
	if config.ExchangeURL != "" {
		if err := validation.ValidateBaseURL(config.ExchangeURL, "exchange URL"); err != nil {
			return err
		}
	}

	// Backend-specific validation
	if config.MailBackend == BackendIMAP {
		if config.IMAPServer == "" {
			return fmt.Errorf("imap backend requires -imap-server")
		}
		if err := validation.ValidateHostPort(config.IMAPServer, "IMAP server"); err != nil {
			return err
		}
		if config.IMAPUser == "" || config.IMAPPassword == "" {
			return fmt.Errorf("imap backend requires -imap-user and -imap-password")
		}
	}

	return nil
}
