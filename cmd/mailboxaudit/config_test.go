package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// validConfig builds a configuration that passes validation for the graph
// backend; tests mutate one field at a time.
func validConfig() *Config {
	config := NewConfig()
	config.TenantID = "12345678-1234-1234-1234-123456789012"
	config.ClientID = "87654321-4321-4321-4321-210987654321"
	config.ClientSecret = "s3cret-value"
	config.Organization = "contoso.onmicrosoft.com"
	return config
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string // empty means no error expected
	}{
		{
			name:   "valid graph configuration",
			mutate: func(*Config) {},
		},
		{
			name: "invalid backend",
			mutate: func(c *Config) {
				c.MailBackend = "pop3"
			},
			errorMsg: "invalid mail backend: pop3",
		},
		{
			name: "missing tenant ID",
			mutate: func(c *Config) {
				c.TenantID = ""
			},
			errorMsg: "tenant ID cannot be empty",
		},
		{
			name: "malformed client ID",
			mutate: func(c *Config) {
				c.ClientID = "not-a-guid"
			},
			errorMsg: "client ID should be a GUID",
		},
		{
			name: "no authentication method",
			mutate: func(c *Config) {
				c.ClientSecret = ""
			},
			errorMsg: "authentication is required",
		},
		{
			name: "certificate file does not exist",
			mutate: func(c *Config) {
				c.ClientSecret = ""
				c.CertPath = "/nonexistent/app.pfx"
			},
			errorMsg: "certificate file: file not found",
		},
		{
			name: "missing organization",
			mutate: func(c *Config) {
				c.Organization = ""
			},
			errorMsg: "organization is required",
		},
		{
			name: "exchange URL without scheme",
			mutate: func(c *Config) {
				c.ExchangeURL = "outlook.office365.com"
			},
			errorMsg: "exchange URL",
		},
		{
			name: "input file does not exist",
			mutate: func(c *Config) {
				c.InputPath = "/nonexistent/mailboxes.csv"
			},
			errorMsg: "input file: file not found",
		},
		{
			name: "imap backend without server",
			mutate: func(c *Config) {
				c.MailBackend = BackendIMAP
			},
			errorMsg: "imap backend requires -imap-server",
		},
		{
			name: "imap server without port",
			mutate: func(c *Config) {
				c.MailBackend = BackendIMAP
				c.IMAPServer = "mail.example.com"
			},
			errorMsg: "IMAP server must be host:port",
		},
		{
			name: "imap backend without credentials",
			mutate: func(c *Config) {
				c.MailBackend = BackendIMAP
				c.IMAPServer = "mail.example.com:993"
			},
			errorMsg: "imap backend requires -imap-user and -imap-password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)

			err := validateConfiguration(config)

			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("validateConfiguration() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("validateConfiguration() expected error containing %q, got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("validateConfiguration() error = %v, want error containing %q", err, tt.errorMsg)
			}
		})
	}
}

func TestValidateConfiguration_ValidIMAP(t *testing.T) {
	config := validConfig()
	config.MailBackend = BackendIMAP
	config.IMAPServer = "mail.example.com:993"
	config.IMAPUser = "svc-audit"
	config.IMAPPassword = "hunter2"

	if err := validateConfiguration(config); err != nil {
		t.Errorf("validateConfiguration() unexpected error = %v", err)
	}
}

func TestValidateConfiguration_CertificateAuth(t *testing.T) {
	certPath := filepath.Join(t.TempDir(), "app.pfx")
	if err := os.WriteFile(certPath, []byte("not a real pfx"), 0600); err != nil {
		t.Fatal(err)
	}

	config := validConfig()
	config.ClientSecret = ""
	config.CertPath = certPath
	config.CertPassword = "pfxpass"

	if err := validateConfiguration(config); err != nil {
		t.Errorf("validateConfiguration() unexpected error = %v", err)
	}
}

func TestApplyEnvironmentVariables(t *testing.T) {
	t.Setenv("AZURE_TENANT_ID", "11111111-1111-1111-1111-111111111111")
	t.Setenv("AZURE_CLIENT_SECRET", "env-secret")
	t.Setenv("AUDIT_ORGANIZATION", "env.onmicrosoft.com")
	t.Setenv("AUDIT_MAIL_BACKEND", "imap")

	config := NewConfig()
	config.ClientSecret = "flag-secret" // flag value must win

	applyEnvironmentVariables(config)

	if config.TenantID != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("TenantID = %q, want env value", config.TenantID)
	}
	if config.ClientSecret != "flag-secret" {
		t.Errorf("ClientSecret = %q, want flag value to take precedence", config.ClientSecret)
	}
	if config.Organization != "env.onmicrosoft.com" {
		t.Errorf("Organization = %q, want env value", config.Organization)
	}
	if config.MailBackend != BackendIMAP {
		t.Errorf("MailBackend = %q, want env value %q", config.MailBackend, BackendIMAP)
	}
}

func TestApplyEnvironmentVariables_NoEnvKeepsDefaults(t *testing.T) {
	t.Setenv("AUDIT_MAIL_BACKEND", "")
	t.Setenv("AUDIT_LOG_LEVEL", "")

	config := NewConfig()

	applyEnvironmentVariables(config)

	if config.MailBackend != BackendGraph {
		t.Errorf("MailBackend = %q, want default %q", config.MailBackend, BackendGraph)
	}
	if config.LogLevel != "INFO" {
		t.Errorf("LogLevel = %q, want default INFO", config.LogLevel)
	}
}
