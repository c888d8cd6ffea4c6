// Package main provides mailboxaudit, a batch reporting CLI that reads a
// list of Exchange Online mailboxes from a delimited file, collects activity
// statistics and delegated permissions for each one, and writes an HTML and
// a CSV report next to the input file.
//
// Mailbox statistics come from Microsoft Graph by default; an IMAP backend
// is available for servers without Graph access (-mail-backend imap).
// Permissions always come from the Exchange admin REST endpoint.
//
// Authentication methods supported:
//   - Client Secret: Standard App Registration secret
//   - PFX Certificate: Certificate file with private key
//
// Every processed account is additionally logged to a per-run CSV file in
// the system temp directory for audit and troubleshooting purposes.
//
// Example usage:
//
//	mailboxaudit -input mailboxes.csv -tenant-id "..." -client-id "..." -client-secret "..." -organization contoso.onmicrosoft.com
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

// setupSignalHandling configures graceful shutdown on interrupt signals
// Returns a cancellable context for use throughout the application
func setupSignalHandling() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	// Handle interrupt signals (Ctrl+C, SIGTERM)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n\nReceived interrupt signal. Shutting down gracefully...")
		cancel()
	}()

	return ctx, cancel
}
