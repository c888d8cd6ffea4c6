package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/google/uuid"

	"mailboxaudit/internal/audit"
	"mailboxaudit/internal/common/logger"
	"mailboxaudit/internal/common/security"
	"mailboxaudit/internal/common/version"
	"mailboxaudit/internal/exchange/admin"
	"mailboxaudit/internal/input"
	"mailboxaudit/internal/mail/graph"
	"mailboxaudit/internal/mail/imap"
	"mailboxaudit/internal/report"
)

// Status constants
const (
	StatusSuccess = "Success"
	StatusError   = "Error"
)

// Report files are named MailboxAnalysis_<stamp>.html / .csv and written
// to the directory of the input file.
const (
	reportPrefix      = "MailboxAnalysis_"
	reportStampLayout = "20060102_150405"
)

// csvAuditColumns is the header of the per-run CSV audit trail
// (a Timestamp column is prepended by the logger).
var csvAuditColumns = []string{"RunID", "Account", "Status", "TotalMessages", "Duration", "Error"}

// run is the main application entry point that orchestrates the tool's
// execution flow. It performs the following steps:
//  1. Sets up graceful shutdown handling for interrupt signals
//  2. Parses and validates configuration from flags and environment variables
//  3. Loads the account list
//  4. Builds the credential and the Exchange admin and mailbox clients
//  5. Audits every account in input order
//  6. Writes the HTML and CSV reports next to the input file
//
// Per-account failures are captured in the report and do not fail the run;
// an error return means the run produced no reports at all.
func run() error {
	// 1. Setup signal handling for graceful shutdown
	ctx, cancel := setupSignalHandling()
	defer cancel()

	// 2. Parse command-line flags and apply environment variables
	config := parseAndConfigureFlags()

	// 3. Handle version flag early exit
	if config.ShowVersion {
		fmt.Printf("Mailbox Audit Tool - Version %s\n", version.Get())
		return nil
	}

	// 4. Validate configuration
	if err := validateConfiguration(config); err != nil {
		fmt.Printf("Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	// 5. Setup structured logger and run identity
	runID := uuid.NewString()
	slogger := logger.SetupLogger(config.VerboseMode, config.LogLevel)
	logger.LogInfo(slogger, "Application starting",
		"version", version.Get(), "runID", runID, "backend", config.MailBackend)
	logVerbose(config.VerboseMode, "Configuration: tenant=%s client=%s organization=%s backend=%s",
		security.MaskGUID(config.TenantID), security.MaskGUID(config.ClientID),
		config.Organization, config.MailBackend)

	// 6. Obtain the input path: flag, then environment, then prompt
	inputPath := config.InputPath
	if inputPath == "" {
		var err error
		inputPath, err = promptForInputPath()
		if err != nil {
			return err
		}
	}

	// 7. Load the account list
	rows, identityColumn, err := input.Load(inputPath)
	if err != nil {
		return err
	}
	logger.LogInfo(slogger, "Input file loaded",
		"path", inputPath, "accounts", len(rows), "identityColumn", identityColumn)

	// 8. Build credential and clients
	cred, err := getCredential(ctx, config, slogger)
	if err != nil {
		return fmt.Errorf("authentication setup failed: %w", err)
	}
	directory := admin.NewClient(config.ExchangeURL, config.Organization, cred, slogger)
	mailClient, err := setupMailClient(cred, config, slogger)
	if err != nil {
		return err
	}

	// 9. Initialize the CSV run log
	csvLogger := initializeRunLog(slogger)
	if csvLogger != nil {
		defer csvLogger.Close()
	}

	// 10. Audit every account in input order
	auditor := audit.NewAuditor(directory, mailClient, slogger)
	records, err := processAccounts(ctx, auditor, rows, identityColumn, csvLogger, runID)
	if err != nil {
		return err
	}

	// 11. Render and write both reports
	htmlPath, csvPath, err := writeReports(records, inputPath)
	if err != nil {
		return err
	}

	succeeded := 0
	for _, record := range records {
		if record.Error == "" {
			succeeded++
		}
	}
	fmt.Println()
	fmt.Printf("Processed %d mailboxes: %d succeeded, %d failed\n",
		len(records), succeeded, len(records)-succeeded)
	fmt.Printf("HTML report: %s\n", htmlPath)
	fmt.Printf("CSV report:  %s\n", csvPath)

	return nil
}

// setupMailClient builds the mailbox statistics backend selected by
// -mail-backend. Both backends satisfy audit.MailClient.
func setupMailClient(cred azcore.TokenCredential, config *Config, log *slog.Logger) (audit.MailClient, error) {
	switch config.MailBackend {
	case BackendIMAP:
		return imap.NewClient(imap.Options{
			Address:  config.IMAPServer,
			Username: config.IMAPUser,
			Password: config.IMAPPassword,
		}, log), nil
	default:
		graphClient, err := setupGraphClient(cred, config)
		if err != nil {
			return nil, err
		}
		return graph.NewClient(graphClient, log), nil
	}
}

// initializeRunLog sets up the CSV audit trail in the system temp directory.
// Failure to create it is a warning, not a fatal error; the run continues
// without the trail.
func initializeRunLog(log *slog.Logger) *logger.CSVLogger {
	csvLogger, err := logger.NewCSVLogger("mailboxaudit", "audit")
	if err != nil {
		logger.LogWarn(log, "Could not initialize CSV run log", "error", err)
		return nil
	}
	if needHeader, err := csvLogger.ShouldWriteHeader(); err == nil && needHeader {
		if err := csvLogger.WriteHeader(csvAuditColumns); err != nil {
			logger.LogWarn(log, "Could not write CSV run log header", "error", err)
		}
	}
	return csvLogger
}

// processAccounts audits every row in input order and returns one record per
// row. Context cancellation aborts the loop with an error so that no report
// files are written for a half-finished run.
func processAccounts(ctx context.Context, auditor *audit.Auditor, rows []input.Row, identityColumn string, csvLogger *logger.CSVLogger, runID string) ([]audit.ReportRecord, error) {
	records := make([]audit.ReportRecord, 0, len(rows))

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("audit run aborted after %d of %d mailboxes: %w", i, len(rows), err)
		}

		identity := row[identityColumn]
		fmt.Printf("Processing mailbox %d of %d: %s\n", i+1, len(rows), identity)

		started := time.Now()
		record := auditRow(ctx, auditor, identity)
		records = append(records, record)

		status := StatusSuccess
		if record.Error != "" {
			status = StatusError
			fmt.Printf("  Error: %s\n", record.Error)
		}
		logRunRow(csvLogger, runID, record, status, time.Since(started))
	}

	return records, nil
}

// auditRow runs one aggregation with a panic safety net: a panic inside a
// collaborator becomes an error record for that row instead of killing the
// rest of the run.
func auditRow(ctx context.Context, auditor *audit.Auditor, identity string) (record audit.ReportRecord) {
	defer func() {
		if r := recover(); r != nil {
			record = audit.ErrorRecord(identity, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()
	return auditor.AuditAccount(ctx, identity)
}

// logRunRow appends one row to the CSV audit trail. A nil logger means the
// trail could not be created and the row is silently skipped.
func logRunRow(csvLogger *logger.CSVLogger, runID string, record audit.ReportRecord, status string, elapsed time.Duration) {
	if csvLogger == nil {
		return
	}
	csvLogger.WriteRow([]string{
		runID,
		record.Address,
		status,
		strconv.Itoa(record.Total),
		elapsed.Round(time.Millisecond).String(),
		record.Error,
	})
}

// writeReports renders both report formats and writes them beside the input
// file under a shared run timestamp. Nothing is written when either
// rendering fails.
func writeReports(records []audit.ReportRecord, inputPath string) (htmlPath, csvPath string, err error) {
	now := time.Now()
	htmlPath, csvPath = reportPaths(inputPath, now)

	htmlData, err := report.RenderHTML(records, now)
	if err != nil {
		return "", "", fmt.Errorf("failed to render HTML report: %w", err)
	}
	csvData, err := report.RenderCSV(records)
	if err != nil {
		return "", "", fmt.Errorf("failed to render CSV report: %w", err)
	}

	if err := os.WriteFile(htmlPath, htmlData, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write HTML report: %w", err)
	}
	if err := os.WriteFile(csvPath, csvData, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write CSV report: %w", err)
	}

	return htmlPath, csvPath, nil
}

// reportPaths returns the two output paths for a run stamped at now, placed
// in the directory of the input file.
func reportPaths(inputPath string, now time.Time) (htmlPath, csvPath string) {
	stamp := now.Format(reportStampLayout)
	dir := filepath.Dir(inputPath)
	return filepath.Join(dir, reportPrefix+stamp+".html"),
		filepath.Join(dir, reportPrefix+stamp+".csv")
}

// promptForInputPath interactively asks for the account list location when
// neither the -input flag nor AUDIT_INPUT_FILE provided one.
func promptForInputPath() (string, error) {
	fmt.Print("Path to the account list file: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input path: %w", err)
	}
	path := strings.TrimSpace(line)
	if path == "" {
		return "", fmt.Errorf("no input file provided")
	}
	return path, nil
}

// logVerbose prints verbose output to stderr if verbose mode is enabled
func logVerbose(verbose bool, format string, args ...interface{}) {
	if verbose {
		prefix := "[VERBOSE] "
		fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
	}
}
