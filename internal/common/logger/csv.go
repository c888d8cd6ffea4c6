package logger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CSVLogger writes a per-run audit trail as CSV rows with periodic buffering.
// This trail is operator forensics, separate from the reports the tool
// produces: one row per processed account, written to the system temp
// directory.
type CSVLogger struct {
	writer     *csv.Writer
	file       *os.File
	path       string
	rowCount   int       // rows written since last flush
	lastFlush  time.Time // time of last flush
	flushEvery int       // flush every N rows
}

// NewCSVLogger creates a CSV audit logger for the given tool and action.
// Filename pattern: <tempdir>/_<toolName>_<action>_<date>.csv, e.g.
// _mailboxaudit_audit_2026-08-22.csv. The file is opened in append mode so
// multiple runs on the same day share one file.
func NewCSVLogger(toolName, action string) (*CSVLogger, error) {
	dateStr := time.Now().Format("2006-01-02")
	fileName := fmt.Sprintf("_%s_%s_%s.csv", toolName, action, dateStr)
	filePath := filepath.Join(os.TempDir(), fileName)

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not create CSV log file: %w", err)
	}

	return &CSVLogger{
		writer:     csv.NewWriter(file),
		file:       file,
		path:       filePath,
		lastFlush:  time.Now(),
		flushEvery: 10,
	}, nil
}

// Path returns the location of the underlying log file.
func (l *CSVLogger) Path() string {
	return l.path
}

// WriteHeader writes a CSV header with the provided column names.
// A Timestamp column is automatically prepended. Call once when the file
// is new (see ShouldWriteHeader).
func (l *CSVLogger) WriteHeader(columns []string) error {
	header := append([]string{"Timestamp"}, columns...)
	if err := l.writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	l.writer.Flush()
	return l.writer.Error()
}

// WriteRow writes one row, prepending the current timestamp. Rows are
// flushed every N rows or every 5 seconds.
func (l *CSVLogger) WriteRow(row []string) error {
	if l.writer == nil {
		return fmt.Errorf("CSV writer is not initialized")
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fullRow := append([]string{timestamp}, row...)

	if err := l.writer.Write(fullRow); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}

	l.rowCount++
	if l.rowCount%l.flushEvery == 0 || time.Since(l.lastFlush) > 5*time.Second {
		l.writer.Flush()
		l.lastFlush = time.Now()
		if err := l.writer.Error(); err != nil {
			return fmt.Errorf("failed to flush CSV: %w", err)
		}
	}

	return nil
}

// Close flushes buffered rows and closes the file. Always call when done
// logging to prevent data loss.
func (l *CSVLogger) Close() error {
	if l.writer != nil {
		l.writer.Flush()
		if err := l.writer.Error(); err != nil {
			return fmt.Errorf("error flushing CSV on close: %w", err)
		}
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// ShouldWriteHeader reports whether the file is new (empty) and needs a
// header row.
func (l *CSVLogger) ShouldWriteHeader() (bool, error) {
	fileInfo, err := l.file.Stat()
	if err != nil {
		return false, fmt.Errorf("could not stat CSV file: %w", err)
	}
	return fileInfo.Size() == 0, nil
}
