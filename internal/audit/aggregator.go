package audit

import (
	"context"
	"fmt"
	"log/slog"

	"mailboxaudit/internal/common/logger"
)

// Auditor runs the full per-account pipeline: resolve, collect activity,
// collect permissions, merge.
type Auditor struct {
	dir      DirectoryClient
	activity *ActivityCollector
	perms    *PermissionCollector
	log      *slog.Logger
}

// NewAuditor wires an Auditor from the two collaborator clients.
func NewAuditor(dir DirectoryClient, mail MailClient, log *slog.Logger) *Auditor {
	return &Auditor{
		dir:      dir,
		activity: NewActivityCollector(mail, log),
		perms:    NewPermissionCollector(dir, log),
		log:      log,
	}
}

// AuditAccount produces the report record for one raw identity. A
// resolution failure short-circuits to an error record labeled with the raw
// identity and skips both collectors. Otherwise both collectors run, with
// permissions gathered even when the activity snapshot carries an error,
// and the snapshot's error, if any, becomes the record's error.
func (a *Auditor) AuditAccount(ctx context.Context, rawIdentity string) ReportRecord {
	handle, err := a.dir.ResolveAccount(ctx, rawIdentity)
	if err != nil {
		logger.LogWarn(a.log, "account resolution failed", "identity", rawIdentity, "error", err)
		return ErrorRecord(rawIdentity, fmt.Sprintf("failed to resolve account: %v", err))
	}

	logger.LogDebug(a.log, "account resolved",
		"identity", rawIdentity, "address", handle.Address, "directoryIdentity", handle.Identity)

	snapshot := a.activity.Collect(ctx, handle.Address)
	permissions := a.perms.Collect(ctx, handle.Identity)

	return ReportRecord{
		Address:      handle.Address,
		Total:        snapshot.Total,
		Read:         snapshot.Read,
		Unread:       snapshot.Unread,
		LastReceived: snapshot.LastReceived,
		LastSent:     snapshot.LastSent,
		RecentRead:   snapshot.RecentRead,
		Permissions:  permissions,
		Error:        snapshot.Error,
	}
}

// ErrorRecord builds the zero-valued record shape used when an account
// cannot be processed at all: only the address label and the error message
// are set.
func ErrorRecord(address, message string) ReportRecord {
	return ReportRecord{Address: address, Error: message}
}
