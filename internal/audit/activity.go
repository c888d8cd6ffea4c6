package audit

import (
	"context"
	"fmt"
	"log/slog"

	"mailboxaudit/internal/common/logger"
)

// recentWindow is how many of the newest inbox items one snapshot examines;
// recentReadLimit caps how many read messages are captured from that window.
const (
	recentWindow    = 50
	recentReadLimit = 5
)

// UnknownSender labels a captured message whose envelope carries no sender.
const UnknownSender = "Unknown"

// ActivityCollector captures mailbox activity snapshots through a MailClient.
type ActivityCollector struct {
	mail MailClient
	log  *slog.Logger
}

// NewActivityCollector creates a collector using the given mail client.
func NewActivityCollector(mail MailClient, log *slog.Logger) *ActivityCollector {
	return &ActivityCollector{mail: mail, log: log}
}

// Collect builds the activity snapshot for address. It never returns an
// error: a failure fetching the inbox counts or the recent window produces
// a zeroed snapshot with Error set, and a failure looking up the last sent
// time is logged and leaves only that field empty.
func (c *ActivityCollector) Collect(ctx context.Context, address string) ActivitySnapshot {
	counts, err := c.mail.InboxCounts(ctx, address)
	if err != nil {
		logger.LogWarn(c.log, "inbox counts lookup failed", "mailbox", address, "error", err)
		return ActivitySnapshot{Error: fmt.Sprintf("failed to read inbox statistics: %v", err)}
	}

	items, err := c.mail.RecentInboxItems(ctx, address, recentWindow)
	if err != nil {
		logger.LogWarn(c.log, "recent inbox items lookup failed", "mailbox", address, "error", err)
		return ActivitySnapshot{Error: fmt.Sprintf("failed to list recent messages: %v", err)}
	}

	snapshot := ActivitySnapshot{
		Total:  counts.Total,
		Unread: counts.Unread,
		Read:   counts.Total - counts.Unread,
	}

	if len(items) > 0 {
		received := items[0].Received
		snapshot.LastReceived = &received
	}

	for _, item := range items {
		if !item.Read {
			continue
		}
		sender := item.Sender
		if sender == "" {
			sender = UnknownSender
		}
		snapshot.RecentRead = append(snapshot.RecentRead, MessageSummary{
			Subject:  item.Subject,
			Sender:   sender,
			Received: item.Received,
		})
		if len(snapshot.RecentRead) == recentReadLimit {
			break
		}
	}

	// The sent-items lookup is independent: its failure never invalidates
	// the snapshot, the field just stays empty.
	lastSent, err := c.mail.MostRecentSentTime(ctx, address)
	if err != nil {
		logger.LogWarn(c.log, "last sent time lookup failed", "mailbox", address, "error", err)
	} else {
		snapshot.LastSent = lastSent
	}

	return snapshot
}
