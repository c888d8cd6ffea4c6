// Package imap reads mailbox statistics and message listings over IMAP,
// for on-premise servers that expose no Graph endpoint. Each query runs in
// its own short-lived session authorized for the audited mailbox.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sort"
	"time"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"

	"mailboxaudit/internal/audit"
	"mailboxaudit/internal/common/logger"
)

const inboxMailbox = "INBOX"

// DefaultSentFolder is the sent-items folder name Exchange exposes over
// IMAP.
const DefaultSentFolder = "Sent Items"

// Options configures the IMAP backend.
type Options struct {
	// Address is the server's host:port. Connections always use
	// implicit TLS.
	Address string
	// Username and Password identify the auditing service account.
	Username string
	Password string
	// SentFolder overrides the sent-items folder name. Empty selects
	// DefaultSentFolder.
	SentFolder string
	// TLSConfig optionally overrides the TLS client configuration.
	TLSConfig *tls.Config
}

// Client implements audit.MailClient over IMAP. The service account must
// hold impersonation rights: every audited mailbox is passed as the SASL
// PLAIN authorization identity on a fresh connection.
type Client struct {
	address    string
	username   string
	password   string
	sentFolder string
	tlsConfig  *tls.Config
	log        *slog.Logger
}

// NewClient creates an IMAP-backed mail client.
func NewClient(opts Options, log *slog.Logger) *Client {
	sentFolder := opts.SentFolder
	if sentFolder == "" {
		sentFolder = DefaultSentFolder
	}
	return &Client{
		address:    opts.Address,
		username:   opts.Username,
		password:   opts.Password,
		sentFolder: sentFolder,
		tlsConfig:  opts.TLSConfig,
		log:        log,
	}
}

// InboxCounts reads the inbox message totals with a STATUS query.
func (c *Client) InboxCounts(_ context.Context, address string) (audit.MailboxCounts, error) {
	var counts audit.MailboxCounts
	err := c.withMailbox(address, func(session *imapclient.Client) error {
		status, err := session.Status(inboxMailbox, &goimap.StatusOptions{
			NumMessages: true,
			NumUnseen:   true,
		}).Wait()
		if err != nil {
			return fmt.Errorf("STATUS %s failed: %w", inboxMailbox, err)
		}
		if status.NumMessages != nil {
			counts.Total = int(*status.NumMessages)
		}
		if status.NumUnseen != nil {
			counts.Unread = int(*status.NumUnseen)
		}
		return nil
	})
	return counts, err
}

// RecentInboxItems fetches envelope and flag data for up to max of the
// highest-numbered inbox messages, newest first. Sequence order stands in
// for receipt order, which holds for append-only server stores.
func (c *Client) RecentInboxItems(_ context.Context, address string, max int) ([]audit.MailItem, error) {
	var items []audit.MailItem
	err := c.withMailbox(address, func(session *imapclient.Client) error {
		selected, err := session.Select(inboxMailbox, &goimap.SelectOptions{ReadOnly: true}).Wait()
		if err != nil {
			return fmt.Errorf("SELECT %s failed: %w", inboxMailbox, err)
		}
		if selected.NumMessages == 0 {
			return nil
		}

		first, last := recentRange(selected.NumMessages, max)
		var seqSet goimap.SeqSet
		seqSet.AddRange(first, last)

		messages, err := session.Fetch(seqSet, &goimap.FetchOptions{
			Envelope:     true,
			Flags:        true,
			InternalDate: true,
		}).Collect()
		if err != nil {
			return fmt.Errorf("FETCH failed: %w", err)
		}

		sort.Slice(messages, func(i, j int) bool {
			return messages[i].SeqNum > messages[j].SeqNum
		})
		items = make([]audit.MailItem, 0, len(messages))
		for _, message := range messages {
			items = append(items, mailItemFromFetch(message))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// MostRecentSentTime reads the newest message in the sent-items folder and
// returns its receipt time, or nil when the folder is empty.
func (c *Client) MostRecentSentTime(_ context.Context, address string) (*time.Time, error) {
	var sent *time.Time
	err := c.withMailbox(address, func(session *imapclient.Client) error {
		selected, err := session.Select(c.sentFolder, &goimap.SelectOptions{ReadOnly: true}).Wait()
		if err != nil {
			return fmt.Errorf("SELECT %q failed: %w", c.sentFolder, err)
		}
		if selected.NumMessages == 0 {
			return nil
		}

		var seqSet goimap.SeqSet
		seqSet.AddNum(selected.NumMessages)
		messages, err := session.Fetch(seqSet, &goimap.FetchOptions{
			Envelope:     true,
			InternalDate: true,
		}).Collect()
		if err != nil {
			return fmt.Errorf("FETCH failed: %w", err)
		}
		if len(messages) == 0 {
			return nil
		}

		when := messageTime(messages[0])
		if !when.IsZero() {
			sent = &when
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sent, nil
}

// withMailbox runs fn in a fresh authenticated session authorized for the
// given mailbox.
func (c *Client) withMailbox(address string, fn func(*imapclient.Client) error) error {
	logger.LogDebug(c.log, "opening imap session", "server", c.address, "mailbox", address)

	session, err := imapclient.DialTLS(c.address, &imapclient.Options{TLSConfig: c.tlsConfig})
	if err != nil {
		return fmt.Errorf("connection to %s failed: %w", c.address, err)
	}
	defer session.Close()

	saslClient := sasl.NewPlainClient(address, c.username, c.password)
	if err := session.Authenticate(saslClient); err != nil {
		return fmt.Errorf("PLAIN authentication for %s failed: %w", address, err)
	}

	if err := fn(session); err != nil {
		return err
	}
	return session.Logout().Wait()
}

// recentRange picks the sequence range covering the max highest-numbered
// messages of a mailbox holding numMessages.
func recentRange(numMessages uint32, max int) (first, last uint32) {
	last = numMessages
	first = 1
	if max > 0 && numMessages > uint32(max) {
		first = numMessages - uint32(max) + 1
	}
	return first, last
}

func mailItemFromFetch(message *imapclient.FetchMessageBuffer) audit.MailItem {
	item := audit.MailItem{
		Read:     hasFlag(message.Flags, goimap.FlagSeen),
		Received: messageTime(message),
	}
	if message.Envelope != nil {
		item.Subject = message.Envelope.Subject
		if len(message.Envelope.From) > 0 {
			from := message.Envelope.From[0]
			item.Sender = from.Addr()
		}
	}
	return item
}

// messageTime prefers the server's internal (receipt) date and falls back
// to the envelope date header.
func messageTime(message *imapclient.FetchMessageBuffer) time.Time {
	if !message.InternalDate.IsZero() {
		return message.InternalDate
	}
	if message.Envelope != nil {
		return message.Envelope.Date
	}
	return time.Time{}
}

func hasFlag(flags []goimap.Flag, want goimap.Flag) bool {
	for _, flag := range flags {
		if flag == want {
			return true
		}
	}
	return false
}
