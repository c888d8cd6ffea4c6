// Package audit implements the per-account audit pipeline: resolving a raw
// identity to an account, collecting mailbox activity, collecting permission
// grants, and merging the results into one immutable report record per
// input row.
package audit

import (
	"context"
	"errors"
	"time"
)

// SelfGranteeToken is the well-known self-reference grantee Exchange
// reports for an account's implicit grant on itself.
const SelfGranteeToken = `NT AUTHORITY\SELF`

// ErrAccountNotFound reports that the directory could not locate the
// requested identity.
var ErrAccountNotFound = errors.New("account not found")

// AccountHandle is a resolved account: the canonical primary address plus
// the directory identity used for permission queries. Identity falls back
// to the raw input identity when resolution does not change it.
type AccountHandle struct {
	Address     string
	Identity    string
	DisplayName string
}

// MailboxCounts are the inbox item totals reported by the mail server.
type MailboxCounts struct {
	Total  int
	Unread int
}

// MailItem is a point-in-time copy of one message's envelope data, most
// recent first when returned in a list. Sender is empty when the server
// reports no sender.
type MailItem struct {
	Subject  string
	Sender   string
	Received time.Time
	Read     bool
}

// MessageSummary is one recent read message captured in a snapshot.
type MessageSummary struct {
	Subject  string
	Sender   string
	Received time.Time
}

// ActivitySnapshot is the mailbox activity captured for one account.
// Read+Unread == Total by construction. When Error is set, every numeric
// field is zero and every optional field empty: partial numbers from a
// failed collection are never reported.
type ActivitySnapshot struct {
	Total        int
	Read         int
	Unread       int
	LastReceived *time.Time
	LastSent     *time.Time
	RecentRead   []MessageSummary
	Error        string
}

// PermissionGrant is one raw grant row as reported by the directory.
type PermissionGrant struct {
	Grantee   string
	Rights    []string
	Inherited bool
}

// PermissionSet holds the three formatted grant lists for one account.
type PermissionSet struct {
	FullAccess   []string
	SendAs       []string
	SendOnBehalf []string
}

// ReportRecord is the unit of output: one per input row, in input order,
// never mutated after the Auditor builds it. Address is the resolved
// canonical address, or the raw input identity when resolution failed.
type ReportRecord struct {
	Address      string
	Total        int
	Read         int
	Unread       int
	LastReceived *time.Time
	LastSent     *time.Time
	RecentRead   []MessageSummary
	Permissions  PermissionSet
	Error        string
}

// MailClient is the mail-server capability the activity collector consumes.
// Adapters exist for Microsoft Graph and IMAP.
type MailClient interface {
	InboxCounts(ctx context.Context, address string) (MailboxCounts, error)
	RecentInboxItems(ctx context.Context, address string, max int) ([]MailItem, error)
	MostRecentSentTime(ctx context.Context, address string) (*time.Time, error)
}

// DirectoryClient is the directory and permission capability consumed by
// account resolution and the permission collector.
type DirectoryClient interface {
	ResolveAccount(ctx context.Context, identity string) (AccountHandle, error)
	FullAccessGrants(ctx context.Context, identity string) ([]PermissionGrant, error)
	SendAsGrants(ctx context.Context, identity string) ([]PermissionGrant, error)
	ConfiguredDelegates(ctx context.Context, identity string) ([]string, error)
}
