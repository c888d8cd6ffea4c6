package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mailboxaudit/internal/common/logger"
)

// PermissionCollector gathers permission grants through a DirectoryClient.
type PermissionCollector struct {
	dir DirectoryClient
	log *slog.Logger
}

// NewPermissionCollector creates a collector using the given directory client.
func NewPermissionCollector(dir DirectoryClient, log *slog.Logger) *PermissionCollector {
	return &PermissionCollector{dir: dir, log: log}
}

// Collect gathers the three grant lists for identity. The sub-queries fail
// independently: a failure is logged and leaves that one list empty without
// blocking the other two.
func (c *PermissionCollector) Collect(ctx context.Context, identity string) PermissionSet {
	var set PermissionSet

	fullAccess, err := c.dir.FullAccessGrants(ctx, identity)
	if err != nil {
		logger.LogWarn(c.log, "full access grants lookup failed", "identity", identity, "error", err)
	} else {
		set.FullAccess = formatFullAccess(fullAccess)
	}

	sendAs, err := c.dir.SendAsGrants(ctx, identity)
	if err != nil {
		logger.LogWarn(c.log, "send-as grants lookup failed", "identity", identity, "error", err)
	} else {
		set.SendAs = formatSendAs(sendAs)
	}

	delegates, err := c.dir.ConfiguredDelegates(ctx, identity)
	if err != nil {
		logger.LogWarn(c.log, "delegate list lookup failed", "identity", identity, "error", err)
	} else {
		// Configured delegates are reported as-is: no self or inherited
		// filtering applies to send-on-behalf.
		set.SendOnBehalf = delegates
	}

	return set
}

// includeGrant applies the exclusion policy shared by the full-access and
// send-as lists: inherited grants and the account's implicit self-grant
// are dropped.
func includeGrant(g PermissionGrant) bool {
	return !g.Inherited && g.Grantee != SelfGranteeToken
}

func formatFullAccess(grants []PermissionGrant) []string {
	var out []string
	for _, g := range grants {
		if !includeGrant(g) || !hasRight(g.Rights, "FullAccess") {
			continue
		}
		out = append(out, fmt.Sprintf("%s (%s)", g.Grantee, strings.Join(g.Rights, ", ")))
	}
	return out
}

func formatSendAs(grants []PermissionGrant) []string {
	var out []string
	for _, g := range grants {
		if !includeGrant(g) || !hasRight(g.Rights, "Send-As") {
			continue
		}
		out = append(out, g.Grantee)
	}
	return out
}

// hasRight reports whether any entry of rights contains want. Exchange
// reports rights lists like {FullAccess} or {FullAccess, ReadPermission},
// and extended rights like {Send-As}.
func hasRight(rights []string, want string) bool {
	for _, right := range rights {
		if strings.Contains(right, want) {
			return true
		}
	}
	return false
}
