// Package admin implements directory and permission lookups against the
// Exchange admin REST endpoint. Each lookup invokes one management cmdlet
// through the InvokeCommand surface, the same wire contract the vendor's
// management shell uses.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"mailboxaudit/internal/audit"
	"mailboxaudit/internal/common/logger"
)

const (
	// tokenScope is the resource all Exchange admin calls are authorized
	// against, independent of the configured endpoint.
	tokenScope = "https://outlook.office365.com/.default"

	// DefaultBaseURL is the worldwide Exchange Online admin endpoint.
	DefaultBaseURL = "https://outlook.office365.com"

	requestTimeout = 60 * time.Second
)

// Client calls the Exchange admin REST endpoint for one organization.
// It implements audit.DirectoryClient.
type Client struct {
	baseURL      string
	organization string
	cred         azcore.TokenCredential
	httpClient   *http.Client
	log          *slog.Logger
}

// NewClient creates a client for the given endpoint and organization
// (the tenant's initial domain, e.g. contoso.onmicrosoft.com). An empty
// baseURL selects the worldwide endpoint.
func NewClient(baseURL, organization string, cred azcore.TokenCredential, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		organization: organization,
		cred:         cred,
		httpClient:   &http.Client{Timeout: requestTimeout},
		log:          log,
	}
}

type cmdletRequest struct {
	CmdletInput cmdletInput `json:"CmdletInput"`
}

type cmdletInput struct {
	CmdletName string         `json:"CmdletName"`
	Parameters map[string]any `json:"Parameters,omitempty"`
}

type mailboxRow struct {
	Identity            string   `json:"Identity"`
	DisplayName         string   `json:"DisplayName"`
	PrimarySmtpAddress  string   `json:"PrimarySmtpAddress"`
	GrantSendOnBehalfTo []string `json:"GrantSendOnBehalfTo"`
}

type mailboxPermissionRow struct {
	User         string   `json:"User"`
	AccessRights []string `json:"AccessRights"`
	IsInherited  bool     `json:"IsInherited"`
	Deny         bool     `json:"Deny"`
}

type adPermissionRow struct {
	User           string   `json:"User"`
	ExtendedRights []string `json:"ExtendedRights"`
	IsInherited    bool     `json:"IsInherited"`
	Deny           bool     `json:"Deny"`
}

// ResolveAccount looks the identity up with Get-Mailbox and returns the
// canonical handle. An identity the organization does not know yields
// audit.ErrAccountNotFound.
func (c *Client) ResolveAccount(ctx context.Context, identity string) (audit.AccountHandle, error) {
	rows, err := invoke[mailboxRow](ctx, c, "Get-Mailbox", map[string]any{"Identity": identity})
	if err != nil {
		return audit.AccountHandle{}, err
	}
	if len(rows) == 0 {
		return audit.AccountHandle{}, fmt.Errorf("mailbox %q: %w", identity, audit.ErrAccountNotFound)
	}

	handle := audit.AccountHandle{
		Address:     rows[0].PrimarySmtpAddress,
		Identity:    rows[0].Identity,
		DisplayName: rows[0].DisplayName,
	}
	// The raw identity stays usable when the directory returns a sparse row.
	if handle.Address == "" {
		handle.Address = identity
	}
	if handle.Identity == "" {
		handle.Identity = identity
	}
	return handle, nil
}

// FullAccessGrants returns the mailbox permission entries for identity.
// Deny entries are not grants and are dropped; inherited and self entries
// are kept for the caller's policy to filter.
func (c *Client) FullAccessGrants(ctx context.Context, identity string) ([]audit.PermissionGrant, error) {
	rows, err := invoke[mailboxPermissionRow](ctx, c, "Get-MailboxPermission", map[string]any{"Identity": identity})
	if err != nil {
		return nil, err
	}

	grants := make([]audit.PermissionGrant, 0, len(rows))
	for _, row := range rows {
		if row.Deny {
			continue
		}
		grants = append(grants, audit.PermissionGrant{
			Grantee:   row.User,
			Rights:    row.AccessRights,
			Inherited: row.IsInherited,
		})
	}
	return grants, nil
}

// SendAsGrants returns the directory permission entries for identity with
// their extended rights. Deny entries are dropped.
func (c *Client) SendAsGrants(ctx context.Context, identity string) ([]audit.PermissionGrant, error) {
	rows, err := invoke[adPermissionRow](ctx, c, "Get-ADPermission", map[string]any{"Identity": identity})
	if err != nil {
		return nil, err
	}

	grants := make([]audit.PermissionGrant, 0, len(rows))
	for _, row := range rows {
		if row.Deny {
			continue
		}
		grants = append(grants, audit.PermissionGrant{
			Grantee:   row.User,
			Rights:    row.ExtendedRights,
			Inherited: row.IsInherited,
		})
	}
	return grants, nil
}

// ConfiguredDelegates returns the mailbox's GrantSendOnBehalfTo list.
func (c *Client) ConfiguredDelegates(ctx context.Context, identity string) ([]string, error) {
	rows, err := invoke[mailboxRow](ctx, c, "Get-Mailbox", map[string]any{"Identity": identity})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("mailbox %q: %w", identity, audit.ErrAccountNotFound)
	}
	return rows[0].GrantSendOnBehalfTo, nil
}

// invoke posts one cmdlet invocation and decodes the response's value
// array into rows of type T.
func invoke[T any](ctx context.Context, c *Client, cmdlet string, params map[string]any) ([]T, error) {
	payload, err := json.Marshal(cmdletRequest{
		CmdletInput: cmdletInput{CmdletName: cmdlet, Parameters: params},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s invocation: %w", cmdlet, err)
	}

	endpoint := fmt.Sprintf("%s/adminapi/beta/%s/InvokeCommand", c.baseURL, url.PathEscape(c.organization))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", cmdlet, err)
	}

	token, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{tokenScope}})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire exchange admin token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logger.LogDebug(c.log, "invoking exchange cmdlet", "cmdlet", cmdlet, "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", cmdlet, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s call failed: status %d: %s", cmdlet, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope struct {
		Value []T `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", cmdlet, err)
	}
	return envelope.Value, nil
}
