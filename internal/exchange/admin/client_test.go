package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailboxaudit/internal/audit"
)

type staticCredential struct{ token string }

func (s staticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: s.token, ExpiresOn: time.Now().Add(time.Hour)}, nil
}

type failingCredential struct{}

func (failingCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{}, errors.New("no token available")
}

type recordedRequest struct {
	authorization string
	path          string
	cmdlet        string
	parameters    map[string]any
}

func newTestClient(t *testing.T, respond func(cmdlet string) (int, string)) (*Client, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cmdletRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, recordedRequest{
			authorization: r.Header.Get("Authorization"),
			path:          r.URL.Path,
			cmdlet:        req.CmdletInput.CmdletName,
			parameters:    req.CmdletInput.Parameters,
		})
		status, body := respond(req.CmdletInput.CmdletName)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "co.example", staticCredential{token: "test-token"}, nil), &seen
}

func TestClient_ResolveAccount(t *testing.T) {
	client, seen := newTestClient(t, func(string) (int, string) {
		return http.StatusOK, `{"value":[{"Identity":"sharedmbx","DisplayName":"Shared Mailbox","PrimarySmtpAddress":"shared.mbx@co.example"}]}`
	})

	handle, err := client.ResolveAccount(context.Background(), "shared.mbx@co.example")
	require.NoError(t, err)
	assert.Equal(t, audit.AccountHandle{
		Address:     "shared.mbx@co.example",
		Identity:    "sharedmbx",
		DisplayName: "Shared Mailbox",
	}, handle)

	require.Len(t, *seen, 1)
	got := (*seen)[0]
	assert.Equal(t, "/adminapi/beta/co.example/InvokeCommand", got.path)
	assert.Equal(t, "Bearer test-token", got.authorization)
	assert.Equal(t, "Get-Mailbox", got.cmdlet)
	assert.Equal(t, "shared.mbx@co.example", got.parameters["Identity"])
}

func TestClient_ResolveAccount_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(string) (int, string) {
		return http.StatusOK, `{"value":[]}`
	})

	_, err := client.ResolveAccount(context.Background(), "ghost.mbx")
	require.Error(t, err)
	assert.ErrorIs(t, err, audit.ErrAccountNotFound)
	assert.ErrorContains(t, err, "ghost.mbx")
}

func TestClient_ResolveAccount_SparseRow(t *testing.T) {
	client, _ := newTestClient(t, func(string) (int, string) {
		return http.StatusOK, `{"value":[{"DisplayName":"Shared Mailbox"}]}`
	})

	handle, err := client.ResolveAccount(context.Background(), "sharedmbx")
	require.NoError(t, err)
	assert.Equal(t, "sharedmbx", handle.Address)
	assert.Equal(t, "sharedmbx", handle.Identity)
}

func TestClient_FullAccessGrants(t *testing.T) {
	client, seen := newTestClient(t, func(string) (int, string) {
		return http.StatusOK, `{"value":[
			{"User":"DOMAIN\\alice","AccessRights":["FullAccess"],"IsInherited":false,"Deny":false},
			{"User":"DOMAIN\\bob","AccessRights":["FullAccess"],"IsInherited":false,"Deny":true},
			{"User":"DOMAIN\\carol","AccessRights":["FullAccess","ReadPermission"],"IsInherited":true,"Deny":false}
		]}`
	})

	grants, err := client.FullAccessGrants(context.Background(), "sharedmbx")
	require.NoError(t, err)
	assert.Equal(t, []audit.PermissionGrant{
		{Grantee: `DOMAIN\alice`, Rights: []string{"FullAccess"}},
		{Grantee: `DOMAIN\carol`, Rights: []string{"FullAccess", "ReadPermission"}, Inherited: true},
	}, grants)
	assert.Equal(t, "Get-MailboxPermission", (*seen)[0].cmdlet)
}

func TestClient_SendAsGrants(t *testing.T) {
	client, seen := newTestClient(t, func(string) (int, string) {
		return http.StatusOK, `{"value":[
			{"User":"DOMAIN\\alice","ExtendedRights":["Send-As"],"IsInherited":false,"Deny":false},
			{"User":"DOMAIN\\bob","ExtendedRights":["Send-As"],"IsInherited":false,"Deny":true}
		]}`
	})

	grants, err := client.SendAsGrants(context.Background(), "sharedmbx")
	require.NoError(t, err)
	assert.Equal(t, []audit.PermissionGrant{
		{Grantee: `DOMAIN\alice`, Rights: []string{"Send-As"}},
	}, grants)
	assert.Equal(t, "Get-ADPermission", (*seen)[0].cmdlet)
}

func TestClient_ConfiguredDelegates(t *testing.T) {
	client, _ := newTestClient(t, func(string) (int, string) {
		return http.StatusOK, `{"value":[{"Identity":"sharedmbx","GrantSendOnBehalfTo":["Eve Example","Frank Example"]}]}`
	})

	delegates, err := client.ConfiguredDelegates(context.Background(), "sharedmbx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Eve Example", "Frank Example"}, delegates)
}

func TestClient_ServerError(t *testing.T) {
	client, _ := newTestClient(t, func(string) (int, string) {
		return http.StatusBadRequest, `{"error":{"message":"The operation couldn't be performed"}}`
	})

	_, err := client.ResolveAccount(context.Background(), "sharedmbx")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Get-Mailbox call failed: status 400")
	assert.ErrorContains(t, err, "The operation couldn't be performed")
}

func TestClient_TokenFailure(t *testing.T) {
	client := NewClient("https://admin.invalid", "co.example", failingCredential{}, nil)

	_, err := client.FullAccessGrants(context.Background(), "sharedmbx")
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to acquire exchange admin token")
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("", "co.example", staticCredential{}, nil)
	assert.Equal(t, DefaultBaseURL, client.baseURL)

	client = NewClient("https://admin.example.net/", "co.example", staticCredential{}, nil)
	assert.Equal(t, "https://admin.example.net", client.baseURL)
}
