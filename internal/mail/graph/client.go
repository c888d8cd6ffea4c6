// Package graph reads mailbox statistics and message listings through
// Microsoft Graph. It is the default activity backend for cloud-hosted
// mailboxes.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"mailboxaudit/internal/audit"
	"mailboxaudit/internal/common/logger"
)

// Well-known folder names understood by the Graph mailFolders endpoint.
const (
	inboxFolderID = "Inbox"
	sentFolderID  = "SentItems"
)

// Client implements audit.MailClient on top of a Graph service client.
type Client struct {
	graph *msgraphsdk.GraphServiceClient
	log   *slog.Logger
}

// NewClient wraps an authenticated Graph service client.
func NewClient(graph *msgraphsdk.GraphServiceClient, log *slog.Logger) *Client {
	return &Client{graph: graph, log: log}
}

// InboxCounts reads the total and unread item counts off the inbox
// folder metadata.
func (c *Client) InboxCounts(ctx context.Context, address string) (audit.MailboxCounts, error) {
	requestConfig := &users.ItemMailFoldersMailFolderItemRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemMailFoldersMailFolderItemRequestBuilderGetQueryParameters{
			Select: []string{"totalItemCount", "unreadItemCount"},
		},
	}

	logger.LogDebug(c.log, "fetching inbox folder metadata", "mailbox", address)

	folder, err := c.graph.Users().ByUserId(address).MailFolders().ByMailFolderId(inboxFolderID).Get(ctx, requestConfig)
	if err != nil {
		return audit.MailboxCounts{}, fmt.Errorf("error fetching inbox metadata for %s: %w", address, describeGraphError(err))
	}

	var counts audit.MailboxCounts
	if folder.GetTotalItemCount() != nil {
		counts.Total = int(*folder.GetTotalItemCount())
	}
	if folder.GetUnreadItemCount() != nil {
		counts.Unread = int(*folder.GetUnreadItemCount())
	}
	return counts, nil
}

// RecentInboxItems lists up to max inbox messages ordered by receipt time
// descending.
func (c *Client) RecentInboxItems(ctx context.Context, address string, max int) ([]audit.MailItem, error) {
	requestConfig := &users.ItemMailFoldersItemMessagesRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemMailFoldersItemMessagesRequestBuilderGetQueryParameters{
			Top:     Int32Ptr(int32(max)),
			Orderby: []string{"receivedDateTime DESC"},
			Select:  []string{"subject", "from", "receivedDateTime", "isRead"},
		},
	}

	logger.LogDebug(c.log, "fetching recent inbox messages", "mailbox", address, "max", max)

	apiResult, err := c.graph.Users().ByUserId(address).MailFolders().ByMailFolderId(inboxFolderID).Messages().Get(ctx, requestConfig)
	if err != nil {
		return nil, fmt.Errorf("error fetching inbox messages for %s: %w", address, describeGraphError(err))
	}

	messages := apiResult.GetValue()
	items := make([]audit.MailItem, 0, len(messages))
	for _, message := range messages {
		items = append(items, mailItemFromMessage(message))
	}
	return items, nil
}

// MostRecentSentTime reads the sent time of the newest item in the sent
// items folder, or nil when the folder is empty.
func (c *Client) MostRecentSentTime(ctx context.Context, address string) (*time.Time, error) {
	requestConfig := &users.ItemMailFoldersItemMessagesRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemMailFoldersItemMessagesRequestBuilderGetQueryParameters{
			Top:     Int32Ptr(1),
			Orderby: []string{"sentDateTime DESC"},
			Select:  []string{"sentDateTime"},
		},
	}

	logger.LogDebug(c.log, "fetching most recent sent item", "mailbox", address)

	apiResult, err := c.graph.Users().ByUserId(address).MailFolders().ByMailFolderId(sentFolderID).Messages().Get(ctx, requestConfig)
	if err != nil {
		return nil, fmt.Errorf("error fetching sent items for %s: %w", address, describeGraphError(err))
	}

	messages := apiResult.GetValue()
	if len(messages) == 0 || messages[0].GetSentDateTime() == nil {
		return nil, nil
	}
	sent := *messages[0].GetSentDateTime()
	return &sent, nil
}

func mailItemFromMessage(message models.Messageable) audit.MailItem {
	var item audit.MailItem
	if message.GetSubject() != nil {
		item.Subject = *message.GetSubject()
	}
	if from := message.GetFrom(); from != nil && from.GetEmailAddress() != nil && from.GetEmailAddress().GetAddress() != nil {
		item.Sender = *from.GetEmailAddress().GetAddress()
	}
	if message.GetReceivedDateTime() != nil {
		item.Received = *message.GetReceivedDateTime()
	}
	if message.GetIsRead() != nil {
		item.Read = *message.GetIsRead()
	}
	return item
}

// describeGraphError surfaces the service code and message buried in a
// Graph OData error; other errors pass through unchanged.
func describeGraphError(err error) error {
	var odataErr *odataerrors.ODataError
	if !errors.As(err, &odataErr) {
		return err
	}
	errorInfo := odataErr.GetErrorEscaped()
	if errorInfo == nil {
		return err
	}

	code := ""
	message := ""
	if errorInfo.GetCode() != nil {
		code = *errorInfo.GetCode()
	}
	if errorInfo.GetMessage() != nil {
		message = *errorInfo.GetMessage()
	}
	if code == "" && message == "" {
		return err
	}
	return fmt.Errorf("graph service error %s: %s", code, message)
}

// Int32Ptr returns a pointer to the given int32 value.
func Int32Ptr(value int32) *int32 {
	return &value
}
