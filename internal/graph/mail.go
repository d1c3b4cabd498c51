package graph

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

var (
	InboxFields = []string{"id", "subject", "from", "receivedDateTime", "bodyPreview", "toRecipients", "isRead", "webLink"}
	SentFields  = []string{"id", "subject", "from", "receivedDateTime", "toRecipients"}

	MessageDetailFields = []string{
		"id", "subject", "from", "sender", "toRecipients", "ccRecipients", "bccRecipients", "replyTo",
		"conversationId", "receivedDateTime", "sentDateTime", "isRead", "bodyPreview", "webLink",
	}
)

// ListInbox returns the newest Inbox messages. An empty fields list selects InboxFields.
func (c *Client) ListInbox(ctx context.Context, token string, top int, fields []string) (map[string]any, error) {
	if len(fields) == 0 {
		fields = InboxFields
	}
	q := url.Values{}
	q.Set("$top", strconv.Itoa(top))
	q.Set("$select", strings.Join(fields, ","))
	q.Set("$orderby", "receivedDateTime desc")
	return c.Get(ctx, token, "/me/mailFolders/Inbox/messages", q)
}

// ListSent returns messages from Sent Items.
func (c *Client) ListSent(ctx context.Context, token string, top int) (map[string]any, error) {
	q := url.Values{}
	q.Set("$top", strconv.Itoa(top))
	q.Set("$select", strings.Join(SentFields, ","))
	return c.Get(ctx, token, "/me/mailFolders/SentItems/messages", q)
}

// GetMessage returns one message. The HTML body is selected only when includeBody is set.
func (c *Client) GetMessage(ctx context.Context, token, id string, includeBody bool) (map[string]any, error) {
	fields := append([]string(nil), MessageDetailFields...)
	if includeBody {
		fields = append(fields, "body")
	}
	return c.GetMessageFields(ctx, token, id, fields)
}

// GetMessageFields returns one message with an explicit field selection.
func (c *Client) GetMessageFields(ctx context.Context, token, id string, fields []string) (map[string]any, error) {
	q := url.Values{}
	q.Set("$select", strings.Join(fields, ","))
	return c.Get(ctx, token, "/me/messages/"+url.PathEscape(id), q)
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type outgoingMessage struct {
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ToRecipients []recipient `json:"toRecipients"`
}

// SendMail sends an HTML message as the token owner and keeps a copy in Sent Items.
func (c *Client) SendMail(ctx context.Context, token, subject, bodyHTML string, to []string) (map[string]any, error) {
	var msg outgoingMessage
	msg.Subject = subject
	if msg.Subject == "" {
		msg.Subject = "(no subject)"
	}
	msg.Body.ContentType = "HTML"
	msg.Body.Content = bodyHTML
	msg.ToRecipients = make([]recipient, 0, len(to))
	for _, addr := range to {
		msg.ToRecipients = append(msg.ToRecipients, recipient{EmailAddress: emailAddress{Address: addr}})
	}

	payload := struct {
		Message         outgoingMessage `json:"message"`
		SaveToSentItems bool            `json:"saveToSentItems"`
	}{Message: msg, SaveToSentItems: true}
	return c.Post(ctx, token, "/me/sendMail", payload)
}
