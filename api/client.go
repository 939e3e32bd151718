// Package api is the typed HTTP gateway to the clinic backend. It speaks the
// backend's two envelope dialects: the chat endpoint replies with
// {success, users|messages, message} and the notifications endpoint with
// {status, data, unread_count, message}.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"clinicsync/models"
)

const (
	chatEndpoint          = "/chat.php"
	notificationsEndpoint = "/notifications.php"
)

// Identity scopes every request to the acting employee and branch.
type Identity struct {
	EmployeeID int64
	BranchID   int64
}

// RemoteError is a server-reported business error: the request reached the
// backend, which answered with success=false or status="error".
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "remote error"
	}
	return "remote error: " + e.Message
}

// Client issues requests against a fixed base URL on behalf of one identity.
// Timeouts are whatever the underlying http.Client provides; the gateway adds
// no retries of its own.
type Client struct {
	baseURL  string
	identity Identity
	httpc    *http.Client
}

// NewClient returns a gateway for the given base URL and identity.
func NewClient(baseURL string, identity Identity) (*Client, error) {
	return NewClientWithHTTP(baseURL, identity, http.DefaultClient)
}

// NewClientWithHTTP is NewClient with an explicit http.Client, used by tests
// and callers that need transport control.
func NewClientWithHTTP(baseURL string, identity Identity, httpc *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	if identity.EmployeeID <= 0 {
		return nil, errors.New("employee ID is required")
	}
	if identity.BranchID <= 0 {
		return nil, errors.New("branch ID is required")
	}
	if httpc == nil {
		httpc = http.DefaultClient
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		identity: identity,
		httpc:    httpc,
	}, nil
}

// Identity returns the identity the client was built with.
func (c *Client) Identity() Identity {
	return c.identity
}

type chatEnvelope struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Users    []models.Partner `json:"users"`
	Messages []models.Message `json:"messages"`
}

type notificationEnvelope struct {
	Status      string                `json:"status"`
	Message     string                `json:"message"`
	Data        []models.Notification `json:"data"`
	UnreadCount int                   `json:"unread_count"`
}

// FetchPartners returns the conversation partner list with unread counts.
func (c *Client) FetchPartners(ctx context.Context) ([]models.Partner, error) {
	q := c.scopeValues()
	q.Set("action", "users")

	env, err := c.getChat(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch partners: %w", err)
	}

	return env.Users, nil
}

// FetchMessages returns the conversation with one partner, ascending by
// message ID. Fetching also marks inbound messages read on the server.
func (c *Client) FetchMessages(ctx context.Context, partnerID int64) ([]models.Message, error) {
	if partnerID <= 0 {
		return nil, errors.New("partner ID is required")
	}

	q := c.scopeValues()
	q.Set("action", "fetch")
	q.Set("partner_id", strconv.FormatInt(partnerID, 10))

	env, err := c.getChat(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch messages for partner %d: %w", partnerID, err)
	}

	messages := env.Messages
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].MessageID < messages[j].MessageID
	})

	return messages, nil
}

// SendText submits a text message. clientKey is a caller-generated
// idempotency key forwarded to the backend alongside the payload.
func (c *Client) SendText(ctx context.Context, receiverID int64, text, clientKey string) error {
	if receiverID <= 0 {
		return errors.New("receiver ID is required")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("message text is required")
	}

	fields := c.sendFields(receiverID, clientKey)
	fields["message_text"] = text

	if err := c.postChatForm(ctx, fields, "", nil); err != nil {
		return fmt.Errorf("send text to %d: %w", receiverID, err)
	}
	return nil
}

// SendFile submits a single attachment. The backend derives the message type
// (image, pdf, doc) from the filename extension.
func (c *Client) SendFile(ctx context.Context, receiverID int64, filename string, r io.Reader) error {
	if receiverID <= 0 {
		return errors.New("receiver ID is required")
	}
	if strings.TrimSpace(filename) == "" {
		return errors.New("filename is required")
	}
	if r == nil {
		return errors.New("file reader is required")
	}

	fields := c.sendFields(receiverID, "")
	if err := c.postChatForm(ctx, fields, filename, r); err != nil {
		return fmt.Errorf("send file to %d: %w", receiverID, err)
	}
	return nil
}

// FetchNotifications returns the notification list (newest first) and the
// server's unread count.
func (c *Client) FetchNotifications(ctx context.Context) ([]models.Notification, int, error) {
	q := c.scopeValues()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+notificationsEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch notifications: %w", err)
	}

	env, err := c.doNotification(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch notifications: %w", err)
	}

	return env.Data, env.UnreadCount, nil
}

// MarkNotificationRead marks one notification read. Re-marking an already
// read notification is harmless on the server.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	if notificationID <= 0 {
		return errors.New("notification ID is required")
	}
	return c.postNotificationAction(ctx, map[string]any{
		"action":          "mark_read",
		"notification_id": notificationID,
		"employee_id":     c.identity.EmployeeID,
	})
}

// MarkAllNotificationsRead marks every notification for the identity read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.postNotificationAction(ctx, map[string]any{
		"action":      "mark_all_read",
		"employee_id": c.identity.EmployeeID,
		"branch_id":   c.identity.BranchID,
	})
}

// DeleteNotification removes one notification permanently.
func (c *Client) DeleteNotification(ctx context.Context, notificationID int64) error {
	if notificationID <= 0 {
		return errors.New("notification ID is required")
	}
	return c.postNotificationAction(ctx, map[string]any{
		"action":          "delete",
		"notification_id": notificationID,
		"employee_id":     c.identity.EmployeeID,
	})
}

// DeleteAllNotifications removes every notification for the identity.
func (c *Client) DeleteAllNotifications(ctx context.Context) error {
	return c.postNotificationAction(ctx, map[string]any{
		"action":      "delete_all",
		"employee_id": c.identity.EmployeeID,
		"branch_id":   c.identity.BranchID,
	})
}

// SendNotification creates a notification for another employee, optionally
// carrying a deep link.
func (c *Client) SendNotification(ctx context.Context, targetEmployeeID int64, message, linkURL string) error {
	if targetEmployeeID <= 0 {
		return errors.New("target employee ID is required")
	}
	if strings.TrimSpace(message) == "" {
		return errors.New("notification message is required")
	}
	return c.postNotificationAction(ctx, map[string]any{
		"action":         "send",
		"target_user_id": targetEmployeeID,
		"message":        message,
		"link_url":       linkURL,
		"employee_id":    c.identity.EmployeeID,
		"branch_id":      c.identity.BranchID,
	})
}

func (c *Client) scopeValues() url.Values {
	q := url.Values{}
	q.Set("employee_id", strconv.FormatInt(c.identity.EmployeeID, 10))
	q.Set("branch_id", strconv.FormatInt(c.identity.BranchID, 10))
	return q
}

func (c *Client) sendFields(receiverID int64, clientKey string) map[string]string {
	fields := map[string]string{
		"employee_id": strconv.FormatInt(c.identity.EmployeeID, 10),
		"branch_id":   strconv.FormatInt(c.identity.BranchID, 10),
		"action":      "send",
		"receiver_id": strconv.FormatInt(receiverID, 10),
	}
	if clientKey != "" {
		fields["client_key"] = clientKey
	}
	return fields
}

func (c *Client) getChat(ctx context.Context, q url.Values) (*chatEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+chatEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.doChat(req)
}

func (c *Client) postChatForm(ctx context.Context, fields map[string]string, filename string, file io.Reader) error {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return fmt.Errorf("write form field %q: %w", key, err)
		}
	}
	if file != nil {
		part, err := form.CreateFormFile("file", filename)
		if err != nil {
			return fmt.Errorf("create form file %q: %w", filename, err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return fmt.Errorf("copy form file %q: %w", filename, err)
		}
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("close multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatEndpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	_, err = c.doChat(req)
	return err
}

func (c *Client) doChat(req *http.Request) (*chatEnvelope, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env chatEnvelope
	if err := decodeEnvelope(resp, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &RemoteError{Message: env.Message}
	}

	return &env, nil
}

func (c *Client) postNotificationAction(ctx context.Context, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+notificationsEndpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("notification action %v: %w", payload["action"], err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.doNotification(req); err != nil {
		return fmt.Errorf("notification action %v: %w", payload["action"], err)
	}
	return nil
}

func (c *Client) doNotification(req *http.Request) (*notificationEnvelope, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env notificationEnvelope
	if err := decodeEnvelope(resp, &env); err != nil {
		return nil, err
	}
	if env.Status != "success" {
		return nil, &RemoteError{Message: env.Message}
	}

	return &env, nil
}

// decodeEnvelope decodes the response body into out. The backend answers
// error cases with non-2xx codes but still ships an envelope, so the body is
// preferred over the status code; the code only matters when the body is not
// an envelope at all.
func decodeEnvelope(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("unexpected response status %d", resp.StatusCode)
		}
		return fmt.Errorf("decode response envelope: %w", err)
	}
	return nil
}
