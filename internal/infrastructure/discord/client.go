package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"modmail/internal/shared/logger"
)

const defaultAPIBaseURL = "https://discord.com/api/v10"

// APIError is a non-2xx response from the platform API.
type APIError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api: %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client is a minimal REST client for the platform HTTP API. All methods are
// synchronous and honor the passed context.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	log        logger.Interface
}

func NewClient(token string, log logger.Interface) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultAPIBaseURL,
		token:      token,
		log:        log,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debugw("api request failed",
			"method", method, "path", path, "status", resp.StatusCode)
		return &APIError{Status: resp.StatusCode, Method: method, Path: path, Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// GatewayURL returns the websocket endpoint to connect the gateway to.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	var result struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/gateway/bot", nil, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CurrentApplication(ctx context.Context) (*Application, error) {
	var app Application
	if err := c.do(ctx, http.MethodGet, "/applications/@me", nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// CreatePrivateChannel opens (or reuses) the DM channel with a user.
func (c *Client) CreatePrivateChannel(ctx context.Context, userID Snowflake) (*Channel, error) {
	body := map[string]Snowflake{"recipient_id": userID}
	var ch Channel
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", body, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// CreateMessageParams is the subset of message-create fields the relay uses.
type CreateMessageParams struct {
	Content          string            `json:"content,omitempty"`
	Embeds           []Embed           `json:"embeds,omitempty"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
	AllowedMentions  *AllowedMentions  `json:"allowed_mentions,omitempty"`
}

// AllowedMentions restricts which mention types in a message ping.
type AllowedMentions struct {
	Parse []string    `json:"parse"`
	Roles []Snowflake `json:"roles,omitempty"`
	Users []Snowflake `json:"users,omitempty"`
}

func (c *Client) CreateMessage(ctx context.Context, channelID Snowflake, params CreateMessageParams) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := c.do(ctx, http.MethodPost, path, params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID Snowflake, params CreateMessageParams) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.do(ctx, http.MethodPatch, path, params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID Snowflake) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) GetMessage(ctx context.Context, channelID, messageID Snowflake) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.do(ctx, http.MethodGet, path, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) CreateReaction(ctx context.Context, channelID, messageID Snowflake, emoji string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me", channelID, messageID, url.PathEscape(emoji))
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

func (c *Client) DeleteOwnReaction(ctx context.Context, channelID, messageID Snowflake, emoji string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me", channelID, messageID, url.PathEscape(emoji))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// CreateForumThreadParams starts a forum post with its initial message.
type CreateForumThreadParams struct {
	Name    string              `json:"name"`
	Message CreateMessageParams `json:"message"`
}

type forumThreadResponse struct {
	Channel
	Message *Message `json:"message,omitempty"`
}

// CreateForumThread starts a forum post and returns the thread channel along
// with the starter message id.
func (c *Client) CreateForumThread(ctx context.Context, forumID Snowflake, params CreateForumThreadParams) (*Channel, Snowflake, error) {
	var resp forumThreadResponse
	path := fmt.Sprintf("/channels/%s/threads", forumID)
	if err := c.do(ctx, http.MethodPost, path, params, &resp); err != nil {
		return nil, 0, err
	}
	starterID := resp.ID
	if resp.Message != nil {
		starterID = resp.Message.ID
	}
	ch := resp.Channel
	return &ch, starterID, nil
}

// ModifyThreadParams toggles thread archival and lock state.
type ModifyThreadParams struct {
	Archived *bool `json:"archived,omitempty"`
	Locked   *bool `json:"locked,omitempty"`
}

func (c *Client) ModifyThread(ctx context.Context, threadID Snowflake, params ModifyThreadParams) error {
	path := fmt.Sprintf("/channels/%s", threadID)
	return c.do(ctx, http.MethodPatch, path, params, nil)
}

// Command describes an application command for bulk registration.
type Command struct {
	Name                     string          `json:"name"`
	Description              string          `json:"description"`
	Options                  []CommandOption `json:"options,omitempty"`
	DefaultMemberPermissions *string         `json:"default_member_permissions,omitempty"`
	DMPermission             *bool           `json:"dm_permission,omitempty"`
}

type CommandOption struct {
	Type        int    `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
	MaxLength   *int   `json:"max_length,omitempty"`
}

// SetGuildCommands overwrites the guild's application command set.
func (c *Client) SetGuildCommands(ctx context.Context, applicationID, guildID Snowflake, commands []Command) error {
	path := fmt.Sprintf("/applications/%s/guilds/%s/commands", applicationID, guildID)
	return c.do(ctx, http.MethodPut, path, commands, nil)
}

// InteractionResponse acknowledges or answers an interaction.
type InteractionResponse struct {
	Type int                      `json:"type"`
	Data *InteractionResponseData `json:"data,omitempty"`
}

type InteractionResponseData struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
	Flags   int     `json:"flags,omitempty"`
}

func (c *Client) CreateInteractionResponse(ctx context.Context, interactionID Snowflake, token string, resp InteractionResponse) error {
	path := fmt.Sprintf("/interactions/%s/%s/callback", interactionID, token)
	return c.do(ctx, http.MethodPost, path, resp, nil)
}

// EditInteractionResponse updates the original (possibly deferred) response
// and returns the resulting message.
func (c *Client) EditInteractionResponse(ctx context.Context, applicationID Snowflake, token string, data InteractionResponseData) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/webhooks/%s/%s/messages/@original", applicationID, token)
	if err := c.do(ctx, http.MethodPatch, path, data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
