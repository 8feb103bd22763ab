package discord

import (
	"encoding/json"
	"fmt"
	"time"
)

// Channel types.
const (
	ChannelTypeDM           = 1
	ChannelTypePublicThread = 11
	ChannelTypeGuildForum   = 15
)

// Message kinds. Only regular messages and replies are relayed.
const (
	MessageTypeDefault = 0
	MessageTypeReply   = 19
)

// Gateway intents.
const (
	IntentGuilds          = 1 << 0
	IntentGuildMembers    = 1 << 1
	IntentGuildModeration = 1 << 2
	IntentDirectMessages  = 1 << 12
)

// Permission bits checked on guild availability.
const (
	PermissionViewAuditLog          = 1 << 7
	PermissionViewChannel           = 1 << 10
	PermissionSendMessages          = 1 << 11
	PermissionEmbedLinks            = 1 << 14
	PermissionReadMessageHistory    = 1 << 16
	PermissionManageThreads         = 1 << 34
	PermissionSendMessagesInThreads = 1 << 38
)

// Audit log action types relayed to staff threads.
const (
	AuditActionMemberKick   = 20
	AuditActionMemberBanAdd = 22
	AuditActionMemberUpdate = 24
)

type User struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator,omitempty"`
	GlobalName    string    `json:"global_name,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	Bot           bool      `json:"bot,omitempty"`
}

// DisplayName returns the user's global display name when set, else the
// username.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Tag returns the legacy name#discriminator form when the discriminator is
// meaningful, else the plain username.
func (u User) Tag() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

type Member struct {
	User     *User       `json:"user,omitempty"`
	Nick     string      `json:"nick,omitempty"`
	Avatar   string      `json:"avatar,omitempty"`
	Roles    []Snowflake `json:"roles"`
	JoinedAt time.Time   `json:"joined_at"`
}

type Role struct {
	ID          Snowflake `json:"id"`
	Name        string    `json:"name"`
	Permissions string    `json:"permissions"`
	Position    int       `json:"position"`
}

type ThreadMetadata struct {
	Archived bool `json:"archived"`
	Locked   bool `json:"locked"`
}

type Channel struct {
	ID             Snowflake       `json:"id"`
	Type           int             `json:"type"`
	GuildID        Snowflake       `json:"guild_id,omitempty"`
	ParentID       Snowflake       `json:"parent_id,omitempty"`
	Name           string          `json:"name,omitempty"`
	ThreadMetadata *ThreadMetadata `json:"thread_metadata,omitempty"`
}

type Attachment struct {
	ID       Snowflake `json:"id"`
	Filename string    `json:"filename"`
	URL      string    `json:"url"`
}

type StickerItem struct {
	ID         Snowflake `json:"id"`
	Name       string    `json:"name"`
	FormatType int       `json:"format_type"`
}

type EmbedAuthor struct {
	Name    string `json:"name,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedFooter struct {
	Text    string `json:"text,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url,omitempty"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Image       *EmbedImage  `json:"image,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type MessageReference struct {
	MessageID Snowflake `json:"message_id,omitempty"`
	ChannelID Snowflake `json:"channel_id,omitempty"`
	GuildID   Snowflake `json:"guild_id,omitempty"`
}

// MessageInteraction marks a message as the response to a slash command
// invocation. Its presence suppresses the deleted-message notice.
type MessageInteraction struct {
	ID   Snowflake `json:"id"`
	Name string    `json:"name"`
	User User      `json:"user"`
}

type Message struct {
	ID               Snowflake           `json:"id"`
	ChannelID        Snowflake           `json:"channel_id"`
	GuildID          Snowflake           `json:"guild_id,omitempty"`
	Author           User                `json:"author"`
	Content          string              `json:"content"`
	Type             int                 `json:"type"`
	Attachments      []Attachment        `json:"attachments,omitempty"`
	StickerItems     []StickerItem       `json:"sticker_items,omitempty"`
	Embeds           []Embed             `json:"embeds,omitempty"`
	MessageReference *MessageReference   `json:"message_reference,omitempty"`
	Interaction      *MessageInteraction `json:"interaction,omitempty"`
	Timestamp        time.Time           `json:"timestamp,omitempty"`
}

type MessageDeleteEvent struct {
	ID        Snowflake `json:"id"`
	ChannelID Snowflake `json:"channel_id"`
	GuildID   Snowflake `json:"guild_id,omitempty"`
}

type ThreadDeleteEvent struct {
	ID       Snowflake `json:"id"`
	GuildID  Snowflake `json:"guild_id,omitempty"`
	ParentID Snowflake `json:"parent_id,omitempty"`
	Type     int       `json:"type"`
}

type GuildMemberAddEvent struct {
	GuildID Snowflake `json:"guild_id"`
	Member
}

type GuildMemberRemoveEvent struct {
	GuildID Snowflake `json:"guild_id"`
	User    User      `json:"user"`
}

type AuditLogChange struct {
	Key      string          `json:"key"`
	OldValue json.RawMessage `json:"old_value,omitempty"`
	NewValue json.RawMessage `json:"new_value,omitempty"`
}

type AuditLogEntryEvent struct {
	GuildID    Snowflake        `json:"guild_id,omitempty"`
	UserID     Snowflake        `json:"user_id,omitempty"`
	TargetID   Snowflake        `json:"target_id,omitempty"`
	ActionType int              `json:"action_type"`
	Reason     string           `json:"reason,omitempty"`
	Changes    []AuditLogChange `json:"changes,omitempty"`
}

type GuildCreateEvent struct {
	ID      Snowflake `json:"id"`
	Name    string    `json:"name"`
	Roles   []Role    `json:"roles,omitempty"`
	Members []Member  `json:"members,omitempty"`
}

type GuildMembersChunkEvent struct {
	GuildID    Snowflake `json:"guild_id"`
	Members    []Member  `json:"members"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkCount int       `json:"chunk_count"`
}

type Application struct {
	ID   Snowflake `json:"id"`
	Name string    `json:"name,omitempty"`
}

type ReadyEvent struct {
	User        User        `json:"user"`
	Application Application `json:"application"`
}

// Interaction types and response types.
const (
	InteractionTypePing               = 1
	InteractionTypeApplicationCommand = 2

	InteractionResponsePong            = 1
	InteractionResponseChannelMessage  = 4
	InteractionResponseDeferredMessage = 5
)

// MessageFlagEphemeral marks an interaction response visible only to the
// invoking user.
const MessageFlagEphemeral = 64

// Application command option types.
const (
	OptionTypeString  = 3
	OptionTypeBoolean = 5
)

type InteractionOption struct {
	Name  string          `json:"name"`
	Type  int             `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// StringValue decodes the option value as a string, returning "" on mismatch.
func (o InteractionOption) StringValue() string {
	var s string
	if err := json.Unmarshal(o.Value, &s); err != nil {
		return ""
	}
	return s
}

// BoolValue decodes the option value as a boolean, returning false on mismatch.
func (o InteractionOption) BoolValue() bool {
	var b bool
	if err := json.Unmarshal(o.Value, &b); err != nil {
		return false
	}
	return b
}

type InteractionData struct {
	ID      Snowflake           `json:"id"`
	Name    string              `json:"name"`
	Options []InteractionOption `json:"options,omitempty"`
}

func (d *InteractionData) Option(name string) (InteractionOption, bool) {
	for _, o := range d.Options {
		if o.Name == name {
			return o, true
		}
	}
	return InteractionOption{}, false
}

type Interaction struct {
	ID        Snowflake        `json:"id"`
	Type      int              `json:"type"`
	Token     string           `json:"token"`
	GuildID   Snowflake        `json:"guild_id,omitempty"`
	ChannelID Snowflake        `json:"channel_id,omitempty"`
	Channel   *Channel         `json:"channel,omitempty"`
	Member    *Member          `json:"member,omitempty"`
	User      *User            `json:"user,omitempty"`
	Data      *InteractionData `json:"data,omitempty"`
}

// Sender returns the invoking user regardless of guild or DM context.
func (i *Interaction) Sender() User {
	if i.Member != nil && i.Member.User != nil {
		return *i.Member.User
	}
	if i.User != nil {
		return *i.User
	}
	return User{}
}

// Event is a decoded gateway dispatch. Exactly one payload field is non-nil,
// matched by Kind.
type Event struct {
	Kind string

	Ready             *ReadyEvent
	GuildCreate       *GuildCreateEvent
	GuildMembersChunk *GuildMembersChunkEvent
	MessageCreate     *Message
	MessageUpdate     *Message
	MessageDelete     *MessageDeleteEvent
	ThreadUpdate      *Channel
	ThreadDelete      *ThreadDeleteEvent
	MemberAdd         *GuildMemberAddEvent
	MemberRemove      *GuildMemberRemoveEvent
	AuditLogEntry     *AuditLogEntryEvent
	Interaction       *Interaction
}

// Gateway event names.
const (
	EventReady               = "READY"
	EventGuildCreate         = "GUILD_CREATE"
	EventGuildMembersChunk   = "GUILD_MEMBERS_CHUNK"
	EventMessageCreate       = "MESSAGE_CREATE"
	EventMessageUpdate       = "MESSAGE_UPDATE"
	EventMessageDelete       = "MESSAGE_DELETE"
	EventThreadUpdate        = "THREAD_UPDATE"
	EventThreadDelete        = "THREAD_DELETE"
	EventGuildMemberAdd      = "GUILD_MEMBER_ADD"
	EventGuildMemberRemove   = "GUILD_MEMBER_REMOVE"
	EventAuditLogEntryCreate = "GUILD_AUDIT_LOG_ENTRY_CREATE"
	EventInteractionCreate   = "INTERACTION_CREATE"
)

// DecodeEvent maps a dispatch name and raw payload to a typed Event. Unknown
// event names return (nil, nil) and are skipped by the dispatcher.
func DecodeEvent(name string, data json.RawMessage) (*Event, error) {
	ev := &Event{Kind: name}
	var dst any
	switch name {
	case EventReady:
		ev.Ready = &ReadyEvent{}
		dst = ev.Ready
	case EventGuildCreate:
		ev.GuildCreate = &GuildCreateEvent{}
		dst = ev.GuildCreate
	case EventGuildMembersChunk:
		ev.GuildMembersChunk = &GuildMembersChunkEvent{}
		dst = ev.GuildMembersChunk
	case EventMessageCreate:
		ev.MessageCreate = &Message{}
		dst = ev.MessageCreate
	case EventMessageUpdate:
		ev.MessageUpdate = &Message{}
		dst = ev.MessageUpdate
	case EventMessageDelete:
		ev.MessageDelete = &MessageDeleteEvent{}
		dst = ev.MessageDelete
	case EventThreadUpdate:
		ev.ThreadUpdate = &Channel{}
		dst = ev.ThreadUpdate
	case EventThreadDelete:
		ev.ThreadDelete = &ThreadDeleteEvent{}
		dst = ev.ThreadDelete
	case EventGuildMemberAdd:
		ev.MemberAdd = &GuildMemberAddEvent{}
		dst = ev.MemberAdd
	case EventGuildMemberRemove:
		ev.MemberRemove = &GuildMemberRemoveEvent{}
		dst = ev.MemberRemove
	case EventAuditLogEntryCreate:
		ev.AuditLogEntry = &AuditLogEntryEvent{}
		dst = ev.AuditLogEntry
	case EventInteractionCreate:
		ev.Interaction = &Interaction{}
		dst = ev.Interaction
	default:
		return nil, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", name, err)
	}
	return ev, nil
}
