package relay

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"modmail/internal/infrastructure/discord"
	"modmail/internal/infrastructure/persistence"
	"modmail/internal/shared/config"
	"modmail/internal/shared/logger"
)

type sentMessage struct {
	ID        discord.Snowflake
	ChannelID discord.Snowflake
	Params    discord.CreateMessageParams
}

type createdThread struct {
	ID        discord.Snowflake
	ForumID   discord.Snowflake
	StarterID discord.Snowflake
	Name      string
}

type reactionCall struct {
	ChannelID discord.Snowflake
	MessageID discord.Snowflake
	Emoji     string
	Removed   bool
}

type threadModify struct {
	ThreadID discord.Snowflake
	Params   discord.ModifyThreadParams
}

type interactionReply struct {
	InteractionID discord.Snowflake
	Response      discord.InteractionResponse
}

// fakeChat implements ChatClient in memory. Sent messages are retrievable
// through GetMessage until deleted; ids are allocated sequentially from 1000.
type fakeChat struct {
	mu     sync.Mutex
	nextID discord.Snowflake

	failCreateMessage bool
	interactionMarker bool

	sent       []sentMessage
	threads    []createdThread
	deleted    []discord.Snowflake
	reactions  []reactionCall
	modified   []threadModify
	responses  []interactionReply
	dmChannels map[discord.Snowflake]discord.Snowflake
	store      map[discord.Snowflake]*discord.Message
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		nextID:     1000,
		dmChannels: make(map[discord.Snowflake]discord.Snowflake),
		store:      make(map[discord.Snowflake]*discord.Message),
	}
}

func (f *fakeChat) allocate() discord.Snowflake {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeChat) CreatePrivateChannel(_ context.Context, userID discord.Snowflake) (*discord.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.dmChannels[userID]
	if !ok {
		ch = userID * 100
		f.dmChannels[userID] = ch
	}
	return &discord.Channel{ID: ch, Type: discord.ChannelTypeDM}, nil
}

func (f *fakeChat) CreateForumThread(_ context.Context, forumID discord.Snowflake, params discord.CreateForumThreadParams) (*discord.Channel, discord.Snowflake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	threadID := f.allocate()
	starterID := f.allocate()
	f.threads = append(f.threads, createdThread{ID: threadID, ForumID: forumID, StarterID: starterID, Name: params.Name})
	f.store[starterID] = &discord.Message{ID: starterID, ChannelID: threadID, Embeds: params.Message.Embeds}
	return &discord.Channel{ID: threadID, Type: discord.ChannelTypePublicThread}, starterID, nil
}

func (f *fakeChat) CreateMessage(_ context.Context, channelID discord.Snowflake, params discord.CreateMessageParams) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateMessage {
		return nil, &discord.APIError{Status: http.StatusBadGateway, Method: "POST", Path: "/test"}
	}
	id := f.allocate()
	f.sent = append(f.sent, sentMessage{ID: id, ChannelID: channelID, Params: params})
	f.store[id] = &discord.Message{
		ID:               id,
		ChannelID:        channelID,
		Content:          params.Content,
		Embeds:           params.Embeds,
		MessageReference: params.MessageReference,
	}
	return f.store[id], nil
}

func (f *fakeChat) EditMessage(_ context.Context, channelID, messageID discord.Snowflake, params discord.CreateMessageParams) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.store[messageID]
	if !ok {
		return nil, &discord.APIError{Status: http.StatusNotFound, Method: "PATCH", Path: "/test"}
	}
	msg.Content = params.Content
	msg.Embeds = params.Embeds
	return msg, nil
}

func (f *fakeChat) DeleteMessage(_ context.Context, _, messageID discord.Snowflake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	delete(f.store, messageID)
	return nil
}

func (f *fakeChat) GetMessage(_ context.Context, _, messageID discord.Snowflake) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.store[messageID]
	if !ok {
		return nil, &discord.APIError{Status: http.StatusNotFound, Method: "GET", Path: "/test"}
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeChat) CreateReaction(_ context.Context, channelID, messageID discord.Snowflake, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reactionCall{ChannelID: channelID, MessageID: messageID, Emoji: emoji})
	return nil
}

func (f *fakeChat) DeleteOwnReaction(_ context.Context, channelID, messageID discord.Snowflake, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reactionCall{ChannelID: channelID, MessageID: messageID, Emoji: emoji, Removed: true})
	return nil
}

func (f *fakeChat) ModifyThread(_ context.Context, threadID discord.Snowflake, params discord.ModifyThreadParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modified = append(f.modified, threadModify{ThreadID: threadID, Params: params})
	return nil
}

func (f *fakeChat) CreateInteractionResponse(_ context.Context, interactionID discord.Snowflake, _ string, resp discord.InteractionResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, interactionReply{InteractionID: interactionID, Response: resp})
	return nil
}

func (f *fakeChat) EditInteractionResponse(_ context.Context, _ discord.Snowflake, _ string, data discord.InteractionResponseData) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.allocate()
	msg := &discord.Message{ID: id, Content: data.Content, Embeds: data.Embeds}
	if f.interactionMarker {
		msg.Interaction = &discord.MessageInteraction{ID: id, Name: "reply"}
	}
	f.store[id] = msg
	return msg, nil
}

// messagesTo returns the messages sent to one channel, in order.
func (f *fakeChat) messagesTo(channelID discord.Snowflake) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeChat) archiveCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.modified {
		if m.Params.Archived != nil && *m.Params.Archived {
			n++
		}
	}
	return n
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []discord.Snowflake
}

func (f *fakeGateway) RequestGuildMembers(guildID discord.Snowflake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, guildID)
	return nil
}

type testHarness struct {
	svc     *Service
	chat    *fakeChat
	gateway *fakeGateway
	tickets *persistence.TicketRepository
	links   *persistence.MessageLinkRepository
	cfg     *config.DiscordConfig
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection, one in-memory database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&persistence.TicketModel{}, &persistence.MessageLinkModel{}))

	log := logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))

	chat := newFakeChat()
	gw := &fakeGateway{}
	cfg := &config.DiscordConfig{
		Token:          "test-token",
		GuildID:        1,
		ForumChannelID: 2,
		PingRoleIDs:    []uint64{77},
		OpenMessage:    "A staff member will be with you shortly.",
		CloseMessage:   "This ticket was closed.",
	}

	tickets := persistence.NewTicketRepository(db, log)
	links := persistence.NewMessageLinkRepository(db, log)

	svc := NewService(tickets, links, chat, gw, discord.NewCache(), cfg, 999, log)
	svc.editReactionDelay = time.Millisecond

	return &testHarness{
		svc:     svc,
		chat:    chat,
		gateway: gw,
		tickets: tickets,
		links:   links,
		cfg:     cfg,
	}
}

func dmMessage(user discord.User, id discord.Snowflake, content string) *discord.Message {
	return &discord.Message{
		ID:        id,
		ChannelID: user.ID * 100,
		Author:    user,
		Content:   content,
		Type:      discord.MessageTypeDefault,
	}
}
