// Package relay implements the modmail application service: ticket lifecycle,
// bidirectional message forwarding between a user's DM channel and a staff
// forum thread, slash command handling, and the event dispatcher.
package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"modmail/internal/domain/ticket"
	"modmail/internal/infrastructure/discord"
	"modmail/internal/shared/config"
	"modmail/internal/shared/logger"
)

// ChatClient is the REST surface the relay needs from the chat platform.
type ChatClient interface {
	CreatePrivateChannel(ctx context.Context, userID discord.Snowflake) (*discord.Channel, error)
	CreateForumThread(ctx context.Context, forumID discord.Snowflake, params discord.CreateForumThreadParams) (*discord.Channel, discord.Snowflake, error)
	CreateMessage(ctx context.Context, channelID discord.Snowflake, params discord.CreateMessageParams) (*discord.Message, error)
	EditMessage(ctx context.Context, channelID, messageID discord.Snowflake, params discord.CreateMessageParams) (*discord.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID discord.Snowflake) error
	GetMessage(ctx context.Context, channelID, messageID discord.Snowflake) (*discord.Message, error)
	CreateReaction(ctx context.Context, channelID, messageID discord.Snowflake, emoji string) error
	DeleteOwnReaction(ctx context.Context, channelID, messageID discord.Snowflake, emoji string) error
	ModifyThread(ctx context.Context, threadID discord.Snowflake, params discord.ModifyThreadParams) error
	CreateInteractionResponse(ctx context.Context, interactionID discord.Snowflake, token string, resp discord.InteractionResponse) error
	EditInteractionResponse(ctx context.Context, applicationID discord.Snowflake, token string, data discord.InteractionResponseData) (*discord.Message, error)
}

// GatewayCommander is the command surface of the live gateway session.
type GatewayCommander interface {
	RequestGuildMembers(guildID discord.Snowflake) error
}

// Service coordinates tickets, message links, and the chat platform.
type Service struct {
	tickets ticket.TicketRepository
	links   ticket.MessageLinkRepository
	chat    ChatClient
	gateway GatewayCommander
	cache   *discord.Cache
	cfg     *config.DiscordConfig
	log     logger.Interface

	applicationID discord.Snowflake
	botUserID     atomic.Int64

	// editReactionDelay is how long the transient edit reaction stays on an
	// edited DM message.
	editReactionDelay time.Duration

	// readyOnce gates the startup work triggered by the first ready event;
	// gateway resumes may deliver it again.
	readyOnce sync.Once

	// userLocks serializes ticket creation per user so concurrent first
	// messages produce exactly one ticket. Entries are never removed; the
	// map is bounded by the number of distinct users seen.
	userLocks sync.Map
}

func NewService(
	tickets ticket.TicketRepository,
	links ticket.MessageLinkRepository,
	chat ChatClient,
	gateway GatewayCommander,
	cache *discord.Cache,
	cfg *config.DiscordConfig,
	applicationID discord.Snowflake,
	log logger.Interface,
) *Service {
	return &Service{
		tickets:           tickets,
		links:             links,
		chat:              chat,
		gateway:           gateway,
		cache:             cache,
		cfg:               cfg,
		applicationID:     applicationID,
		editReactionDelay: 2 * time.Second,
		log:               log,
	}
}

func (s *Service) lockUser(userID int64) func() {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) guildID() discord.Snowflake {
	return discord.Snowflake(s.cfg.GuildID)
}

func (s *Service) forumID() discord.Snowflake {
	return discord.Snowflake(s.cfg.ForumChannelID)
}
