package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"modmail/internal/domain/ticket"
	"modmail/internal/infrastructure/discord"
)

// relayable reports whether a message participates in forwarding at all.
// Bot authors, guild messages, and non-regular message kinds never do.
func relayable(msg *discord.Message) bool {
	if msg.Author.Bot {
		return false
	}
	if !msg.GuildID.IsZero() {
		return false
	}
	return msg.Type == discord.MessageTypeDefault || msg.Type == discord.MessageTypeReply
}

// HandleMessageCreate forwards a new DM message into the staff thread,
// creating and opening the ticket when needed.
func (s *Service) HandleMessageCreate(ctx context.Context, msg *discord.Message) error {
	if !relayable(msg) {
		return nil
	}

	t, err := s.ensureTicket(ctx, msg.Author)
	if err != nil {
		// The user expects a response; tell them the message did not arrive.
		s.notifyDeliveryFailure(ctx, msg.ChannelID, msg.ID)
		return fmt.Errorf("ensure ticket for user %s: %w", msg.Author.ID, err)
	}
	if t.Blocked() {
		return nil
	}
	if err := s.OpenTicket(ctx, t, msg.Author, true); err != nil {
		s.notifyDeliveryFailure(ctx, msg.ChannelID, msg.ID)
		return fmt.Errorf("open ticket for user %s: %w", msg.Author.ID, err)
	}

	threadID := discord.SnowflakeFromInt64(t.ThreadID())

	params := discord.CreateMessageParams{
		Embeds: []discord.Embed{userMessageEmbed(msg.Author, msg.Content, msg.StickerItems)},
	}
	if msg.MessageReference != nil && !msg.MessageReference.MessageID.IsZero() {
		resolved, err := s.links.ResolveThreadMsg(ctx, t.UserID(), msg.MessageReference.MessageID.Int64())
		switch {
		case err == nil:
			params.MessageReference = &discord.MessageReference{
				MessageID: discord.SnowflakeFromInt64(resolved),
			}
		case errors.Is(err, ticket.ErrMessageLinkNotFound):
			// Replying to something that was never relayed; mirror without
			// the reference.
		default:
			return fmt.Errorf("resolve reply target: %w", err)
		}
	}

	mirror, err := s.chat.CreateMessage(ctx, threadID, params)
	if err != nil {
		s.notifyDeliveryFailure(ctx, msg.ChannelID, msg.ID)
		return fmt.Errorf("mirror message %s: %w", msg.ID, err)
	}

	if len(msg.Attachments) > 0 {
		if _, err := s.chat.CreateMessage(ctx, threadID, discord.CreateMessageParams{
			Content: attachmentsContent(msg.Attachments),
		}); err != nil {
			s.log.Warnw("failed to forward attachments",
				"dm_msg_id", msg.ID, "error", err)
		}
	}

	if err := s.chat.CreateReaction(ctx, msg.ChannelID, msg.ID, emojiIncoming); err != nil {
		s.log.Warnw("failed to acknowledge message", "dm_msg_id", msg.ID, "error", err)
	}

	link, err := ticket.NewMessageLink(t.UserID(), msg.ID.Int64(), mirror.ID.Int64())
	if err != nil {
		return fmt.Errorf("build message link: %w", err)
	}
	if err := s.links.Create(ctx, link); err != nil {
		return fmt.Errorf("persist message link: %w", err)
	}
	return nil
}

// HandleMessageUpdate appends an annotated follow-up for an edited DM
// message. The original mirror is never edited in place; lookups are
// redirected to the follow-up.
func (s *Service) HandleMessageUpdate(ctx context.Context, msg *discord.Message) error {
	if !relayable(msg) || msg.Content == "" {
		return nil
	}

	t, err := s.tickets.GetByUser(ctx, msg.Author.ID.Int64())
	if errors.Is(err, ticket.ErrTicketNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up ticket: %w", err)
	}
	if !t.IsOpen() || t.Blocked() {
		return nil
	}

	resolved, err := s.links.ResolveThreadMsg(ctx, t.UserID(), msg.ID.Int64())
	if errors.Is(err, ticket.ErrMessageLinkNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve edited message: %w", err)
	}

	followUp, err := s.chat.CreateMessage(ctx, discord.SnowflakeFromInt64(t.ThreadID()), discord.CreateMessageParams{
		Embeds: []discord.Embed{editedEmbed(msg.Author, msg.Content)},
		MessageReference: &discord.MessageReference{
			MessageID: discord.SnowflakeFromInt64(resolved),
		},
	})
	if err != nil {
		return fmt.Errorf("post edit follow-up: %w", err)
	}

	if err := s.links.RecordThreadUpdate(ctx, t.UserID(), msg.ID.Int64(), followUp.ID.Int64()); err != nil {
		return fmt.Errorf("record edit redirect: %w", err)
	}

	s.transientEditReaction(ctx, msg.ChannelID, msg.ID)
	return nil
}

// transientEditReaction briefly marks the edited DM message so the user sees
// the edit was picked up. Entirely best-effort.
func (s *Service) transientEditReaction(ctx context.Context, channelID, messageID discord.Snowflake) {
	if err := s.chat.CreateReaction(ctx, channelID, messageID, emojiEdit); err != nil {
		s.log.Debugw("failed to add edit reaction", "dm_msg_id", messageID, "error", err)
		return
	}

	select {
	case <-time.After(s.editReactionDelay):
	case <-ctx.Done():
		return
	}

	if err := s.chat.DeleteOwnReaction(ctx, channelID, messageID, emojiEdit); err != nil {
		s.log.Debugw("failed to remove edit reaction", "dm_msg_id", messageID, "error", err)
	}
}

// HandleMessageDelete removes the mapping for a deleted DM message and posts
// a deletion notice, unless the mirrored message was produced by a command
// invocation.
func (s *Service) HandleMessageDelete(ctx context.Context, ev *discord.MessageDeleteEvent) error {
	if !ev.GuildID.IsZero() {
		return nil
	}

	t, err := s.tickets.GetByDMChannel(ctx, ev.ChannelID.Int64())
	if errors.Is(err, ticket.ErrTicketNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up ticket by dm channel: %w", err)
	}
	if !t.IsOpen() || t.Blocked() {
		return nil
	}

	resolved, err := s.links.DeleteResolving(ctx, t.UserID(), ev.ID.Int64())
	if errors.Is(err, ticket.ErrMessageLinkNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete message link: %w", err)
	}

	threadID := discord.SnowflakeFromInt64(t.ThreadID())
	resolvedID := discord.SnowflakeFromInt64(resolved)

	var original string
	mirrored, err := s.chat.GetMessage(ctx, threadID, resolvedID)
	if err == nil {
		if mirrored.Interaction != nil {
			// Command responses vanish on their own terms; no notice.
			return nil
		}
		if len(mirrored.Embeds) > 0 {
			original = mirrored.Embeds[0].Description
		}
	} else {
		s.log.Warnw("failed to fetch mirrored message for delete notice",
			"thread_msg_id", resolvedID, "error", err)
	}

	if _, err := s.chat.CreateMessage(ctx, threadID, discord.CreateMessageParams{
		Embeds: []discord.Embed{deletedNoticeEmbed(original)},
		MessageReference: &discord.MessageReference{
			MessageID: resolvedID,
		},
	}); err != nil {
		return fmt.Errorf("post delete notice: %w", err)
	}
	return nil
}

// notifyDeliveryFailure tells the user their message was not relayed.
func (s *Service) notifyDeliveryFailure(ctx context.Context, channelID, messageID discord.Snowflake) {
	if _, err := s.chat.CreateMessage(ctx, channelID, discord.CreateMessageParams{
		Content: "Your message could not be delivered to the staff team. Please try again.",
		MessageReference: &discord.MessageReference{
			MessageID: messageID,
		},
	}); err != nil {
		s.log.Warnw("failed to notify delivery failure", "channel_id", channelID, "error", err)
	}
}
