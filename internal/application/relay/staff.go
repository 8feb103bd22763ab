package relay

import (
	"context"
	"errors"
	"fmt"

	"modmail/internal/domain/ticket"
	"modmail/internal/infrastructure/discord"
	apperrors "modmail/internal/shared/errors"
)

var errNoLinkedMessage = apperrors.NewNotFoundError("no relayed message with that id")

// deleteRelayedMessage removes the DM side of a relayed message on behalf of
// a staff member and annotates the thread-side record.
func (s *Service) deleteRelayedMessage(ctx context.Context, t *ticket.Ticket, threadMsgID discord.Snowflake, actor discord.User) error {
	dmMsgID, err := s.links.ResolveDMMsg(ctx, t.UserID(), threadMsgID.Int64())
	if errors.Is(err, ticket.ErrMessageLinkNotFound) {
		return errNoLinkedMessage
	}
	if err != nil {
		return fmt.Errorf("resolve dm message: %w", err)
	}

	if err := s.chat.DeleteMessage(ctx, discord.SnowflakeFromInt64(t.DMChannelID()), discord.SnowflakeFromInt64(dmMsgID)); err != nil {
		return fmt.Errorf("delete dm message: %w", err)
	}

	s.annotateThreadMessage(ctx, t, threadMsgID, colorRed, fmt.Sprintf("Deleted by %s", actor.Tag()))
	return nil
}

// editRelayedMessage replaces the DM side of a relayed staff reply and
// annotates the thread-side record with the new content.
func (s *Service) editRelayedMessage(ctx context.Context, t *ticket.Ticket, threadMsgID discord.Snowflake, newContent string, actor discord.User) error {
	dmMsgID, err := s.links.ResolveDMMsg(ctx, t.UserID(), threadMsgID.Int64())
	if errors.Is(err, ticket.ErrMessageLinkNotFound) {
		return errNoLinkedMessage
	}
	if err != nil {
		return fmt.Errorf("resolve dm message: %w", err)
	}

	if _, err := s.chat.EditMessage(ctx, discord.SnowflakeFromInt64(t.DMChannelID()), discord.SnowflakeFromInt64(dmMsgID), discord.CreateMessageParams{
		Embeds: []discord.Embed{staffReplyEmbed(actor, newContent)},
	}); err != nil {
		return fmt.Errorf("edit dm message: %w", err)
	}

	s.annotateEditedThreadMessage(ctx, t, threadMsgID, newContent, actor)
	return nil
}

// annotateThreadMessage recolors the thread-side record and adds a footer
// naming who acted. Best-effort; the DM-side change already happened.
func (s *Service) annotateThreadMessage(ctx context.Context, t *ticket.Ticket, threadMsgID discord.Snowflake, color int, footer string) {
	threadID := discord.SnowflakeFromInt64(t.ThreadID())

	msg, err := s.chat.GetMessage(ctx, threadID, threadMsgID)
	if err != nil || len(msg.Embeds) == 0 {
		s.log.Warnw("failed to annotate thread message",
			"thread_msg_id", threadMsgID, "error", err)
		return
	}

	embed := msg.Embeds[0]
	embed.Color = color
	embed.Footer = &discord.EmbedFooter{Text: footer}

	if _, err := s.chat.EditMessage(ctx, threadID, threadMsgID, discord.CreateMessageParams{
		Embeds: []discord.Embed{embed},
	}); err != nil {
		s.log.Warnw("failed to annotate thread message",
			"thread_msg_id", threadMsgID, "error", err)
	}
}

// annotateEditedThreadMessage rewrites the thread-side record after a staff
// edit, keeping the original text in a field.
func (s *Service) annotateEditedThreadMessage(ctx context.Context, t *ticket.Ticket, threadMsgID discord.Snowflake, newContent string, actor discord.User) {
	threadID := discord.SnowflakeFromInt64(t.ThreadID())

	msg, err := s.chat.GetMessage(ctx, threadID, threadMsgID)
	if err != nil || len(msg.Embeds) == 0 {
		s.log.Warnw("failed to annotate edited thread message",
			"thread_msg_id", threadMsgID, "error", err)
		return
	}

	embed := msg.Embeds[0]
	previous := embed.Description
	embed.Description = truncate(newContent, maxEmbedLen)
	embed.Color = colorYellow
	embed.Footer = &discord.EmbedFooter{Text: fmt.Sprintf("Edited by %s", actor.Tag())}
	if previous != "" {
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name:  "Previously",
			Value: truncate(previous, 1024),
		})
	}

	if _, err := s.chat.EditMessage(ctx, threadID, threadMsgID, discord.CreateMessageParams{
		Embeds: []discord.Embed{embed},
	}); err != nil {
		s.log.Warnw("failed to annotate edited thread message",
			"thread_msg_id", threadMsgID, "error", err)
	}
}
