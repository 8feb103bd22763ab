package relay

import (
	"context"
	"errors"
	"fmt"

	"modmail/internal/domain/ticket"
	"modmail/internal/infrastructure/discord"
)

// ensureTicket returns the user's ticket, creating one when absent. Creation
// is serialized per user; losing a creation race falls back to the winner's
// row.
func (s *Service) ensureTicket(ctx context.Context, user discord.User) (*ticket.Ticket, error) {
	unlock := s.lockUser(user.ID.Int64())
	defer unlock()

	t, err := s.tickets.GetByUser(ctx, user.ID.Int64())
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ticket.ErrTicketNotFound) {
		return nil, fmt.Errorf("look up ticket: %w", err)
	}

	return s.createTicket(ctx, user)
}

// createTicket performs the ordered side effects for a new ticket: DM channel
// first, staff thread second, database row last. A failure at any step aborts
// without cleanup of the earlier steps; both platform resources are
// idempotent to recreate.
func (s *Service) createTicket(ctx context.Context, user discord.User) (*ticket.Ticket, error) {
	dm, err := s.chat.CreatePrivateChannel(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("open dm channel for user %s: %w", user.ID, err)
	}

	var member *discord.Member
	if m, ok := s.cache.Member(s.guildID(), user.ID); ok {
		member = &m
	}

	thread, starterID, err := s.chat.CreateForumThread(ctx, s.forumID(), discord.CreateForumThreadParams{
		Name: truncate(user.Tag(), 100),
		Message: discord.CreateMessageParams{
			Embeds: []discord.Embed{userInfoEmbed(user, member)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create staff thread for user %s: %w", user.ID, err)
	}

	// The forum starter message duplicates the announcement posted on open.
	if err := s.chat.DeleteMessage(ctx, thread.ID, starterID); err != nil {
		s.log.Warnw("failed to delete thread starter message",
			"thread_id", thread.ID, "error", err)
	}

	t, err := ticket.NewTicket(user.ID.Int64(), dm.ID.Int64(), thread.ID.Int64())
	if err != nil {
		return nil, fmt.Errorf("build ticket: %w", err)
	}

	if err := s.tickets.Create(ctx, t); err != nil {
		if errors.Is(err, ticket.ErrTicketExists) {
			// Lost a race across processes; the winner's row is authoritative.
			return s.tickets.GetByUser(ctx, user.ID.Int64())
		}
		return nil, fmt.Errorf("persist ticket: %w", err)
	}

	s.log.Infow("created ticket",
		"user_id", user.ID, "dm_channel_id", dm.ID, "thread_id", thread.ID)
	return t, nil
}

// OpenTicket marks the ticket as relaying, optionally notifies the user, and
// announces the ticket to staff. Opening an open ticket is a no-op.
func (s *Service) OpenTicket(ctx context.Context, t *ticket.Ticket, user discord.User, notify bool) error {
	if t.IsOpen() {
		return nil
	}

	if notify && s.cfg.OpenMessage != "" {
		if _, err := s.chat.CreateMessage(ctx, discord.SnowflakeFromInt64(t.DMChannelID()), discord.CreateMessageParams{
			Content: s.cfg.OpenMessage,
		}); err != nil {
			s.log.Warnw("failed to send open notice", "user_id", t.UserID(), "error", err)
		}
	}

	var member *discord.Member
	if m, ok := s.cache.Member(s.guildID(), user.ID); ok {
		member = &m
	}
	if _, err := s.chat.CreateMessage(ctx, discord.SnowflakeFromInt64(t.ThreadID()), discord.CreateMessageParams{
		Content: announcementContent(user.ID, s.cfg.PingRoleIDs),
		Embeds:  []discord.Embed{userInfoEmbed(user, member)},
		AllowedMentions: &discord.AllowedMentions{
			Parse: []string{"roles", "users"},
		},
	}); err != nil {
		s.log.Warnw("failed to announce ticket", "thread_id", t.ThreadID(), "error", err)
	}

	if err := s.tickets.SetOpen(ctx, t.UserID(), true); err != nil {
		return fmt.Errorf("mark ticket open: %w", err)
	}
	t.Open()

	s.log.Infow("opened ticket", "user_id", t.UserID(), "thread_id", t.ThreadID())
	return nil
}

// CloseTicket stops relay, optionally notifies the user, and archives the
// thread. Closing a closed ticket is a no-op.
func (s *Service) CloseTicket(ctx context.Context, t *ticket.Ticket, notify bool) error {
	if !t.IsOpen() {
		return nil
	}

	if notify && s.cfg.CloseMessage != "" {
		if _, err := s.chat.CreateMessage(ctx, discord.SnowflakeFromInt64(t.DMChannelID()), discord.CreateMessageParams{
			Content: s.cfg.CloseMessage,
		}); err != nil {
			s.log.Warnw("failed to send close notice", "user_id", t.UserID(), "error", err)
		}
	}

	if err := s.tickets.SetOpen(ctx, t.UserID(), false); err != nil {
		return fmt.Errorf("mark ticket closed: %w", err)
	}
	t.Close()

	archived := true
	if err := s.chat.ModifyThread(ctx, discord.SnowflakeFromInt64(t.ThreadID()), discord.ModifyThreadParams{
		Archived: &archived,
	}); err != nil {
		s.log.Warnw("failed to archive thread", "thread_id", t.ThreadID(), "error", err)
	}

	s.log.Infow("closed ticket", "user_id", t.UserID(), "thread_id", t.ThreadID())
	return nil
}
