package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"modmail/internal/domain/ticket"
	"modmail/internal/infrastructure/discord"
)

// requiredPermissions are the guild permissions the bot cannot work without.
var requiredPermissions = []struct {
	bit  uint64
	name string
}{
	{discord.PermissionViewChannel, "VIEW_CHANNEL"},
	{discord.PermissionSendMessages, "SEND_MESSAGES"},
	{discord.PermissionSendMessagesInThreads, "SEND_MESSAGES_IN_THREADS"},
	{discord.PermissionManageThreads, "MANAGE_THREADS"},
	{discord.PermissionEmbedLinks, "EMBED_LINKS"},
	{discord.PermissionReadMessageHistory, "READ_MESSAGE_HISTORY"},
	{discord.PermissionViewAuditLog, "VIEW_AUDIT_LOG"},
}

// HandleEvent is the single entry point the dispatcher feeds. Cache state is
// always ingested first; the rest routes by event kind.
func (s *Service) HandleEvent(ctx context.Context, ev *discord.Event) error {
	s.cache.Update(ev)

	switch {
	case ev.Ready != nil:
		s.handleReady(ev.Ready)
		return nil
	case ev.GuildCreate != nil:
		s.handleGuildCreate(ev.GuildCreate)
		return nil
	case ev.MessageCreate != nil:
		return s.HandleMessageCreate(ctx, ev.MessageCreate)
	case ev.MessageUpdate != nil:
		return s.HandleMessageUpdate(ctx, ev.MessageUpdate)
	case ev.MessageDelete != nil:
		return s.HandleMessageDelete(ctx, ev.MessageDelete)
	case ev.ThreadUpdate != nil:
		return s.handleThreadUpdate(ctx, ev.ThreadUpdate)
	case ev.ThreadDelete != nil:
		return s.handleThreadDelete(ctx, ev.ThreadDelete)
	case ev.MemberAdd != nil:
		return s.handleMemberAdd(ctx, ev.MemberAdd)
	case ev.MemberRemove != nil:
		return s.handleMemberRemove(ctx, ev.MemberRemove)
	case ev.AuditLogEntry != nil:
		return s.handleAuditLogEntry(ctx, ev.AuditLogEntry)
	case ev.Interaction != nil:
		return s.HandleInteraction(ctx, ev.Interaction)
	default:
		return nil
	}
}

// handleReady runs the one-shot startup work. Gateway resumes may deliver
// ready again; the member request must not repeat.
func (s *Service) handleReady(ev *discord.ReadyEvent) {
	s.botUserID.Store(ev.User.ID.Int64())

	s.readyOnce.Do(func() {
		s.log.Infow("gateway ready", "bot_user", ev.User.Tag(), "application_id", ev.Application.ID)
		if err := s.gateway.RequestGuildMembers(s.guildID()); err != nil {
			s.log.Warnw("failed to request guild members", "guild_id", s.guildID(), "error", err)
		}
	})
}

// handleGuildCreate warns about missing permissions once the guild's role
// set is known.
func (s *Service) handleGuildCreate(ev *discord.GuildCreateEvent) {
	if ev.ID != s.guildID() && ev.ID != discord.Snowflake(s.cfg.EffectiveForumGuildID()) {
		return
	}

	botID := discord.SnowflakeFromInt64(s.botUserID.Load())
	if botID.IsZero() {
		return
	}
	member, ok := s.cache.Member(ev.ID, botID)
	if !ok {
		return
	}

	var perms uint64
	for _, roleID := range member.Roles {
		role, found := s.cache.Role(roleID)
		if !found {
			continue
		}
		p, err := strconv.ParseUint(role.Permissions, 10, 64)
		if err != nil {
			continue
		}
		perms |= p
	}

	for _, req := range requiredPermissions {
		if perms&req.bit == 0 {
			s.log.Warnw("bot is missing a required permission",
				"guild_id", ev.ID, "permission", req.name)
		}
	}
}

// handleThreadUpdate reverts out-of-band archival of an open ticket's thread.
func (s *Service) handleThreadUpdate(ctx context.Context, ch *discord.Channel) error {
	if ch.ThreadMetadata == nil || (!ch.ThreadMetadata.Archived && !ch.ThreadMetadata.Locked) {
		return nil
	}

	t, err := s.tickets.GetByThread(ctx, ch.ID.Int64())
	if errors.Is(err, ticket.ErrTicketNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up ticket by thread: %w", err)
	}
	if !t.IsOpen() {
		return nil
	}

	s.log.Warnw("thread of an open ticket was archived out of band, reverting",
		"thread_id", ch.ID, "user_id", t.UserID())

	archived, locked := false, false
	if err := s.chat.ModifyThread(ctx, ch.ID, discord.ModifyThreadParams{
		Archived: &archived,
		Locked:   &locked,
	}); err != nil {
		return fmt.Errorf("unarchive thread %s: %w", ch.ID, err)
	}
	return nil
}

// handleThreadDelete ends the ticket permanently. The next DM starts a fresh
// one.
func (s *Service) handleThreadDelete(ctx context.Context, ev *discord.ThreadDeleteEvent) error {
	if err := s.tickets.DeleteByThread(ctx, ev.ID.Int64()); err != nil {
		return fmt.Errorf("delete ticket for thread %s: %w", ev.ID, err)
	}
	s.log.Infow("thread deleted, ticket removed", "thread_id", ev.ID)
	return nil
}

func (s *Service) handleMemberAdd(ctx context.Context, ev *discord.GuildMemberAddEvent) error {
	if ev.GuildID != s.guildID() || ev.User == nil {
		return nil
	}
	return s.postTicketNotice(ctx, ev.User.ID,
		fmt.Sprintf("%s joined the server.", ev.User.Tag()), colorGreen)
}

func (s *Service) handleMemberRemove(ctx context.Context, ev *discord.GuildMemberRemoveEvent) error {
	if ev.GuildID != s.guildID() {
		return nil
	}
	return s.postTicketNotice(ctx, ev.User.ID,
		fmt.Sprintf("%s left the server.", ev.User.Tag()), colorRed)
}

// handleAuditLogEntry relays moderation actions against a ticket's user.
func (s *Service) handleAuditLogEntry(ctx context.Context, ev *discord.AuditLogEntryEvent) error {
	if ev.TargetID.IsZero() {
		return nil
	}

	actor := "unknown moderator"
	if u, ok := s.cache.User(ev.UserID); ok {
		actor = u.Tag()
	}
	reason := ev.Reason
	if reason == "" {
		reason = "no reason given"
	}

	var text string
	switch ev.ActionType {
	case discord.AuditActionMemberKick:
		text = fmt.Sprintf("User was kicked by %s: %s", actor, reason)
	case discord.AuditActionMemberBanAdd:
		text = fmt.Sprintf("User was banned by %s: %s", actor, reason)
	case discord.AuditActionMemberUpdate:
		if !timeoutChanged(ev.Changes) {
			return nil
		}
		text = fmt.Sprintf("User was timed out by %s: %s", actor, reason)
	default:
		return nil
	}

	return s.postTicketNotice(ctx, ev.TargetID, text, colorYellow)
}

// timeoutChanged reports whether an audit member-update set a communication
// timeout rather than clearing one.
func timeoutChanged(changes []discord.AuditLogChange) bool {
	for _, c := range changes {
		if c.Key == "communication_disabled_until" {
			return len(c.NewValue) > 0 && string(c.NewValue) != "null"
		}
	}
	return false
}

// postTicketNotice drops a notice into the user's thread when they have an
// open, unblocked ticket. Users without a ticket are ignored.
func (s *Service) postTicketNotice(ctx context.Context, userID discord.Snowflake, text string, color int) error {
	t, err := s.tickets.GetByUser(ctx, userID.Int64())
	if errors.Is(err, ticket.ErrTicketNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up ticket: %w", err)
	}
	if !t.IsOpen() || t.Blocked() {
		return nil
	}

	if _, err := s.chat.CreateMessage(ctx, discord.SnowflakeFromInt64(t.ThreadID()), discord.CreateMessageParams{
		Embeds: []discord.Embed{noticeEmbed(text, color)},
	}); err != nil {
		return fmt.Errorf("post ticket notice: %w", err)
	}
	return nil
}
