package relay

import (
	"context"
	"errors"
	"fmt"

	"modmail/internal/domain/ticket"
	"modmail/internal/infrastructure/discord"
	apperrors "modmail/internal/shared/errors"
	"modmail/internal/shared/version"
)

// CommandSet is the application command surface registered on startup.
func CommandSet() []discord.Command {
	maxContent := maxMessageLen
	return []discord.Command{
		{
			Name:        "reply",
			Description: "Reply to the user of this modmail ticket",
			Options: []discord.CommandOption{
				{Type: discord.OptionTypeString, Name: "content", Description: "Message to send", Required: true, MaxLength: &maxContent},
			},
		},
		{
			Name:        "close",
			Description: "Close this modmail ticket",
			Options: []discord.CommandOption{
				{Type: discord.OptionTypeBoolean, Name: "silent", Description: "Skip the close notice to the user"},
			},
		},
		{
			Name:        "delete",
			Description: "Delete a previously relayed reply",
			Options: []discord.CommandOption{
				{Type: discord.OptionTypeString, Name: "id", Description: "Thread message id of the reply", Required: true},
			},
		},
		{
			Name:        "edit",
			Description: "Edit a previously relayed reply",
			Options: []discord.CommandOption{
				{Type: discord.OptionTypeString, Name: "id", Description: "Thread message id of the reply", Required: true},
				{Type: discord.OptionTypeString, Name: "to", Description: "New message content", Required: true, MaxLength: &maxContent},
			},
		},
		{
			Name:        "link",
			Description: "Link to the DM side of a relayed message",
			Options: []discord.CommandOption{
				{Type: discord.OptionTypeString, Name: "id", Description: "Thread message id", Required: true},
			},
		},
		{
			Name:        "info",
			Description: "Show account details for this ticket's user",
		},
		{
			Name:        "modmail",
			Description: "Open a modmail ticket with the staff team",
		},
		{
			Name:        "ping",
			Description: "Check that the bot is alive",
		},
		{
			Name:        "about",
			Description: "About this bot",
		},
	}
}

// HandleInteraction routes a slash command invocation. Every path produces a
// response; malformed input gets an ephemeral validation message.
func (s *Service) HandleInteraction(ctx context.Context, i *discord.Interaction) error {
	if i.Type == discord.InteractionTypePing {
		return s.chat.CreateInteractionResponse(ctx, i.ID, i.Token, discord.InteractionResponse{
			Type: discord.InteractionResponsePong,
		})
	}
	if i.Type != discord.InteractionTypeApplicationCommand || i.Data == nil {
		return nil
	}

	switch i.Data.Name {
	case "ping":
		return s.respondText(ctx, i, "Pong!", true)
	case "about":
		return s.respondEmbed(ctx, i, aboutEmbed(), true)
	case "modmail":
		return s.cmdModmail(ctx, i)
	}

	// Everything else only makes sense inside a modmail thread.
	t, err := s.tickets.GetByThread(ctx, i.ChannelID.Int64())
	if errors.Is(err, ticket.ErrTicketNotFound) {
		return s.respondText(ctx, i, "This command can only be used in a modmail thread.", true)
	}
	if err != nil {
		return fmt.Errorf("look up ticket by thread: %w", err)
	}

	switch i.Data.Name {
	case "reply":
		return s.cmdReply(ctx, i, t)
	case "close":
		return s.cmdClose(ctx, i, t)
	case "delete":
		return s.cmdDelete(ctx, i, t)
	case "edit":
		return s.cmdEdit(ctx, i, t)
	case "link":
		return s.cmdLink(ctx, i, t)
	case "info":
		return s.cmdInfo(ctx, i, t)
	default:
		return s.respondText(ctx, i, "Unknown command.", true)
	}
}

func (s *Service) cmdReply(ctx context.Context, i *discord.Interaction, t *ticket.Ticket) error {
	opt, ok := i.Data.Option("content")
	content := opt.StringValue()
	if !ok || content == "" {
		return s.respondText(ctx, i, "A message is required.", true)
	}
	if t.Blocked() {
		return s.respondText(ctx, i, "This user is blocked; replies are not delivered.", true)
	}
	if !t.IsOpen() {
		return s.respondText(ctx, i, "This ticket is closed. The user will not receive replies.", true)
	}

	if err := s.deferResponse(ctx, i); err != nil {
		return fmt.Errorf("defer reply response: %w", err)
	}

	actor := i.Sender()
	embed := staffReplyEmbed(actor, content)

	dmMsg, err := s.chat.CreateMessage(ctx, discord.SnowflakeFromInt64(t.DMChannelID()), discord.CreateMessageParams{
		Embeds: []discord.Embed{embed},
	})
	if err != nil {
		s.log.Warnw("failed to deliver reply", "user_id", t.UserID(), "error", err)
		return s.finalizeText(ctx, i, "Could not deliver the reply to the user.")
	}

	record, err := s.finalizeEmbed(ctx, i, embed)
	if err != nil {
		return fmt.Errorf("record reply in thread: %w", err)
	}

	link, err := ticket.NewMessageLink(t.UserID(), dmMsg.ID.Int64(), record.ID.Int64())
	if err != nil {
		return fmt.Errorf("build reply link: %w", err)
	}
	if err := s.links.Create(ctx, link); err != nil {
		return fmt.Errorf("persist reply link: %w", err)
	}
	return nil
}

func (s *Service) cmdClose(ctx context.Context, i *discord.Interaction, t *ticket.Ticket) error {
	silent := false
	if opt, ok := i.Data.Option("silent"); ok {
		silent = opt.BoolValue()
	}

	if !t.IsOpen() {
		return s.respondText(ctx, i, "This ticket is already closed.", true)
	}

	// Respond before archiving so the closing note lands inside the thread.
	if err := s.respondEmbed(ctx, i, noticeEmbed(fmt.Sprintf("Ticket closed by %s.", i.Sender().Tag()), colorRed), false); err != nil {
		return fmt.Errorf("acknowledge close: %w", err)
	}
	return s.CloseTicket(ctx, t, !silent)
}

func (s *Service) cmdDelete(ctx context.Context, i *discord.Interaction, t *ticket.Ticket) error {
	id, err := s.messageIDOption(i)
	if err != nil {
		return s.respondText(ctx, i, validationMessage(err), true)
	}
	if err := s.deleteRelayedMessage(ctx, t, id, i.Sender()); err != nil {
		if errors.Is(err, errNoLinkedMessage) {
			return s.respondText(ctx, i, "No relayed message with that id.", true)
		}
		s.log.Warnw("failed to delete relayed message", "thread_msg_id", id, "error", err)
		return s.respondText(ctx, i, "Could not delete that message.", true)
	}
	return s.respondText(ctx, i, "Message deleted.", true)
}

func (s *Service) cmdEdit(ctx context.Context, i *discord.Interaction, t *ticket.Ticket) error {
	id, err := s.messageIDOption(i)
	if err != nil {
		return s.respondText(ctx, i, validationMessage(err), true)
	}
	opt, ok := i.Data.Option("to")
	newContent := opt.StringValue()
	if !ok || newContent == "" {
		return s.respondText(ctx, i, "Replacement content is required.", true)
	}
	if err := s.editRelayedMessage(ctx, t, id, newContent, i.Sender()); err != nil {
		if errors.Is(err, errNoLinkedMessage) {
			return s.respondText(ctx, i, "No relayed message with that id.", true)
		}
		s.log.Warnw("failed to edit relayed message", "thread_msg_id", id, "error", err)
		return s.respondText(ctx, i, "Could not edit that message.", true)
	}
	return s.respondText(ctx, i, "Message edited.", true)
}

func (s *Service) cmdLink(ctx context.Context, i *discord.Interaction, t *ticket.Ticket) error {
	id, err := s.messageIDOption(i)
	if err != nil {
		return s.respondText(ctx, i, validationMessage(err), true)
	}
	dmMsgID, err := s.links.ResolveDMMsg(ctx, t.UserID(), id.Int64())
	if errors.Is(err, ticket.ErrMessageLinkNotFound) {
		return s.respondText(ctx, i, "No relayed message with that id.", true)
	}
	if err != nil {
		return fmt.Errorf("resolve dm message: %w", err)
	}
	url := dmMessageURL(discord.SnowflakeFromInt64(t.DMChannelID()), discord.SnowflakeFromInt64(dmMsgID))
	return s.respondText(ctx, i, url, true)
}

func (s *Service) cmdInfo(ctx context.Context, i *discord.Interaction, t *ticket.Ticket) error {
	userID := discord.SnowflakeFromInt64(t.UserID())
	u, ok := s.cache.User(userID)
	if !ok {
		u = discord.User{ID: userID, Username: userID.String()}
	}
	var member *discord.Member
	if m, found := s.cache.Member(s.guildID(), userID); found {
		member = &m
	}
	return s.respondEmbed(ctx, i, userInfoEmbed(u, member), false)
}

// cmdModmail lets a user open a ticket without sending a first message.
func (s *Service) cmdModmail(ctx context.Context, i *discord.Interaction) error {
	user := i.Sender()
	if user.ID.IsZero() {
		return s.respondText(ctx, i, "Could not identify you. Try sending the bot a direct message instead.", true)
	}

	t, err := s.ensureTicket(ctx, user)
	if err != nil {
		s.log.Warnw("failed to open ticket via command", "user_id", user.ID, "error", err)
		return s.respondText(ctx, i, "Could not reach the staff team. Try sending the bot a direct message instead.", true)
	}
	if t.Blocked() {
		return s.respondText(ctx, i, "You cannot open a modmail ticket.", true)
	}
	if err := s.OpenTicket(ctx, t, user, true); err != nil {
		return fmt.Errorf("open ticket via command: %w", err)
	}
	return s.respondText(ctx, i, "The staff team has been notified. Check your direct messages.", true)
}

func (s *Service) messageIDOption(i *discord.Interaction) (discord.Snowflake, error) {
	opt, ok := i.Data.Option("id")
	if !ok {
		return 0, apperrors.NewValidationError("A message id is required.")
	}
	id, err := discord.ParseSnowflake(opt.StringValue())
	if err != nil {
		return 0, apperrors.NewValidationError("That is not a valid message id.")
	}
	return id, nil
}

// validationMessage extracts the user-facing text of a validation failure.
func validationMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeValidation {
		return appErr.Message
	}
	return "Invalid input."
}

func (s *Service) respondText(ctx context.Context, i *discord.Interaction, content string, ephemeral bool) error {
	data := &discord.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discord.MessageFlagEphemeral
	}
	return s.chat.CreateInteractionResponse(ctx, i.ID, i.Token, discord.InteractionResponse{
		Type: discord.InteractionResponseChannelMessage,
		Data: data,
	})
}

func (s *Service) respondEmbed(ctx context.Context, i *discord.Interaction, embed discord.Embed, ephemeral bool) error {
	data := &discord.InteractionResponseData{Embeds: []discord.Embed{embed}}
	if ephemeral {
		data.Flags = discord.MessageFlagEphemeral
	}
	return s.chat.CreateInteractionResponse(ctx, i.ID, i.Token, discord.InteractionResponse{
		Type: discord.InteractionResponseChannelMessage,
		Data: data,
	})
}

func (s *Service) deferResponse(ctx context.Context, i *discord.Interaction) error {
	return s.chat.CreateInteractionResponse(ctx, i.ID, i.Token, discord.InteractionResponse{
		Type: discord.InteractionResponseDeferredMessage,
	})
}

func (s *Service) finalizeText(ctx context.Context, i *discord.Interaction, content string) error {
	_, err := s.chat.EditInteractionResponse(ctx, s.applicationID, i.Token, discord.InteractionResponseData{
		Content: content,
	})
	return err
}

func (s *Service) finalizeEmbed(ctx context.Context, i *discord.Interaction, embed discord.Embed) (*discord.Message, error) {
	return s.chat.EditInteractionResponse(ctx, s.applicationID, i.Token, discord.InteractionResponseData{
		Embeds: []discord.Embed{embed},
	})
}

func aboutEmbed() discord.Embed {
	return discord.Embed{
		Title:       "Modmail",
		Description: "Relays direct messages to the staff team and staff replies back, one private thread per user.",
		Color:       colorBlurple,
		Footer:      &discord.EmbedFooter{Text: version.String()},
	}
}
