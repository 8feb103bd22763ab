package relay

import (
	"fmt"
	"strings"
	"time"

	"modmail/internal/infrastructure/discord"
)

// Embed accent colors.
const (
	colorBlank   = 0x2B2D31
	colorBlurple = 0x5865F2
	colorGreen   = 0x57F287
	colorYellow  = 0xFEE75C
	colorRed     = 0xED4245
)

const (
	emojiIncoming = "\U0001F4E8"   // incoming envelope
	emojiEdit     = "\u270F\uFE0F" // pencil
)

const (
	maxMessageLen = 2000
	maxEmbedLen   = 4096
)

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func relativeTimestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

func embedAuthor(u discord.User) *discord.EmbedAuthor {
	return &discord.EmbedAuthor{
		Name:    u.Tag(),
		IconURL: discord.AvatarURL(u),
	}
}

// userMessageEmbed mirrors a DM message body into the staff thread.
func userMessageEmbed(author discord.User, content string, stickers []discord.StickerItem) discord.Embed {
	e := discord.Embed{
		Author:      embedAuthor(author),
		Description: truncate(content, maxEmbedLen),
		Color:       colorBlank,
	}
	for _, s := range stickers {
		if url := discord.StickerURL(s); url != "" && e.Image == nil {
			e.Image = &discord.EmbedImage{URL: url}
		}
		e.Fields = append(e.Fields, discord.EmbedField{
			Name:   "Sticker",
			Value:  s.Name,
			Inline: true,
		})
	}
	return e
}

// editedEmbed is the follow-up posted when the user edits a relayed message.
func editedEmbed(author discord.User, newContent string) discord.Embed {
	return discord.Embed{
		Author:      embedAuthor(author),
		Title:       "Message edited",
		Description: truncate(newContent, maxEmbedLen),
		Color:       colorYellow,
	}
}

// deletedNoticeEmbed preserves the text of a deleted DM message.
func deletedNoticeEmbed(original string) discord.Embed {
	return discord.Embed{
		Title:       "Message deleted",
		Description: truncate(original, maxEmbedLen),
		Color:       colorRed,
	}
}

// staffReplyEmbed wraps a staff reply for both the user DM and the thread
// record.
func staffReplyEmbed(staff discord.User, content string) discord.Embed {
	return discord.Embed{
		Author:      embedAuthor(staff),
		Description: truncate(content, maxEmbedLen),
		Color:       colorGreen,
	}
}

func noticeEmbed(text string, color int) discord.Embed {
	return discord.Embed{
		Description: text,
		Color:       color,
	}
}

// userInfoEmbed is the account snapshot posted on ticket open and via /info.
func userInfoEmbed(u discord.User, member *discord.Member) discord.Embed {
	e := discord.Embed{
		Author:    embedAuthor(u),
		Color:     colorBlurple,
		Thumbnail: &discord.EmbedImage{URL: discord.AvatarURL(u)},
		Fields: []discord.EmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s>", u.ID), Inline: true},
			{Name: "ID", Value: u.ID.String(), Inline: true},
			{Name: "Registered", Value: relativeTimestamp(u.ID.Timestamp()), Inline: true},
		},
	}
	if member != nil {
		e.Fields = append(e.Fields, discord.EmbedField{
			Name:   "Joined",
			Value:  relativeTimestamp(member.JoinedAt),
			Inline: true,
		})
		if len(member.Roles) > 0 {
			mentions := make([]string, 0, len(member.Roles))
			for _, r := range member.Roles {
				mentions = append(mentions, fmt.Sprintf("<@&%s>", r))
			}
			e.Fields = append(e.Fields, discord.EmbedField{
				Name:  "Roles",
				Value: truncate(strings.Join(mentions, " "), 1024),
			})
		}
	}
	return e
}

// attachmentsContent lists attachment URLs for the separate attachments
// message.
func attachmentsContent(attachments []discord.Attachment) string {
	var b strings.Builder
	b.WriteString("**Attachments:**")
	for _, a := range attachments {
		b.WriteString("\n")
		b.WriteString(a.URL)
	}
	return truncate(b.String(), maxMessageLen)
}

// announcementContent builds the staff ping line for a newly opened ticket.
func announcementContent(userID discord.Snowflake, pingRoles []uint64) string {
	var b strings.Builder
	for _, r := range pingRoles {
		fmt.Fprintf(&b, "<@&%d> ", r)
	}
	fmt.Fprintf(&b, "<@%s>", userID)
	return b.String()
}

// dmMessageURL is the jump link to a message in the user's DM channel.
func dmMessageURL(channelID, messageID discord.Snowflake) string {
	return fmt.Sprintf("https://discord.com/channels/@me/%s/%s", channelID, messageID)
}
