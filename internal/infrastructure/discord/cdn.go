package discord

import "fmt"

const cdnBaseURL = "https://cdn.discordapp.com"

// AvatarURL returns the user's avatar image URL, falling back to the default
// avatar derived from the user id.
func AvatarURL(u User) string {
	if u.Avatar == "" {
		index := uint64(u.ID>>22) % 6
		return fmt.Sprintf("%s/embed/avatars/%d.png", cdnBaseURL, index)
	}
	ext := "png"
	if len(u.Avatar) > 2 && u.Avatar[:2] == "a_" {
		ext = "gif"
	}
	return fmt.Sprintf("%s/avatars/%s/%s.%s", cdnBaseURL, u.ID, u.Avatar, ext)
}

// StickerURL returns the CDN URL for a sticker item. Lottie stickers have no
// rendered image and return "".
func StickerURL(s StickerItem) string {
	switch s.FormatType {
	case 1, 2: // png, apng
		return fmt.Sprintf("%s/stickers/%s.png", cdnBaseURL, s.ID)
	case 4: // gif
		return fmt.Sprintf("%s/stickers/%s.gif", cdnBaseURL, s.ID)
	default:
		return ""
	}
}
