package config

// DiscordConfig holds the chat-platform credentials and the ids of the staff
// guild and forum channel that modmail threads are created in.
type DiscordConfig struct {
	Token          string   `mapstructure:"token" validate:"required"`
	GuildID        uint64   `mapstructure:"guild_id" validate:"required"`
	ForumChannelID uint64   `mapstructure:"forum_channel_id" validate:"required"`
	ForumGuildID   uint64   `mapstructure:"forum_guild_id"`
	PingRoleIDs    []uint64 `mapstructure:"ping_roles"`
	OpenMessage    string   `mapstructure:"open_message" validate:"omitempty,min=1,max=2000"`
	CloseMessage   string   `mapstructure:"close_message" validate:"omitempty,min=1,max=2000"`
}

// EffectiveForumGuildID returns the guild the forum channel lives in. It
// defaults to the staff guild when no separate forum guild is configured.
func (d *DiscordConfig) EffectiveForumGuildID() uint64 {
	if d.ForumGuildID != 0 {
		return d.ForumGuildID
	}
	return d.GuildID
}

type DatabaseConfig struct {
	Path            string `mapstructure:"path" validate:"required"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}
