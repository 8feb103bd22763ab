package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"modmail/internal/application/relay"
	"modmail/internal/infrastructure/config"
	"modmail/internal/infrastructure/database"
	"modmail/internal/infrastructure/discord"
	"modmail/internal/infrastructure/persistence"
	"modmail/internal/shared/logger"
	"modmail/internal/shared/tasks"
	"modmail/internal/shared/version"
)

const startupTimeout = 60 * time.Second

func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the modmail bot",
		Long:  `Connect to the chat platform and relay messages between user DMs and staff threads until interrupted.`,
		RunE:  run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	log.Infow("starting modmail",
		"version", version.String(),
		"guild_id", cfg.Discord.GuildID,
		"forum_channel_id", cfg.Discord.ForumChannelID)

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if err := persistence.Migrate(database.Get()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	client := discord.NewClient(cfg.Discord.Token, log.Named("discord"))

	bot, err := client.CurrentUser(startCtx)
	if err != nil {
		return fmt.Errorf("failed to identify bot account: %w", err)
	}
	app, err := client.CurrentApplication(startCtx)
	if err != nil {
		return fmt.Errorf("failed to identify application: %w", err)
	}
	log.Infow("authenticated", "bot_user", bot.Tag(), "application_id", app.ID)

	if err := client.SetGuildCommands(startCtx, app.ID, discord.Snowflake(cfg.Discord.GuildID), relay.CommandSet()); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	gatewayURL, err := client.GatewayURL(startCtx)
	if err != nil {
		return fmt.Errorf("failed to discover gateway: %w", err)
	}
	gateway, err := discord.ConnectGateway(startCtx, gatewayURL, cfg.Discord.Token, log.Named("gateway"))
	if err != nil {
		return fmt.Errorf("failed to connect gateway: %w", err)
	}
	defer gateway.Close()

	service := relay.NewService(
		persistence.NewTicketRepository(database.Get(), log.Named("tickets")),
		persistence.NewMessageLinkRepository(database.Get(), log.Named("links")),
		client,
		gateway,
		discord.NewCache(),
		&cfg.Discord,
		app.ID,
		log.Named("relay"),
	)

	dispatcher := relay.NewDispatcher(gateway, service, tasks.NewTracker(), log.Named("dispatcher"))

	log.Infow("relay running")
	if err := dispatcher.Run(ctx); err != nil {
		return fmt.Errorf("relay stopped: %w", err)
	}

	log.Infow("shut down cleanly")
	return nil
}
