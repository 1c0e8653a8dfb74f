package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OmnisXopowo/delta-helper-bot/internal/config"
	"github.com/OmnisXopowo/delta-helper-bot/internal/delta"
	"github.com/OmnisXopowo/delta-helper-bot/internal/login"
	"github.com/OmnisXopowo/delta-helper-bot/internal/storage"
	"github.com/OmnisXopowo/delta-helper-bot/internal/watch"
	"github.com/bwmarrin/discordgo"
)

// Bot represents the Discord bot instance
type Bot struct {
	config    *config.Config
	session   *discordgo.Session
	repo      *storage.Repository
	client    *delta.Client
	flow      *login.Flow
	scheduler *watch.Scheduler
	commands  []*discordgo.ApplicationCommand
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client := delta.NewClient()

	b := &Bot{
		config:  cfg,
		session: session,
		repo:    repo,
		client:  client,
		flow:    login.New(client),
	}

	// Register command handlers
	b.registerHandlers()

	return b, nil
}

// Start opens the Discord connection, bootstraps the watch timers for all
// previously bound accounts, and then registers the command surface.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	watcher := watch.NewWatcher(b.client, b.repo)
	interval := time.Duration(b.config.WatchIntervalSeconds) * time.Second
	b.scheduler = watch.NewScheduler(ctx, watcher, b.client, b.repo, &discordSink{session: b.session}, interval)

	if err := b.scheduler.Bootstrap(ctx); err != nil {
		slog.Error("Failed to bootstrap watch timers", "error", err)
	}

	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	if b.scheduler != nil {
		b.scheduler.Stop()
	}

	if b.repo != nil {
		b.repo.Close()
	}

	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	switch data.Name {
	case "delta-help":
		b.handleHelp(s, i)
	case "delta-login":
		b.handleLogin(s, i)
	case "delta-info":
		b.handleInfo(s, i)
	case "delta-password":
		b.handlePassword(s, i)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}

// discordSink adapts the Discord session to the watch.Sink interface
type discordSink struct {
	session *discordgo.Session
}

func (d *discordSink) SendText(channelID, text string) error {
	_, err := d.session.ChannelMessageSend(channelID, text)
	return err
}
