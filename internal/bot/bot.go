// Package bot connects the engine to a Discord guild.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/bot/commands"
	"github.com/jensholdgaard/trinity/internal/config"
	"github.com/jensholdgaard/trinity/internal/economy"
	"github.com/jensholdgaard/trinity/internal/game"
)

// Bot wraps the Discord session, command handlers and membership sync.
type Bot struct {
	session  *discordgo.Session
	cfg      config.DiscordConfig
	econ     *economy.Manager
	logger   *slog.Logger
	tracer   trace.Tracer
	handlers *commands.Handlers
	cmds     []*discordgo.ApplicationCommand
}

// New creates a new Bot instance.
func New(cfg config.DiscordConfig, econ *economy.Manager, handlers *commands.Handlers, logger *slog.Logger, tp trace.TracerProvider) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	return &Bot{
		session:  session,
		cfg:      cfg,
		econ:     econ,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jensholdgaard/trinity/internal/bot"),
		handlers: handlers,
	}, nil
}

// Start opens the Discord connection and registers slash commands.
func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.InfoContext(ctx, "bot is ready", slog.String("user", s.State.User.Username))
	})
	b.session.AddHandler(b.handlers.InteractionCreate)
	b.session.AddHandler(b.guildCreate)
	b.session.AddHandler(b.memberAdd)
	b.session.AddHandler(b.roleCreate)
	b.session.AddHandler(b.roleDelete)
	b.handlers.SetNotifier(b.notify)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, b.handlers.SlashCommands())
	if err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.cmds = registered

	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))
	return nil
}

// Stop gracefully closes the Discord connection.
func (b *Bot) Stop() error {
	b.handlers.SetNotifier(nil)
	// Remove slash commands on shutdown (optional for dev).
	for _, cmd := range b.cmds {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.cfg.GuildID, cmd.ID); err != nil {
			b.logger.Error("failed to delete command", slog.String("command", cmd.Name), slog.Any("error", err))
		}
	}
	return b.session.Close()
}

func (b *Bot) notify(channelID, msg string) {
	if _, err := b.session.ChannelMessageSend(channelID, msg); err != nil {
		b.logger.Warn("sending message", slog.String("channel", channelID), slog.Any("error", err))
	}
}

// guildCreate reconciles player records and income buckets with the guild
// once the full guild is received.
func (b *Bot) guildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil {
		return
	}
	ctx, span := b.tracer.Start(context.Background(), "Bot.guildCreate",
		trace.WithAttributes(attribute.String("guild_id", g.ID)))
	defer span.End()

	created, err := b.econ.SyncMembers(ctx, MemberIDs(g.Members))
	if err != nil {
		b.logger.ErrorContext(ctx, "syncing members", slog.Any("error", err))
	}
	added, removed, err := b.econ.SyncRoles(ctx, RoleIDs(g.Roles))
	if err != nil {
		b.logger.ErrorContext(ctx, "syncing roles", slog.Any("error", err))
	}
	b.logger.InfoContext(ctx, "guild synchronised",
		slog.String("guild", g.Name),
		slog.Int("players_created", created),
		slog.Int("roles_added", added),
		slog.Int("roles_removed", removed),
	)
}

func (b *Bot) memberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil || m.User.Bot {
		return
	}
	ctx, span := b.tracer.Start(context.Background(), "Bot.memberAdd",
		trace.WithAttributes(attribute.String("user_id", m.User.ID)))
	defer span.End()

	id, err := game.ParseID(m.User.ID)
	if err != nil {
		return
	}
	created, err := b.econ.EnsurePlayer(ctx, id)
	if err != nil {
		b.logger.ErrorContext(ctx, "registering member", slog.Any("error", err))
		return
	}
	if !created {
		return
	}
	settings, err := b.econ.Settings(ctx)
	if err != nil {
		return
	}
	if settings.DefaultRole != "" {
		if guild, gerr := s.State.Guild(m.GuildID); gerr == nil {
			if rid := FindRole(guild.Roles, settings.DefaultRole); rid != "" {
				if err := s.GuildMemberRoleAdd(m.GuildID, m.User.ID, rid); err != nil {
					b.logger.WarnContext(ctx, "assigning default role", slog.Any("error", err))
				}
			}
		}
	}
	if settings.JoinDM != "" {
		ch, err := s.UserChannelCreate(m.User.ID)
		if err != nil {
			b.logger.WarnContext(ctx, "opening DM channel", slog.Any("error", err))
			return
		}
		b.notify(ch.ID, settings.JoinDM)
	}
}

func (b *Bot) roleCreate(s *discordgo.Session, r *discordgo.GuildRoleCreate) {
	if r.GuildRole == nil || r.Role == nil {
		return
	}
	b.roleChange(r.Role.ID, true)
}

func (b *Bot) roleDelete(s *discordgo.Session, r *discordgo.GuildRoleDelete) {
	b.roleChange(r.RoleID, false)
}

func (b *Bot) roleChange(roleID string, created bool) {
	ctx, span := b.tracer.Start(context.Background(), "Bot.roleChange",
		trace.WithAttributes(attribute.String("role_id", roleID), attribute.Bool("created", created)))
	defer span.End()

	id, err := game.ParseID(roleID)
	if err != nil {
		return
	}
	if created {
		err = b.econ.AddRole(ctx, id)
	} else {
		err = b.econ.RemoveRole(ctx, id)
	}
	if err != nil {
		b.logger.WarnContext(ctx, "updating income role", slog.String("role_id", roleID), slog.Any("error", err))
	}
}

// MemberIDs returns the ids of the human members.
func MemberIDs(members []*discordgo.Member) []game.ID {
	ids := make([]game.ID, 0, len(members))
	for _, m := range members {
		if m == nil || m.User == nil || m.User.Bot {
			continue
		}
		if id, err := game.ParseID(m.User.ID); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// RoleIDs returns the ids of roles, skipping malformed ones.
func RoleIDs(roles []*discordgo.Role) []game.ID {
	ids := make([]game.ID, 0, len(roles))
	for _, r := range roles {
		if r == nil {
			continue
		}
		if id, err := game.ParseID(r.ID); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// FindRole returns the id of the role whose id or name (case-insensitive)
// is key, or "" when none matches.
func FindRole(roles []*discordgo.Role, key string) string {
	for _, r := range roles {
		if r != nil && (r.ID == key || strings.EqualFold(r.Name, key)) {
			return r.ID
		}
	}
	return ""
}
