// Package commands maps Discord slash commands onto engine operations and
// formats their results.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/backup"
	"github.com/jensholdgaard/trinity/internal/clock"
	"github.com/jensholdgaard/trinity/internal/economy"
	"github.com/jensholdgaard/trinity/internal/encounter"
	"github.com/jensholdgaard/trinity/internal/game"
	"github.com/jensholdgaard/trinity/internal/inventory"
	"github.com/jensholdgaard/trinity/internal/state"
)

const (
	// maxMessage is Discord's message length limit.
	maxMessage = 2000
	// maxQuantity bounds purchase quantities.
	maxQuantity = 1_000_000
	// maxAmount bounds money and population options.
	maxAmount = 1_000_000_000_000
)

var adminPermission int64 = discordgo.PermissionAdministrator

// Request is a parsed slash command invocation.
type Request struct {
	GuildID   string
	ChannelID string
	User      game.ID
	// Roles are the member's roles, @everyone included.
	Roles   []game.Role
	Admin   bool
	Options map[string]*discordgo.ApplicationCommandInteractionDataOption
}

type command struct {
	def   *discordgo.ApplicationCommand
	admin bool
	run   func(ctx context.Context, req Request) (string, error)
}

// Handlers process Discord interactions.
type Handlers struct {
	econ    *economy.Manager
	inv     *inventory.Manager
	enc     *encounter.Manager
	state   *state.Store
	backups *backup.Scheduler
	clock   clock.Clock
	logger  *slog.Logger
	tracer  trace.Tracer
	cmds    map[string]command

	mu     sync.RWMutex
	notify func(channelID, msg string)
}

// NewHandlers creates new command handlers.
func NewHandlers(econ *economy.Manager, inv *inventory.Manager, enc *encounter.Manager, st *state.Store, backups *backup.Scheduler, clk clock.Clock, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	h := &Handlers{
		econ:    econ,
		inv:     inv,
		enc:     enc,
		state:   st,
		backups: backups,
		clock:   clk,
		logger:  logger,
		tracer:  tp.Tracer("github.com/jensholdgaard/trinity/internal/bot/commands"),
		cmds:    make(map[string]command),
	}
	var all []command
	all = append(all, h.playerCommands()...)
	all = append(all, h.itemCommands()...)
	all = append(all, h.encounterCommands()...)
	all = append(all, h.adminCommands()...)
	for _, c := range all {
		if c.admin {
			c.def.DefaultMemberPermissions = &adminPermission
		}
		h.cmds[c.def.Name] = c
	}
	return h
}

// SetNotifier installs the function used to post messages that arrive after
// the interaction was answered, such as encounter results.
func (h *Handlers) SetNotifier(fn func(channelID, msg string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notify = fn
}

func (h *Handlers) send(channelID, msg string) {
	h.mu.RLock()
	fn := h.notify
	h.mu.RUnlock()
	if fn == nil {
		h.logger.Info("undelivered message", slog.String("channel", channelID), slog.String("message", msg))
		return
	}
	fn(channelID, truncate(msg))
}

// SlashCommands returns the slash command definitions ordered by name.
func (h *Handlers) SlashCommands() []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(h.cmds))
	for _, c := range h.cmds {
		out = append(out, c.def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Handle runs the named command and returns the reply text. Admin commands
// are refused for members without administrator permission.
func (h *Handlers) Handle(ctx context.Context, name string, req Request) string {
	ctx, span := h.tracer.Start(ctx, "Handlers.Handle",
		trace.WithAttributes(
			attribute.String("command", name),
			attribute.Int64("user_id", int64(req.User)),
		),
	)
	defer span.End()

	c, ok := h.cmds[name]
	if !ok {
		return "Unknown command"
	}
	if c.admin && !req.Admin {
		h.logger.WarnContext(ctx, "admin command refused",
			slog.String("command", name),
			slog.Int64("user_id", int64(req.User)),
		)
		return "This command requires administrator permission."
	}
	msg, err := c.run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errorText(err)
	}
	return msg
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	req, err := newRequest(s, i)
	if err != nil {
		h.logger.Warn("unreadable interaction", slog.Any("error", err))
		respond(s, i, "Could not identify the invoking member.")
		return
	}
	respond(s, i, h.Handle(context.Background(), i.ApplicationCommandData().Name, req))
}

func newRequest(s *discordgo.Session, i *discordgo.InteractionCreate) (Request, error) {
	req := Request{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Options:   make(map[string]*discordgo.ApplicationCommandInteractionDataOption),
	}
	for _, o := range i.ApplicationCommandData().Options {
		req.Options[o.Name] = o
	}
	user := i.User
	if i.Member != nil {
		user = i.Member.User
		req.Admin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
		req.Roles = MemberRoles(s.State, i.GuildID, i.Member.Roles)
	}
	if user == nil {
		return req, errors.New("interaction has no user")
	}
	id, err := game.ParseID(user.ID)
	if err != nil {
		return req, err
	}
	req.User = id
	return req, nil
}

// MemberRoles resolves role ids to roles, prefixed by the guild's @everyone
// role whose id equals the guild id. Unknown or malformed ids are skipped.
func MemberRoles(st *discordgo.State, guildID string, ids []string) []game.Role {
	var out []game.Role
	if gid, err := game.ParseID(guildID); err == nil {
		out = append(out, game.Role{ID: gid, Name: "@everyone"})
	}
	for _, rid := range ids {
		id, err := game.ParseID(rid)
		if err != nil {
			continue
		}
		r := game.Role{ID: id}
		if st != nil {
			if dr, err := st.Role(guildID, rid); err == nil {
				r.Name = dr.Name
			}
		}
		out = append(out, r)
	}
	return out
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: truncate(msg),
		},
	})
}

func truncate(msg string) string {
	if len(msg) <= maxMessage {
		return msg
	}
	return msg[:maxMessage-3] + "..."
}

// errorText turns an engine error into a reply. Internal failures are not
// described to players.
func errorText(err error) string {
	if game.KindOf(err) == game.KindInternal {
		return "Something went wrong, please try again later."
	}
	s := err.Error()
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

// Option accessors. Missing options yield the zero value or def.

func (r Request) has(name string) bool {
	_, ok := r.Options[name]
	return ok
}

func (r Request) str(name string) string {
	o, ok := r.Options[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionString {
		return ""
	}
	return o.StringValue()
}

func (r Request) integer(name string, def int64) int64 {
	o, ok := r.Options[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionInteger {
		return def
	}
	return o.IntValue()
}

func (r Request) number(name string, def float64) float64 {
	o, ok := r.Options[name]
	if !ok {
		return def
	}
	switch o.Type {
	case discordgo.ApplicationCommandOptionNumber:
		return o.FloatValue()
	case discordgo.ApplicationCommandOptionInteger:
		return float64(o.IntValue())
	}
	return def
}

func (r Request) boolean(name string) bool {
	o, ok := r.Options[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionBoolean {
		return false
	}
	return o.BoolValue()
}

// id returns a user or role option as an ID.
func (r Request) id(name string) (game.ID, error) {
	o, ok := r.Options[name]
	if !ok {
		return 0, game.Validation(game.ErrInvalidName, "missing %s", name)
	}
	s, _ := o.Value.(string)
	id, err := game.ParseID(s)
	if err != nil {
		return 0, game.Validation(game.ErrInvalidName, "bad %s %q", name, s)
	}
	return id, nil
}

// Definition helpers.

func slash(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: name, Description: desc, Options: opts}
}

func opt(typ discordgo.ApplicationCommandOptionType, name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: typ, Name: name, Description: desc, Required: required}
}

func strOpt(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return opt(discordgo.ApplicationCommandOptionString, name, desc, required)
}

func intOpt(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return opt(discordgo.ApplicationCommandOptionInteger, name, desc, required)
}

func numOpt(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return opt(discordgo.ApplicationCommandOptionNumber, name, desc, required)
}

func boolOpt(name, desc string) *discordgo.ApplicationCommandOption {
	return opt(discordgo.ApplicationCommandOptionBoolean, name, desc, false)
}

func userOpt(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return opt(discordgo.ApplicationCommandOptionUser, name, desc, required)
}

func roleOpt(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return opt(discordgo.ApplicationCommandOptionRole, name, desc, required)
}

func bounded(o *discordgo.ApplicationCommandOption, lo, hi float64) *discordgo.ApplicationCommandOption {
	o.MinValue = &lo
	o.MaxValue = hi
	return o
}

func choices[T ~string](o *discordgo.ApplicationCommandOption, values []T) *discordgo.ApplicationCommandOption {
	for _, v := range values {
		o.Choices = append(o.Choices, &discordgo.ApplicationCommandOptionChoice{Name: string(v), Value: string(v)})
	}
	return o
}

func mention(id game.ID) string {
	return fmt.Sprintf("<@%d>", id)
}

func roleMention(id game.ID) string {
	return fmt.Sprintf("<@&%d>", id)
}
