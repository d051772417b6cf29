package bot

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/flow"
	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/command"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
	"github.com/pokebot/pokebot/internal/game/safari"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

// DefaultFlowTTL is how long an unfinished interactive flow is kept.
const DefaultFlowTTL = 15 * time.Minute

// Config tunes the bot.
type Config struct {
	// Admins may use admin commands.
	Admins []int64
	// BotName is the bot's username; commands addressed to other bots are ignored.
	BotName string
	// ProcessingTTL bounds how long a confirm stays marked as in progress.
	ProcessingTTL time.Duration
	// FlowTTL bounds how long an unfinished flow is kept.
	FlowTTL time.Duration
	// Cooldowns overrides the per-command gaps; nil uses flow.DefaultGaps.
	Cooldowns map[string]time.Duration
}

// Deps are the collaborators the bot drives.
type Deps struct {
	Transport Transport
	Factory   *creature.Factory
	Trainers  *trainer.Repository
	Engine    *combat.Engine
	Safari    *safari.Service
	Dice      dice.Source
	Logger    *zap.Logger
}

// Bot dispatches updates to command and callback handlers. It is safe for
// concurrent use; work for one user is serialized.
type Bot struct {
	cfg    Config
	admins map[int64]bool

	tx       Transport
	cat      *catalog.Catalog
	factory  *creature.Factory
	trainers *trainer.Repository
	engine   *combat.Engine
	safari   *safari.Service
	src      dice.Source
	logger   *zap.Logger
	now      func() time.Time

	commands  *command.Registry
	onCommand map[string]commandFunc
	onButton  map[string]callbackFunc

	cooldowns *flow.Cooldowns
	guard     *flow.Guard
	locks     *flow.Locks

	addPoke  *flow.Registry[addPokeDraft]
	releases *flow.Registry[confirmDraft]
	evolves  *flow.Registry[confirmDraft]
	candies  *flow.Registry[confirmDraft]
	moves    *flow.Registry[movesDraft]
	suggests *flow.Registry[suggestion]
	trades   *flow.Registry[*tradeState]
	duels    *flow.Registry[duelDraft]

	viewMu sync.Mutex
	views  map[int64]map[int64]MessageRef
}

// request is one command or button press being handled.
type request struct {
	user   User
	chatID int64

	// Set for commands.
	msg    *Message
	cmd    *command.Command
	parsed command.ParseResult

	// Set for button presses.
	cb       *Callback
	payload  flow.Payload
	answered bool
}

type commandFunc func(ctx context.Context, r *request) error
type callbackFunc func(ctx context.Context, r *request) error

// New creates a Bot and registers itself as the engine's end handler.
func New(cfg Config, d Deps) *Bot {
	if cfg.ProcessingTTL <= 0 {
		cfg.ProcessingTTL = flow.DefaultProcessingTTL
	}
	if cfg.FlowTTL <= 0 {
		cfg.FlowTTL = DefaultFlowTTL
	}
	gaps := cfg.Cooldowns
	if gaps == nil {
		gaps = flow.DefaultGaps
	}
	b := &Bot{
		cfg:       cfg,
		admins:    make(map[int64]bool, len(cfg.Admins)),
		tx:        d.Transport,
		cat:       d.Factory.Catalog(),
		factory:   d.Factory,
		trainers:  d.Trainers,
		engine:    d.Engine,
		safari:    d.Safari,
		src:       d.Dice,
		logger:    d.Logger,
		now:       time.Now,
		commands:  command.DefaultRegistry(),
		cooldowns: flow.NewCooldowns(flow.DefaultCooldown, gaps),
		guard:     flow.NewGuard(cfg.ProcessingTTL),
		locks:     flow.NewLocks(),
		addPoke:   flow.NewRegistry[addPokeDraft](flow.NSAddPoke, addPokeFlow),
		releases:  flow.NewRegistry[confirmDraft](flow.NSRelease, confirmFlow),
		evolves:   flow.NewRegistry[confirmDraft](flow.NSEvolve, confirmFlow),
		candies:   flow.NewRegistry[confirmDraft](flow.NSCandy, candyFlow),
		moves:     flow.NewRegistry[movesDraft](flow.NSSetMoves, movesFlow),
		suggests:  flow.NewRegistry[suggestion](flow.NSSuggest, confirmFlow),
		trades:    flow.NewRegistry[*tradeState](flow.NSTrade, tradeFlow),
		duels:     flow.NewRegistry[duelDraft](flow.NSDuel, duelPickFlow),
		views:     make(map[int64]map[int64]MessageRef),
	}
	for _, id := range cfg.Admins {
		b.admins[id] = true
	}
	b.onCommand = b.commandHandlers()
	b.onButton = b.callbackHandlers()
	b.engine.SetEndHandler(b.battleTimedOut)
	return b
}

// SetClock replaces the time source of the bot and its limiters.
func (b *Bot) SetClock(now func() time.Time) {
	b.now = now
	b.cooldowns.SetClock(now)
	b.guard.SetClock(now)
}

// IsAdmin reports whether userID may use admin commands.
func (b *Bot) IsAdmin(userID int64) bool { return b.admins[userID] }

// Handle processes one update. Errors are reported to the user, never returned.
func (b *Bot) Handle(ctx context.Context, upd Update) {
	switch {
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	case upd.Callback != nil:
		b.handleCallback(ctx, upd.Callback)
	}
}

// killed reports whether userID is barred. Lookup failures let the update through.
func (b *Bot) killed(ctx context.Context, userID int64) bool {
	k, err := b.trainers.IsKilled(ctx, userID)
	if err != nil {
		b.logger.Warn("kill flag lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return k
}

func (b *Bot) handleMessage(ctx context.Context, m *Message) {
	if m.From.IsBot {
		return
	}
	parsed := command.Parse(m.Text)
	if parsed.Command == "" || !parsed.For(b.cfg.BotName) {
		return
	}
	if b.killed(ctx, m.From.ID) {
		b.logger.Debug("ignoring killed user", zap.Int64("user_id", m.From.ID), zap.String("command", parsed.Command))
		return
	}

	r := &request{user: m.From, chatID: m.ChatID, msg: m, parsed: parsed}
	cmd, ok := b.commands.Resolve(parsed.Command)
	if !ok {
		if guess, found := flow.ClosestMatch(parsed.Command, b.commands.Names()); found {
			b.report(ctx, r, flow.Inputf("Unknown command /%s. Did you mean /%s?", parsed.Command, guess))
		}
		return
	}
	r.cmd = cmd
	b.report(ctx, r, b.runCommand(ctx, r))
}

func (b *Bot) runCommand(ctx context.Context, r *request) error {
	if r.cmd.Admin && !b.IsAdmin(r.user.ID) {
		return flow.ErrNotAuthorized
	}
	if r.cmd.Reply && (r.msg.ReplyTo == nil || r.msg.ReplyTo.From.ID == 0) {
		return flow.Inputf("Reply to a trainer's message with /%s.", r.cmd.Name)
	}
	if ok, wait := b.cooldowns.Allow(r.user.ID, r.cmd.Name); !ok {
		return flow.Inputf("Slow down! Try /%s again in %ds.", r.cmd.Name, int(math.Ceil(wait.Seconds())))
	}
	h, ok := b.onCommand[r.cmd.Handler]
	if !ok {
		return fmt.Errorf("no handler for command %q", r.cmd.Name)
	}
	unlock := b.locks.Lock(r.user.ID)
	defer unlock()
	return explain(h(ctx, r))
}

func (b *Bot) handleCallback(ctx context.Context, cb *Callback) {
	r := &request{user: cb.From, chatID: cb.Message.ChatID, cb: cb}
	if b.killed(ctx, cb.From.ID) {
		r.answered = true
		_ = b.tx.Answer(ctx, cb.ID, "", false)
		return
	}
	p, err := flow.Decode(cb.Data)
	if err != nil {
		b.report(ctx, r, flow.Conflict("this button has expired"))
		return
	}
	r.payload = p
	b.report(ctx, r, b.runCallback(ctx, r))
}

func (b *Bot) runCallback(ctx context.Context, r *request) error {
	if err := r.payload.Authorize(r.user.ID); err != nil {
		return err
	}
	h, ok := b.onButton[r.payload.Namespace]
	if !ok {
		return flow.Conflict("this button has expired")
	}
	unlock := b.locks.Lock(r.user.ID)
	defer unlock()
	return explain(h(ctx, r))
}

// report delivers the outcome of a request according to the error taxonomy.
func (b *Bot) report(ctx context.Context, r *request, err error) {
	kind := flow.Classify(err)
	msg := flow.UserMessage(err)
	switch kind {
	case flow.KindNone, flow.KindTransient:
		if kind == flow.KindTransient {
			b.logger.Debug("transient transport error", zap.Int64("user_id", r.user.ID), zap.Error(err))
		}
		if r.cb != nil && !r.answered {
			b.answer(ctx, r, "", false)
		}
		return
	case flow.KindNotAuthorized:
		if r.cb == nil {
			msg = "You are not allowed to use this command."
		}
	case flow.KindFatal:
		b.logger.Error("request failed",
			zap.Int64("user_id", r.user.ID),
			zap.String("command", r.label()),
			zap.Error(err),
		)
	default:
		b.logger.Debug("request rejected",
			zap.Int64("user_id", r.user.ID),
			zap.String("command", r.label()),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
	}
	if r.cb != nil {
		b.answer(ctx, r, msg, true)
		return
	}
	b.send(ctx, Outgoing{ChatID: r.chatID, Text: msg, ReplyTo: r.msg.MessageID})
}

func (r *request) label() string {
	if r.cmd != nil {
		return r.cmd.Name
	}
	return r.payload.Namespace + ":" + r.payload.Verb
}

func (b *Bot) answer(ctx context.Context, r *request, text string, alert bool) {
	r.answered = true
	if err := b.tx.Answer(ctx, r.cb.ID, text, alert); err != nil {
		b.logger.Debug("answering callback", zap.Error(err))
	}
}

// send posts out and logs failures; the ref is zero when sending failed.
func (b *Bot) send(ctx context.Context, out Outgoing) MessageRef {
	ref, err := b.tx.Send(ctx, out)
	if err != nil {
		b.logger.Warn("sending message", zap.Int64("chat_id", out.ChatID), zap.Error(err))
	}
	return ref
}

// reply answers a command, or replaces the pressed message for a button.
func (b *Bot) reply(ctx context.Context, r *request, out Outgoing) MessageRef {
	out.ChatID = r.chatID
	if r.cb != nil {
		if err := b.edit(ctx, r.cb.Message, out); err == nil {
			return r.cb.Message
		}
		return b.send(ctx, out)
	}
	if r.msg != nil {
		out.ReplyTo = r.msg.MessageID
	}
	return b.send(ctx, out)
}

// edit replaces ref's content. A transient failure counts as success.
func (b *Bot) edit(ctx context.Context, ref MessageRef, out Outgoing) error {
	err := b.tx.Edit(ctx, ref, out)
	if flow.Classify(err) == flow.KindTransient {
		return nil
	}
	if err != nil {
		b.logger.Debug("editing message", zap.Int64("chat_id", ref.ChatID), zap.Int("message_id", ref.MessageID), zap.Error(err))
	}
	return err
}

// button builds a button whose payload is owned by owner.
func button(text string, owner int64, ns, verb string, args ...string) Button {
	return Button{Text: text, Data: flow.New(owner, ns, verb, args...).MustEncode()}
}

// Sweep drops stale limiter entries and abandoned flows.
func (b *Bot) Sweep() {
	b.cooldowns.Sweep()
	b.guard.Sweep()
	ttl := b.cfg.FlowTTL
	n := b.addPoke.Sweep(ttl) + b.releases.Sweep(ttl) + b.evolves.Sweep(ttl) + b.candies.Sweep(ttl) +
		b.moves.Sweep(ttl) + b.suggests.Sweep(ttl) + b.trades.Sweep(ttl) + b.duels.Sweep(ttl)
	if n > 0 {
		b.logger.Debug("swept abandoned flows", zap.Int("count", n))
	}
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (b *Bot) RunSweeper(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			b.Sweep()
		}
	}
}

// cancelFlows ends every flow userID owns and drops their processing entries.
func (b *Bot) cancelFlows(userID int64) {
	b.addPoke.End(userID)
	b.releases.End(userID)
	b.evolves.End(userID)
	b.candies.End(userID)
	b.moves.End(userID)
	b.suggests.End(userID)
	b.trades.End(userID)
	b.duels.End(userID)
	b.guard.ReleaseUser(userID)
}
