package combat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
)

// Engine errors.
var (
	ErrNoUsableTeam     = errors.New("no usable creature on the team")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadySubmitted = errors.New("action already submitted for this turn")
	ErrBattleOver       = errors.New("battle is over")
	ErrBattleNotFound   = errors.New("battle not found")
	ErrNotParticipant   = errors.New("not a participant of this battle")
	ErrAlreadyInBattle  = errors.New("already in a battle")
	ErrInvalidSwitch    = errors.New("invalid switch target")
	ErrInvalidAction    = errors.New("action not allowed now")
	ErrMoveNotActive    = errors.New("move is not in the active set")
	ErrNothingToHeal    = errors.New("creature is already at full health")
	ErrUnknownItem      = errors.New("unknown item")
	ErrInvalidTeam      = errors.New("invalid duel team")
)

// DuelTeamSize is the most creatures a duelist may bring.
const DuelTeamSize = 3

// Config holds engine timeouts.
type Config struct {
	// IdleTimeout ends a battle whose awaited side has not acted.
	IdleTimeout time.Duration
	// AcceptTimeout expires an unanswered duel challenge.
	AcceptTimeout time.Duration
}

// DefaultConfig returns the standard timeouts.
func DefaultConfig() Config {
	return Config{IdleTimeout: 120 * time.Second, AcceptTimeout: 60 * time.Second}
}

// Engine owns every live battle, keyed by battle id and by user id.
// All methods are safe for concurrent use.
//
// Lock order: a Battle's mu may be held while taking the Engine's mu, never
// the reverse.
type Engine struct {
	mu      sync.RWMutex
	battles map[int64]*Battle
	byUser  map[int64]int64
	nextID  atomic.Int64

	cat      *catalog.Catalog
	factory  *creature.Factory
	resolver *Resolver
	catcher  *Catcher
	src      dice.Source
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	endMu sync.RWMutex
	onEnd func(*Report)
}

// NewEngine creates an Engine.
//
// Precondition: all arguments must be non-nil; zero timeouts take defaults.
func NewEngine(factory *creature.Factory, catcher *Catcher, src dice.Source, cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.AcceptTimeout <= 0 {
		cfg.AcceptTimeout = def.AcceptTimeout
	}
	return &Engine{
		battles:  make(map[int64]*Battle),
		byUser:   make(map[int64]int64),
		cat:      factory.Catalog(),
		factory:  factory,
		resolver: NewResolver(factory.Catalog(), src),
		catcher:  catcher,
		src:      src,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetEndHandler registers fn to receive reports of battles that end on a
// timer rather than through a call the user made.
func (e *Engine) SetEndHandler(fn func(*Report)) {
	e.endMu.Lock()
	defer e.endMu.Unlock()
	e.onEnd = fn
}

// Resolver returns the engine's move resolver.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Get returns the live battle with id.
func (e *Engine) Get(id int64) (*Battle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.battles[id]
	return b, ok
}

// ForUser returns the battle userID is part of.
func (e *Engine) ForUser(userID int64) (*Battle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.byUser[userID]
	if !ok {
		return nil, false
	}
	b, ok := e.battles[id]
	return b, ok
}

// Count returns the number of live battles.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.battles)
}

func (e *Engine) register(b *Battle, users ...int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, u := range users {
		if _, busy := e.byUser[u]; busy {
			return fmt.Errorf("%w: user %d", ErrAlreadyInBattle, u)
		}
	}
	b.ID = e.nextID.Add(1)
	e.battles[b.ID] = b
	for _, u := range users {
		e.byUser[u] = b.ID
	}
	return nil
}

func (e *Engine) unregister(b *Battle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.battles, b.ID)
	for u, id := range e.byUser {
		if id == b.ID {
			delete(e.byUser, u)
		}
	}
}

// StartWild begins a wild battle between userID's team and wild.
//
// Precondition: wild must be a freshly created creature.
// Postcondition: Returns ErrNoUsableTeam when no team member can fight.
func (e *Engine) StartWild(userID int64, trainer string, team []*creature.Creature, wild *creature.Creature, encounter string) (*Report, error) {
	first := firstUsable(team)
	if first < 0 {
		return nil, ErrNoUsableTeam
	}
	b := &Battle{
		Mode:      ModeWild,
		Context:   encounter,
		Turn:      1,
		Phase:     PhaseAction,
		Winner:    NoWinner,
		StartedAt: e.now(),
	}
	b.Sides[0] = &Side{UserID: userID, Name: trainer, Team: team}
	b.Sides[0].setActive(first)
	b.Sides[1] = &Side{AI: true, Name: "Wild " + wild.DisplayName(), Team: []*creature.Creature{wild}}
	b.Sides[1].setActive(0)
	if err := e.register(b, userID); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	e.armIdle(b)
	e.logger.Info("wild battle started",
		zap.Int64("battle_id", b.ID),
		zap.Int64("user_id", userID),
		zap.String("wild", wild.Name),
		zap.Int("level", wild.Level),
	)
	return e.report(b, []Event{switchEvent(0, b.Sides[0])}, nil), nil
}

// StartGym begins a battle against a gym leader's roster.
//
// Postcondition: Returns ErrNoUsableTeam or an error naming an unknown leader.
func (e *Engine) StartGym(userID int64, trainer string, team []*creature.Creature, leaderName string) (*Report, error) {
	first := firstUsable(team)
	if first < 0 {
		return nil, ErrNoUsableTeam
	}
	leader, ok := e.cat.GymLeader(leaderName)
	if !ok {
		return nil, fmt.Errorf("unknown gym leader %q", leaderName)
	}
	roster, err := e.cat.GymLeaderTeam(leader.Name)
	if err != nil {
		return nil, err
	}
	var ai []*creature.Creature
	for _, m := range roster {
		c, err := e.factory.CreateByName(m.Name, m.Level, creature.Options{})
		if err != nil {
			return nil, err
		}
		e.teachRoster(c, m.Moves)
		ai = append(ai, c)
	}

	b := &Battle{
		Mode:      ModeGym,
		Context:   ContextGym,
		Turn:      1,
		Phase:     PhaseAction,
		Winner:    NoWinner,
		GymLeader: leader.Name,
		Reward:    leader.Reward,
		StartedAt: e.now(),
	}
	b.Sides[0] = &Side{UserID: userID, Name: trainer, Team: team}
	b.Sides[0].setActive(first)
	b.Sides[1] = &Side{AI: true, Name: "Leader " + catalog.DisplayName(leader.Name), Team: ai}
	b.Sides[1].setActive(0)
	if err := e.register(b, userID); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	e.armIdle(b)
	e.logger.Info("gym battle started", zap.Int64("battle_id", b.ID), zap.Int64("user_id", userID), zap.String("leader", leader.Name))
	return e.report(b, []Event{switchEvent(1, b.Sides[1]), switchEvent(0, b.Sides[0])}, nil), nil
}

// teachRoster makes c know the roster moves and uses the damaging ones as its active set.
func (e *Engine) teachRoster(c *creature.Creature, moves []string) {
	var active []string
	for _, n := range moves {
		if _, known := c.Knows(n); !known {
			m, ok := e.cat.Move(n)
			if !ok {
				continue
			}
			c.Moves = append(c.Moves, catalog.LearnedMove{Move: *m})
		}
		if e.cat.IsDamaging(n) && len(active) < creature.MaxActiveMoves {
			active = append(active, catalog.NormalizeName(n))
		}
	}
	if len(active) > 0 {
		_ = e.factory.SetActiveMoves(c, active)
	}
}

// Submit applies an action from userID to battle id.
//
// Postcondition: Returns a report of everything that happened, or an error
// with the battle unchanged.
func (e *Engine) Submit(ctx context.Context, id, userID int64, a Action) (*Report, error) {
	b, ok := e.Get(id)
	if !ok {
		return nil, ErrBattleNotFound
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	side := b.sideOf(userID)
	if side < 0 {
		return nil, ErrNotParticipant
	}
	if b.Phase == PhaseEnded {
		return nil, ErrBattleOver
	}

	var (
		events []Event
		res    *Result
		err    error
	)
	if b.Mode == ModeDuel {
		events, res, err = e.submitDuel(ctx, b, side, a)
	} else {
		events, res, err = e.submitSolo(ctx, b, a)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		e.armIdle(b)
	}
	return e.report(b, events, res), nil
}

// Abort ends a battle without a winner, healing every human team.
func (e *Engine) Abort(id int64) (*Report, error) {
	b, ok := e.Get(id)
	if !ok {
		return nil, ErrBattleNotFound
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Phase == PhaseEnded {
		return nil, ErrBattleOver
	}
	res := e.finish(b, EndAborted, NoWinner)
	return e.report(b, nil, res), nil
}

// Shutdown aborts every live battle.
func (e *Engine) Shutdown() {
	e.mu.RLock()
	ids := make([]int64, 0, len(e.battles))
	for id := range e.battles {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	for _, id := range ids {
		_, _ = e.Abort(id)
	}
}

// finish ends b: stops its timer, heals every human team and unregisters it.
//
// Precondition: b.mu is held.
func (e *Engine) finish(b *Battle, reason EndReason, winner int) *Result {
	b.Phase = PhaseEnded
	b.Winner = winner
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
	}
	res := &Result{Reason: reason, Winner: winner}
	for i, s := range b.Sides {
		if s == nil || s.AI {
			continue
		}
		for _, c := range s.Team {
			c.HealFull()
		}
		res.Teams[i] = s.Team
	}
	e.unregister(b)
	e.logger.Info("battle ended",
		zap.Int64("battle_id", b.ID),
		zap.String("mode", string(b.Mode)),
		zap.String("reason", string(reason)),
		zap.Int("winner", winner),
		zap.Int("turns", b.Turn),
	)
	return res
}

func (e *Engine) report(b *Battle, events []Event, res *Result) *Report {
	return &Report{Battle: b.snapshot(), Events: events, Result: res}
}

// armIdle (re)starts the timeout for the phase b is waiting in.
//
// Precondition: b.mu is held.
func (e *Engine) armIdle(b *Battle) {
	b.gen++
	gen := b.gen
	d := e.cfg.IdleTimeout
	if b.Phase == PhaseChallenge {
		d = e.cfg.AcceptTimeout
	}
	fire := func() { e.timeout(b, gen) }
	if b.timer == nil {
		b.timer = NewRoundTimer(d, fire)
		return
	}
	b.timer.Reset(d, fire)
}

// timeout ends b when the phase armed at gen is still pending. Sides that
// owe an action forfeit; when both do, nobody wins.
func (e *Engine) timeout(b *Battle, gen uint64) {
	b.mu.Lock()
	if b.gen != gen || b.Phase == PhaseEnded {
		b.mu.Unlock()
		return
	}

	var res *Result
	var events []Event
	if b.Phase == PhaseChallenge {
		res = e.finish(b, EndExpired, NoWinner)
	} else {
		idle := idleSides(b)
		winner := NoWinner
		if len(idle) == 1 {
			winner = other(idle[0])
		}
		for _, i := range idle {
			events = append(events, Event{
				Kind:      EvTimeout,
				Side:      i,
				Actor:     b.Sides[i].Name,
				Narrative: fmt.Sprintf("%s took too long to act.", b.Sides[i].Name),
			})
		}
		res = e.finish(b, EndTimeout, winner)
		res.IdleSides = idle
	}
	rep := e.report(b, events, res)
	b.mu.Unlock()

	e.endMu.RLock()
	fn := e.onEnd
	e.endMu.RUnlock()
	if fn != nil {
		fn(rep)
	}
}

func idleSides(b *Battle) []int {
	var idle []int
	for i, s := range b.Sides {
		if s == nil || s.AI {
			continue
		}
		switch b.Phase {
		case PhaseTeamSelect:
			if !s.Ready {
				idle = append(idle, i)
			}
		case PhaseSwitch:
			if s.NeedsSwitch {
				idle = append(idle, i)
			}
		default:
			if b.Mode != ModeDuel || s.Pending == nil {
				idle = append(idle, i)
			}
		}
	}
	return idle
}

// selectMove returns the active move name on c.
func selectMove(c *creature.Creature, name string) (catalog.Move, error) {
	if !c.HasActive(name) {
		return catalog.Move{}, fmt.Errorf("%w: %s", ErrMoveNotActive, name)
	}
	m, ok := c.Knows(name)
	if !ok {
		return catalog.Move{}, fmt.Errorf("%w: %s", ErrMoveNotActive, name)
	}
	return m.Move, nil
}

// chooseAIMove picks uniformly from the active damaging moves, then from any
// known move, then Struggle.
func (e *Engine) chooseAIMove(c *creature.Creature) catalog.Move {
	var pool []catalog.Move
	for _, n := range c.ActiveMoves {
		if m, ok := c.Knows(n); ok && e.resolver.Damaging(m.Move) {
			pool = append(pool, m.Move)
		}
	}
	if len(pool) == 0 {
		for _, m := range c.Moves {
			pool = append(pool, m.Move)
		}
	}
	if len(pool) == 0 {
		return Struggle
	}
	return pool[e.src.Intn(len(pool))]
}

// strike resolves one move and applies its damage.
func (e *Engine) strike(b *Battle, side int, move catalog.Move) (Event, bool) {
	atk := b.Sides[side].ActiveCreature()
	def := b.Sides[other(side)].ActiveCreature()
	res := e.resolver.ApplyMove(atk, def, move)
	def.TakeDamage(res.Damage)
	return moveEvent(side, atk, def, res), def.Fainted()
}

// validatePotion checks that item can heal c.
func validatePotion(c *creature.Creature, item string) (int, error) {
	amount, ok := Potions[catalog.NormalizeName(item)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownItem, item)
	}
	if c.CurrentHP >= c.MaxHP {
		return 0, ErrNothingToHeal
	}
	if amount == 0 {
		amount = c.MaxHP
	}
	return amount, nil
}

func usePotion(side int, c *creature.Creature, item string, amount int) Event {
	healed := c.Heal(amount)
	return Event{
		Kind:      EvItem,
		Side:      side,
		Actor:     name(c),
		Amount:    healed,
		Narrative: fmt.Sprintf("%s restored %d HP with a %s.", name(c), healed, catalog.DisplayName(catalog.NormalizeName(item))),
	}
}

func consume(ctx context.Context, a Action) error {
	if a.Consume == nil {
		return nil
	}
	return a.Consume(ctx)
}
