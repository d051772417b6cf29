package safari

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
)

// Ball is the only ball usable inside the safari.
const Ball = "safariball"

// DefaultBalls is the per-entry ball budget.
const DefaultBalls = 50

// Session errors.
var (
	ErrNoSession     = errors.New("no safari session in progress")
	ErrSessionActive = errors.New("a safari session is already in progress")
	ErrOutOfBalls    = errors.New("no safari balls left")
)

// Session is one user's safari run. It is persisted after every change so a
// restart resumes it.
type Session struct {
	UserID    int64              `json:"user_id"`
	Region    string             `json:"region"`
	TeamLevel int                `json:"team_level"`
	BallsLeft int                `json:"balls_left"`
	Throws    int                `json:"throws"`
	Encounter *creature.Creature `json:"encounter,omitempty"`
	Caught    []string           `json:"caught"`
	StartedAt time.Time          `json:"started_at"`
}

// Store persists safari sessions.
type Store interface {
	SaveSafariSession(ctx context.Context, s *Session) error
	DeleteSafariSession(ctx context.Context, userID int64) error
	LoadSafariSessions(ctx context.Context) ([]*Session, error)
}

// Config tunes the safari.
type Config struct {
	Balls     int
	ResetHour int
	Location  *time.Location
}

// ThrowResult is the outcome of one safari ball.
type ThrowResult struct {
	// Caught is the captured creature, owned by the thrower; nil on a miss.
	Caught      *creature.Creature
	Probability float64
	BallsLeft   int
	// Next is the following encounter; nil once the session is over.
	Next  *creature.Creature
	Ended bool
}

// Service owns live safari sessions keyed by user id. It is safe for
// concurrent use.
type Service struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	gate    *Gate
	balls   int
	factory *creature.Factory
	catcher *combat.Catcher
	src     dice.Source
	store   Store
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a Service.
//
// Precondition: all collaborators must be non-nil.
func NewService(cfg Config, factory *creature.Factory, catcher *combat.Catcher, src dice.Source, store Store, logger *zap.Logger) *Service {
	if cfg.Balls <= 0 {
		cfg.Balls = DefaultBalls
	}
	return &Service{
		sessions: make(map[int64]*Session),
		gate:     NewGate(cfg.ResetHour, cfg.Location),
		balls:    cfg.Balls,
		factory:  factory,
		catcher:  catcher,
		src:      src,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Gate exposes the daily entry gate.
func (s *Service) Gate() *Gate { return s.gate }

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Restore loads persisted sessions and seeds the gate from them.
//
// Postcondition: Returns the number of sessions restored.
func (s *Service) Restore(ctx context.Context) (int, error) {
	list, err := s.store.LoadSafariSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading safari sessions: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range list {
		s.sessions[sess.UserID] = sess
		s.gate.Restore(sess.UserID, sess.StartedAt)
	}
	return len(list), nil
}

// Get returns a copy of userID's session.
func (s *Service) Get(userID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Enter starts a session for userID in region. lastEntry is the entry time
// stored on the trainer document.
//
// Postcondition: Returns ErrSessionActive, ErrAlreadyEntered or
// combat.ErrNoEncounter without consuming the day's entry.
func (s *Service) Enter(ctx context.Context, userID int64, region string, team []*creature.Creature, lastEntry *time.Time) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; ok {
		return nil, ErrSessionActive
	}
	now := s.now()
	if err := s.gate.Check(userID, lastEntry, now); err != nil {
		return nil, err
	}
	sess := &Session{
		UserID:    userID,
		Region:    region,
		TeamLevel: combat.WildLevel(s.src, team),
		BallsLeft: s.balls,
		Caught:    []string{},
		StartedAt: now,
	}
	enc, err := s.encounter(sess)
	if err != nil {
		return nil, err
	}
	sess.Encounter = enc
	if err := s.gate.Enter(userID, lastEntry, now); err != nil {
		return nil, err
	}
	if err := s.store.SaveSafariSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving safari session: %w", err)
	}
	s.sessions[userID] = sess
	s.logger.Info("safari entered", zap.Int64("user_id", userID), zap.String("region", region), zap.String("encounter", enc.Name))
	cp := *sess
	return &cp, nil
}

func (s *Service) encounter(sess *Session) (*creature.Creature, error) {
	sp, err := combat.PickWildSpecies(s.factory.Catalog(), s.src, sess.Region, combat.ContextSafari)
	if err != nil {
		return nil, err
	}
	return s.factory.Create(sp.ID, sess.TeamLevel)
}

// Throw throws one safari ball at the current encounter.
//
// Postcondition: On a catch the creature is returned with trainer fields set
// and a new encounter is drawn. The session ends when the balls run out.
func (s *Service) Throw(ctx context.Context, userID int64) (*ThrowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	if sess.BallsLeft <= 0 {
		return nil, ErrOutOfBalls
	}
	target := sess.Encounter
	sp, _ := s.factory.Catalog().Species(target.SpeciesID)

	sess.BallsLeft--
	sess.Throws++
	ok, p := s.catcher.Attempt(ctx, Ball, sp, target, combat.ContextSafari, sess.Throws)
	res := &ThrowResult{Probability: p, BallsLeft: sess.BallsLeft}
	if ok {
		c := target.Clone()
		at := s.now()
		uid := userID
		c.TrainerID = &uid
		c.CapturedWith = Ball
		c.CaughtAt = &at
		res.Caught = c
		sess.Caught = append(sess.Caught, c.UUID)
		next, err := s.encounter(sess)
		if err != nil {
			return nil, err
		}
		sess.Encounter = next
	}

	if sess.BallsLeft == 0 {
		res.Ended = true
		delete(s.sessions, userID)
		if err := s.store.DeleteSafariSession(ctx, userID); err != nil {
			return nil, fmt.Errorf("closing safari session: %w", err)
		}
		return res, nil
	}
	res.Next = sess.Encounter
	if err := s.store.SaveSafariSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving safari session: %w", err)
	}
	return res, nil
}

// Skip replaces the current encounter without spending a ball.
func (s *Service) Skip(ctx context.Context, userID int64) (*creature.Creature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	next, err := s.encounter(sess)
	if err != nil {
		return nil, err
	}
	sess.Encounter = next
	if err := s.store.SaveSafariSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving safari session: %w", err)
	}
	return next, nil
}

// Leave ends userID's session early. The day's entry stays used.
func (s *Service) Leave(ctx context.Context, userID int64) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, ErrNoSession
	}
	delete(s.sessions, userID)
	if err := s.store.DeleteSafariSession(ctx, userID); err != nil {
		return Session{}, fmt.Errorf("closing safari session: %w", err)
	}
	return *sess, nil
}
