package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/game/catalog/catalogtest"
	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
	"github.com/pokebot/pokebot/internal/game/safari"
	"github.com/pokebot/pokebot/internal/game/trainer"
	"github.com/pokebot/pokebot/internal/scripting"
	"github.com/pokebot/pokebot/internal/storage/memory"
)

const testChat int64 = -1001

var (
	ash   = User{ID: 100, Username: "ash", FirstName: "Ash"}
	gary  = User{ID: 200, Username: "gary", FirstName: "Gary"}
	admin = User{ID: 900, Username: "oak", FirstName: "Oak"}
)

type answerCall struct {
	ID    string
	Text  string
	Alert bool
}

type editCall struct {
	Ref MessageRef
	Out Outgoing
}

// fakeTransport records everything the bot sends.
type fakeTransport struct {
	mu      sync.Mutex
	nextID  int
	sent    []Outgoing
	edits   []editCall
	answers []answerCall
	pinned  []MessageRef
}

func (f *fakeTransport) Send(_ context.Context, out Outgoing) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, out)
	return MessageRef{ChatID: out.ChatID, MessageID: 5000 + f.nextID, Photo: out.Photo != ""}, nil
}

func (f *fakeTransport) Edit(_ context.Context, ref MessageRef, out Outgoing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editCall{Ref: ref, Out: out})
	return nil
}

func (f *fakeTransport) Delete(context.Context, MessageRef) error { return nil }

func (f *fakeTransport) Answer(_ context.Context, id, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answerCall{ID: id, Text: text, Alert: alert})
	return nil
}

func (f *fakeTransport) Pin(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = append(f.pinned, ref)
	return nil
}

func (f *fakeTransport) Unpin(context.Context, MessageRef) error { return nil }

func (f *fakeTransport) lastSent(t *testing.T) Outgoing {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "nothing was sent")
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) lastEdit(t *testing.T) editCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.edits, "nothing was edited")
	return f.edits[len(f.edits)-1]
}

// lastEditTo returns the latest edit of the message at ref.
func (f *fakeTransport) lastEditTo(t *testing.T, ref MessageRef) editCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.edits) - 1; i >= 0; i-- {
		if f.edits[i].Ref == ref {
			return f.edits[i]
		}
	}
	require.Failf(t, "message never edited", "no edit of %+v", ref)
	return editCall{}
}

func (f *fakeTransport) lastAnswer(t *testing.T) answerCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.answers, "no callback was answered")
	return f.answers[len(f.answers)-1]
}

func (f *fakeTransport) counts() (sent, edits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent), len(f.edits)
}

// faultyStore fails Load for chosen users and delegates everything else.
type faultyStore struct {
	trainer.Store
	mu    sync.Mutex
	loads map[int64]error
}

func (s *faultyStore) failLoad(id int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads[id] = err
}

func (s *faultyStore) Load(ctx context.Context, id int64) (*trainer.Trainer, error) {
	s.mu.Lock()
	err := s.loads[id]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.Load(ctx, id)
}

type fixture struct {
	bot     *Bot
	tx      *fakeTransport
	store   *faultyStore
	repo    *trainer.Repository
	factory *creature.Factory
	engine  *combat.Engine
	src     *dice.Scripted
	clock   time.Time
	msgID   int
	cbID    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := catalogtest.Load(t)
	mods := scripting.NewModifiers(0, zap.NewNop())
	t.Cleanup(mods.Close)
	for _, b := range cat.Balls() {
		require.NoError(t, mods.Compile(b.Name, b.Script))
	}
	src := dice.NewScripted()
	factory := creature.NewFactory(cat, dice.NewSeededSource(7))
	catcher := combat.NewCatcher(mods, src, zap.NewNop())
	engine := combat.NewEngine(factory, catcher, src, combat.Config{}, zap.NewNop())
	t.Cleanup(engine.Shutdown)
	store := memory.New()
	svc := safari.NewService(safari.Config{ResetHour: 5, Location: time.UTC}, factory, catcher, src, store, zap.NewNop())

	faulty := &faultyStore{Store: store, loads: make(map[int64]error)}

	f := &fixture{
		tx:      &fakeTransport{},
		store:   faulty,
		repo:    trainer.NewRepository(faulty),
		factory: factory,
		engine:  engine,
		src:     src,
		clock:   time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	f.bot = New(Config{Admins: []int64{admin.ID}, BotName: "pokebot"}, Deps{
		Transport: f.tx,
		Factory:   factory,
		Trainers:  f.repo,
		Engine:    engine,
		Safari:    svc,
		Dice:      src,
		Logger:    zap.NewNop(),
	})
	f.bot.SetClock(func() time.Time { return f.clock })
	return f
}

// tick moves the clock past every command cooldown.
func (f *fixture) tick() { f.clock = f.clock.Add(time.Minute) }

func (f *fixture) message(from User, text string, replyTo *Message) *Message {
	f.msgID++
	return &Message{ChatID: testChat, MessageID: f.msgID, From: from, Text: text, ReplyTo: replyTo}
}

func (f *fixture) command(from User, text string) *Message {
	m := f.message(from, text, nil)
	f.bot.Handle(context.Background(), Update{Message: m})
	return m
}

func (f *fixture) replyCommand(from User, text string, to *Message) {
	f.bot.Handle(context.Background(), Update{Message: f.message(from, text, to)})
}

func (f *fixture) press(from User, btn Button, msg MessageRef) {
	f.cbID++
	f.bot.Handle(context.Background(), Update{Callback: &Callback{
		ID:      "cb" + strconv.Itoa(f.cbID),
		From:    from,
		Message: msg,
		Data:    btn.Data,
	}})
}

// find returns the first button whose label contains text.
func find(t *testing.T, kb Keyboard, text string) Button {
	t.Helper()
	for _, row := range kb {
		for _, b := range row {
			if strings.Contains(b.Text, text) {
				return b
			}
		}
	}
	require.Failf(t, "button not found", "no button labelled %q in %v", text, kb)
	return Button{}
}

func ref(id int) MessageRef { return MessageRef{ChatID: testChat, MessageID: id} }

// start onboards u with the named starter.
func (f *fixture) start(t *testing.T, u User, starter string) *trainer.Trainer {
	t.Helper()
	f.command(u, "/start")
	menu := f.tx.lastSent(t)
	f.press(u, find(t, menu.Keyboard, starter), ref(1))
	f.tick()
	tr, err := f.repo.Get(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, tr.Started)
	return tr
}

// give adds a creature straight to u's document.
func (f *fixture) give(t *testing.T, u User, species string, level int) *creature.Creature {
	t.Helper()
	c, err := f.factory.CreateByName(species, level, creature.Options{})
	require.NoError(t, err)
	_, err = f.repo.AddCreature(context.Background(), u.ID, c)
	require.NoError(t, err)
	return c
}

// stock adds n of item to u's bucket.
func (f *fixture) stock(t *testing.T, u User, bucket trainer.Bucket, item string, n int) {
	t.Helper()
	_, err := f.repo.Update(context.Background(), u.ID, func(tr *trainer.Trainer) error {
		tr.Inventory.Add(bucket, item, n)
		return nil
	})
	require.NoError(t, err)
}

// creature returns u's stored creature with uuid.
func (f *fixture) creature(t *testing.T, u User, uuid string) *creature.Creature {
	t.Helper()
	tr, err := f.repo.Get(context.Background(), u.ID)
	require.NoError(t, err)
	c, _ := tr.Find(uuid)
	require.NotNil(t, c, "creature %s is gone", uuid)
	return c
}
