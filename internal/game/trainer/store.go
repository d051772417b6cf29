package trainer

import (
	"context"
	"errors"
	"time"

	"github.com/pokebot/pokebot/internal/game/creature"
)

// ErrNotFound is returned when no document exists for a user id.
var ErrNotFound = errors.New("trainer not found")

// Store is the document persistence contract. Update and UpdatePair run fn
// on a freshly read document and write the result back atomically; when fn
// fails nothing is written.
type Store interface {
	Load(ctx context.Context, id int64) (*Trainer, error)
	// Create inserts t unless a document already exists and returns the
	// stored document and whether it was newly created.
	Create(ctx context.Context, t *Trainer) (*Trainer, bool, error)
	Update(ctx context.Context, id int64, fn func(*Trainer) error) (*Trainer, error)
	// UpdatePair locks both documents in id order.
	UpdatePair(ctx context.Context, a, b int64, fn func(a, b *Trainer) error) error
	IsKilled(ctx context.Context, id int64) (bool, error)
}

// Repository offers the typed document operations the game needs on top of
// a Store. Every multi-field change is a single Update.
type Repository struct {
	store Store
	now   func() time.Time
}

// NewRepository wraps store.
func NewRepository(store Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// Store returns the underlying store.
func (r *Repository) Store() Store { return r.store }

// GetOrCreate returns the user's document, creating an empty one on first
// contact. Username changes are written back.
//
// Postcondition: Idempotent; the bool reports whether the document is new.
func (r *Repository) GetOrCreate(ctx context.Context, id int64, username, firstName string) (*Trainer, bool, error) {
	t, err := r.store.Load(ctx, id)
	if err == nil {
		if username != "" && username != t.Username {
			t, err := r.store.Update(ctx, id, func(t *Trainer) error {
				t.Username = username
				return nil
			})
			return t, false, err
		}
		return t, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	return r.store.Create(ctx, New(id, username, firstName, r.now()))
}

// Get returns the user's document.
func (r *Repository) Get(ctx context.Context, id int64) (*Trainer, error) {
	return r.store.Load(ctx, id)
}

// Update runs fn against the user's document.
func (r *Repository) Update(ctx context.Context, id int64, fn func(*Trainer) error) (*Trainer, error) {
	return r.store.Update(ctx, id, fn)
}

// UpdatePair runs fn against two documents atomically.
func (r *Repository) UpdatePair(ctx context.Context, a, b int64, fn func(a, b *Trainer) error) error {
	return r.store.UpdatePair(ctx, a, b, fn)
}

// Team returns the team projected from the collection.
func (r *Repository) Team(ctx context.Context, id int64) ([]*creature.Creature, error) {
	t, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.TeamCreatures(), nil
}

// SetTeam replaces the team.
func (r *Repository) SetTeam(ctx context.Context, id int64, uuids []string) error {
	_, err := r.store.Update(ctx, id, func(t *Trainer) error { return t.SetTeam(uuids) })
	return err
}

// Collection returns the full collection in catch order.
func (r *Repository) Collection(ctx context.Context, id int64) ([]*creature.Creature, error) {
	t, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.Collection, nil
}

// AddCreature stores c for the user.
//
// Postcondition: Returns whether c joined the team.
func (r *Repository) AddCreature(ctx context.Context, id int64, c *creature.Creature) (bool, error) {
	var inTeam bool
	_, err := r.store.Update(ctx, id, func(t *Trainer) error {
		inTeam = t.AddCreature(c)
		return nil
	})
	return inTeam, err
}

// Release removes the collection member at index.
func (r *Repository) Release(ctx context.Context, id int64, index int) (*creature.Creature, error) {
	var released *creature.Creature
	_, err := r.store.Update(ctx, id, func(t *Trainer) error {
		c, err := t.ReleaseAt(index)
		released = c
		return err
	})
	return released, err
}

// UpdateMoves saves a creature's active move set through set, which
// validates the names.
func (r *Repository) UpdateMoves(ctx context.Context, id int64, uuid string, set func(*creature.Creature) error) error {
	_, err := r.store.Update(ctx, id, func(t *Trainer) error {
		return t.UpdateCreature(uuid, set)
	})
	return err
}

// Inventory returns a copy of the user's inventory.
func (r *Repository) Inventory(ctx context.Context, id int64) (Inventory, error) {
	t, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.Inventory.Clone(), nil
}

// SetInventory replaces the user's inventory.
func (r *Repository) SetInventory(ctx context.Context, id int64, inv Inventory) error {
	_, err := r.store.Update(ctx, id, func(t *Trainer) error {
		t.Inventory = inv.Clone()
		return nil
	})
	return err
}

// Balls returns the ball bucket.
func (r *Repository) Balls(ctx context.Context, id int64) ([]Item, error) {
	t, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.Inventory.Items(BucketBalls), nil
}

// TakeItem removes one item from bucket b.
//
// Postcondition: Returns ErrNoBalls or ErrNoItem with nothing written.
func (r *Repository) TakeItem(ctx context.Context, id int64, b Bucket, item string) error {
	_, err := r.store.Update(ctx, id, func(t *Trainer) error {
		t.ensureInventory()
		return t.Inventory.Take(b, item, 1)
	})
	return err
}

// IncrCurrency changes the balance by delta.
//
// Postcondition: Returns ErrInsufficientFunds with nothing written if the
// balance would go negative.
func (r *Repository) IncrCurrency(ctx context.Context, id int64, delta int) (int, error) {
	t, err := r.store.Update(ctx, id, func(t *Trainer) error { return t.AddCurrency(delta) })
	if err != nil {
		return 0, err
	}
	return t.Currency, nil
}

// IsKilled reports whether the user is blocked. Unknown users are not.
func (r *Repository) IsKilled(ctx context.Context, id int64) (bool, error) {
	return r.store.IsKilled(ctx, id)
}
