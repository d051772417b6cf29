// Package trainer models the per-user document: the creature collection, the
// team projected from it, inventory, currency and account flags. Every
// mutation keeps the team a subset of the collection.
package trainer

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/creature"
)

// MaxTeam is the most creatures a team can hold.
const MaxTeam = 6

// DefaultRegion is where new trainers start.
const DefaultRegion = "kanto"

// Trainer errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoBalls           = errors.New("no balls of that kind left")
	ErrNoItem            = errors.New("item not in inventory")
	ErrCreatureNotFound  = errors.New("creature not found")
	ErrInvalidTeam       = errors.New("invalid team")
	ErrLastCreature      = errors.New("cannot part with your last creature")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// SortKey orders collection listings.
type SortKey string

const (
	SortCaught SortKey = "caught"
	SortLevel  SortKey = "level"
	SortName   SortKey = "name"
	SortNumber SortKey = "number"
)

// SortKeys lists the sort options in menu order.
var SortKeys = []SortKey{SortCaught, SortLevel, SortName, SortNumber}

// DisplayMode controls how much detail listings show.
type DisplayMode string

const (
	DisplayCompact  DisplayMode = "compact"
	DisplayDetailed DisplayMode = "detailed"
)

// Preferences are the listing knobs set via /sort and /display.
type Preferences struct {
	Sort    SortKey     `json:"sort"`
	Display DisplayMode `json:"display"`
}

// Trainer is one user document.
//
// Invariant: every UUID in Team resolves in Collection; len(Team) <= MaxTeam.
// Invariant: Currency >= 0 and every inventory count is positive.
type Trainer struct {
	ID          int64                `json:"id"`
	Username    string               `json:"username,omitempty"`
	FirstName   string               `json:"first_name,omitempty"`
	Collection  []*creature.Creature `json:"collection"`
	Team        []string             `json:"team"`
	Inventory   Inventory            `json:"inventory"`
	Currency    int                  `json:"currency"`
	Region      string               `json:"current_region"`
	Preferences Preferences          `json:"preferences"`
	Started     bool                 `json:"started"`
	Badges      []string             `json:"badges,omitempty"`
	LastSafari  *time.Time           `json:"last_safari,omitempty"`
	Killed      bool                 `json:"killed"`
	CreatedAt   time.Time            `json:"created_at"`
}

// New returns an empty trainer document in the default region.
func New(id int64, username, firstName string, now time.Time) *Trainer {
	return &Trainer{
		ID:          id,
		Username:    username,
		FirstName:   firstName,
		Collection:  []*creature.Creature{},
		Team:        []string{},
		Inventory:   Inventory{},
		Region:      DefaultRegion,
		Preferences: Preferences{Sort: SortCaught, Display: DisplayCompact},
		CreatedAt:   now,
	}
}

// StarterCurrency is the balance granted with the starter kit.
const StarterCurrency = 1000

// GrantStarterKit gives a newly onboarded trainer their first supplies.
func (t *Trainer) GrantStarterKit() {
	t.ensureInventory()
	t.Inventory.Add(BucketBalls, "pokeball", 10)
	t.Inventory.Add(BucketBalls, "greatball", 3)
	t.Inventory.Add(BucketPotions, "potion", 5)
	t.Inventory.Add(BucketCandy, RareCandy, 1)
	t.Inventory.Add(BucketRods, "old-rod", 1)
	t.Currency += StarterCurrency
	t.Started = true
}

// DisplayName returns the handle shown in chat.
func (t *Trainer) DisplayName() string {
	switch {
	case t.Username != "":
		return "@" + t.Username
	case t.FirstName != "":
		return t.FirstName
	}
	return "Trainer " + strconv.FormatInt(t.ID, 10)
}

func (t *Trainer) ensureInventory() {
	if t.Inventory == nil {
		t.Inventory = Inventory{}
	}
}

// Find returns the collection member with uuid and its index.
func (t *Trainer) Find(uuid string) (*creature.Creature, int) {
	for i, c := range t.Collection {
		if c.UUID == uuid {
			return c, i
		}
	}
	return nil, -1
}

// ShortIDLen is the length of the creature id prefix carried in button payloads.
const ShortIDLen = 8

// ShortID returns the payload form of a creature id.
func ShortID(uuid string) string {
	if len(uuid) <= ShortIDLen {
		return uuid
	}
	return uuid[:ShortIDLen]
}

// FindPrefix finds a creature whose id starts with prefix.
//
// Postcondition: Returns (nil, -1) when no creature or more than one matches.
func (t *Trainer) FindPrefix(prefix string) (*creature.Creature, int) {
	if prefix == "" {
		return nil, -1
	}
	var (
		found *creature.Creature
		at    = -1
	)
	for i, c := range t.Collection {
		if !strings.HasPrefix(c.UUID, prefix) {
			continue
		}
		if found != nil {
			return nil, -1
		}
		found, at = c, i
	}
	return found, at
}

// FindByName returns every collection member of the named species, in
// collection order.
func (t *Trainer) FindByName(name string) []*creature.Creature {
	key := catalog.NormalizeName(name)
	var out []*creature.Creature
	for _, c := range t.Collection {
		if c.Name == key {
			out = append(out, c)
		}
	}
	return out
}

// SpeciesNames returns the distinct species names in the collection.
func (t *Trainer) SpeciesNames() []string {
	seen := make(map[string]bool, len(t.Collection))
	var out []string
	for _, c := range t.Collection {
		if !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c.Name)
		}
	}
	return out
}

// InTeam reports whether uuid is on the team.
func (t *Trainer) InTeam(uuid string) bool {
	for _, u := range t.Team {
		if u == uuid {
			return true
		}
	}
	return false
}

// TeamCreatures projects the team from the collection, in battle order.
// The returned pointers alias collection members.
func (t *Trainer) TeamCreatures() []*creature.Creature {
	out := make([]*creature.Creature, 0, len(t.Team))
	for _, u := range t.Team {
		if c, _ := t.Find(u); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// HighestTeamLevel returns the top level on the team, or 0 when empty.
func (t *Trainer) HighestTeamLevel() int {
	top := 0
	for _, c := range t.TeamCreatures() {
		top = max(top, c.Level)
	}
	return top
}

// AddCreature stores c in the collection and claims it for t. It joins the
// team when there is room.
//
// Postcondition: Returns whether c was placed on the team.
func (t *Trainer) AddCreature(c *creature.Creature) bool {
	id := t.ID
	c.TrainerID = &id
	t.Collection = append(t.Collection, c)
	if len(t.Team) < MaxTeam {
		t.Team = append(t.Team, c.UUID)
		return true
	}
	return false
}

// Release removes the creature with uuid from the collection and the team.
//
// Postcondition: Returns ErrCreatureNotFound or ErrLastCreature with t unchanged.
func (t *Trainer) Release(uuid string) (*creature.Creature, error) {
	c, i := t.Find(uuid)
	if c == nil {
		return nil, ErrCreatureNotFound
	}
	if len(t.Collection) == 1 {
		return nil, ErrLastCreature
	}
	t.Collection = append(t.Collection[:i:i], t.Collection[i+1:]...)
	t.dropFromTeam(uuid)
	return c, nil
}

// ReleaseAt removes the collection member at index i.
func (t *Trainer) ReleaseAt(i int) (*creature.Creature, error) {
	if i < 0 || i >= len(t.Collection) {
		return nil, ErrCreatureNotFound
	}
	return t.Release(t.Collection[i].UUID)
}

func (t *Trainer) dropFromTeam(uuid string) {
	out := t.Team[:0:0]
	for _, u := range t.Team {
		if u != uuid {
			out = append(out, u)
		}
	}
	t.Team = out
}

// SetTeam replaces the team with uuids, in order.
//
// Precondition: 1 <= len(uuids) <= MaxTeam; uuids distinct and in the collection.
func (t *Trainer) SetTeam(uuids []string) error {
	if len(uuids) == 0 || len(uuids) > MaxTeam {
		return fmt.Errorf("%w: a team holds 1 to %d creatures", ErrInvalidTeam, MaxTeam)
	}
	seen := make(map[string]bool, len(uuids))
	for _, u := range uuids {
		if seen[u] {
			return fmt.Errorf("%w: duplicate member", ErrInvalidTeam)
		}
		seen[u] = true
		if c, _ := t.Find(u); c == nil {
			return fmt.Errorf("%w: %s", ErrCreatureNotFound, u)
		}
	}
	t.Team = append([]string(nil), uuids...)
	return nil
}

// ToggleTeam adds uuid to the team or removes it.
//
// Postcondition: Returns whether uuid is on the team afterwards.
func (t *Trainer) ToggleTeam(uuid string) (bool, error) {
	if c, _ := t.Find(uuid); c == nil {
		return false, ErrCreatureNotFound
	}
	if t.InTeam(uuid) {
		if len(t.Team) == 1 {
			return true, fmt.Errorf("%w: the team can't be empty", ErrInvalidTeam)
		}
		t.dropFromTeam(uuid)
		return false, nil
	}
	if len(t.Team) >= MaxTeam {
		return false, fmt.Errorf("%w: the team is full", ErrInvalidTeam)
	}
	t.Team = append(t.Team, uuid)
	return true, nil
}

// UpdateCreature applies fn to the collection member with uuid. Team members
// are projections, so the change is visible there too.
func (t *Trainer) UpdateCreature(uuid string, fn func(*creature.Creature) error) error {
	c, _ := t.Find(uuid)
	if c == nil {
		return ErrCreatureNotFound
	}
	return fn(c)
}

// ReplaceCreatures overwrites collection members that share a UUID with one
// of cs. Members released in the meantime are skipped.
//
// Postcondition: Returns the number of members replaced.
func (t *Trainer) ReplaceCreatures(cs []*creature.Creature) int {
	n := 0
	for _, c := range cs {
		if c == nil {
			continue
		}
		if _, i := t.Find(c.UUID); i >= 0 {
			t.Collection[i] = c
			n++
		}
	}
	return n
}

// HealTeam restores every team member to full HP.
func (t *Trainer) HealTeam() {
	for _, c := range t.TeamCreatures() {
		c.HealFull()
	}
}

// AddCurrency changes the balance by delta.
//
// Postcondition: Returns ErrInsufficientFunds with t unchanged if the balance would go negative.
func (t *Trainer) AddCurrency(delta int) error {
	if t.Currency+delta < 0 {
		return fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, t.Currency, -delta)
	}
	t.Currency += delta
	return nil
}

// AwardBadge records a gym badge. Returns false if it was already held.
func (t *Trainer) AwardBadge(badge string) bool {
	for _, b := range t.Badges {
		if strings.EqualFold(b, badge) {
			return false
		}
	}
	t.Badges = append(t.Badges, badge)
	return true
}

// Sorted returns the collection ordered by the trainer's sort preference.
// The collection itself is left in catch order.
func (t *Trainer) Sorted() []*creature.Creature {
	out := append([]*creature.Creature(nil), t.Collection...)
	switch t.Preferences.Sort {
	case SortLevel:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Level > out[j].Level })
	case SortName:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	case SortNumber:
		sort.SliceStable(out, func(i, j int) bool { return out[i].SpeciesID < out[j].SpeciesID })
	}
	return out
}

// Validate checks the document invariants.
func (t *Trainer) Validate() error {
	var errs []error
	if len(t.Team) > MaxTeam {
		errs = append(errs, fmt.Errorf("team has %d members", len(t.Team)))
	}
	seen := make(map[string]bool, len(t.Team))
	for _, u := range t.Team {
		if seen[u] {
			errs = append(errs, fmt.Errorf("team lists %s twice", u))
		}
		seen[u] = true
		if c, _ := t.Find(u); c == nil {
			errs = append(errs, fmt.Errorf("team member %s not in collection", u))
		}
	}
	if t.Currency < 0 {
		errs = append(errs, fmt.Errorf("currency %d is negative", t.Currency))
	}
	for b, items := range t.Inventory {
		for name, n := range items {
			if n <= 0 {
				errs = append(errs, fmt.Errorf("%s/%s count %d", b, name, n))
			}
		}
	}
	return errors.Join(errs...)
}

// Swap trades creature ua of a for creature ub of b. Both leave their old
// owner's team and join the new owner's team when there is room.
//
// Postcondition: On error neither trainer is changed.
func Swap(a, b *Trainer, ua, ub string) error {
	ca, _ := a.Find(ua)
	cb, _ := b.Find(ub)
	if ca == nil || cb == nil {
		return ErrCreatureNotFound
	}
	a.removeAny(ua)
	b.removeAny(ub)
	a.AddCreature(cb)
	b.AddCreature(ca)
	return nil
}

// removeAny drops uuid from the collection and team without the last-creature check.
func (t *Trainer) removeAny(uuid string) {
	if _, i := t.Find(uuid); i >= 0 {
		t.Collection = append(t.Collection[:i:i], t.Collection[i+1:]...)
	}
	t.dropFromTeam(uuid)
}

// Transfer moves amount currency from one trainer to another.
//
// Postcondition: On error neither balance changes.
func Transfer(from, to *Trainer, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := from.AddCurrency(-amount); err != nil {
		return err
	}
	to.Currency += amount
	return nil
}
