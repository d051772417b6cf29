package trainer

import (
	"sort"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/stats"
)

// Bucket groups inventory items by kind.
type Bucket string

const (
	BucketBalls    Bucket = "pokeballs"
	BucketPotions  Bucket = "potions"
	BucketBerries  Bucket = "berries"
	BucketVitamins Bucket = "vitamins"
	BucketTMs      Bucket = "tms"
	BucketCandy    Bucket = "candy"
	BucketStones   Bucket = "stones"
	BucketRods     Bucket = "rods"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{
	BucketBalls, BucketPotions, BucketBerries, BucketVitamins,
	BucketTMs, BucketCandy, BucketStones, BucketRods,
}

// ParseBucket resolves a bucket name, accepting the singular form.
func ParseBucket(name string) (Bucket, bool) {
	n := catalog.NormalizeName(name)
	for _, b := range Buckets {
		if string(b) == n || string(b) == n+"s" || (b == BucketCandy && n == "candies") {
			return b, true
		}
	}
	if n == "balls" || n == "ball" {
		return BucketBalls, true
	}
	return "", false
}

// RareCandy is the single candy item.
const RareCandy = "rare-candy"

var vitamins = map[stats.Stat]string{
	stats.HP:        "hp-up",
	stats.Attack:    "protein",
	stats.Defense:   "iron",
	stats.SpAttack:  "calcium",
	stats.SpDefense: "zinc",
	stats.Speed:     "carbos",
}

var berries = map[stats.Stat]string{
	stats.HP:        "pomeg-berry",
	stats.Attack:    "kelpsy-berry",
	stats.Defense:   "qualot-berry",
	stats.SpAttack:  "hondew-berry",
	stats.SpDefense: "grepa-berry",
	stats.Speed:     "tamato-berry",
}

// VitaminFor returns the vitamin that raises s.
func VitaminFor(s stats.Stat) string { return vitamins[s] }

// BerryFor returns the berry that lowers s.
func BerryFor(s stats.Stat) string { return berries[s] }

// Inventory maps bucket → item → count. A nil Inventory reads as empty.
//
// Invariant: every count is positive; items at zero are removed.
type Inventory map[Bucket]map[string]int

// Count returns how many of item the inventory holds.
func (inv Inventory) Count(b Bucket, item string) int {
	return inv[b][catalog.NormalizeName(item)]
}

// Add puts n of item into bucket b.
//
// Precondition: inv is non-nil; n > 0.
func (inv Inventory) Add(b Bucket, item string, n int) {
	if n <= 0 {
		return
	}
	if inv[b] == nil {
		inv[b] = make(map[string]int)
	}
	inv[b][catalog.NormalizeName(item)] += n
}

// Take removes n of item from bucket b.
//
// Postcondition: Returns ErrNoBalls for the ball bucket and ErrNoItem
// otherwise when fewer than n are held; the inventory is unchanged then.
func (inv Inventory) Take(b Bucket, item string, n int) error {
	key := catalog.NormalizeName(item)
	have := inv[b][key]
	if n <= 0 {
		return nil
	}
	if have < n {
		if b == BucketBalls {
			return ErrNoBalls
		}
		return ErrNoItem
	}
	if have == n {
		delete(inv[b], key)
		return nil
	}
	inv[b][key] = have - n
	return nil
}

// Item is one inventory line.
type Item struct {
	Name  string
	Count int
}

// Items returns the contents of bucket b sorted by name.
func (inv Inventory) Items(b Bucket) []Item {
	out := make([]Item, 0, len(inv[b]))
	for name, n := range inv[b] {
		out = append(out, Item{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasAny reports whether bucket b holds anything.
func (inv Inventory) HasAny(b Bucket) bool {
	return len(inv[b]) > 0
}

// Clone returns a deep copy.
func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for b, items := range inv {
		m := make(map[string]int, len(items))
		for k, v := range items {
			m[k] = v
		}
		out[b] = m
	}
	return out
}
