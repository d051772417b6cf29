package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pokebot/pokebot/internal/game/stats"
)

// Content file names inside the data directory.
const (
	FileSpecies    = "poke.json"
	FileLearnsets  = "pokeMoves.json"
	FileMoves      = "move_info.json"
	FileDamaging   = "damaging_moves.json"
	FileTMs        = "tmhm.json"
	FileEvolutions = "evolve.json"
	FileRegions    = "regionInfo.json"
	FileEVYield    = "evYield.json"
	FileGyms       = "gym_leaders.json"
	FileBalls      = "balls.yaml"
	DirSpecial     = "specialMoves"
)

// Load reads every content file from fsys and builds an immutable Catalog.
//
// Precondition: fsys must contain all required content files.
// Postcondition: Returns a fully indexed Catalog or an error naming the offending file.
func Load(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{
		species:    make(map[int]*Species),
		byName:     make(map[string]*Species),
		moves:      make(map[string]*Move),
		damaging:   make(map[string]bool),
		special:    make(map[string][]learnEntry),
		tms:        make(map[string]*TM),
		evolutions: make(map[string]Evolution),
		regions:    make(map[string]*Region),
		evYield:    make(map[string]stats.Block),
		gyms:       make(map[string]*GymLeader),
		balls:      make(map[string]*Ball),
	}

	steps := []func(fs.FS) error{
		c.loadSpecies,
		c.loadMoves,
		c.loadDamaging,
		c.loadLearnsets,
		c.loadSpecial,
		c.loadTMs,
		c.loadEvolutions,
		c.loadRegions,
		c.loadEVYield,
		c.loadGyms,
		c.loadBalls,
	}
	for _, step := range steps {
		if err := step(fsys); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func readJSON(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

func (c *Catalog) loadSpecies(fsys fs.FS) error {
	var list []*Species
	if err := readJSON(fsys, FileSpecies, &list); err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("%s: no species defined", FileSpecies)
	}
	for _, sp := range list {
		if sp.ID <= 0 || sp.Name == "" {
			return fmt.Errorf("%s: species must have a positive id and a name (id=%d)", FileSpecies, sp.ID)
		}
		if !sp.GrowthRate.Valid() {
			return fmt.Errorf("%s: species %q has unknown growth rate %q", FileSpecies, sp.Name, sp.GrowthRate)
		}
		if sp.CaptureRate < 1 || sp.CaptureRate > 255 {
			return fmt.Errorf("%s: species %q capture_rate %d out of range 1-255", FileSpecies, sp.Name, sp.CaptureRate)
		}
		if _, dup := c.species[sp.ID]; dup {
			return fmt.Errorf("%s: duplicate species id %d", FileSpecies, sp.ID)
		}
		sp.Name = NormalizeName(sp.Name)
		c.species[sp.ID] = sp
		c.byName[sp.Name] = sp
		c.speciesIDs = append(c.speciesIDs, sp.ID)
	}
	sort.Ints(c.speciesIDs)
	return nil
}

func (c *Catalog) loadMoves(fsys fs.FS) error {
	var raw map[string]*Move
	if err := readJSON(fsys, FileMoves, &raw); err != nil {
		return err
	}
	for name, m := range raw {
		key := NormalizeName(name)
		m.Name = key
		m.Type = strings.ToLower(m.Type)
		if m.Category == "" {
			m.Category = Status
		}
		c.moves[key] = m
	}
	return nil
}

func (c *Catalog) loadDamaging(fsys fs.FS) error {
	var names []string
	if err := readJSON(fsys, FileDamaging, &names); err != nil {
		return err
	}
	for _, n := range names {
		c.damaging[NormalizeName(n)] = true
	}
	return nil
}

func (c *Catalog) loadLearnsets(fsys fs.FS) error {
	var raw map[string][]learnEntry
	if err := readJSON(fsys, FileLearnsets, &raw); err != nil {
		return err
	}
	c.learnsets = make(map[string][]learnEntry, len(raw))
	for name, entries := range raw {
		c.learnsets[NormalizeName(name)] = entries
	}
	return nil
}

func (c *Catalog) loadSpecial(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, DirSpecial)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", DirSpecial, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var list []learnEntry
		if err := readJSON(fsys, path.Join(DirSpecial, e.Name()), &list); err != nil {
			return err
		}
		key := NormalizeName(strings.TrimSuffix(e.Name(), ".json"))
		c.special[key] = list
	}
	return nil
}

func (c *Catalog) loadTMs(fsys fs.FS) error {
	var raw map[string]*TM
	if err := readJSON(fsys, FileTMs, &raw); err != nil {
		return err
	}
	for id, tm := range raw {
		tm.ID = strings.ToUpper(id)
		tm.Move = NormalizeName(tm.Move)
		if _, ok := c.moves[tm.Move]; !ok {
			return fmt.Errorf("%s: %s teaches %q: %w", FileTMs, tm.ID, tm.Move, ErrUnknownMove)
		}
		c.tms[tm.ID] = tm
	}
	return nil
}

func (c *Catalog) loadEvolutions(fsys fs.FS) error {
	var raw map[string]Evolution
	if err := readJSON(fsys, FileEvolutions, &raw); err != nil {
		return err
	}
	for name, evo := range raw {
		evo.Target = NormalizeName(evo.Target)
		if _, ok := c.byName[evo.Target]; !ok {
			return fmt.Errorf("%s: %q evolves into %q: %w", FileEvolutions, name, evo.Target, ErrUnknownSpecies)
		}
		if evo.Method == "" {
			evo.Method = MethodLevelUp
		}
		c.evolutions[NormalizeName(name)] = evo
	}
	return nil
}

func (c *Catalog) loadRegions(fsys fs.FS) error {
	var raw map[string]*Region
	if err := readJSON(fsys, FileRegions, &raw); err != nil {
		return err
	}
	for name, r := range raw {
		if r.Start > r.End {
			return fmt.Errorf("%s: region %q has start %d after end %d", FileRegions, name, r.Start, r.End)
		}
		r.Name = NormalizeName(name)
		c.regions[r.Name] = r
	}
	return nil
}

func (c *Catalog) loadEVYield(fsys fs.FS) error {
	var raw map[string]stats.Block
	if err := readJSON(fsys, FileEVYield, &raw); err != nil {
		return err
	}
	for name, y := range raw {
		c.evYield[NormalizeName(name)] = y
	}
	return nil
}

func (c *Catalog) loadGyms(fsys fs.FS) error {
	var raw map[string]*GymLeader
	if err := readJSON(fsys, FileGyms, &raw); err != nil {
		return err
	}
	for name, g := range raw {
		g.Name = NormalizeName(name)
		for _, m := range g.Team {
			if _, ok := c.byName[NormalizeName(m.Name)]; !ok {
				return fmt.Errorf("%s: leader %q fields %q: %w", FileGyms, name, m.Name, ErrUnknownSpecies)
			}
		}
		c.gyms[g.Name] = g
	}
	return nil
}

func (c *Catalog) loadBalls(fsys fs.FS) error {
	data, err := fs.ReadFile(fsys, FileBalls)
	if err != nil {
		return fmt.Errorf("reading %s: %w", FileBalls, err)
	}
	var list []*Ball
	if err := yaml.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parsing %s: %w", FileBalls, err)
	}
	for _, b := range list {
		if b.Name == "" || strings.TrimSpace(b.Script) == "" {
			return fmt.Errorf("%s: every ball needs a name and a script", FileBalls)
		}
		b.Name = NormalizeName(b.Name)
		if b.Display == "" {
			b.Display = DisplayName(b.Name)
		}
		c.balls[b.Name] = b
		c.ballOrder = append(c.ballOrder, b.Name)
	}
	return nil
}
