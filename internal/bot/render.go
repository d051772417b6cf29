package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/stats"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

const hpBarWidth = 10

// hpBar renders cur/max as a ten-cell bar.
func hpBar(cur, max int) string {
	filled := 0
	if max > 0 {
		filled = cur * hpBarWidth / max
		if cur > 0 && filled == 0 {
			filled = 1
		}
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", hpBarWidth-filled)
}

func hpLine(c *creature.Creature) string {
	return fmt.Sprintf("HP %s %d/%d", hpBar(c.CurrentHP, c.MaxHP), c.CurrentHP, c.MaxHP)
}

// creatureLine is the one-line listing form.
func creatureLine(c *creature.Creature, inTeam, detailed bool) string {
	var sb strings.Builder
	if inTeam {
		sb.WriteString("⭐ ")
	}
	fmt.Fprintf(&sb, "%s Lv%d", c.DisplayName(), c.Level)
	if detailed {
		fmt.Fprintf(&sb, " [%s] %s, %s", strings.Join(c.Types, "/"), hpLine(c), c.Nature)
	}
	return sb.String()
}

// creatureCard is the /show view.
func creatureCard(c *creature.Creature, inTeam bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  Lv%d", c.DisplayName(), c.Level)
	if inTeam {
		sb.WriteString("  ⭐ team")
	}
	fmt.Fprintf(&sb, "\nType: %s   Nature: %s\n", strings.Join(c.Types, "/"), c.Nature)
	sb.WriteString(hpLine(c))
	bar, remaining := stats.ExpBar(c.GrowthRate, c.Level, c.Experience)
	fmt.Fprintf(&sb, "\nEXP %s %d to next level\n\n", bar, remaining)
	sb.WriteString("Stat     Value  IV  EV\n")
	for _, s := range stats.All {
		fmt.Fprintf(&sb, "%-8s %5d  %2d  %3d\n", statLabel(s), c.Stats.Get(s), c.IVs.Get(s), c.EVs.Get(s))
	}
	sb.WriteString("\nActive moves: ")
	if len(c.ActiveMoves) == 0 {
		sb.WriteString("none")
	} else {
		names := make([]string, len(c.ActiveMoves))
		for i, m := range c.ActiveMoves {
			names[i] = catalog.DisplayName(m)
		}
		sb.WriteString(strings.Join(names, ", "))
	}
	fmt.Fprintf(&sb, "\nKnown moves: %d", len(c.Moves))
	if c.CapturedWith != "" {
		fmt.Fprintf(&sb, "\nCaught with: %s", catalog.DisplayName(c.CapturedWith))
	}
	return sb.String()
}

func statLabel(s stats.Stat) string {
	switch s {
	case stats.HP:
		return "HP"
	case stats.Attack:
		return "Atk"
	case stats.Defense:
		return "Def"
	case stats.SpAttack:
		return "SpAtk"
	case stats.SpDefense:
		return "SpDef"
	}
	return "Speed"
}

// inventoryText lists every non-empty bucket.
func inventoryText(t *trainer.Trainer) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎒 %s's bag\n💰 %d PokéDollars\n", t.DisplayName(), t.Currency)
	empty := true
	for _, b := range trainer.Buckets {
		items := t.Inventory.Items(b)
		if len(items) == 0 {
			continue
		}
		empty = false
		fmt.Fprintf(&sb, "\n%s:\n", catalog.DisplayName(string(b)))
		for _, it := range items {
			fmt.Fprintf(&sb, "  %s x%d\n", catalog.DisplayName(it.Name), it.Count)
		}
	}
	if empty {
		sb.WriteString("\nYour bag is empty.")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// battleText renders the events of a report followed by the current state.
func battleText(rep *combat.Report) string {
	var sb strings.Builder
	for _, ev := range rep.Events {
		if ev.Narrative != "" {
			sb.WriteString(ev.Narrative)
			sb.WriteByte('\n')
		}
	}
	if sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	snap := rep.Battle
	for i := len(snap.Sides) - 1; i >= 0; i-- {
		side := snap.Sides[i]
		if side.Active == nil {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s Lv%d\n%s\n", side.Name, side.Active.DisplayName(), side.Active.Level, hpLine(side.Active))
	}
	if rep.Result != nil {
		sb.WriteString("\n")
		sb.WriteString(resultText(rep))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// resultText is the closing line of a finished battle.
func resultText(rep *combat.Report) string {
	res := rep.Result
	snap := rep.Battle
	winner := ""
	if res.Winner >= 0 && res.Winner < len(snap.Sides) {
		winner = snap.Sides[res.Winner].Name
	}
	var line string
	switch res.Reason {
	case combat.EndCaught:
		line = fmt.Sprintf("%s was added to your collection.", res.Caught.DisplayName())
	case combat.EndFled:
		line = "You ran away."
	case combat.EndVictory:
		line = winner + " won the battle!"
	case combat.EndDefeat:
		line = "You were defeated."
	case combat.EndForfeit:
		line = winner + " wins by forfeit."
	case combat.EndTimeout:
		if winner == "" {
			line = "The battle timed out."
		} else {
			line = winner + " wins, the opponent ran out of time."
		}
	case combat.EndDeclined:
		line = "The duel was called off."
	case combat.EndExpired:
		line = "The challenge expired."
	default:
		line = "The battle was stopped."
	}
	if res.Reward > 0 {
		line += fmt.Sprintf(" You earned %d PokéDollars.", res.Reward)
	}
	if res.Teams[0] != nil || res.Teams[1] != nil {
		line += " Your team was healed."
	}
	return line
}

// moveButtons lays out the active moves two per row.
func moveButtons(c *creature.Creature, owner int64, ns string, battleID int64) Keyboard {
	var kb Keyboard
	var row []Button
	for i, m := range c.ActiveMoves {
		row = append(row, button(catalog.DisplayName(m), owner, ns, "move", id(battleID), strconv.Itoa(i)))
		if len(row) == 2 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	return kb
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

// chunk lays buttons out n per row.
func chunk(buttons []Button, n int) Keyboard {
	var kb Keyboard
	for len(buttons) > 0 {
		k := min(n, len(buttons))
		kb = append(kb, buttons[:k])
		buttons = buttons[k:]
	}
	return kb
}
