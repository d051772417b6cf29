// Package command provides the slash-command registry, parser, and built-in command definitions.
package command

// Categories for organizing commands.
const (
	CategoryTrainer    = "trainer"
	CategoryWild       = "wild"
	CategoryManagement = "management"
	CategoryBattle     = "battle"
	CategorySocial     = "social"
	CategoryAdmin      = "admin"
)

// Handler identifiers mapping commands to bot handlers.
const (
	HandlerStart       = "start"
	HandlerInventory   = "myinventory"
	HandlerCollection  = "mypokemons"
	HandlerTeam        = "myteam"
	HandlerSort        = "sort"
	HandlerDisplay     = "display"
	HandlerHunt        = "hunt"
	HandlerFish        = "fish"
	HandlerRods        = "rods"
	HandlerSafari      = "safari"
	HandlerExplore     = "explore"
	HandlerClose       = "close"
	HandlerShow        = "show"
	HandlerRelease     = "release"
	HandlerCandy       = "candy"
	HandlerEvolve      = "evolve"
	HandlerTM          = "tm"
	HandlerBerry       = "berry"
	HandlerVitamin     = "vitamin"
	HandlerDuel        = "duel"
	HandlerGym         = "gym"
	HandlerTravel      = "travel"
	HandlerTrade       = "trade"
	HandlerGive        = "give"
	HandlerXPIn        = "xpin"
	HandlerHelp        = "help"
	HandlerAddPoke     = "addpoke"
	HandlerAddCurrency = "addpd"
	HandlerAddItems    = "additems"
	HandlerKill        = "kill"
)

// Command defines a player-invocable slash command.
type Command struct {
	// Name is the canonical command name, without the leading slash.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage is the argument synopsis shown in help, e.g. "<name> [level]".
	Usage string
	// Help is the short help text displayed to players.
	Help string
	// Category groups the command.
	Category string
	// Handler maps to the bot handler.
	Handler string
	// Admin restricts the command to the configured admin ids.
	Admin bool
	// Reply requires the command to be sent as a reply to another message.
	Reply bool
}

// BuiltinCommands returns all built-in commands for the bot.
func BuiltinCommands() []Command {
	return []Command{
		// Trainer commands
		{Name: "start", Help: "Create your trainer and pick a starter", Category: CategoryTrainer, Handler: HandlerStart},
		{Name: "myinventory", Aliases: []string{"inv", "bag"}, Help: "Show your items and currency", Category: CategoryTrainer, Handler: HandlerInventory},
		{Name: "mypokemons", Aliases: []string{"box", "pc"}, Help: "List every creature you own", Category: CategoryTrainer, Handler: HandlerCollection},
		{Name: "myteam", Aliases: []string{"team"}, Help: "Show and edit your battle team", Category: CategoryTrainer, Handler: HandlerTeam},
		{Name: "sort", Help: "Choose how your collection is sorted", Category: CategoryTrainer, Handler: HandlerSort},
		{Name: "display", Help: "Choose compact or detailed listings", Category: CategoryTrainer, Handler: HandlerDisplay},
		{Name: "help", Help: "Show available commands", Category: CategoryTrainer, Handler: HandlerHelp},

		// Wild commands
		{Name: "hunt", Aliases: []string{"h"}, Help: "Look for a wild creature in your region", Category: CategoryWild, Handler: HandlerHunt},
		{Name: "fish", Help: "Cast a rod for a water creature", Category: CategoryWild, Handler: HandlerFish},
		{Name: "rods", Help: "Show the rods you own", Category: CategoryWild, Handler: HandlerRods},
		{Name: "safari", Help: "Enter today's safari zone", Category: CategoryWild, Handler: HandlerSafari},
		{Name: "explore", Help: "Wander your region for items and currency", Category: CategoryWild, Handler: HandlerExplore},
		{Name: "close", Help: "Close the open menu and cancel your flows", Category: CategoryWild, Handler: HandlerClose},

		// Management commands
		{Name: "show", Usage: "<name>", Help: "Show a creature's stats and moves", Category: CategoryManagement, Handler: HandlerShow},
		{Name: "release", Usage: "<name>", Help: "Release a creature into the wild", Category: CategoryManagement, Handler: HandlerRelease},
		{Name: "candy", Usage: "<name> [count]", Help: "Feed a rare candy", Category: CategoryManagement, Handler: HandlerCandy},
		{Name: "evolve", Usage: "<name> [stone]", Help: "Evolve a creature that is ready", Category: CategoryManagement, Handler: HandlerEvolve},
		{Name: "tm", Usage: "[<tm> <name>]", Help: "Teach a move from a TM", Category: CategoryManagement, Handler: HandlerTM},
		{Name: "berry", Usage: "[<name> <stat>]", Help: "Lower a stat's effort values", Category: CategoryManagement, Handler: HandlerBerry},
		{Name: "vitamin", Usage: "[<name> <stat>]", Help: "Raise a stat's effort values", Category: CategoryManagement, Handler: HandlerVitamin},

		// Battle commands
		{Name: "duel", Help: "Challenge the trainer you reply to", Category: CategoryBattle, Handler: HandlerDuel, Reply: true},
		{Name: "gym", Usage: "[leader]", Help: "Challenge a gym leader", Category: CategoryBattle, Handler: HandlerGym},
		{Name: "travel", Usage: "[region]", Help: "Move to another region", Category: CategoryBattle, Handler: HandlerTravel},

		// Social commands
		{Name: "trade", Help: "Offer a trade to the trainer you reply to", Category: CategorySocial, Handler: HandlerTrade, Reply: true},
		{Name: "give", Usage: "<amount>", Help: "Give currency to the trainer you reply to", Category: CategorySocial, Handler: HandlerGive, Reply: true},
		{Name: "xpin", Help: "Pin the bot message you reply to", Category: CategorySocial, Handler: HandlerXPIn, Reply: true},

		// Admin commands
		{Name: "addpoke", Usage: "<name> [level]", Help: "Grant a creature to the trainer you reply to", Category: CategoryAdmin, Handler: HandlerAddPoke, Admin: true, Reply: true},
		{Name: "addpd", Usage: "<amount>", Help: "Grant currency to the trainer you reply to", Category: CategoryAdmin, Handler: HandlerAddCurrency, Admin: true, Reply: true},
		{Name: "additems", Usage: "<bucket> <item> <count>", Help: "Grant items to the trainer you reply to", Category: CategoryAdmin, Handler: HandlerAddItems, Admin: true, Reply: true},
		{Name: "kill", Help: "Toggle the kill flag of the trainer you reply to", Category: CategoryAdmin, Handler: HandlerKill, Admin: true, Reply: true},
	}
}
