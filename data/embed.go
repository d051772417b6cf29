// Package data embeds the default game content shipped with the bot.
package data

import "embed"

// FS holds the catalog files read by catalog.Load.
//
//go:embed *.json balls.yaml specialMoves/*.json
var FS embed.FS
