package command

import "strings"

// ParseResult holds the parsed command name and arguments from a chat message.
type ParseResult struct {
	// Command is the command word without the slash or bot mention, lowercased.
	Command string
	// Mention is the bot username after '@', if the command carried one.
	Mention string
	// Args are the remaining words after the command.
	Args []string
	// RawArgs is the raw text after the command.
	RawArgs string
}

// IsCommand reports whether text starts with a slash command.
func IsCommand(text string) bool {
	text = strings.TrimSpace(text)
	return len(text) > 1 && text[0] == '/' && text[1] != ' '
}

// Parse splits a chat message such as "/addpoke@PokeBot Mew 30" into a
// command and arguments.
//
// Postcondition: Returns a ParseResult. If text is not a command, Command is empty.
func Parse(text string) ParseResult {
	text = strings.TrimSpace(text)
	if !IsCommand(text) {
		return ParseResult{}
	}
	text = text[1:]

	word, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(word, "\n\t"); i >= 0 {
		rest = word[i:] + " " + rest
		word = word[:i]
	}
	name, mention, _ := strings.Cut(word, "@")
	rest = strings.TrimSpace(rest)

	var args []string
	if rest != "" {
		args = strings.Fields(rest)
	}

	return ParseResult{
		Command: strings.ToLower(name),
		Mention: mention,
		Args:    args,
		RawArgs: rest,
	}
}

// For reports whether the command is addressed to botName. Commands without
// a mention are addressed to every bot.
func (p ParseResult) For(botName string) bool {
	return p.Mention == "" || strings.EqualFold(p.Mention, botName)
}

// Arg returns argument i or "".
func (p ParseResult) Arg(i int) string {
	if i < 0 || i >= len(p.Args) {
		return ""
	}
	return p.Args[i]
}
