package domain

import "strings"

type Verb string

const (
	VerbList      Verb = "list"
	VerbStats     Verb = "stats"
	VerbBan       Verb = "ban"
	VerbDelete    Verb = "delete"
	VerbQuit      Verb = "quit"
	VerbHistory   Verb = "history"
	VerbSearch    Verb = "search"
	VerbHelp      Verb = "help"
	VerbHelpShort Verb = "?"
)

// Command is the parsed Text of a CMD datagram.
type Command struct {
	Verb Verb
	Arg  string
}

// ParseCommand lower-cases the verb and keeps the rest as argument.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	verb, arg, _ := strings.Cut(text, " ")
	return Command{
		Verb: Verb(strings.ToLower(verb)),
		Arg:  strings.TrimSpace(arg),
	}
}
