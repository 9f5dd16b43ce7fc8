package console

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

// Command is a parsed console line.
type Command struct {
	Name string
	Arg  string // Raw argument ("" when the command takes none)
	Rate int    // Parsed argument of "rate"
}

type commandSpec struct {
	name  string
	usage string
	help  string
	arg   bool
}

var commands = []commandSpec{
	{name: "open", usage: "open <path>", help: "select a document", arg: true},
	{name: "play", usage: "play", help: "start or resume reading"},
	{name: "pause", usage: "pause", help: "pause reading"},
	{name: "stop", usage: "stop", help: "stop reading"},
	{name: "next", usage: "next", help: "show the next page"},
	{name: "prev", usage: "prev", help: "show the previous page"},
	{name: "rate", usage: "rate <wpm>", help: "set the reading rate", arg: true},
	{name: "faster", usage: "faster", help: "raise the reading rate one step"},
	{name: "slower", usage: "slower", help: "lower the reading rate one step"},
	{name: "status", usage: "status", help: "show the current status"},
	{name: "help", usage: "help", help: "list commands"},
	{name: "quit", usage: "quit", help: "exit"},
}

var aliases = map[string]string{
	"o":    "open",
	"p":    "pause",
	"s":    "stop",
	"n":    "next",
	"b":    "prev",
	"+":    "faster",
	"-":    "slower",
	"q":    "quit",
	"exit": "quit",
	"?":    "help",
}

// Parse parses one input line. Blank lines yield an empty command.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, nil
	}

	name, arg, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)
	if full, ok := aliases[name]; ok {
		name = full
	}

	spec, ok := lookup(name)
	if !ok {
		return Command{}, errors.Wrapf(ErrUnknownCommand, "%q (type help)", name)
	}
	if spec.arg && arg == "" {
		return Command{}, errors.Wrapf(ErrMissingArgument, "usage: %s", spec.usage)
	}

	cmd := Command{Name: name}
	if spec.arg {
		cmd.Arg = arg
	}
	if name == "rate" {
		rate, err := strconv.Atoi(arg)
		if err != nil {
			return Command{}, errors.Newf("invalid rate %q: usage: %s", arg, spec.usage)
		}
		cmd.Rate = rate
	}
	return cmd, nil
}

func lookup(name string) (commandSpec, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return commandSpec{}, false
}

// helpText lists every command.
func helpText() string {
	var b strings.Builder
	for _, c := range commands {
		b.WriteString("  ")
		b.WriteString(c.usage)
		b.WriteString(strings.Repeat(" ", max(14-len(c.usage), 1)))
		b.WriteString(c.help)
		b.WriteString("\n")
	}
	return b.String()
}
