package payload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Op is a whiteboard command name.
type Op string

const (
	OpBrush  Op = "BRUSH"  // r g b width
	OpDot    Op = "DOT"    // x y
	OpLine   Op = "LINE"   // x1 y1 x2 y2
	OpText   Op = "TEXT"   // x y text...
	OpCircle Op = "CIRCLE" // x y radius
	OpClear  Op = "CLR"
)

// arity is the number of integer arguments each op takes.
var arity = map[Op]int{
	OpBrush:  4,
	OpDot:    2,
	OpLine:   4,
	OpText:   2,
	OpCircle: 3,
	OpClear:  0,
}

var (
	errUnknownOp = errors.New("payload: unknown whiteboard command")
	errArgs      = errors.New("payload: wrong whiteboard arguments")
)

// Command is one whiteboard drawing command from the client numbered
// Client. Text is used by TEXT only; it may contain inner spaces but leading
// whitespace is not preserved.
type Command struct {
	Client int
	Op     Op
	Args   []int
	Text   string
}

// Validate checks the op is known and has the right number of arguments.
func (c Command) Validate() error {
	n, ok := arity[c.Op]
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownOp, c.Op)
	}
	if len(c.Args) != n {
		return fmt.Errorf("%w: %s takes %d, got %d", errArgs, c.Op, n, len(c.Args))
	}
	if c.Op != OpText && c.Text != "" {
		return fmt.Errorf("%w: %s takes no text", errArgs, c.Op)
	}
	if strings.ContainsAny(c.Text, "\r\n") {
		return fmt.Errorf("%w: text spans lines", errArgs)
	}
	return nil
}

// String formats the command as its wire line.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(c.Client))
	b.WriteByte(' ')
	b.WriteString(string(c.Op))
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(a))
	}
	if c.Op == OpText {
		b.WriteByte(' ')
		b.WriteString(c.Text)
	}
	return b.String()
}

// MarshalText validates and formats the command.
func (c Command) MarshalText() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return []byte(c.String()), nil
}

// UnmarshalText parses a command line.
func (c *Command) UnmarshalText(line []byte) error {
	cmd, err := ParseCommand(string(line))
	if err != nil {
		return err
	}
	*c = cmd
	return nil
}

// ParseCommand parses "<client> <COMMAND> <args...>". A trailing newline is
// ignored.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Command{}, decodeError("whiteboard command", errArgs)
	}

	client, err := strconv.Atoi(fields[0])
	if err != nil {
		return Command{}, decodeError("whiteboard client number", err)
	}
	cmd := Command{Client: client, Op: Op(fields[1])}
	n, ok := arity[cmd.Op]
	if !ok {
		return Command{}, decodeError("whiteboard command", fmt.Errorf("%w: %q", errUnknownOp, fields[1]))
	}

	args := fields[2:]
	if cmd.Op == OpText {
		if len(args) < n {
			return Command{}, decodeError("whiteboard TEXT", errArgs)
		}
		// Text keeps its inner spacing: cut it from the raw line.
		cmd.Text = textAfter(line, 2+n)
		args = args[:n]
	}
	if len(args) != n {
		return Command{}, decodeError("whiteboard "+string(cmd.Op), fmt.Errorf("%w: want %d, got %d", errArgs, n, len(args)))
	}
	for _, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return Command{}, decodeError("whiteboard "+string(cmd.Op), err)
		}
		cmd.Args = append(cmd.Args, v)
	}
	return cmd, nil
}

// textAfter returns line with its first skip tokens and the whitespace
// after them removed.
func textAfter(line string, skip int) string {
	rest := strings.TrimLeft(line, " \t")
	for i := 0; i < skip; i++ {
		j := strings.IndexAny(rest, " \t")
		if j < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[j:], " \t")
	}
	return rest
}
