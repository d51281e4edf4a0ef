package common

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Console status colors. These differ from the log handler palette: info is
// bold yellow so step headers stand out from the green/red outcomes.
const (
	ConsoleInfo    = "\033[1;33m"
	ConsoleSuccess = "\033[0;32m"
	ConsoleError   = "\033[0;31m"
)

// Status classifies a console line.
type Status int

const (
	StatusInfo Status = iota
	StatusSuccess
	StatusError
)

func (s Status) color() string {
	switch s {
	case StatusSuccess:
		return ConsoleSuccess
	case StatusError:
		return ConsoleError
	default:
		return ConsoleInfo
	}
}

// Console prints the operator-facing run transcript.
type Console struct {
	w        io.Writer
	useColor bool
}

// NewConsole writes to w (stdout when nil). Colors follow IsTerminal unless
// overridden with SetColor.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w, useColor: IsTerminal(w)}
}

// SetColor forces colors on or off.
func (c *Console) SetColor(enabled bool) {
	c.useColor = enabled
}

// Status prints msg in the color for s.
func (c *Console) Status(s Status, msg string) {
	if c.useColor {
		_, _ = fmt.Fprintf(c.w, "%s%s%s\n", s.color(), msg, Reset)
		return
	}
	_, _ = fmt.Fprintln(c.w, msg)
}

func (c *Console) Info(format string, args ...any) {
	c.Status(StatusInfo, fmt.Sprintf(format, args...))
}

func (c *Console) Success(format string, args ...any) {
	c.Status(StatusSuccess, fmt.Sprintf(format, args...))
}

func (c *Console) Error(format string, args ...any) {
	c.Status(StatusError, fmt.Sprintf(format, args...))
}

// Printf prints an uncolored line.
func (c *Console) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.w, format+"\n", args...)
}

// Blank prints an empty line.
func (c *Console) Blank() {
	_, _ = fmt.Fprintln(c.w)
}

// Rule prints a 50 column separator.
func (c *Console) Rule() {
	_, _ = fmt.Fprintln(c.w, strings.Repeat("=", 50))
}
